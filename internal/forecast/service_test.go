package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/gaf-clearance/internal/clearance"
	"github.com/i474232898/gaf-clearance/internal/gaf"
	"github.com/i474232898/gaf-clearance/internal/lsalt"
	"github.com/i474232898/gaf-clearance/internal/observability"
	"github.com/i474232898/gaf-clearance/internal/store"
)

func intPtr(v int) *int { return &v }

func square(minX, minY, size float64) [][2]float64 {
	return [][2]float64{
		{minX, minY}, {minX + size, minY}, {minX + size, minY + size}, {minX, minY + size}, {minX, minY},
	}
}

// fakeSource serves one major area with one sub area per region. The cloud
// base and validity start change with the version.
type fakeSource struct {
	mu      sync.Mutex
	version int
	failing map[gaf.Region]bool
}

func (f *fakeSource) setVersion(v int, failing ...gaf.Region) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.version = v
	f.failing = make(map[gaf.Region]bool)
	for _, r := range failing {
		f.failing[r] = true
	}
}

func (f *fakeSource) FetchForecast(_ context.Context, region gaf.Region, period gaf.Period) (gaf.Forecast, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failing[region] {
		return gaf.Forecast{}, errors.New("upstream returned 502")
	}

	hour := 6 * f.version
	if period == gaf.PeriodNext {
		hour += 3
	}
	from := time.Date(2026, 10, 15, hour, 0, 0, 0, time.UTC)
	cloudBase := 1500 + 1000*f.version

	return gaf.Forecast{
		GAFAreaID: region,
		From:      from.Format(time.RFC3339),
		Till:      from.Add(6 * time.Hour).Format(time.RFC3339),
		Areas: []gaf.Area{{
			AreaID:       "A",
			Boundary:     gaf.Boundary{Points: square(150.1, -29.9, 0.3)},
			DayCloudBase: intPtr(cloudBase),
			SubAreas: []gaf.SubArea{{
				AreaID: "A", SubAreaID: "A1",
				Boundary:     gaf.Boundary{Points: square(150.15, -29.85, 0.1)},
				DayCloudBase: intPtr(cloudBase),
			}},
		}},
	}, nil
}

func (f *fakeSource) FetchGrid(context.Context, gaf.Region) ([]gaf.GridCell, error) {
	return []gaf.GridCell{{Grid: square(150, -30, 0.5), LSALT100ft: 13}}, nil
}

type fixture struct {
	source  *fakeSource
	engine  *clearance.Engine
	metrics *observability.Metrics
	clock   *clockwork.FakeClock
	svc     *Service
}

func newFixture(t *testing.T, excluded ...gaf.Region) *fixture {
	t.Helper()

	src := &fakeSource{}
	src.setVersion(0)

	grids, err := lsalt.Load(context.Background(), src, gaf.Regions, slog.Default())
	require.NoError(t, err)

	fx := &fixture{
		source:  src,
		engine:  clearance.NewEngine(excluded, slog.Default()),
		metrics: observability.NewMetricsForTesting(),
		clock:   clockwork.NewFakeClockAt(time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)),
	}
	fx.svc, err = NewService(Options{
		Source:  src,
		Store:   store.NewMemoryStore(0, 0, fx.clock),
		Grids:   grids,
		Engine:  fx.engine,
		Metrics: fx.metrics,
		Logger:  slog.Default(),
		Clock:   fx.clock,
	})
	require.NoError(t, err)
	return fx
}

func featuresOf(fc *geojson.FeatureCollection, region gaf.Region) []*geojson.Feature {
	var out []*geojson.Feature
	for _, f := range fc.Features {
		if layerRegion(f) == region {
			out = append(out, f)
		}
	}
	return out
}

// layerRegion extracts the region from a map layer id such as maparea_VIC_A_x1y2z3.
func layerRegion(f *geojson.Feature) gaf.Region {
	id, _ := f.Properties["mapLayerID"].(string)
	for _, r := range gaf.Regions {
		for _, prefix := range []string{"maparea_", "mapsubarea_"} {
			p := prefix + string(r) + "_"
			if len(id) > len(p) && id[:len(p)] == p {
				return r
			}
		}
	}
	return ""
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func TestNewServiceRequiresCollaborators(t *testing.T) {
	_, err := NewService(Options{})
	assert.Error(t, err)
}

func TestRunCycleInstallsEveryRegion(t *testing.T) {
	fx := newFixture(t)
	assert.False(t, fx.svc.Ready())
	assert.Empty(t, fx.svc.MapAreas(gaf.PeriodCurrent).Features)

	cycle := fx.svc.RunCycle(context.Background())
	cycle.Wait()
	assert.Empty(t, cycle.Failures())
	assert.True(t, fx.svc.Ready())

	for _, period := range gaf.Periods {
		areas := fx.svc.MapAreas(period)
		assert.Len(t, areas.Features, 2*len(gaf.Regions), "major and sub per region")

		day := fx.svc.Clearance(period, clearance.Day)
		night := fx.svc.Clearance(period, clearance.Night)
		assert.Len(t, day.Features, 2*len(gaf.Regions))
		assert.Len(t, night.Features, 2*len(gaf.Regions))
	}

	installed, ok := fx.svc.LastInstalled()
	require.True(t, ok)
	assert.Equal(t, fx.clock.Now(), installed)
}

func TestRunCycleIDsAreUniqueAndRestartEachCycle(t *testing.T) {
	fx := newFixture(t)

	collect := func() map[int64]bool {
		ids := make(map[int64]bool)
		for _, period := range gaf.Periods {
			for _, rule := range []clearance.Rule{clearance.Day, clearance.Night} {
				for _, f := range fx.svc.Clearance(period, rule).Features {
					id := f.ID.(int64)
					assert.False(t, ids[id], "duplicate id %d", id)
					ids[id] = true
				}
			}
		}
		return ids
	}

	fx.svc.RunCycle(context.Background()).Wait()
	first := collect()
	total := len(gaf.Periods) * len(gaf.Regions) * 2 * 2
	assert.Len(t, first, total)
	for id := int64(1); id <= int64(total); id++ {
		assert.True(t, first[id], "id %d missing", id)
	}

	fx.source.setVersion(1)
	fx.svc.RunCycle(context.Background()).Wait()
	assert.Equal(t, first, collect())
}

func TestFailedFetchKeepsPreviousRegionState(t *testing.T) {
	fx := newFixture(t)

	fx.svc.RunCycle(context.Background()).Wait()
	vicAreas := mustJSON(t, featuresOf(fx.svc.MapAreas(gaf.PeriodCurrent), "VIC"))
	vicDay := mustJSON(t, featuresOf(fx.svc.Clearance(gaf.PeriodCurrent, clearance.Day), "VIC"))
	tasAreas := mustJSON(t, featuresOf(fx.svc.MapAreas(gaf.PeriodCurrent), "TAS"))

	fx.source.setVersion(1, "VIC")
	cycle := fx.svc.RunCycle(context.Background())
	cycle.Wait()

	failures := cycle.Failures()
	assert.Len(t, failures, len(gaf.Periods))
	assert.Contains(t, failures, "current/VIC")
	assert.Contains(t, failures, "next/VIC")

	assert.Equal(t, vicAreas, mustJSON(t, featuresOf(fx.svc.MapAreas(gaf.PeriodCurrent), "VIC")))
	assert.NotEqual(t, tasAreas, mustJSON(t, featuresOf(fx.svc.MapAreas(gaf.PeriodCurrent), "TAS")))

	for _, f := range featuresOf(fx.svc.Clearance(gaf.PeriodCurrent, clearance.Day), "VIC") {
		assert.Equal(t, 1500, f.Properties["cloud_base"])
	}
	for _, f := range featuresOf(fx.svc.Clearance(gaf.PeriodCurrent, clearance.Day), "TAS") {
		assert.Equal(t, 2500, f.Properties["cloud_base"])
	}
	assert.Equal(t, vicDay, mustJSON(t, featuresOf(fx.svc.Clearance(gaf.PeriodCurrent, clearance.Day), "VIC")))
}

func TestRegionFailureKeepsPreviousSlot(t *testing.T) {
	fx := newFixture(t)
	fx.svc.RunCycle(context.Background()).Wait()
	before := mustJSON(t, fx.svc.MapAreas(gaf.PeriodNext))
	windows := fx.svc.ValidityWindows()
	require.Len(t, windows, 2)

	fx.engine.WithIntersect(func(orb.Polygon, orb.Polygon) (orb.Geometry, bool, error) {
		panic("self-touching ring")
	})
	fx.source.setVersion(1)

	cycle := fx.svc.RunCycle(context.Background())
	cycle.Wait()

	assert.Len(t, cycle.Failures(), len(gaf.Periods)*len(gaf.Regions))
	for _, err := range cycle.Failures() {
		assert.ErrorIs(t, err, clearance.ErrRegionFailed)
	}
	assert.Equal(t, before, mustJSON(t, fx.svc.MapAreas(gaf.PeriodNext)))
	assert.Equal(t, windows, fx.svc.ValidityWindows(), "store must not advance past installed state")

	_, err := fx.svc.Forecast("VIC", "2026-10-15T06:00:00Z")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestExcludedRegionHasAreasButNoClearance(t *testing.T) {
	fx := newFixture(t, "NSW-W")
	fx.svc.RunCycle(context.Background()).Wait()

	assert.Len(t, featuresOf(fx.svc.MapAreas(gaf.PeriodCurrent), "NSW-W"), 2)
	assert.Empty(t, featuresOf(fx.svc.Clearance(gaf.PeriodCurrent, clearance.Night), "NSW-W"))
	assert.Len(t, featuresOf(fx.svc.Clearance(gaf.PeriodCurrent, clearance.Night), "NT"), 2)
}

func TestFetchMetrics(t *testing.T) {
	fx := newFixture(t)
	fx.source.setVersion(0, "TAS", "SA")
	fx.svc.RunCycle(context.Background()).Wait()

	fetches := func(period, outcome string) float64 {
		var pb dto.Metric
		require.NoError(t, fx.metrics.ForecastFetches.WithLabelValues(period, outcome).Write(&pb))
		return pb.GetCounter().GetValue()
	}
	assert.Equal(t, float64(len(gaf.Regions)-2), fetches("current", "success"))
	assert.Equal(t, 2.0, fetches("next", "error"))
}

func TestQueriesBeforeFirstCycleAreEmpty(t *testing.T) {
	fx := newFixture(t)

	assert.Empty(t, fx.svc.Clearance(gaf.PeriodCurrent, clearance.Day).Features)
	assert.Empty(t, fx.svc.Envelopes(gaf.PeriodCurrent).Features)
	assert.Empty(t, fx.svc.MajorAreas(gaf.PeriodNext))
	assert.Empty(t, fx.svc.ValidityWindows())
	assert.JSONEq(t, `{"type":"FeatureCollection","features":[]}`, mustJSON(t, fx.svc.MapAreas(gaf.PeriodNext)))
}
