package forecast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb/geojson"

	"github.com/i474232898/gaf-clearance/internal/clearance"
	"github.com/i474232898/gaf-clearance/internal/gaf"
	"github.com/i474232898/gaf-clearance/internal/lsalt"
	"github.com/i474232898/gaf-clearance/internal/maparea"
	"github.com/i474232898/gaf-clearance/internal/observability"
)

type slotKey struct {
	period gaf.Period
	region gaf.Region
}

// slot is everything derived from one (period, region) forecast. A slot is
// never mutated after installation; a refresh replaces the pointer.
type slot struct {
	forecast    gaf.Forecast
	areas       []maparea.MapArea
	day         []clearance.Feature
	night       []clearance.Feature
	installedAt time.Time
}

type envelopeKey struct {
	period     gaf.Period
	generation uint64
}

// Service orchestrates fetching forecasts, deriving map areas and clearance
// features, and serving the installed state.
type Service struct {
	source  gaf.Source
	store   gaf.ForecastStore
	grids   *lsalt.Registry
	engine  *clearance.Engine
	metrics *observability.Metrics
	logger  *slog.Logger
	clock   clockwork.Clock

	mu    sync.RWMutex
	slots map[slotKey]*slot
	// generation counts installs per period and keys the envelope cache.
	generation map[gaf.Period]uint64

	envelopes *lru.Cache[envelopeKey, *geojson.FeatureCollection]
}

// Options carries the collaborators of a Service.
type Options struct {
	Source            gaf.Source
	Store             gaf.ForecastStore
	Grids             *lsalt.Registry
	Engine            *clearance.Engine
	Metrics           *observability.Metrics
	Logger            *slog.Logger
	Clock             clockwork.Clock
	EnvelopeCacheSize int
}

// NewService creates a new Service.
func NewService(opts Options) (*Service, error) {
	if opts.Source == nil || opts.Store == nil || opts.Grids == nil || opts.Engine == nil {
		return nil, errors.New("forecast service requires a source, store, grid registry and engine")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.NewMetricsForTesting()
	}
	if opts.EnvelopeCacheSize <= 0 {
		opts.EnvelopeCacheSize = 64
	}

	cache, err := lru.New[envelopeKey, *geojson.FeatureCollection](opts.EnvelopeCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create envelope cache: %w", err)
	}

	return &Service{
		source:     opts.Source,
		store:      opts.Store,
		grids:      opts.Grids,
		engine:     opts.Engine,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
		clock:      opts.Clock,
		slots:      make(map[slotKey]*slot),
		generation: make(map[gaf.Period]uint64),
		envelopes:  cache,
	}, nil
}

// Cycle is a handle on one in-flight refresh cycle.
type Cycle struct {
	done chan struct{}

	mu       sync.Mutex
	failures map[slotKey]error
}

// Wait blocks until every (period, region) task of the cycle has finished.
func (c *Cycle) Wait() { <-c.done }

// Done is closed once every task of the cycle has finished.
func (c *Cycle) Done() <-chan struct{} { return c.done }

// Failures reports the tasks that did not install new state, keyed by "period/region".
// It is only complete after Wait returns.
func (c *Cycle) Failures() map[string]error {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]error, len(c.failures))
	for k, err := range c.failures {
		out[string(k.period)+"/"+string(k.region)] = err
	}
	return out
}

func (c *Cycle) fail(k slotKey, err error) {
	c.mu.Lock()
	c.failures[k] = err
	c.mu.Unlock()
}

// RunCycle starts one refresh task per period and region and returns without
// waiting for them. Each task installs its own slot as soon as it completes,
// so readers may see a mix of old and new regions while the cycle is running.
// Feature ids restart at 1 and are shared by every task of the cycle.
func (s *Service) RunCycle(ctx context.Context) *Cycle {
	cycle := &Cycle{
		done:     make(chan struct{}),
		failures: make(map[slotKey]error),
	}
	ids := &clearance.Counter{}
	started := s.clock.Now()

	var wg sync.WaitGroup
	for _, period := range gaf.Periods {
		for _, region := range gaf.Regions {
			wg.Add(1)
			go func() {
				defer wg.Done()

				if err := s.Refresh(ctx, ids, period, region); err != nil {
					cycle.fail(slotKey{period, region}, err)
				}
			}()
		}
	}

	go func() {
		wg.Wait()
		elapsed := s.clock.Since(started)
		s.metrics.CycleDuration.Observe(elapsed.Seconds())
		s.logger.Info("refresh cycle complete",
			"duration", elapsed,
			"failed", len(cycle.Failures()),
		)
		close(cycle.done)
	}()

	return cycle
}

// Refresh fetches one (period, region) forecast, derives map areas and day and
// night clearance features, and installs them together. On any error the
// previously installed slot is left untouched.
func (s *Service) Refresh(ctx context.Context, ids *clearance.Counter, period gaf.Period, region gaf.Region) error {
	logger := s.logger.With("period", period, "region", region)

	f, err := s.source.FetchForecast(ctx, region, period)
	if err != nil {
		s.metrics.ForecastFetches.WithLabelValues(string(period), "error").Inc()
		logger.Warn("forecast fetch failed; keeping previous state", "error", err)
		return fmt.Errorf("fetch %s forecast for %s: %w", period, region, err)
	}
	s.metrics.ForecastFetches.WithLabelValues(string(period), "success").Inc()

	areas := maparea.Build(f)
	cells := s.grids.Cells(region)

	day, err := s.engine.Compute(region, areas, cells, clearance.Day, ids)
	if err != nil {
		logger.Error("day clearance failed; keeping previous state", "error", err)
		return err
	}
	night, err := s.engine.Compute(region, areas, cells, clearance.Night, ids)
	if err != nil {
		logger.Error("night clearance failed; keeping previous state", "error", err)
		return err
	}

	if failures := day.Failures + night.Failures; failures > 0 {
		s.metrics.IntersectionFailures.WithLabelValues(string(region)).Add(float64(failures))
		logger.Error("intersections skipped", "pairs", failures)
	}

	// The stored document only advances together with its derived state.
	s.store.Put(region, f)
	s.install(slotKey{period, region}, &slot{
		forecast:    f,
		areas:       areas,
		day:         day.Features,
		night:       night.Features,
		installedAt: s.clock.Now(),
	})

	logger.Debug("forecast installed",
		"from", f.From,
		"areas", len(areas),
		"day_features", len(day.Features),
		"night_features", len(night.Features),
	)
	return nil
}

func (s *Service) install(k slotKey, sl *slot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.slots[k] = sl
	s.generation[k.period]++

	var day, night int
	for _, installed := range s.slots {
		day += len(installed.day)
		night += len(installed.night)
	}
	s.metrics.ClearanceFeatures.WithLabelValues(clearance.Day.String()).Set(float64(day))
	s.metrics.ClearanceFeatures.WithLabelValues(clearance.Night.String()).Set(float64(night))
	s.metrics.SlotsInstalled.Set(float64(len(s.slots)))
}

// snapshot returns the installed slots of period in region order, together
// with the period's generation.
func (s *Service) snapshot(period gaf.Period) ([]*slot, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*slot
	for _, region := range gaf.Regions {
		if sl, ok := s.slots[slotKey{period, region}]; ok {
			out = append(out, sl)
		}
	}
	return out, s.generation[period]
}

// Ready reports whether at least one slot has been installed.
func (s *Service) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.slots) > 0
}

// LastInstalled returns the most recent installation time across all slots.
func (s *Service) LastInstalled() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest time.Time
	for _, sl := range s.slots {
		if sl.installedAt.After(latest) {
			latest = sl.installedAt
		}
	}
	return latest, !latest.IsZero()
}
