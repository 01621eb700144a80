package clearance

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/i474232898/gaf-clearance/internal/common"
	"github.com/i474232898/gaf-clearance/internal/gaf"
	"github.com/i474232898/gaf-clearance/internal/geo"
	"github.com/i474232898/gaf-clearance/internal/maparea"
)

// DayMargin100ft is subtracted from LSALT under day rules: by day the pilot can
// see the highest obstacle, which sits 1300ft below the published LSALT.
const DayMargin100ft = 13

var (
	// ErrIntersection marks a failed polygon intersection for one (cell, area) pair.
	ErrIntersection = errors.New("polygon intersection failed")
	// ErrRegionFailed is returned when a region's computation aborted; its
	// contribution for the cycle must be discarded.
	ErrRegionFailed = errors.New("clearance computation failed for region")
)

// Rule selects day or night VFR assumptions.
type Rule int

const (
	Day Rule = iota
	Night
)

func (r Rule) String() string {
	if r == Night {
		return "night"
	}
	return "day"
}

// Night reports whether r is the night rule.
func (r Rule) Night() bool { return r == Night }

// EffectiveLSALT100ft applies the rule's margin to a published LSALT.
func (r Rule) EffectiveLSALT100ft(published int) int {
	if r == Night {
		return published
	}
	return published - DayMargin100ft
}

// Counter hands out feature ids. One Counter is shared by every pass of a refresh cycle.
type Counter struct {
	n atomic.Int64
}

// Next returns the next id, starting at 1.
func (c *Counter) Next() int64 { return c.n.Add(1) }

// IntersectFunc computes the intersection of an area polygon with a grid cell.
// The result is an orb.Polygon or, when the area leaves several disjoint
// pieces inside the cell, an orb.MultiPolygon.
type IntersectFunc func(subject, cell orb.Polygon) (orb.Geometry, bool, error)

// Feature is the part of a map area lying inside one LSALT grid cell.
type Feature struct {
	ID         int64
	Region     gaf.Region
	GroupLabel string
	LayerID    string
	Geometry   orb.Geometry
	// LSALT100ft is the LSALT after the rule's margin, in hundreds of feet.
	LSALT100ft int
	LSALTFeet  int
	CloudBase  int
	// ColorLevel is round(delta/1000) and is not clamped.
	ColorLevel        int
	BoundedColorLevel int
	SameAsArea        int
}

// GeoJSON renders the feature for the map.
func (f Feature) GeoJSON() *geojson.Feature {
	gf := geo.Feature(f.Geometry, geojson.Properties{
		"id":                f.ID,
		"gafAreaCode":       f.Region,
		"groupLabel":        f.GroupLabel,
		"mapLayerID":        f.LayerID,
		"lsalt_100ft":       f.LSALT100ft,
		"lsalt_ft":          f.LSALTFeet,
		"cloud_base":        f.CloudBase,
		"lsalt_color_level": f.ColorLevel,
		"same_as_area":      f.SameAsArea,
	})
	gf.ID = f.ID
	return gf
}

// Result is the output of one region pass.
type Result struct {
	Features []Feature
	// Failures counts (cell, area) pairs whose intersection errored and were skipped.
	Failures int
}

// Engine slices map areas by LSALT grid cells.
type Engine struct {
	excluded  map[gaf.Region]bool
	intersect IntersectFunc
	logger    *slog.Logger
}

// NewEngine creates an Engine that skips the excluded regions entirely.
func NewEngine(excluded []gaf.Region, logger *slog.Logger) *Engine {
	ex := make(map[gaf.Region]bool, len(excluded))
	for _, r := range excluded {
		ex[r] = true
	}
	return &Engine{
		excluded:  ex,
		intersect: geo.Intersect,
		logger:    logger,
	}
}

// WithIntersect swaps the intersection primitive.
func (e *Engine) WithIntersect(fn IntersectFunc) *Engine {
	e.intersect = fn
	return e
}

// Excluded reports whether region is skipped by configuration.
func (e *Engine) Excluded(region gaf.Region) bool {
	return e.excluded[region]
}

// Compute intersects every map area of region with every grid cell under rule.
// Pairs with an empty intersection emit nothing. A panic anywhere in the pass
// returns ErrRegionFailed and no features.
func (e *Engine) Compute(region gaf.Region, areas []maparea.MapArea, cells []gaf.GridCell, rule Rule, ids *Counter) (res Result, err error) {
	if e.Excluded(region) {
		return Result{}, nil
	}

	defer func() {
		if r := recover(); r != nil {
			res = Result{}
			err = fmt.Errorf("%w %s (%s): %v", ErrRegionFailed, region, rule, r)
		}
	}()

	for _, cell := range cells {
		lsalt := rule.EffectiveLSALT100ft(cell.LSALT100ft)
		cellPolygon := geo.Polygon(cell.Grid)

		for _, area := range areas {
			shape, ok, ierr := e.intersect(area.Polygon(), cellPolygon)
			if ierr != nil {
				res.Failures++
				e.logger.Debug("intersection skipped",
					"region", region, "rule", rule.String(), "layer", area.LayerID,
					"error", fmt.Errorf("%w: %w", ErrIntersection, ierr))
				continue
			}
			if !ok {
				continue
			}

			res.Features = append(res.Features, newFeature(area, shape, lsalt, ids.Next()))
		}
	}

	return res, nil
}

func newFeature(area maparea.MapArea, shape orb.Geometry, lsalt100ft int, id int64) Feature {
	cloudBase := area.EffectiveCloudBase()
	delta := cloudBase - lsalt100ft*100
	level := common.RoundHalfUp(float64(delta) / 1000)
	bounded := common.Clamp(level, 0, maparea.MaxColorLevel)

	same := 0
	if bounded == area.ClearanceColorLevel() {
		same = 1
	}

	return Feature{
		ID:                id,
		Region:            area.Region,
		GroupLabel:        area.GroupLabel(),
		LayerID:           area.LayerID,
		Geometry:          shape,
		LSALT100ft:        lsalt100ft,
		LSALTFeet:         lsalt100ft * 100,
		CloudBase:         cloudBase,
		ColorLevel:        level,
		BoundedColorLevel: bounded,
		SameAsArea:        same,
	}
}
