package maparea

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/i474232898/gaf-clearance/internal/common"
	"github.com/i474232898/gaf-clearance/internal/gaf"
	"github.com/i474232898/gaf-clearance/internal/geo"
)

// NoCeiling is the cloud base assumed for banding when none is forecast.
const NoCeiling = 10000

// MaxColorLevel is the highest clearance color level (3000ft or more).
const MaxColorLevel = 3

// Kind tags a MapArea as a major area or a sub-area.
type Kind int

const (
	KindMajor Kind = iota
	KindSub
)

func (k Kind) String() string {
	if k == KindSub {
		return "sub"
	}
	return "major"
}

// MapArea is one polygon of a forecast that the clearance engine reasons about.
// A Sub area refers to its owning Major area by index into the slice Build returned.
type MapArea struct {
	Kind      Kind
	Region    gaf.Region
	AreaID    string
	SubAreaID string
	// MajorIndex is the position of the owning Major area; a Major area points at itself.
	MajorIndex    int
	Boundary      [][2]float64
	FreezingLevel string
	// WxConds is only set on Major areas.
	WxConds []gaf.WxCond
	LayerID string

	cloudBase *int
	polygon   orb.Polygon
}

// Export is the JSON form of a map area listed without geometry.
type Export struct {
	GAFAreaCode         gaf.Region   `json:"gafAreaCode"`
	MapLayerID          string       `json:"mapLayerID"`
	MapLabel            string       `json:"mapLabel"`
	GAFAreaCodeAndGroup string       `json:"gafAreaCodeAndGroup"`
	FreezingLevel       string       `json:"freezingLevel,omitempty"`
	WxConds             []gaf.WxCond `json:"wxConds,omitempty"`
}

func newMapArea(kind Kind, region gaf.Region, areaID, subAreaID string, majorIndex int, boundary gaf.Boundary, cloudBase *int) MapArea {
	a := MapArea{
		Kind:       kind,
		Region:     region,
		AreaID:     areaID,
		SubAreaID:  subAreaID,
		MajorIndex: majorIndex,
		Boundary:   boundary.Points,
		polygon:    geo.Polygon(boundary.Points),
	}
	if cloudBase != nil && *cloudBase != gaf.NoCloudSentinel {
		cb := *cloudBase
		a.cloudBase = &cb
	}

	prefix := "maparea"
	if kind == KindSub {
		prefix = "mapsubarea"
	}
	a.LayerID = fmt.Sprintf("%s_%s_%s_%s", prefix, region, a.Label(), layerSuffix())
	return a
}

func layerSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
}

// IsSubArea reports whether the area is a sub-area.
func (a MapArea) IsSubArea() bool { return a.Kind == KindSub }

// Label is the area id for a Major area and the sub-area id for a Sub area.
func (a MapArea) Label() string {
	if a.Kind == KindSub {
		return a.SubAreaID
	}
	return a.AreaID
}

// GroupLabel is shared by a Major area and all of its Sub areas, e.g. "QLD-S-A".
func (a MapArea) GroupLabel() string {
	return fmt.Sprintf("%s-%s", a.Region, a.AreaID)
}

// CloudBase returns the day cloud base in feet. ok is false when no ceiling is forecast.
func (a MapArea) CloudBase() (feet int, ok bool) {
	if a.cloudBase == nil {
		return 0, false
	}
	return *a.cloudBase, true
}

// EffectiveCloudBase is the cloud base used for banding, capped at NoCeiling.
func (a MapArea) EffectiveCloudBase() int {
	cb, ok := a.CloudBase()
	if !ok || cb > NoCeiling {
		return NoCeiling
	}
	return cb
}

// ClearanceColorLevel bands the area's own cloud base into 0..3, one level per 1000ft.
func (a MapArea) ClearanceColorLevel() int {
	return common.Clamp(common.RoundHalfUp(float64(a.EffectiveCloudBase())/1000), 0, MaxColorLevel)
}

// WxSummary is a one-line description shown on the map.
func (a MapArea) WxSummary() string {
	text := fmt.Sprintf("%s %s", a.Region, a.Label())
	if cb, ok := a.CloudBase(); ok {
		return text + fmt.Sprintf(" has cloud base %dMSL", cb)
	}
	return text + " has N/A clouds"
}

// Polygon is the area boundary, built once at construction.
func (a MapArea) Polygon() orb.Polygon { return a.polygon }

// Feature renders the area for the map, without any grid intersection data.
func (a MapArea) Feature() *geojson.Feature {
	props := geojson.Properties{
		"mapLayerID":      a.LayerID,
		"lsaltColorLevel": a.ClearanceColorLevel(),
		"wxSummary":       a.WxSummary(),
		"groupLabel":      a.GroupLabel(),
	}
	if a.Kind == KindSub {
		props["subAreaID"] = a.SubAreaID
	}
	return geo.Feature(a.polygon, props)
}

// Export returns the geometry-free description of the area.
func (a MapArea) Export() Export {
	e := Export{
		GAFAreaCode:         a.Region,
		MapLayerID:          a.LayerID,
		MapLabel:            a.Label(),
		GAFAreaCodeAndGroup: a.GroupLabel(),
		FreezingLevel:       a.FreezingLevel,
	}
	if a.Kind == KindMajor {
		e.WxConds = a.WxConds
	}
	return e
}
