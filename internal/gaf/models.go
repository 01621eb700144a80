package gaf

import (
	"errors"
	"strings"
)

var (
	// ErrUnknownRegion is returned when a region code is not one of Regions.
	ErrUnknownRegion = errors.New("unknown region code")
	// ErrUnknownPeriod is returned by ParsePeriodStrict for anything but current/next.
	ErrUnknownPeriod = errors.New("unknown forecast period")
)

// Region is a GAF area code such as "QLD-S" or "TAS".
type Region string

// Regions is the fixed set of GAF areas published upstream, in publication order.
var Regions = []Region{"WA-N", "WA-S", "NT", "QLD-N", "QLD-S", "SA", "NSW-W", "NSW-E", "VIC", "TAS"}

// ParseRegion validates a region code.
func ParseRegion(s string) (Region, error) {
	r := Region(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Regions {
		if r == known {
			return r, nil
		}
	}
	return "", ErrUnknownRegion
}

// Period selects which forecast validity window a query targets.
type Period string

const (
	PeriodCurrent Period = "current"
	PeriodNext    Period = "next"
)

// Periods lists every period a refresh cycle fetches.
var Periods = []Period{PeriodCurrent, PeriodNext}

// ParsePeriod follows the upstream convention: "next" is next, anything else is current.
func ParsePeriod(s string) Period {
	if s == string(PeriodNext) {
		return PeriodNext
	}
	return PeriodCurrent
}

// ParsePeriodStrict only accepts "current" or "next".
func ParsePeriodStrict(s string) (Period, error) {
	switch Period(s) {
	case PeriodCurrent, PeriodNext:
		return Period(s), nil
	}
	return "", ErrUnknownPeriod
}

// NoCloudSentinel is the value upstream uses in place of a cloud base when there is no ceiling.
const NoCloudSentinel = 999999

// Boundary is a closed ring of [lon, lat] points.
type Boundary struct {
	Points [][2]float64 `json:"points"`
}

// CloudLayer is a parsed cloud group from the cloud/ice/turbulence text.
type CloudLayer struct {
	Amount        string `json:"amount"`
	Type          string `json:"type"`
	Base          int    `json:"base"`
	Top           int    `json:"top"`
	NightOnlyBase int    `json:"night_only_base,omitempty"`
	NightOnlyTop  int    `json:"night_only_top,omitempty"`
	Cumulus       bool   `json:"cumulus,omitempty"`
}

type ParsedCloudLayer struct {
	Cloud *CloudLayer `json:"cloud,omitempty"`
}

type SurfaceVisWx struct {
	Text              string   `json:"text"`
	SurfaceVis        int      `json:"surface_vis"`
	SubAreasMentioned []string `json:"sub_areas_mentioned,omitempty"`
}

type CloudIceTurb struct {
	Text              string           `json:"text"`
	Parsed            ParsedCloudLayer `json:"parsed"`
	SubAreasMentioned []string         `json:"sub_areas_mentioned,omitempty"`
}

// WxCond is one weather-condition record of a major area.
type WxCond struct {
	SurfaceVisWx SurfaceVisWx   `json:"surface_vis_wx"`
	CloudIceTurb []CloudIceTurb `json:"cloud_ice_turb"`
}

// Area is a major area of a forecast document.
type Area struct {
	AreaID         string    `json:"area_id"`
	WxCond         []WxCond  `json:"wx_cond"`
	FreezingLevel  string    `json:"freezing_level"`
	Boundary       Boundary  `json:"boundary"`
	DayCloudBase   *int      `json:"day_cloud_base,omitempty"`
	DayCloudTop    *int      `json:"day_cloud_top,omitempty"`
	NightCloudBase *int      `json:"night_cloud_base,omitempty"`
	NightCloudTop  *int      `json:"night_cloud_top,omitempty"`
	SubAreas       []SubArea `json:"sub_areas"`
}

// SubArea is a finer subdivision of a major area.
type SubArea struct {
	AreaID         string   `json:"area_id"`
	SubAreaID      string   `json:"sub_area_id"`
	Boundary       Boundary `json:"boundary"`
	DayCloudBase   *int     `json:"day_cloud_base,omitempty"`
	DayCloudTop    *int     `json:"day_cloud_top,omitempty"`
	NightCloudBase *int     `json:"night_cloud_base,omitempty"`
	NightCloudTop  *int     `json:"night_cloud_top,omitempty"`
}

// Forecast is a Graphical Area Forecast document for one region and validity window.
// From and Till are ISO-8601 strings; their lexical order is chronological.
type Forecast struct {
	PageCode          string   `json:"page_code"`
	GAFAreaID         Region   `json:"gaf_area_id"`
	From              string   `json:"from"`
	Till              string   `json:"till"`
	IssuedAt          string   `json:"issued_at"`
	StandardInclusion string   `json:"standard_inclusion"`
	Areas             []Area   `json:"areas"`
	Boundary          Boundary `json:"boundary"`
}

// ValidityWindow is the [From, Till) span a forecast document covers.
type ValidityWindow struct {
	From string `json:"from"`
	Till string `json:"till"`
}

// Window returns the document's validity window.
func (f Forecast) Window() ValidityWindow {
	return ValidityWindow{From: f.From, Till: f.Till}
}

// GridCell is a 0.5 x 0.5 degree polygon with its lowest safe altitude.
// LSALT100ft must be multiplied by 100 to get feet.
type GridCell struct {
	Grid       [][2]float64 `json:"grid"`
	LSALT100ft int          `json:"lsalt_100ft"`
}
