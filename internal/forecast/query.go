package forecast

import (
	"github.com/paulmach/orb/geojson"

	"github.com/i474232898/gaf-clearance/internal/clearance"
	"github.com/i474232898/gaf-clearance/internal/gaf"
	"github.com/i474232898/gaf-clearance/internal/geo"
	"github.com/i474232898/gaf-clearance/internal/maparea"
)

// Clearance returns the installed clearance features of period under rule,
// regions in publication order.
func (s *Service) Clearance(period gaf.Period, rule clearance.Rule) *geojson.FeatureCollection {
	slots, _ := s.snapshot(period)

	var features []*geojson.Feature
	for _, sl := range slots {
		src := sl.day
		if rule.Night() {
			src = sl.night
		}
		for _, f := range src {
			features = append(features, f.GeoJSON())
		}
	}
	return geo.Collection(features)
}

// MapAreas returns the installed map areas of period as features.
func (s *Service) MapAreas(period gaf.Period) *geojson.FeatureCollection {
	slots, _ := s.snapshot(period)

	var features []*geojson.Feature
	for _, sl := range slots {
		for _, a := range sl.areas {
			features = append(features, a.Feature())
		}
	}
	return geo.Collection(features)
}

// Envelopes returns one bounding rectangle per group label, built from the
// boundary points of every map area in the group. Groups keep the order in
// which they first appear.
func (s *Service) Envelopes(period gaf.Period) *geojson.FeatureCollection {
	slots, generation := s.snapshot(period)

	key := envelopeKey{period: period, generation: generation}
	if fc, ok := s.envelopes.Get(key); ok {
		return fc
	}

	type group struct {
		label    string
		region   gaf.Region
		envelope *geo.Envelope
	}
	var groups []*group
	index := make(map[string]*group)

	for _, sl := range slots {
		for _, a := range sl.areas {
			label := a.GroupLabel()
			g, ok := index[label]
			if !ok {
				g = &group{label: label, region: a.Region, envelope: geo.NewEnvelope()}
				index[label] = g
				groups = append(groups, g)
			}
			g.envelope.Extend(a.Boundary)
		}
	}

	features := make([]*geojson.Feature, 0, len(groups))
	for _, g := range groups {
		if g.envelope.IsEmpty() {
			continue
		}
		features = append(features, geo.Feature(g.envelope.Polygon(), geojson.Properties{
			"groupLabel":  g.label,
			"gafAreaCode": g.region,
		}))
	}

	fc := geo.Collection(features)
	s.envelopes.Add(key, fc)
	return fc
}

// ValidityWindows returns the distinct validity windows of every stored forecast.
func (s *Service) ValidityWindows() []gaf.ValidityWindow {
	return s.store.ValidityWindows()
}

// MajorAreas returns the exports of the installed Major map areas of period.
func (s *Service) MajorAreas(period gaf.Period) []maparea.Export {
	slots, _ := s.snapshot(period)

	out := []maparea.Export{}
	for _, sl := range slots {
		for _, a := range maparea.Majors(sl.areas) {
			out = append(out, a.Export())
		}
	}
	return out
}

// Forecast returns the stored forecast document of region starting at from.
func (s *Service) Forecast(region gaf.Region, from string) (gaf.Forecast, error) {
	return s.store.Get(region, from)
}
