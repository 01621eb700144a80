package maparea

import "github.com/i474232898/gaf-clearance/internal/gaf"

// Build flattens a forecast into map areas: each Major area followed
// immediately by its Sub areas, in source order.
func Build(f gaf.Forecast) []MapArea {
	result := make([]MapArea, 0, len(f.Areas))

	for _, area := range f.Areas {
		majorIndex := len(result)
		major := newMapArea(KindMajor, f.GAFAreaID, area.AreaID, "", majorIndex, area.Boundary, area.DayCloudBase)
		major.FreezingLevel = area.FreezingLevel
		major.WxConds = area.WxCond
		result = append(result, major)

		for _, sub := range area.SubAreas {
			s := newMapArea(KindSub, f.GAFAreaID, area.AreaID, sub.SubAreaID, majorIndex, sub.Boundary, sub.DayCloudBase)
			s.FreezingLevel = area.FreezingLevel
			result = append(result, s)
		}
	}

	return result
}

// Majors returns only the Major areas, in order.
func Majors(areas []MapArea) []MapArea {
	var out []MapArea
	for _, a := range areas {
		if a.Kind == KindMajor {
			out = append(out, a)
		}
	}
	return out
}

// MajorOf returns the owning Major area of a.
func MajorOf(areas []MapArea, a MapArea) MapArea {
	return areas[a.MajorIndex]
}
