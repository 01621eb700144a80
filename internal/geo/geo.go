// Package geo wraps the polygon primitives the clearance engine relies on:
// polygon construction, polygon/cell intersection, bounding envelopes and
// GeoJSON feature wrapping.
package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// ErrInvalidPolygon is returned for rings that are not closed or are too short
// to enclose an area.
var ErrInvalidPolygon = errors.New("invalid polygon")

// minArea below which a clipped result is treated as empty (square degrees).
const minArea = 1e-12

// Polygon builds a single-ring polygon from [lon, lat] points. The ring is
// used as given; unclosed rings are not repaired.
func Polygon(points [][2]float64) orb.Polygon {
	ring := make(orb.Ring, len(points))
	for i, p := range points {
		ring[i] = orb.Point(p)
	}
	return orb.Polygon{ring}
}

func validate(p orb.Polygon) error {
	if len(p) == 0 {
		return fmt.Errorf("%w: no rings", ErrInvalidPolygon)
	}
	for i, ring := range p {
		if !ring.Closed() {
			return fmt.Errorf("%w: ring %d is not closed (%d points)", ErrInvalidPolygon, i, len(ring))
		}
	}
	return nil
}

// Intersect clips subject against cell. Cells are axis-aligned grid squares,
// so clipping to the cell's bound is the exact intersection. ok is false when
// the intersection is empty. A concave subject can leave several disjoint
// pieces inside one cell; those come back as an orb.MultiPolygon, a single
// piece as an orb.Polygon. A panic inside the clipper is returned as an error.
func Intersect(subject, cell orb.Polygon) (result orb.Geometry, ok bool, err error) {
	if err := validate(subject); err != nil {
		return nil, false, fmt.Errorf("subject: %w", err)
	}
	if err := validate(cell); err != nil {
		return nil, false, fmt.Errorf("cell: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			result, ok, err = nil, false, fmt.Errorf("%w: clip panicked: %v", ErrInvalidPolygon, r)
		}
	}()

	bound := cell.Bound()
	if !bound.Intersects(subject.Bound()) {
		return nil, false, nil
	}

	clipped := clip.Polygon(bound, subject.Clone())
	if len(clipped) == 0 || len(clipped[0]) < 4 {
		return nil, false, nil
	}
	if planar.Area(clipped) < minArea {
		return nil, false, nil
	}

	pieces := split(bound, clipped)
	if len(pieces) == 1 {
		return pieces[0], true, nil
	}
	return pieces, true, nil
}

// split breaks a clipped polygon into its disjoint pieces. Clipping a concave
// ring to a box yields one ring whose pieces are joined by zero-width runs
// along the box edges; each piece is rebuilt from the runs of the ring that
// leave the box edges, closed by walking the box counter-clockwise. Polygons
// with holes, and any reconstruction that does not preserve the area, are
// returned whole.
func split(b orb.Bound, clipped orb.Polygon) orb.MultiPolygon {
	whole := orb.MultiPolygon{clipped}
	if len(clipped) != 1 {
		return whole
	}

	pts := openRing(clipped[0])
	if len(pts) < 3 {
		return whole
	}

	chains := interiorChains(b, pts)
	if len(chains) < 2 {
		return whole
	}

	starts := make([]float64, len(chains))
	for i, c := range chains {
		starts[i] = perimeterPos(b, c[0])
	}

	var out orb.MultiPolygon
	used := make([]bool, len(chains))
	for first := range chains {
		if used[first] {
			continue
		}

		var ring orb.Ring
		cur := first
		for {
			used[cur] = true
			ring = appendPoints(ring, chains[cur]...)

			end := chains[cur][len(chains[cur])-1]
			next := nextChain(b, perimeterPos(b, end), starts)
			ring = appendPoints(ring, cornersBetween(b, perimeterPos(b, end), starts[next])...)

			if next == first {
				break
			}
			if used[next] {
				return whole
			}
			cur = next
		}

		ring = appendPoints(ring, ring[0])
		if len(ring) < 4 {
			continue
		}
		if piece := (orb.Polygon{ring}); planar.Area(piece) >= minArea {
			out = append(out, piece)
		}
	}

	var total float64
	for _, piece := range out {
		total += planar.Area(piece)
	}
	if len(out) == 0 || math.Abs(total-planar.Area(clipped)) > 1e-9*math.Max(1, total) {
		return whole
	}
	return out
}

// openRing returns the ring without its closing point, counter-clockwise.
func openRing(r orb.Ring) []orb.Point {
	pts := make([]orb.Point, 0, len(r))
	pts = append(pts, r...)
	if len(pts) > 1 && pts[0] == pts[len(pts)-1] {
		pts = pts[:len(pts)-1]
	}
	if r.Orientation() == orb.CW {
		for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
			pts[i], pts[j] = pts[j], pts[i]
		}
	}
	return pts
}

// interiorChains cuts the ring at every edge that runs along a box side. Each
// returned chain starts and ends on the box boundary.
func interiorChains(b orb.Bound, pts []orb.Point) [][]orb.Point {
	n := len(pts)
	onSide := make([]bool, n)
	sideEdges := 0
	for i := range pts {
		if sides(b, pts[i])&sides(b, pts[(i+1)%n]) != 0 {
			onSide[i] = true
			sideEdges++
		}
	}
	if sideEdges == 0 || sideEdges == n {
		return nil
	}

	// Begin right after a side edge so no chain wraps the slice end.
	begin := 0
	for !onSide[(begin+n-1)%n] {
		begin++
	}

	var chains [][]orb.Point
	var chain []orb.Point
	for k := 0; k < n; k++ {
		i := (begin + k) % n
		if onSide[i] {
			if chain != nil {
				chains = append(chains, chain)
				chain = nil
			}
			continue
		}
		if chain == nil {
			chain = []orb.Point{pts[i]}
		}
		chain = append(chain, pts[(i+1)%n])
	}
	if chain != nil {
		chains = append(chains, chain)
	}
	return chains
}

const (
	sideBottom = 1 << iota
	sideRight
	sideTop
	sideLeft
)

const sideEps = 1e-12

func sides(b orb.Bound, p orb.Point) int {
	var s int
	if math.Abs(p[1]-b.Min[1]) <= sideEps {
		s |= sideBottom
	}
	if math.Abs(p[0]-b.Max[0]) <= sideEps {
		s |= sideRight
	}
	if math.Abs(p[1]-b.Max[1]) <= sideEps {
		s |= sideTop
	}
	if math.Abs(p[0]-b.Min[0]) <= sideEps {
		s |= sideLeft
	}
	return s
}

// perimeterPos is the counter-clockwise distance along the box boundary from
// the bottom-left corner to p, which must lie on the boundary.
func perimeterPos(b orb.Bound, p orb.Point) float64 {
	w, h := b.Max[0]-b.Min[0], b.Max[1]-b.Min[1]
	s := sides(b, p)
	switch {
	case s&sideBottom != 0:
		return p[0] - b.Min[0]
	case s&sideRight != 0:
		return w + p[1] - b.Min[1]
	case s&sideTop != 0:
		return w + h + b.Max[0] - p[0]
	default:
		return 2*w + h + b.Max[1] - p[1]
	}
}

func perimeter(b orb.Bound) float64 {
	return 2 * (b.Max[0] - b.Min[0] + b.Max[1] - b.Min[1])
}

// forward is the counter-clockwise boundary distance from position a to c.
func forward(b orb.Bound, a, c float64) float64 {
	d := math.Mod(c-a, perimeter(b))
	if d < 0 {
		d += perimeter(b)
	}
	return d
}

func nextChain(b orb.Bound, from float64, starts []float64) int {
	best, bestDist := 0, math.Inf(1)
	for i, t := range starts {
		if d := forward(b, from, t); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// cornersBetween lists the box corners passed walking counter-clockwise from
// position a to position c.
func cornersBetween(b orb.Bound, a, c float64) []orb.Point {
	w, h := b.Max[0]-b.Min[0], b.Max[1]-b.Min[1]
	corners := []struct {
		pos float64
		pt  orb.Point
	}{
		{w, orb.Point{b.Max[0], b.Min[1]}},
		{w + h, orb.Point{b.Max[0], b.Max[1]}},
		{2*w + h, orb.Point{b.Min[0], b.Max[1]}},
		{0, orb.Point{b.Min[0], b.Min[1]}},
	}

	span := forward(b, a, c)
	var passed []orb.Point
	var offsets []float64
	for _, corner := range corners {
		d := forward(b, a, corner.pos)
		if d <= sideEps || d >= span-sideEps {
			continue
		}
		i := len(offsets)
		for i > 0 && offsets[i-1] > d {
			i--
		}
		offsets = append(offsets[:i], append([]float64{d}, offsets[i:]...)...)
		passed = append(passed[:i], append([]orb.Point{corner.pt}, passed[i:]...)...)
	}
	return passed
}

func appendPoints(ring orb.Ring, pts ...orb.Point) orb.Ring {
	for _, p := range pts {
		if len(ring) > 0 && ring[len(ring)-1] == p {
			continue
		}
		ring = append(ring, p)
	}
	return ring
}

// Envelope accumulates the bounding box of a set of point lists.
type Envelope struct {
	bound orb.Bound
	empty bool
}

// NewEnvelope returns an empty envelope.
func NewEnvelope() *Envelope {
	return &Envelope{empty: true}
}

// Extend grows the envelope to include points.
func (e *Envelope) Extend(points [][2]float64) {
	for _, p := range points {
		pt := orb.Point(p)
		if e.empty {
			e.bound = orb.Bound{Min: pt, Max: pt}
			e.empty = false
			continue
		}
		e.bound = e.bound.Extend(pt)
	}
}

// IsEmpty reports whether no point has been added.
func (e *Envelope) IsEmpty() bool { return e.empty }

// Polygon returns the envelope as a closed rectangular polygon.
func (e *Envelope) Polygon() orb.Polygon {
	return e.bound.ToPolygon()
}

// Feature wraps a geometry with properties.
func Feature(g orb.Geometry, props geojson.Properties) *geojson.Feature {
	f := geojson.NewFeature(g)
	for k, v := range props {
		f.Properties[k] = v
	}
	return f
}

// Collection wraps features into a FeatureCollection. A nil slice yields an
// empty, non-null features array.
func Collection(features []*geojson.Feature) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, f := range features {
		fc.Append(f)
	}
	return fc
}
