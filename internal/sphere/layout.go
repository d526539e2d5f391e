package sphere

import (
	"encoding/json"
	"math"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// Layout bundles everything a renderer needs for one image set:
// the points, the ring connecting them and the sprite size.
type Layout struct {
	Radius float64
	Points []Point3
	Edges  []Edge
	Size   float64

	// Separation is MinSeparation(Points), or zero when the layout has more
	// than SeparationLimit points.
	Separation s1.Angle
}

// SeparationLimit is the largest layout NewLayout measures with the
// quadratic MinSeparation scan.
const SeparationLimit = 2048

// NewLayout computes the layout for n images on a sphere of the given radius.
func NewLayout(n int, radius float64) (*Layout, error) {
	points, err := Distribute(n, radius)
	if err != nil {
		return nil, err
	}
	l := &Layout{
		Radius: radius,
		Points: points,
		Edges:  CycleEdges(n),
		Size:   ParticleSize(n),
	}
	if n <= SeparationLimit {
		l.Separation = MinSeparation(points)
	}
	return l, nil
}

// Len returns the number of points.
func (l *Layout) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Points)
}

// Segments resolves every edge to its two endpoints.
func (l *Layout) Segments() [][2]Point3 {
	segs := make([][2]Point3, 0, len(l.Edges))
	for _, e := range l.Edges {
		segs = append(segs, [2]Point3{l.Points[e.A], l.Points[e.B]})
	}
	return segs
}

// MinSeparation returns the smallest great-circle angle between any two of
// the given points, measured from the origin. Fewer than two points yield
// the full half-turn.
func MinSeparation(points []Point3) s1.Angle {
	best := s1.Angle(math.Pi)
	dirs := make([]s2.Point, len(points))
	for i, p := range points {
		dirs[i] = s2.PointFromCoords(p.X, p.Y, p.Z)
	}
	for i := 0; i < len(dirs); i++ {
		for j := i + 1; j < len(dirs); j++ {
			if d := dirs[i].Distance(dirs[j]); d < best {
				best = d
			}
		}
	}
	return best
}

type layoutJSON struct {
	Count         int          `json:"count"`
	Radius        float64      `json:"radius"`
	Size          float64      `json:"size"`
	Points        [][3]float64 `json:"points"`
	Edges         [][2]int     `json:"edges"`
	MinSeparation *float64     `json:"min_separation_deg,omitempty"`
}

// MarshalJSON encodes points as [x, y, z] triples and edges as [a, b] pairs.
func (l *Layout) MarshalJSON() ([]byte, error) {
	out := layoutJSON{
		Count:         len(l.Points),
		Radius:        l.Radius,
		Size:          l.Size,
		Points:        make([][3]float64, len(l.Points)),
		Edges:         make([][2]int, len(l.Edges)),
	}
	if l.Separation > 0 {
		deg := l.Separation.Degrees()
		out.MinSeparation = &deg
	}
	for i, p := range l.Points {
		out.Points[i] = [3]float64{p.X, p.Y, p.Z}
	}
	for i, e := range l.Edges {
		out.Edges[i] = [2]int{e.A, e.B}
	}
	return json.Marshal(out)
}
