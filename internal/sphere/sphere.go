// Package sphere places N points on a sphere with golden-angle spiral sampling
// and derives the cyclic edge list used to connect them.
//
// Every function here is pure: no shared state, no randomness. Calls with the
// same arguments return bit-identical results and may run concurrently.
package sphere

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// ErrInvalidArgument is returned for a negative count or a non-positive radius.
var ErrInvalidArgument = errors.New("sphere: invalid argument")

// Point3 is a position in 3D space.
type Point3 = r3.Vec

// Edge links point A to point B, where B == (A+1) mod N.
type Edge struct {
	A int `json:"a"`
	B int `json:"b"`
}

// goldenAngle is π·(3−√5), the azimuth step between consecutive points.
var goldenAngle = math.Pi * (3 - math.Sqrt(5))

// Size bounds for ParticleSize.
const (
	MinParticleSize = 0.2
	MaxParticleSize = 0.5
)

// Distribute returns n points spread evenly over a sphere of the given radius
// centred on the origin, ordered by generation index.
//
// y steps linearly from just above -1 to just below +1; the azimuth advances by
// the golden angle each step so that neighbours never line up into meridians.
func Distribute(n int, radius float64) ([]Point3, error) {
	if err := validate(n, radius); err != nil {
		return nil, err
	}
	points := make([]Point3, n)
	if n == 0 {
		return points, nil
	}
	offset := 2 / float64(n)
	for i := 0; i < n; i++ {
		y := (float64(i)*offset - 1) + offset/2
		r := math.Sqrt(math.Max(0, 1-y*y))
		phi := float64(i) * goldenAngle
		points[i] = Point3{
			X: math.Cos(phi) * r * radius,
			Y: y * radius,
			Z: math.Sin(phi) * r * radius,
		}
	}
	return points, nil
}

func validate(n int, radius float64) error {
	if n < 0 {
		return fmt.Errorf("%w: count %d is negative", ErrInvalidArgument, n)
	}
	if math.IsNaN(radius) || math.IsInf(radius, 0) || radius <= 0 {
		return fmt.Errorf("%w: radius %v must be a positive finite number", ErrInvalidArgument, radius)
	}
	return nil
}

// CycleEdges returns the ring i -> (i+1) mod n over n points.
// Fewer than two points have no drawable segment, so the result is empty
// rather than holding a self loop.
func CycleEdges(n int) []Edge {
	if n < 2 {
		return []Edge{}
	}
	edges := make([]Edge, n)
	for i := 0; i < n; i++ {
		edges[i] = Edge{A: i, B: (i + 1) % n}
	}
	return edges
}

// ParticleSize maps a point count to a sprite size that shrinks as the sphere
// fills up, clamped to [MinParticleSize, MaxParticleSize].
func ParticleSize(n int) float64 {
	if n < 1 {
		n = 1
	}
	size := 2 / math.Sqrt(float64(n))
	return math.Max(MinParticleSize, math.Min(MaxParticleSize, size))
}

// Normal returns the unit vector from the origin through p.
// The zero vector has no direction and is returned unchanged.
func Normal(p Point3) Point3 {
	if r3.Norm(p) == 0 {
		return p
	}
	return r3.Unit(p)
}
