// Package render draws a sphere layout as an SVG image.
package render

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"sphere-cms/internal/sphere"

	svg "github.com/ajstarks/svgo"
	"github.com/golang/geo/s2"
)

// ErrInvalidOptions is returned for unusable render options.
var ErrInvalidOptions = errors.New("render: invalid options")

// Projection selects how 3D points map onto the image.
type Projection string

const (
	// Perspective looks at the sphere from a camera on the +Z axis.
	Perspective Projection = "perspective"
	// Equirect unrolls the sphere onto a plate carrée map.
	Equirect Projection = "equirect"
)

// ParseProjection accepts "perspective" (default for "") and "equirect".
func ParseProjection(s string) (Projection, error) {
	switch Projection(strings.ToLower(strings.TrimSpace(s))) {
	case "", Perspective:
		return Perspective, nil
	case Equirect:
		return Equirect, nil
	}
	return "", fmt.Errorf("%w: unknown projection %q", ErrInvalidOptions, s)
}

// Options control the output image.
type Options struct {
	Width, Height  int
	Projection     Projection
	Yaw            float64 // degrees around the vertical axis
	FOV            float64 // vertical field of view in degrees
	CameraDistance float64
	Background     string
	LineColor      string
	LineOpacity    float64
}

// DefaultOptions mirrors the scene the images were first shown in:
// camera at z=6 with a 60° field of view, grey backdrop, green lines.
func DefaultOptions() Options {
	return Options{
		Width:          800,
		Height:         600,
		Projection:     Perspective,
		FOV:            60,
		CameraDistance: 6,
		Background:     "#b0b0b0",
		LineColor:      "#A8FF9E",
		LineOpacity:    0.7,
	}
}

func (o Options) validate() error {
	if o.Width <= 0 || o.Height <= 0 {
		return fmt.Errorf("%w: size %dx%d", ErrInvalidOptions, o.Width, o.Height)
	}
	if math.IsNaN(o.Yaw) || math.IsInf(o.Yaw, 0) {
		return fmt.Errorf("%w: yaw %v", ErrInvalidOptions, o.Yaw)
	}
	if o.Projection == Perspective {
		if !(o.FOV > 0 && o.FOV < 180) {
			return fmt.Errorf("%w: fov %v", ErrInvalidOptions, o.FOV)
		}
		if !(o.CameraDistance > 0) {
			return fmt.Errorf("%w: camera distance %v", ErrInvalidOptions, o.CameraDistance)
		}
	}
	return nil
}

// sprite is a projected point ready to draw.
type sprite struct {
	index   int
	x, y    float64
	size    float64 // pixels
	depth   float64
	visible bool
}

// SVG writes the layout to w. urls[i], when present, is drawn as the sprite
// for point i; points without a URL become circles.
func SVG(w io.Writer, layout *sphere.Layout, urls []string, opts Options) error {
	if layout == nil {
		return fmt.Errorf("%w: nil layout", ErrInvalidOptions)
	}
	if _, err := ParseProjection(string(opts.Projection)); err != nil {
		return err
	}
	if opts.Projection == "" {
		opts.Projection = Perspective
	}
	if err := opts.validate(); err != nil {
		return err
	}

	var sprites []sprite
	switch opts.Projection {
	case Equirect:
		sprites = projectEquirect(layout, opts)
	default:
		sprites = projectPerspective(layout, opts)
	}

	canvas := svg.New(w)
	canvas.Start(opts.Width, opts.Height)
	canvas.Rect(0, 0, opts.Width, opts.Height, "fill:"+opts.Background)

	canvas.Gstyle(fmt.Sprintf("stroke:%s;stroke-width:1;stroke-opacity:%g", opts.LineColor, opts.LineOpacity))
	for _, e := range layout.Edges {
		a, b := sprites[e.A], sprites[e.B]
		if !a.visible || !b.visible {
			continue
		}
		// Segments that wrap around a flat map would cross the whole image.
		if opts.Projection == Equirect && math.Abs(a.x-b.x) > float64(opts.Width)/2 {
			continue
		}
		canvas.Line(round(a.x), round(a.y), round(b.x), round(b.y))
	}
	canvas.Gend()

	order := make([]sprite, 0, len(sprites))
	for _, s := range sprites {
		if s.visible {
			order = append(order, s)
		}
	}
	// Far sprites first so near ones paint over them.
	sort.SliceStable(order, func(i, j int) bool { return order[i].depth > order[j].depth })
	for _, s := range order {
		px := max(1, round(s.size))
		if s.index < len(urls) && urls[s.index] != "" {
			canvas.Image(round(s.x-s.size/2), round(s.y-s.size/2), px, px, urls[s.index])
		} else {
			canvas.Circle(round(s.x), round(s.y), max(1, px/2), "fill:#ffffff;stroke:#555555")
		}
	}
	canvas.End()
	return nil
}

func projectPerspective(layout *sphere.Layout, opts Options) []sprite {
	yaw := opts.Yaw * math.Pi / 180
	sin, cos := math.Sincos(yaw)
	focal := float64(opts.Height) / 2 / math.Tan(opts.FOV*math.Pi/360)
	cx, cy := float64(opts.Width)/2, float64(opts.Height)/2

	out := make([]sprite, len(layout.Points))
	for i, p := range layout.Points {
		x := p.X*cos + p.Z*sin
		z := -p.X*sin + p.Z*cos
		depth := opts.CameraDistance - z
		if depth < 1e-3 {
			out[i] = sprite{index: i}
			continue
		}
		out[i] = sprite{
			index:   i,
			x:       cx + focal*x/depth,
			y:       cy - focal*p.Y/depth,
			size:    focal * layout.Size / depth,
			depth:   depth,
			visible: true,
		}
	}
	return out
}

func projectEquirect(layout *sphere.Layout, opts Options) []sprite {
	w, h := float64(opts.Width), float64(opts.Height)
	xScale := w
	proj := s2.NewPlateCarreeProjection(xScale)
	// One radius spans a quarter of the map width at the equator.
	size := layout.Size / math.Max(layout.Radius, 1e-9) * w / (2 * math.Pi)

	out := make([]sprite, len(layout.Points))
	for i, p := range layout.Points {
		// s2 treats Z as the pole; the layout sweeps latitude along Y.
		r2p := proj.Project(s2.PointFromCoords(p.X, p.Z, p.Y))
		out[i] = sprite{
			index:   i,
			x:       (r2p.X + xScale) / (2 * xScale) * w,
			y:       (-r2p.Y + xScale/2) / xScale * h,
			size:    size,
			visible: true,
		}
	}
	return out
}

func round(v float64) int {
	return int(math.Round(v))
}
