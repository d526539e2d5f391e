package render

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"sphere-cms/internal/sphere"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLayout(t *testing.T, n int) *sphere.Layout {
	t.Helper()
	l, err := sphere.NewLayout(n, 2)
	require.NoError(t, err)
	return l
}

func TestParseProjection(t *testing.T) {
	tests := []struct {
		in      string
		want    Projection
		wantErr bool
	}{
		{"", Perspective, false},
		{"perspective", Perspective, false},
		{" Equirect ", Equirect, false},
		{"mercator", "", true},
	}
	for _, tt := range tests {
		got, err := ParseProjection(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidOptions, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestSVG_PerspectiveSpritesAndLines(t *testing.T) {
	l := mustLayout(t, 4)
	urls := []string{"a.png", "b.png", "", "d.png"}

	var buf bytes.Buffer
	require.NoError(t, SVG(&buf, l, urls, DefaultOptions()))
	out := buf.String()

	assert.True(t, strings.HasPrefix(strings.TrimSpace(out), "<?xml"))
	assert.Contains(t, out, `width="800"`)
	assert.Contains(t, out, "fill:#b0b0b0")
	assert.Contains(t, out, "stroke:#A8FF9E")
	assert.Equal(t, 4, strings.Count(out, "<line "), "one line per edge")
	assert.Equal(t, 3, strings.Count(out, "<image "))
	assert.Equal(t, 1, strings.Count(out, "<circle "))
	assert.Contains(t, out, `"a.png"`)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(out), "</svg>"))
}

func TestSVG_EmptyLayout(t *testing.T) {
	l := mustLayout(t, 0)
	var buf bytes.Buffer
	require.NoError(t, SVG(&buf, l, nil, DefaultOptions()))
	out := buf.String()
	assert.NotContains(t, out, "<line ")
	assert.NotContains(t, out, "<circle ")
	assert.Contains(t, out, "<rect ")
}

func TestSVG_SinglePointHasNoLines(t *testing.T) {
	l := mustLayout(t, 1)
	var buf bytes.Buffer
	require.NoError(t, SVG(&buf, l, nil, DefaultOptions()))
	assert.Equal(t, 0, strings.Count(buf.String(), "<line "))
	assert.Equal(t, 1, strings.Count(buf.String(), "<circle "))
}

func TestSVG_Equirect(t *testing.T) {
	l := mustLayout(t, 30)
	opts := DefaultOptions()
	opts.Projection = Equirect

	var buf bytes.Buffer
	require.NoError(t, SVG(&buf, l, nil, opts))
	out := buf.String()
	assert.Equal(t, 30, strings.Count(out, "<circle "))
	lines := strings.Count(out, "<line ")
	assert.LessOrEqual(t, lines, 30)
	assert.Greater(t, lines, 0)
}

func TestSVG_YawChangesOutput(t *testing.T) {
	l := mustLayout(t, 12)
	var a, b bytes.Buffer
	opts := DefaultOptions()
	require.NoError(t, SVG(&a, l, nil, opts))
	opts.Yaw = 90
	require.NoError(t, SVG(&b, l, nil, opts))
	assert.NotEqual(t, a.String(), b.String())
}

func TestSVG_InvalidOptions(t *testing.T) {
	l := mustLayout(t, 3)
	tests := []struct {
		name   string
		layout *sphere.Layout
		mutate func(*Options)
	}{
		{"nil layout", nil, func(*Options) {}},
		{"zero width", l, func(o *Options) { o.Width = 0 }},
		{"negative height", l, func(o *Options) { o.Height = -1 }},
		{"bad fov", l, func(o *Options) { o.FOV = 0 }},
		{"bad camera", l, func(o *Options) { o.CameraDistance = 0 }},
		{"bad projection", l, func(o *Options) { o.Projection = "fisheye" }},
		{"nan yaw", l, func(o *Options) { o.Yaw = math.NaN() }},
		{"infinite yaw", l, func(o *Options) { o.Yaw = math.Inf(-1) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.mutate(&opts)
			var buf bytes.Buffer
			err := SVG(&buf, tt.layout, nil, opts)
			if !errors.Is(err, ErrInvalidOptions) {
				t.Fatalf("err = %v, want ErrInvalidOptions", err)
			}
			if buf.Len() != 0 {
				t.Errorf("wrote %d bytes on error", buf.Len())
			}
		})
	}
}
