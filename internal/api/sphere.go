package api

import (
	"bytes"
	"math"
	"net/http"
	"strconv"

	"sphere-cms/internal/gallery"
	"sphere-cms/internal/render"
	"sphere-cms/internal/sphere"
)

// handleSphere returns the gallery layout, or a synthetic one when n is given.
func (s *Server) handleSphere(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("n") == "" && q.Get("radius") == "" {
		writeJSON(w, s.gallery.Snapshot())
		return
	}

	snap := s.gallery.Snapshot()
	n := len(snap.URLs)
	if v := q.Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed > s.sphereConfig().MaxPoints {
			writeError(w, 400, "invalid argument: n")
			return
		}
		n = parsed
	}
	radius := s.sphereConfig().Radius
	if v := q.Get("radius"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, 400, "invalid argument: radius")
			return
		}
		radius = parsed
	}

	layout, err := sphere.NewLayout(n, radius)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	urls := []string{}
	if n == len(snap.URLs) {
		urls = snap.URLs
	}
	writeJSON(w, gallery.Snapshot{URLs: urls, Layout: layout, UpdatedAt: snap.UpdatedAt})
}

func (s *Server) handleSphereSVG(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cfg := s.sphereConfig()

	opts := render.DefaultOptions()
	opts.Width, opts.Height = cfg.Width, cfg.Height

	proj, err := render.ParseProjection(q.Get("projection"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	opts.Projection = proj

	for key, dst := range map[string]*int{"w": &opts.Width, "h": &opts.Height} {
		if v := q.Get(key); v != "" {
			parsed, err := strconv.Atoi(v)
			if err != nil {
				writeError(w, 400, "invalid argument: "+key)
				return
			}
			*dst = parsed
		}
	}
	if v := q.Get("yaw"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
			writeError(w, 400, "invalid argument: yaw")
			return
		}
		opts.Yaw = parsed
	}

	snap := s.gallery.Snapshot()
	var buf bytes.Buffer
	if err := render.SVG(&buf, snap.Layout, snap.URLs, opts); err != nil {
		writeErr(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Write(buf.Bytes())
}
