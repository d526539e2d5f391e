package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"sphere-cms/internal/auth"
	"sphere-cms/internal/cms"
	"sphere-cms/internal/config"
	"sphere-cms/internal/db"
	"sphere-cms/internal/gallery"
	"sphere-cms/internal/logger"
	"sphere-cms/internal/render"
	"sphere-cms/internal/sphere"
	"sphere-cms/internal/storage"
)

// Server is the HTTP API server that connects the image records, the object
// bucket and the sphere gallery.
type Server struct {
	cfg     *config.Config
	db      *db.DB
	cms     *cms.Service
	gallery *gallery.Gallery
	admin   *auth.Admin
	files   *storage.LocalBucket
	started time.Time

	// mu guards cfg.Sphere, which POST /api/config rewrites.
	mu sync.RWMutex
}

// NewServer creates a Server. database may be nil in tests that never touch
// /api/config persistence.
func NewServer(cfg *config.Config, database *db.DB, service *cms.Service, gal *gallery.Gallery, admin *auth.Admin) *Server {
	return &Server{
		cfg:     cfg,
		db:      database,
		cms:     service,
		gallery: gal,
		admin:   admin,
		started: time.Now(),
	}
}

// ServeFiles exposes the objects of a local bucket under /files/{name}.
func (s *Server) ServeFiles(b *storage.LocalBucket) {
	s.files = b
}

// Handler returns the HTTP handler with all API routes and CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/config", s.handleGetConfig)
	mux.HandleFunc("POST /api/config", s.requireAdmin(s.handleSetConfig))
	// Auth
	mux.HandleFunc("POST /api/auth/login", s.handleAuthLogin)
	mux.HandleFunc("POST /api/auth/logout", s.handleAuthLogout)
	mux.HandleFunc("GET /api/auth/status", s.handleAuthStatus)
	// Images
	mux.HandleFunc("GET /api/images", s.handleListImages)
	mux.HandleFunc("GET /api/images/{id}", s.handleGetImage)
	mux.HandleFunc("POST /api/images", s.requireAdmin(s.handleCreateImage))
	mux.HandleFunc("PUT /api/images/{id}", s.requireAdmin(s.handleUpdateImage))
	mux.HandleFunc("DELETE /api/images/{id}", s.requireAdmin(s.handleDeleteImage))
	mux.HandleFunc("DELETE /api/details/{id}", s.requireAdmin(s.handleDeleteDetail))
	// Sphere
	mux.HandleFunc("GET /api/sphere", s.handleSphere)
	mux.HandleFunc("GET /api/sphere.svg", s.handleSphereSVG)
	mux.HandleFunc("GET /files/{name}", s.handleFile)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(204)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// errorStatus maps domain errors onto HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, cms.ErrValidation),
		errors.Is(err, sphere.ErrInvalidArgument),
		errors.Is(err, render.ErrInvalidOptions),
		errors.Is(err, storage.ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrDisabled):
		return http.StatusForbidden
	case errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrExists):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeErr writes err with the status errorStatus picks for it.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	code := errorStatus(err)
	if code == http.StatusInternalServerError {
		logger.Error("API", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
	}
	writeError(w, code, err.Error())
}

// --- Handlers ---

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.gallery.Snapshot()
	result := map[string]interface{}{
		"images":        len(snap.URLs),
		"particle_size": snap.Layout.Size,
		"admin_enabled": s.admin.Enabled(),
		"uptime_sec":    int64(time.Since(s.started).Seconds()),
	}
	if !snap.UpdatedAt.IsZero() {
		result["gallery_updated"] = snap.UpdatedAt.Unix()
	}
	writeJSON(w, result)
}

func (s *Server) sphereConfig() config.SphereConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Sphere
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.sphereConfig())
}

func (s *Server) handleSetConfig(w http.ResponseWriter, r *http.Request) {
	var patch map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, 400, "invalid json")
		return
	}

	next := s.sphereConfig()
	for key, dst := range map[string]interface{}{
		"radius": &next.Radius,
		"width":  &next.Width,
		"height": &next.Height,
	} {
		v, ok := patch[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(v, dst); err != nil {
			writeError(w, 400, "invalid "+key)
			return
		}
	}
	if !(next.Radius > 0) || math.IsInf(next.Radius, 0) {
		writeError(w, 400, "radius must be a positive finite number")
		return
	}
	if next.Width <= 0 || next.Height <= 0 {
		writeError(w, 400, "width and height must be positive")
		return
	}

	if s.db != nil {
		if err := s.db.SaveSphereConfig(next); err != nil {
			writeErr(w, r, err)
			return
		}
	}
	if err := s.gallery.SetRadius(next.Radius); err != nil {
		writeErr(w, r, err)
		return
	}
	s.mu.Lock()
	s.cfg.Sphere = next
	s.mu.Unlock()

	logger.Info("Config", fmt.Sprintf("Sphere radius=%g size=%dx%d", next.Radius, next.Width, next.Height))
	writeJSON(w, next)
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	if s.files == nil {
		writeError(w, 404, "file serving disabled")
		return
	}
	path, err := s.files.Path(r.PathValue("name"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeFile(w, r, path)
}
