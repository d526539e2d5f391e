// Package gallery keeps the sphere layout in step with the images currently
// in the bucket.
package gallery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sphere-cms/internal/logger"
	"sphere-cms/internal/sphere"
	"sphere-cms/internal/storage"
)

// Snapshot is the image set and its layout at one point in time.
type Snapshot struct {
	URLs      []string       `json:"urls"`
	Layout    *sphere.Layout `json:"layout"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Gallery recomputes the layout whenever the number of images changes.
type Gallery struct {
	bucket storage.Bucket

	// refreshMu serializes Refresh so a slow listing never overwrites a
	// newer one.
	refreshMu sync.Mutex

	mu     sync.RWMutex
	radius float64
	urls   []string
	layout *sphere.Layout
	stamp  time.Time
}

// New creates a gallery over bucket with an empty layout.
func New(bucket storage.Bucket, radius float64) (*Gallery, error) {
	layout, err := sphere.NewLayout(0, radius)
	if err != nil {
		return nil, err
	}
	return &Gallery{bucket: bucket, radius: radius, layout: layout, urls: []string{}}, nil
}

// Snapshot returns the current image URLs and layout.
func (g *Gallery) Snapshot() Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	urls := make([]string, len(g.urls))
	copy(urls, g.urls)
	return Snapshot{URLs: urls, Layout: g.layout, UpdatedAt: g.stamp}
}

// SetRadius changes the sphere radius and rebuilds the layout.
func (g *Gallery) SetRadius(radius float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	layout, err := sphere.NewLayout(len(g.urls), radius)
	if err != nil {
		return err
	}
	g.radius = radius
	g.layout = layout
	return nil
}

// Refresh lists the bucket and updates the snapshot. The layout is rebuilt
// only when the image count changed.
func (g *Gallery) Refresh(ctx context.Context) (Snapshot, error) {
	g.refreshMu.Lock()
	defer g.refreshMu.Unlock()

	objs, err := g.bucket.List(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("refresh gallery: %w", err)
	}
	urls := make([]string, 0, len(objs))
	for _, o := range objs {
		if storage.IsPlaceholder(o.Name) {
			continue
		}
		urls = append(urls, g.bucket.PublicURL(o.Name))
	}

	g.mu.Lock()
	if len(urls) != g.layout.Len() {
		layout, err := sphere.NewLayout(len(urls), g.radius)
		if err != nil {
			g.mu.Unlock()
			return Snapshot{}, err
		}
		g.layout = layout
		logger.Info("Gallery", fmt.Sprintf("Layout rebuilt for %d images", len(urls)))
	}
	g.urls = urls
	g.stamp = time.Now()
	g.mu.Unlock()

	return g.Snapshot(), nil
}

// Poll refreshes every interval until ctx is done.
func (g *Gallery) Poll(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := g.Refresh(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("Gallery", err.Error())
			}
		}
	}
}
