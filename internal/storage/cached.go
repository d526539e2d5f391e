package storage

import (
	"context"
	"io"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// CachedLister wraps a Bucket so that List results are reused for a TTL.
// Concurrent List calls that miss the cache share one underlying request.
// Writes through the wrapper invalidate the cache.
type CachedLister struct {
	Bucket
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	objects []Object
	expires time.Time
	gen     uint64 // bumped by Invalidate
	group   singleflight.Group
}

// NewCachedLister wraps b with a listing cache.
func NewCachedLister(b Bucket, ttl time.Duration) *CachedLister {
	return &CachedLister{Bucket: b, ttl: ttl, now: time.Now}
}

// List returns the cached listing or fetches a fresh one. The shared fetch
// is detached from any one caller's cancellation; each caller still stops
// waiting when its own ctx is done.
func (c *CachedLister) List(ctx context.Context) ([]Object, error) {
	objs, gen, ok := c.cached()
	if ok {
		return objs, nil
	}
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan("list-"+strconv.FormatUint(gen, 10), func() (interface{}, error) {
		if objs, _, ok := c.cached(); ok {
			return objs, nil
		}
		objs, err := c.Bucket.List(fetchCtx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		// A listing that started before Invalidate must not repopulate the cache.
		if c.gen == gen {
			c.objects = objs
			c.expires = c.now().Add(c.ttl)
		}
		c.mu.Unlock()
		return objs, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return clone(res.Val.([]Object)), nil
	}
}

// cached returns the live listing, if any, and the current generation.
func (c *CachedLister) cached() ([]Object, uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.objects == nil || !c.now().Before(c.expires) {
		return nil, c.gen, false
	}
	return clone(c.objects), c.gen, true
}

// Invalidate drops the cached listing. Fetches already in flight are not
// stored, and later List calls start a new fetch.
func (c *CachedLister) Invalidate() {
	c.mu.Lock()
	c.objects = nil
	c.gen++
	c.mu.Unlock()
}

// Upload stores the object and invalidates the listing.
func (c *CachedLister) Upload(ctx context.Context, name string, r io.Reader, contentType string) error {
	defer c.Invalidate()
	return c.Bucket.Upload(ctx, name, r, contentType)
}

// Remove deletes the objects and invalidates the listing.
func (c *CachedLister) Remove(ctx context.Context, names ...string) error {
	defer c.Invalidate()
	return c.Bucket.Remove(ctx, names...)
}

func clone(objs []Object) []Object {
	out := make([]Object, len(objs))
	copy(out, objs)
	return out
}
