package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LocalBucket stores objects as files in a directory.
type LocalBucket struct {
	dir     string
	baseURL string
}

// NewLocalBucket creates the directory if needed. Public URLs are baseURL/name.
func NewLocalBucket(dir, baseURL string) (*LocalBucket, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create bucket dir: %w", err)
	}
	return &LocalBucket{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Dir returns the backing directory.
func (b *LocalBucket) Dir() string { return b.dir }

// Path resolves an object name to its file path.
func (b *LocalBucket) Path(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return filepath.Join(b.dir, name), nil
}

// Upload writes r to a new file. Existing objects are never overwritten.
func (b *LocalBucket) Upload(ctx context.Context, name string, r io.Reader, contentType string) error {
	p, err := b.Path(name)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if errors.Is(err, os.ErrExist) {
		return fmt.Errorf("%w: %s", ErrExists, name)
	}
	if err != nil {
		return fmt.Errorf("create object: %w", err)
	}

	_, err = io.Copy(f, &ctxReader{ctx: ctx, r: r})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(p)
		return fmt.Errorf("write object %s: %w", name, err)
	}
	return nil
}

// List returns the regular files in the bucket sorted by name.
func (b *LocalBucket) List(ctx context.Context) ([]Object, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, fmt.Errorf("list bucket: %w", err)
	}
	objects := make([]Object, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue // removed between ReadDir and Info
		}
		objects = append(objects, Object{
			Name:        e.Name(),
			Size:        info.Size(),
			ContentType: mime.TypeByExtension(filepath.Ext(e.Name())),
			UpdatedAt:   info.ModTime(),
		})
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Name < objects[j].Name })
	return objects, nil
}

// PublicURL returns the URL the object is served under.
func (b *LocalBucket) PublicURL(name string) string {
	return b.baseURL + "/" + url.PathEscape(name)
}

// Remove deletes objects; missing ones are ignored.
func (b *LocalBucket) Remove(ctx context.Context, names ...string) error {
	for _, name := range names {
		p, err := b.Path(name)
		if err != nil {
			return err
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", name, err)
		}
	}
	return nil
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
