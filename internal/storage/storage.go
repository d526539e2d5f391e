// Package storage is the object storage the CMS uploads image files to.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

var (
	// ErrInvalidName is returned for object names that are empty or could
	// escape the bucket.
	ErrInvalidName = errors.New("invalid object name")
	// ErrExists is returned when an upload would overwrite an object.
	ErrExists = errors.New("object already exists")
)

// Object describes one stored file.
type Object struct {
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Bucket is a flat namespace of files with public URLs.
type Bucket interface {
	Upload(ctx context.Context, name string, r io.Reader, contentType string) error
	List(ctx context.Context) ([]Object, error)
	PublicURL(name string) string
	Remove(ctx context.Context, names ...string) error
}

// ValidateName rejects names that are not a single path element.
func ValidateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, "/\\\x00"):
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// ObjectName builds the stored name for an uploaded file:
// "<unix-millis>-<base name of original>".
func ObjectName(now time.Time, original string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(original), "\\", "/"))
	if base == "." || base == "/" || base == ".." || base == "" {
		base = "file"
	}
	return fmt.Sprintf("%d-%s", now.UnixMilli(), base)
}

// IsPlaceholder reports objects that hosted buckets create to keep empty
// folders alive; they are not images.
func IsPlaceholder(name string) bool {
	return name == "" || strings.HasPrefix(name, ".")
}
