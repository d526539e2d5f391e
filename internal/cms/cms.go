// Package cms implements the admin operations on image records: create,
// edit and delete images together with their ordered detail files.
package cms

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"sphere-cms/internal/db"
	"sphere-cms/internal/logger"
	"sphere-cms/internal/storage"

	"golang.org/x/sync/errgroup"
)

// ErrValidation marks a request the caller must fix.
var ErrValidation = errors.New("validation failed")

// Store is the persistence the service needs. *db.DB satisfies it.
type Store interface {
	ListImages(ctx context.Context) ([]db.Image, error)
	GetImage(ctx context.Context, id string) (db.Image, error)
	AddImage(ctx context.Context, in db.ImageInput) (db.Image, error)
	UpdateImage(ctx context.Context, id string, p db.ImagePatch) (db.Image, error)
	DeleteImage(ctx context.Context, id string) error
	ListImageDetails(ctx context.Context, imageID string) ([]db.ImageDetail, error)
	AddImageDetail(ctx context.Context, in db.DetailInput) (db.ImageDetail, error)
	DeleteImageDetail(ctx context.Context, id string) error
}

// File is an upload waiting to be stored.
type File struct {
	Name        string // original client file name
	ContentType string
	Body        io.Reader
}

// SaveRequest creates an image when ID is empty and updates it otherwise.
// On update, nil fields are left unchanged and a nil File keeps the current
// primary file.
type SaveRequest struct {
	ID          string
	Name        *string
	Description *string
	Date        *string
	Category    *string
	File        *File
	Details     []File
}

// Entry is an image with resolved URLs and its details.
type Entry struct {
	db.Image
	URL     string   `json:"url"`
	Details []Detail `json:"details"`
}

// Detail is a detail row with its public URL.
type Detail struct {
	db.ImageDetail
	URL string `json:"url"`
}

// Service coordinates the record store and the object bucket.
type Service struct {
	store  Store
	bucket storage.Bucket
	now    func() time.Time

	// maxParallelUploads bounds concurrent detail uploads.
	maxParallelUploads int
}

// NewService wires a service to its collaborators.
func NewService(store Store, bucket storage.Bucket) *Service {
	return &Service{store: store, bucket: bucket, now: time.Now, maxParallelUploads: 4}
}

// List returns every image, newest first, with public URLs.
func (s *Service) List(ctx context.Context) ([]Entry, error) {
	images, err := s.store.ListImages(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, len(images))
	for i, img := range images {
		entries[i] = s.entry(img, nil)
	}
	return entries, nil
}

// Get returns one image with its details in display order.
func (s *Service) Get(ctx context.Context, id string) (Entry, error) {
	img, err := s.store.GetImage(ctx, id)
	if err != nil {
		return Entry{}, err
	}
	details, err := s.store.ListImageDetails(ctx, id)
	if err != nil {
		return Entry{}, err
	}
	return s.entry(img, details), nil
}

func (s *Service) entry(img db.Image, details []db.ImageDetail) Entry {
	e := Entry{Image: img, Details: make([]Detail, len(details))}
	if img.FileName != "" {
		e.URL = s.bucket.PublicURL(img.FileName)
	}
	for i, d := range details {
		e.Details[i] = Detail{ImageDetail: d, URL: s.bucket.PublicURL(d.FileName)}
	}
	return e
}

// Save uploads the primary file (if any), writes the record, then uploads the
// detail files and appends their rows in submission order.
func (s *Service) Save(ctx context.Context, req SaveRequest) (Entry, error) {
	if err := validate(req); err != nil {
		return Entry{}, err
	}

	if req.ID != "" {
		// Nothing is uploaded for a record that does not exist.
		if _, err := s.store.GetImage(ctx, req.ID); err != nil {
			return Entry{}, err
		}
	}

	stamp := s.now()
	var fileName *string
	if req.File != nil {
		name := storage.ObjectName(stamp, req.File.Name)
		if err := s.upload(ctx, name, *req.File); err != nil {
			return Entry{}, err
		}
		fileName = &name
	}

	var (
		img db.Image
		err error
	)
	if req.ID == "" {
		img, err = s.store.AddImage(ctx, db.ImageInput{
			Name:        trimmed(req.Name),
			Description: deref(req.Description),
			Date:        deref(req.Date),
			Category:    trimmed(req.Category),
			FileName:    deref(fileName),
		})
	} else {
		img, err = s.store.UpdateImage(ctx, req.ID, db.ImagePatch{
			Name:        trimmedPtr(req.Name),
			Description: req.Description,
			Date:        req.Date,
			Category:    trimmedPtr(req.Category),
			FileName:    fileName,
		})
	}
	if err != nil {
		return Entry{}, err
	}

	names, err := s.uploadAll(ctx, stamp, req.Details)
	if err != nil {
		return Entry{}, err
	}
	for _, name := range names {
		if _, err := s.store.AddImageDetail(ctx, db.DetailInput{ImageID: img.ID, FileName: name}); err != nil {
			return Entry{}, err
		}
	}

	logger.Success("CMS", fmt.Sprintf("Saved image %s (%q, %d details)", img.ID, img.Name, len(names)))
	return s.Get(ctx, img.ID)
}

// uploadAll stores files concurrently and returns their object names in
// the order the files were given. File i is stamped stamp+1+i ms so that
// names stay distinct within one request.
func (s *Service) uploadAll(ctx context.Context, stamp time.Time, files []File) ([]string, error) {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = storage.ObjectName(stamp.Add(time.Duration(i+1)*time.Millisecond), f.Name)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxParallelUploads)
	for i, f := range files {
		g.Go(func() error {
			return s.upload(gctx, names[i], f)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return names, nil
}

func (s *Service) upload(ctx context.Context, name string, f File) error {
	if err := s.bucket.Upload(ctx, name, f.Body, f.ContentType); err != nil {
		return fmt.Errorf("upload %s: %w", f.Name, err)
	}
	return nil
}

// Delete removes an image record and its details. Stored files are kept,
// matching the hosted bucket's behaviour where files outlive records.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteImage(ctx, id); err != nil {
		return err
	}
	logger.Info("CMS", fmt.Sprintf("Deleted image %s", id))
	return nil
}

// DeleteDetail removes one detail row.
func (s *Service) DeleteDetail(ctx context.Context, id string) error {
	if err := s.store.DeleteImageDetail(ctx, id); err != nil {
		return err
	}
	logger.Info("CMS", fmt.Sprintf("Deleted image detail %s", id))
	return nil
}

func validate(req SaveRequest) error {
	if req.ID == "" {
		if strings.TrimSpace(deref(req.Name)) == "" {
			return fmt.Errorf("%w: name is required", ErrValidation)
		}
		if req.File == nil {
			return fmt.Errorf("%w: a primary image is required", ErrValidation)
		}
	} else if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrValidation)
	}
	if req.Date != nil && strings.TrimSpace(*req.Date) != "" {
		if _, err := time.Parse("2006-01-02", strings.TrimSpace(*req.Date)); err != nil {
			return fmt.Errorf("%w: date %q is not YYYY-MM-DD", ErrValidation, *req.Date)
		}
	}
	if req.File != nil && req.File.Body == nil {
		return fmt.Errorf("%w: primary image has no content", ErrValidation)
	}
	for _, d := range req.Details {
		if d.Body == nil {
			return fmt.Errorf("%w: detail image %q has no content", ErrValidation, d.Name)
		}
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func trimmed(s *string) string {
	return strings.TrimSpace(deref(s))
}

func trimmedPtr(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}
