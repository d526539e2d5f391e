package api

import (
	"context"
	"fmt"
	"mime/multipart"
	"net/http"

	"sphere-cms/internal/cms"
	"sphere-cms/internal/logger"
)

const (
	// maxUploadBytes caps a whole multipart request.
	maxUploadBytes = 64 << 20
	// maxFormMemory is how much of a form is kept in memory before spilling to disk.
	maxFormMemory = 16 << 20
)

func (s *Server) handleListImages(w http.ResponseWriter, r *http.Request) {
	entries, err := s.cms.List(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, entries)
}

func (s *Server) handleGetImage(w http.ResponseWriter, r *http.Request) {
	entry, err := s.cms.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, entry)
}

func (s *Server) handleCreateImage(w http.ResponseWriter, r *http.Request) {
	s.saveImage(w, r, "")
}

func (s *Server) handleUpdateImage(w http.ResponseWriter, r *http.Request) {
	s.saveImage(w, r, r.PathValue("id"))
}

func (s *Server) saveImage(w http.ResponseWriter, r *http.Request, id string) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		writeError(w, 400, "invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	req, closeAll, err := saveRequestFromForm(id, r.MultipartForm)
	defer closeAll()
	if err != nil {
		writeError(w, 400, err.Error())
		return
	}

	entry, err := s.cms.Save(r.Context(), req)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	s.refreshGallery(r.Context())
	if id == "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
	}
	writeJSON(w, entry)
}

// saveRequestFromForm maps form fields onto a SaveRequest. Absent fields stay
// nil so that updates leave them untouched. The returned func closes every
// opened file and is safe to call on error.
func saveRequestFromForm(id string, form *multipart.Form) (cms.SaveRequest, func(), error) {
	var opened []multipart.File
	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}
	open := func(fh *multipart.FileHeader) (cms.File, error) {
		f, err := fh.Open()
		if err != nil {
			return cms.File{}, fmt.Errorf("open %s: %w", fh.Filename, err)
		}
		opened = append(opened, f)
		return cms.File{Name: fh.Filename, ContentType: fh.Header.Get("Content-Type"), Body: f}, nil
	}

	req := cms.SaveRequest{
		ID:          id,
		Name:        formValue(form, "name"),
		Description: formValue(form, "description"),
		Date:        formValue(form, "date"),
		Category:    formValue(form, "category"),
	}
	if fhs := form.File["file"]; len(fhs) > 0 {
		f, err := open(fhs[0])
		if err != nil {
			return req, closeAll, err
		}
		req.File = &f
	}
	for _, key := range []string{"details", "details[]"} {
		for _, fh := range form.File[key] {
			f, err := open(fh)
			if err != nil {
				return req, closeAll, err
			}
			req.Details = append(req.Details, f)
		}
	}
	return req, closeAll, nil
}

func formValue(form *multipart.Form, key string) *string {
	v, ok := form.Value[key]
	if !ok || len(v) == 0 {
		return nil
	}
	return &v[0]
}

func (s *Server) handleDeleteImage(w http.ResponseWriter, r *http.Request) {
	if err := s.cms.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, map[string]string{"status": "deleted"})
}

func (s *Server) handleDeleteDetail(w http.ResponseWriter, r *http.Request) {
	if err := s.cms.DeleteDetail(r.Context(), r.PathValue("id")); err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, map[string]string{"status": "deleted"})
}

// refreshGallery picks up newly uploaded objects without waiting for the
// watcher or the poller.
func (s *Server) refreshGallery(ctx context.Context) {
	if _, err := s.gallery.Refresh(ctx); err != nil {
		logger.Warn("Gallery", err.Error())
	}
}
