package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// listPageSize is the page size requested from the list endpoint.
const listPageSize = 1000

// RemoteBucket talks to a Supabase-compatible storage REST API.
type RemoteBucket struct {
	http    *http.Client
	sem     chan struct{}
	baseURL string
	bucket  string
	apiKey  string
}

// NewRemoteBucket creates a client for one bucket at baseURL
// (e.g. https://project.supabase.co). At most 8 requests run at once.
func NewRemoteBucket(baseURL, bucket, apiKey string) *RemoteBucket {
	return &RemoteBucket{
		http:    &http.Client{Timeout: 60 * time.Second},
		sem:     make(chan struct{}, 8),
		baseURL: strings.TrimRight(baseURL, "/"),
		bucket:  bucket,
		apiKey:  apiKey,
	}
}

func (b *RemoteBucket) objectURL(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return b.baseURL + "/storage/v1/object/" + strings.Join(escaped, "/")
}

func (b *RemoteBucket) do(ctx context.Context, method, u string, body io.Reader, contentType string) (*http.Response, error) {
	select {
	case b.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-b.sem }()

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "sphere-cms/1.0")
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
		req.Header.Set("apikey", b.apiKey)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return b.http.Do(req)
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode == http.StatusConflict || bytes.Contains(body, []byte("Duplicate")) {
		return fmt.Errorf("%w: %s", ErrExists, strings.TrimSpace(string(body)))
	}
	return fmt.Errorf("storage %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

// Upload stores r under name without overwriting.
func (b *RemoteBucket) Upload(ctx context.Context, name string, r io.Reader, contentType string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	resp, err := b.do(ctx, http.MethodPost, b.objectURL(b.bucket, name), r, contentType)
	if err != nil {
		return fmt.Errorf("upload %s: %w", name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return statusError(resp)
	}
	return nil
}

type listRequest struct {
	Prefix string `json:"prefix"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
	SortBy struct {
		Column string `json:"column"`
		Order  string `json:"order"`
	} `json:"sortBy"`
}

type listEntry struct {
	Name      string    `json:"name"`
	UpdatedAt time.Time `json:"updated_at"`
	Metadata  *struct {
		Size     int64  `json:"size"`
		MimeType string `json:"mimetype"`
	} `json:"metadata"`
}

// List returns every object at the bucket root, following pagination.
func (b *RemoteBucket) List(ctx context.Context) ([]Object, error) {
	var objects []Object
	for offset := 0; ; offset += listPageSize {
		reqBody := listRequest{Limit: listPageSize, Offset: offset}
		reqBody.SortBy.Column = "name"
		reqBody.SortBy.Order = "asc"
		payload, _ := json.Marshal(reqBody)

		resp, err := b.do(ctx, http.MethodPost, b.objectURL("list", b.bucket), bytes.NewReader(payload), "application/json")
		if err != nil {
			return nil, fmt.Errorf("list bucket: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			err := statusError(resp)
			resp.Body.Close()
			return nil, err
		}
		var page []listEntry
		err = json.NewDecoder(resp.Body).Decode(&page)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("decode listing: %w", err)
		}

		for _, e := range page {
			obj := Object{Name: e.Name, UpdatedAt: e.UpdatedAt}
			if e.Metadata != nil {
				obj.Size = e.Metadata.Size
				obj.ContentType = e.Metadata.MimeType
			}
			objects = append(objects, obj)
		}
		if len(page) < listPageSize {
			break
		}
	}
	if objects == nil {
		objects = []Object{}
	}
	return objects, nil
}

// PublicURL returns the public download URL of an object.
func (b *RemoteBucket) PublicURL(name string) string {
	return b.objectURL("public", b.bucket, name)
}

// Remove deletes the named objects in one request.
func (b *RemoteBucket) Remove(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		return nil
	}
	for _, n := range names {
		if err := ValidateName(n); err != nil {
			return err
		}
	}
	payload, _ := json.Marshal(map[string][]string{"prefixes": names})
	resp, err := b.do(ctx, http.MethodDelete, b.objectURL(b.bucket), bytes.NewReader(payload), "application/json")
	if err != nil {
		return fmt.Errorf("remove objects: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return statusError(resp)
	}
	return nil
}
