package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sphere-cms/internal/auth"
	"sphere-cms/internal/cms"
	"sphere-cms/internal/config"
	"sphere-cms/internal/db"
	"sphere-cms/internal/gallery"
	"sphere-cms/internal/storage"
)

type testEnv struct {
	srv     *Server
	handler http.Handler
	db      *db.DB
	gallery *gallery.Gallery
}

func newTestEnv(t *testing.T, password string) *testEnv {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	bucket, err := storage.NewLocalBucket(t.TempDir(), "http://test/files")
	if err != nil {
		t.Fatalf("bucket: %v", err)
	}
	gal, err := gallery.New(bucket, 2)
	if err != nil {
		t.Fatalf("gallery: %v", err)
	}
	admin := auth.NewAdmin(password, time.Hour, auth.NewSessionStore(database.SqlDB()))
	srv := NewServer(config.Default(), database, cms.NewService(database, bucket), gal, admin)
	srv.ServeFiles(bucket)
	return &testEnv{srv: srv, handler: srv.Handler(), db: database, gallery: gal}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T, password string) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"password":"`+password+`"}`))
	rec := e.do(t, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rec.Code, rec.Body)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil || out.Token == "" {
		t.Fatalf("login response: %v token=%q", err, out.Token)
	}
	return out.Token
}

type upload struct {
	field, name, body string
}

func multipartRequest(t *testing.T, method, target, token string, fields map[string]string, files []upload) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	for _, f := range files {
		w, err := mw.CreateFormFile(f.field, f.name)
		if err != nil {
			t.Fatal(err)
		}
		io.WriteString(w, f.body)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode %T: %v", out, err)
	}
	return out
}

func TestCORS_Preflight(t *testing.T) {
	env := newTestEnv(t, "pw")
	rec := env.do(t, httptest.NewRequest(http.MethodOptions, "/api/images", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("OPTIONS status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); !strings.Contains(got, "Authorization") {
		t.Errorf("Allow-Headers = %q, want Authorization", got)
	}
}

func TestHandleStatus(t *testing.T) {
	env := newTestEnv(t, "pw")
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	out := decode[map[string]interface{}](t, rec)
	if out["images"] != float64(0) || out["admin_enabled"] != true {
		t.Errorf("status = %v", out)
	}
}

type layoutBody struct {
	URLs   []string `json:"urls"`
	Layout struct {
		Count  int          `json:"count"`
		Radius float64      `json:"radius"`
		Size   float64      `json:"size"`
		Points [][3]float64 `json:"points"`
		Edges  [][2]int     `json:"edges"`
	} `json:"layout"`
}

func TestHandleSphere(t *testing.T) {
	env := newTestEnv(t, "pw")

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/sphere", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/sphere status = %d", rec.Code)
	}
	empty := decode[layoutBody](t, rec)
	if empty.Layout.Count != 0 || len(empty.Layout.Points) != 0 || len(empty.Layout.Edges) != 0 {
		t.Errorf("empty gallery layout = %+v", empty.Layout)
	}

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/sphere?n=4&radius=2", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("n=4 status = %d", rec.Code)
	}
	got := decode[layoutBody](t, rec)
	if got.Layout.Count != 4 || len(got.Layout.Edges) != 4 || got.Layout.Radius != 2 {
		t.Errorf("n=4 layout = %+v", got.Layout)
	}
	if got.Layout.Edges[3] != [2]int{3, 0} {
		t.Errorf("closing edge = %v, want [3 0]", got.Layout.Edges[3])
	}
	if got.Layout.Size != 0.5 {
		t.Errorf("size = %v, want 0.5", got.Layout.Size)
	}
}

func TestHandleSphere_InvalidArgs(t *testing.T) {
	env := newTestEnv(t, "pw")
	for _, q := range []string{"n=-1", "n=abc", "n=10001", "n=2000000000", "n=3&radius=0", "n=3&radius=-2", "n=3&radius=NaN", "radius=x"} {
		rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/sphere?"+q, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("?%s status = %d, want 400", q, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "invalid argument") {
			t.Errorf("?%s body = %s", q, rec.Body)
		}
	}
}

func TestHandleSphere_PointLimit(t *testing.T) {
	env := newTestEnv(t, "pw")
	env.srv.cfg.Sphere.MaxPoints = 5

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/sphere?n=5", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("n=5 status = %d, want 200", rec.Code)
	}
	if got := decode[layoutBody](t, rec); got.Layout.Count != 5 {
		t.Errorf("count = %d, want 5", got.Layout.Count)
	}

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/api/sphere?n=6", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("n=6 status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "invalid argument: n") {
		t.Errorf("n=6 body = %s", rec.Body)
	}
}

func TestHandleSphereSVG(t *testing.T) {
	env := newTestEnv(t, "pw")
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/sphere.svg?w=320&h=240&yaw=30", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/svg+xml" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), `width="320"`) {
		t.Errorf("svg missing width: %s", rec.Body)
	}

	for _, q := range []string{"projection=fisheye", "w=0", "h=abc", "yaw=x", "yaw=NaN", "yaw=Inf", "yaw=-Inf"} {
		rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/sphere.svg?"+q, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("?%s status = %d, want 400", q, rec.Code)
		}
	}
}

func TestAdminRoutes_RequireSession(t *testing.T) {
	env := newTestEnv(t, "pw")
	reqs := []*http.Request{
		multipartRequest(t, http.MethodPost, "/api/images", "", map[string]string{"name": "x"}, nil),
		multipartRequest(t, http.MethodPut, "/api/images/abc", "bogus", nil, nil),
		httptest.NewRequest(http.MethodDelete, "/api/images/abc", nil),
		httptest.NewRequest(http.MethodDelete, "/api/details/abc", nil),
		httptest.NewRequest(http.MethodPost, "/api/config", strings.NewReader(`{"radius":3}`)),
	}
	for _, req := range reqs {
		rec := env.do(t, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s status = %d, want 401", req.Method, req.URL.Path, rec.Code)
		}
	}
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t, "pw")

	bad := env.do(t, httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"password":"nope"}`)))
	if bad.Code != http.StatusUnauthorized {
		t.Errorf("bad login status = %d, want 401", bad.Code)
	}
	malformed := env.do(t, httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{`)))
	if malformed.Code != http.StatusBadRequest {
		t.Errorf("malformed login status = %d, want 400", malformed.Code)
	}

	token := env.login(t, "pw")

	req := httptest.NewRequest(http.MethodGet, "/api/auth/status", nil)
	req.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token})
	status := decode[map[string]interface{}](t, env.do(t, req))
	if status["logged_in"] != true {
		t.Errorf("status with cookie = %v", status)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	if rec := env.do(t, req); rec.Code != http.StatusOK {
		t.Errorf("logout status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/auth/status", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	status = decode[map[string]interface{}](t, env.do(t, req))
	if status["logged_in"] != false {
		t.Errorf("status after logout = %v", status)
	}
}

func TestAuthDisabled(t *testing.T) {
	env := newTestEnv(t, "")
	rec := env.do(t, httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"password":""}`)))
	if rec.Code != http.StatusForbidden {
		t.Errorf("login status = %d, want 403", rec.Code)
	}
	rec = env.do(t, httptest.NewRequest(http.MethodDelete, "/api/images/x", nil))
	if rec.Code != http.StatusForbidden {
		t.Errorf("admin route status = %d, want 403", rec.Code)
	}
}

func TestImageLifecycle(t *testing.T) {
	env := newTestEnv(t, "pw")
	token := env.login(t, "pw")

	create := multipartRequest(t, http.MethodPost, "/api/images", token,
		map[string]string{"name": "Moon", "description": "night", "date": "2024-01-02", "category": "sky"},
		[]upload{
			{"file", "moon.png", "primary"},
			{"details", "d1.png", "one"},
			{"details[]", "d2.png", "two"},
		})
	rec := env.do(t, create)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body)
	}
	entry := decode[cms.Entry](t, rec)
	if entry.ID == "" || entry.Name != "Moon" || entry.Date != "2024-01-02" {
		t.Errorf("created = %+v", entry)
	}
	if len(entry.Details) != 2 || entry.Details[0].Order != 0 || entry.Details[1].Order != 1 {
		t.Fatalf("details = %+v", entry.Details)
	}
	if !strings.HasPrefix(entry.URL, "http://test/files/") || !strings.HasSuffix(entry.URL, "-moon.png") {
		t.Errorf("url = %q", entry.URL)
	}

	// Uploaded objects are visible to the sphere right away.
	sphereRec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/sphere", nil))
	if got := decode[layoutBody](t, sphereRec); got.Layout.Count != 3 || len(got.URLs) != 3 {
		t.Errorf("sphere after upload: count=%d urls=%d, want 3", got.Layout.Count, len(got.URLs))
	}

	// Files are served from the local bucket.
	fileRec := env.do(t, httptest.NewRequest(http.MethodGet, "/files/"+entry.FileName, nil))
	if fileRec.Code != http.StatusOK || fileRec.Body.String() != "primary" {
		t.Errorf("GET file status = %d body %q", fileRec.Code, fileRec.Body)
	}

	list := decode[[]cms.Entry](t, env.do(t, httptest.NewRequest(http.MethodGet, "/api/images", nil)))
	if len(list) != 1 || list[0].ID != entry.ID {
		t.Errorf("list = %+v", list)
	}

	update := multipartRequest(t, http.MethodPut, "/api/images/"+entry.ID, token, map[string]string{"name": "Full Moon"}, nil)
	rec = env.do(t, update)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", rec.Code, rec.Body)
	}
	updated := decode[cms.Entry](t, rec)
	if updated.Name != "Full Moon" || updated.Description != "night" || updated.FileName != entry.FileName {
		t.Errorf("updated = %+v", updated)
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/details/"+entry.Details[0].ID, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	if rec := env.do(t, req); rec.Code != http.StatusOK {
		t.Errorf("delete detail status = %d", rec.Code)
	}
	got := decode[cms.Entry](t, env.do(t, httptest.NewRequest(http.MethodGet, "/api/images/"+entry.ID, nil)))
	if len(got.Details) != 1 || got.Details[0].ID != entry.Details[1].ID {
		t.Errorf("details after delete = %+v", got.Details)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/images/"+entry.ID, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	if rec := env.do(t, req); rec.Code != http.StatusOK {
		t.Errorf("delete status = %d", rec.Code)
	}
	if rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/images/"+entry.ID, nil)); rec.Code != http.StatusNotFound {
		t.Errorf("GET deleted status = %d, want 404", rec.Code)
	}
}

func TestImageErrors(t *testing.T) {
	env := newTestEnv(t, "pw")
	token := env.login(t, "pw")

	tests := []struct {
		name string
		req  *http.Request
		want int
	}{
		{
			"create without name",
			multipartRequest(t, http.MethodPost, "/api/images", token, nil, []upload{{"file", "a.png", "x"}}),
			http.StatusBadRequest,
		},
		{
			"create without file",
			multipartRequest(t, http.MethodPost, "/api/images", token, map[string]string{"name": "a"}, nil),
			http.StatusBadRequest,
		},
		{
			"bad date",
			multipartRequest(t, http.MethodPost, "/api/images", token, map[string]string{"name": "a", "date": "02/01/2024"}, []upload{{"file", "a.png", "x"}}),
			http.StatusBadRequest,
		},
		{
			"update missing",
			multipartRequest(t, http.MethodPut, "/api/images/nope", token, map[string]string{"name": "a"}, nil),
			http.StatusNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := env.do(t, tt.req); rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body)
			}
		})
	}

	notMultipart := httptest.NewRequest(http.MethodPost, "/api/images", strings.NewReader(`{"name":"a"}`))
	notMultipart.Header.Set("Authorization", "Bearer "+token)
	if rec := env.do(t, notMultipart); rec.Code != http.StatusBadRequest {
		t.Errorf("json body status = %d, want 400", rec.Code)
	}
}

func TestHandleFile_RejectsTraversal(t *testing.T) {
	env := newTestEnv(t, "pw")
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/files/..", nil))
	if rec.Code == http.StatusOK {
		t.Errorf("GET /files/.. status = 200")
	}
	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/files/missing.png", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing file status = %d, want 404", rec.Code)
	}
}

func TestConfigEndpoints(t *testing.T) {
	env := newTestEnv(t, "pw")
	token := env.login(t, "pw")

	got := decode[config.SphereConfig](t, env.do(t, httptest.NewRequest(http.MethodGet, "/api/config", nil)))
	if got.Radius != 2 || got.Width != 800 || got.Height != 600 {
		t.Errorf("GET /api/config = %+v", got)
	}

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/config", strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+token)
		return env.do(t, req)
	}

	for _, body := range []string{`{"radius":0}`, `{"radius":"x"}`, `{"width":-5}`, `not json`} {
		if rec := post(body); rec.Code != http.StatusBadRequest {
			t.Errorf("POST %s status = %d, want 400", body, rec.Code)
		}
	}

	rec := post(`{"radius":3.5,"width":640}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST status = %d, body %s", rec.Code, rec.Body)
	}
	got = decode[config.SphereConfig](t, rec)
	if got.Radius != 3.5 || got.Width != 640 || got.Height != 600 {
		t.Errorf("POST /api/config = %+v", got)
	}
	if r := env.gallery.Snapshot().Layout.Radius; r != 3.5 {
		t.Errorf("gallery radius = %v, want 3.5", r)
	}

	stored := config.Default()
	if err := env.db.ApplyStoredConfig(stored); err != nil {
		t.Fatalf("ApplyStoredConfig: %v", err)
	}
	if stored.Sphere.Radius != 3.5 || stored.Sphere.Width != 640 {
		t.Errorf("persisted sphere config = %+v", stored.Sphere)
	}
}
