package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/stylematch/internal/api/handler"
	"github.com/timmy/stylematch/internal/artifacts"
	"github.com/timmy/stylematch/internal/config"
	"github.com/timmy/stylematch/internal/domain"
	"github.com/timmy/stylematch/internal/service"
)

type fakeMatcher struct {
	result domain.MatchResult
	err    error
	got    service.MatchRequest
}

func (f *fakeMatcher) Match(_ context.Context, req service.MatchRequest) (domain.MatchResult, error) {
	f.got = req
	return f.result, f.err
}

type fakeFiles struct{ root string }

func (f fakeFiles) FetchedFile(id, name string) (string, error) {
	if name != filepath.Base(name) {
		return "", domain.ErrInvalidInput
	}
	return filepath.Join(f.root, id, name), nil
}

type fakeBreaker struct {
	id    string
	state gobreaker.State
}

func (f fakeBreaker) GetSourceID() string    { return f.id }
func (f fakeBreaker) State() gobreaker.State { return f.state }

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	return buf.Bytes()
}

func uploadRequest(t *testing.T, path string, file []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if file != nil {
		fw, err := w.CreateFormFile("file", "shirt.png")
		require.NoError(t, err)
		_, err = fw.Write(file)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func newTestRouter(m handler.Matcher, files handler.FileResolver) http.Handler {
	return SetupRouter(RouterDeps{
		Matcher: m,
		Files:   files,
		Sources: []handler.BreakerSource{fakeBreaker{id: "amazon", state: gobreaker.StateOpen}},
		Server:  config.ServerConfig{Mode: "test", MaxUploadMB: 1, CORS: config.CORSConfig{AllowAllOrigins: true}},
		Metrics: config.MetricsConfig{Enabled: true},
	})
}

func TestHealth(t *testing.T) {
	r := newTestRouter(&fakeMatcher{}, fakeFiles{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Status  string            `json:"status"`
		Sources map[string]string `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "open", body.Sources["amazon"])
}

func TestMatchSuccess(t *testing.T) {
	sim := 0.87
	m := &fakeMatcher{result: domain.MatchResult{
		MatchID:     "5f0c9a0e-7c43-4d55-9a5e-0b1e6f1f2a11",
		Description: "red, shirt",
		Results: []domain.RankedResult{
			{Name: "a", Source: "amazon", Similarity: &sim},
			{Name: "b", Source: "google_shopping", UnscoredReason: domain.UnscoredNoImageURL},
		},
	}}
	r := newTestRouter(m, fakeFiles{})

	for _, path := range []string{"/api/v1/match", "/process/"} {
		t.Run(path, func(t *testing.T) {
			req := uploadRequest(t, path, pngBytes(t), map[string]string{"garment_type": "shirt", "garment_layer": "outer"})
			req.Header.Set("X-Request-ID", "client-42")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			assert.Equal(t, "client-42", w.Header().Get("X-Request-ID"))
			assert.Equal(t, "client-42", m.got.RequestID)
			assert.Equal(t, "shirt", m.got.GarmentType)
			assert.Equal(t, "outer", m.got.GarmentLayer)
			assert.Equal(t, "shirt.png", m.got.Filename)

			var body struct {
				Success bool `json:"success"`
				Data    struct {
					MatchID     string                   `json:"match_id"`
					Description string                   `json:"description"`
					Results     []map[string]interface{} `json:"results"`
				} `json:"data"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.True(t, body.Success)
			assert.Equal(t, "red, shirt", body.Data.Description)
			assert.Equal(t, "5f0c9a0e-7c43-4d55-9a5e-0b1e6f1f2a11", body.Data.MatchID)
			require.Len(t, body.Data.Results, 2)
			assert.InDelta(t, 0.87, body.Data.Results[0]["similarity"], 1e-9)
			assert.Nil(t, body.Data.Results[1]["similarity"])
			assert.Equal(t, "no_image_url", body.Data.Results[1]["unscored_reason"])
		})
	}
}

func TestMatchBadRequests(t *testing.T) {
	r := newTestRouter(&fakeMatcher{}, fakeFiles{})

	tests := []struct {
		name   string
		file   []byte
		fields map[string]string
		status int
	}{
		{"missing file", nil, map[string]string{"garment_type": "shirt"}, http.StatusBadRequest},
		{"missing garment type", pngBytes(t), nil, http.StatusBadRequest},
		{"not an image", []byte("hello world"), map[string]string{"garment_type": "shirt"}, http.StatusBadRequest},
		{"too large", append(pngBytes(t), make([]byte, 2<<20)...), map[string]string{"garment_type": "shirt"}, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, uploadRequest(t, "/api/v1/match", tt.file, tt.fields))
			assert.Equal(t, tt.status, w.Code)

			var body handler.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.False(t, body.Success)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestMatchErrorMapping(t *testing.T) {
	workspaceErr := &domain.IOError{
		Op:   "mkdir",
		Path: "/srv/requests/abc",
		Err:  &fs.PathError{Op: "mkdir", Path: "/srv/requests/abc", Err: fs.ErrExist},
	}
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"invalid input", domainErr(domain.ErrInvalidInput), http.StatusBadRequest, "bad upload"},
		{"undecodable", fmt.Errorf("%w: %w", domain.ErrInvalidInput, domain.ErrDecode), http.StatusBadRequest, "uploaded image could not be decoded"},
		{"description", &domain.DescriptionError{Err: errors.New("vlm down")}, http.StatusInternalServerError, "garment description failed"},
		{"all sources", errors.Join(domain.ErrAllSourcesFailed, errors.New("x")), http.StatusInternalServerError, "all product sources failed"},
		{"workspace", workspaceErr, http.StatusInternalServerError, "workspace storage failed"},
		{"cancelled", context.Canceled, 499, "request cancelled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(&fakeMatcher{err: tt.err}, fakeFiles{})
			w := httptest.NewRecorder()
			r.ServeHTTP(w, uploadRequest(t, "/api/v1/match", pngBytes(t), map[string]string{"garment_type": "shirt"}))
			assert.Equal(t, tt.status, w.Code)

			var body handler.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.False(t, body.Success)
			assert.Contains(t, body.Error, tt.message)
			assert.NotContains(t, body.Error, "/srv/requests")
		})
	}
}

func domainErr(sentinel error) error {
	return errors.Join(sentinel, errors.New("bad upload"))
}

func TestFetchedFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "req1"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "req1", "a.jpg"), pngBytes(t), 0o644))
	r := newTestRouter(&fakeMatcher{}, fakeFiles{root: root})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fetched/req1/a.jpg", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, pngBytes(t), w.Body.Bytes())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/fetched/req1/missing.jpg", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	r := newTestRouter(&fakeMatcher{}, fakeFiles{})
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/match", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsRoute(t *testing.T) {
	r := newTestRouter(&fakeMatcher{}, fakeFiles{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

type fakeSidecars struct{}

func (fakeSidecars) Load(_ context.Context, matchID, source string) (artifacts.Sidecar, error) {
	switch {
	case source == "bad":
		return artifacts.Sidecar{}, domain.ErrInvalidInput
	case source == "broken":
		return artifacts.Sidecar{}, errors.New("bucket /srv/data unavailable")
	case matchID != "m-1":
		return artifacts.Sidecar{}, artifacts.ErrNotFound
	}
	return artifacts.Sidecar{Source: source, MatchID: matchID, Query: "linen shirt"}, nil
}

func TestSidecarRoute(t *testing.T) {
	deps := RouterDeps{
		Matcher:  &fakeMatcher{},
		Files:    fakeFiles{},
		Sidecars: fakeSidecars{},
		Server:   config.ServerConfig{Mode: "test"},
	}
	r := SetupRouter(deps)

	tests := []struct {
		path   string
		status int
	}{
		{"/api/v1/matches/m-1/sources/amazon", http.StatusOK},
		{"/api/v1/matches/m-2/sources/amazon", http.StatusNotFound},
		{"/api/v1/matches/m-1/sources/bad", http.StatusBadRequest},
		{"/api/v1/matches/m-1/sources/broken", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.status, w.Code)
			assert.NotContains(t, w.Body.String(), "/srv/data")
		})
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/matches/m-1/sources/amazon", nil))
	var body struct {
		Data artifacts.Sidecar `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "linen shirt", body.Data.Query)

	w = httptest.NewRecorder()
	newTestRouter(&fakeMatcher{}, fakeFiles{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/matches/m-1/sources/amazon", nil))
	assert.Equal(t, http.StatusNotFound, w.Code, "route is absent without a sidecar store")
}
