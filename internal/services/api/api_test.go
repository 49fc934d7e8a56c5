package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"dayonme/internal/modkit/module"
	"dayonme/internal/platform/kv"
	phttp "dayonme/internal/platform/net/http"
	"dayonme/internal/platform/report"
	feedmod "dayonme/internal/services/feed/module"

	"github.com/go-chi/chi/v5"
)

func newAPI(t *testing.T) http.Handler {
	t.Helper()
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/posts":
			_, _ = w.Write([]byte(`{"data":{"posts":[{"post_id":5,"content":"x","created_at":"2024-05-01T00:00:00Z"}]}}`))
		case strings.HasSuffix(r.URL.Path, "/comments"):
			_, _ = w.Write([]byte(`[]`))
		case r.URL.Path == "/bookmarks":
			_, _ = w.Write([]byte(`{"data":{"bookmarks":[{"post_type":"post","post_id":5,"post":{"post_id":5}}]}}`))
		default:
			_, _ = w.Write([]byte(`[]`))
		}
	}))
	t.Cleanup(up.Close)
	t.Setenv("UPSTREAM_BASE_URL", up.URL)
	t.Cleanup(module.Reset)

	rep, _ := report.New(report.Options{})
	mux := chi.NewRouter()
	stop := Mount(phttp.AdaptChi(mux), Options{KV: kv.NewMemory(), Report: rep})
	t.Cleanup(stop)
	return mux
}

func call(h http.Handler, method, path string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMount_Routes(t *testing.T) {
	h := newAPI(t)
	cases := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/v1/meta/ready", http.StatusOK},
		{http.MethodGet, "/v1/meta/version", http.StatusOK},
		{http.MethodGet, "/v1/feed", http.StatusOK},
		{http.MethodGet, "/v1/personas/5", http.StatusOK},
		{http.MethodGet, "/v1/nope", http.StatusNotFound},
	}
	for _, tc := range cases {
		if rec := call(h, tc.method, tc.path, nil); rec.Code != tc.want {
			t.Fatalf("%s %s = %d %s", tc.method, tc.path, rec.Code, rec.Body.String())
		}
	}
	if _, ok := module.PortsAs[feedmod.Ports]("feed"); !ok {
		t.Fatalf("feed ports not registered")
	}
}

func TestMount_SignedInFeedCarriesBookmarks(t *testing.T) {
	h := newAPI(t)
	rec := call(h, http.MethodGet, "/v1/feed", map[string]string{"Authorization": "Bearer tok", "X-User-Id": "42"})
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /v1/feed = %d %s", rec.Code, rec.Body.String())
	}
	var env struct {
		Data struct {
			BookmarkIDs []int64 `json:"bookmarkIds"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(env.Data.BookmarkIDs) != 1 || env.Data.BookmarkIDs[0] != 5 {
		t.Fatalf("bookmarks = %v", env.Data.BookmarkIDs)
	}
}

func TestMount_BadAuthRejected(t *testing.T) {
	h := newAPI(t)
	rec := call(h, http.MethodGet, "/v1/feed", map[string]string{"X-User-Id": "42"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("user id without token = %d", rec.Code)
	}
}
