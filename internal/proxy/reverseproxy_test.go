package proxy

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestBackendProxyForwardsStatic(t *testing.T) {
	var gotPath, gotAuth string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Content-Type", "image/png")
		_, _ = io.WriteString(w, "png-bytes")
	}))
	defer backend.Close()

	p, err := NewBackendProxy(backend.URL, "/static/", time.Second, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewBackendProxy: %v", err)
	}

	r := httptest.NewRequest(http.MethodGet, "/static/qr/device-1.png", nil)
	r.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, r)

	if rec.Code != http.StatusOK || rec.Body.String() != "png-bytes" {
		t.Fatalf("response = %d %q", rec.Code, rec.Body.String())
	}
	if gotPath != "/static/qr/device-1.png" {
		t.Errorf("backend path = %q", gotPath)
	}
	if gotAuth != "" {
		t.Error("authorization header leaked to the asset backend")
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("backend CORS header not stripped")
	}
	if rec.Header().Get("X-Proxied-By") == "" {
		t.Error("missing X-Proxied-By")
	}
}

func TestBackendProxyRejects(t *testing.T) {
	p, err := NewBackendProxy("http://127.0.0.1:1", "/static/", time.Second, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewBackendProxy: %v", err)
	}

	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/static/x.png", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/x.png", nil))
	if rec.Code != http.StatusBadGateway {
		t.Errorf("unreachable backend status = %d", rec.Code)
	}
}

func TestNewBackendProxyRelativeURL(t *testing.T) {
	if _, err := NewBackendProxy("/relative", "/static/", 0, zaptest.NewLogger(t)); err == nil {
		t.Error("relative backend URL accepted")
	}
}
