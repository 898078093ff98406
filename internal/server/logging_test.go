package server

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func captureLogs(t *testing.T, level slog.Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: level}))
	previous := slog.Default()
	slog.SetDefault(logger)
	t.Cleanup(func() { slog.SetDefault(previous) })
	return &buf
}

func serveThroughLogger(path string, status int) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Use(slogMiddleware)
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestSlogMiddleware_LogsRequest(t *testing.T) {
	buf := captureLogs(t, slog.LevelInfo)
	serveThroughLogger("/apps/playku/blue-shirt?shop=demo.myshopify.com", http.StatusOK)

	output := buf.String()
	if output == "" {
		t.Fatal("expected log output, got empty string")
	}
	expectedFields := []string{
		"method=GET",
		"path=/apps/playku/blue-shirt",
		"status=200",
		"remote_addr=",
		"duration_ms=",
		"shop=demo.myshopify.com",
	}
	for _, field := range expectedFields {
		if !bytes.Contains([]byte(output), []byte(field)) {
			t.Errorf("expected log to contain %q, got: %s", field, output)
		}
	}
}

func TestSlogMiddleware_SkipsHealthCheck(t *testing.T) {
	buf := captureLogs(t, slog.LevelDebug)
	rec := serveThroughLogger("/api/health", http.StatusOK)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if buf.String() != "" {
		t.Errorf("expected no log output for /api/health, got: %s", buf.String())
	}
}

func TestSlogMiddleware_LogsNon200Status(t *testing.T) {
	buf := captureLogs(t, slog.LevelInfo)
	serveThroughLogger("/missing", http.StatusNotFound)

	if !bytes.Contains(buf.Bytes(), []byte("status=404")) {
		t.Errorf("expected log to contain status=404, got: %s", buf.String())
	}
}

func TestSlogMiddleware_InjectAssetsAtDebug(t *testing.T) {
	buf := captureLogs(t, slog.LevelInfo)
	serveThroughLogger("/inject/playku.wasm", http.StatusOK)
	if buf.String() != "" {
		t.Errorf("expected asset fetch hidden at info level, got: %s", buf.String())
	}

	buf = captureLogs(t, slog.LevelDebug)
	serveThroughLogger("/inject/playku.wasm", http.StatusOK)
	if !bytes.Contains(buf.Bytes(), []byte("level=DEBUG")) {
		t.Errorf("expected debug log for asset fetch, got: %s", buf.String())
	}
}
