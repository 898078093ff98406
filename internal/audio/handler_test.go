package audio

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/playku/playku/internal/auth"
)

const testShop = "demo.myshopify.com"

type mockStorage struct {
	uploadURL   string
	uploadErr   error
	presignedAs string
	headSize    int64
	headType    string
	headErr     error
	downloadErr error
	deleted     []string
}

func (m *mockStorage) GenerateUploadURL(_ context.Context, key string, _ string, _ int64, _ time.Duration) (string, error) {
	m.presignedAs = key
	return m.uploadURL, m.uploadErr
}

func (m *mockStorage) HeadObject(context.Context, string) (int64, string, error) {
	if m.headErr != nil {
		return 0, "", m.headErr
	}
	return m.headSize, m.headType, nil
}

func (m *mockStorage) DownloadToFile(_ context.Context, _ string, destPath string) error {
	if m.downloadErr != nil {
		return m.downloadErr
	}
	return os.WriteFile(destPath, []byte("clip"), 0o600)
}

func (m *mockStorage) DeleteObject(_ context.Context, key string) error {
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *mockStorage) PublicURL(key string) string {
	return "https://cdn.example.com/" + key
}

func shopRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/audio/uploads", strings.NewReader(body))
	return req.WithContext(auth.WithShop(req.Context(), testShop))
}

func TestCreateUpload(t *testing.T) {
	store := &mockStorage{uploadURL: "https://s3.example.com/upload?signed=1"}
	h := NewHandler(store, 10<<20)

	rec := httptest.NewRecorder()
	h.CreateUpload(rec, shopRequest(`{"handle":"blue-shirt","filename":"preview.mp3","contentType":"audio/mpeg","contentLength":2048}`))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp createUploadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.UploadURL != store.uploadURL {
		t.Errorf("expected upload URL %q, got %q", store.uploadURL, resp.UploadURL)
	}
	if !strings.HasPrefix(resp.Key, "clips/demo.myshopify.com/blue-shirt/") || !strings.HasSuffix(resp.Key, ".mp3") {
		t.Errorf("unexpected key %q", resp.Key)
	}
	if resp.Key != store.presignedAs {
		t.Errorf("expected presigned key %q, got %q", resp.Key, store.presignedAs)
	}
	if resp.AudioURL != "https://cdn.example.com/"+resp.Key {
		t.Errorf("unexpected audio URL %q", resp.AudioURL)
	}
}

func TestCreateUploadRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"BadJSON", `{`, http.StatusBadRequest},
		{"BadHandle", `{"handle":"Blue Shirt","contentType":"audio/mpeg","contentLength":10}`, http.StatusBadRequest},
		{"Video", `{"handle":"blue-shirt","contentType":"video/mp4","contentLength":10}`, http.StatusBadRequest},
		{"NoLength", `{"handle":"blue-shirt","contentType":"audio/wav"}`, http.StatusBadRequest},
		{"TooLarge", `{"handle":"blue-shirt","contentType":"audio/wav","contentLength":999999999}`, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(&mockStorage{}, 10<<20)
			rec := httptest.NewRecorder()
			h.CreateUpload(rec, shopRequest(tt.body))
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestCreateUploadPresignError(t *testing.T) {
	h := NewHandler(&mockStorage{uploadErr: errors.New("s3 down")}, 0)
	rec := httptest.NewRecorder()
	h.CreateUpload(rec, shopRequest(`{"handle":"blue-shirt","contentType":"audio/mpeg","contentLength":10}`))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

const ownKey = "clips/demo.myshopify.com/blue-shirt/abc.mp3"

func TestCompleteUpload(t *testing.T) {
	store := &mockStorage{headSize: 4096, headType: "audio/mpeg"}
	h := NewHandler(store, 10<<20)
	h.probe = func(string) (time.Duration, error) { return 31500 * time.Millisecond, nil }

	rec := httptest.NewRecorder()
	h.CompleteUpload(rec, shopRequest(`{"key":"`+ownKey+`"}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp completeUploadResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.DurationMs != 31500 {
		t.Errorf("expected 31500ms, got %d", resp.DurationMs)
	}
	if resp.AudioURL != "https://cdn.example.com/"+ownKey {
		t.Errorf("unexpected audio URL %q", resp.AudioURL)
	}
	if len(store.deleted) != 0 {
		t.Errorf("expected nothing deleted, got %v", store.deleted)
	}
}

func TestCompleteUploadRejectsForeignKey(t *testing.T) {
	h := NewHandler(&mockStorage{}, 0)
	rec := httptest.NewRecorder()
	h.CompleteUpload(rec, shopRequest(`{"key":"clips/other.myshopify.com/x/abc.mp3"}`))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestCompleteUploadMissingObject(t *testing.T) {
	h := NewHandler(&mockStorage{headErr: errors.New("not found")}, 0)
	rec := httptest.NewRecorder()
	h.CompleteUpload(rec, shopRequest(`{"key":"`+ownKey+`"}`))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestCompleteUploadDiscardsOversized(t *testing.T) {
	store := &mockStorage{headSize: 11 << 20}
	h := NewHandler(store, 10<<20)
	rec := httptest.NewRecorder()
	h.CompleteUpload(rec, shopRequest(`{"key":"`+ownKey+`"}`))

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", rec.Code)
	}
	if len(store.deleted) != 1 || store.deleted[0] != ownKey {
		t.Errorf("expected oversized clip deleted, got %v", store.deleted)
	}
}

func TestCompleteUploadDiscardsUndecodable(t *testing.T) {
	store := &mockStorage{headSize: 10}
	h := NewHandler(store, 0)

	rec := httptest.NewRecorder()
	h.CompleteUpload(rec, shopRequest(`{"key":"`+ownKey+`"}`))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(store.deleted) != 1 {
		t.Errorf("expected undecodable clip deleted, got %v", store.deleted)
	}
}

func TestCompleteUploadDownloadError(t *testing.T) {
	store := &mockStorage{headSize: 10, downloadErr: errors.New("timeout")}
	h := NewHandler(store, 0)

	rec := httptest.NewRecorder()
	h.CompleteUpload(rec, shopRequest(`{"key":"`+ownKey+`"}`))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	if len(store.deleted) != 0 {
		t.Errorf("expected clip kept on transient error, got %v", store.deleted)
	}
}
