// Package audio hands out clip upload URLs and checks finished uploads.
package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/playku/playku/internal/auth"
	"github.com/playku/playku/internal/httputil"
	"github.com/playku/playku/internal/storage"
	"github.com/playku/playku/internal/validate"
)

const uploadURLExpiry = 15 * time.Minute

type ObjectStorage interface {
	GenerateUploadURL(ctx context.Context, key string, contentType string, contentLength int64, expiry time.Duration) (string, error)
	HeadObject(ctx context.Context, key string) (int64, string, error)
	DownloadToFile(ctx context.Context, key string, destPath string) error
	DeleteObject(ctx context.Context, key string) error
	PublicURL(key string) string
}

type Handler struct {
	storage        ObjectStorage
	maxUploadBytes int64
	probe          func(path string) (time.Duration, error)
}

func NewHandler(s ObjectStorage, maxUploadBytes int64) *Handler {
	return &Handler{storage: s, maxUploadBytes: maxUploadBytes, probe: ProbeDuration}
}

type createUploadRequest struct {
	Handle        string `json:"handle"`
	Filename      string `json:"filename"`
	ContentType   string `json:"contentType"`
	ContentLength int64  `json:"contentLength"`
}

type createUploadResponse struct {
	UploadURL string    `json:"uploadUrl"`
	Key       string    `json:"key"`
	AudioURL  string    `json:"audioUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (h *Handler) CreateUpload(w http.ResponseWriter, r *http.Request) {
	shop := auth.ShopFromContext(r.Context())

	var req createUploadRequest
	if err := httputil.DecodeJSON(w, r, &req, 0); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validate.Handle(req.Handle); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	if msg := validate.Filename(req.Filename); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	ext, err := storage.ExtensionFor(req.ContentType)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "audio must be MP3 or WAV")
		return
	}
	if req.ContentLength <= 0 {
		httputil.WriteError(w, http.StatusBadRequest, "contentLength is required")
		return
	}
	if h.maxUploadBytes > 0 && req.ContentLength > h.maxUploadBytes {
		httputil.WriteError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("audio must be %dMB or smaller", h.maxUploadBytes/(1<<20)))
		return
	}

	key, err := storage.ClipKey(shop, req.Handle, ext)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to create clip key")
		return
	}
	uploadURL, err := h.storage.GenerateUploadURL(r.Context(), key, req.ContentType, req.ContentLength, uploadURLExpiry)
	if err != nil {
		slog.Error("audio: presign failed", "shop", shop, "key", key, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to generate upload URL")
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, createUploadResponse{
		UploadURL: uploadURL,
		Key:       key,
		AudioURL:  h.storage.PublicURL(key),
		ExpiresAt: time.Now().Add(uploadURLExpiry).UTC(),
	})
}

type completeUploadRequest struct {
	Key string `json:"key"`
}

type completeUploadResponse struct {
	Key         string `json:"key"`
	AudioURL    string `json:"audioUrl"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
	DurationMs  int64  `json:"durationMs"`
}

// CompleteUpload confirms the browser's PUT landed and measures the clip.
// Clips that are too large or cannot be decoded are removed.
func (h *Handler) CompleteUpload(w http.ResponseWriter, r *http.Request) {
	shop := auth.ShopFromContext(r.Context())

	var req completeUploadRequest
	if err := httputil.DecodeJSON(w, r, &req, 0); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !storage.OwnedBy(req.Key, shop) {
		httputil.WriteError(w, http.StatusNotFound, "upload not found")
		return
	}

	size, contentType, err := h.storage.HeadObject(r.Context(), req.Key)
	if err != nil {
		slog.Warn("audio: uploaded clip missing", "shop", shop, "key", req.Key, "error", err)
		httputil.WriteError(w, http.StatusNotFound, "upload not found")
		return
	}
	if h.maxUploadBytes > 0 && size > h.maxUploadBytes {
		h.discard(r.Context(), req.Key)
		httputil.WriteError(w, http.StatusRequestEntityTooLarge, "uploaded audio is too large")
		return
	}

	duration, err := h.measure(r.Context(), req.Key)
	if err != nil {
		if errors.Is(err, ErrUnreadable) {
			h.discard(r.Context(), req.Key)
			httputil.WriteError(w, http.StatusUnprocessableEntity, "audio file could not be decoded")
			return
		}
		slog.Error("audio: probe failed", "shop", shop, "key", req.Key, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to read uploaded audio")
		return
	}

	slog.Info("audio: clip uploaded", "shop", shop, "key", req.Key, "bytes", size, "duration", duration)
	httputil.WriteJSON(w, http.StatusOK, completeUploadResponse{
		Key:         req.Key,
		AudioURL:    h.storage.PublicURL(req.Key),
		Size:        size,
		ContentType: contentType,
		DurationMs:  duration.Milliseconds(),
	})
}

func (h *Handler) measure(ctx context.Context, key string) (time.Duration, error) {
	tmpFile, err := os.CreateTemp("", "playku-probe-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	defer func() { _ = os.Remove(tmpPath) }()

	if err := h.storage.DownloadToFile(ctx, key, tmpPath); err != nil {
		return 0, err
	}
	return h.probe(tmpPath)
}

func (h *Handler) discard(ctx context.Context, key string) {
	if err := h.storage.DeleteObject(ctx, key); err != nil {
		slog.Warn("audio: failed to delete rejected clip", "key", key, "error", err)
	}
}
