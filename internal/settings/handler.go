package settings

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/playku/playku/internal/auth"
	"github.com/playku/playku/internal/httputil"
)

type InstallChecker interface {
	Installed(ctx context.Context, shop string) (bool, error)
}

type Handler struct {
	repo     *Repository
	installs InstallChecker
}

func NewHandler(repo *Repository, installs InstallChecker) *Handler {
	return &Handler{repo: repo, installs: installs}
}

type settingsResponse struct {
	Settings
	Defaults Settings `json:"defaults"`
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	shop := auth.ShopFromContext(r.Context())
	s, err := h.repo.Get(r.Context(), shop)
	if err != nil {
		slog.Error("settings: load failed", "shop", shop, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, settingsResponse{Settings: s, Defaults: Defaults()})
}

// Put replaces the shop's settings. Keys missing from the body take their
// default value.
func (h *Handler) Put(w http.ResponseWriter, r *http.Request) {
	shop := auth.ShopFromContext(r.Context())

	s := Defaults()
	if err := httputil.DecodeJSON(w, r, &s, 64<<10); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := s.Validate(); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	if _, err := h.repo.Put(r.Context(), shop, s); err != nil {
		slog.Error("settings: save failed", "shop", shop, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}
	slog.Info("settings: saved", "shop", shop, "style", s.Style)
	httputil.WriteJSON(w, http.StatusOK, s)
}

// Widget serves the storefront subset through the app proxy.
func (h *Handler) Widget(w http.ResponseWriter, r *http.Request) {
	shop := auth.ShopFromContext(r.Context())
	if shop == "" {
		httputil.WriteError(w, http.StatusBadRequest, "Missing shop")
		return
	}
	installed, err := h.installs.Installed(r.Context(), shop)
	if err != nil {
		slog.Error("settings: install check failed", "shop", shop, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load shop")
		return
	}
	if !installed {
		httputil.WriteError(w, http.StatusNotFound, "Shop not found")
		return
	}

	s, err := h.repo.Get(r.Context(), shop)
	if err != nil {
		slog.Error("settings: load failed", "shop", shop, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	w.Header().Set("Cache-Control", "private, max-age=60")
	httputil.WriteJSON(w, http.StatusOK, s.Widget())
}
