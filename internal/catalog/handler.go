package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/playku/playku/internal/auth"
	"github.com/playku/playku/internal/httputil"
	"github.com/playku/playku/internal/shopify"
	"github.com/playku/playku/internal/storefront"
	"github.com/playku/playku/internal/validate"
)

const productGIDPrefix = "gid://shopify/Product/"

type InstallChecker interface {
	Installed(ctx context.Context, shop string) (bool, error)
}

// Shops reaches a shop's Admin API.
type Shops interface {
	Client(ctx context.Context, shop string) (*shopify.Client, error)
	ProductByHandle(ctx context.Context, shop, handle string) (shopify.Product, error)
}

type Handler struct {
	repo     *Repository
	installs InstallChecker
	shops    Shops
}

func NewHandler(repo *Repository, installs InstallChecker, shops Shops) *Handler {
	return &Handler{repo: repo, installs: installs, shops: shops}
}

type catalogRequest struct {
	Theme   string `json:"theme"`
	ThemeID string `json:"themeId"`
}

// requireShop answers 404 for shops that never installed the app.
func (h *Handler) requireShop(w http.ResponseWriter, r *http.Request) (string, bool) {
	shop := auth.ShopFromContext(r.Context())
	if shop == "" {
		httputil.WriteError(w, http.StatusBadRequest, "Missing shop")
		return "", false
	}
	installed, err := h.installs.Installed(r.Context(), shop)
	if err != nil {
		slog.Error("catalog: install check failed", "shop", shop, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load shop")
		return "", false
	}
	if !installed {
		httputil.WriteError(w, http.StatusNotFound, "Shop not found")
		return "", false
	}
	return shop, true
}

// Catalog answers the storefront with the selectors for its theme and the
// shop's handle to audio map. Unknown themes get every configured selector.
func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	var req catalogRequest
	if err := httputil.DecodeJSON(w, r, &req, 4<<10); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	theme := strings.TrimSpace(req.Theme)
	if theme == "" {
		theme = strings.TrimSpace(req.ThemeID)
	}
	if theme == "" {
		httputil.WriteError(w, http.StatusBadRequest, "Missing theme")
		return
	}

	shop, ok := h.requireShop(w, r)
	if !ok {
		return
	}

	selectors, found, err := h.repo.ThemeSelectors(r.Context(), theme)
	if err == nil && !found {
		selectors, err = h.repo.AllSelectors(r.Context())
	}
	if err != nil {
		slog.Error("catalog: selectors unavailable", "shop", shop, "theme", theme, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load selectors")
		return
	}
	if selectors == nil {
		selectors = []string{}
	}

	entries, err := h.repo.ShopCatalog(r.Context(), shop)
	if err != nil {
		slog.Error("catalog: shop catalog unavailable", "shop", shop, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load catalog")
		return
	}

	raw, _ := json.Marshal(selectors)
	w.Header().Set("Cache-Control", "private, max-age=60")
	httputil.WriteJSON(w, http.StatusOK, storefront.CatalogResponse{
		Selectors: string(raw),
		Catalog:   entries,
	})
}

// Lookup resolves one handle. Absence is a 200 with null fields. Handles
// missing locally are fetched live from the Admin API and remembered.
func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "handle")
	if msg := validate.Handle(handle); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	shop, ok := h.requireShop(w, r)
	if !ok {
		return
	}

	pa, found, err := h.repo.AudioByHandle(r.Context(), shop, handle)
	if err != nil {
		slog.Error("catalog: lookup failed", "shop", shop, "handle", handle, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to look up product")
		return
	}
	if !found && h.shops != nil {
		pa, found = h.lookupLive(r.Context(), shop, handle)
	}

	var resp storefront.LookupResponse
	if found && pa.AudioURL != "" {
		resp.AudioURL = &pa.AudioURL
		resp.Title = &pa.Title
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) lookupLive(ctx context.Context, shop, handle string) (ProductAudio, bool) {
	p, err := h.shops.ProductByHandle(ctx, shop, handle)
	if errors.Is(err, shopify.ErrProductNotFound) {
		return ProductAudio{}, false
	}
	if err != nil {
		slog.Warn("catalog: live lookup failed", "shop", shop, "handle", handle, "error", err)
		return ProductAudio{}, false
	}
	if p.AudioURL == "" {
		return ProductAudio{}, false
	}
	pa := ProductAudio{Handle: p.Handle, ProductID: p.ID, AudioURL: p.AudioURL, Title: p.Title}
	if err := h.repo.UpsertAudio(ctx, shop, pa); err != nil {
		slog.Warn("catalog: caching live lookup failed", "shop", shop, "handle", handle, "error", err)
	}
	return pa, true
}

type themeRequest struct {
	Selectors []string `json:"selectors"`
}

func (h *Handler) ListThemes(w http.ResponseWriter, r *http.Request) {
	themes, err := h.repo.ListThemes(r.Context())
	if err != nil {
		slog.Error("catalog: list themes failed", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list themes")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, themes)
}

func (h *Handler) PutTheme(w http.ResponseWriter, r *http.Request) {
	theme := strings.TrimSpace(chi.URLParam(r, "theme"))
	if msg := validate.ThemeName(theme); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	var req themeRequest
	if err := httputil.DecodeJSON(w, r, &req, 0); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	raw, _ := json.Marshal(req.Selectors)
	selectors, _ := storefront.ParseSelectors(string(raw))
	if selectors == nil {
		selectors = []string{}
	}
	if msg := validate.Selectors(selectors); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	updatedAt, err := h.repo.UpsertTheme(r.Context(), theme, selectors)
	if err != nil {
		slog.Error("catalog: save theme failed", "theme", theme, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to save theme")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ThemeConfig{Theme: theme, Selectors: selectors, UpdatedAt: updatedAt})
}

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	shop := auth.ShopFromContext(r.Context())
	client, err := h.shops.Client(r.Context(), shop)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "shop client unavailable")
		return
	}
	page, err := client.ListProducts(r.Context(), 20, r.URL.Query().Get("after"))
	if err != nil {
		slog.Error("catalog: list products failed", "shop", shop, "error", err)
		httputil.WriteError(w, http.StatusBadGateway, "failed to list products")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, page)
}

type setAudioRequest struct {
	Handle     string `json:"handle"`
	Title      string `json:"title"`
	AudioURL   string `json:"audioUrl"`
	DurationMs *int64 `json:"durationMs"`
}

// SetProductAudio writes the metafield in Shopify first, then mirrors it
// locally so the proxy can answer without calling Shopify. An empty
// audioUrl removes the clip.
func (h *Handler) SetProductAudio(w http.ResponseWriter, r *http.Request) {
	shop := auth.ShopFromContext(r.Context())
	productID := chi.URLParam(r, "id")
	if !strings.HasPrefix(productID, productGIDPrefix) {
		productID = productGIDPrefix + productID
	}

	var req setAudioRequest
	if err := httputil.DecodeJSON(w, r, &req, 0); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.AudioURL = strings.TrimSpace(req.AudioURL)
	for _, msg := range []string{validate.Handle(req.Handle), validate.Title(req.Title), validate.AudioURL(req.AudioURL)} {
		if msg != "" {
			httputil.WriteError(w, http.StatusBadRequest, msg)
			return
		}
	}

	client, err := h.shops.Client(r.Context(), shop)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "shop client unavailable")
		return
	}
	if err := client.SetProductAudio(r.Context(), productID, req.AudioURL); err != nil {
		var ue *shopify.UserErrorsError
		if errors.As(err, &ue) {
			httputil.WriteError(w, http.StatusUnprocessableEntity, ue.Error())
			return
		}
		slog.Error("catalog: set metafield failed", "shop", shop, "product", productID, "error", err)
		httputil.WriteError(w, http.StatusBadGateway, "failed to update product")
		return
	}

	if req.AudioURL == "" {
		err = h.repo.DeleteAudio(r.Context(), shop, req.Handle)
	} else {
		err = h.repo.UpsertAudio(r.Context(), shop, ProductAudio{
			Handle:     req.Handle,
			ProductID:  productID,
			AudioURL:   req.AudioURL,
			Title:      req.Title,
			DurationMs: req.DurationMs,
		})
	}
	if err != nil {
		slog.Error("catalog: mirror product audio failed", "shop", shop, "handle", req.Handle, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to save product audio")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"productId": productID,
		"handle":    req.Handle,
		"audioUrl":  req.AudioURL,
		"updatedAt": time.Now().UTC().Format(time.RFC3339),
	})
}
