package shop

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/playku/playku/internal/auth"
	"github.com/playku/playku/internal/httputil"
	"github.com/playku/playku/internal/shopify"
)

type Exchanger interface {
	Exchange(ctx context.Context, shop, sessionToken string) (shopify.AccessToken, error)
}

type Installer interface {
	Install(ctx context.Context, shop, accessToken string) error
	Client(ctx context.Context, shop string) (*shopify.Client, error)
}

// Handler serves shop lifecycle endpoints for the embedded admin.
type Handler struct {
	shops     Installer
	exchanger Exchanger
	scriptURL string
}

func NewHandler(shops Installer, exchanger Exchanger, scriptURL string) *Handler {
	return &Handler{shops: shops, exchanger: exchanger, scriptURL: scriptURL}
}

type sessionResponse struct {
	Shop               string `json:"shop"`
	ScriptTagInstalled bool   `json:"scriptTagInstalled"`
	MetafieldDefined   bool   `json:"metafieldDefined"`
}

// Session runs on every admin load. It exchanges the session token for an
// offline token, stores it and makes sure the storefront script and the
// audio metafield definition exist. Setup failures are reported but do not
// fail the session.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	shop := auth.ShopFromContext(r.Context())
	sessionToken := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	tok, err := h.exchanger.Exchange(r.Context(), shop, sessionToken)
	if err != nil {
		slog.Error("shop: token exchange failed", "shop", shop, "error", err)
		httputil.WriteError(w, http.StatusBadGateway, "failed to exchange session token")
		return
	}
	if err := h.shops.Install(r.Context(), shop, tok.Token); err != nil {
		slog.Error("shop: install failed", "shop", shop, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to install shop")
		return
	}

	resp := sessionResponse{Shop: shop}
	client, err := h.shops.Client(r.Context(), shop)
	if err != nil {
		slog.Error("shop: client unavailable after install", "shop", shop, "error", err)
		httputil.WriteJSON(w, http.StatusOK, resp)
		return
	}
	if err := client.CreateAudioMetafieldDefinition(r.Context()); err != nil {
		slog.Warn("shop: metafield definition failed", "shop", shop, "error", err)
	} else {
		resp.MetafieldDefined = true
	}
	if _, created, err := client.RegisterScriptTag(r.Context(), h.scriptURL); err != nil {
		slog.Warn("shop: script tag registration failed", "shop", shop, "error", err)
	} else {
		resp.ScriptTagInstalled = true
		if created {
			slog.Info("shop: script tag registered", "shop", shop, "src", h.scriptURL)
		}
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

type scriptTagResponse struct {
	ID      string `json:"id"`
	Src     string `json:"src"`
	Created bool   `json:"created"`
}

func (h *Handler) RegisterScriptTag(w http.ResponseWriter, r *http.Request) {
	shop := auth.ShopFromContext(r.Context())
	client, err := h.shops.Client(r.Context(), shop)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "shop client unavailable")
		return
	}
	tag, created, err := client.RegisterScriptTag(r.Context(), h.scriptURL)
	if err != nil {
		slog.Error("shop: script tag registration failed", "shop", shop, "error", err)
		httputil.WriteError(w, http.StatusBadGateway, "failed to register script tag")
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httputil.WriteJSON(w, status, scriptTagResponse{ID: tag.ID, Src: tag.Src, Created: created})
}

func (h *Handler) CreateMetafieldDefinition(w http.ResponseWriter, r *http.Request) {
	shop := auth.ShopFromContext(r.Context())
	client, err := h.shops.Client(r.Context(), shop)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "shop client unavailable")
		return
	}
	if err := client.CreateAudioMetafieldDefinition(r.Context()); err != nil {
		slog.Error("shop: metafield definition failed", "shop", shop, "error", err)
		httputil.WriteError(w, http.StatusBadGateway, "failed to create metafield definition")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
