package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/playku/playku/internal/httputil"
)

type contextKey string

const shopKey contextKey = "shop"

// InstallChecker reports whether a shop has installed the app.
type InstallChecker interface {
	Installed(ctx context.Context, shop string) (bool, error)
}

// Handler authenticates embedded admin requests with App Bridge session
// tokens.
type Handler struct {
	apiKey    string
	apiSecret string
	installs  InstallChecker
}

func NewHandler(apiKey, apiSecret string, installs InstallChecker) *Handler {
	return &Handler{apiKey: apiKey, apiSecret: apiSecret, installs: installs}
}

func (h *Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			httputil.WriteError(w, http.StatusUnauthorized, "authorization header required")
			return
		}

		tokenStr, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found {
			httputil.WriteError(w, http.StatusUnauthorized, "invalid authorization header format")
			return
		}

		claims, err := ValidateSessionToken(h.apiKey, h.apiSecret, tokenStr)
		if err != nil {
			httputil.WriteError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		shop, err := claims.Shop()
		if err != nil {
			httputil.WriteError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		if h.installs != nil {
			installed, err := h.installs.Installed(r.Context(), shop)
			if err != nil {
				slog.Error("auth: install lookup failed", "shop", shop, "error", err)
				httputil.WriteError(w, http.StatusInternalServerError, "failed to verify shop")
				return
			}
			if !installed {
				httputil.WriteError(w, http.StatusForbidden, "shop not installed")
				return
			}
		}

		next.ServeHTTP(w, r.WithContext(WithShop(r.Context(), shop)))
	})
}

func WithShop(ctx context.Context, shop string) context.Context {
	return context.WithValue(ctx, shopKey, shop)
}

func ShopFromContext(ctx context.Context) string {
	shop, _ := ctx.Value(shopKey).(string)
	return shop
}
