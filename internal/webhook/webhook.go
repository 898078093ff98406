// Package webhook receives the Shopify webhooks the app subscribes to:
// uninstalls and the mandatory privacy topics.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/playku/playku/internal/database"
	"github.com/playku/playku/internal/httputil"
)

const (
	maxPayloadBytes = 1 << 20

	HeaderHMAC  = "X-Shopify-Hmac-Sha256"
	HeaderTopic = "X-Shopify-Topic"
	HeaderShop  = "X-Shopify-Shop-Domain"
	HeaderID    = "X-Shopify-Webhook-Id"
)

const (
	TopicAppUninstalled       = "app/uninstalled"
	TopicCustomersDataRequest = "customers/data_request"
	TopicCustomersRedact      = "customers/redact"
	TopicShopRedact           = "shop/redact"
)

// SignPayload computes the base64 HMAC-SHA256 Shopify sends in
// X-Shopify-Hmac-Sha256.
func SignPayload(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func Verify(secret string, payload []byte, signature string) bool {
	got, err := base64.StdEncoding.DecodeString(signature)
	if err != nil || len(got) == 0 {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(got, mac.Sum(nil))
}

type Uninstaller interface {
	Uninstall(ctx context.Context, shop string) error
}

type Handler struct {
	db     database.DBTX
	secret string
	shops  Uninstaller
}

func NewHandler(db database.DBTX, secret string, shops Uninstaller) *Handler {
	return &Handler{db: db, secret: secret, shops: shops}
}

// Receive verifies, deduplicates and applies one webhook. Shopify retries
// anything that is not 2xx, so failures release the delivery id again.
func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes+1))
	if err != nil || len(payload) > maxPayloadBytes {
		httputil.WriteError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if !Verify(h.secret, payload, r.Header.Get(HeaderHMAC)) {
		httputil.WriteError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	topic := r.Header.Get(HeaderTopic)
	shop := r.Header.Get(HeaderShop)
	id := r.Header.Get(HeaderID)
	if topic == "" || shop == "" {
		httputil.WriteError(w, http.StatusBadRequest, "missing webhook headers")
		return
	}

	if id != "" {
		fresh, err := h.claim(r.Context(), id, shop, topic)
		if err != nil {
			slog.Error("webhook: failed to record delivery", "id", id, "error", err)
			httputil.WriteError(w, http.StatusInternalServerError, "failed to record delivery")
			return
		}
		if !fresh {
			slog.Info("webhook: duplicate delivery ignored", "id", id, "topic", topic, "shop", shop)
			w.WriteHeader(http.StatusOK)
			return
		}
	}

	if err := h.apply(r.Context(), topic, shop); err != nil {
		slog.Error("webhook: handling failed", "topic", topic, "shop", shop, "error", err)
		if id != "" {
			h.release(r.Context(), id)
		}
		httputil.WriteError(w, http.StatusInternalServerError, "failed to handle webhook")
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) apply(ctx context.Context, topic, shop string) error {
	switch topic {
	case TopicAppUninstalled, TopicShopRedact:
		if err := h.shops.Uninstall(ctx, shop); err != nil {
			return fmt.Errorf("remove shop data: %w", err)
		}
		slog.Info("webhook: shop data removed", "shop", shop, "topic", topic)
	case TopicCustomersDataRequest, TopicCustomersRedact:
		// No customer data is stored; listen events carry no identity.
		slog.Info("webhook: privacy request acknowledged", "shop", shop, "topic", topic)
	default:
		slog.Warn("webhook: unhandled topic", "shop", shop, "topic", topic)
	}
	return nil
}

func (h *Handler) claim(ctx context.Context, id, shop, topic string) (bool, error) {
	tag, err := h.db.Exec(ctx,
		`INSERT INTO webhook_deliveries (webhook_id, shop, topic)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (webhook_id) DO NOTHING`,
		id, shop, topic,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (h *Handler) release(ctx context.Context, id string) {
	if _, err := h.db.Exec(ctx, `DELETE FROM webhook_deliveries WHERE webhook_id = $1`, id); err != nil {
		slog.Error("webhook: failed to release delivery", "id", id, "error", err)
	}
}

// Prune forgets deliveries older than retention. Shopify stops retrying
// after 48 hours, so older ids can never repeat.
func Prune(ctx context.Context, db database.DBTX, retention time.Duration) (int64, error) {
	tag, err := db.Exec(ctx,
		`DELETE FROM webhook_deliveries WHERE received_at < $1`,
		time.Now().Add(-retention),
	)
	if err != nil {
		return 0, fmt.Errorf("prune webhook deliveries: %w", err)
	}
	return tag.RowsAffected(), nil
}

// RunPruner calls Prune every interval until ctx is done.
func RunPruner(ctx context.Context, db database.DBTX, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := Prune(ctx, db, retention)
			if err != nil {
				slog.Error("webhook: prune failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("webhook: pruned deliveries", "count", n)
			}
		}
	}
}
