package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
)

const (
	testSecret = "shpss_test"
	testShop   = "demo.myshopify.com"
)

type stubShops struct {
	removed []string
	err     error
}

func (s *stubShops) Uninstall(_ context.Context, shop string) error {
	s.removed = append(s.removed, shop)
	return s.err
}

func TestSignPayload(t *testing.T) {
	payload := []byte(`{"shop_domain":"demo.myshopify.com"}`)

	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(payload)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	if got := SignPayload(testSecret, payload); got != expected {
		t.Errorf("expected signature %s, got %s", expected, got)
	}
}

func TestVerify(t *testing.T) {
	payload := []byte(`{"id":1}`)
	good := SignPayload(testSecret, payload)

	tests := []struct {
		name      string
		payload   []byte
		signature string
		want      bool
	}{
		{"Valid", payload, good, true},
		{"WrongSecret", payload, SignPayload("other", payload), false},
		{"TamperedBody", []byte(`{"id":2}`), good, false},
		{"NotBase64", payload, "%%%", false},
		{"Empty", payload, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Verify(testSecret, tt.payload, tt.signature); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func webhookRequest(topic, id, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks", strings.NewReader(body))
	req.Header.Set(HeaderHMAC, SignPayload(testSecret, []byte(body)))
	req.Header.Set(HeaderTopic, topic)
	req.Header.Set(HeaderShop, testShop)
	if id != "" {
		req.Header.Set(HeaderID, id)
	}
	return req
}

func TestReceiveUninstall(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO webhook_deliveries`).
		WithArgs("wh-1", testShop, TopicAppUninstalled).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	shops := &stubShops{}
	h := NewHandler(mock, testSecret, shops)
	rec := httptest.NewRecorder()
	h.Receive(rec, webhookRequest(TopicAppUninstalled, "wh-1", `{"domain":"demo.myshopify.com"}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(shops.removed) != 1 || shops.removed[0] != testShop {
		t.Errorf("expected shop removed, got %v", shops.removed)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet pgxmock expectations: %v", err)
	}
}

func TestReceiveDuplicateIsIgnored(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO webhook_deliveries`).
		WithArgs("wh-1", testShop, TopicShopRedact).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	shops := &stubShops{}
	h := NewHandler(mock, testSecret, shops)
	rec := httptest.NewRecorder()
	h.Receive(rec, webhookRequest(TopicShopRedact, "wh-1", `{}`))

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if len(shops.removed) != 0 {
		t.Errorf("expected duplicate not to be applied, got %v", shops.removed)
	}
}

func TestReceiveFailureReleasesDelivery(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO webhook_deliveries`).
		WithArgs("wh-2", testShop, TopicAppUninstalled).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`DELETE FROM webhook_deliveries WHERE webhook_id = \$1`).
		WithArgs("wh-2").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	h := NewHandler(mock, testSecret, &stubShops{err: errors.New("db down")})
	rec := httptest.NewRecorder()
	h.Receive(rec, webhookRequest(TopicAppUninstalled, "wh-2", `{}`))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet pgxmock expectations: %v", err)
	}
}

func TestReceivePrivacyTopicsAcknowledged(t *testing.T) {
	for _, topic := range []string{TopicCustomersDataRequest, TopicCustomersRedact, "products/update"} {
		t.Run(topic, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			if err != nil {
				t.Fatal(err)
			}
			defer mock.Close()

			shops := &stubShops{}
			h := NewHandler(mock, testSecret, shops)
			rec := httptest.NewRecorder()
			h.Receive(rec, webhookRequest(topic, "", `{"customer":{"id":1}}`))

			if rec.Code != http.StatusOK {
				t.Errorf("expected 200, got %d", rec.Code)
			}
			if len(shops.removed) != 0 {
				t.Errorf("expected no shop removal, got %v", shops.removed)
			}
		})
	}
}

func TestReceiveRejects(t *testing.T) {
	t.Run("BadSignature", func(t *testing.T) {
		h := NewHandler(nil, testSecret, &stubShops{})
		req := webhookRequest(TopicAppUninstalled, "wh-3", `{}`)
		req.Header.Set(HeaderHMAC, SignPayload("wrong", []byte(`{}`)))
		rec := httptest.NewRecorder()
		h.Receive(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("MissingTopic", func(t *testing.T) {
		h := NewHandler(nil, testSecret, &stubShops{})
		req := webhookRequest("", "wh-3", `{}`)
		rec := httptest.NewRecorder()
		h.Receive(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})
}

func TestPrune(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectExec(`DELETE FROM webhook_deliveries WHERE received_at < \$1`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))

	n, err := Prune(context.Background(), mock, 72*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 4 {
		t.Errorf("expected 4 pruned, got %d", n)
	}
}

func TestRunPrunerStopsOnCancel(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		RunPruner(ctx, mock, time.Hour, time.Hour)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pruner did not stop after cancel")
	}
}
