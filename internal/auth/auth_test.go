package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubInstalls struct {
	installed bool
	err       error
	asked     string
}

func (s *stubInstalls) Installed(_ context.Context, shop string) (bool, error) {
	s.asked = shop
	return s.installed, s.err
}

func serveWithAuth(h *Handler, header string) (*httptest.ResponseRecorder, string) {
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ShopFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/settings", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	h.Middleware(next).ServeHTTP(rec, req)
	return rec, seen
}

func TestMiddleware_ValidToken(t *testing.T) {
	installs := &stubInstalls{installed: true}
	h := NewHandler(testAPIKey, testAPISecret, installs)
	token := signSessionToken(t, testAPISecret, validClaims())

	rec, shop := serveWithAuth(h, "Bearer "+token)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if shop != testShop {
		t.Errorf("expected shop %q in context, got %q", testShop, shop)
	}
	if installs.asked != testShop {
		t.Errorf("expected install check for %q, got %q", testShop, installs.asked)
	}
}

func TestMiddleware_Rejections(t *testing.T) {
	token := signSessionToken(t, testAPISecret, validClaims())
	foreign := validClaims()
	foreign.Dest = "https://evil.example.com"
	foreignToken := signSessionToken(t, testAPISecret, foreign)

	tests := []struct {
		name     string
		header   string
		installs *stubInstalls
		want     int
	}{
		{"MissingHeader", "", nil, http.StatusUnauthorized},
		{"NotBearer", "Basic abc", nil, http.StatusUnauthorized},
		{"Garbage", "Bearer not-a-jwt", nil, http.StatusUnauthorized},
		{"ForeignDest", "Bearer " + foreignToken, nil, http.StatusUnauthorized},
		{"NotInstalled", "Bearer " + token, &stubInstalls{installed: false}, http.StatusForbidden},
		{"LookupError", "Bearer " + token, &stubInstalls{err: errors.New("db down")}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var installs InstallChecker
			if tt.installs != nil {
				installs = tt.installs
			}
			h := NewHandler(testAPIKey, testAPISecret, installs)

			rec, _ := serveWithAuth(h, tt.header)

			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestShopFromContextEmpty(t *testing.T) {
	if got := ShopFromContext(context.Background()); got != "" {
		t.Errorf("expected empty shop, got %q", got)
	}
}
