package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func serveSecured(cfg SecurityConfig) *httptest.ResponseRecorder {
	handler := securityHeaders(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	return rec
}

func TestSecurityHeaders_AllowsShopifyAdminFraming(t *testing.T) {
	rec := serveSecured(SecurityConfig{BaseURL: "https://app.test"})

	csp := rec.Header().Get("Content-Security-Policy")
	if !strings.Contains(csp, "frame-ancestors https://*.myshopify.com https://admin.shopify.com") {
		t.Errorf("CSP should allow the Shopify admin to frame the app, got: %s", csp)
	}
	if rec.Header().Get("X-Frame-Options") != "" {
		t.Error("X-Frame-Options would block the embedded admin")
	}
}

func TestSecurityHeaders_CSPAllowsAppBridge(t *testing.T) {
	rec := serveSecured(SecurityConfig{BaseURL: "https://app.test"})

	csp := rec.Header().Get("Content-Security-Policy")
	if !strings.Contains(csp, "script-src 'self' https://cdn.shopify.com;") {
		t.Errorf("CSP script-src should allow App Bridge only, got: %s", csp)
	}
	if strings.Contains(csp, "script-src 'self' 'unsafe-inline'") {
		t.Errorf("CSP should not allow inline scripts, got: %s", csp)
	}
}

func TestSecurityHeaders_CSPIncludesStorageEndpoint(t *testing.T) {
	rec := serveSecured(SecurityConfig{
		BaseURL:         "https://app.test",
		StorageEndpoint: "https://storage.example.com",
	})

	csp := rec.Header().Get("Content-Security-Policy")
	for _, directive := range []string{
		"connect-src 'self' https://storage.example.com",
		"media-src 'self' https://storage.example.com",
	} {
		if !strings.Contains(csp, directive) {
			t.Errorf("CSP should contain %q, got: %s", directive, csp)
		}
	}
}

func TestSecurityHeaders_HSTS(t *testing.T) {
	tests := []struct {
		baseURL string
		want    bool
	}{
		{"https://app.test", true},
		{"http://localhost:8080", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.baseURL, func(t *testing.T) {
			rec := serveSecured(SecurityConfig{BaseURL: tt.baseURL})
			got := rec.Header().Get("Strict-Transport-Security") != ""
			if got != tt.want {
				t.Errorf("expected HSTS=%v, got %v", tt.want, got)
			}
		})
	}
}

func TestSecurityHeaders_Basics(t *testing.T) {
	rec := serveSecured(SecurityConfig{})
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("expected nosniff, got %q", got)
	}
	if got := rec.Header().Get("Referrer-Policy"); got != "strict-origin-when-cross-origin" {
		t.Errorf("unexpected Referrer-Policy %q", got)
	}
}

func TestPublicAssetHeaders(t *testing.T) {
	handler := publicAssetHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/inject/playku.js", nil))

	if got := rec.Header().Get("Cross-Origin-Resource-Policy"); got != "cross-origin" {
		t.Errorf("expected cross-origin resource policy, got %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected any origin, got %q", got)
	}
}
