package shopify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestTokenExchange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/admin/oauth/access_token" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostForm.Get("subject_token") != "session-jwt" {
			t.Errorf("expected subject token, got %q", r.PostForm.Get("subject_token"))
		}
		if r.PostForm.Get("client_id") != "key" || r.PostForm.Get("client_secret") != "secret" {
			t.Errorf("expected app credentials, got %v", r.PostForm)
		}
		if !strings.HasSuffix(r.PostForm.Get("requested_token_type"), "offline-access-token") {
			t.Errorf("expected offline token type, got %q", r.PostForm.Get("requested_token_type"))
		}
		_, _ = w.Write([]byte(`{"access_token":"shpat_abc","scope":"write_products,write_script_tags"}`))
	}))
	defer srv.Close()

	ex := NewTokenExchanger("key", "secret", srv.Client())
	ex.scheme = "http"

	tok, err := ex.Exchange(context.Background(), strings.TrimPrefix(srv.URL, "http://"), "session-jwt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok.Token != "shpat_abc" {
		t.Errorf("expected token %q, got %q", "shpat_abc", tok.Token)
	}
	if tok.Scope != "write_products,write_script_tags" {
		t.Errorf("unexpected scope %q", tok.Scope)
	}
}

func TestTokenExchangeRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_subject_token"}`))
	}))
	defer srv.Close()

	ex := NewTokenExchanger("key", "secret", srv.Client())
	ex.scheme = "http"

	_, err := ex.Exchange(context.Background(), strings.TrimPrefix(srv.URL, "http://"), "expired")
	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 status error, got %v", err)
	}
}

func TestTokenExchangeRequiresInput(t *testing.T) {
	ex := NewTokenExchanger("key", "secret", nil)
	if _, err := ex.Exchange(context.Background(), "", "token"); err == nil {
		t.Error("expected error for empty shop")
	}
}
