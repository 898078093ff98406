package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	testAPIKey    = "api-key-123"
	testAPISecret = "api-secret"
	testShop      = "demo.myshopify.com"
)

func signSessionToken(t *testing.T, secret string, claims SessionClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func validClaims() SessionClaims {
	now := time.Now()
	return SessionClaims{
		Dest: "https://" + testShop,
		Sid:  "session-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://" + testShop + "/admin",
			Audience:  jwt.ClaimStrings{testAPIKey},
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
}

func TestValidateSessionToken_Valid(t *testing.T) {
	token := signSessionToken(t, testAPISecret, validClaims())

	claims, err := ValidateSessionToken(testAPIKey, testAPISecret, token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	shop, err := claims.Shop()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if shop != testShop {
		t.Errorf("expected shop %q, got %q", testShop, shop)
	}
}

func TestValidateSessionToken_WrongSecret(t *testing.T) {
	token := signSessionToken(t, "other-secret", validClaims())

	if _, err := ValidateSessionToken(testAPIKey, testAPISecret, token); err == nil {
		t.Fatal("expected error for wrong secret")
	}
}

func TestValidateSessionToken_WrongAudience(t *testing.T) {
	claims := validClaims()
	claims.Audience = jwt.ClaimStrings{"someone-else"}
	token := signSessionToken(t, testAPISecret, claims)

	if _, err := ValidateSessionToken(testAPIKey, testAPISecret, token); err == nil {
		t.Fatal("expected error for wrong audience")
	}
}

func TestValidateSessionToken_Expired(t *testing.T) {
	claims := validClaims()
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	token := signSessionToken(t, testAPISecret, claims)

	_, err := ValidateSessionToken(testAPIKey, testAPISecret, token)
	if !errors.Is(err, jwt.ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestValidateSessionToken_WithinLeeway(t *testing.T) {
	claims := validClaims()
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-2 * time.Second))
	token := signSessionToken(t, testAPISecret, claims)

	if _, err := ValidateSessionToken(testAPIKey, testAPISecret, token); err != nil {
		t.Errorf("expected token within leeway to pass, got %v", err)
	}
}

func TestValidateSessionToken_MissingExpiry(t *testing.T) {
	claims := validClaims()
	claims.ExpiresAt = nil
	token := signSessionToken(t, testAPISecret, claims)

	if _, err := ValidateSessionToken(testAPIKey, testAPISecret, token); err == nil {
		t.Fatal("expected error for token without exp")
	}
}

func TestValidateSessionToken_RejectsNoneAlgorithm(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, validClaims()).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := ValidateSessionToken(testAPIKey, testAPISecret, token); err == nil {
		t.Fatal("expected error for alg none")
	}
}

func TestSessionClaimsShop(t *testing.T) {
	tests := []struct {
		dest    string
		want    string
		wantErr bool
	}{
		{"https://demo.myshopify.com", "demo.myshopify.com", false},
		{"https://demo.example.com", "", true},
		{"", "", true},
		{"::not a url", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.dest, func(t *testing.T) {
			claims := SessionClaims{Dest: tt.dest}
			got, err := claims.Shop()
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error=%v, got %v", tt.wantErr, err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
