package auth

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Leeway absorbs clock skew between Shopify and this server.
const Leeway = 10 * time.Second

var ErrInvalidShop = errors.New("session token does not name a shop")

// SessionClaims are the App Bridge session token claims. Dest is the shop
// origin, e.g. https://example.myshopify.com.
type SessionClaims struct {
	Dest string `json:"dest"`
	Sid  string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// Shop returns the bare myshopify domain the token was issued for.
func (c *SessionClaims) Shop() (string, error) {
	u, err := url.Parse(c.Dest)
	if err != nil || u.Host == "" {
		return "", ErrInvalidShop
	}
	if !strings.HasSuffix(u.Host, ".myshopify.com") {
		return "", ErrInvalidShop
	}
	return u.Host, nil
}

// ValidateSessionToken checks signature, expiry and that the audience is
// this app's API key.
func ValidateSessionToken(apiKey, secret, tokenStr string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &SessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	},
		jwt.WithAudience(apiKey),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(Leeway),
	)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}
