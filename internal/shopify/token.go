package shopify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// TokenExchanger trades an App Bridge session token for an offline Admin
// API access token.
type TokenExchanger struct {
	apiKey     string
	apiSecret  string
	httpClient *http.Client
	// scheme is overridden in tests to reach an httptest server.
	scheme string
}

func NewTokenExchanger(apiKey, apiSecret string, httpClient *http.Client) *TokenExchanger {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &TokenExchanger{apiKey: apiKey, apiSecret: apiSecret, httpClient: httpClient, scheme: "https"}
}

type AccessToken struct {
	Token string `json:"access_token"`
	Scope string `json:"scope"`
}

func (e *TokenExchanger) Exchange(ctx context.Context, shop, sessionToken string) (AccessToken, error) {
	if shop == "" || sessionToken == "" {
		return AccessToken{}, errors.New("shop and session token are required")
	}
	form := url.Values{
		"client_id":            {e.apiKey},
		"client_secret":        {e.apiSecret},
		"grant_type":           {"urn:ietf:params:oauth:grant-type:token-exchange"},
		"subject_token":        {sessionToken},
		"subject_token_type":   {"urn:ietf:params:oauth:token-type:id_token"},
		"requested_token_type": {"urn:shopify:params:oauth:token-type:offline-access-token"},
	}
	endpoint := e.scheme + "://" + shop + "/admin/oauth/access_token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return AccessToken{}, fmt.Errorf("build token exchange request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return AccessToken{}, fmt.Errorf("token exchange: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return AccessToken{}, fmt.Errorf("read token exchange response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return AccessToken{}, newHTTPStatusError(resp.StatusCode, resp.Status, body)
	}

	var tok AccessToken
	if err := json.Unmarshal(body, &tok); err != nil {
		return AccessToken{}, fmt.Errorf("decode token exchange response: %w", err)
	}
	if tok.Token == "" {
		return AccessToken{}, errors.New("token exchange returned no access token")
	}
	return tok, nil
}
