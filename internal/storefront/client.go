package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxErrorBodyBytes = 512

// ProxyClient talks to the app proxy that serves the Catalog and Lookup
// services, e.g. https://shop.example/apps/playku.
type ProxyClient struct {
	baseURL string
	http    *http.Client
}

func NewProxyClient(baseURL string, httpClient *http.Client) *ProxyClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &ProxyClient{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

type catalogRequest struct {
	Theme string `json:"theme"`
}

func (c *ProxyClient) FetchCatalog(ctx context.Context, themeID string) (*CatalogResponse, error) {
	body, err := json.Marshal(catalogRequest{Theme: themeID})
	if err != nil {
		return nil, fmt.Errorf("marshal catalog request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create catalog request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	var resp CatalogResponse
	if err := c.do(req, &resp); err != nil {
		return nil, fmt.Errorf("fetch catalog: %w", err)
	}
	return &resp, nil
}

func (c *ProxyClient) LookupHandle(ctx context.Context, handle string) (*LookupResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+url.PathEscape(handle), nil)
	if err != nil {
		return nil, fmt.Errorf("create lookup request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	var resp LookupResponse
	if err := c.do(req, &resp); err != nil {
		return nil, fmt.Errorf("lookup %s: %w", handle, err)
	}
	return &resp, nil
}

func (c *ProxyClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *ProxyClient) FetchSettings(ctx context.Context) (*WidgetSettings, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/settings", nil)
	if err != nil {
		return nil, fmt.Errorf("create settings request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	settings := DefaultWidgetSettings()
	if err := c.do(req, &settings); err != nil {
		return nil, fmt.Errorf("fetch settings: %w", err)
	}
	return &settings, nil
}

type listenEvent struct {
	Handle string     `json:"handle"`
	Event  TrackEvent `json:"event"`
}

func (c *ProxyClient) Report(ctx context.Context, handle string, event TrackEvent) error {
	body, err := json.Marshal(listenEvent{Handle: handle, Event: event})
	if err != nil {
		return fmt.Errorf("marshal listen event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/events", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create listen event request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("report listen event: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("report listen event: status %d", resp.StatusCode)
	}
	return nil
}
