package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
)

// ErrMalformedSelectors is logged when the Catalog Service returns a
// selector list that is not a JSON array of strings.
var ErrMalformedSelectors = errors.New("malformed selector list")

// CatalogEntry is the audio attached to one product.
type CatalogEntry struct {
	Handle   string `json:"handle"`
	AudioURL string `json:"audioUrl"`
	Title    string `json:"title"`
}

// Catalog maps product handles to their audio.
type Catalog map[string]CatalogEntry

// AudioInfo is the wire form of a catalog value.
type AudioInfo struct {
	AudioURL string `json:"audioUrl"`
	Title    string `json:"title"`
}

// CatalogResponse is the Catalog Service payload. Selectors is a JSON
// encoded list of CSS selectors.
type CatalogResponse struct {
	Selectors string               `json:"selectors"`
	Catalog   map[string]AudioInfo `json:"catalog"`
}

// LookupResponse is the Lookup Service payload. A nil AudioURL means the
// product has no audio.
type LookupResponse struct {
	AudioURL *string `json:"audioUrl"`
	Title    *string `json:"title"`
}

// Source is the remote side of the catalog.
type Source interface {
	FetchCatalog(ctx context.Context, themeID string) (*CatalogResponse, error)
	LookupHandle(ctx context.Context, handle string) (*LookupResponse, error)
}

// Payload is what one scan cycle works with.
type Payload struct {
	Selectors []string
	Catalog   Catalog
}

type lookupResult struct {
	entry CatalogEntry
	ok    bool
}

// Cache holds the catalog of the current page.
type Cache struct {
	source Source

	mu      sync.Mutex
	catalog Catalog
	lookups map[string]lookupResult
}

func NewCache(source Source) *Cache {
	return &Cache{
		source:  source,
		catalog: Catalog{},
		lookups: make(map[string]lookupResult),
	}
}

// Load fetches selectors and catalog for a theme. It never fails: any
// service error degrades to an empty payload and is logged.
func (c *Cache) Load(ctx context.Context, themeID string) Payload {
	payload, err := c.fetch(ctx, themeID)
	if err != nil {
		slog.Warn("catalog: load failed, no icons will be injected", "theme", themeID, "error", err)
		payload = Payload{Catalog: Catalog{}}
	}

	c.mu.Lock()
	c.catalog = payload.Catalog
	c.lookups = make(map[string]lookupResult)
	c.mu.Unlock()

	return payload
}

func (c *Cache) fetch(ctx context.Context, themeID string) (Payload, error) {
	if c.source == nil {
		return Payload{}, errors.New("no catalog source")
	}
	resp, err := c.source.FetchCatalog(ctx, themeID)
	if err != nil {
		return Payload{}, err
	}
	if resp == nil {
		return Payload{}, errors.New("empty catalog response")
	}

	selectors, err := ParseSelectors(resp.Selectors)
	if err != nil {
		return Payload{}, err
	}

	catalog := make(Catalog, len(resp.Catalog))
	for handle, info := range resp.Catalog {
		handle = strings.TrimSpace(handle)
		if handle == "" || info.AudioURL == "" {
			continue
		}
		catalog[handle] = CatalogEntry{Handle: handle, AudioURL: info.AudioURL, Title: info.Title}
	}
	return Payload{Selectors: selectors, Catalog: catalog}, nil
}

// Entry returns the loaded entry for handle.
func (c *Cache) Entry(handle string) (CatalogEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.catalog[handle]
	if ok {
		return entry, true
	}
	if res, found := c.lookups[handle]; found && res.ok {
		return res.entry, true
	}
	return CatalogEntry{}, false
}

// Resolve returns the entry for handle, asking the Lookup Service when the
// loaded catalog does not have it. Answers, including misses, are kept for
// the lifetime of the page.
func (c *Cache) Resolve(ctx context.Context, handle string) (CatalogEntry, bool) {
	c.mu.Lock()
	if entry, ok := c.catalog[handle]; ok {
		c.mu.Unlock()
		return entry, true
	}
	if res, found := c.lookups[handle]; found {
		c.mu.Unlock()
		return res.entry, res.ok
	}
	c.mu.Unlock()

	var result lookupResult
	if c.source != nil {
		resp, err := c.source.LookupHandle(ctx, handle)
		switch {
		case err != nil:
			slog.Warn("catalog: lookup failed", "handle", handle, "error", err)
		case resp != nil && resp.AudioURL != nil && *resp.AudioURL != "":
			result = lookupResult{ok: true, entry: CatalogEntry{Handle: handle, AudioURL: *resp.AudioURL}}
			if resp.Title != nil {
				result.entry.Title = *resp.Title
			}
		}
	}

	c.mu.Lock()
	c.lookups[handle] = result
	c.mu.Unlock()
	return result.entry, result.ok
}

// ParseSelectors decodes a JSON encoded selector list.
func ParseSelectors(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var selectors []string
	if err := json.Unmarshal([]byte(raw), &selectors); err != nil {
		return nil, errors.Join(ErrMalformedSelectors, err)
	}
	return cleanSelectors(selectors), nil
}
