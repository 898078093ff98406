// Package catalog serves the storefront Catalog and Lookup services from
// theme selector configs and per-shop product audio.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/playku/playku/internal/database"
	"github.com/playku/playku/internal/storefront"
)

type ThemeConfig struct {
	Theme     string    `json:"theme"`
	Selectors []string  `json:"selectors"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type ProductAudio struct {
	Handle     string `json:"handle"`
	ProductID  string `json:"productId"`
	AudioURL   string `json:"audioUrl"`
	Title      string `json:"title"`
	DurationMs *int64 `json:"durationMs,omitempty"`
}

type Repository struct {
	db database.DBTX
}

func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// ThemeSelectors returns the selectors configured for theme. found is false
// when the theme has no config.
func (r *Repository) ThemeSelectors(ctx context.Context, theme string) (selectors []string, found bool, err error) {
	var raw string
	err = r.db.QueryRow(ctx,
		`SELECT product_image_selectors FROM theme_configs WHERE theme = $1`,
		theme,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load theme selectors: %w", err)
	}
	selectors, err = storefront.ParseSelectors(raw)
	if err != nil {
		slog.Warn("catalog: malformed stored selectors", "theme", theme, "error", err)
		return nil, true, nil
	}
	return selectors, true, nil
}

func (r *Repository) ListThemes(ctx context.Context) ([]ThemeConfig, error) {
	rows, err := r.db.Query(ctx,
		`SELECT theme, product_image_selectors, updated_at FROM theme_configs ORDER BY theme`,
	)
	if err != nil {
		return nil, fmt.Errorf("list themes: %w", err)
	}
	defer rows.Close()

	themes := make([]ThemeConfig, 0)
	for rows.Next() {
		var tc ThemeConfig
		var raw string
		if err := rows.Scan(&tc.Theme, &raw, &tc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan theme: %w", err)
		}
		tc.Selectors, err = storefront.ParseSelectors(raw)
		if err != nil {
			slog.Warn("catalog: malformed stored selectors", "theme", tc.Theme, "error", err)
		}
		if tc.Selectors == nil {
			tc.Selectors = []string{}
		}
		themes = append(themes, tc)
	}
	return themes, rows.Err()
}

// AllSelectors is the deduplicated union of every configured theme's
// selectors, in theme name order.
func (r *Repository) AllSelectors(ctx context.Context) ([]string, error) {
	themes, err := r.ListThemes(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	union := make([]string, 0)
	for _, tc := range themes {
		for _, s := range tc.Selectors {
			if !seen[s] {
				seen[s] = true
				union = append(union, s)
			}
		}
	}
	return union, nil
}

func (r *Repository) UpsertTheme(ctx context.Context, theme string, selectors []string) (time.Time, error) {
	raw, err := json.Marshal(selectors)
	if err != nil {
		return time.Time{}, fmt.Errorf("marshal selectors: %w", err)
	}
	var updatedAt time.Time
	err = r.db.QueryRow(ctx,
		`INSERT INTO theme_configs (theme, product_image_selectors)
		 VALUES ($1, $2)
		 ON CONFLICT (theme) DO UPDATE SET product_image_selectors = EXCLUDED.product_image_selectors, updated_at = now()
		 RETURNING updated_at`,
		theme, string(raw),
	).Scan(&updatedAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("upsert theme: %w", err)
	}
	return updatedAt, nil
}

// ShopCatalog maps every handle of shop that has audio to its clip.
func (r *Repository) ShopCatalog(ctx context.Context, shop string) (map[string]storefront.AudioInfo, error) {
	rows, err := r.db.Query(ctx,
		`SELECT handle, audio_url, title FROM product_audio WHERE shop = $1 AND audio_url <> ''`,
		shop,
	)
	if err != nil {
		return nil, fmt.Errorf("load shop catalog: %w", err)
	}
	defer rows.Close()

	catalog := make(map[string]storefront.AudioInfo)
	for rows.Next() {
		var handle string
		var info storefront.AudioInfo
		if err := rows.Scan(&handle, &info.AudioURL, &info.Title); err != nil {
			return nil, fmt.Errorf("scan product audio: %w", err)
		}
		catalog[handle] = info
	}
	return catalog, rows.Err()
}

func (r *Repository) AudioByHandle(ctx context.Context, shop, handle string) (ProductAudio, bool, error) {
	pa := ProductAudio{Handle: handle}
	err := r.db.QueryRow(ctx,
		`SELECT product_id, audio_url, title, duration_ms FROM product_audio WHERE shop = $1 AND handle = $2`,
		shop, handle,
	).Scan(&pa.ProductID, &pa.AudioURL, &pa.Title, &pa.DurationMs)
	if errors.Is(err, pgx.ErrNoRows) {
		return ProductAudio{}, false, nil
	}
	if err != nil {
		return ProductAudio{}, false, fmt.Errorf("load product audio: %w", err)
	}
	return pa, true, nil
}

func (r *Repository) UpsertAudio(ctx context.Context, shop string, pa ProductAudio) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO product_audio (shop, handle, product_id, audio_url, title, duration_ms)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (shop, handle) DO UPDATE SET
		   product_id = EXCLUDED.product_id,
		   audio_url = EXCLUDED.audio_url,
		   title = EXCLUDED.title,
		   duration_ms = EXCLUDED.duration_ms,
		   updated_at = now()`,
		shop, pa.Handle, pa.ProductID, pa.AudioURL, pa.Title, pa.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("upsert product audio: %w", err)
	}
	return nil
}

func (r *Repository) DeleteAudio(ctx context.Context, shop, handle string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM product_audio WHERE shop = $1 AND handle = $2`, shop, handle); err != nil {
		return fmt.Errorf("delete product audio: %w", err)
	}
	return nil
}
