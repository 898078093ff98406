package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/playku/playku/internal/database"
)

type Repository struct {
	db database.DBTX
}

func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// Get returns the shop's settings laid over the defaults, so keys added
// after a shop last saved still get a value.
func (r *Repository) Get(ctx context.Context, shop string) (Settings, error) {
	var raw []byte
	err := r.db.QueryRow(ctx,
		`SELECT settings FROM player_settings WHERE shop = $1`,
		shop,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return Defaults(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("load player settings: %w", err)
	}

	s := Defaults()
	if err := json.Unmarshal(raw, &s); err != nil {
		slog.Warn("settings: stored settings unreadable, using defaults", "shop", shop, "error", err)
		return Defaults(), nil
	}
	return s, nil
}

func (r *Repository) Put(ctx context.Context, shop string, s Settings) (time.Time, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("marshal player settings: %w", err)
	}
	var updatedAt time.Time
	err = r.db.QueryRow(ctx,
		`INSERT INTO player_settings (shop, settings)
		 VALUES ($1, $2)
		 ON CONFLICT (shop) DO UPDATE SET settings = EXCLUDED.settings, updated_at = now()
		 RETURNING updated_at`,
		shop, raw,
	).Scan(&updatedAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("save player settings: %w", err)
	}
	return updatedAt, nil
}
