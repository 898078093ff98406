// Package shop records installed shops and their offline Admin API tokens.
package shop

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/playku/playku/internal/database"
	"github.com/playku/playku/internal/shopify"
)

var ErrNotInstalled = errors.New("shop not installed")

type Store struct {
	db         database.DBTX
	sealer     *Sealer
	apiVersion string
	httpClient *http.Client
}

func NewStore(db database.DBTX, sealer *Sealer, apiVersion string, httpClient *http.Client) *Store {
	return &Store{db: db, sealer: sealer, apiVersion: apiVersion, httpClient: httpClient}
}

// Install records the shop, replacing any previous token.
func (s *Store) Install(ctx context.Context, shop, accessToken string) error {
	sealed, err := s.sealer.Seal(accessToken)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO shops (shop, access_token_enc)
		 VALUES ($1, $2)
		 ON CONFLICT (shop) DO UPDATE SET access_token_enc = EXCLUDED.access_token_enc`,
		shop, sealed,
	)
	if err != nil {
		return fmt.Errorf("install shop: %w", err)
	}
	return nil
}

// Uninstall forgets the shop and, through cascades, all its data.
func (s *Store) Uninstall(ctx context.Context, shop string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM shops WHERE shop = $1`, shop); err != nil {
		return fmt.Errorf("uninstall shop: %w", err)
	}
	return nil
}

func (s *Store) Installed(ctx context.Context, shop string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM shops WHERE shop = $1 AND access_token_enc IS NOT NULL)`,
		shop,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check install: %w", err)
	}
	return exists, nil
}

func (s *Store) AccessToken(ctx context.Context, shop string) (string, error) {
	var sealed []byte
	err := s.db.QueryRow(ctx, `SELECT access_token_enc FROM shops WHERE shop = $1`, shop).Scan(&sealed)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && sealed == nil) {
		return "", ErrNotInstalled
	}
	if err != nil {
		return "", fmt.Errorf("load access token: %w", err)
	}
	return s.sealer.Open(sealed)
}

// Client returns an Admin API client acting as shop.
func (s *Store) Client(ctx context.Context, shop string) (*shopify.Client, error) {
	token, err := s.AccessToken(ctx, shop)
	if err != nil {
		return nil, err
	}
	return shopify.NewClient(shopify.Config{
		ShopDomain:  shop,
		AccessToken: token,
		APIVersion:  s.apiVersion,
	}, s.httpClient), nil
}

// ProductByHandle looks a product up live through the Admin API.
func (s *Store) ProductByHandle(ctx context.Context, shop, handle string) (shopify.Product, error) {
	client, err := s.Client(ctx, shop)
	if err != nil {
		return shopify.Product{}, err
	}
	return client.ProductByHandle(ctx, handle)
}
