package shop

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
)

const testShop = "demo.myshopify.com"

func TestInstall(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	store := NewStore(mock, testSealer(t), "", nil)

	mock.ExpectExec(`INSERT INTO shops`).
		WithArgs(testShop, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := store.Install(context.Background(), testShop, "shpat_abc"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet pgxmock expectations: %v", err)
	}
}

func TestInstalled(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	store := NewStore(mock, testSealer(t), "", nil)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(testShop).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	installed, err := store.Installed(context.Background(), testShop)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !installed {
		t.Error("expected shop to be installed")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet pgxmock expectations: %v", err)
	}
}

func TestAccessTokenDecrypts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	sealer := testSealer(t)
	store := NewStore(mock, sealer, "", nil)
	sealed, _ := sealer.Seal("shpat_abc")

	mock.ExpectQuery(`SELECT access_token_enc FROM shops WHERE shop = \$1`).
		WithArgs(testShop).
		WillReturnRows(pgxmock.NewRows([]string{"access_token_enc"}).AddRow(sealed))

	token, err := store.AccessToken(context.Background(), testShop)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "shpat_abc" {
		t.Errorf("expected %q, got %q", "shpat_abc", token)
	}
}

func TestAccessTokenNotInstalled(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	store := NewStore(mock, testSealer(t), "", nil)

	mock.ExpectQuery(`SELECT access_token_enc FROM shops`).
		WithArgs(testShop).
		WillReturnError(pgx.ErrNoRows)

	_, err = store.AccessToken(context.Background(), testShop)
	if !errors.Is(err, ErrNotInstalled) {
		t.Errorf("expected ErrNotInstalled, got %v", err)
	}

	if _, err := store.Client(context.Background(), testShop); err == nil {
		t.Error("expected client error for unknown shop")
	}
}

func TestUninstall(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	store := NewStore(mock, testSealer(t), "", nil)

	mock.ExpectExec(`DELETE FROM shops WHERE shop = \$1`).
		WithArgs(testShop).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	if err := store.Uninstall(context.Background(), testShop); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet pgxmock expectations: %v", err)
	}
}
