package analytics

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/playku/playku/internal/auth"
)

const (
	testShop  = "demo.myshopify.com"
	chromeUA  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	googlebot = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
)

type stubGeo map[string]string

func (g stubGeo) Country(ip string) string { return g[ip] }

func newTrackRequest(body, ua string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/apps/playku/events", strings.NewReader(body))
	req.Header.Set("User-Agent", ua)
	req.Header.Set("X-Forwarded-For", "81.2.69.142, 10.0.0.1")
	return req.WithContext(auth.WithShop(req.Context(), testShop))
}

func TestTrackRecordsEvent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO listen_events`).
		WithArgs(testShop, "blue-shirt", "play", "desktop", "Chrome", "GB").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	h := NewHandler(mock, stubGeo{"81.2.69.142": "GB"})
	rec := httptest.NewRecorder()
	h.Track(rec, newTrackRequest(`{"handle":"blue-shirt","event":"play"}`, chromeUA))

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet pgxmock expectations: %v", err)
	}
}

func TestTrackSkipsBots(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	h := NewHandler(mock, nil)
	rec := httptest.NewRecorder()
	h.Track(rec, newTrackRequest(`{"handle":"blue-shirt","event":"complete"}`, googlebot))

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expected no insert for bots: %v", err)
	}
}

func TestTrackRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"BadJSON", `{`},
		{"BadHandle", `{"handle":"Blue Shirt","event":"play"}`},
		{"UnknownEvent", `{"handle":"blue-shirt","event":"seek"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			if err != nil {
				t.Fatal(err)
			}
			defer mock.Close()

			h := NewHandler(mock, nil)
			rec := httptest.NewRecorder()
			h.Track(rec, newTrackRequest(tt.body, chromeUA))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestTrackDatabaseError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO listen_events`).
		WithArgs(testShop, "blue-shirt", "pause", "desktop", "Chrome", "").
		WillReturnError(errors.New("connection refused"))

	h := NewHandler(mock, nil)
	rec := httptest.NewRecorder()
	h.Track(rec, newTrackRequest(`{"handle":"blue-shirt","event":"pause"}`, chromeUA))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestSummary(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT handle,`).
		WithArgs(testShop, 7).
		WillReturnRows(pgxmock.NewRows([]string{"handle", "plays", "pauses", "completes"}).
			AddRow("blue-shirt", int64(8), int64(3), int64(5)).
			AddRow("red-hat", int64(2), int64(0), int64(1)))
	mock.ExpectQuery(`SELECT device, COUNT`).
		WithArgs(testShop, 7).
		WillReturnRows(pgxmock.NewRows([]string{"device", "cnt"}).
			AddRow("mobile", int64(6)).
			AddRow("desktop", int64(4)))
	mock.ExpectQuery(`SELECT country, COUNT`).
		WithArgs(testShop, 7).
		WillReturnRows(pgxmock.NewRows([]string{"country", "cnt"}).
			AddRow("", int64(10)))

	h := NewHandler(mock, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/analytics?days=7", nil)
	req = req.WithContext(auth.WithShop(req.Context(), testShop))
	rec := httptest.NewRecorder()
	h.Summary(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp summaryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Plays != 10 || resp.Completes != 6 {
		t.Errorf("expected totals 10/6, got %d/%d", resp.Plays, resp.Completes)
	}
	if len(resp.Handles) != 2 || resp.Handles[0].Handle != "blue-shirt" {
		t.Errorf("unexpected handles %+v", resp.Handles)
	}
	if len(resp.Devices) != 2 || resp.Devices[0].Percentage != 60 {
		t.Errorf("unexpected devices %+v", resp.Devices)
	}
	if len(resp.Countries) != 1 || resp.Countries[0].Name != "unknown" {
		t.Errorf("unexpected countries %+v", resp.Countries)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet pgxmock expectations: %v", err)
	}
}

func TestParseDays(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"", 30},
		{"7", 7},
		{"0", 30},
		{"-3", 30},
		{"abc", 30},
		{"1000", 365},
	}
	for _, tt := range tests {
		if got := parseDays(tt.raw); got != tt.want {
			t.Errorf("parseDays(%q): expected %d, got %d", tt.raw, tt.want, got)
		}
	}
}
