// Package analytics records storefront listen events and summarises them
// for the merchant.
package analytics

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/playku/playku/internal/auth"
	"github.com/playku/playku/internal/database"
	"github.com/playku/playku/internal/httputil"
	"github.com/playku/playku/internal/storefront"
	"github.com/playku/playku/internal/validate"
)

const (
	defaultDays = 30
	maxDays     = 365
)

// GeoResolver maps a client address to an ISO country code, or "".
type GeoResolver interface {
	Country(ip string) string
}

type Handler struct {
	db  database.DBTX
	geo GeoResolver
}

func NewHandler(db database.DBTX, geo GeoResolver) *Handler {
	return &Handler{db: db, geo: geo}
}

type trackRequest struct {
	Handle string                `json:"handle"`
	Event  storefront.TrackEvent `json:"event"`
}

func validEvent(e storefront.TrackEvent) bool {
	switch e {
	case storefront.TrackPlay, storefront.TrackPause, storefront.TrackComplete:
		return true
	}
	return false
}

// Track stores one listen event. Crawlers are acknowledged but not
// counted.
func (h *Handler) Track(w http.ResponseWriter, r *http.Request) {
	shop := auth.ShopFromContext(r.Context())
	if shop == "" {
		httputil.WriteError(w, http.StatusBadRequest, "Missing shop")
		return
	}

	var req trackRequest
	if err := httputil.DecodeJSON(w, r, &req, 1<<10); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validate.Handle(req.Handle); msg != "" {
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	if !validEvent(req.Event) {
		httputil.WriteError(w, http.StatusBadRequest, "event must be play, pause or complete")
		return
	}

	c := parseClient(r.UserAgent())
	if c.Bot {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	var country string
	if h.geo != nil {
		country = h.geo.Country(httputil.ClientIP(r))
	}

	// Shops that are not installed insert nothing.
	if _, err := h.db.Exec(r.Context(),
		`INSERT INTO listen_events (shop, handle, event, device, browser, country)
		 SELECT $1, $2, $3, $4, $5, $6
		 WHERE EXISTS (SELECT 1 FROM shops WHERE shop = $1)`,
		shop, req.Handle, string(req.Event), c.Device, c.Browser, country,
	); err != nil {
		slog.Error("analytics: failed to record listen", "shop", shop, "handle", req.Handle, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to record event")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type handleCounts struct {
	Handle    string `json:"handle"`
	Plays     int64  `json:"plays"`
	Pauses    int64  `json:"pauses"`
	Completes int64  `json:"completes"`
}

type breakdownItem struct {
	Name       string  `json:"name"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

type summaryResponse struct {
	Days      int             `json:"days"`
	Plays     int64           `json:"plays"`
	Completes int64           `json:"completes"`
	Handles   []handleCounts  `json:"handles"`
	Devices   []breakdownItem `json:"devices"`
	Countries []breakdownItem `json:"countries"`
}

func parseDays(raw string) int {
	days, err := strconv.Atoi(raw)
	if err != nil || days < 1 {
		return defaultDays
	}
	if days > maxDays {
		return maxDays
	}
	return days
}

// Summary answers GET /api/analytics?days=N with per-handle counts and
// device and country breakdowns of plays.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	shop := auth.ShopFromContext(r.Context())
	days := parseDays(r.URL.Query().Get("days"))

	rows, err := h.db.Query(r.Context(),
		`SELECT handle,
		        COUNT(*) FILTER (WHERE event = 'play'),
		        COUNT(*) FILTER (WHERE event = 'pause'),
		        COUNT(*) FILTER (WHERE event = 'complete')
		 FROM listen_events
		 WHERE shop = $1 AND created_at >= now() - make_interval(days => $2)
		 GROUP BY handle
		 ORDER BY 2 DESC, handle`,
		shop, days,
	)
	if err != nil {
		slog.Error("analytics: summary query failed", "shop", shop, "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load analytics")
		return
	}
	defer rows.Close()

	resp := summaryResponse{Days: days, Handles: make([]handleCounts, 0)}
	for rows.Next() {
		var hc handleCounts
		if err := rows.Scan(&hc.Handle, &hc.Plays, &hc.Pauses, &hc.Completes); err != nil {
			httputil.WriteError(w, http.StatusInternalServerError, "failed to load analytics")
			return
		}
		resp.Plays += hc.Plays
		resp.Completes += hc.Completes
		resp.Handles = append(resp.Handles, hc)
	}
	if err := rows.Err(); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to load analytics")
		return
	}

	resp.Devices = h.breakdown(r, "device", shop, days)
	resp.Countries = h.breakdown(r, "country", shop, days)
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// breakdown groups plays by column. Failures degrade to an empty list.
func (h *Handler) breakdown(r *http.Request, column, shop string, days int) []breakdownItem {
	items := make([]breakdownItem, 0)
	rows, err := h.db.Query(r.Context(),
		`SELECT `+column+`, COUNT(*) AS cnt
		 FROM listen_events
		 WHERE shop = $1 AND event = 'play' AND created_at >= now() - make_interval(days => $2)
		 GROUP BY `+column+` ORDER BY cnt DESC`,
		shop, days,
	)
	if err != nil {
		slog.Warn("analytics: breakdown query failed", "column", column, "error", err)
		return items
	}
	defer rows.Close()

	var total int64
	for rows.Next() {
		var item breakdownItem
		if err := rows.Scan(&item.Name, &item.Count); err != nil {
			continue
		}
		if item.Name == "" {
			item.Name = "unknown"
		}
		total += item.Count
		items = append(items, item)
	}
	for i := range items {
		items[i].Percentage = math.Round(float64(items[i].Count)/float64(total)*1000) / 10
	}
	return items
}
