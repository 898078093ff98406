package analytics

import (
	"strings"

	"github.com/mssola/useragent"
)

type client struct {
	Device  string
	Browser string
	Bot     bool
}

func parseClient(raw string) client {
	if strings.TrimSpace(raw) == "" {
		return client{Device: "unknown", Browser: "unknown"}
	}
	ua := useragent.New(raw)
	if ua.Bot() {
		return client{Bot: true}
	}

	browser, _ := ua.Browser()
	if browser == "" {
		browser = "other"
	}

	device := "desktop"
	switch {
	case strings.Contains(raw, "iPad") || strings.Contains(raw, "Tablet") ||
		(strings.Contains(raw, "Android") && !strings.Contains(raw, "Mobile")):
		device = "tablet"
	case ua.Mobile():
		device = "mobile"
	}
	return client{Device: device, Browser: browser}
}
