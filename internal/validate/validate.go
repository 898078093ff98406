package validate

import (
	"fmt"
	"net/url"
	"regexp"
)

// Text field length limits, shared by the admin API and its limits endpoint.
const (
	MaxTitleLength     = 255
	MaxHandleLength    = 255
	MaxThemeNameLength = 100
	MaxSelectorLength  = 500
	MaxSelectorCount   = 50
	MaxIconNameLength  = 100
	MaxAudioURLLength  = 2048
	MaxFilenameLength  = 255
)

// Numeric ranges for player settings.
const (
	MinPlayerHeight = 40
	MaxPlayerHeight = 200
	MinIconSize     = 16
	MaxIconSize     = 96
	MinBarWidth     = 1
	MaxBarWidth     = 10
)

var (
	hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)
	handleRe = regexp.MustCompile(`^[\p{L}\p{N}][\p{L}\p{N}_-]*$`)
)

func checkLen(value string, max int, field string) string {
	if len(value) > max {
		return fmt.Sprintf("%s must be %d characters or fewer", field, max)
	}
	return ""
}

func checkRange(value, min, max int, field string) string {
	if value < min || value > max {
		return fmt.Sprintf("%s must be between %d and %d", field, min, max)
	}
	return ""
}

func Title(s string) string     { return checkLen(s, MaxTitleLength, "title") }
func ThemeName(s string) string {
	if s == "" {
		return "theme is required"
	}
	return checkLen(s, MaxThemeNameLength, "theme")
}
func IconName(s string) string { return checkLen(s, MaxIconNameLength, "icon name") }
func Filename(s string) string { return checkLen(s, MaxFilenameLength, "filename") }

// Handle accepts Shopify product handles: letters, digits, dashes and
// underscores, not starting with a separator.
func Handle(s string) string {
	if s == "" {
		return "handle is required"
	}
	if msg := checkLen(s, MaxHandleLength, "handle"); msg != "" {
		return msg
	}
	if !handleRe.MatchString(s) {
		return "handle contains invalid characters"
	}
	return ""
}

func Selectors(selectors []string) string {
	if len(selectors) > MaxSelectorCount {
		return fmt.Sprintf("at most %d selectors are allowed", MaxSelectorCount)
	}
	for _, s := range selectors {
		if msg := checkLen(s, MaxSelectorLength, "selector"); msg != "" {
			return msg
		}
	}
	return ""
}

// AudioURL requires an absolute http(s) URL. Empty clears the clip.
func AudioURL(s string) string {
	if s == "" {
		return ""
	}
	if msg := checkLen(s, MaxAudioURLLength, "audio URL"); msg != "" {
		return msg
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return "audio URL must be an absolute http(s) URL"
	}
	return ""
}

func Color(s string, field string) string {
	if !hexColor.MatchString(s) {
		return fmt.Sprintf("%s must be a hex colour like #1a2b3c", field)
	}
	return ""
}

func Opacity(v float64) string {
	if v < 0 || v > 1 {
		return "player background opacity must be between 0 and 1"
	}
	return ""
}

func PlayerHeight(v int) string {
	return checkRange(v, MinPlayerHeight, MaxPlayerHeight, "player height")
}
func IconSize(v int) string { return checkRange(v, MinIconSize, MaxIconSize, "icon size") }
func BarWidth(v int) string { return checkRange(v, MinBarWidth, MaxBarWidth, "waveform bar width") }

// FieldLimits returns a map of field names to max lengths for the /api/limits endpoint.
func FieldLimits() map[string]int {
	return map[string]int{
		"title":           MaxTitleLength,
		"handle":          MaxHandleLength,
		"theme":           MaxThemeNameLength,
		"selector":        MaxSelectorLength,
		"selectorCount":   MaxSelectorCount,
		"iconName":        MaxIconNameLength,
		"audioUrl":        MaxAudioURLLength,
		"filename":        MaxFilenameLength,
		"playerHeightMin": MinPlayerHeight,
		"playerHeightMax": MaxPlayerHeight,
		"iconSizeMin":     MinIconSize,
		"iconSizeMax":     MaxIconSize,
	}
}
