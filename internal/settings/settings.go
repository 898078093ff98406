// Package settings stores each shop's player appearance.
package settings

import (
	"github.com/playku/playku/internal/storefront"
	"github.com/playku/playku/internal/validate"
)

// Element toggles one part of the sticky player.
type Element struct {
	Key     string `json:"key"`
	Visible bool   `json:"visible"`
}

const (
	ElementImage    = "image"
	ElementTitle    = "title"
	ElementControls = "controls"
	ElementWaveform = "waveform"
	ElementClose    = "close"
)

var elementKeys = []string{ElementImage, ElementTitle, ElementControls, ElementWaveform, ElementClose}

// Settings is everything the admin edits. The embedded widget fields are
// what storefronts receive; icon names and elements only drive the admin
// preview and the rendered player.
type Settings struct {
	storefront.WidgetSettings

	IconOnProduct  string    `json:"iconOnProduct"`
	PlayPauseIcons string    `json:"playPauseIcons"`
	NextPrevIcons  string    `json:"nextPrevIcons"`
	CloseIcon      string    `json:"closeIcon"`
	Elements       []Element `json:"elements"`
}

func Defaults() Settings {
	elements := make([]Element, 0, len(elementKeys))
	for _, k := range elementKeys {
		elements = append(elements, Element{Key: k, Visible: true})
	}
	return Settings{
		WidgetSettings: storefront.DefaultWidgetSettings(),
		IconOnProduct:  "bi-play, bi-pause",
		PlayPauseIcons: "bi-play, bi-pause",
		NextPrevIcons:  "bi-skip-backward, bi-skip-forward",
		CloseIcon:      "bi-x",
		Elements:       elements,
	}
}

// Visible reports whether element key is shown. Unlisted elements are.
func (s Settings) Visible(key string) bool {
	for _, e := range s.Elements {
		if e.Key == key {
			return e.Visible
		}
	}
	return true
}

// Widget is the storefront view of the settings, with hidden elements
// folded into the show flags.
func (s Settings) Widget() storefront.WidgetSettings {
	w := s.WidgetSettings
	w.ShowImage = w.ShowImage && s.Visible(ElementImage)
	w.ShowTitle = w.ShowTitle && s.Visible(ElementTitle)
	w.ShowControls = w.ShowControls && s.Visible(ElementControls)
	w.ShowWaveform = w.ShowWaveform && s.Visible(ElementWaveform)
	w.ShowClose = w.ShowClose && s.Visible(ElementClose)
	return w
}

// Validate returns the first problem found, or "".
func (s Settings) Validate() string {
	switch s.Style {
	case storefront.VariantWaveform, storefront.VariantSpectrum, storefront.VariantLine:
	default:
		return "style must be waveform, spectrum or line"
	}
	if storefront.ParsePosition(s.IconPosition) != storefront.Position(s.IconPosition) {
		return "icon position is not supported"
	}

	colors := []struct{ value, field string }{
		{s.IconColor, "icon color"},
		{s.IconBackground, "icon background color"},
		{s.PlayerBgColor, "player background color"},
		{s.ControlColor, "control color"},
		{s.WaveColor, "wave color"},
		{s.ProgressColor, "progress color"},
	}
	for _, c := range colors {
		if msg := validate.Color(c.value, c.field); msg != "" {
			return msg
		}
	}

	checks := []string{
		validate.Opacity(s.PlayerBgOpacity),
		validate.PlayerHeight(s.PlayerHeight),
		validate.IconSize(s.IconSize),
		validate.BarWidth(s.WaveformBarWidth),
		validate.IconName(s.IconOnProduct),
		validate.IconName(s.PlayPauseIcons),
		validate.IconName(s.NextPrevIcons),
		validate.IconName(s.CloseIcon),
	}
	for _, msg := range checks {
		if msg != "" {
			return msg
		}
	}

	seen := make(map[string]bool, len(s.Elements))
	for _, e := range s.Elements {
		if !isElementKey(e.Key) {
			return "unknown player element: " + e.Key
		}
		if seen[e.Key] {
			return "duplicate player element: " + e.Key
		}
		seen[e.Key] = true
	}
	return ""
}

func isElementKey(key string) bool {
	for _, k := range elementKeys {
		if k == key {
			return true
		}
	}
	return false
}
