package storefront

// Variant is the visualisation of the sticky player.
type Variant string

const (
	VariantWaveform Variant = "waveform"
	VariantSpectrum Variant = "spectrum"
	VariantLine     Variant = "line"
)

func ParseVariant(s string) Variant {
	switch v := Variant(s); v {
	case VariantSpectrum, VariantLine:
		return v
	default:
		return VariantWaveform
	}
}

// WidgetSettings is the merchant configuration the injected widget needs.
type WidgetSettings struct {
	Style               Variant `json:"style"`
	AutoLoop            bool    `json:"autoLoop"`
	ShowPlayIconOnImage bool    `json:"showPlayIconOnImage"`
	ShowTitle           bool    `json:"showTitle"`
	ShowImage           bool    `json:"showImage"`
	ShowControls        bool    `json:"showControls"`
	ShowWaveform        bool    `json:"showWaveform"`
	ShowClose           bool    `json:"showClose"`
	IconPosition        string  `json:"iconPosition"`
	IconColor           string  `json:"iconOnProductColor"`
	IconBackground      string  `json:"iconOnProductBgColor"`
	IconSize            int     `json:"iconOnProductSize"`
	PlayerHeight        int     `json:"playerHeight"`
	PlayerBgColor       string  `json:"playerBgColor"`
	PlayerBgOpacity     float64 `json:"playerBgOpacity"`
	ControlColor        string  `json:"iconColor"`
	WaveColor           string  `json:"waveColor"`
	ProgressColor       string  `json:"progressColor"`
	WaveformBarWidth    int     `json:"waveformBarWidth"`
}

func DefaultWidgetSettings() WidgetSettings {
	return WidgetSettings{
		Style:               VariantWaveform,
		AutoLoop:            true,
		ShowPlayIconOnImage: true,
		ShowTitle:           true,
		ShowImage:           true,
		ShowControls:        true,
		ShowWaveform:        true,
		ShowClose:           true,
		IconPosition:        string(PositionBottomLeft),
		IconColor:           "#ffffff",
		IconBackground:      "#000000",
		IconSize:            32,
		PlayerHeight:        75,
		PlayerBgColor:       "#181818",
		PlayerBgOpacity:     1,
		ControlColor:        "#ffffff",
		WaveColor:           "#888888",
		ProgressColor:       "#ffffff",
		WaveformBarWidth:    2,
	}
}

func (s WidgetSettings) IconStyle() IconStyle {
	return IconStyle{
		Position:   ParsePosition(s.IconPosition),
		Size:       s.IconSize,
		Color:      s.IconColor,
		Background: s.IconBackground,
	}
}

// StickyModel is everything the sticky player draws.
type StickyModel struct {
	Handle   string
	Title    string
	Image    string
	AudioURL string
	Playing  bool
	Loading  bool
	Position float64
	Duration float64
	Progress float64
	// Parts of the player the merchant left visible.
	Controls bool
	Waveform bool
	Closable bool
	Settings WidgetSettings
}

// Renderer draws the sticky player. Render is called on every change and
// must be cheap when nothing visible changed.
type Renderer interface {
	Render(StickyModel)
	Hide()
}

// StickyView binds the page-bottom player to the controller. It only reads
// snapshots; user actions go back through the controller.
type StickyView struct {
	renderer   Renderer
	controller *Controller
	settings   WidgetSettings
	visible    bool
}

func NewStickyView(renderer Renderer, controller *Controller, settings WidgetSettings) *StickyView {
	return &StickyView{renderer: renderer, controller: controller, settings: settings}
}

func (v *StickyView) SetSettings(settings WidgetSettings) {
	v.settings = settings
}

func (v *StickyView) Visible() bool {
	return v.visible
}

func (v *StickyView) OnSnapshot(s Snapshot) {
	if v.renderer == nil {
		return
	}
	if !s.HasTrack {
		if v.visible {
			v.visible = false
			v.renderer.Hide()
		}
		return
	}

	model := StickyModel{
		Handle:   s.Track.Handle,
		Title:    s.Track.Title,
		Image:    s.Track.Image,
		AudioURL: s.Track.AudioURL,
		Playing:  s.IsPlaying,
		Loading:  s.State == StateLoading,
		Position: s.Position,
		Duration: s.Duration,
		Progress: s.Progress(),
		Controls: v.settings.ShowControls,
		Waveform: v.settings.ShowWaveform,
		Closable: v.settings.ShowClose,
		Settings: v.settings,
	}
	if !v.settings.ShowTitle {
		model.Title = ""
	}
	if !v.settings.ShowImage {
		model.Image = ""
	}
	v.visible = true
	v.renderer.Render(model)
}

func (v *StickyView) TogglePlay() { v.controller.TogglePause() }

func (v *StickyView) Next() { v.controller.Next() }

func (v *StickyView) Previous() { v.controller.Previous() }

func (v *StickyView) Seek(fraction float64) { v.controller.SeekFraction(fraction) }

// Close tears down playback and forgets the saved state.
func (v *StickyView) Close() { v.controller.Close() }
