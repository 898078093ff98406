package storefront

import (
	"context"
	"log/slog"
	"time"
)

// SettingsSource provides the merchant's widget settings.
type SettingsSource interface {
	FetchSettings(ctx context.Context) (*WidgetSettings, error)
}

// Reporter receives listen events. Reports are fire and forget.
type Reporter interface {
	Report(ctx context.Context, handle string, event TrackEvent) error
}

type Config struct {
	ThemeID  string
	Document Document
	Source   Source
	Settings SettingsSource
	Reporter Reporter
	Icons    IconFactory
	Renderer Renderer
	Engines  EngineFactory
	Store    Store
	Events   EventSource
	Loop     *Loop
	// Scheduler defaults to the loop's scheduler.
	Scheduler Scheduler
	Debounce  time.Duration
	// CurrentProduct returns the handle of the product page being shown, or
	// "" elsewhere.
	CurrentProduct func() string
}

// App wires the storefront components together. Every method must be
// called on the loop.
type App struct {
	cfg        Config
	cache      *Cache
	scanner    *Scanner
	registry   *Registry
	controller *Controller
	view       *StickyView
	reconciler *Reconciler

	ctx      context.Context
	cancel   context.CancelFunc
	payload  Payload
	settings WidgetSettings
	tracks   map[string]Track
	loadSeq  int
	loaded   bool
	restored bool
	unsubs   []func()
}

func NewApp(cfg Config) *App {
	if cfg.Scheduler == nil && cfg.Loop != nil {
		cfg.Scheduler = cfg.Loop.Scheduler()
	}

	a := &App{
		cfg:      cfg,
		cache:    NewCache(cfg.Source),
		settings: DefaultWidgetSettings(),
		tracks:   make(map[string]Track),
		ctx:      context.Background(),
	}

	var dispatch func(func()) bool
	if cfg.Loop != nil {
		dispatch = cfg.Loop.Post
	}
	a.controller = NewController(ControllerConfig{
		NewEngine:    cfg.Engines,
		Store:        cfg.Store,
		Scheduler:    cfg.Scheduler,
		Dispatch:     dispatch,
		OnTrackEvent: a.report,
		AutoLoop:     a.settings.AutoLoop,
	})
	a.registry = NewRegistry(a.iconFactory(), a.settings.IconStyle(), a.controller.PlayByHandle)
	a.scanner = NewScanner(a.registry.Bound)
	a.view = NewStickyView(cfg.Renderer, a.controller, a.settings)
	a.reconciler = NewReconciler(cfg.Scheduler, cfg.Debounce, a.reconcile)
	return a
}

func (a *App) Controller() *Controller { return a.controller }

func (a *App) Registry() *Registry { return a.registry }

func (a *App) View() *StickyView { return a.view }

func (a *App) Reconciler() *Reconciler { return a.reconciler }

// Start loads the catalog, restores saved playback and decorates the page.
func (a *App) Start(ctx context.Context) {
	a.ctx, a.cancel = context.WithCancel(ctx)
	a.unsubs = append(a.unsubs,
		a.controller.Subscribe(a.registry.OnSnapshot),
		a.controller.Subscribe(a.view.OnSnapshot),
	)
	a.reconciler.Listen(a.cfg.Events)
	a.reconcile(true)
}

// Dispose removes everything the app added to the page.
func (a *App) Dispose() {
	a.loadSeq++
	if a.cancel != nil {
		a.cancel()
	}
	a.reconciler.Stop()
	for _, unsub := range a.unsubs {
		unsub()
	}
	a.unsubs = nil
	a.controller.Dispose()
	a.registry.Clear()
	if a.cfg.Renderer != nil {
		a.cfg.Renderer.Hide()
	}
}

func (a *App) reconcile(reload bool) {
	if !reload {
		a.scan()
		return
	}

	a.loadSeq++
	seq := a.loadSeq
	ctx := a.ctx
	loadSettings := !a.loaded
	product := ""
	if a.cfg.CurrentProduct != nil {
		product = a.cfg.CurrentProduct()
	}

	load := func() {
		var settings *WidgetSettings
		if loadSettings {
			settings = a.fetchSettings(ctx)
		}
		payload := a.cache.Load(ctx, a.cfg.ThemeID)
		if product != "" {
			a.cache.Resolve(ctx, product)
		}
		a.post(func() {
			if seq != a.loadSeq {
				return
			}
			a.loaded = true
			if settings != nil {
				a.applySettings(*settings)
			}
			a.payload = payload
			a.scan()
			a.restore()
		})
	}

	if a.cfg.Loop == nil {
		load()
		return
	}
	go contain("catalog load", load)
}

// scan attaches the new products and rebuilds the playlist in document
// order. Tracks whose binding is gone are forgotten.
func (a *App) scan() {
	a.registry.Prune()

	found := a.scanner.Scan(a.cfg.Document, a.payload.Selectors)
	tracks := make([]Track, 0, len(found))
	byHandle := make(map[string]Track, len(found))
	for _, d := range found {
		entry, ok := a.cache.Entry(d.Handle)
		if !ok {
			continue
		}
		if !d.Bound {
			if err := a.registry.Attach(d.Handle, d.Wrapper); err != nil {
				slog.Warn("storefront: failed to attach icon", "handle", d.Handle, "error", err)
				continue
			}
		}
		track := Track{CatalogEntry: entry, Image: d.Image}
		if track.Image == "" {
			track.Image = a.tracks[d.Handle].Image
		}
		tracks = append(tracks, track)
		byHandle[d.Handle] = track
	}
	a.tracks = byHandle

	a.controller.SetPlaylist(NewPlaylist(tracks))
	a.registry.OnSnapshot(a.controller.Snapshot())
}

func (a *App) restore() {
	if a.restored || len(a.payload.Catalog) == 0 {
		return
	}
	a.restored = true

	saved, ok := LoadState(a.cfg.Store)
	if !ok {
		return
	}
	entry, ok := a.cache.Entry(saved.CurrentHandle)
	if !ok {
		slog.Debug("storefront: saved track not in catalog", "handle", saved.CurrentHandle)
		return
	}
	track := Track{CatalogEntry: entry, Image: saved.Image}
	if t, ok := a.tracks[entry.Handle]; ok && t.Image != "" {
		track.Image = t.Image
	}
	a.controller.Restore(track, saved.PositionSeconds)
}

func (a *App) applySettings(s WidgetSettings) {
	a.settings = s
	a.controller.SetAutoLoop(s.AutoLoop)
	a.registry.SetStyle(s.IconStyle())
	a.registry.factory = a.iconFactory()
	a.view.SetSettings(s)
}

func (a *App) fetchSettings(ctx context.Context) *WidgetSettings {
	if a.cfg.Settings == nil {
		return nil
	}
	s, err := a.cfg.Settings.FetchSettings(ctx)
	if err != nil {
		slog.Warn("storefront: settings unavailable, using defaults", "error", err)
		return nil
	}
	return s
}

// iconFactory hides the on-image icons when the merchant turned them off.
// Bindings are still recorded so the playlist and idempotency keep working.
func (a *App) iconFactory() IconFactory {
	if !a.settings.ShowPlayIconOnImage {
		return markerFactory{}
	}
	return a.cfg.Icons
}

func (a *App) report(event TrackEvent, handle string) {
	if a.cfg.Reporter == nil {
		return
	}
	ctx := a.ctx
	go contain("report", func() {
		if err := a.cfg.Reporter.Report(ctx, handle, event); err != nil {
			slog.Debug("storefront: listen event not recorded", "handle", handle, "event", event, "error", err)
		}
	})
}

func (a *App) post(fn func()) {
	if a.cfg.Loop == nil {
		fn()
		return
	}
	a.cfg.Loop.Post(fn)
}

// markerFactory records a binding without drawing anything.
type markerFactory struct{}

func (markerFactory) NewIcon(wrapper Element, _ string, _ IconStyle, _ func()) (Affordance, error) {
	return marker{wrapper: wrapper}, nil
}

type marker struct {
	wrapper Element
}

func (m marker) SetGlyph(Glyph) {}

func (m marker) Connected() bool { return m.wrapper != nil && m.wrapper.Connected() }

func (m marker) Remove() {}
