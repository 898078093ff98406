//go:build js && wasm

// Command playku-inject is the storefront widget. It is compiled to
// WebAssembly and started by the /inject/playku.js loader.
package main

import (
	"context"
	"log/slog"
	"syscall/js"

	"github.com/playku/playku/internal/storefront"
)

const defaultProxyPath = "/apps/playku"

func main() {
	window := js.Global()
	doc := window.Get("document")

	var level slog.LevelVar
	if debugEnabled(window) {
		level.Set(slog.LevelDebug)
	}
	slog.SetDefault(slog.New(newConsoleHandler(window.Get("console"), &level)))

	theme := themeName(doc)
	if theme == "" {
		slog.Warn("playku: could not find theme name on page")
	}

	origin := window.Get("location").Get("origin").String()
	proxy := storefront.NewProxyClient(origin+proxyPath(window), nil)

	loop := storefront.NewLoop()
	renderer := newStickyRenderer(doc, loop)

	app := storefront.NewApp(storefront.Config{
		ThemeID:        theme,
		Document:       newDocument(doc),
		Source:         proxy,
		Settings:       proxy,
		Reporter:       proxy,
		Icons:          newIconFactory(doc, loop),
		Renderer:       renderer,
		Engines:        audioEngines(doc),
		Store:          newLocalStore(window),
		Events:         newPageEvents(window, doc, loop),
		Loop:           loop,
		CurrentProduct: func() string { return currentProduct(window) },
	})
	renderer.bind(app.View())

	ctx := context.Background()
	loop.Post(func() { app.Start(ctx) })

	window.Set("PlayKu", js.ValueOf(map[string]any{
		"dispose": js.FuncOf(func(js.Value, []js.Value) any {
			loop.Post(func() {
				app.Dispose()
				loop.Stop()
			})
			return nil
		}),
		"ready": true,
	}))
	dispatchReady(window, doc, theme)

	loop.Run(ctx)
}

// themeName is read from the tag the theme app block renders.
func themeName(doc js.Value) string {
	script := doc.Call("querySelector", "script[data-theme-name]")
	if script.IsNull() {
		return ""
	}
	return script.Call("getAttribute", "data-theme-name").String()
}

func proxyPath(window js.Value) string {
	cfg := window.Get("PlayKuConfig")
	if cfg.Truthy() {
		if p := cfg.Get("proxyPath"); p.Type() == js.TypeString && p.String() != "" {
			return p.String()
		}
	}
	return defaultProxyPath
}

func debugEnabled(window js.Value) bool {
	cfg := window.Get("PlayKuConfig")
	return cfg.Truthy() && cfg.Get("debug").Truthy()
}

func currentProduct(window js.Value) string {
	return storefront.HandleFromHref(window.Get("location").Get("pathname").String())
}

func dispatchReady(window, doc js.Value, theme string) {
	event := window.Get("CustomEvent").New("playku:ready", map[string]any{
		"detail": map[string]any{"theme": theme},
	})
	doc.Call("dispatchEvent", event)
}
