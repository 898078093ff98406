//go:build js && wasm

package main

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"syscall/js"

	"github.com/playku/playku/internal/storefront"
)

const stickyMarkup = `<div class="playku-sticky__art"><img alt=""></div>
<div class="playku-sticky__meta"><span class="playku-sticky__title"></span><span class="playku-sticky__time"></span></div>
<div class="playku-sticky__controls">
  <button type="button" data-action="previous" aria-label="Previous">&#9198;</button>
  <button type="button" data-action="toggle" aria-label="Play">&#9654;</button>
  <button type="button" data-action="next" aria-label="Next">&#9197;</button>
</div>
<div class="playku-sticky__track"><div class="playku-sticky__progress"></div></div>
<button type="button" class="playku-sticky__close" data-action="close" aria-label="Close">&times;</button>`

// stickyRenderer draws the page-bottom player. It only touches the nodes
// whose content changed since the previous render.
type stickyRenderer struct {
	doc  js.Value
	loop *storefront.Loop
	view *storefront.StickyView

	root    js.Value
	onClick js.Func
	last    storefront.StickyModel
	drawn   bool
}

func newStickyRenderer(doc js.Value, loop *storefront.Loop) *stickyRenderer {
	return &stickyRenderer{doc: doc, loop: loop}
}

func (r *stickyRenderer) bind(view *storefront.StickyView) {
	r.view = view
}

func (r *stickyRenderer) Render(m storefront.StickyModel) {
	if !r.root.Truthy() {
		r.build()
	}
	prev, first := r.last, !r.drawn
	r.last, r.drawn = m, true

	if first || prev.Settings != m.Settings {
		r.root.Call("setAttribute", "style", stickyCSS(m.Settings))
		r.root.Call("setAttribute", "data-variant", string(storefront.ParseVariant(string(m.Settings.Style))))
		r.query(".playku-sticky__progress").Get("style").Set("background", m.Settings.ProgressColor)
		r.query(".playku-sticky__track").Get("style").Set("background", m.Settings.WaveColor)
	}
	if first || prev.Controls != m.Controls || prev.Waveform != m.Waveform || prev.Closable != m.Closable {
		r.query(".playku-sticky__controls").Get("style").Set("display", displayIf(m.Controls))
		r.query(".playku-sticky__track").Get("style").Set("display", displayIf(m.Waveform))
		r.query(".playku-sticky__close").Get("style").Set("display", displayIf(m.Closable))
	}
	if first || prev.Title != m.Title {
		r.query(".playku-sticky__title").Set("textContent", m.Title)
	}
	if first || prev.Image != m.Image {
		art := r.query(".playku-sticky__art")
		art.Get("style").Set("display", displayIf(m.Image != ""))
		art.Call("querySelector", "img").Set("src", m.Image)
	}
	if first || prev.Playing != m.Playing || prev.Loading != m.Loading {
		toggle := r.query(`[data-action="toggle"]`)
		label, glyph := "Play", "&#9654;"
		if m.Playing {
			label, glyph = "Pause", "&#10074;&#10074;"
		}
		toggle.Set("innerHTML", glyph)
		toggle.Call("setAttribute", "aria-label", label)
		r.root.Call("setAttribute", "aria-busy", strconv.FormatBool(m.Loading))
	}
	if first || prev.Progress != m.Progress {
		r.query(".playku-sticky__progress").Get("style").Set("width", fmt.Sprintf("%.2f%%", m.Progress*100))
	}
	if first || int(prev.Position) != int(m.Position) || int(prev.Duration) != int(m.Duration) {
		r.query(".playku-sticky__time").Set("textContent", clock(m.Position)+" / "+clock(m.Duration))
	}
	r.root.Get("style").Set("display", "flex")
}

func (r *stickyRenderer) Hide() {
	if !r.root.Truthy() {
		return
	}
	r.root.Get("style").Set("display", "none")
	r.drawn = false
}

func (r *stickyRenderer) build() {
	root := r.doc.Call("createElement", "div")
	root.Set("className", "playku-sticky")
	root.Call("setAttribute", "role", "region")
	root.Call("setAttribute", "aria-label", "Audio player")
	root.Set("innerHTML", stickyMarkup)

	r.onClick = js.FuncOf(func(_ js.Value, args []js.Value) any {
		if len(args) == 0 || r.view == nil {
			return nil
		}
		ev := args[0]
		target := ev.Get("target")
		if button := target.Call("closest", "[data-action]"); button.Truthy() {
			action := button.Call("getAttribute", "data-action").String()
			r.loop.Post(func() { r.dispatch(action) })
			return nil
		}
		if track := target.Call("closest", ".playku-sticky__track"); track.Truthy() {
			rect := track.Call("getBoundingClientRect")
			width := rect.Get("width").Float()
			if width <= 0 {
				return nil
			}
			fraction := (ev.Get("clientX").Float() - rect.Get("left").Float()) / width
			r.loop.Post(func() { r.view.Seek(fraction) })
		}
		return nil
	})
	root.Call("addEventListener", "click", r.onClick)
	r.doc.Get("body").Call("appendChild", root)
	r.root = root
}

func (r *stickyRenderer) dispatch(action string) {
	switch action {
	case "toggle":
		r.view.TogglePlay()
	case "next":
		r.view.Next()
	case "previous":
		r.view.Previous()
	case "close":
		r.view.Close()
	}
}

func (r *stickyRenderer) query(selector string) js.Value {
	return r.root.Call("querySelector", selector)
}

func displayIf(visible bool) string {
	if visible {
		return ""
	}
	return "none"
}

func clock(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	s := int(seconds)
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

func stickyCSS(s storefront.WidgetSettings) string {
	height := s.PlayerHeight
	if height <= 0 {
		height = 75
	}
	var b strings.Builder
	b.WriteString("position:fixed;left:0;right:0;bottom:0;z-index:2147483000;align-items:center;gap:12px;padding:0 16px;box-sizing:border-box;")
	fmt.Fprintf(&b, "height:%dpx;", height)
	fmt.Fprintf(&b, "background:%s;", html.EscapeString(withOpacity(s.PlayerBgColor, s.PlayerBgOpacity)))
	fmt.Fprintf(&b, "color:%s;", html.EscapeString(s.ControlColor))
	return b.String()
}

// withOpacity turns #rrggbb and an opacity into rgba(). Other colour forms
// are returned unchanged.
func withOpacity(hex string, opacity float64) string {
	if opacity <= 0 || opacity > 1 {
		opacity = 1
	}
	h := strings.TrimPrefix(hex, "#")
	if len(h) != 6 {
		return hex
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return hex
	}
	return fmt.Sprintf("rgba(%d,%d,%d,%.2f)", v>>16&0xff, v>>8&0xff, v&0xff, opacity)
}
