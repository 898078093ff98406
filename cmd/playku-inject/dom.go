//go:build js && wasm

package main

import (
	"fmt"
	"log/slog"
	"strings"
	"syscall/js"

	"github.com/playku/playku/internal/storefront"
)

// try runs fn and turns a thrown JavaScript exception into an error.
func try(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if jsErr, ok := r.(js.Error); ok {
				err = jsErr
				return
			}
			err = fmt.Errorf("%v", r)
		}
	}()
	fn()
	return nil
}

type document struct {
	doc js.Value
}

func newDocument(doc js.Value) *document {
	return &document{doc: doc}
}

// QueryAll drops selectors the browser rejects, then runs one query so the
// result comes back in document order.
func (d *document) QueryAll(selectors []string) []storefront.Element {
	valid := make([]string, 0, len(selectors))
	for _, sel := range selectors {
		if err := try(func() { d.doc.Call("querySelector", sel) }); err != nil {
			slog.Debug("playku: ignoring invalid selector", "selector", sel, "error", err)
			continue
		}
		valid = append(valid, sel)
	}
	if len(valid) == 0 {
		return nil
	}

	var list js.Value
	if err := try(func() { list = d.doc.Call("querySelectorAll", strings.Join(valid, ", ")) }); err != nil {
		slog.Warn("playku: selector query failed", "error", err)
		return nil
	}
	n := list.Length()
	out := make([]storefront.Element, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, element{v: list.Index(i)})
	}
	return out
}

type element struct {
	v js.Value
}

func wrap(v js.Value) (storefront.Element, bool) {
	if v.IsNull() || v.IsUndefined() {
		return nil, false
	}
	return element{v: v}, true
}

func (e element) Closest(selector string) (storefront.Element, bool) {
	var found js.Value
	if err := try(func() { found = e.v.Call("closest", selector) }); err != nil {
		return nil, false
	}
	return wrap(found)
}

func (e element) FindFirst(selector string) (storefront.Element, bool) {
	var found js.Value
	if err := try(func() { found = e.v.Call("querySelector", selector) }); err != nil {
		return nil, false
	}
	return wrap(found)
}

func (e element) Parent() (storefront.Element, bool) {
	return wrap(e.v.Get("parentElement"))
}

func (e element) Children() []storefront.Element {
	children := e.v.Get("children")
	n := children.Length()
	out := make([]storefront.Element, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, element{v: children.Index(i)})
	}
	return out
}

func (e element) Matches(selector string) bool {
	matched := false
	_ = try(func() { matched = e.v.Call("matches", selector).Bool() })
	return matched
}

func (e element) Attr(name string) string {
	v := e.v.Call("getAttribute", name)
	if v.IsNull() {
		return ""
	}
	return v.String()
}

func (e element) Connected() bool {
	return e.v.Get("isConnected").Truthy()
}

const (
	playSVG  = `<svg viewBox="0 0 24 24" width="60%" height="60%" fill="currentColor" aria-hidden="true"><path d="M8 5v14l11-7z"/></svg>`
	pauseSVG = `<svg viewBox="0 0 24 24" width="60%" height="60%" fill="currentColor" aria-hidden="true"><path d="M6 19h4V5H6v14zm8-14v14h4V5h-4z"/></svg>`
)

type iconFactory struct {
	doc  js.Value
	loop *storefront.Loop
}

func newIconFactory(doc js.Value, loop *storefront.Loop) *iconFactory {
	return &iconFactory{doc: doc, loop: loop}
}

func (f *iconFactory) NewIcon(wrapper storefront.Element, handle string, style storefront.IconStyle, activate func()) (storefront.Affordance, error) {
	w, ok := wrapper.(element)
	if !ok {
		return nil, fmt.Errorf("wrapper is not a DOM element")
	}

	pos := js.Global().Call("getComputedStyle", w.v).Get("position").String()
	if pos == "static" || pos == "" {
		w.v.Get("style").Set("position", "relative")
	}

	button := f.doc.Call("createElement", "button")
	button.Set("type", "button")
	button.Set("className", storefront.IconClass)
	button.Call("setAttribute", "data-handle", handle)
	button.Call("setAttribute", "style", storefront.IconCSS(style))

	icon := &icon{el: button}
	icon.onClick = js.FuncOf(func(_ js.Value, args []js.Value) any {
		if len(args) > 0 {
			args[0].Call("preventDefault")
			args[0].Call("stopPropagation")
		}
		f.loop.Post(activate)
		return nil
	})
	button.Call("addEventListener", "click", icon.onClick)

	if err := try(func() { w.v.Call("appendChild", button) }); err != nil {
		icon.onClick.Release()
		return nil, fmt.Errorf("append icon: %w", err)
	}
	icon.SetGlyph(storefront.GlyphPlay)
	return icon, nil
}

type icon struct {
	el      js.Value
	onClick js.Func
	removed bool
}

func (i *icon) SetGlyph(g storefront.Glyph) {
	if g == storefront.GlyphPause {
		i.el.Set("innerHTML", pauseSVG)
		i.el.Call("setAttribute", "aria-label", "Pause")
	} else {
		i.el.Set("innerHTML", playSVG)
		i.el.Call("setAttribute", "aria-label", "Play")
	}
	i.el.Call("setAttribute", "data-state", g.String())
}

func (i *icon) Connected() bool {
	return !i.removed && i.el.Get("isConnected").Truthy()
}

func (i *icon) Remove() {
	if i.removed {
		return
	}
	i.removed = true
	i.el.Call("removeEventListener", "click", i.onClick)
	i.el.Call("remove")
	i.onClick.Release()
}
