//go:build js && wasm

package main

import (
	"log/slog"
	"strings"
	"syscall/js"

	"github.com/playku/playku/internal/storefront"
)

// localStore is window.localStorage. Private browsing modes may throw on
// every call; those failures read as an empty store.
type localStore struct {
	storage js.Value
}

func newLocalStore(window js.Value) *localStore {
	var storage js.Value
	if err := try(func() { storage = window.Get("localStorage") }); err != nil {
		slog.Debug("playku: localStorage unavailable", "error", err)
	}
	return &localStore{storage: storage}
}

func (s *localStore) available() bool {
	return s.storage.Truthy()
}

func (s *localStore) Get(key string) (string, bool) {
	if !s.available() {
		return "", false
	}
	var v js.Value
	if err := try(func() { v = s.storage.Call("getItem", key) }); err != nil || v.IsNull() {
		return "", false
	}
	return v.String(), true
}

func (s *localStore) Set(key, value string) error {
	if !s.available() {
		return nil
	}
	return try(func() { s.storage.Call("setItem", key, value) })
}

func (s *localStore) Remove(key string) {
	if !s.available() {
		return
	}
	_ = try(func() { s.storage.Call("removeItem", key) })
}

// pageEvents reports history navigations and product grid mutations.
type pageEvents struct {
	window js.Value
	doc    js.Value
	loop   *storefront.Loop
}

func newPageEvents(window, doc js.Value, loop *storefront.Loop) *pageEvents {
	return &pageEvents{window: window, doc: doc, loop: loop}
}

func (p *pageEvents) Subscribe(fn func(storefront.Trigger)) func() {
	emit := func(t storefront.Trigger) {
		p.loop.Post(func() { fn(t) })
	}

	history := p.window.Get("history")
	origPush := history.Get("pushState")
	origReplace := history.Get("replaceState")
	var funcs []js.Func

	patch := func(name string, orig js.Value) {
		f := js.FuncOf(func(this js.Value, args []js.Value) any {
			callArgs := make([]any, len(args))
			for i, a := range args {
				callArgs[i] = a
			}
			result := orig.Call("apply", history, js.ValueOf(callArgs))
			storefront.Contain("history "+name, func() { emit(storefront.TriggerPushState) })
			return result
		})
		funcs = append(funcs, f)
		history.Set(name, f)
	}
	patch("pushState", origPush)
	patch("replaceState", origReplace)

	onPop := js.FuncOf(func(js.Value, []js.Value) any {
		emit(storefront.TriggerPopState)
		return nil
	})
	funcs = append(funcs, onPop)
	p.window.Call("addEventListener", "popstate", onPop)

	onMutation := js.FuncOf(func(_ js.Value, args []js.Value) any {
		storefront.Contain("mutation observer", func() {
			if len(args) > 0 && onlyOwnNodes(args[0]) {
				return
			}
			emit(storefront.TriggerMutation)
		})
		return nil
	})
	funcs = append(funcs, onMutation)
	observer := p.window.Get("MutationObserver").New(onMutation)
	observer.Call("observe", p.doc.Get("body"), map[string]any{"childList": true, "subtree": true})

	return func() {
		observer.Call("disconnect")
		p.window.Call("removeEventListener", "popstate", onPop)
		history.Set("pushState", origPush)
		history.Set("replaceState", origReplace)
		for _, f := range funcs {
			f.Release()
		}
	}
}

const ownSelector = ".playku-sticky, .playku-play-icon"

// onlyOwnNodes reports whether a mutation batch only touched the widget's
// own elements, which must not cause a rescan.
func onlyOwnNodes(records js.Value) bool {
	n := records.Length()
	if n == 0 {
		return false
	}
	for i := 0; i < n; i++ {
		rec := records.Index(i)
		if ownElement(rec.Get("target")) {
			continue
		}
		for _, list := range []js.Value{rec.Get("addedNodes"), rec.Get("removedNodes")} {
			for j := 0; j < list.Length(); j++ {
				node := list.Index(j)
				class := node.Get("className")
				if class.Type() != js.TypeString || !strings.HasPrefix(class.String(), "playku") {
					return false
				}
			}
		}
	}
	return true
}

func ownElement(node js.Value) bool {
	if !node.Truthy() || node.Get("closest").Type() != js.TypeFunction {
		return false
	}
	return node.Call("closest", ownSelector).Truthy()
}
