//go:build js && wasm

package main

import (
	"fmt"
	"math"
	"syscall/js"

	"github.com/playku/playku/internal/storefront"
)

// audioEngines plays through a detached HTMLAudioElement per track.
func audioEngines(doc js.Value) storefront.EngineFactory {
	return func(events storefront.EngineEvents) storefront.Engine {
		return newAudioEngine(doc, events)
	}
}

type listener struct {
	event string
	fn    js.Func
}

type audioEngine struct {
	el        js.Value
	events    storefront.EngineEvents
	listeners []listener
	destroyed bool
}

func newAudioEngine(doc js.Value, events storefront.EngineEvents) *audioEngine {
	e := &audioEngine{
		el:     doc.Call("createElement", "audio"),
		events: events,
	}
	e.el.Set("preload", "auto")
	e.el.Set("crossOrigin", "anonymous")

	e.on("canplay", func(js.Value) { e.events.Ready() })
	e.on("ended", func(js.Value) { e.events.Ended() })
	e.on("error", func(js.Value) {
		code := 0
		if mediaErr := e.el.Get("error"); mediaErr.Truthy() {
			code = mediaErr.Get("code").Int()
		}
		e.events.Error(fmt.Errorf("media error %d", code))
	})
	return e
}

func (e *audioEngine) on(event string, fn func(js.Value)) {
	f := js.FuncOf(func(_ js.Value, args []js.Value) any {
		if e.destroyed {
			return nil
		}
		var ev js.Value
		if len(args) > 0 {
			ev = args[0]
		}
		fn(ev)
		return nil
	})
	e.el.Call("addEventListener", event, f)
	e.listeners = append(e.listeners, listener{event: event, fn: f})
}

func (e *audioEngine) Load(url string) {
	e.el.Set("src", url)
	e.el.Call("load")
}

// Play starts playback. The browser answers with a promise; a rejection
// arrives later through the error callback. Both promise callbacks are
// released by whichever one runs.
func (e *audioEngine) Play() error {
	var promise js.Value
	if err := try(func() { promise = e.el.Call("play") }); err != nil {
		return err
	}
	if !promise.Truthy() || promise.Get("then").Type() != js.TypeFunction {
		return nil
	}

	var onResolve, onReject js.Func
	release := func() {
		onResolve.Release()
		onReject.Release()
	}
	onResolve = js.FuncOf(func(js.Value, []js.Value) any {
		release()
		return nil
	})
	onReject = js.FuncOf(func(_ js.Value, args []js.Value) any {
		defer release()
		if e.destroyed || len(args) == 0 {
			return nil
		}
		e.rejected(args[0])
		return nil
	})
	promise.Call("then", onResolve, onReject)
	return nil
}

func (e *audioEngine) rejected(reason js.Value) {
	name := ""
	if reason.Truthy() && reason.Get("name").Type() == js.TypeString {
		name = reason.Get("name").String()
	}
	switch name {
	case "NotAllowedError":
		e.events.Error(storefront.ErrPlaybackBlocked)
	case "AbortError":
		// A pause or a new source interrupted the request.
	default:
		e.events.Error(fmt.Errorf("play rejected: %s", reason.Call("toString").String()))
	}
}

func (e *audioEngine) Pause() {
	e.el.Call("pause")
}

func (e *audioEngine) Seek(seconds float64) {
	e.el.Set("currentTime", seconds)
}

func (e *audioEngine) Position() float64 {
	return finite(e.el.Get("currentTime").Float())
}

func (e *audioEngine) Duration() float64 {
	return finite(e.el.Get("duration").Float())
}

func (e *audioEngine) Destroy() {
	if e.destroyed {
		return
	}
	e.destroyed = true
	for _, l := range e.listeners {
		e.el.Call("removeEventListener", l.event, l.fn)
		l.fn.Release()
	}
	e.listeners = nil
	e.el.Call("pause")
	e.el.Call("removeAttribute", "src")
	e.el.Call("load")
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
