package storefront

import (
	"context"
	"errors"
	"time"
)

type fakeTimer struct {
	at      time.Duration
	every   time.Duration
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() { t.stopped = true }

// fakeScheduler runs timers only when the test advances its clock.
type fakeScheduler struct {
	now    time.Duration
	timers []*fakeTimer
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	t := &fakeTimer{at: s.now + d, fn: f}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) Every(d time.Duration, f func()) Timer {
	t := &fakeTimer{at: s.now + d, every: d, fn: f}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) Advance(d time.Duration) {
	target := s.now + d
	for {
		var next *fakeTimer
		for _, t := range s.timers {
			if t.stopped || t.at > target {
				continue
			}
			if next == nil || t.at < next.at {
				next = t
			}
		}
		if next == nil {
			break
		}
		s.now = next.at
		if next.every > 0 {
			next.at += next.every
		} else {
			next.stopped = true
		}
		next.fn()
	}
	s.now = target
}

func (s *fakeScheduler) Active() int {
	n := 0
	for _, t := range s.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

type fakeEngine struct {
	events    EngineEvents
	url       string
	playing   bool
	position  float64
	duration  float64
	destroyed bool
	playErr   error
}

func (e *fakeEngine) Load(url string) { e.url = url }

func (e *fakeEngine) Play() error {
	if e.playErr != nil {
		return e.playErr
	}
	e.playing = true
	return nil
}

func (e *fakeEngine) Pause() { e.playing = false }

func (e *fakeEngine) Seek(seconds float64) { e.position = seconds }

func (e *fakeEngine) Position() float64 { return e.position }

func (e *fakeEngine) Duration() float64 { return e.duration }

func (e *fakeEngine) Destroy() {
	e.destroyed = true
	e.playing = false
}

func (e *fakeEngine) ready() { e.events.Ready() }

func (e *fakeEngine) end() {
	e.position = e.duration
	e.playing = false
	e.events.Ended()
}

func (e *fakeEngine) fail(err error) { e.events.Error(err) }

type engineRecorder struct {
	engines  []*fakeEngine
	duration float64
}

func (r *engineRecorder) factory(events EngineEvents) Engine {
	e := &fakeEngine{events: events, duration: r.duration}
	r.engines = append(r.engines, e)
	return e
}

func (r *engineRecorder) last() *fakeEngine {
	if len(r.engines) == 0 {
		return nil
	}
	return r.engines[len(r.engines)-1]
}

func (r *engineRecorder) live() []*fakeEngine {
	var out []*fakeEngine
	for _, e := range r.engines {
		if !e.destroyed {
			out = append(out, e)
		}
	}
	return out
}

type fakeRenderer struct {
	models []StickyModel
	hidden int
}

func (r *fakeRenderer) Render(m StickyModel) { r.models = append(r.models, m) }

func (r *fakeRenderer) Hide() { r.hidden++ }

func (r *fakeRenderer) last() (StickyModel, bool) {
	if len(r.models) == 0 {
		return StickyModel{}, false
	}
	return r.models[len(r.models)-1], true
}

type fakeSource struct {
	resp     *CatalogResponse
	err      error
	lookups  map[string]*LookupResponse
	fetches  int
	lookedUp []string
}

func (s *fakeSource) FetchCatalog(_ context.Context, _ string) (*CatalogResponse, error) {
	s.fetches++
	return s.resp, s.err
}

func (s *fakeSource) LookupHandle(_ context.Context, handle string) (*LookupResponse, error) {
	s.lookedUp = append(s.lookedUp, handle)
	if resp, ok := s.lookups[handle]; ok {
		return resp, nil
	}
	return nil, errors.New("lookup unavailable")
}

func testTracks(handles ...string) []Track {
	tracks := make([]Track, len(handles))
	for i, h := range handles {
		tracks[i] = Track{CatalogEntry: CatalogEntry{Handle: h, AudioURL: h + ".mp3", Title: "Song " + h}}
	}
	return tracks
}

type controllerFixture struct {
	controller *Controller
	engines    *engineRecorder
	sched      *fakeScheduler
	store      *MemoryStore
}

func newControllerFixture(autoLoop bool, handles ...string) *controllerFixture {
	f := &controllerFixture{
		engines: &engineRecorder{duration: 120},
		sched:   &fakeScheduler{},
		store:   NewMemoryStore(),
	}
	f.controller = NewController(ControllerConfig{
		NewEngine: f.engines.factory,
		Store:     f.store,
		Scheduler: f.sched,
		AutoLoop:  autoLoop,
		Now:       func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
	})
	f.controller.SetPlaylist(NewPlaylist(testTracks(handles...)))
	return f
}

// play selects handle and completes its load.
func (f *controllerFixture) play(handle string) *fakeEngine {
	f.controller.PlayByHandle(handle)
	e := f.engines.last()
	e.ready()
	return e
}
