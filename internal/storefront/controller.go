package storefront

import (
	"errors"
	"log/slog"
	"time"
)

// ErrPlaybackBlocked is reported by engines when the browser refuses to
// start playback, typically an autoplay policy without a user gesture.
var ErrPlaybackBlocked = errors.New("playback blocked")

const DefaultTickInterval = time.Second

// State of the playback controller.
type State int

const (
	StateIdle State = iota
	StateLoading
	StatePlaying
	StatePaused
	StateAdvancing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateAdvancing:
		return "advancing"
	default:
		return "unknown"
	}
}

// EngineEvents are the callbacks an engine reports through. They may fire
// on any goroutine; the controller moves them onto its dispatcher.
type EngineEvents struct {
	Ready func()
	Ended func()
	Error func(error)
}

// Engine plays one audio source. Rendering (waveform, spectrum) is the
// engine's business.
type Engine interface {
	Load(url string)
	Play() error
	Pause()
	Seek(seconds float64)
	Position() float64
	Duration() float64
	// Destroy releases the source, timers and listeners. Events must not be
	// relied upon after Destroy.
	Destroy()
}

// EngineFactory builds a fresh engine reporting to events.
type EngineFactory func(events EngineEvents) Engine

// Snapshot is the read-only view of the controller handed to subscribers.
type Snapshot struct {
	State     State
	Track     Track
	HasTrack  bool
	IsPlaying bool
	Position  float64
	Duration  float64
}

func (s Snapshot) Handle() string {
	if !s.HasTrack {
		return ""
	}
	return s.Track.Handle
}

// Progress is position/duration in [0, 1].
func (s Snapshot) Progress() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return clamp(s.Position/s.Duration, 0, 1)
}

// TrackEvent is reported to ControllerConfig.OnTrackEvent for listen
// analytics.
type TrackEvent string

const (
	TrackPlay     TrackEvent = "play"
	TrackPause    TrackEvent = "pause"
	TrackComplete TrackEvent = "complete"
)

type ControllerConfig struct {
	NewEngine EngineFactory
	Store     Store
	Scheduler Scheduler
	// Dispatch runs engine callbacks on the event loop. Nil runs them
	// inline.
	Dispatch func(func()) bool
	// OnTrackEvent, when set, is told about plays, pauses and completions.
	OnTrackEvent func(event TrackEvent, handle string)
	AutoLoop     bool
	TickInterval time.Duration
	Now          func() time.Time
}

type subscriber struct {
	id int
	fn func(Snapshot)
}

// Controller owns the audio engine and the current track. It is the only
// component allowed to change either; everything else subscribes.
type Controller struct {
	newEngine    EngineFactory
	onEvent      func(TrackEvent, string)
	store        Store
	sched        Scheduler
	dispatch     func(func()) bool
	autoLoop     bool
	tickInterval time.Duration
	now          func() time.Time

	state       State
	track       Track
	hasTrack    bool
	engine      Engine
	generation  uint64
	autoplay    bool
	pendingSeek float64
	position    float64
	tick        Timer
	playlist    *Playlist
	disposed    bool

	subscribers []subscriber
	nextSubID   int
}

func NewController(cfg ControllerConfig) *Controller {
	c := &Controller{
		newEngine:    cfg.NewEngine,
		onEvent:      cfg.OnTrackEvent,
		store:        cfg.Store,
		sched:        cfg.Scheduler,
		dispatch:     cfg.Dispatch,
		autoLoop:     cfg.AutoLoop,
		tickInterval: cfg.TickInterval,
		now:          cfg.Now,
		playlist:     NewPlaylist(nil),
	}
	if c.tickInterval <= 0 {
		c.tickInterval = DefaultTickInterval
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.dispatch == nil {
		c.dispatch = func(fn func()) bool { fn(); return true }
	}
	return c
}

func (c *Controller) SetPlaylist(p *Playlist) {
	if p == nil {
		p = NewPlaylist(nil)
	}
	c.playlist = p
}

func (c *Controller) Playlist() *Playlist {
	return c.playlist
}

func (c *Controller) SetAutoLoop(enabled bool) {
	c.autoLoop = enabled
}

func (c *Controller) State() State {
	return c.state
}

func (c *Controller) Snapshot() Snapshot {
	s := Snapshot{
		State:    c.state,
		Track:    c.track,
		HasTrack: c.hasTrack,
		Position: c.currentPosition(),
	}
	s.IsPlaying = c.state == StatePlaying || (c.state == StateLoading && c.autoplay)
	if c.engine != nil && (c.state == StatePlaying || c.state == StatePaused) {
		s.Duration = c.engine.Duration()
	}
	return s
}

// Subscribe registers fn for every state change and returns the function
// that removes it. Subscribers run on the event loop.
func (c *Controller) Subscribe(fn func(Snapshot)) func() {
	c.nextSubID++
	id := c.nextSubID
	c.subscribers = append(c.subscribers, subscriber{id: id, fn: fn})
	return func() {
		for i, sub := range c.subscribers {
			if sub.id == id {
				c.subscribers = append(c.subscribers[:i:i], c.subscribers[i+1:]...)
				return
			}
		}
	}
}

// PlayByHandle selects handle and starts it. Selecting the current handle
// again toggles pause instead.
func (c *Controller) PlayByHandle(handle string) {
	if c.disposed {
		return
	}
	if c.hasTrack && c.track.Handle == handle && c.state != StateIdle {
		c.TogglePause()
		return
	}
	track, ok := c.playlist.Track(handle)
	if !ok {
		if c.hasTrack && c.track.Handle == handle {
			track, ok = c.track, true
		}
	}
	if !ok {
		slog.Debug("storefront: no audio for handle", "handle", handle)
		return
	}
	c.load(track, true, 0)
}

// Restore pre-positions a paused engine on track at offset seconds. It
// never starts playback.
func (c *Controller) Restore(track Track, offset float64) bool {
	if c.disposed || c.hasTrack || track.AudioURL == "" {
		return false
	}
	if offset < 0 {
		offset = 0
	}
	c.load(track, false, offset)
	return true
}

func (c *Controller) TogglePause() {
	switch c.state {
	case StateLoading:
		c.autoplay = !c.autoplay
		c.publish()
	case StatePlaying:
		c.pause()
	case StatePaused:
		c.resume()
	}
}

// SeekTo moves to seconds, clamped to the track length.
func (c *Controller) SeekTo(seconds float64) {
	if c.engine == nil || (c.state != StatePlaying && c.state != StatePaused) {
		return
	}
	target := clamp(seconds, 0, c.engine.Duration())
	c.engine.Seek(target)
	c.position = target
	c.persist()
	c.publish()
}

// SeekFraction moves to a fraction of the track length.
func (c *Controller) SeekFraction(f float64) {
	if c.engine == nil {
		return
	}
	c.SeekTo(clamp(f, 0, 1) * c.engine.Duration())
}

func (c *Controller) Next() {
	c.step(c.playlist.Next)
}

func (c *Controller) Previous() {
	c.step(c.playlist.Previous)
}

func (c *Controller) step(move func(string, bool) (Track, bool)) {
	if c.disposed || c.playlist.Len() == 0 {
		return
	}
	target, ok := move(c.track.Handle, c.autoLoop)
	if !ok {
		if c.state == StatePlaying {
			c.pause()
		} else if c.state == StateLoading {
			c.autoplay = false
			c.publish()
		}
		return
	}
	c.load(target, true, 0)
}

// Close stops playback, forgets the track and clears the saved state.
func (c *Controller) Close() {
	if c.disposed {
		return
	}
	c.teardown()
	c.state = StateIdle
	c.track = Track{}
	c.hasTrack = false
	c.position = 0
	clearState(c.store)
	c.publish()
}

// Dispose tears everything down. The controller is unusable afterwards.
func (c *Controller) Dispose() {
	if c.disposed {
		return
	}
	c.teardown()
	c.state = StateIdle
	c.disposed = true
	c.subscribers = nil
}

func (c *Controller) load(track Track, autoplay bool, offset float64) {
	c.teardown()

	gen := c.generation
	c.track = track
	c.hasTrack = true
	c.state = StateLoading
	c.autoplay = autoplay
	c.pendingSeek = offset
	c.position = offset

	if c.newEngine == nil {
		c.fail(errors.New("no audio engine"))
		return
	}
	c.engine = c.newEngine(EngineEvents{
		Ready: c.guard(gen, c.onReady),
		Ended: c.guard(gen, c.onEnded),
		Error: func(err error) { c.guard(gen, func() { c.onError(err) })() },
	})
	c.publish()
	c.engine.Load(track.AudioURL)
}

// guard drops callbacks of engines that have been torn down since.
func (c *Controller) guard(gen uint64, fn func()) func() {
	return func() {
		c.dispatch(func() {
			if c.disposed || gen != c.generation || c.engine == nil {
				return
			}
			fn()
		})
	}
}

func (c *Controller) onReady() {
	if c.state != StateLoading {
		return
	}
	if c.pendingSeek > 0 {
		target := clamp(c.pendingSeek, 0, c.engine.Duration())
		c.engine.Seek(target)
		c.position = target
	}
	c.pendingSeek = 0

	if c.autoplay {
		c.resume()
		return
	}
	c.state = StatePaused
	c.persist()
	c.publish()
}

func (c *Controller) onEnded() {
	handle := c.track.Handle
	c.stopTick()
	c.state = StateAdvancing
	c.position = c.engine.Duration()
	c.persist()
	c.report(TrackComplete)

	if next, ok := c.playlist.Next(handle, c.autoLoop); ok {
		c.load(next, true, 0)
		return
	}

	c.teardown()
	c.state = StateIdle
	c.position = 0
	c.persist()
	c.publish()
}

func (c *Controller) onError(err error) {
	if errors.Is(err, ErrPlaybackBlocked) {
		slog.Warn("storefront: playback blocked by browser", "handle", c.track.Handle)
		if c.state == StatePlaying || c.state == StateLoading {
			c.stopTick()
			c.autoplay = false
			c.state = StatePaused
			c.persist()
			c.publish()
		}
		return
	}
	c.fail(err)
}

func (c *Controller) fail(err error) {
	slog.Error("storefront: audio failed to load", "handle", c.track.Handle, "url", c.track.AudioURL, "error", err)
	c.teardown()
	c.state = StateIdle
	c.track = Track{}
	c.hasTrack = false
	c.position = 0
	clearState(c.store)
	c.publish()
}

func (c *Controller) pause() {
	c.position = c.engine.Position()
	c.engine.Pause()
	c.stopTick()
	c.state = StatePaused
	c.persist()
	c.publish()
	c.report(TrackPause)
}

func (c *Controller) resume() {
	if err := c.engine.Play(); err != nil {
		c.onError(err)
		return
	}
	c.state = StatePlaying
	c.startTick()
	c.persist()
	c.publish()
	c.report(TrackPlay)
}

func (c *Controller) report(event TrackEvent) {
	if c.onEvent == nil || !c.hasTrack {
		return
	}
	handle := c.track.Handle
	contain("track event", func() { c.onEvent(event, handle) })
}

func (c *Controller) teardown() {
	c.stopTick()
	if c.engine != nil {
		c.engine.Destroy()
		c.engine = nil
	}
	c.generation++
	c.autoplay = false
	c.pendingSeek = 0
}

func (c *Controller) startTick() {
	c.stopTick()
	if c.sched == nil {
		return
	}
	c.tick = c.sched.Every(c.tickInterval, c.onTick)
}

func (c *Controller) stopTick() {
	if c.tick != nil {
		c.tick.Stop()
		c.tick = nil
	}
}

func (c *Controller) onTick() {
	if c.state != StatePlaying || c.engine == nil {
		c.stopTick()
		return
	}
	c.position = c.engine.Position()
	c.persist()
	c.publish()
}

func (c *Controller) currentPosition() float64 {
	if c.engine != nil && (c.state == StatePlaying || c.state == StatePaused) {
		return c.engine.Position()
	}
	return c.position
}

func (c *Controller) persist() {
	if !c.hasTrack {
		clearState(c.store)
		return
	}
	state := PlaybackState{
		CurrentHandle:   c.track.Handle,
		IsPlaying:       c.state == StatePlaying,
		PositionSeconds: c.currentPosition(),
		LastUpdated:     c.now(),
		Title:           c.track.Title,
		Image:           c.track.Image,
		AudioURL:        c.track.AudioURL,
	}
	if err := saveState(c.store, state); err != nil {
		slog.Warn("storefront: failed to persist playback state", "error", err)
	}
}

func (c *Controller) publish() {
	if len(c.subscribers) == 0 {
		return
	}
	snap := c.Snapshot()
	subs := append([]subscriber(nil), c.subscribers...)
	for _, sub := range subs {
		contain("subscriber", func() { sub.fn(snap) })
	}
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
