package storefront

import "time"

const DefaultDebounce = 250 * time.Millisecond

// Trigger is the reason a rescan was requested.
type Trigger int

const (
	TriggerInitial Trigger = iota
	TriggerPopState
	TriggerPushState
	TriggerMutation
)

func (t Trigger) String() string {
	switch t {
	case TriggerInitial:
		return "initial"
	case TriggerPopState:
		return "popstate"
	case TriggerPushState:
		return "pushstate"
	case TriggerMutation:
		return "mutation"
	default:
		return "unknown"
	}
}

// Navigation reports whether the trigger means a new route, which needs a
// fresh catalog.
func (t Trigger) Navigation() bool {
	return t == TriggerInitial || t == TriggerPopState || t == TriggerPushState
}

// EventSource reports navigations and DOM mutations of the page.
type EventSource interface {
	Subscribe(func(Trigger)) (unsubscribe func())
}

// Reconciler coalesces bursts of triggers into one rescan. The first
// trigger opens a window; everything arriving before it closes rides along.
type Reconciler struct {
	sched  Scheduler
	window time.Duration
	run    func(reload bool)

	pending Timer
	reload  bool
	unsub   func()
}

func NewReconciler(sched Scheduler, window time.Duration, run func(reload bool)) *Reconciler {
	if window <= 0 {
		window = DefaultDebounce
	}
	return &Reconciler{sched: sched, window: window, run: run}
}

// Listen subscribes to src. Triggers must be delivered on the event loop.
func (r *Reconciler) Listen(src EventSource) {
	if src == nil {
		return
	}
	if r.unsub != nil {
		r.unsub()
	}
	r.unsub = src.Subscribe(r.Trigger)
}

func (r *Reconciler) Trigger(t Trigger) {
	if t.Navigation() {
		r.reload = true
	}
	if r.pending != nil {
		return
	}
	r.pending = r.sched.AfterFunc(r.window, r.fire)
}

// Pending reports whether a rescan is scheduled.
func (r *Reconciler) Pending() bool {
	return r.pending != nil
}

func (r *Reconciler) fire() {
	reload := r.reload
	r.reload = false
	r.pending = nil
	contain("rescan", func() { r.run(reload) })
}

func (r *Reconciler) Stop() {
	if r.unsub != nil {
		r.unsub()
		r.unsub = nil
	}
	if r.pending != nil {
		r.pending.Stop()
		r.pending = nil
	}
	r.reload = false
}
