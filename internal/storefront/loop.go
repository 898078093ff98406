package storefront

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// Timer is a pending or repeating callback.
type Timer interface {
	Stop()
}

// Scheduler runs callbacks later. Callbacks run on the event loop.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
	Every(d time.Duration, f func()) Timer
}

// Loop serialises every callback of the storefront onto one goroutine, the
// same model as the browser main thread: no two callbacks ever run at once.
type Loop struct {
	tasks chan func()
	done  chan struct{}
	stop  sync.Once
}

func NewLoop() *Loop {
	return &Loop{
		tasks: make(chan func(), 64),
		done:  make(chan struct{}),
	}
}

// Run processes tasks until ctx is cancelled or Stop is called.
func (l *Loop) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			l.Stop()
			return
		case <-l.done:
			return
		case task := <-l.tasks:
			contain("loop task", task)
		}
	}
}

// Post queues fn. It reports false once the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.done:
		return false
	}
}

func (l *Loop) Stop() {
	l.stop.Do(func() { close(l.done) })
}

// Scheduler returns a Scheduler whose callbacks are posted to the loop.
func (l *Loop) Scheduler() Scheduler {
	return loopScheduler{loop: l}
}

type loopScheduler struct {
	loop *Loop
}

type loopTimer struct {
	stopped atomic.Bool
	cancel  func()
}

func (t *loopTimer) Stop() {
	if t.stopped.Swap(true) {
		return
	}
	t.cancel()
}

// AfterFunc drops the callback if the timer is stopped after it fired but
// before the loop got to it.
func (s loopScheduler) AfterFunc(d time.Duration, f func()) Timer {
	t := &loopTimer{}
	timer := time.AfterFunc(d, func() {
		s.loop.Post(func() {
			if !t.stopped.Load() {
				f()
			}
		})
	})
	t.cancel = func() { timer.Stop() }
	return t
}

func (s loopScheduler) Every(d time.Duration, f func()) Timer {
	t := &loopTimer{}
	ticker := time.NewTicker(d)
	quit := make(chan struct{})
	t.cancel = func() {
		ticker.Stop()
		close(quit)
	}
	go func() {
		for {
			select {
			case <-quit:
				return
			case <-ticker.C:
				s.loop.Post(func() {
					if !t.stopped.Load() {
						f()
					}
				})
			}
		}
	}()
	return t
}

// contain runs fn and logs instead of propagating a panic. Nothing in the
// storefront may break the host page.
func contain(where string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("storefront: recovered panic", "where", where, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	fn()
}

// Contain guards callbacks the browser invokes directly, outside the loop.
func Contain(where string, fn func()) {
	contain(where, fn)
}
