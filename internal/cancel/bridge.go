package cancel

import (
	"context"
	"sync"
)

// Awaitable is anything a scheduler can suspend on.
type Awaitable interface {
	// IsReady reports whether waiting would return immediately.
	IsReady() bool
	// OnReady registers fn to run once when the awaitable becomes ready, or
	// right away if it already is. stop unregisters fn and reports whether
	// it did so before fn ran.
	OnReady(fn func()) (stop func() bool)
	// Result completes the wait. Cancellation carries no payload.
	Result()
}

// Awaiter adapts a Signal to Awaitable. It holds a borrowed reference; the
// signal's owner decides when it is requested.
type Awaiter struct {
	signal *Signal

	doneOnce sync.Once
	done     chan struct{}
}

var _ Awaitable = (*Awaiter)(nil)

// IsReady returns the signal's current state.
func (a *Awaiter) IsReady() bool {
	return a.signal.Requested()
}

// OnReady registers fn with the signal.
func (a *Awaiter) OnReady(fn func()) (stop func() bool) {
	var once sync.Once
	return a.signal.onRequest(func() { once.Do(fn) })
}

// Result returns once the signal is requested. Calling it earlier is a
// no-op, matching an awaiter resumed by its scheduler.
func (a *Awaiter) Result() {}

// Done returns a channel closed when the signal is requested.
func (a *Awaiter) Done() <-chan struct{} {
	a.doneOnce.Do(func() {
		a.done = make(chan struct{})
		a.OnReady(func() { close(a.done) })
	})
	return a.done
}

// Await suspends the calling goroutine until aw is ready or ctx is done.
// It returns ctx.Err() in the latter case.
func Await(ctx context.Context, aw Awaitable) error {
	if aw.IsReady() {
		aw.Result()
		return nil
	}

	ready := make(chan struct{})
	stop := aw.OnReady(func() { close(ready) })
	select {
	case <-ready:
		aw.Result()
		return nil
	case <-ctx.Done():
		if !stop() {
			// fn already ran; readiness wins.
			<-ready
			aw.Result()
			return nil
		}
		return ctx.Err()
	}
}
