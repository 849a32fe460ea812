// Package cancel turns a cancellation signal into a suspension point that
// cooperative code can wait on without blocking a thread per waiter.
//
// A Signal is a single-shot, multi-subscriber event. Continuations
// registered with OnReady run exactly once: when the signal is requested, or
// immediately if it already was.
package cancel

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/fruitsalade/syncroot/internal/metrics"
)

// Signal is a cooperative cancellation source. It moves from not requested
// to requested once and never back.
type Signal struct {
	requested atomic.Bool

	mu     sync.Mutex
	nextID uint64
	conts  map[uint64]func()
}

// NewSignal creates a signal that has not been requested.
func NewSignal() *Signal {
	return &Signal{conts: make(map[uint64]func())}
}

// FromContext returns a signal that is requested when ctx is done. Call stop
// to detach the signal from ctx.
func FromContext(ctx context.Context) (s *Signal, stop func() bool) {
	s = NewSignal()
	stop = context.AfterFunc(ctx, s.Request)
	return s, stop
}

// Request marks the signal requested and runs every registered continuation
// on the calling goroutine. Later calls do nothing.
func (s *Signal) Request() {
	s.mu.Lock()
	if s.requested.Load() {
		s.mu.Unlock()
		return
	}
	s.requested.Store(true)
	conts := s.conts
	s.conts = nil
	s.mu.Unlock()

	metrics.RecordCancellation()
	metrics.AddPendingContinuations(-len(conts))
	for _, fn := range conts {
		fn()
	}
}

// Requested reports whether Request has been called.
func (s *Signal) Requested() bool {
	return s.requested.Load()
}

// onRequest registers fn. The flag is rechecked under the same lock Request
// takes, so a concurrent Request either sees fn in the list or fn runs here.
func (s *Signal) onRequest(fn func()) (stop func() bool) {
	s.mu.Lock()
	if s.requested.Load() {
		s.mu.Unlock()
		fn()
		return func() bool { return false }
	}
	id := s.nextID
	s.nextID++
	s.conts[id] = fn
	s.mu.Unlock()
	metrics.AddPendingContinuations(1)

	return func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.conts[id]; !ok {
			return false
		}
		delete(s.conts, id)
		metrics.AddPendingContinuations(-1)
		return true
	}
}

// Awaiter returns a bridge that borrows s.
func (s *Signal) Awaiter() *Awaiter {
	return &Awaiter{signal: s}
}
