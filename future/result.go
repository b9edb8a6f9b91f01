// Package future implements a single-shot, CAS-published asynchronous
// result box. It is the concurrency primitive the trie's stored-node
// loader uses to let concurrent callers share one in-flight retrieval:
// the first caller to win a compare-and-swap becomes the loader, every
// other caller subscribes to the same Result and blocks on Await.
package future

import (
	"context"
	"sync"
	"sync/atomic"
)

// Result is a single-assignment value/error box that may be completed
// exactly once, from any goroutine, and awaited by any number of callers
// (including callers that arrive after completion).
type Result[T any] struct {
	done  chan struct{}
	once  sync.Once
	value T
	err   error
}

// New creates an incomplete Result.
func New[T any]() *Result[T] {
	return &Result[T]{done: make(chan struct{})}
}

// Complete publishes v as the result. Only the first call (Complete or
// CompleteError) has an effect; later calls are no-ops.
func (r *Result[T]) Complete(v T) {
	r.once.Do(func() {
		r.value = v
		close(r.done)
	})
}

// CompleteError publishes err as the result's failure. Only the first
// call (Complete or CompleteError) has an effect.
func (r *Result[T]) CompleteError(err error) {
	r.once.Do(func() {
		r.err = err
		close(r.done)
	})
}

// Await blocks until the Result is completed, or ctx is done, whichever
// happens first.
func (r *Result[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-r.done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// IsDone reports whether the Result has already been completed, without
// blocking.
func (r *Result[T]) IsDone() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Map returns a Result that completes with f applied to r's value once r
// succeeds, or propagates r's error unchanged. Go methods cannot introduce
// a second type parameter, so Map and Then are free functions rather than
// methods on Result.
func Map[T, U any](r *Result[T], f func(T) U) *Result[U] {
	out := New[U]()
	go func() {
		v, err := r.Await(context.Background())
		if err != nil {
			out.CompleteError(err)
			return
		}
		out.Complete(f(v))
	}()
	return out
}

// Then chains a second fallible step onto r: once r succeeds, f runs on
// its value and its (value, error) become the new Result's outcome. An
// error from r or from f both complete the returned Result as a failure.
func Then[T, U any](r *Result[T], f func(T) (U, error)) *Result[U] {
	out := New[U]()
	go func() {
		v, err := r.Await(context.Background())
		if err != nil {
			out.CompleteError(err)
			return
		}
		u, err := f(v)
		if err != nil {
			out.CompleteError(err)
			return
		}
		out.Complete(u)
	}()
	return out
}

// Slot is a CAS-published pointer to an in-flight *Result[T], used to
// implement "first caller becomes the loader, everyone else subscribes"
// load-sharing. The zero Slot is ready to use.
type Slot[T any] struct {
	pending atomic.Pointer[Result[T]]
}

// ClaimOrSubscribe attempts to publish a fresh Result into the slot. It
// reports (result, true) if the caller won the race and must now perform
// the load and call Complete/CompleteError on the returned Result; it
// reports (result, false) if another caller already owns an in-flight
// load, in which case the caller should Await that Result instead.
func (s *Slot[T]) ClaimOrSubscribe() (*Result[T], bool) {
	fresh := New[T]()
	if s.pending.CompareAndSwap(nil, fresh) {
		return fresh, true
	}
	return s.pending.Load(), false
}

// Clear removes the in-flight Result from the slot, provided it is still
// the one the caller published (identity check against r guards against
// clearing a newer loader's slot after a stale completion).
func (s *Slot[T]) Clear(r *Result[T]) {
	s.pending.CompareAndSwap(r, nil)
}
