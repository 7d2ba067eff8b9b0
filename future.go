package gotlive

import (
	"context"
	"sync"
)

// Future is the pending Result of a translation request. Every request
// settles exactly once, including stale and cancelled ones.
type Future struct {
	done chan struct{}
	once sync.Once
	res  Result
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// ResolvedFuture returns a Future already settled with res, for resolvers
// that answer synchronously.
func ResolvedFuture(res Result) *Future {
	f := newFuture()
	f.resolve(res)
	return f
}

// resolve settles the future. Later calls are ignored.
func (f *Future) resolve(res Result) {
	f.once.Do(func() {
		f.res = res
		close(f.done)
	})
}

// Done is closed once the Result is available.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Result returns the settled Result without blocking. ok is false while the
// request is still pending.
func (f *Future) Result() (res Result, ok bool) {
	select {
	case <-f.done:
		return f.res, true
	default:
		return Result{}, false
	}
}

// Wait blocks until the Result is available or ctx is done.
func (f *Future) Wait(ctx context.Context) (Result, error) {
	select {
	case <-f.done:
		return f.res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}
