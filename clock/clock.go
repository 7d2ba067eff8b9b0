// Package clock abstracts timers so batching, back-off and debounce behaviour
// can be driven deterministically in tests.
package clock

import (
	"sort"
	"sync"
	"time"
)

// Clock schedules callbacks and reports the current time.
type Clock interface {
	Now() time.Time
	// AfterFunc runs f in its own goroutine once d has elapsed.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	// Stop prevents the callback from running. It returns false if the
	// callback already ran or was already stopped.
	Stop() bool
}

type realClock struct{}

// Real returns a Clock backed by the time package.
func Real() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Fake is a manually advanced Clock. Callbacks fire synchronously inside
// Advance, in deadline order, on the goroutine that called Advance.
type Fake struct {
	mu     sync.Mutex
	cond   *sync.Cond
	now    time.Time
	seq    uint64
	timers []*fakeTimer
}

// NewFake returns a Fake clock starting at start.
func NewFake(start time.Time) *Fake {
	f := &Fake{now: start}
	f.cond = sync.NewCond(&f.mu)
	return f
}

type fakeTimer struct {
	clock    *Fake
	deadline time.Time
	seq      uint64
	fn       func()
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	return t.clock.removeLocked(t)
}

// Now returns the fake current time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// AfterFunc registers f to run once the clock has been advanced by d.
func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	t := &fakeTimer{clock: f, deadline: f.now.Add(d), seq: f.seq, fn: fn}
	f.timers = append(f.timers, t)
	f.cond.Broadcast()
	return t
}

// Advance moves the clock forward by d, firing every timer whose deadline
// is reached. Timers scheduled by fired callbacks also fire if they fall
// inside the window.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	end := f.now.Add(d)
	for {
		next := f.nextDueLocked(end)
		if next == nil {
			break
		}
		f.removeLocked(next)
		if next.deadline.After(f.now) {
			f.now = next.deadline
		}
		f.mu.Unlock()
		next.fn()
		f.mu.Lock()
	}
	f.now = end
	f.mu.Unlock()
}

// Pending returns the number of scheduled timers.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.timers)
}

// BlockUntil waits until at least n timers are scheduled or the timeout
// expires. It reports whether the condition was met.
func (f *Fake) BlockUntil(n int, timeout time.Duration) bool {
	expired := false
	stop := time.AfterFunc(timeout, func() {
		f.mu.Lock()
		expired = true
		f.cond.Broadcast()
		f.mu.Unlock()
	})
	defer stop.Stop()

	f.mu.Lock()
	defer f.mu.Unlock()
	for len(f.timers) < n && !expired {
		f.cond.Wait()
	}
	return len(f.timers) >= n
}

func (f *Fake) nextDueLocked(end time.Time) *fakeTimer {
	if len(f.timers) == 0 {
		return nil
	}
	sort.SliceStable(f.timers, func(i, j int) bool {
		if !f.timers[i].deadline.Equal(f.timers[j].deadline) {
			return f.timers[i].deadline.Before(f.timers[j].deadline)
		}
		return f.timers[i].seq < f.timers[j].seq
	})
	if f.timers[0].deadline.After(end) {
		return nil
	}
	return f.timers[0]
}

func (f *Fake) removeLocked(t *fakeTimer) bool {
	for i, cur := range f.timers {
		if cur == t {
			f.timers = append(f.timers[:i], f.timers[i+1:]...)
			return true
		}
	}
	return false
}
