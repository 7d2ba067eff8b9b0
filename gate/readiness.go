package gate

import (
	"sync"
	"time"

	"github.com/ZaguanLabs/gotlive/clock"
)

// DefaultSettleDelay is the quiet period after the last content change
// before a page is considered settled.
const DefaultSettleDelay = 300 * time.Millisecond

// Readiness is a debounce gate: it opens once no content change has been
// reported for the settle delay, and closes again on the next change.
type Readiness struct {
	Signal

	clock clock.Clock
	delay time.Duration

	mu    sync.Mutex
	timer clock.Timer
	epoch uint64
}

// NewReadiness returns a Readiness gate that starts unsettled and arms its
// first settle timer immediately.
func NewReadiness(clk clock.Clock, delay time.Duration) *Readiness {
	if clk == nil {
		clk = clock.Real()
	}
	if delay <= 0 {
		delay = DefaultSettleDelay
	}
	r := &Readiness{clock: clk, delay: delay}
	r.Touch()
	return r
}

// Touch reports a content change (a render pass, a data load). The gate
// closes and the settle timer restarts.
func (r *Readiness) Touch() {
	r.mu.Lock()
	if r.timer != nil {
		r.timer.Stop()
	}
	r.epoch++
	epoch := r.epoch
	r.timer = r.clock.AfterFunc(r.delay, func() { r.settle(epoch) })
	r.mu.Unlock()

	r.Set(false)
}

// MarkReady opens the gate immediately and cancels any pending timer.
func (r *Readiness) MarkReady() {
	r.mu.Lock()
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.epoch++
	r.mu.Unlock()

	r.Set(true)
}

// Settled reports whether the page has settled.
func (r *Readiness) Settled() bool {
	return r.Open()
}

func (r *Readiness) settle(epoch uint64) {
	r.mu.Lock()
	if epoch != r.epoch {
		r.mu.Unlock()
		return
	}
	r.timer = nil
	r.mu.Unlock()

	r.Set(true)
}
