package gotlive

import (
	"context"
	"sync"

	"github.com/ZaguanLabs/gotlive/gate"
)

// ElementOption configures a localized element.
type ElementOption func(*elementOptions)

type elementOptions struct {
	visibility gate.Gate
	gates      []gate.Gate
	priority   Priority
	hasPrio    bool
}

// WithVisibility makes the element lazy: no translation is requested until
// v opens. Lazy elements are queued at PriorityVisible unless WithPriority
// says otherwise.
func WithVisibility(v gate.Gate) ElementOption {
	return func(o *elementOptions) {
		o.visibility = v
	}
}

// WithGate adds a precondition to the element, on top of visibility and the
// engine's readiness gate.
func WithGate(g gate.Gate) ElementOption {
	return func(o *elementOptions) {
		o.gates = append(o.gates, g)
	}
}

// WithPriority sets the queue priority of the element's requests.
func WithPriority(p Priority) ElementOption {
	return func(o *elementOptions) {
		o.priority = p
		o.hasPrio = true
	}
}

// Element is a localized piece of UI text. It renders the source text until a
// translation is available, follows language changes, and reports failures
// without ever blocking the caller.
//
// The element's behaviour is defined by Reduce; Element only gathers facts,
// performs the commands Reduce returns and notifies listeners.
type Element struct {
	engine   *Engine
	gates    gate.Gate
	priority Priority

	mu        sync.Mutex
	state     State
	closed    bool
	listeners map[int]func(State)
	order     []int
	nextID    int
	stopGates func()
	stopLang  func()
	done      chan struct{}
}

func newElement(engine *Engine, text string, opts ...ElementOption) *Element {
	o := elementOptions{priority: PriorityDefault}
	for _, opt := range opts {
		opt(&o)
	}
	if o.visibility != nil && !o.hasPrio {
		o.priority = PriorityVisible
	}

	gates := append([]gate.Gate{engine.readiness, o.visibility}, o.gates...)

	e := &Element{
		engine:    engine,
		gates:     gate.All(gates...),
		priority:  o.priority,
		state:     State{Phase: PhaseSource, Text: text, Display: text},
		listeners: make(map[int]func(State)),
		done:      make(chan struct{}),
	}

	e.stopLang = engine.lang.Subscribe(func(ch LanguageChange) {
		e.dispatch(LanguageChanged{Lang: ch.Lang, Gen: ch.Generation})
	})
	lang, gen := engine.lang.Snapshot()
	e.dispatch(LanguageChanged{Lang: lang, Gen: gen})

	return e
}

// Text returns what should be rendered right now.
func (e *Element) Text() string {
	return e.State().Display
}

// State returns the element's current state.
func (e *Element) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Phase returns the element's current phase.
func (e *Element) Phase() Phase {
	return e.State().Phase
}

// Failed reports whether translation was given up on. The source text is
// shown and Retry may be called.
func (e *Element) Failed() bool {
	return e.Phase() == PhaseFailed
}

// Loading reports whether a translation request is outstanding.
func (e *Element) Loading() bool {
	return e.Phase() == PhasePending
}

// Dir returns the text direction of what is rendered: the target language's
// direction once resolved, the source language's otherwise.
func (e *Element) Dir() string {
	s := e.State()
	if s.Phase == PhaseResolved {
		return Direction(s.Lang)
	}
	return Direction(e.engine.lang.SourceLanguage())
}

// SetText replaces the source text and re-evaluates.
func (e *Element) SetText(text string) {
	e.dispatch(TextChanged{Text: text})
}

// Retry requests the translation again after a failure, skipping the
// back-off. It does nothing unless the element has failed.
func (e *Element) Retry() {
	e.dispatch(RetryRequested{})
}

// OnChange registers fn to be called with every new state. fn runs on the
// goroutine that caused the change and must not block.
func (e *Element) OnChange(fn func(State)) (cancel func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextID
	e.nextID++
	e.listeners[id] = fn
	e.order = append(e.order, id)

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.listeners, id)
		for i, v := range e.order {
			if v == id {
				e.order = append(e.order[:i], e.order[i+1:]...)
				break
			}
		}
	}
}

// Wait blocks until the element is neither pending nor waiting on its gates,
// or ctx is done. It returns the state observed at that point.
func (e *Element) Wait(ctx context.Context) (State, error) {
	changed := make(chan struct{}, 1)
	cancel := e.OnChange(func(State) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer cancel()

	for {
		s := e.State()
		if s.Phase != PhasePending && s.Phase != PhaseAwaitingGate {
			return s, nil
		}
		select {
		case <-ctx.Done():
			return s, ctx.Err()
		case <-e.done:
			return e.State(), ErrQueueClosed
		case <-changed:
		}
	}
}

// Close detaches the element from language changes and its gates.
func (e *Element) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	stopGates, stopLang := e.stopGates, e.stopLang
	e.stopGates = nil
	close(e.done)
	e.mu.Unlock()

	if stopGates != nil {
		stopGates()
	}
	stopLang()
}

func (e *Element) dispatch(ev Event) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	prev := e.state
	next, cmd := Reduce(prev, ev)
	e.state = next

	var fns []func(State)
	if next != prev {
		fns = make([]func(State), 0, len(e.order))
		for _, id := range e.order {
			fns = append(fns, e.listeners[id])
		}
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn(next)
	}
	e.execute(cmd)
}

func (e *Element) execute(cmd Command) {
	switch cmd.Kind {
	case CmdEvaluate:
		e.dispatch(e.evaluate(cmd))
	case CmdWaitGates:
		e.waitGates(cmd.Token)
	case CmdEnqueue, CmdRetry:
		e.releaseGates()
		key := NewKey(cmd.Text, cmd.Lang)
		f := e.engine.queue.enqueue(key, cmd.Text, cmd.Token.Gen, e.priority, cmd.Kind == CmdRetry)
		e.await(cmd.Token, f)
	}
}

func (e *Element) evaluate(cmd Command) Evaluated {
	ev := Evaluated{Token: cmd.Token}

	key := NewKey(cmd.Text, cmd.Lang)
	if key.Empty() || e.engine.lang.IsSource(cmd.Lang) {
		ev.Skip = true
		return ev
	}
	if v, ok := e.engine.queue.lookup(key); ok {
		ev.Hit = true
		ev.Value = v
		return ev
	}
	ev.GatesOpen = e.gates.Open()
	return ev
}

func (e *Element) waitGates(tok Token) {
	opened := func() {
		if e.gates.Open() {
			e.dispatch(GatesOpened{Token: tok})
		}
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	prev := e.stopGates
	e.stopGates = e.gates.Notify(opened)
	e.mu.Unlock()

	if prev != nil {
		prev()
	}
	// The gates may have opened before the listener was registered.
	opened()
}

func (e *Element) releaseGates() {
	e.mu.Lock()
	stop := e.stopGates
	e.stopGates = nil
	e.mu.Unlock()

	if stop != nil {
		stop()
	}
}

func (e *Element) await(tok Token, f *Future) {
	if res, ok := f.Result(); ok {
		e.dispatch(Settled{Token: tok, Result: res})
		return
	}

	go func() {
		select {
		case <-f.Done():
			res, _ := f.Result()
			e.dispatch(Settled{Token: tok, Result: res})
		case <-e.done:
		}
	}()
}
