package gotlive

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ZaguanLabs/gotlive/cache"
	"github.com/ZaguanLabs/gotlive/clock"
)

// fakeCall records one Translate invocation.
type fakeCall struct {
	Text string
	Lang string
	At   time.Time
}

// fakeTranslator is a scriptable Translator for engine tests. Without
// a fail function it returns "[lang] text".
type fakeTranslator struct {
	clock clock.Clock

	mu          sync.Mutex
	calls       []fakeCall
	perText     map[string]int
	fail        func(text string, n int) error // n is the 1-based call number for text
	block       chan struct{}
	inFlight    int
	maxInFlight int
}

func newFakeTranslator(clk clock.Clock) *fakeTranslator {
	return &fakeTranslator{clock: clk, perText: make(map[string]int)}
}

func (f *fakeTranslator) Translate(ctx context.Context, text, lang string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fakeCall{Text: text, Lang: lang, At: f.clock.Now()})
	f.perText[text]++
	n := f.perText[text]
	fail := f.fail
	block := f.block
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if fail != nil {
		if err := fail(text, n); err != nil {
			return "", err
		}
	}
	return "[" + lang + "] " + text, nil
}

func (f *fakeTranslator) setFail(fn func(text string, n int) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fn
}

func (f *fakeTranslator) setBlock(ch chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.block = ch
}

func (f *fakeTranslator) Calls() []fakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fakeCall(nil), f.calls...)
}

func (f *fakeTranslator) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeTranslator) MaxInFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxInFlight
}

type testEnv struct {
	engine *Engine
	clock  *clock.Fake
	tr     *fakeTranslator
	cache  *cache.InMemoryCache
}

// newTestEnv builds an engine on a fake clock. The fake clock starts at the
// Unix epoch.
func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()

	clk := clock.NewFake(time.Unix(0, 0))
	tr := newFakeTranslator(clk)
	c := cache.NewInMemoryCacheWithClock(0, clk)

	all := append([]Option{WithClock(clk), WithCache(c)}, opts...)
	engine, err := New(context.Background(), tr, all...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEnv{engine: engine, clock: clk, tr: tr, cache: c}
}

func (env *testEnv) setLanguage(t *testing.T, lang string) {
	t.Helper()
	if err := env.engine.SetLanguage(context.Background(), lang); err != nil {
		t.Fatalf("SetLanguage(%q) failed: %v", lang, err)
	}
}

// wait blocks on a future with a real-time timeout.
func wait(t *testing.T, f *Future) Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	res, err := f.Wait(ctx)
	if err != nil {
		t.Fatalf("future did not settle: %v", err)
	}
	return res
}

// eventually polls cond until it holds or a real-time deadline passes.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

// waitTimers waits until the fake clock has n timers scheduled.
func (env *testEnv) waitTimers(t *testing.T, n int) {
	t.Helper()
	if !env.clock.BlockUntil(n, 2*time.Second) {
		t.Fatalf("expected %d scheduled timers, have %d", n, env.clock.Pending())
	}
}
