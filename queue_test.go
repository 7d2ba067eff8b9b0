package gotlive

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ZaguanLabs/gotlive/cache"
	"github.com/ZaguanLabs/gotlive/clock"
)

func TestQueue_EmptyTextShortCircuits(t *testing.T) {
	env := newTestEnv(t)
	env.setLanguage(t, "es")

	for _, text := range []string{"", "   ", "\n\t"} {
		res := wait(t, env.engine.Queue().Enqueue(text, "es", PriorityDefault))
		if res.Outcome != OutcomeSource || res.Text != "" {
			t.Errorf("Enqueue(%q) = %+v, want empty source result", text, res)
		}
	}

	env.clock.Advance(time.Second)
	if env.tr.CallCount() != 0 {
		t.Errorf("Empty text must never reach the translator, got %d calls", env.tr.CallCount())
	}
}

func TestQueue_SourceLanguageNeverQueued(t *testing.T) {
	env := newTestEnv(t)
	env.setLanguage(t, "es")

	for _, lang := range []string{"en", "en-GB"} {
		f := env.engine.Queue().Enqueue("Hello", lang, PriorityDefault)
		res, ok := f.Result()
		if !ok {
			t.Fatalf("Enqueue(%q) should resolve synchronously", lang)
		}
		if res.Outcome != OutcomeSource || res.Text != "Hello" {
			t.Errorf("Enqueue(%q) = %+v, want source text", lang, res)
		}
	}

	env.clock.Advance(time.Second)
	if env.tr.CallCount() != 0 {
		t.Errorf("Source language must never reach the translator, got %d calls", env.tr.CallCount())
	}
	if env.cache.Len() != 0 {
		t.Errorf("Source language must never be cached, cache has %d entries", env.cache.Len())
	}
	if s := env.engine.Queue().Stats(); s != (QueueStats{}) {
		t.Errorf("Queue should be empty, got %+v", s)
	}
}

func TestQueue_Deduplication(t *testing.T) {
	env := newTestEnv(t)
	env.setLanguage(t, "es")

	var futures []*Future
	for i := 0; i < 5; i++ {
		futures = append(futures, env.engine.Resolve("Hello", "", PriorityDefault))
	}
	// Whitespace variants share the key.
	futures = append(futures, env.engine.Resolve("  Hello  ", "", PriorityDefault))

	env.clock.Advance(50 * time.Millisecond)

	for i, f := range futures {
		res := wait(t, f)
		if res.Outcome != OutcomeTranslated || res.Text != "[es] Hello" {
			t.Errorf("future %d: got %+v", i, res)
		}
	}

	if env.tr.CallCount() != 1 {
		t.Errorf("Expected exactly 1 outbound call, got %d", env.tr.CallCount())
	}
}

func TestQueue_CacheCoherence(t *testing.T) {
	env := newTestEnv(t)
	env.setLanguage(t, "es")

	f := env.engine.Resolve("Hello", "", PriorityDefault)
	env.clock.Advance(50 * time.Millisecond)
	wait(t, f)

	v, ok := env.cache.Get(CacheKey(NewKey("Hello", "es")))
	if !ok || v != "[es] Hello" {
		t.Fatalf("Translation should be cached, got %q ok=%v", v, ok)
	}

	res, ok := env.engine.Resolve("Hello", "", PriorityDefault).Result()
	if !ok {
		t.Fatal("A cached translation should resolve synchronously")
	}
	if res.Outcome != OutcomeCached || res.Text != "[es] Hello" {
		t.Errorf("Expected cached result, got %+v", res)
	}
	if env.tr.CallCount() != 1 {
		t.Errorf("Cache hit must not call the translator, got %d calls", env.tr.CallCount())
	}
	if env.cache.Len() != 1 {
		t.Errorf("Expected one cache entry, got %d", env.cache.Len())
	}
}

func TestQueue_PriorityOrdering(t *testing.T) {
	env := newTestEnv(t, WithMaxConcurrent(1))
	env.setLanguage(t, "es")

	a := env.engine.Resolve("A", "", PriorityDefault)
	b := env.engine.Resolve("B", "", PriorityVisible)
	c := env.engine.Resolve("C", "", PriorityDefault)

	env.clock.Advance(50 * time.Millisecond)
	wait(t, a)
	wait(t, b)
	wait(t, c)

	calls := env.tr.Calls()
	if len(calls) != 3 {
		t.Fatalf("Expected 3 calls, got %d", len(calls))
	}
	got := calls[0].Text + calls[1].Text + calls[2].Text
	if got != "BAC" {
		t.Errorf("Expected dispatch order BAC, got %s", got)
	}
}

func TestQueue_DuplicateRaisesPriority(t *testing.T) {
	env := newTestEnv(t, WithMaxConcurrent(1))
	env.setLanguage(t, "es")

	a := env.engine.Resolve("A", "", PriorityDefault)
	b := env.engine.Resolve("B", "", PriorityDefault)
	c1 := env.engine.Resolve("C", "", PriorityDefault)
	c2 := env.engine.Resolve("C", "", PriorityVisible)

	env.clock.Advance(50 * time.Millisecond)
	for _, f := range []*Future{a, b, c1, c2} {
		wait(t, f)
	}

	calls := env.tr.Calls()
	if len(calls) != 3 {
		t.Fatalf("Duplicate request should coalesce, got %d calls", len(calls))
	}
	got := calls[0].Text + calls[1].Text + calls[2].Text
	if got != "CAB" {
		t.Errorf("Expected CAB (raised priority, FIFO otherwise), got %s", got)
	}
}

func TestQueue_ConcurrencyBound(t *testing.T) {
	env := newTestEnv(t, WithMaxConcurrent(2))
	env.setLanguage(t, "es")

	block := make(chan struct{})
	env.tr.setBlock(block)

	var futures []*Future
	for _, text := range []string{"one", "two", "three", "four", "five"} {
		futures = append(futures, env.engine.Resolve(text, "", PriorityDefault))
	}

	env.clock.Advance(50 * time.Millisecond)
	eventually(t, "two calls in flight", func() bool { return env.tr.CallCount() == 2 })

	time.Sleep(20 * time.Millisecond)
	if env.tr.CallCount() != 2 {
		t.Errorf("Only MaxConcurrent calls may start, got %d", env.tr.CallCount())
	}
	if s := env.engine.Queue().Stats(); s.Running != 2 || s.Queued != 3 {
		t.Errorf("Unexpected stats %+v", s)
	}

	close(block)
	for _, f := range futures {
		wait(t, f)
	}

	if env.tr.MaxInFlight() > 2 {
		t.Errorf("In-flight calls exceeded the bound: %d", env.tr.MaxInFlight())
	}
	if env.tr.CallCount() != 5 {
		t.Errorf("Expected 5 calls, got %d", env.tr.CallCount())
	}
}

func TestQueue_BatchSize(t *testing.T) {
	env := newTestEnv(t, WithBatchSize(2), WithMaxConcurrent(10))
	env.setLanguage(t, "es")

	block := make(chan struct{})
	env.tr.setBlock(block)
	defer close(block)

	for _, text := range []string{"one", "two", "three", "four", "five"} {
		env.engine.Resolve(text, "", PriorityDefault)
	}

	env.clock.Advance(50 * time.Millisecond)
	eventually(t, "first batch", func() bool { return env.tr.CallCount() == 2 })

	env.clock.Advance(50 * time.Millisecond)
	eventually(t, "second batch", func() bool { return env.tr.CallCount() == 4 })

	env.clock.Advance(50 * time.Millisecond)
	eventually(t, "last batch", func() bool { return env.tr.CallCount() == 5 })
}

func TestQueue_BatchDelay(t *testing.T) {
	env := newTestEnv(t)
	env.setLanguage(t, "es")

	env.engine.Resolve("Hello", "", PriorityDefault)

	env.clock.Advance(49 * time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	if env.tr.CallCount() != 0 {
		t.Fatalf("No call may be made before the batch delay, got %d", env.tr.CallCount())
	}

	env.clock.Advance(time.Millisecond)
	eventually(t, "call after batch delay", func() bool { return env.tr.CallCount() == 1 })
}

func TestQueue_BackoffThenDegrade(t *testing.T) {
	env := newTestEnv(t, WithRetryPolicy(RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  1000 * time.Millisecond,
		MaxDelay:   30 * time.Second,
	}))
	env.setLanguage(t, "es")

	env.tr.setFail(func(string, int) error { return errors.New("service unavailable") })

	f := env.engine.Resolve("Hello", "", PriorityDefault)
	env.clock.Advance(50 * time.Millisecond)
	eventually(t, "first call", func() bool { return env.tr.CallCount() == 1 })

	for i, delay := range []time.Duration{1000, 2000, 4000} {
		delay *= time.Millisecond
		env.waitTimers(t, 1)

		env.clock.Advance(delay - time.Millisecond)
		time.Sleep(5 * time.Millisecond)
		if env.tr.CallCount() != i+1 {
			t.Fatalf("retry %d fired early", i+1)
		}

		env.clock.Advance(time.Millisecond)
		eventually(t, "retry call", func() bool { return env.tr.CallCount() == i+2 })
	}

	res := wait(t, f)
	if res.Outcome != OutcomeDegraded {
		t.Fatalf("Expected degraded outcome, got %v", res.Outcome)
	}
	if res.Text != "Hello" {
		t.Errorf("Degraded result should carry the source text, got %q", res.Text)
	}
	if res.Err == nil {
		t.Error("Degraded result should carry the last error")
	}

	calls := env.tr.Calls()
	if len(calls) != 4 {
		t.Fatalf("Expected 1 call + 3 retries, got %d", len(calls))
	}
	for i, want := range []time.Duration{1000, 2000, 4000} {
		if gap := calls[i+1].At.Sub(calls[i].At); gap != want*time.Millisecond {
			t.Errorf("gap before retry %d = %v, want %v", i+1, gap, want*time.Millisecond)
		}
	}

	// The key stays failed within this generation.
	again := wait(t, env.engine.Resolve("Hello", "", PriorityDefault))
	if again.Outcome != OutcomeDegraded {
		t.Errorf("Exhausted key should resolve degraded at once, got %v", again.Outcome)
	}
	if env.tr.CallCount() != 4 {
		t.Errorf("Exhausted key must not be called again, got %d calls", env.tr.CallCount())
	}
}

func TestQueue_PermanentErrorSkipsRetries(t *testing.T) {
	env := newTestEnv(t)
	env.setLanguage(t, "es")

	env.tr.setFail(func(string, int) error {
		return &ProviderError{Message: "unsupported language pair", Retryable: false}
	})

	f := env.engine.Resolve("Hello", "", PriorityDefault)
	env.clock.Advance(50 * time.Millisecond)

	res := wait(t, f)
	if res.Outcome != OutcomeDegraded {
		t.Errorf("Expected degraded outcome, got %v", res.Outcome)
	}
	if env.tr.CallCount() != 1 {
		t.Errorf("Permanent errors must not be retried, got %d calls", env.tr.CallCount())
	}
}

func TestQueue_RecoversAfterTransientFailure(t *testing.T) {
	env := newTestEnv(t)
	env.setLanguage(t, "es")

	env.tr.setFail(func(_ string, n int) error {
		if n <= 2 {
			return errors.New("timeout")
		}
		return nil
	})

	key := NewKey("Hello", "es")
	f := env.engine.Resolve("Hello", "", PriorityDefault)
	env.clock.Advance(50 * time.Millisecond)

	env.waitTimers(t, 1)
	if st, ok := env.engine.Queue().RetryState(key); !ok || st.Attempts != 1 {
		t.Errorf("Expected retry state with 1 attempt, got %+v ok=%v", st, ok)
	}
	env.clock.Advance(time.Second)

	env.waitTimers(t, 1)
	env.clock.Advance(2 * time.Second)

	res := wait(t, f)
	if res.Outcome != OutcomeTranslated {
		t.Fatalf("Expected translation after recovery, got %+v", res)
	}
	if _, ok := env.engine.Queue().RetryState(key); ok {
		t.Error("Retry state should be reset on success")
	}
}

func TestQueue_LanguageSwitchInvalidates(t *testing.T) {
	env := newTestEnv(t)
	env.setLanguage(t, "es")

	block := make(chan struct{})
	env.tr.setBlock(block)

	f := env.engine.Resolve("Hello", "", PriorityDefault)
	env.clock.Advance(50 * time.Millisecond)
	eventually(t, "call in flight", func() bool { return env.tr.CallCount() == 1 })

	env.setLanguage(t, "fr")

	res := wait(t, f)
	if res.Outcome != OutcomeStale || !errors.Is(res.Err, ErrStaleGeneration) {
		t.Errorf("In-flight request should be stale after a language switch, got %+v", res)
	}

	close(block)
	eventually(t, "slot released", func() bool { return env.engine.Queue().Stats().Running == 0 })

	if env.cache.Len() != 0 {
		t.Errorf("Stale result must not be cached, cache has %d entries", env.cache.Len())
	}
}

func TestQueue_PendingDroppedOnLanguageSwitch(t *testing.T) {
	env := newTestEnv(t)
	env.setLanguage(t, "es")

	f := env.engine.Resolve("Hello", "", PriorityDefault)
	env.setLanguage(t, "de")

	res := wait(t, f)
	if res.Outcome != OutcomeStale {
		t.Errorf("Queued request should be dropped, got %v", res.Outcome)
	}

	env.clock.Advance(time.Second)
	time.Sleep(10 * time.Millisecond)
	if env.tr.CallCount() != 0 {
		t.Errorf("Dropped request must not be dispatched, got %d calls", env.tr.CallCount())
	}
}

func TestQueue_RetryBypass(t *testing.T) {
	env := newTestEnv(t)
	env.setLanguage(t, "es")

	env.tr.setFail(func(string, int) error { return &ProviderError{Message: "quota"} })

	f := env.engine.Resolve("Hello", "", PriorityDefault)
	env.clock.Advance(50 * time.Millisecond)
	if res := wait(t, f); res.Outcome != OutcomeDegraded {
		t.Fatalf("Expected degraded, got %v", res.Outcome)
	}

	env.tr.setFail(nil)

	// No clock advance: the retry is dispatched immediately.
	res := wait(t, env.engine.Retry("Hello", "", PriorityDefault))
	if res.Outcome != OutcomeTranslated || res.Text != "[es] Hello" {
		t.Errorf("Retry should translate, got %+v", res)
	}
	if env.tr.CallCount() != 2 {
		t.Errorf("Expected 2 calls, got %d", env.tr.CallCount())
	}
}

func TestQueue_Close(t *testing.T) {
	env := newTestEnv(t)
	env.setLanguage(t, "es")

	f := env.engine.Resolve("Hello", "", PriorityDefault)
	env.engine.Close()

	res := wait(t, f)
	if res.Outcome != OutcomeStale || !errors.Is(res.Err, ErrQueueClosed) {
		t.Errorf("Expected closed result, got %+v", res)
	}

	late := wait(t, env.engine.Resolve("World", "", PriorityDefault))
	if !errors.Is(late.Err, ErrQueueClosed) {
		t.Errorf("Requests after Close should settle closed, got %+v", late)
	}
}

func TestQueue_BlankTranslationDegrades(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	blank := TranslatorFunc(func(context.Context, string, string) (string, error) {
		return "  ", nil
	})

	engine, err := New(context.Background(), blank,
		WithClock(clk),
		WithRetryPolicy(RetryPolicy{MaxRetries: 0, BaseDelay: time.Second}),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer engine.Close()

	if err := engine.SetLanguage(context.Background(), "es"); err != nil {
		t.Fatal(err)
	}

	f := engine.Resolve("Hello", "", PriorityDefault)
	clk.Advance(50 * time.Millisecond)

	res := wait(t, f)
	if res.Outcome != OutcomeDegraded || res.Text != "Hello" {
		t.Errorf("Blank translations should count as failures, got %+v", res)
	}
}

func TestQueue_DegradedKeepsCallerText(t *testing.T) {
	env := newTestEnv(t)
	env.setLanguage(t, "es")

	env.tr.setFail(func(string, int) error {
		return &ProviderError{Message: "unsupported language pair", Retryable: false}
	})

	padded := env.engine.Resolve("  Hello  ", "", PriorityDefault)
	plain := env.engine.Resolve("Hello", "", PriorityDefault)
	env.clock.Advance(50 * time.Millisecond)

	if res := wait(t, padded); res.Outcome != OutcomeDegraded || res.Text != "  Hello  " {
		t.Errorf("Padded request should get its own text back, got %+v", res)
	}
	if res := wait(t, plain); res.Outcome != OutcomeDegraded || res.Text != "Hello" {
		t.Errorf("Plain request should get its own text back, got %+v", res)
	}

	// Later requests for the exhausted key keep their text too.
	if res := wait(t, env.engine.Resolve("Hello\n", "", PriorityDefault)); res.Text != "Hello\n" {
		t.Errorf("Exhausted key should return the caller's text, got %q", res.Text)
	}
	if env.tr.CallCount() != 1 {
		t.Errorf("Expected 1 call, got %d", env.tr.CallCount())
	}
}

// slowCache blocks the first Set until release is closed.
type slowCache struct {
	*cache.InMemoryCache
	entered chan struct{}
	release chan struct{}
}

func (c *slowCache) Set(key, value string) error {
	select {
	case c.entered <- struct{}{}:
		<-c.release
	default:
	}
	return c.InMemoryCache.Set(key, value)
}

func TestQueue_CacheWriteDoesNotBlockEnqueue(t *testing.T) {
	slow := &slowCache{
		InMemoryCache: cache.NewInMemoryCache(0),
		entered:       make(chan struct{}, 1),
		release:       make(chan struct{}),
	}
	env := newTestEnv(t, WithCache(slow))
	env.setLanguage(t, "es")

	first := env.engine.Resolve("Hello", "", PriorityDefault)
	env.clock.Advance(50 * time.Millisecond)

	select {
	case <-slow.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("Translation was never written to the cache")
	}

	done := make(chan *Future, 2)
	go func() {
		done <- env.engine.Resolve("World", "", PriorityDefault)
		done <- env.engine.Resolve("Hello", "", PriorityDefault)
	}()

	var dup *Future
	for i := 0; i < 2; i++ {
		select {
		case dup = <-done:
		case <-time.After(2 * time.Second):
			close(slow.release)
			t.Fatal("Resolve blocked on a pending cache write")
		}
	}
	if s := env.engine.Queue().Stats(); s.Running != 1 || s.Queued != 1 {
		t.Errorf("Expected Hello running and World queued, got %+v", s)
	}

	close(slow.release)

	for _, f := range []*Future{first, dup} {
		if res := wait(t, f); res.Outcome != OutcomeTranslated || res.Text != "[es] Hello" {
			t.Errorf("Expected translated result, got %+v", res)
		}
	}
	if env.tr.CallCount() != 1 {
		t.Errorf("Duplicate should join the running job, got %d calls", env.tr.CallCount())
	}
	if v, ok := slow.Get(CacheKey(NewKey("Hello", "es"))); !ok || v != "[es] Hello" {
		t.Errorf("Translation should be cached, got %q ok=%v", v, ok)
	}
}
