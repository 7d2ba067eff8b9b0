package gotlive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/ZaguanLabs/gotlive/cache"
	"github.com/ZaguanLabs/gotlive/clock"
	"github.com/ZaguanLabs/gotlive/gate"
	"github.com/ZaguanLabs/gotlive/store"
)

// DefaultSourceLanguage is the language UI strings are assumed to be written in.
const DefaultSourceLanguage = "en"

// Engine is the localization engine: one per application, created at start
// and shared by everything that renders text.
type Engine struct {
	lang      *LanguageState
	cache     cache.TranslationCache
	queue     *Queue
	readiness gate.Gate
	logger    *slog.Logger

	stopPurge func()
	closeOnce sync.Once
}

type options struct {
	cache     cache.TranslationCache
	prefs     store.PreferenceStore
	prefKey   string
	source    string
	queue     QueueConfig
	clock     clock.Clock
	logger    *slog.Logger
	meter     metric.MeterProvider
	readiness gate.Gate
}

// Option is a functional option for configuring the Engine.
type Option func(*options)

// WithCache sets the translation cache. Default: unbounded in-memory cache.
func WithCache(c cache.TranslationCache) Option {
	return func(o *options) {
		o.cache = c
	}
}

// WithPreferenceStore sets where the selected language is persisted.
// Default: in-memory only.
func WithPreferenceStore(s store.PreferenceStore) Option {
	return func(o *options) {
		o.prefs = s
	}
}

// WithPreferenceKey sets the key the selected language is stored under.
func WithPreferenceKey(key string) Option {
	return func(o *options) {
		o.prefKey = key
	}
}

// WithSourceLanguage sets the language UI strings are authored in.
func WithSourceLanguage(lang string) Option {
	return func(o *options) {
		o.source = lang
	}
}

// WithQueueConfig replaces the whole queue configuration.
func WithQueueConfig(cfg QueueConfig) Option {
	return func(o *options) {
		o.queue = cfg
	}
}

// WithBatchSize sets how many jobs are dispatched per batch.
func WithBatchSize(n int) Option {
	return func(o *options) {
		o.queue.BatchSize = n
	}
}

// WithBatchDelay sets how long enqueues are collected before dispatch.
func WithBatchDelay(d time.Duration) Option {
	return func(o *options) {
		o.queue.BatchDelay = d
	}
}

// WithMaxConcurrent bounds the number of outbound calls in flight.
func WithMaxConcurrent(n int) Option {
	return func(o *options) {
		o.queue.MaxConcurrent = n
	}
}

// WithRetryPolicy sets the back-off used for failed calls.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(o *options) {
		o.queue.Retry = p
	}
}

// WithClock sets the time source for batching and back-off.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithLogger sets the logger. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider. Default: the
// global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		o.meter = mp
	}
}

// WithReadiness sets a gate every element waits on before requesting a
// translation, typically a *gate.Readiness fed by the page's render loop.
func WithReadiness(g gate.Gate) Option {
	return func(o *options) {
		o.readiness = g
	}
}

// New creates an Engine translating through t. The persisted language, if
// any, is restored before New returns.
func New(ctx context.Context, t Translator, opts ...Option) (*Engine, error) {
	if t == nil {
		return nil, errors.New("gotlive: translator is required")
	}

	o := options{
		source:  DefaultSourceLanguage,
		prefKey: DefaultPreferenceKey,
		queue:   DefaultQueueConfig(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.cache == nil {
		o.cache = cache.NewInMemoryCache(0)
	}
	if o.prefs == nil {
		o.prefs = store.NewMemoryStore()
	}
	if o.clock == nil {
		o.clock = clock.Real()
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}

	source, err := NormalizeLanguage(o.source)
	if err != nil {
		return nil, fmt.Errorf("source language: %w", err)
	}

	ins, err := newInstruments(o.meter)
	if err != nil {
		return nil, err
	}

	lang := NewLanguageState(source, o.cache, o.prefs, o.prefKey, o.logger)

	q, err := newQueue(o.queue, t, o.cache, lang, o.clock, o.logger, ins)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		lang:      lang,
		cache:     o.cache,
		queue:     q,
		readiness: o.readiness,
		logger:    o.logger,
	}
	// Registered first so waiters are released before elements re-evaluate.
	e.stopPurge = lang.Subscribe(func(LanguageChange) { q.purge() })

	if err := lang.Restore(ctx); err != nil {
		o.logger.Warn("could not restore language preference", "error", err)
	}

	return e, nil
}

// Language returns the engine's language state.
func (e *Engine) Language() *LanguageState {
	return e.lang
}

// Queue returns the engine's request queue.
func (e *Engine) Queue() *Queue {
	return e.queue
}

// CurrentLanguage returns the selected language.
func (e *Engine) CurrentLanguage() string {
	return e.lang.CurrentLanguage()
}

// SetLanguage switches the UI language. See LanguageState.SetLanguage.
func (e *Engine) SetLanguage(ctx context.Context, code string) error {
	return e.lang.SetLanguage(ctx, code)
}

// Refresh drops all cached translations and re-translates visible text.
func (e *Engine) Refresh() error {
	return e.lang.Refresh()
}

// Localize returns an element tracking text in the current language.
func (e *Engine) Localize(text string, opts ...ElementOption) *Element {
	return newElement(e, text, opts...)
}

// Resolve requests text in lang for callers without a UI handle. An empty
// lang means the current language. The Future never fails: errors are
// reported through Result.Outcome and Result.Err.
func (e *Engine) Resolve(text, lang string, priority Priority) *Future {
	return e.resolve(text, lang, priority, false)
}

// Retry is Resolve with any exhausted or back-off state of the key cleared,
// so the call is made immediately.
func (e *Engine) Retry(text, lang string, priority Priority) *Future {
	return e.resolve(text, lang, priority, true)
}

func (e *Engine) resolve(text, lang string, priority Priority, bypass bool) *Future {
	key, res, done := e.prepare(text, lang)
	if done {
		return ResolvedFuture(res)
	}

	gen := e.lang.Generation()
	if !bypass {
		if v, ok := e.queue.lookup(key); ok {
			return ResolvedFuture(Result{Text: v, Outcome: OutcomeCached})
		}
	}
	return e.queue.enqueue(key, text, gen, priority, bypass)
}

// prepare normalizes the request and short-circuits the cases that never
// reach the cache or the queue.
func (e *Engine) prepare(text, lang string) (TranslationKey, Result, bool) {
	if lang == "" {
		lang = e.lang.CurrentLanguage()
	} else {
		norm, err := NormalizeLanguage(lang)
		if err != nil {
			return TranslationKey{}, Result{Text: text, Outcome: OutcomeSource, Err: err}, true
		}
		lang = norm
	}

	key := NewKey(text, lang)
	if key.Empty() {
		return key, Result{Outcome: OutcomeSource}, true
	}
	if e.lang.IsSource(lang) {
		return key, Result{Text: text, Outcome: OutcomeSource}, true
	}
	return key, Result{}, false
}

// ExportCache writes a snapshot of the cache for the current language.
// The cache backend must implement cache.Enumerable.
func (e *Engine) ExportCache(w io.Writer, metadata map[string]string) error {
	return cache.NewExporter(e.cache).Export(w, e.CurrentLanguage(), metadata)
}

// ImportCache loads a snapshot into the cache. Snapshots taken for another
// language are rejected.
func (e *Engine) ImportCache(r io.Reader) (*cache.ImportResult, error) {
	snap, err := cache.ReadSnapshot(r)
	if err != nil {
		return nil, err
	}

	lang, gen := e.lang.Snapshot()
	if snap.Language != "" && snap.Language != lang {
		return nil, fmt.Errorf("snapshot is for language %q, current language is %q", snap.Language, lang)
	}

	var result *cache.ImportResult
	if !e.lang.IfCurrent(gen, func() { result = cache.NewImporter(e.cache).Apply(snap) }) {
		return nil, ErrStaleGeneration
	}
	return result, nil
}

// Close settles all outstanding requests as stale and stops the worker
// pool. Elements stop updating.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.stopPurge()
		e.queue.Close()
	})
}
