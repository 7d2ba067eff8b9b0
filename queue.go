package gotlive

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/rs/xid"

	"github.com/ZaguanLabs/gotlive/cache"
	"github.com/ZaguanLabs/gotlive/clock"
)

// QueueConfig controls batching, concurrency and retries of outbound calls.
type QueueConfig struct {
	BatchSize     int           // Maximum jobs taken per dispatch
	BatchDelay    time.Duration // Quiet period collecting a burst of enqueues
	MaxConcurrent int           // Maximum outbound calls in flight
	Retry         RetryPolicy
}

// DefaultQueueConfig returns sensible defaults for the request queue.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		BatchSize:     10,
		BatchDelay:    50 * time.Millisecond,
		MaxConcurrent: 4,
		Retry:         DefaultRetryPolicy(),
	}
}

func (c QueueConfig) withDefaults() QueueConfig {
	d := DefaultQueueConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.BatchDelay < 0 {
		c.BatchDelay = 0
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = d.MaxConcurrent
	}
	if c.Retry.MaxRetries < 0 {
		c.Retry.MaxRetries = 0
	}
	return c
}

// generationSource is the part of LanguageState the queue depends on.
type generationSource interface {
	Generation() uint64
	IfCurrent(gen uint64, fn func()) bool
	IsSource(lang string) bool
}

type jobState int

const (
	jobQueued jobState = iota
	jobRunning
	jobBackoff
)

// request is one caller waiting on a job.
type request struct {
	id        xid.ID
	text      string // as the caller passed it
	priority  Priority
	createdAt time.Time
	future    *Future
}

// job is the single outbound call shared by every request for a key within
// one generation.
type job struct {
	key      TranslationKey
	gen      uint64
	priority Priority
	seq      uint64
	state    jobState
	requests []*request
	timer    clock.Timer
}

// QueueStats is a point-in-time view of the queue.
type QueueStats struct {
	Queued     int // waiting for dispatch
	Running    int // outbound call in flight
	BackingOff int // waiting for a retry timer
}

// Queue deduplicates, orders and dispatches translation requests.
//
// All bookkeeping (job map, pending list, in-flight count, retry states) is
// guarded by one mutex. Outbound calls run on a worker pool sized to
// MaxConcurrent.
type Queue struct {
	cfg        QueueConfig
	translator Translator
	cache      cache.TranslationCache
	gens       generationSource
	clock      clock.Clock
	logger     *slog.Logger
	ins        *instruments
	pool       *ants.Pool
	ctx        context.Context
	cancel     context.CancelFunc

	mu        sync.Mutex
	jobs      map[TranslationKey]*job
	pending   []*job
	active    int
	seq       uint64
	retries   map[TranslationKey]*RetryState
	exhausted map[TranslationKey]uint64 // key -> generation it was given up in
	drain     clock.Timer
	closed    bool
}

func newQueue(cfg QueueConfig, t Translator, c cache.TranslationCache, gens generationSource, clk clock.Clock, logger *slog.Logger, ins *instruments) (*Queue, error) {
	cfg = cfg.withDefaults()

	pool, err := ants.NewPool(cfg.MaxConcurrent)
	if err != nil {
		return nil, fmt.Errorf("creating worker pool: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		cfg:        cfg,
		translator: t,
		cache:      c,
		gens:       gens,
		clock:      clk,
		logger:     logger,
		ins:        ins,
		pool:       pool,
		ctx:        ctx,
		cancel:     cancel,
		jobs:       make(map[TranslationKey]*job),
		retries:    make(map[TranslationKey]*RetryState),
		exhausted:  make(map[TranslationKey]uint64),
	}, nil
}

// Enqueue requests a translation of text into lang, which must be a
// normalized language code. Empty text, the source language and cache hits
// resolve at once; the source language never reaches the cache.
func (q *Queue) Enqueue(text, lang string, priority Priority) *Future {
	key := NewKey(text, lang)
	if key.Empty() {
		return ResolvedFuture(Result{Outcome: OutcomeSource})
	}
	if q.gens.IsSource(key.Lang) {
		return ResolvedFuture(Result{Text: text, Outcome: OutcomeSource})
	}

	gen := q.gens.Generation()
	if v, ok := q.lookup(key); ok {
		return ResolvedFuture(Result{Text: v, Outcome: OutcomeCached})
	}
	return q.enqueue(key, text, gen, priority, false)
}

// Stats returns current queue occupancy.
func (q *Queue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()

	var s QueueStats
	for _, j := range q.jobs {
		switch j.state {
		case jobQueued:
			s.Queued++
		case jobRunning:
			s.Running++
		case jobBackoff:
			s.BackingOff++
		}
	}
	return s
}

// RetryState returns the failure bookkeeping for a key, if it has failed
// since its last success.
func (q *Queue) RetryState(key TranslationKey) (RetryState, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	st, ok := q.retries[key]
	if !ok {
		return RetryState{}, false
	}
	return *st, true
}

// lookup reads the cache and records hit/miss counters.
func (q *Queue) lookup(key TranslationKey) (string, bool) {
	v, ok := q.cache.Get(CacheKey(key))
	if ok {
		q.ins.add(q.ins.hits, 1, key.Lang)
	} else {
		q.ins.add(q.ins.misses, 1, key.Lang)
	}
	return v, ok
}

// enqueue attaches a request for key, captured under generation gen, to the
// existing job or creates one. text is the caller's original text, returned
// on degradation. With bypass set, any exhausted or back-off state for the
// key is cleared and dispatch happens immediately.
func (q *Queue) enqueue(key TranslationKey, text string, gen uint64, priority Priority, bypass bool) *Future {
	req := &request{
		id:        xid.New(),
		text:      text,
		priority:  priority,
		createdAt: q.clock.Now(),
		future:    newFuture(),
	}

	q.mu.Lock()

	if q.closed {
		q.mu.Unlock()
		req.future.resolve(Result{Outcome: OutcomeStale, Err: ErrQueueClosed})
		return req.future
	}

	if gen != q.gens.Generation() {
		q.mu.Unlock()
		q.ins.add(q.ins.stale, 1, key.Lang)
		req.future.resolve(Result{Outcome: OutcomeStale, Err: ErrStaleGeneration})
		return req.future
	}

	if bypass {
		delete(q.exhausted, key)
		delete(q.retries, key)
	} else if g, ok := q.exhausted[key]; ok && g == gen {
		q.mu.Unlock()
		req.future.resolve(Result{Text: text, Outcome: OutcomeDegraded})
		return req.future
	}

	j, ok := q.jobs[key]
	if ok && j.gen != gen {
		q.dropLocked(j, ErrStaleGeneration)
		ok = false
	}

	if ok {
		j.requests = append(j.requests, req)
		if priority > j.priority {
			j.priority = priority
		}
		q.ins.add(q.ins.coalesced, 1, key.Lang)

		if bypass && j.state == jobBackoff {
			j.timer.Stop()
			j.timer = nil
			j.state = jobQueued
			q.pending = append(q.pending, j)
		}
	} else {
		q.seq++
		j = &job{
			key:      key,
			gen:      gen,
			priority: priority,
			seq:      q.seq,
			state:    jobQueued,
			requests: []*request{req},
		}
		q.jobs[key] = j
		q.pending = append(q.pending, j)
	}

	if !bypass {
		q.armDrainLocked()
		q.mu.Unlock()
		return req.future
	}

	batch := q.takeBatchLocked()
	q.mu.Unlock()
	q.launch(batch)
	return req.future
}

// armDrainLocked starts the batch timer unless one is already running.
func (q *Queue) armDrainLocked() {
	if q.drain == nil && len(q.pending) > 0 {
		q.drain = q.clock.AfterFunc(q.cfg.BatchDelay, q.onDrain)
	}
}

func (q *Queue) onDrain() {
	q.mu.Lock()
	q.drain = nil
	if q.closed {
		q.mu.Unlock()
		return
	}
	batch := q.takeBatchLocked()
	if q.active < q.cfg.MaxConcurrent {
		q.armDrainLocked()
	}
	q.mu.Unlock()

	q.launch(batch)
}

// takeBatchLocked drops stale pending jobs, orders the rest by priority
// (descending) then enqueue order, and claims as many as the batch size and
// free concurrency slots allow.
func (q *Queue) takeBatchLocked() []*job {
	if q.closed {
		return nil
	}

	cur := q.gens.Generation()
	kept := q.pending[:0]
	for _, j := range q.pending {
		if j.gen != cur {
			q.discardLocked(j, ErrStaleGeneration)
			continue
		}
		kept = append(kept, j)
	}
	clear(q.pending[len(kept):])
	q.pending = kept

	sort.SliceStable(q.pending, func(a, b int) bool {
		pa, pb := q.pending[a], q.pending[b]
		if pa.priority != pb.priority {
			return pa.priority > pb.priority
		}
		return pa.seq < pb.seq
	})

	n := min(q.cfg.BatchSize, q.cfg.MaxConcurrent-q.active, len(q.pending))
	if n <= 0 {
		return nil
	}

	batch := make([]*job, n)
	copy(batch, q.pending[:n])
	q.pending = append([]*job(nil), q.pending[n:]...)

	for _, j := range batch {
		j.state = jobRunning
		q.ins.add(q.ins.calls, 1, j.key.Lang)
	}
	q.active += n

	q.logger.Debug("dispatching translations", "batch", n, "in_flight", q.active, "pending", len(q.pending))
	return batch
}

func (q *Queue) launch(batch []*job) {
	for _, j := range batch {
		if err := q.pool.Submit(func() { q.run(j) }); err != nil {
			q.settle(j, "", &ProviderError{Message: "worker pool unavailable", Cause: err})
		}
	}
}

func (q *Queue) run(j *job) {
	var (
		text string
		err  error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = &ProviderError{Message: fmt.Sprintf("translator panicked: %v", r)}
			}
		}()
		text, err = q.translator.Translate(q.ctx, j.key.Text, j.key.Lang)
	}()

	if err == nil && strings.TrimSpace(text) == "" {
		err = &ProviderError{Message: "empty translation", Retryable: true}
	}
	q.settle(j, text, err)
}

// settle releases the job's concurrency slot and publishes its outcome.
// It runs on a pool worker, so the next batch is launched from a new
// goroutine to keep the worker free.
//
// A successful translation is cached outside the queue lock. The job stays
// registered while the write runs, so duplicates arriving meanwhile join it.
func (q *Queue) settle(j *job, text string, err error) {
	var stored, written bool
	var setErr error
	if err == nil && q.owns(j) {
		stored = true
		written = q.gens.IfCurrent(j.gen, func() {
			setErr = q.cache.Set(CacheKey(j.key), text)
		})
	}

	q.mu.Lock()
	q.active--

	if q.jobs[j.key] == j && j.state == jobRunning {
		switch {
		case err != nil:
			q.failLocked(j, err)
		case !stored:
			q.discardLocked(j, ErrStaleGeneration)
		default:
			q.completeLocked(j, text, written, setErr)
		}
	}

	batch := q.takeBatchLocked()
	q.mu.Unlock()

	if len(batch) > 0 {
		go q.launch(batch)
	}
}

// owns reports whether j is still the live job for its key.
func (q *Queue) owns(j *job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return !q.closed && q.jobs[j.key] == j && j.state == jobRunning
}

// completeLocked publishes a translation that settle has already tried to
// cache. written is false when the generation moved on before the write.
func (q *Queue) completeLocked(j *job, text string, written bool, setErr error) {
	delete(q.jobs, j.key)

	if !written || j.gen != q.gens.Generation() {
		q.ins.add(q.ins.stale, len(j.requests), j.key.Lang)
		q.resolveLocked(j, Result{Outcome: OutcomeStale, Err: ErrStaleGeneration})
		return
	}
	if setErr != nil {
		q.logger.Warn("failed to cache translation",
			"lang", j.key.Lang,
			"error", &CacheError{Message: "set", Cause: setErr})
	}

	delete(q.retries, j.key)
	q.resolveLocked(j, Result{Text: text, Outcome: OutcomeTranslated})
}

func (q *Queue) failLocked(j *job, err error) {
	if j.gen != q.gens.Generation() {
		q.discardLocked(j, ErrStaleGeneration)
		return
	}

	st, ok := q.retries[j.key]
	if !ok {
		st = &RetryState{}
		q.retries[j.key] = st
	}
	st.Attempts++

	if IsPermanent(err) || q.cfg.Retry.Exhausted(st.Attempts) {
		delete(q.jobs, j.key)
		delete(q.retries, j.key)
		q.exhausted[j.key] = j.gen

		q.logger.Warn("translation failed, falling back to source text",
			"lang", j.key.Lang,
			"attempts", st.Attempts,
			"error", err)
		q.ins.add(q.ins.degraded, 1, j.key.Lang)
		for _, r := range j.requests {
			r.future.resolve(Result{Text: r.text, Outcome: OutcomeDegraded, Err: err})
		}
		j.requests = nil
		return
	}

	delay := q.cfg.Retry.Delay(st.Attempts - 1)
	st.NextEligibleAt = q.clock.Now().Add(delay)
	j.state = jobBackoff
	j.timer = q.clock.AfterFunc(delay, func() { q.retryDue(j) })

	q.logger.Debug("translation failed, retrying",
		"lang", j.key.Lang,
		"attempt", st.Attempts,
		"delay", delay,
		"error", err)
	q.ins.add(q.ins.retries, 1, j.key.Lang)
}

func (q *Queue) retryDue(j *job) {
	q.mu.Lock()
	if q.closed || q.jobs[j.key] != j || j.state != jobBackoff {
		q.mu.Unlock()
		return
	}
	j.timer = nil
	j.state = jobQueued
	q.pending = append(q.pending, j)
	batch := q.takeBatchLocked()
	q.mu.Unlock()

	q.launch(batch)
}

// purge drops every job and failure record from older generations. It is
// called after a language change so waiters are released without waiting
// for the next dispatch.
func (q *Queue) purge() {
	q.mu.Lock()
	defer q.mu.Unlock()

	cur := q.gens.Generation()
	for _, j := range q.jobs {
		if j.gen != cur {
			q.dropLocked(j, ErrStaleGeneration)
		}
	}
	for key, g := range q.exhausted {
		if g != cur {
			delete(q.exhausted, key)
		}
	}
}

// dropLocked removes a job from every structure and settles its requests
// as stale.
func (q *Queue) dropLocked(j *job, cause error) {
	if j.state == jobQueued {
		for i, p := range q.pending {
			if p == j {
				q.pending = append(q.pending[:i], q.pending[i+1:]...)
				break
			}
		}
	}
	q.discardLocked(j, cause)
}

// discardLocked is dropLocked for a job already removed from pending.
func (q *Queue) discardLocked(j *job, cause error) {
	if q.jobs[j.key] == j {
		delete(q.jobs, j.key)
		delete(q.retries, j.key)
	}
	if j.timer != nil {
		j.timer.Stop()
		j.timer = nil
	}
	q.ins.add(q.ins.stale, len(j.requests), j.key.Lang)
	q.resolveLocked(j, Result{Outcome: OutcomeStale, Err: cause})
}

func (q *Queue) resolveLocked(j *job, res Result) {
	for _, r := range j.requests {
		r.future.resolve(res)
	}
	j.requests = nil
}

// Close settles every outstanding request as stale, cancels in-flight calls
// and releases the worker pool.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	if q.drain != nil {
		q.drain.Stop()
		q.drain = nil
	}
	for _, j := range q.jobs {
		q.discardLocked(j, ErrQueueClosed)
	}
	q.pending = nil
	q.mu.Unlock()

	q.cancel()
	q.pool.Release()
}
