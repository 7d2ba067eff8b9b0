package gotlive

import (
	"context"
	"sync"
)

// PrefetchResult reports what Prefetch did with each distinct text.
type PrefetchResult struct {
	Cached  int       // already in the cache
	Skipped int       // empty or in the source language
	Pending []*Future // enqueued at PriorityPrefetch
}

// Wait blocks until every enqueued request has settled.
func (r *PrefetchResult) Wait(ctx context.Context) error {
	for _, f := range r.Pending {
		if _, err := f.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Prefetch warms the cache for texts in lang (empty means the current
// language). Distinct texts are looked up in parallel, which pays off with a
// remote cache, and misses are queued in their original order at the lowest
// priority so on-screen text overtakes them.
func (e *Engine) Prefetch(texts []string, lang string) *PrefetchResult {
	result := &PrefetchResult{}

	gen := e.lang.Generation()

	// Deduplicate first; order is kept for the enqueue below.
	var keys []TranslationKey
	first := make(map[TranslationKey]string, len(texts))
	for _, text := range texts {
		key, _, done := e.prepare(text, lang)
		if done {
			result.Skipped++
			continue
		}
		if _, ok := first[key]; ok {
			continue
		}
		first[key] = text
		keys = append(keys, key)
	}

	if len(keys) == 0 {
		return result
	}

	missed := parallelLookup(e.queue, keys)

	for _, key := range keys {
		if !missed[key] {
			result.Cached++
			continue
		}
		result.Pending = append(result.Pending, e.queue.enqueue(key, first[key], gen, PriorityPrefetch, false))
	}

	return result
}

// parallelLookup performs cache lookups concurrently and returns the set of
// keys that missed.
func parallelLookup(q *Queue, keys []TranslationKey) map[TranslationKey]bool {
	type lookupResult struct {
		key   TranslationKey
		found bool
	}

	results := make(chan lookupResult, len(keys))
	var wg sync.WaitGroup

	for _, key := range keys {
		wg.Add(1)
		go func(k TranslationKey) {
			defer wg.Done()
			_, ok := q.lookup(k)
			results <- lookupResult{key: k, found: ok}
		}(key)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	missed := make(map[TranslationKey]bool)
	for r := range results {
		if !r.found {
			missed[r.key] = true
		}
	}
	return missed
}
