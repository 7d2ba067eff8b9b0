// Package processor localizes structured content, such as server-rendered
// HTML or Go sources, through a gotlive engine. Every unique string goes
// through the engine's cache and request queue like any on-screen element.
package processor

import (
	"context"
	"fmt"
	"sync"

	"github.com/ZaguanLabs/gotlive"
)

// Resolver requests translations. *gotlive.Engine implements it.
type Resolver interface {
	Resolve(text, lang string, priority gotlive.Priority) *gotlive.Future
	CurrentLanguage() string
}

// TextNode is a unique translatable string found in content.
type TextNode struct {
	Text    string
	Context string // where the first occurrence was found
	Count   int    // number of occurrences
}

// Error indicates content could not be parsed or rendered.
type Error struct {
	Message     string
	ContentType string
	Cause       error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s processor: %s: %v", e.ContentType, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s processor: %s", e.ContentType, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Report summarizes one localization pass.
type Report struct {
	Lang       string
	Nodes      int // unique strings
	Translated int
	Cached     int
	Degraded   int // left in the source language after failures
	Skipped    int // source language, stale or cancelled
}

func (r *Report) add(res gotlive.Result) {
	switch res.Outcome {
	case gotlive.OutcomeTranslated:
		r.Translated++
	case gotlive.OutcomeCached:
		r.Cached++
	case gotlive.OutcomeDegraded:
		r.Degraded++
	default:
		r.Skipped++
	}
}

// IgnoredTags contains HTML tags whose content is never translated.
var IgnoredTags = map[string]bool{
	"script":   true,
	"style":    true,
	"code":     true,
	"pre":      true,
	"textarea": true,
	"noscript": true,
	"template": true,
	"svg":      true,
	"kbd":      true,
	"samp":     true,
	"var":      true,
}

// resolveAll requests every node at priority and waits for all of them. The
// returned map holds usable translations keyed by source text; nodes that
// came back as source text are left out.
func resolveAll(ctx context.Context, r Resolver, nodes []TextNode, lang string, priority gotlive.Priority) (map[string]string, *Report, error) {
	if lang == "" {
		lang = r.CurrentLanguage()
	}
	report := &Report{Lang: lang, Nodes: len(nodes)}

	futures := make([]*gotlive.Future, len(nodes))
	for i, n := range nodes {
		futures[i] = r.Resolve(n.Text, lang, priority)
	}

	results := make([]gotlive.Result, len(nodes))
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for i, f := range futures {
		wg.Add(1)
		go func(i int, f *gotlive.Future) {
			defer wg.Done()
			res, err := f.Wait(ctx)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			results[i] = res
		}(i, f)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, report, firstErr
	}

	translations := make(map[string]string, len(nodes))
	for i, res := range results {
		report.add(res)
		if res.Translated() {
			translations[nodes[i].Text] = res.Text
		}
	}
	return translations, report, nil
}
