package gotlive

import (
	"context"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Translator is the interface for remote translation backends. It is opaque
// to the engine: it may be slow and it may fail.
type Translator interface {
	Translate(ctx context.Context, text, targetLang string) (string, error)
}

// TranslatorFunc adapts an ordinary function to the Translator interface.
type TranslatorFunc func(ctx context.Context, text, targetLang string) (string, error)

// Translate calls f(ctx, text, targetLang).
func (f TranslatorFunc) Translate(ctx context.Context, text, targetLang string) (string, error) {
	return f(ctx, text, targetLang)
}

// TranslationKey identifies one translation: a trimmed, NFC-normalized source
// text and a normalized target language. It is comparable and used directly
// as a map key.
type TranslationKey struct {
	Text string
	Lang string
}

// NewKey builds a key from raw UI text. Surrounding whitespace is dropped.
func NewKey(text, lang string) TranslationKey {
	return TranslationKey{
		Text: norm.NFC.String(strings.TrimSpace(text)),
		Lang: lang,
	}
}

// Empty reports whether the key has no text to translate.
func (k TranslationKey) Empty() bool {
	return k.Text == ""
}

func (k TranslationKey) String() string {
	return k.Lang + ":" + k.Text
}

// Priority orders pending requests. Higher is more urgent.
type Priority int

const (
	// PriorityPrefetch is used for warming the cache ahead of need.
	PriorityPrefetch Priority = 0
	// PriorityDefault is used for elements without a visibility hint.
	PriorityDefault Priority = 1
	// PriorityVisible is used for text currently on screen.
	PriorityVisible Priority = 5
)

// Outcome describes how a Result was produced.
type Outcome int

const (
	// OutcomeSource means the text needed no translation (empty, or already
	// in the source language) and is returned unchanged.
	OutcomeSource Outcome = iota
	// OutcomeCached means the value came from the translation cache.
	OutcomeCached
	// OutcomeTranslated means the value came from a remote call.
	OutcomeTranslated
	// OutcomeDegraded means retries were exhausted and the source text is
	// returned in place of a translation.
	OutcomeDegraded
	// OutcomeStale means the language changed (or the engine closed) before
	// the request completed. No value is carried.
	OutcomeStale
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSource:
		return "source"
	case OutcomeCached:
		return "cached"
	case OutcomeTranslated:
		return "translated"
	case OutcomeDegraded:
		return "degraded"
	case OutcomeStale:
		return "stale"
	default:
		return "unknown"
	}
}

// Result is the settled value of a translation request.
type Result struct {
	Text    string
	Outcome Outcome
	Err     error // last provider error for degraded results, ErrStaleGeneration or ErrQueueClosed for stale ones
}

// Translated reports whether Text holds a translation (fresh or cached).
func (r Result) Translated() bool {
	return r.Outcome == OutcomeCached || r.Outcome == OutcomeTranslated
}
