// Package provider contains Translator implementations for remote and local
// translation backends.
package provider

import (
	"context"
	"errors"

	"github.com/ZaguanLabs/gotlive"
)

// Translator is an alias to the main package interface for convenience.
type Translator = gotlive.Translator

// ProviderError is an alias to the main package type.
type ProviderError = gotlive.ProviderError

// noTranslation reports a missing entry. It is permanent on its own but lets
// a Chain move on to the next translator.
func noTranslation(text string) error {
	return &ProviderError{
		Message:   "no entry for " + text,
		Cause:     gotlive.ErrNoTranslation,
		Retryable: false,
	}
}

// Chain tries each translator in order until one has an answer. A translator
// returning an error wrapping gotlive.ErrNoTranslation is skipped; any other
// error stops the chain.
type Chain []Translator

// NewChain returns a Chain over translators, skipping nil entries.
func NewChain(translators ...Translator) Chain {
	c := make(Chain, 0, len(translators))
	for _, t := range translators {
		if t != nil {
			c = append(c, t)
		}
	}
	return c
}

// Translate implements Translator.
func (c Chain) Translate(ctx context.Context, text, targetLang string) (string, error) {
	for _, t := range c {
		out, err := t.Translate(ctx, text, targetLang)
		if err == nil {
			return out, nil
		}
		if !errors.Is(err, gotlive.ErrNoTranslation) {
			return "", err
		}
	}
	return "", noTranslation(text)
}

var _ Translator = Chain(nil)
