package gotlive

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrStaleGeneration is carried by results whose language changed (or
	// whose cache was refreshed) while the request was pending.
	ErrStaleGeneration = errors.New("gotlive: language changed before translation completed")

	// ErrQueueClosed is carried by results of requests cut short by Close.
	ErrQueueClosed = errors.New("gotlive: engine closed")

	// ErrNoTranslation is returned by translators that have no entry for a
	// text, letting a chain fall through to the next one.
	ErrNoTranslation = errors.New("gotlive: no translation available")
)

// ProviderError indicates a translation backend failure (API error, rate limit, etc.).
type ProviderError struct {
	Message   string
	Cause     error
	Retryable bool // Whether the operation can be retried
}

func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("provider error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("provider error: %s", e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// CacheError indicates a cache operation failure.
type CacheError struct {
	Message string
	Cause   error
}

func (e *CacheError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("cache error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("cache error: %s", e.Message)
}

func (e *CacheError) Unwrap() error {
	return e.Cause
}

// StoreError indicates the language preference could not be loaded or saved.
type StoreError struct {
	Op    string // "load" or "save"
	Key   string
	Cause error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("preference store: %s %q: %v", e.Op, e.Key, e.Cause)
}

func (e *StoreError) Unwrap() error {
	return e.Cause
}

// LanguageError indicates an invalid language code.
type LanguageError struct {
	Code  string
	Cause error
}

func (e *LanguageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid language %q: %v", e.Code, e.Cause)
	}
	return fmt.Sprintf("invalid language %q", e.Code)
}

func (e *LanguageError) Unwrap() error {
	return e.Cause
}

// IsPermanent reports whether a translation failure must not be retried.
// Only provider errors explicitly marked non-retryable and cancelled
// contexts are permanent; anything else is treated as transient.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return !providerErr.Retryable
	}

	return errors.Is(err, context.Canceled)
}

// IsRetryable reports whether a failed translation may be attempted again.
func IsRetryable(err error) bool {
	return err != nil && !IsPermanent(err)
}
