package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ZaguanLabs/gotlive"
)

// Mock is an in-process translator for tests and demos. Known texts come
// from a per-language dictionary; anything else is returned as
// "[lang] text".
type Mock struct {
	mu           sync.Mutex
	translations map[string]map[string]string // lang -> source -> translation
	failures     map[string]error
	delay        time.Duration
	calls        int
	inFlight     int
	maxInFlight  int
	last         string
}

// NewMock creates a mock with a few Spanish defaults.
func NewMock() *Mock {
	return &Mock{
		translations: map[string]map[string]string{
			"es": {
				"Hello":                "Hola",
				"World":                "Mundo",
				"Hello World":          "Hola Mundo",
				"Welcome to our site.": "Bienvenido a nuestro sitio.",
			},
		},
		failures: make(map[string]error),
	}
}

// Add registers a translation of text into lang.
func (m *Mock) Add(lang, text, translation string) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.translations[lang] == nil {
		m.translations[lang] = make(map[string]string)
	}
	m.translations[lang][text] = translation
	return m
}

// FailWith makes every call for text return err until cleared with a nil err.
func (m *Mock) FailWith(text string, err error) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, text)
	} else {
		m.failures[text] = err
	}
	return m
}

// SetDelay makes every call take d, or until the context is done.
func (m *Mock) SetDelay(d time.Duration) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// Translate returns mock translations.
func (m *Mock) Translate(ctx context.Context, text, targetLang string) (string, error) {
	m.mu.Lock()
	m.calls++
	m.last = text
	m.inFlight++
	if m.inFlight > m.maxInFlight {
		m.maxInFlight = m.inFlight
	}
	delay := m.delay
	failure := m.failures[text]
	translation, known := m.translations[gotlive.BaseLanguage(targetLang)][text]
	if !known {
		translation, known = m.translations[targetLang][text]
	}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if failure != nil {
		return "", failure
	}
	if known {
		return translation, nil
	}
	return fmt.Sprintf("[%s] %s", targetLang, text), nil
}

// CallCount returns the number of Translate calls so far.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MaxInFlight returns the highest number of concurrent calls observed.
func (m *Mock) MaxInFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxInFlight
}

// LastText returns the text of the most recent call.
func (m *Mock) LastText() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Reset clears the call statistics.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = 0
	m.maxInFlight = 0
	m.last = ""
}

// Verify Mock implements Translator
var _ Translator = (*Mock)(nil)
