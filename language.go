package gotlive

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ZaguanLabs/gotlive/cache"
	"github.com/ZaguanLabs/gotlive/store"
)

// DefaultPreferenceKey is the preference store key holding the selected language.
const DefaultPreferenceKey = "selectedLanguage"

// LanguageChange is delivered to subscribers after the language or the
// generation changes.
type LanguageChange struct {
	Lang       string
	Generation uint64
	Refresh    bool // generation bumped without a language change
}

// LanguageState owns the selected UI language and the generation counter.
//
// Every language change and every forced refresh clears the translation
// cache and increments the generation. Work started under an older
// generation must not publish its result; IfCurrent is the only way to write
// into the cache on behalf of such work.
type LanguageState struct {
	source  string
	cache   cache.TranslationCache
	store   store.PreferenceStore
	prefKey string
	logger  *slog.Logger

	mu   sync.RWMutex
	lang string
	gen  uint64

	subMu   sync.Mutex
	subs    map[int]func(LanguageChange)
	subIDs  []int
	nextSub int
}

// NewLanguageState returns a state whose current language is the source
// language. source must already be normalized.
func NewLanguageState(source string, c cache.TranslationCache, prefs store.PreferenceStore, prefKey string, logger *slog.Logger) *LanguageState {
	if prefKey == "" {
		prefKey = DefaultPreferenceKey
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &LanguageState{
		source:  source,
		cache:   c,
		store:   prefs,
		prefKey: prefKey,
		logger:  logger,
		lang:    source,
		subs:    make(map[int]func(LanguageChange)),
	}
}

// SourceLanguage returns the language UI strings are authored in.
func (s *LanguageState) SourceLanguage() string {
	return s.source
}

// IsSource reports whether lang needs no translation.
func (s *LanguageState) IsSource(lang string) bool {
	return SameLanguage(lang, s.source)
}

// CurrentLanguage returns the selected language.
func (s *LanguageState) CurrentLanguage() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lang
}

// Generation returns the current generation.
func (s *LanguageState) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// Snapshot returns the language and generation read together.
func (s *LanguageState) Snapshot() (lang string, gen uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lang, s.gen
}

// IfCurrent runs fn while holding the language lock, only if gen is still
// the current generation. It reports whether fn ran. fn must not call back
// into the LanguageState.
func (s *LanguageState) IfCurrent(gen uint64, fn func()) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if gen != s.gen {
		return false
	}
	fn()
	return true
}

// SetLanguage switches the UI language. Setting the current language again
// is a no-op. The new language is persisted; a persistence failure is logged
// and does not undo the switch.
func (s *LanguageState) SetLanguage(ctx context.Context, code string) error {
	lang, err := NormalizeLanguage(code)
	if err != nil {
		return err
	}

	change, ok, clearErr := s.apply(lang, false)
	if !ok {
		return nil
	}
	if clearErr != nil {
		// Keys carry the language, so entries left behind are never served
		// for the new one.
		s.logger.Warn("failed to clear translation cache", "error", clearErr)
	}

	if s.store != nil {
		if err := s.store.Save(ctx, s.prefKey, lang); err != nil {
			s.logger.Warn("failed to persist language",
				"lang", lang,
				"error", &StoreError{Op: "save", Key: s.prefKey, Cause: err})
		}
	}

	s.logger.Info("language changed", "lang", lang, "generation", change.Generation)
	s.publish(change)
	return nil
}

// Refresh drops every cached translation and invalidates in-flight work
// without changing the language. Subscribers are notified even when the
// cache could not be cleared; the error is returned afterwards.
func (s *LanguageState) Refresh() error {
	change, _, clearErr := s.apply("", true)
	s.logger.Info("translations refreshed", "lang", change.Lang, "generation", change.Generation)
	s.publish(change)
	return clearErr
}

// Restore loads the persisted language, if any, without writing it back.
// Subscribers are notified as for SetLanguage.
func (s *LanguageState) Restore(ctx context.Context) error {
	if s.store == nil {
		return nil
	}

	saved, ok, err := s.store.Load(ctx, s.prefKey)
	if err != nil {
		return &StoreError{Op: "load", Key: s.prefKey, Cause: err}
	}
	if !ok {
		return nil
	}

	lang, err := NormalizeLanguage(saved)
	if err != nil {
		s.logger.Warn("ignoring invalid persisted language", "value", saved, "error", err)
		return nil
	}

	if change, changed, _ := s.apply(lang, false); changed {
		s.logger.Debug("language restored", "lang", lang)
		s.publish(change)
	}
	return nil
}

// Subscribe registers fn for language changes. Subscribers run in
// registration order on the goroutine that made the change.
func (s *LanguageState) Subscribe(fn func(LanguageChange)) (cancel func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subIDs = append(s.subIDs, id)

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
		for i, v := range s.subIDs {
			if v == id {
				s.subIDs = append(s.subIDs[:i], s.subIDs[i+1:]...)
				break
			}
		}
	}
}

// apply updates the language (or only the generation when refresh is set)
// and clears the cache under the language lock.
func (s *LanguageState) apply(lang string, refresh bool) (LanguageChange, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !refresh && lang == s.lang {
		return LanguageChange{}, false, nil
	}
	if !refresh {
		s.lang = lang
	}
	s.gen++

	var clearErr error
	if s.cache != nil {
		if err := s.cache.Clear(); err != nil {
			clearErr = &CacheError{Message: "clear", Cause: err}
		}
	}

	return LanguageChange{Lang: s.lang, Generation: s.gen, Refresh: refresh}, true, clearErr
}

func (s *LanguageState) publish(change LanguageChange) {
	s.subMu.Lock()
	fns := make([]func(LanguageChange), 0, len(s.subIDs))
	for _, id := range s.subIDs {
		fns = append(fns, s.subs[id])
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(change)
	}
}
