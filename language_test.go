package gotlive

import (
	"context"
	"errors"
	"testing"

	"github.com/ZaguanLabs/gotlive/cache"
	"github.com/ZaguanLabs/gotlive/store"
)

type failingStore struct{}

func (failingStore) Load(context.Context, string) (string, bool, error) {
	return "", false, errors.New("disk unavailable")
}

func (failingStore) Save(context.Context, string, string) error {
	return errors.New("disk unavailable")
}

func newState(t *testing.T, prefs store.PreferenceStore) (*LanguageState, *cache.InMemoryCache) {
	t.Helper()
	c := cache.NewInMemoryCache(0)
	return NewLanguageState("en", c, prefs, "", nil), c
}

func TestLanguageState_Initial(t *testing.T) {
	s, _ := newState(t, store.NewMemoryStore())

	if s.CurrentLanguage() != "en" || s.Generation() != 0 {
		t.Errorf("Expected en at generation 0, got %s at %d", s.CurrentLanguage(), s.Generation())
	}
	if !s.IsSource("en-GB") {
		t.Error("Regional variant of the source language should count as source")
	}
}

func TestLanguageState_SetLanguage(t *testing.T) {
	prefs := store.NewMemoryStore()
	s, c := newState(t, prefs)
	c.Set("k", "v")

	if err := s.SetLanguage(context.Background(), "es_MX"); err != nil {
		t.Fatalf("SetLanguage failed: %v", err)
	}

	if s.CurrentLanguage() != "es-MX" {
		t.Errorf("Expected normalized es-MX, got %s", s.CurrentLanguage())
	}
	if s.Generation() != 1 {
		t.Errorf("Expected generation 1, got %d", s.Generation())
	}
	if c.Len() != 0 {
		t.Error("Language change should clear the cache")
	}

	saved, ok, _ := prefs.Load(context.Background(), DefaultPreferenceKey)
	if !ok || saved != "es-MX" {
		t.Errorf("Expected persisted es-MX, got %q (%v)", saved, ok)
	}
}

func TestLanguageState_SameLanguageIsNoop(t *testing.T) {
	s, c := newState(t, store.NewMemoryStore())
	_ = s.SetLanguage(context.Background(), "fr")
	c.Set("k", "v")

	calls := 0
	s.Subscribe(func(LanguageChange) { calls++ })

	if err := s.SetLanguage(context.Background(), "FR"); err != nil {
		t.Fatal(err)
	}
	if s.Generation() != 1 || calls != 0 || c.Len() != 1 {
		t.Errorf("Re-selecting the language must change nothing (gen %d, calls %d, cache %d)",
			s.Generation(), calls, c.Len())
	}
}

func TestLanguageState_InvalidCode(t *testing.T) {
	s, _ := newState(t, store.NewMemoryStore())

	err := s.SetLanguage(context.Background(), "not a language")
	var langErr *LanguageError
	if !errors.As(err, &langErr) {
		t.Fatalf("Expected LanguageError, got %v", err)
	}
	if s.CurrentLanguage() != "en" || s.Generation() != 0 {
		t.Error("Invalid code must not change state")
	}
}

func TestLanguageState_PersistFailureIsNotFatal(t *testing.T) {
	s, _ := newState(t, failingStore{})

	if err := s.SetLanguage(context.Background(), "de"); err != nil {
		t.Fatalf("Persistence failure should not fail SetLanguage: %v", err)
	}
	if s.CurrentLanguage() != "de" {
		t.Errorf("Language should still switch, got %s", s.CurrentLanguage())
	}
}

func TestLanguageState_SubscriberOrder(t *testing.T) {
	s, _ := newState(t, nil)

	var (
		order   []int
		changes []LanguageChange
	)
	s.Subscribe(func(LanguageChange) { order = append(order, 1) })
	cancel := s.Subscribe(func(LanguageChange) { order = append(order, 2) })
	s.Subscribe(func(ch LanguageChange) {
		order = append(order, 3)
		changes = append(changes, ch)
	})

	_ = s.SetLanguage(context.Background(), "ja")
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("Subscribers should run in registration order, got %v", order)
	}

	cancel()
	order = nil
	_ = s.SetLanguage(context.Background(), "ko")
	if len(order) != 2 || order[1] != 3 {
		t.Errorf("Cancelled subscriber should not run, got %v", order)
	}

	want := []LanguageChange{{Lang: "ja", Generation: 1}, {Lang: "ko", Generation: 2}}
	if len(changes) != len(want) {
		t.Fatalf("Expected %d changes, got %+v", len(want), changes)
	}
	for i, ch := range changes {
		if ch != want[i] {
			t.Errorf("change %d = %+v, want %+v", i, ch, want[i])
		}
	}
}

func TestLanguageState_Refresh(t *testing.T) {
	s, c := newState(t, nil)
	_ = s.SetLanguage(context.Background(), "it")
	c.Set("k", "v")

	var got LanguageChange
	s.Subscribe(func(ch LanguageChange) { got = ch })

	if err := s.Refresh(); err != nil {
		t.Fatal(err)
	}
	if !got.Refresh || got.Lang != "it" || got.Generation != 2 {
		t.Errorf("Unexpected refresh notification %+v", got)
	}
	if c.Len() != 0 {
		t.Error("Refresh should clear the cache")
	}
}

func TestLanguageState_Restore(t *testing.T) {
	prefs := store.NewMemoryStore()
	_ = prefs.Save(context.Background(), "lang", "pt-BR")

	s := NewLanguageState("en", cache.NewInMemoryCache(0), prefs, "lang", nil)
	if err := s.Restore(context.Background()); err != nil {
		t.Fatal(err)
	}
	if s.CurrentLanguage() != "pt-BR" || s.Generation() != 1 {
		t.Errorf("Expected restored pt-BR at gen 1, got %s at %d", s.CurrentLanguage(), s.Generation())
	}
}

func TestLanguageState_RestoreInvalidIgnored(t *testing.T) {
	prefs := store.NewMemoryStore()
	_ = prefs.Save(context.Background(), DefaultPreferenceKey, "???")

	s, _ := newState(t, prefs)
	if err := s.Restore(context.Background()); err != nil {
		t.Fatalf("Invalid saved value should be ignored, got %v", err)
	}
	if s.CurrentLanguage() != "en" {
		t.Errorf("Expected source language, got %s", s.CurrentLanguage())
	}
}

func TestLanguageState_RestoreLoadError(t *testing.T) {
	s, _ := newState(t, failingStore{})

	err := s.Restore(context.Background())
	var storeErr *StoreError
	if !errors.As(err, &storeErr) || storeErr.Op != "load" {
		t.Errorf("Expected load StoreError, got %v", err)
	}
}

func TestLanguageState_IfCurrent(t *testing.T) {
	s, _ := newState(t, nil)
	gen := s.Generation()

	ran := false
	if !s.IfCurrent(gen, func() { ran = true }) || !ran {
		t.Error("fn should run for the current generation")
	}

	_ = s.SetLanguage(context.Background(), "nl")
	ran = false
	if s.IfCurrent(gen, func() { ran = true }) || ran {
		t.Error("fn must not run for an old generation")
	}
}
