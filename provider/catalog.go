package provider

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

// CatalogProvider serves translations from static message files. Message IDs
// are the source UI strings themselves:
//
//	# es.toml
//	"Save changes" = "Guardar cambios"
//
// Texts without an entry fail with an error wrapping gotlive.ErrNoTranslation,
// so the provider is usually the first link of a Chain.
type CatalogProvider struct {
	bundle *i18n.Bundle
	source language.Tag
}

// NewCatalogProvider creates an empty catalog for UI strings written in
// sourceLang.
func NewCatalogProvider(sourceLang string) (*CatalogProvider, error) {
	source, err := language.Parse(sourceLang)
	if err != nil {
		return nil, fmt.Errorf("invalid source language: %w", err)
	}

	bundle := i18n.NewBundle(source)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	return &CatalogProvider{bundle: bundle, source: source}, nil
}

// LoadDir loads every *.toml file in dir. The language of each file is taken
// from its name ("es.toml", "messages.pt-BR.toml").
func (p *CatalogProvider) LoadDir(dir string) (int, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.toml"))
	if err != nil {
		return 0, err
	}
	for _, file := range files {
		if _, err := p.bundle.LoadMessageFile(file); err != nil {
			return 0, fmt.Errorf("loading %s: %w", filepath.Base(file), err)
		}
	}
	return len(files), nil
}

// Add registers translations for lang, keyed by source text.
func (p *CatalogProvider) Add(lang string, entries map[string]string) error {
	tag, err := language.Parse(lang)
	if err != nil {
		return fmt.Errorf("invalid language: %w", err)
	}

	msgs := make([]*i18n.Message, 0, len(entries))
	for id, other := range entries {
		msgs = append(msgs, &i18n.Message{ID: id, Other: other})
	}
	return p.bundle.AddMessages(tag, msgs...)
}

// Languages returns the languages with at least one message file.
func (p *CatalogProvider) Languages() []string {
	tags := p.bundle.LanguageTags()
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t != p.source {
			out = append(out, t.String())
		}
	}
	return out
}

// Translate implements Translator.
func (p *CatalogProvider) Translate(_ context.Context, text, targetLang string) (string, error) {
	target, err := language.Parse(targetLang)
	if err != nil {
		return "", &ProviderError{Message: "invalid target language", Cause: err}
	}

	localizer := i18n.NewLocalizer(p.bundle, target.String())
	out, tag, err := localizer.LocalizeWithTag(&i18n.LocalizeConfig{MessageID: text})
	if err != nil || strings.TrimSpace(out) == "" {
		return "", noTranslation(text)
	}

	// The bundle falls back to the source language; that is not an answer.
	if base, _ := tag.Base(); base != baseOf(target) {
		return "", noTranslation(text)
	}
	return out, nil
}

func baseOf(t language.Tag) language.Base {
	b, _ := t.Base()
	return b
}

// Verify CatalogProvider implements Translator
var _ Translator = (*CatalogProvider)(nil)
