package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	translate "cloud.google.com/go/translate"
	"golang.org/x/text/language"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GoogleProvider implements Translator with the Cloud Translation API.
type GoogleProvider struct {
	source language.Tag
	opts   []option.ClientOption

	mu     sync.Mutex
	client *translate.Client
}

// GoogleConfig holds configuration for the Google provider. Without an API
// key or credentials file, application default credentials are used.
type GoogleConfig struct {
	APIKey          string
	CredentialsFile string
	SourceLang      string // default: "en"
	Endpoint        string // optional endpoint override
}

// NewGoogleProvider creates a new Google provider. The client is created on
// first use.
func NewGoogleProvider(cfg GoogleConfig) (*GoogleProvider, error) {
	sourceLang := cfg.SourceLang
	if sourceLang == "" {
		sourceLang = "en"
	}
	source, err := language.Parse(sourceLang)
	if err != nil {
		return nil, fmt.Errorf("invalid source language: %w", err)
	}

	var opts []option.ClientOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	return &GoogleProvider{source: source, opts: opts}, nil
}

func (p *GoogleProvider) getClient(ctx context.Context) (*translate.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return p.client, nil
	}
	client, err := translate.NewClient(ctx, p.opts...)
	if err != nil {
		return nil, err
	}
	p.client = client
	return client, nil
}

// Translate translates a single UI string.
func (p *GoogleProvider) Translate(ctx context.Context, text, targetLang string) (string, error) {
	target, err := language.Parse(targetLang)
	if err != nil {
		return "", &ProviderError{Message: "invalid target language", Cause: err}
	}

	client, err := p.getClient(ctx)
	if err != nil {
		return "", &ProviderError{Message: "failed to create client", Cause: err}
	}

	translations, err := client.Translate(ctx, []string{text}, target, &translate.Options{
		Source: p.source,
		Format: translate.Text,
	})
	if err != nil {
		return "", &ProviderError{
			Message:   "translation failed",
			Cause:     err,
			Retryable: isRetryableGoogleError(err),
		}
	}

	if len(translations) == 0 || translations[0].Text == "" {
		return "", &ProviderError{Message: "no translation returned", Retryable: true}
	}

	return translations[0].Text, nil
}

// Close releases the underlying client.
func (p *GoogleProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client == nil {
		return nil
	}
	err := p.client.Close()
	p.client = nil
	return err
}

func isRetryableGoogleError(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusTooManyRequests || gerr.Code >= http.StatusInternalServerError
	}
	return isRetryableError(err)
}

// Verify GoogleProvider implements Translator
var _ Translator = (*GoogleProvider)(nil)
