package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ZaguanLabs/gotlive"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	maxErrorBody       = 512
)

// LingvaProvider translates through a Lingva-compatible HTTP endpoint:
// GET {base}/api/v1/{source}/{target}/{text} returning {"translation": "..."}.
type LingvaProvider struct {
	baseURL    string
	sourceLang string
	client     *http.Client
}

// LingvaConfig holds configuration for the Lingva provider.
type LingvaConfig struct {
	BaseURL    string        // Instance URL, e.g. "https://lingva.example.org"
	SourceLang string        // Source language (default: "en"; "auto" to detect)
	Timeout    time.Duration // Per-request timeout (default: 10s)
	Client     *http.Client  // Custom client; overrides Timeout
}

type lingvaResponse struct {
	Translation string `json:"translation"`
	Error       string `json:"error,omitempty"`
}

// NewLingvaProvider creates a new Lingva provider.
func NewLingvaProvider(cfg LingvaConfig) (*LingvaProvider, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, fmt.Errorf("lingva: base URL is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("lingva: invalid base URL: %w", err)
	}

	source := cfg.SourceLang
	if source == "" {
		source = gotlive.DefaultSourceLanguage
	}

	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultHTTPTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	return &LingvaProvider{baseURL: base, sourceLang: source, client: client}, nil
}

// Translate translates a single UI string.
func (p *LingvaProvider) Translate(ctx context.Context, text, targetLang string) (string, error) {
	reqURL := fmt.Sprintf("%s/api/v1/%s/%s/%s",
		p.baseURL,
		url.PathEscape(p.sourceLang),
		url.PathEscape(targetLang),
		url.PathEscape(text))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", &ProviderError{Message: "building request", Cause: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", gotlive.UserAgent())

	resp, err := p.client.Do(req)
	if err != nil {
		return "", &ProviderError{
			Message:   "request failed",
			Cause:     err,
			Retryable: ctx.Err() == nil || ctx.Err() == context.DeadlineExceeded,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &ProviderError{
			Message:   fmt.Sprintf("lingva returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
			Retryable: retryableStatus(resp.StatusCode),
		}
	}

	var result lingvaResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", &ProviderError{Message: "decoding response", Cause: err, Retryable: true}
	}
	if result.Error != "" {
		return "", &ProviderError{Message: result.Error}
	}
	if strings.TrimSpace(result.Translation) == "" {
		return "", &ProviderError{Message: "empty translation", Retryable: true}
	}

	return result.Translation, nil
}

// Verify LingvaProvider implements Translator
var _ Translator = (*LingvaProvider)(nil)
