package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/ZaguanLabs/gotlive"
	"github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements Translator using OpenAI's chat API. One UI
// string is translated per call.
type OpenAIProvider struct {
	client        *openai.Client
	model         string
	temperature   float32
	sourceLang    string
	context       string
	glossary      map[string]string
	excludedTerms []string
}

// OpenAIConfig holds configuration for the OpenAI provider.
type OpenAIConfig struct {
	APIKey        string            // OpenAI API key
	Model         string            // Model to use (default: "gpt-4o-mini")
	Temperature   float32           // Temperature for generation (default: 0.3)
	BaseURL       string            // Custom base URL (optional)
	SourceLang    string            // Language of the UI strings (default: "en")
	Context       string            // What the application is, e.g. "online banking"
	Glossary      map[string]string // Preferred translations of recurring phrases
	ExcludedTerms []string          // Brand names and terms kept verbatim
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.3
	}

	source := cfg.SourceLang
	if source == "" {
		source = gotlive.DefaultSourceLanguage
	}

	return &OpenAIProvider{
		client:        openai.NewClientWithConfig(config),
		model:         model,
		temperature:   temperature,
		sourceLang:    source,
		context:       cfg.Context,
		glossary:      cfg.Glossary,
		excludedTerms: cfg.ExcludedTerms,
	}
}

// Translate translates a single UI string.
func (p *OpenAIProvider) Translate(ctx context.Context, text, targetLang string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: p.buildSystemPrompt(targetLang)},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: p.temperature,
	})
	if err != nil {
		return "", &ProviderError{
			Message:   "OpenAI API call failed",
			Cause:     err,
			Retryable: isRetryableError(err),
		}
	}

	if len(resp.Choices) == 0 {
		return "", &ProviderError{
			Message:   "no response from OpenAI",
			Retryable: true,
		}
	}

	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", &ProviderError{
			Message:   "empty translation from OpenAI",
			Retryable: true,
		}
	}
	return out, nil
}

func (p *OpenAIProvider) buildSystemPrompt(targetLang string) string {
	targetName := gotlive.LanguageName(targetLang)
	sourceName := gotlive.LanguageName(p.sourceLang)

	contextText := "The text is a label, button, message or heading of an application user interface."
	if p.context != "" {
		contextText = fmt.Sprintf("The text belongs to the user interface of: %s. Adapt the tone to be appropriate for this context.", p.context)
	}

	prompt := fmt.Sprintf(`# Role
You are an expert native translator localizing user interfaces from %s to %s.

# Context
%s

# Task
Translate the user's message into idiomatic %s.

# Style Guide
- **Brevity**: UI text must fit where the original fits. Prefer the shortest natural phrasing.
- **Natural Flow**: Avoid literal translations. Use the wording a native app would use.
- **Interpolation**: Do NOT translate variables or placeholders (e.g., {{name}}, {count}, %%s, $1).
- **HTML/Code Safety**: Do NOT translate HTML tags, URLs, email addresses, or content inside backticks.
- **Formatting**: Keep punctuation and capitalisation conventions of the target language.`,
		sourceName, targetName, contextText, targetName)

	if len(p.glossary) > 0 {
		keys := make([]string, 0, len(p.glossary))
		for k := range p.glossary {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		prompt += "\n\n# Glossary\nWhen you encounter these phrases, prefer these translations:"
		for _, k := range keys {
			prompt += fmt.Sprintf("\n- %q → %s", k, p.glossary[k])
		}
	}

	if len(p.excludedTerms) > 0 {
		prompt += "\n\n# Exclusions\nKeep the following terms exactly as they appear:\n- " +
			strings.Join(p.excludedTerms, "\n- ")
	}

	prompt += `

# Format
Reply with the translated text only. No quotes, no explanations, no Markdown.`

	return prompt
}

func isRetryableError(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return retryableStatus(reqErr.HTTPStatusCode)
	}

	// Check for common retryable conditions
	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"rate limit",
		"timeout",
		"connection refused",
		"connection reset",
		"temporary",
		"503",
		"502",
		"429",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

// retryableStatus reports whether an HTTP status is worth retrying: rate
// limiting, request timeouts and server errors.
func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusRequestTimeout ||
		code >= http.StatusInternalServerError
}

// Verify OpenAIProvider implements Translator
var _ Translator = (*OpenAIProvider)(nil)
