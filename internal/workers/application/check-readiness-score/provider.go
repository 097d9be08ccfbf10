// internal/workers/application/check-readiness-score/provider.go
package checkreadinessscore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	apphttp "intake-bot/internal/common/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

var (
	ErrEmptyCompletion = errors.New("EMPTY_COMPLETION")
	ErrBadCompletion   = errors.New("BAD_COMPLETION")
	ErrMissingAPIKey   = errors.New("MISSING_API_KEY")
)

// StatusError is a non-2xx reply from the scoring endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("AI review failed %d: %s", e.StatusCode, e.Body)
}

// isTransient reports whether a failed provider call may succeed when
// repeated: transport errors, 429 and 5xx. Other 4xx replies and
// malformed completions are final.
func isTransient(err error) bool {
	if errors.Is(err, ErrEmptyCompletion) || errors.Is(err, ErrBadCompletion) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return retryableStatus(statusErr.StatusCode)
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.StatusCode)
	}
	return true
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// Provider sends one system + user prompt pair to a model and returns its text.
type Provider interface {
	Name() string
	Complete(ctx context.Context, system, user string) (*Completion, error)
}

// NewProvider builds the provider named by config.Provider.
func NewProvider(config *Config, opts ...option.RequestOption) (Provider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("%w: scoring provider %s", ErrMissingAPIKey, config.Provider)
	}
	switch config.Provider {
	case ProviderAnthropic:
		return NewAnthropicProvider(config, opts...), nil
	case ProviderOpenAI, "":
		return NewOpenAIProvider(config, apphttp.NewClient(config.Timeout)), nil
	default:
		return nil, fmt.Errorf("unknown scoring provider %q", config.Provider)
	}
}

// OpenAIProvider talks to any OpenAI-compatible chat completions endpoint.
type OpenAIProvider struct {
	client  *apphttp.Client
	baseURL string
	apiKey  string
	model   string
}

func NewOpenAIProvider(config *Config, client *apphttp.Client) *OpenAIProvider {
	return &OpenAIProvider{
		client:  client,
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		apiKey:  config.APIKey,
		model:   config.Model,
	}
}

func (p *OpenAIProvider) Name() string { return ProviderOpenAI }

func (p *OpenAIProvider) Complete(ctx context.Context, system, user string) (*Completion, error) {
	payload := chatRequest{
		Model:          p.model,
		ResponseFormat: map[string]string{"type": "json_object"},
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0.2,
	}
	headers := map[string]string{"Authorization": "Bearer " + p.apiKey}

	resp, err := p.client.JSON(ctx, "POST", p.baseURL+"/chat/completions", headers, payload)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}

	var decoded chatResponse
	if err := json.Unmarshal(resp.Body, &decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadCompletion, err)
	}
	if len(decoded.Choices) == 0 {
		return nil, ErrEmptyCompletion
	}

	model := decoded.Model
	if model == "" {
		model = p.model
	}
	return &Completion{
		Text:      decoded.Choices[0].Message.Content,
		Model:     model,
		TokensIn:  decoded.Usage.PromptTokens,
		TokensOut: decoded.Usage.CompletionTokens,
	}, nil
}

// AnthropicProvider scores through the Messages API.
type AnthropicProvider struct {
	client anthropic.Client
	model  anthropic.Model
}

func NewAnthropicProvider(config *Config, opts ...option.RequestOption) *AnthropicProvider {
	base := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithRequestTimeout(config.Timeout),
		option.WithMaxRetries(0),
	}
	if config.BaseURL != "" {
		base = append(base, option.WithBaseURL(config.BaseURL))
	}
	return &AnthropicProvider{
		client: anthropic.NewClient(append(base, opts...)...),
		model:  anthropic.Model(config.Model),
	}
}

func (p *AnthropicProvider) Name() string { return ProviderAnthropic }

func (p *AnthropicProvider) Complete(ctx context.Context, system, user string) (*Completion, error) {
	message, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       p.model,
		MaxTokens:   1024,
		Temperature: anthropic.Float(0.2),
		System:      []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("AI review failed: %w", err)
	}
	if len(message.Content) == 0 || message.Content[0].Type != "text" {
		return nil, ErrEmptyCompletion
	}

	model := string(message.Model)
	if model == "" {
		model = string(p.model)
	}
	return &Completion{
		Text:      message.Content[0].Text,
		Model:     model,
		TokensIn:  int(message.Usage.InputTokens),
		TokensOut: int(message.Usage.OutputTokens),
	}, nil
}
