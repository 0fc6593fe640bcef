package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"

	"tubesum/internal/config"
	"tubesum/internal/costtracker"
	"tubesum/internal/store"
)

// ChatCompletionCreator is the subset of *openai.Client the provider uses.
type ChatCompletionCreator interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIProvider implements CompletionService using the OpenAI chat API.
type OpenAIProvider struct {
	client      ChatCompletionCreator
	model       string
	temperature float32
	retry       *SimpleRetryStrategy
	costTracker costtracker.CostTracker
	pricing     map[string]config.PricingInfo
}

// OpenAIProviderOptions configures NewOpenAIProvider.
type OpenAIProviderOptions struct {
	Model       string
	Temperature float32
	MaxAttempts int
	CostTracker costtracker.CostTracker
	Pricing     map[string]config.PricingInfo
}

// NewOpenAIProvider creates a chat completion provider. An empty apiKey
// yields a disabled provider whose calls fail.
func NewOpenAIProvider(apiKey string, opts OpenAIProviderOptions) *OpenAIProvider {
	if apiKey == "" {
		log.Warn("OpenAI API key not provided. OpenAI completion provider will be disabled.")
		return &OpenAIProvider{model: opts.Model}
	}
	p := NewOpenAIProviderWithClient(openai.NewClient(apiKey), opts)
	log.Infof("OpenAI completion provider initialized with model %s", opts.Model)
	return p
}

// NewOpenAIProviderWithClient builds a provider around an existing client.
func NewOpenAIProviderWithClient(client ChatCompletionCreator, opts OpenAIProviderOptions) *OpenAIProvider {
	return &OpenAIProvider{
		client:      client,
		model:       opts.Model,
		temperature: opts.Temperature,
		retry:       &SimpleRetryStrategy{MaxAttempts: opts.MaxAttempts, BaseDelayMs: 1000},
		costTracker: opts.CostTracker,
		pricing:     opts.Pricing,
	}
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string { return config.ProviderOpenAI }

// ModelName returns the specific model identifier.
func (p *OpenAIProvider) ModelName() string { return p.model }

// GenerateChatCompletion sends messages to the chat API, retrying rate limits
// and server errors, and returns the first choice's content.
func (p *OpenAIProvider) GenerateChatCompletion(ctx context.Context, messages []ChatMessage) (string, error) {
	if p.client == nil {
		return "", errors.New("OpenAI provider is not initialized (missing API key)")
	}

	req := openai.ChatCompletionRequest{
		Model:       p.model,
		Temperature: p.temperature,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}

	var resp openai.ChatCompletionResponse
	err := withRetry(ctx, p.retry, "openai chat completion", func() error {
		var callErr error
		resp, callErr = p.client.CreateChatCompletion(ctx, req)
		return wrapOpenAIError(callErr)
	})
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", &UpstreamError{Provider: p.Name(), Message: "no completion choices returned"}
	}

	// --- Cost Tracking Instrumentation ---
	if resp.Usage.TotalTokens > 0 {
		recordUsage(ctx, p.costTracker, p.pricing, usage{
			operation:    "summarization",
			provider:     p.Name(),
			model:        p.model,
			inputTokens:  resp.Usage.PromptTokens,
			outputTokens: resp.Usage.CompletionTokens,
		})
	}
	// --- End Cost Tracking ---

	return resp.Choices[0].Message.Content, nil
}

// Status returns the operational status of the provider.
func (p *OpenAIProvider) Status() store.ProviderStatus {
	if p.client == nil {
		return store.ProviderStatusDisabled
	}
	return store.ProviderStatusActive
}

var _ CompletionService = (*OpenAIProvider)(nil)
