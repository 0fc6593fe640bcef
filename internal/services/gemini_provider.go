package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"tubesum/internal/config"
	"tubesum/internal/costtracker"
	"tubesum/internal/store" // ProviderStatus is defined here
)

// ContentGenerator is the subset of *genai.GenerativeModel the provider uses.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// GeminiProvider implements CompletionService using the Google Gemini API.
type GeminiProvider struct {
	client      *genai.Client
	model       string
	temperature float32
	retry       *SimpleRetryStrategy
	costTracker costtracker.CostTracker
	pricing     map[string]config.PricingInfo
	// newModel returns a generator configured with the given system instruction.
	newModel func(system string) ContentGenerator
}

// GeminiProviderOptions configures NewGeminiProvider.
type GeminiProviderOptions struct {
	Model       string
	Temperature float32
	MaxAttempts int
	CostTracker costtracker.CostTracker
	Pricing     map[string]config.PricingInfo
}

// NewGeminiProvider creates a new Gemini completion provider.
func NewGeminiProvider(ctx context.Context, apiKey string, opts GeminiProviderOptions) (*GeminiProvider, error) {
	if apiKey == "" {
		log.Warn("Gemini API key not provided. Gemini provider will be disabled.")
		return &GeminiProvider{model: opts.Model}, nil
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		// Don't return the provider if client creation fails
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	p := &GeminiProvider{client: client}
	p.configure(opts)
	p.newModel = func(system string) ContentGenerator {
		m := client.GenerativeModel(p.model)
		m.SetTemperature(p.temperature)
		if system != "" {
			m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
		}
		return m
	}
	log.Infof("Gemini provider initialized with model %s", opts.Model)
	return p, nil
}

// NewGeminiProviderWithGenerator builds a provider around a custom generator
// factory, bypassing client construction.
func NewGeminiProviderWithGenerator(newModel func(system string) ContentGenerator, opts GeminiProviderOptions) *GeminiProvider {
	p := &GeminiProvider{newModel: newModel}
	p.configure(opts)
	return p
}

func (p *GeminiProvider) configure(opts GeminiProviderOptions) {
	p.model = opts.Model
	p.temperature = opts.Temperature
	p.retry = &SimpleRetryStrategy{MaxAttempts: opts.MaxAttempts, BaseDelayMs: 1000}
	p.costTracker = opts.CostTracker
	p.pricing = opts.Pricing
}

// Name returns the provider name.
func (p *GeminiProvider) Name() string { return config.ProviderGemini }

// ModelName returns the specific model identifier.
func (p *GeminiProvider) ModelName() string { return p.model }

// GenerateChatCompletion folds system messages into the system instruction
// and sends the remaining turns as a single prompt.
func (p *GeminiProvider) GenerateChatCompletion(ctx context.Context, messages []ChatMessage) (string, error) {
	if p.newModel == nil {
		return "", errors.New("Gemini provider is not initialized (missing API key)")
	}

	var system, prompt []string
	for _, m := range messages {
		switch m.Role {
		case ChatMessageRoleSystem:
			system = append(system, m.Content)
		case ChatMessageRoleAssistant:
			prompt = append(prompt, "Assistant: "+m.Content)
		default:
			prompt = append(prompt, m.Content)
		}
	}
	if len(prompt) == 0 {
		return "", errors.New("gemini completion: no user content")
	}

	model := p.newModel(strings.Join(system, "\n\n"))
	var resp *genai.GenerateContentResponse
	err := withRetry(ctx, p.retry, "gemini generate content", func() error {
		var callErr error
		resp, callErr = model.GenerateContent(ctx, genai.Text(strings.Join(prompt, "\n\n")))
		return wrapGeminiError(callErr)
	})
	if err != nil {
		return "", fmt.Errorf("gemini completion: %w", err)
	}

	text := responseText(resp)
	if text == "" {
		return "", &UpstreamError{Provider: p.Name(), Message: "no candidates returned"}
	}

	if resp.UsageMetadata != nil && resp.UsageMetadata.TotalTokenCount > 0 {
		recordUsage(ctx, p.costTracker, p.pricing, usage{
			operation:    "summarization",
			provider:     p.Name(),
			model:        p.model,
			inputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			outputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		})
	}
	return text, nil
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return strings.TrimSpace(sb.String())
}

// Status returns the operational status of the provider.
func (p *GeminiProvider) Status() store.ProviderStatus {
	if p.newModel == nil {
		return store.ProviderStatusDisabled
	}
	return store.ProviderStatusActive
}

// Close cleans up the Gemini client resources.
func (p *GeminiProvider) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

// Ensure GeminiProvider implements CompletionService
var _ CompletionService = (*GeminiProvider)(nil)
