package services

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"tubesum/internal/costtracker"
	"tubesum/internal/store"
)

type fakeGenerator struct {
	system  string
	prompts []string
	resps   []*genai.GenerateContentResponse
	errs    []error
}

func (f *fakeGenerator) GenerateContent(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	for _, p := range parts {
		if t, ok := p.(genai.Text); ok {
			f.prompts = append(f.prompts, string(t))
		}
	}
	i := len(f.prompts) - 1
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if err != nil {
		return nil, err
	}
	return f.resps[i], nil
}

func geminiResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []genai.Part{genai.Text(text)}}}},
		UsageMetadata: &genai.UsageMetadata{
			PromptTokenCount:     3,
			CandidatesTokenCount: 4,
			TotalTokenCount:      7,
		},
	}
}

func TestGeminiProvider_GenerateChatCompletion(t *testing.T) {
	gen := &fakeGenerator{resps: []*genai.GenerateContentResponse{geminiResponse("  the summary ")}}
	tracker := costtracker.New()
	p := NewGeminiProviderWithGenerator(func(system string) ContentGenerator {
		gen.system = system
		return gen
	}, GeminiProviderOptions{Model: "gemini-test", MaxAttempts: 1, CostTracker: tracker})

	got, err := p.GenerateChatCompletion(context.Background(), []ChatMessage{
		{Role: ChatMessageRoleSystem, Content: "be helpful"},
		{Role: ChatMessageRoleUser, Content: "summarize this"},
	})
	require.NoError(t, err)
	assert.Equal(t, "the summary", got)
	assert.Equal(t, "be helpful", gen.system)
	assert.Equal(t, []string{"summarize this"}, gen.prompts)
	assert.Equal(t, store.ProviderStatusActive, p.Status())
	assert.Equal(t, int64(4), tracker.Totals(context.Background()).OutputTokens)
}

func TestGeminiProvider_RetriesServerError(t *testing.T) {
	gen := &fakeGenerator{
		errs:  []error{&googleapi.Error{Code: http.StatusServiceUnavailable, Message: "overloaded"}},
		resps: []*genai.GenerateContentResponse{nil, geminiResponse("ok")},
	}
	p := NewGeminiProviderWithGenerator(func(string) ContentGenerator { return gen }, GeminiProviderOptions{Model: "gemini-test", MaxAttempts: 2})
	p.retry.BaseDelayMs = 1

	got, err := p.GenerateChatCompletion(context.Background(), []ChatMessage{{Role: ChatMessageRoleUser, Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Len(t, gen.prompts, 2)
}

func TestGeminiProvider_Failures(t *testing.T) {
	t.Run("client error", func(t *testing.T) {
		gen := &fakeGenerator{errs: []error{&googleapi.Error{Code: http.StatusForbidden, Message: "denied"}}}
		p := NewGeminiProviderWithGenerator(func(string) ContentGenerator { return gen }, GeminiProviderOptions{Model: "m", MaxAttempts: 3})

		_, err := p.GenerateChatCompletion(context.Background(), []ChatMessage{{Role: ChatMessageRoleUser, Content: "hi"}})
		var up *UpstreamError
		require.ErrorAs(t, err, &up)
		assert.Equal(t, http.StatusForbidden, up.StatusCode)
		assert.Len(t, gen.prompts, 1)
	})

	t.Run("no candidates", func(t *testing.T) {
		gen := &fakeGenerator{resps: []*genai.GenerateContentResponse{{}}}
		p := NewGeminiProviderWithGenerator(func(string) ContentGenerator { return gen }, GeminiProviderOptions{Model: "m"})

		_, err := p.GenerateChatCompletion(context.Background(), []ChatMessage{{Role: ChatMessageRoleUser, Content: "hi"}})
		assert.Error(t, err)
	})

	t.Run("no user content", func(t *testing.T) {
		p := NewGeminiProviderWithGenerator(func(string) ContentGenerator { return &fakeGenerator{} }, GeminiProviderOptions{Model: "m"})
		_, err := p.GenerateChatCompletion(context.Background(), []ChatMessage{{Role: ChatMessageRoleSystem, Content: "sys"}})
		assert.Error(t, err)
	})

	t.Run("disabled", func(t *testing.T) {
		p, err := NewGeminiProvider(context.Background(), "", GeminiProviderOptions{Model: "m"})
		require.NoError(t, err)
		assert.Equal(t, store.ProviderStatusDisabled, p.Status())
		_, err = p.GenerateChatCompletion(context.Background(), []ChatMessage{{Role: ChatMessageRoleUser, Content: "hi"}})
		assert.Error(t, err)
	})
}
