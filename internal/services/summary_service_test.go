package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tubesum/internal/models"
	"tubesum/internal/store"
)

type mockCompletion struct {
	mock.Mock
}

func (m *mockCompletion) GenerateChatCompletion(ctx context.Context, messages []ChatMessage) (string, error) {
	args := m.Called(ctx, messages)
	return args.String(0), args.Error(1)
}

func (m *mockCompletion) Status() store.ProviderStatus { return store.ProviderStatusActive }
func (m *mockCompletion) Name() string                 { return "fake" }
func (m *mockCompletion) ModelName() string            { return "fake-1" }

func userPrompt(msgs []ChatMessage) string {
	for _, m := range msgs {
		if m.Role == ChatMessageRoleUser {
			return m.Content
		}
	}
	return ""
}

func TestSummaryService_SingleChunk(t *testing.T) {
	llm := new(mockCompletion)
	llm.On("GenerateChatCompletion", mock.Anything, mock.MatchedBy(func(msgs []ChatMessage) bool {
		return len(msgs) == 2 &&
			msgs[0].Role == ChatMessageRoleSystem && msgs[0].Content == DefaultSystemPrompt &&
			strings.HasSuffix(userPrompt(msgs), "Transcription:\nhello world")
	})).Return("## Key Highlights\n- point A\n## Main Points\n- detail 1\n## Detailed Summary\nA short demo.", nil).Once()

	svc := NewSummaryService(llm, SummaryOptions{})
	got, err := svc.Summarize(context.Background(), "hello world")
	require.NoError(t, err)
	assert.False(t, got.Degraded())
	assert.Equal(t, models.SummaryDocument{
		Highlights: []string{"point A"},
		MainPoints: []string{"detail 1"},
		Narrative:  "A short demo.",
	}, got.Document)
	llm.AssertExpectations(t)
}

func TestSummaryService_MultiChunkCoversAllParts(t *testing.T) {
	transcript := strings.Repeat("The first topic is introduced in detail. ", 10) +
		"\n\n" + strings.Repeat("The closing topic wraps everything up. ", 10)

	llm := new(mockCompletion)
	var notesCalls int
	llm.On("GenerateChatCompletion", mock.Anything, mock.MatchedBy(func(msgs []ChatMessage) bool {
		return strings.Contains(userPrompt(msgs), "Transcription part")
	})).Return("- some notes", nil).Run(func(mock.Arguments) { notesCalls++ })
	llm.On("GenerateChatCompletion", mock.Anything, mock.MatchedBy(func(msgs []ChatMessage) bool {
		p := userPrompt(msgs)
		return strings.Contains(p, "Notes:\nPart 1:") && !strings.Contains(p, "Transcription part")
	})).Return("Everything in one narrative.", nil).Once()

	svc := NewSummaryService(llm, SummaryOptions{MaxChunkChars: 200, SystemPrompt: "custom"})
	got, err := svc.Summarize(context.Background(), transcript)
	require.NoError(t, err)
	assert.Greater(t, notesCalls, 1)
	assert.True(t, got.Degraded())
	assert.Equal(t, "Everything in one narrative.", got.Document.Narrative)
	llm.AssertExpectations(t)
}

func TestSummaryService_Failures(t *testing.T) {
	t.Run("empty transcript", func(t *testing.T) {
		svc := NewSummaryService(new(mockCompletion), SummaryOptions{})
		_, err := svc.Summarize(context.Background(), "  \n ")
		se, ok := models.AsStageError(err)
		require.True(t, ok)
		assert.Equal(t, models.KindSummarization, se.Kind)
		assert.ErrorIs(t, err, models.ErrEmptyTranscript)
	})

	t.Run("upstream error", func(t *testing.T) {
		llm := new(mockCompletion)
		upstream := &UpstreamError{Provider: "openai", StatusCode: 401, Message: "bad key"}
		llm.On("GenerateChatCompletion", mock.Anything, mock.Anything).Return("", upstream)

		_, err := NewSummaryService(llm, SummaryOptions{}).Summarize(context.Background(), "hello")
		se, ok := models.AsStageError(err)
		require.True(t, ok)
		assert.Equal(t, models.KindSummarization, se.Kind)
		assert.Equal(t, "openai status 401: bad key", se.Upstream)
		assert.True(t, errors.Is(err, upstream))
	})

	t.Run("malformed output", func(t *testing.T) {
		llm := new(mockCompletion)
		llm.On("GenerateChatCompletion", mock.Anything, mock.Anything).Return("## Main Points\n", nil)

		_, err := NewSummaryService(llm, SummaryOptions{}).Summarize(context.Background(), "hello")
		se, ok := models.AsStageError(err)
		require.True(t, ok)
		assert.Equal(t, models.KindSummarization, se.Kind)
		assert.ErrorIs(t, err, models.ErrMalformedOutput)
	})
}
