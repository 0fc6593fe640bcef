package services

import (
	"context"

	"tubesum/internal/store"
)

// ChatMessageRole is who a prompt message speaks for.
type ChatMessageRole string

const (
	ChatMessageRoleSystem    ChatMessageRole = "system"
	ChatMessageRoleUser      ChatMessageRole = "user"
	ChatMessageRoleAssistant ChatMessageRole = "assistant"
)

type ChatMessage struct {
	Role    ChatMessageRole
	Content string
}

// Conversation is the two-message exchange every summarization request uses:
// the standing instructions, then the transcript or notes to work on.
func Conversation(instructions, input string) []ChatMessage {
	return []ChatMessage{
		{Role: ChatMessageRoleSystem, Content: instructions},
		{Role: ChatMessageRoleUser, Content: input},
	}
}

// CompletionService is a language model the summarizer can prompt. Name and
// ModelName identify it in logs, usage records and the doctor command.
type CompletionService interface {
	GenerateChatCompletion(ctx context.Context, messages []ChatMessage) (string, error)
	Status() store.ProviderStatus
	Name() string
	ModelName() string
}

type jobIDKey struct{}

// ContextWithJobID tags ctx so providers can attribute usage to a job.
func ContextWithJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, jobIDKey{}, jobID)
}

// JobIDFromContext returns the job id set by ContextWithJobID, if any.
func JobIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(jobIDKey{}).(string)
	return id
}
