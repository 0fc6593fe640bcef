package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"tubesum/internal/chunking"
	"tubesum/internal/models"
)

// SummaryOptions configures a SummaryService.
type SummaryOptions struct {
	SystemPrompt  string // empty uses DefaultSystemPrompt
	MaxChunkChars int
	Timeout       time.Duration // bounds one Summarize call, 0 for none
}

// SummaryService turns a transcript into a SummaryResult with a CompletionService.
type SummaryService struct {
	llm           CompletionService
	systemPrompt  string
	maxChunkChars int
	timeout       time.Duration
}

// NewSummaryService creates a summarizer around llm.
func NewSummaryService(llm CompletionService, opts SummaryOptions) *SummaryService {
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = DefaultSystemPrompt
	}
	if opts.MaxChunkChars <= 0 {
		opts.MaxChunkChars = chunking.DefaultMaxChars
	}
	return &SummaryService{
		llm:           llm,
		systemPrompt:  opts.SystemPrompt,
		maxChunkChars: opts.MaxChunkChars,
		timeout:       opts.Timeout,
	}
}

// Model returns "<provider>/<model>" for logging.
func (s *SummaryService) Model() string {
	return s.llm.Name() + "/" + s.llm.ModelName()
}

// Summarize requests the sectioned summary. Transcripts longer than one
// chunk are first condensed chunk by chunk so the final summary covers all
// of them. Every failure is a SummarizationError.
func (s *SummaryService) Summarize(ctx context.Context, transcript string) (models.SummaryResult, error) {
	if strings.TrimSpace(transcript) == "" {
		return models.SummaryResult{}, models.NewStageError(models.JobStatusSummarizing, "transcript is empty", models.ErrEmptyTranscript)
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	entry := log.WithFields(log.Fields{"job_id": JobIDFromContext(ctx), "model": s.Model()})
	chunks := chunking.Split(transcript, s.maxChunkChars, chunking.DefaultOverlap)

	var prompt string
	if len(chunks) <= 1 {
		prompt = summaryPrompt(strings.TrimSpace(transcript))
	} else {
		entry.Infof("Transcript split into %d chunks for summarization", len(chunks))
		notes := make([]string, 0, len(chunks))
		for _, c := range chunks {
			out, err := s.complete(ctx, chunkNotesPrompt(c.Index+1, len(chunks), c.Text))
			if err != nil {
				return models.SummaryResult{}, s.upstreamFailure(fmt.Sprintf("notes for chunk %d/%d failed", c.Index+1, len(chunks)), err)
			}
			notes = append(notes, fmt.Sprintf("Part %d:\n%s", c.Index+1, strings.TrimSpace(out)))
		}
		prompt = summaryFromNotesPrompt(strings.Join(notes, "\n\n"))
	}

	out, err := s.complete(ctx, prompt)
	if err != nil {
		return models.SummaryResult{}, s.upstreamFailure("summary request failed", err)
	}

	result, err := ParseSummary(out)
	if err != nil {
		return models.SummaryResult{}, models.NewStageError(models.JobStatusSummarizing, "model output could not be parsed into summary sections", err)
	}
	if result.Degraded() {
		entry.Warn("Model output had no section headings; using narrative-only summary")
	}
	return result, nil
}

func (s *SummaryService) complete(ctx context.Context, prompt string) (string, error) {
	return s.llm.GenerateChatCompletion(ctx, Conversation(s.systemPrompt, prompt))
}

func (s *SummaryService) upstreamFailure(cause string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		cause += " (timed out)"
	}
	se := models.NewStageError(models.JobStatusSummarizing, cause, err)
	if up := upstreamDetail(err); up != "" {
		se.WithUpstream(up)
	}
	return se
}
