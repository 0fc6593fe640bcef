package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"

	"tubesum/internal/config"
	"tubesum/internal/costtracker"
	"tubesum/internal/media"
	"tubesum/internal/models"
	"tubesum/internal/util"
)

// Transcriber turns extracted audio into plain text. InputFormat tells the
// extractor which encoding to produce.
type Transcriber interface {
	Transcribe(ctx context.Context, audio *media.Audio) (string, error)
	InputFormat() media.AudioFormat
	Name() string
}

// TranscriptionLimits bound what is sent to a transcriber. Zero disables a limit.
type TranscriptionLimits struct {
	MaxBytes    int64
	MaxDuration time.Duration
	Timeout     time.Duration // one Transcribe call
}

func (l TranscriptionLimits) context(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.Timeout > 0 {
		return context.WithTimeout(ctx, l.Timeout)
	}
	return ctx, func() {}
}

// check fails fast when audio exceeds the configured limits.
func (l TranscriptionLimits) check(audio *media.Audio) error {
	if l.MaxBytes > 0 && audio.SizeBytes > l.MaxBytes {
		return models.NewStageError(models.JobStatusTranscribing,
			fmt.Sprintf("audio is %d bytes, above the %d byte limit", audio.SizeBytes, l.MaxBytes), nil)
	}
	if l.MaxDuration > 0 && audio.Duration > l.MaxDuration {
		return models.NewStageError(models.JobStatusTranscribing,
			fmt.Sprintf("audio is %s long, above the %s limit", audio.Duration.Round(time.Second), l.MaxDuration), nil)
	}
	return nil
}

// AudioTranscriptionCreator is the subset of *openai.Client the transcriber uses.
type AudioTranscriptionCreator interface {
	CreateTranscription(ctx context.Context, request openai.AudioRequest) (openai.AudioResponse, error)
}

// OpenAITranscriber transcribes audio with the hosted Whisper API.
type OpenAITranscriber struct {
	client      AudioTranscriptionCreator
	model       string
	language    string
	limits      TranscriptionLimits
	costTracker costtracker.CostTracker
	pricing     map[string]config.PricingInfo
}

// OpenAITranscriberOptions configures an OpenAITranscriber.
type OpenAITranscriberOptions struct {
	Model       string
	Language    string
	Limits      TranscriptionLimits
	CostTracker costtracker.CostTracker
	Pricing     map[string]config.PricingInfo
}

// NewOpenAITranscriber creates a transcriber backed by the OpenAI audio API.
func NewOpenAITranscriber(apiKey string, opts OpenAITranscriberOptions) (*OpenAITranscriber, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key is required for transcription")
	}
	return NewOpenAITranscriberWithClient(openai.NewClient(apiKey), opts), nil
}

// NewOpenAITranscriberWithClient builds a transcriber around an existing client.
func NewOpenAITranscriberWithClient(client AudioTranscriptionCreator, opts OpenAITranscriberOptions) *OpenAITranscriber {
	model := opts.Model
	if model == "" {
		model = openai.Whisper1
	}
	return &OpenAITranscriber{
		client:      client,
		model:       model,
		language:    opts.Language,
		limits:      opts.Limits,
		costTracker: opts.CostTracker,
		pricing:     opts.Pricing,
	}
}

func (t *OpenAITranscriber) Name() string { return config.ProviderOpenAI }

func (t *OpenAITranscriber) InputFormat() media.AudioFormat { return media.FormatSpeechMP3 }

// Transcribe uploads the audio file and returns the cleaned transcript.
func (t *OpenAITranscriber) Transcribe(ctx context.Context, audio *media.Audio) (string, error) {
	if audio == nil || audio.Path == "" {
		return "", models.NewStageError(models.JobStatusTranscribing, "no audio to transcribe", nil)
	}
	if err := t.limits.check(audio); err != nil {
		return "", err
	}
	ctx, cancel := t.limits.context(ctx)
	defer cancel()

	log.WithFields(log.Fields{"job_id": JobIDFromContext(ctx), "model": t.model, "bytes": audio.SizeBytes}).
		Info("Submitting audio for transcription")

	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		FilePath: audio.Path,
		Language: t.language,
	})
	if err != nil {
		err = wrapOpenAIError(err)
		se := models.NewStageError(models.JobStatusTranscribing, "speech-to-text request failed", err)
		if up := upstreamDetail(err); up != "" {
			se.WithUpstream(up)
		}
		return "", se
	}

	text := util.CleanTranscript([]byte(resp.Text), "openai")
	if text == "" {
		return "", models.NewStageError(models.JobStatusTranscribing, "transcript is empty", models.ErrEmptyTranscript)
	}

	minutes := resp.Duration / 60
	if minutes <= 0 {
		minutes = audio.Duration.Minutes()
	}
	recordUsage(ctx, t.costTracker, t.pricing, usage{
		operation: "transcription",
		provider:  t.Name(),
		model:     t.model,
		minutes:   minutes,
	})
	return text, nil
}

var _ Transcriber = (*OpenAITranscriber)(nil)

// readTranscriptFile loads and cleans a transcript written by a local tool.
func readTranscriptFile(path, src string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return util.CleanTranscript(raw, src), nil
}
