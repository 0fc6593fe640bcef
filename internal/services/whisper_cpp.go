package services

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"tubesum/internal/media"
	"tubesum/internal/models"
	"tubesum/pkg/executor"
)

// WhisperCppOptions configures a WhisperCppTranscriber.
type WhisperCppOptions struct {
	Binary    string
	ModelPath string
	Language  string
	Threads   int
	Limits    TranscriptionLimits
}

// WhisperCppTranscriber runs a local whisper.cpp binary over the audio file.
type WhisperCppTranscriber struct {
	exec executor.Executor
	opts WhisperCppOptions
}

// NewWhisperCppTranscriber creates a local transcriber.
func NewWhisperCppTranscriber(exec executor.Executor, opts WhisperCppOptions) *WhisperCppTranscriber {
	if opts.Binary == "" {
		opts.Binary = "whisper-cli"
	}
	if opts.Threads <= 0 {
		opts.Threads = 4
	}
	return &WhisperCppTranscriber{exec: exec, opts: opts}
}

func (w *WhisperCppTranscriber) Name() string { return "whisper_cpp" }

func (w *WhisperCppTranscriber) InputFormat() media.AudioFormat { return media.FormatSpeechWAV }

// Transcribe writes a .txt transcript next to the audio and returns its
// cleaned contents.
func (w *WhisperCppTranscriber) Transcribe(ctx context.Context, audio *media.Audio) (string, error) {
	if audio == nil || audio.Path == "" {
		return "", models.NewStageError(models.JobStatusTranscribing, "no audio to transcribe", nil)
	}
	if err := w.opts.Limits.check(audio); err != nil {
		return "", err
	}
	ctx, cancel := w.opts.Limits.context(ctx)
	defer cancel()

	// whisper.cpp appends .txt to the output prefix
	outputPrefix := strings.TrimSuffix(audio.Path, filepath.Ext(audio.Path))
	lang := w.opts.Language
	if lang == "" {
		lang = "auto"
	}
	args := []string{
		"-m", w.opts.ModelPath,
		"-f", audio.Path,
		"-otxt",
		"-np", // no progress output on stderr
		"-l", lang,
		"-t", strconv.Itoa(w.opts.Threads),
		"--output-file", outputPrefix,
	}

	log.WithFields(log.Fields{"job_id": JobIDFromContext(ctx), "threads": w.opts.Threads}).
		Infof("Starting whisper.cpp transcription: %s", audio.Path)

	if _, err := w.exec.Execute(ctx, w.opts.Binary, args...); err != nil {
		se := models.NewStageError(models.JobStatusTranscribing, "whisper.cpp failed", err)
		var cmdErr *executor.CommandError
		if errors.As(err, &cmdErr) && cmdErr.Stderr != "" {
			se.WithUpstream(cmdErr.Stderr)
		}
		return "", se
	}

	text, err := readTranscriptFile(outputPrefix+".txt", "whisper_cpp")
	if err != nil {
		return "", models.NewStageError(models.JobStatusTranscribing, "whisper.cpp wrote no transcript", err)
	}
	if text == "" {
		return "", models.NewStageError(models.JobStatusTranscribing, "transcript is empty", models.ErrEmptyTranscript)
	}
	return text, nil
}

var _ Transcriber = (*WhisperCppTranscriber)(nil)
