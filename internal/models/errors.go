package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")

	ErrEmptyTranscript = errors.New("transcript is empty")
	ErrMalformedOutput = errors.New("model output could not be parsed")
)

// ErrorKind classifies a stage failure.
type ErrorKind string

const (
	KindFetch         ErrorKind = "FetchError"
	KindExtraction    ErrorKind = "ExtractionError"
	KindTranscription ErrorKind = "TranscriptionError"
	KindSummarization ErrorKind = "SummarizationError"
	KindPersistence   ErrorKind = "PersistenceError"
)

// PersistenceCausePrefix starts every PersistenceError cause so callers can tell
// that the summary itself was produced.
const PersistenceCausePrefix = "summary generated but not persisted"

// KindForStage maps a pipeline stage to the error kind it reports.
func KindForStage(stage JobStatus) ErrorKind {
	switch stage {
	case JobStatusFetching:
		return KindFetch
	case JobStatusExtracting:
		return KindExtraction
	case JobStatusTranscribing:
		return KindTranscription
	case JobStatusSummarizing:
		return KindSummarization
	case JobStatusFormatting:
		return KindPersistence
	default:
		return ""
	}
}

// StageError is the failure value produced by every pipeline stage adapter.
type StageError struct {
	Kind     ErrorKind
	Stage    JobStatus
	Cause    string // human-readable reason
	Upstream string // upstream status or payload, if any
	Err      error
}

// NewStageError builds a StageError whose kind is derived from the stage.
func NewStageError(stage JobStatus, cause string, err error) *StageError {
	return &StageError{
		Kind:  KindForStage(stage),
		Stage: stage,
		Cause: cause,
		Err:   err,
	}
}

// WithUpstream attaches upstream diagnostics and returns the same error.
func (e *StageError) WithUpstream(upstream string) *StageError {
	e.Upstream = upstream
	return e
}

func (e *StageError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s failed (%s): %s", stageName(e.Stage), e.Kind, e.Cause)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.Upstream != "" {
		fmt.Fprintf(&b, " [upstream: %s]", e.Upstream)
	}
	return b.String()
}

func (e *StageError) Unwrap() error { return e.Err }

// stageName turns "fetching" into "fetch" etc. for error messages.
func stageName(s JobStatus) string {
	switch s {
	case JobStatusFetching:
		return "fetch"
	case JobStatusExtracting:
		return "extract"
	case JobStatusTranscribing:
		return "transcribe"
	case JobStatusSummarizing:
		return "summarize"
	case JobStatusFormatting:
		return "format"
	default:
		return string(s)
	}
}

// AsStageError returns the StageError in err's chain, if any.
func AsStageError(err error) (*StageError, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
