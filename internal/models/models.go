package models

import (
	"time"
)

// Job is one tracked summarization request.
type Job struct {
	ID          string     `json:"job_id" db:"id"`
	SourceURL   string     `json:"source_url" db:"source_url"`
	VideoID     string     `json:"video_id" db:"video_id"`
	Title       string     `json:"title" db:"title"`
	Status      JobStatus  `json:"status" db:"status"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	CompletedAt *time.Time `json:"completed_at" db:"completed_at"` // set iff terminal
	SummaryText string     `json:"summary_text" db:"summary_text"` // set iff completed
	Error       string     `json:"error" db:"error"`               // set iff failed
	ErrorKind   ErrorKind  `json:"error_kind,omitempty" db:"error_kind"`
	FailedStage JobStatus  `json:"failed_stage,omitempty" db:"failed_stage"`
	UpdatedAt   time.Time  `json:"-" db:"updated_at"`
}

// Clone returns a deep copy so callers never share the store's record.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	cp := *j
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}

// Complete marks the job finished with the rendered document.
func (j *Job) Complete(summary string, at time.Time) {
	j.Status = JobStatusCompleted
	j.SummaryText = summary
	j.Error = ""
	j.ErrorKind = ""
	j.FailedStage = ""
	j.CompletedAt = &at
}

// Fail marks the job failed. The error text falls back to the kind so a failed
// job never carries an empty error.
func (j *Job) Fail(stage JobStatus, kind ErrorKind, msg string, at time.Time) {
	if msg == "" {
		msg = string(kind)
	}
	if msg == "" {
		msg = "job failed"
	}
	j.Status = JobStatusFailed
	j.SummaryText = ""
	j.Error = msg
	j.ErrorKind = kind
	j.FailedStage = stage
	j.CompletedAt = &at
}

// CheckTerminalFields verifies the field invariants that hold for every job:
// completed_at is set iff terminal and exactly one of summary/error is set once terminal.
func (j *Job) CheckTerminalFields() error {
	terminal := j.Status.IsTerminal()
	if terminal != (j.CompletedAt != nil) {
		return ErrValidation
	}
	switch j.Status {
	case JobStatusCompleted:
		if j.SummaryText == "" || j.Error != "" {
			return ErrValidation
		}
	case JobStatusFailed:
		if j.Error == "" || j.SummaryText != "" {
			return ErrValidation
		}
	default:
		if j.SummaryText != "" || j.Error != "" {
			return ErrValidation
		}
	}
	return nil
}

// SummaryDocument is the structured summary prior to rendering.
type SummaryDocument struct {
	Highlights []string `json:"highlights"`
	MainPoints []string `json:"main_points"`
	Narrative  string   `json:"narrative"`
}

// SummaryStructure tags how much structure the summarizer recovered.
type SummaryStructure string

const (
	StructureFull          SummaryStructure = "structured"
	StructureNarrativeOnly SummaryStructure = "narrative_only"
)

// SummaryResult is the tagged output of the summarizer.
type SummaryResult struct {
	Structure SummaryStructure
	Document  SummaryDocument
}

// Degraded reports whether section markers were missing from the model output.
func (r SummaryResult) Degraded() bool {
	return r.Structure == StructureNarrativeOnly
}
