package models

/*
Job status constants and the transition rules between them.
A job walks the stages in order and ends in exactly one terminal state:

	queued → fetching → extracting → transcribing → summarizing → formatting → completed
	                                                                      ↘ failed (from any non-terminal state)
*/

// JobStatus is the lifecycle state of a summarization job.
type JobStatus string

const (
	JobStatusQueued       JobStatus = "queued"
	JobStatusFetching     JobStatus = "fetching"
	JobStatusExtracting   JobStatus = "extracting"
	JobStatusTranscribing JobStatus = "transcribing"
	JobStatusSummarizing  JobStatus = "summarizing"
	JobStatusFormatting   JobStatus = "formatting"
	JobStatusCompleted    JobStatus = "completed"
	JobStatusFailed       JobStatus = "failed"
)

// stageOrder lists the non-terminal states in pipeline order.
var stageOrder = []JobStatus{
	JobStatusQueued,
	JobStatusFetching,
	JobStatusExtracting,
	JobStatusTranscribing,
	JobStatusSummarizing,
	JobStatusFormatting,
}

// PipelineStages returns the working stages in execution order (queued excluded).
func PipelineStages() []JobStatus {
	out := make([]JobStatus, len(stageOrder)-1)
	copy(out, stageOrder[1:])
	return out
}

// IsTerminal reports whether no further transitions can leave s.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Valid reports whether s is a known status.
func (s JobStatus) Valid() bool {
	return s.IsTerminal() || s.rank() >= 0
}

func (s JobStatus) rank() int {
	for i, st := range stageOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// NextStage returns the state that follows s on the success path.
// The second value is false for terminal or unknown states.
func NextStage(s JobStatus) (JobStatus, bool) {
	if s == JobStatusFormatting {
		return JobStatusCompleted, true
	}
	r := s.rank()
	if r < 0 || r+1 >= len(stageOrder) {
		return "", false
	}
	return stageOrder[r+1], true
}

// CanTransition reports whether a job may move from one status to another.
// Staying in the same non-terminal status is allowed so that metadata-only
// updates (title, video id) pass through the same check.
func CanTransition(from, to JobStatus) bool {
	if !from.Valid() || !to.Valid() || from.IsTerminal() {
		return false
	}
	if from == to {
		return true
	}
	if to == JobStatusFailed {
		return true
	}
	next, ok := NextStage(from)
	return ok && next == to
}
