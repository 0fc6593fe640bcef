package tasks

import (
	"encoding/json"
	"fmt"
)

// Defines constants for task types used in Asynq.

const (
	// TypeSummarizeVideo runs the whole pipeline for one queued job.
	TypeSummarizeVideo = "video:summarize"

	// QueueSummaries is the asynq queue summarize tasks are placed on.
	QueueSummaries = "summaries"
)

// SummarizeVideoPayload is the JSON body of a TypeSummarizeVideo task.
type SummarizeVideoPayload struct {
	JobID string `json:"job_id"`
}

// EncodeSummarizeVideo marshals the payload for jobID.
func EncodeSummarizeVideo(jobID string) ([]byte, error) {
	if jobID == "" {
		return nil, fmt.Errorf("job id is required")
	}
	return json.Marshal(SummarizeVideoPayload{JobID: jobID})
}

// DecodeSummarizeVideo parses a task payload.
func DecodeSummarizeVideo(data []byte) (SummarizeVideoPayload, error) {
	var p SummarizeVideoPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("decode %s payload: %w", TypeSummarizeVideo, err)
	}
	if p.JobID == "" {
		return p, fmt.Errorf("decode %s payload: missing job_id", TypeSummarizeVideo)
	}
	return p, nil
}
