package costtracker

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"tubesum/internal/metrics"
)

// CostEvent represents a single AI usage event and its cost.
type CostEvent struct {
	Operation    string // "summarization", "transcription"
	Provider     string
	Model        string
	InputTokens  int
	OutputTokens int
	AmountUSD    float64
	JobID        string
	Timestamp    time.Time
}

// Totals aggregates recorded events.
type Totals struct {
	Events       int
	InputTokens  int64
	OutputTokens int64
	AmountUSD    float64
	ByOperation  map[string]float64
}

// CostTracker provides methods to record and report costs.
type CostTracker interface {
	RecordCost(ctx context.Context, event CostEvent) error
	TotalCost(ctx context.Context) (float64, error)
	Totals(ctx context.Context) Totals
}

// New returns a process-local tracker that also feeds the prometheus counters.
func New() CostTracker {
	return &memoryCostTracker{byOperation: make(map[string]float64)}
}

type memoryCostTracker struct {
	mu           sync.Mutex
	events       int
	inputTokens  int64
	outputTokens int64
	total        float64
	byOperation  map[string]float64
}

func (m *memoryCostTracker) RecordCost(ctx context.Context, event CostEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	m.mu.Lock()
	m.events++
	m.inputTokens += int64(event.InputTokens)
	m.outputTokens += int64(event.OutputTokens)
	m.total += event.AmountUSD
	m.byOperation[event.Operation] += event.AmountUSD
	m.mu.Unlock()

	metrics.AddTokens(event.Provider, event.Model, event.InputTokens, event.OutputTokens)
	metrics.AddCost(event.Provider, event.Operation, event.AmountUSD)

	log.WithFields(log.Fields{
		"job_id":        event.JobID,
		"provider":      event.Provider,
		"model":         event.Model,
		"operation":     event.Operation,
		"input_tokens":  event.InputTokens,
		"output_tokens": event.OutputTokens,
	}).Debugf("Recorded AI usage: cost=%.8f", event.AmountUSD)
	return nil
}

func (m *memoryCostTracker) TotalCost(ctx context.Context) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total, nil
}

func (m *memoryCostTracker) Totals(ctx context.Context) Totals {
	m.mu.Lock()
	defer m.mu.Unlock()
	byOp := make(map[string]float64, len(m.byOperation))
	for k, v := range m.byOperation {
		byOp[k] = v
	}
	return Totals{
		Events:       m.events,
		InputTokens:  m.inputTokens,
		OutputTokens: m.outputTokens,
		AmountUSD:    m.total,
		ByOperation:  byOp,
	}
}
