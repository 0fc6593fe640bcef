package services

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"tubesum/internal/config"
	"tubesum/internal/costtracker"
)

// usage describes one billable provider call.
type usage struct {
	operation    string // "summarization" or "transcription"
	provider     string
	model        string
	inputTokens  int
	outputTokens int
	minutes      float64 // audio length for per-minute models
}

// recordUsage prices u from pricing and hands it to tracker. Missing pricing
// records the tokens at zero cost. Failures are logged, never returned.
func recordUsage(ctx context.Context, tracker costtracker.CostTracker, pricing map[string]config.PricingInfo, u usage) {
	if tracker == nil {
		return
	}
	var cost float64
	if priceInfo, ok := pricing[u.model]; ok {
		cost = float64(u.inputTokens)*priceInfo.InputPerToken +
			float64(u.outputTokens)*priceInfo.OutputPerToken +
			u.minutes*priceInfo.PerMinute
	} else {
		log.Warnf("Pricing info not found for model '%s'. Recording %s usage without cost.", u.model, u.operation)
	}

	event := costtracker.CostEvent{
		Operation:    u.operation,
		Provider:     u.provider,
		Model:        u.model,
		InputTokens:  u.inputTokens,
		OutputTokens: u.outputTokens,
		AmountUSD:    cost,
		JobID:        JobIDFromContext(ctx),
		Timestamp:    time.Now(),
	}
	if err := tracker.RecordCost(ctx, event); err != nil {
		log.Errorf("Failed to record AI usage log for %s: %v", u.operation, err)
	}
}
