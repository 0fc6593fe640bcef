package costtracker

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCostTracker(t *testing.T) {
	ctx := context.Background()
	tr := New()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = tr.RecordCost(ctx, CostEvent{Operation: "summarization", Provider: "openai", Model: "m", InputTokens: 100, OutputTokens: 10, AmountUSD: 0.01})
		}()
	}
	wg.Wait()
	require.NoError(t, tr.RecordCost(ctx, CostEvent{Operation: "transcription", Provider: "openai", Model: "whisper-1", AmountUSD: 0.006}))

	total, err := tr.TotalCost(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 0.106, total, 1e-9)

	totals := tr.Totals(ctx)
	assert.Equal(t, 11, totals.Events)
	assert.Equal(t, int64(1000), totals.InputTokens)
	assert.Equal(t, int64(100), totals.OutputTokens)
	assert.InDelta(t, 0.1, totals.ByOperation["summarization"], 1e-9)
	assert.InDelta(t, 0.006, totals.ByOperation["transcription"], 1e-9)
}
