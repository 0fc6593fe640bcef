package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/googleapi"
)

// UpstreamError is a failure reported by an external AI provider.
type UpstreamError struct {
	Provider   string
	StatusCode int // HTTP status, 0 if unknown
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s API error: %s", e.Provider, e.Message)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Retryable reports whether the failure is a rate limit or server-side error.
func (e *UpstreamError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Upstream renders the status for StageError diagnostics.
func (e *UpstreamError) Upstream() string {
	if e.StatusCode == 0 {
		return e.Provider + ": " + e.Message
	}
	return fmt.Sprintf("%s status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// wrapOpenAIError lifts go-openai's error types into an UpstreamError.
func wrapOpenAIError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &UpstreamError{Provider: "openai", StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := "request failed"
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return &UpstreamError{Provider: "openai", StatusCode: reqErr.HTTPStatusCode, Message: msg, Err: err}
	}
	return &UpstreamError{Provider: "openai", Message: err.Error(), Err: err}
}

// wrapGeminiError lifts googleapi errors into an UpstreamError.
func wrapGeminiError(err error) error {
	if err == nil {
		return nil
	}
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return &UpstreamError{Provider: "gemini", StatusCode: gErr.Code, Message: gErr.Message, Err: err}
	}
	return &UpstreamError{Provider: "gemini", Message: err.Error(), Err: err}
}

// upstreamDetail extracts provider diagnostics from err, if present.
func upstreamDetail(err error) string {
	var up *UpstreamError
	if errors.As(err, &up) {
		return up.Upstream()
	}
	return ""
}

// SimpleRetryStrategy provides basic exponential backoff.
type SimpleRetryStrategy struct {
	MaxAttempts int
	BaseDelayMs int64
}

// NextBackoff calculates the next backoff duration in milliseconds.
func (s *SimpleRetryStrategy) NextBackoff(attempt int) int64 {
	if s.MaxAttempts <= 0 { // If MaxAttempts is 0 or negative, don't retry
		return -1
	}
	if attempt >= s.MaxAttempts-1 {
		return -1 // Stop retrying
	}
	// Simple exponential backoff: BaseDelay * 2^attempt, capped at 30 seconds
	backoff := s.BaseDelayMs * (1 << attempt)
	maxDelay := int64(30000)
	if backoff > maxDelay {
		backoff = maxDelay
	}
	return backoff
}

// withRetry runs call until it succeeds, fails with a non-retryable error or
// the strategy gives up. Only UpstreamErrors that are Retryable are retried.
func withRetry(ctx context.Context, strategy *SimpleRetryStrategy, op string, call func() error) error {
	for attempt := 0; ; attempt++ {
		err := call()
		if err == nil {
			return nil
		}
		var up *UpstreamError
		if strategy == nil || !errors.As(err, &up) || !up.Retryable() {
			return err
		}
		delay := strategy.NextBackoff(attempt)
		if delay < 0 {
			return err
		}
		log.Warnf("%s failed (attempt %d), retrying in %dms: %v", op, attempt+1, delay, err)
		select {
		case <-ctx.Done():
			return errors.Join(ctx.Err(), err)
		case <-time.After(time.Duration(delay) * time.Millisecond):
		}
	}
}
