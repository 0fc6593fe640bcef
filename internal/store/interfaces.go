package store

import (
	"context"

	"tubesum/internal/models"
)

// ProviderStatus represents the operational status of an AI provider.
type ProviderStatus int

const (
	ProviderStatusUnknown  ProviderStatus = iota // Default zero value
	ProviderStatusActive                         // Provider is operational
	ProviderStatusInactive                       // Provider is temporarily unavailable (e.g., network, rate limit)
	ProviderStatusDisabled                       // Provider is not configured or explicitly disabled
)

func (s ProviderStatus) String() string {
	switch s {
	case ProviderStatusActive:
		return "active"
	case ProviderStatusInactive:
		return "inactive"
	case ProviderStatusDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// JobClient hands a job to a background worker.
type JobClient interface {
	Dispatch(ctx context.Context, jobID string) error
	Close() error
}

// UpdateFunc mutates a job in place. Returning an error aborts the update.
type UpdateFunc func(job *models.Job) error

// JobStore is the registry of summarization jobs.
// Implementations must hand out copies: a returned *models.Job is never
// mutated by the store afterwards.
type JobStore interface {
	// Create stores a new job. ErrDuplicate if the id is taken.
	Create(ctx context.Context, job *models.Job) error
	// Get returns a snapshot of the job or ErrNotFound.
	Get(ctx context.Context, id string) (*models.Job, error)
	// Update applies fn atomically and returns the stored result.
	// A status change that models.CanTransition forbids yields ErrInvalidTransition.
	Update(ctx context.Context, id string, fn UpdateFunc) (*models.Job, error)
	// List returns jobs newest first.
	List(ctx context.Context, limit, offset int) ([]*models.Job, error)
	Ping(ctx context.Context) error
	Close() error
}
