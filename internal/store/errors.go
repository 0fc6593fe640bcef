package store

import (
	"errors"
	"fmt"

	"tubesum/internal/models"
)

var (
	ErrNotFound          = errors.New("store: resource not found")
	ErrDuplicate         = errors.New("store: duplicate resource")
	ErrInvalidTransition = errors.New("store: invalid status transition")
)

// CheckUpdate validates a mutated job against its previous version.
// Shared by every JobStore implementation.
func CheckUpdate(before, after *models.Job) error {
	if after.ID != before.ID || after.SourceURL != before.SourceURL || !after.CreatedAt.Equal(before.CreatedAt) {
		return fmt.Errorf("%w: immutable field changed on job %s", models.ErrValidation, before.ID)
	}
	if !models.CanTransition(before.Status, after.Status) {
		return fmt.Errorf("%w: %s -> %s on job %s", ErrInvalidTransition, before.Status, after.Status, before.ID)
	}
	if err := after.CheckTerminalFields(); err != nil {
		return fmt.Errorf("job %s in status %s: %w", after.ID, after.Status, err)
	}
	return nil
}
