package domain

import (
	"context"

	"hotelsync/internal/models"
)

// MutationRepository is the write side of the pending mutation store used by callers
// that accept local edits.
type MutationRepository interface {
	Enqueue(ctx context.Context, m *models.PendingMutation) (int64, error)
	Counts(ctx context.Context) (map[models.Kind]int, error)
	CountStuck(ctx context.Context, kind models.Kind, maxAttempts int) (int, error)
	ListAll(ctx context.Context) ([]models.PendingMutation, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload any) error
}
