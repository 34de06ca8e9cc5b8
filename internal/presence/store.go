package presence

import (
	"context"

	"statusboard/internal/domain"
	"statusboard/internal/models"
)

// StatusUpdate is a status write for one worker.
type StatusUpdate struct {
	WorkerID        string
	Status          domain.Status
	DurationMinutes int
	Note            *string
}

// Store is the persistent store as seen from a board client.
type Store interface {
	ListWorkers(ctx context.Context) ([]models.Worker, error)
	SetStatus(ctx context.Context, u StatusUpdate) (models.Worker, error)
	// ExpireBusy resets an elapsed busy timer. changed is false when the
	// record was already corrected or is no longer expired.
	ExpireBusy(ctx context.Context, workerID string) (w models.Worker, changed bool, err error)
}

// Identity is the logged-in worker, if any.
type Identity struct {
	WorkerID string
	Admin    bool
}
