package presence

import (
	"context"

	"github.com/rs/zerolog"

	"statusboard/internal/models"
)

// SnapshotSink consumes full snapshots.
type SnapshotSink interface {
	ApplySnapshot(records []models.Worker) []Alert
}

// PollLoop fetches the full record set on every tick. It is the correctness
// backstop when push delivery is absent.
type PollLoop struct {
	store Store
	sink  SnapshotSink
	log   zerolog.Logger
	alive func() bool
}

func NewPollLoop(store Store, sink SnapshotSink, logger zerolog.Logger, alive func() bool) *PollLoop {
	if alive == nil {
		alive = func() bool { return true }
	}
	return &PollLoop{store: store, sink: sink, log: logger, alive: alive}
}

// Poll runs one refresh. Failures are absorbed and retried on the next tick.
func (p *PollLoop) Poll(ctx context.Context) error {
	if !p.alive() {
		return ErrClosed
	}
	records, err := p.store.ListWorkers(ctx)
	if err != nil {
		p.log.Debug().Err(err).Msg("poll failed")
		return err
	}
	if !p.alive() {
		return ErrClosed
	}
	p.sink.ApplySnapshot(records)
	return nil
}
