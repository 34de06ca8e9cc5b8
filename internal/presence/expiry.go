package presence

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/remeh/sizedwaitgroup"
	"github.com/rs/zerolog"

	"statusboard/internal/domain"
	"statusboard/internal/models"
)

type ExpiryOptions struct {
	Policy domain.CorrectionPolicy
	// Workers bounds concurrent corrections within one scan.
	Workers  int
	Now      func() time.Time
	Logger   zerolog.Logger
	Alive    func() bool
	Identity func() Identity
}

// ExpiryScheduler resets busy records whose timer has elapsed. The store
// applies the reset conditionally, so concurrent corrections by several
// clients are harmless.
type ExpiryScheduler struct {
	engine *Engine
	store  Store

	mu        sync.Mutex
	attempted map[string]time.Time // worker id -> busy_until already reset by the store

	policy   domain.CorrectionPolicy
	workers  int
	now      func() time.Time
	log      zerolog.Logger
	alive    func() bool
	identity func() Identity
}

func NewExpiryScheduler(engine *Engine, store Store, opts ExpiryOptions) *ExpiryScheduler {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Alive == nil {
		opts.Alive = func() bool { return true }
	}
	if opts.Identity == nil {
		opts.Identity = func() Identity { return Identity{} }
	}
	if opts.Policy == "" {
		opts.Policy = domain.CorrectAny
	}
	return &ExpiryScheduler{
		engine:    engine,
		store:     store,
		attempted: make(map[string]time.Time),
		policy:    opts.Policy,
		workers:   opts.Workers,
		now:       opts.Now,
		log:       opts.Logger,
		alive:     opts.Alive,
		identity:  opts.Identity,
	}
}

// Scan issues one correction per elapsed busy record the policy allows and
// returns how many were issued.
func (x *ExpiryScheduler) Scan(ctx context.Context) int {
	if !x.alive() {
		return 0
	}
	me := x.identity()
	if me.WorkerID == "" {
		return 0
	}
	now := x.now()
	records := x.engine.Records()

	var due []models.Worker
	x.mu.Lock()
	live := make(map[string]bool, len(records))
	for _, r := range records {
		if !r.Expired(now) {
			continue
		}
		live[r.ID] = true
		if !x.policy.Allows(me.WorkerID, r.ID, me.Admin) {
			continue
		}
		if prev, ok := x.attempted[r.ID]; ok && prev.Equal(*r.BusyUntil) {
			continue
		}
		x.attempted[r.ID] = *r.BusyUntil
		due = append(due, r)
	}
	for id := range x.attempted {
		if !live[id] {
			delete(x.attempted, id)
		}
	}
	x.mu.Unlock()

	if len(due) == 0 {
		return 0
	}
	var issued atomic.Int32
	swg := sizedwaitgroup.New(x.workers)
	for _, r := range due {
		swg.Add()
		go func(r models.Worker) {
			defer swg.Done()
			if x.correct(ctx, r) {
				issued.Add(1)
			}
		}(r)
	}
	swg.Wait()
	return int(issued.Load())
}

func (x *ExpiryScheduler) correct(ctx context.Context, r models.Worker) bool {
	w, changed, err := x.store.ExpireBusy(ctx, r.ID)
	if err != nil {
		x.mu.Lock()
		delete(x.attempted, r.ID)
		x.mu.Unlock()
		x.log.Debug().Err(err).Str("worker", r.ID).Msg("busy expiry failed; retrying next scan")
		return false
	}
	if w.ID != r.ID {
		x.log.Error().Bool("security", true).Str("requested", r.ID).Str("returned", w.ID).Msg("expiry returned a different record")
		return false
	}
	if !changed && w.Status == domain.StatusBusy {
		// The store's clock has not reached busy_until yet. Try again next scan.
		x.mu.Lock()
		delete(x.attempted, r.ID)
		x.mu.Unlock()
		x.log.Debug().Str("worker", r.ID).Msg("store has not expired busy status yet")
		return false
	}
	if !x.alive() {
		return true
	}
	x.engine.ApplyLocal(w)
	x.log.Info().Str("worker", r.ID).Bool("changed", changed).Msg("elapsed busy status reset")
	return true
}
