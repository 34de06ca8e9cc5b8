package presence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"statusboard/config"
	"statusboard/internal/domain"
	"statusboard/internal/feed"
	"statusboard/internal/models"
)

const alertSweepInterval = time.Second

// BoardDeps are the collaborators a Board is built from. Dialer and KV are
// optional: without a dialer the board runs on polling alone, without KV
// nothing survives a restart.
type BoardDeps struct {
	Store  Store
	Dialer FeedDialer
	KV     KV
	Logger zerolog.Logger
	Now    func() time.Time

	OnAlert   func(Alert)
	OnWarning func(remaining time.Duration)
	OnExpired func()
}

// Board owns every piece of the synchronization core for one client and
// their shared lifecycle.
type Board struct {
	cfg   *config.Config
	store Store
	log   zerolog.Logger
	now   func() time.Time

	tasks   *Tasks
	queue   *AlertQueue
	engine  *Engine
	session *SessionClock
	poll    *PollLoop
	expiry  *ExpiryScheduler
	feed    *ChangeFeedClient
	health  *HealthMonitor

	mu        sync.Mutex
	view      domain.View
	started   bool
	onExpired func()
}

func NewBoard(cfg *config.Config, deps BoardDeps) (*Board, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("board: store is required")
	}
	policy, err := domain.ParseCorrectionPolicy(cfg.Presence.PeerCorrection)
	if err != nil {
		return nil, err
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	log := deps.Logger
	b := &Board{
		cfg:       cfg,
		store:     deps.Store,
		log:       log,
		now:       now,
		tasks:     NewTasks(log.With().Str("component", "tasks").Logger()),
		view:      domain.ViewPublic,
		onExpired: deps.OnExpired,
	}
	p := cfg.Presence
	b.queue = NewAlertQueue(AlertQueueOptions{
		Capacity:  p.AlertCapacity,
		TTL:       p.AlertTTL,
		MarkerTTL: p.MarkerTTL,
		Now:       now,
		Store:     deps.KV,
		Logger:    log.With().Str("component", "alerts").Logger(),
		OnAlert:   deps.OnAlert,
	})
	b.engine = NewEngine(b.queue, EngineOptions{
		SuppressionWindow: p.SuppressionWindow,
		Now:               now,
		Logger:            log.With().Str("component", "reconcile").Logger(),
		Alive:             b.tasks.Alive,
		Removed:           b.recordsRemoved,
	})
	b.session = NewSessionClock(SessionOptions{
		Length:     cfg.Session.Length,
		WarnBefore: cfg.Session.WarnBefore,
		Now:        now,
		Store:      deps.KV,
		Logger:     log.With().Str("component", "session").Logger(),
		OnWarning:  deps.OnWarning,
		OnExpired:  b.sessionExpired,
	})
	b.poll = NewPollLoop(deps.Store, b.engine, log.With().Str("component", "poll").Logger(), b.tasks.Alive)
	b.expiry = NewExpiryScheduler(b.engine, deps.Store, ExpiryOptions{
		Policy:   policy,
		Workers:  p.CorrectorWorkers,
		Now:      now,
		Logger:   log.With().Str("component", "expiry").Logger(),
		Alive:    b.tasks.Alive,
		Identity: b.identity,
	})
	if deps.Dialer != nil {
		feedLog := log.With().Str("component", "changefeed").Logger()
		b.feed = NewChangeFeedClient(deps.Dialer, b.engine, FeedOptions{
			Topic:      domain.TopicWorkers,
			RetryDelay: p.FeedRetryDelay,
			MaxRetries: p.FeedMaxRetries,
			Logger:     feedLog,
			Alive:      b.tasks.Alive,
		})
		b.health = NewHealthMonitor(b.feed, feedLog, b.tasks.Alive)
	}
	return b, nil
}

// Start loads persisted client state, takes the first snapshot, subscribes to
// the change feed and starts the periodic tasks. A failing first poll is not
// fatal; the poll task keeps trying.
func (b *Board) Start(ctx context.Context) error {
	if !b.tasks.Alive() {
		return ErrClosed
	}
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return nil
	}
	b.started = true
	b.mu.Unlock()

	if err := b.queue.LoadMarkers(); err != nil {
		b.log.Warn().Err(err).Msg("recently-updated markers not restored")
	}
	if err := b.poll.Poll(ctx); err != nil {
		b.log.Warn().Err(err).Msg("initial snapshot failed")
	}

	p := b.cfg.Presence
	b.tasks.Register(TaskPoll, p.PollInterval, func(ctx context.Context) { _ = b.poll.Poll(ctx) })
	b.tasks.Register(TaskExpiryScan, p.ExpiryInterval, func(ctx context.Context) { b.expiry.Scan(ctx) })
	b.tasks.Register(TaskAlertSweep, alertSweepInterval, func(context.Context) {
		b.queue.Sweep()
		b.engine.SweepSuppression()
	})
	b.tasks.Register(TaskMarkerSweep, p.MarkerSweep, func(context.Context) { b.queue.SweepMarkers() })
	b.tasks.Register(TaskSessionTick, b.cfg.Session.TickInterval, func(context.Context) { b.session.Tick() })
	b.tasks.Register(TaskSessionKeepalive, b.cfg.Session.KeepaliveTick, func(context.Context) { b.session.Keepalive() })
	if b.feed != nil {
		b.feed.Subscribe(ctx)
		b.tasks.Register(TaskHealthCheck, p.HealthInterval, func(ctx context.Context) { b.health.Check(ctx) })
	}
	b.tasks.StartAll(ctx)
	b.log.Info().Int("records", len(b.engine.Records())).Bool("push", b.feed != nil).Msg("board started")
	return nil
}

// Login starts a session for an already authenticated worker.
func (b *Board) Login(workerID string) {
	b.session.Login(workerID)
	b.setView(b.homeView(workerID))
}

// Resume restores a persisted session, if one is still valid.
func (b *Board) Resume() (string, bool) {
	id, ok := b.session.Resume()
	if ok {
		b.setView(b.homeView(id))
	}
	return id, ok
}

// Logout ends the session and tears the board down.
func (b *Board) Logout() {
	b.session.Logout()
	b.setView(domain.ViewPublic)
	b.Shutdown()
}

func (b *Board) sessionExpired() {
	b.setView(domain.ViewLogin)
	b.Shutdown()
	if b.onExpired != nil {
		b.onExpired()
	}
}

// recordsRemoved signs the worker out when their own record is deleted. The
// board keeps running as a public view.
func (b *Board) recordsRemoved(ids []string) {
	if b.session.Phase() != Active {
		return
	}
	me := b.session.UserID()
	for _, id := range ids {
		if id != me {
			continue
		}
		b.log.Warn().Str("worker", id).Msg("signed-in worker was removed; signing out")
		b.session.Logout()
		b.setView(domain.ViewPublic)
		return
	}
}

// Navigate switches the active view. Only signed-in views need a session.
func (b *Board) Navigate(v domain.View) error {
	if _, err := domain.ParseView(string(v)); err != nil {
		return err
	}
	if (v == domain.ViewEmployee || v == domain.ViewAdmin) && b.session.Phase() != Active {
		return ErrNotLoggedIn
	}
	if v == domain.ViewAdmin && !b.identity().Admin {
		return ErrNotAdmin
	}
	b.setView(v)
	b.session.Navigate(v)
	return nil
}

func (b *Board) Activity(kind ActivityKind) bool {
	return b.session.Activity(kind)
}

// SetStatus writes the signed-in worker's status. The local state changes only
// after the store confirms the write for the same record.
func (b *Board) SetStatus(ctx context.Context, status domain.Status, minutes int, note *string) (models.Worker, error) {
	if !b.tasks.Alive() {
		return models.Worker{}, ErrClosed
	}
	me := b.identity()
	if me.WorkerID == "" {
		return models.Worker{}, ErrNotLoggedIn
	}
	u, err := NewStatusUpdate(me.WorkerID, status, minutes, note)
	if err != nil {
		return models.Worker{}, err
	}
	w, err := b.store.SetStatus(ctx, u)
	if err != nil {
		return models.Worker{}, fmt.Errorf("set status: %w", err)
	}
	if w.ID != me.WorkerID {
		b.log.Error().Bool("security", true).Str("requested", me.WorkerID).Str("returned", w.ID).Msg("status write returned a different record")
		return models.Worker{}, ErrIntegrity
	}
	b.engine.ApplyLocal(w)
	b.session.Activity(ActivityClick)
	return w, nil
}

// NewStatusUpdate validates a status change. Busy needs a duration within
// MinBusyMinutes..MaxBusyMinutes; other statuses ignore it. Free clears the note.
func NewStatusUpdate(workerID string, status domain.Status, minutes int, note *string) (StatusUpdate, error) {
	st, err := domain.ParseStatus(string(status))
	if err != nil {
		return StatusUpdate{}, fmt.Errorf("%w: %v", ErrInvalidStatus, err)
	}
	u := StatusUpdate{WorkerID: workerID, Status: st, Note: note}
	switch st {
	case domain.StatusBusy:
		if minutes < domain.MinBusyMinutes || minutes > domain.MaxBusyMinutes {
			return StatusUpdate{}, ErrInvalidDuration
		}
		u.DurationMinutes = minutes
	case domain.StatusFree:
		u.Note = nil
	}
	return u, nil
}

// Alerts returns the toast stack, limited to the configured visible count.
func (b *Board) Alerts() AlertList {
	return b.queue.RenderList(b.cfg.Presence.AlertVisible)
}

func (b *Board) DismissAlert(id string) bool {
	return b.queue.Dismiss(id)
}

func (b *Board) Records() []models.Worker {
	return b.engine.Records()
}

func (b *Board) RecentlyUpdated(workerID string) bool {
	return b.queue.RecentlyUpdated(workerID)
}

func (b *Board) Session() *SessionClock {
	return b.session
}

func (b *Board) View() domain.View {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.view
}

// FeedState is the change feed state, or closed when push is disabled.
func (b *Board) FeedState() string {
	if b.feed == nil {
		return feed.StateClosed
	}
	return b.feed.State()
}

func (b *Board) Alive() bool {
	return b.tasks.Alive()
}

// Shutdown stops every task and the change feed. It is safe to call more
// than once and from inside a task.
func (b *Board) Shutdown() {
	b.tasks.Shutdown()
	if b.feed != nil {
		b.feed.Close()
	}
}

func (b *Board) identity() Identity {
	if b.session.Phase() != Active {
		return Identity{}
	}
	id := b.session.UserID()
	if id == "" {
		return Identity{}
	}
	rec, ok := b.engine.Record(id)
	return Identity{WorkerID: id, Admin: ok && rec.IsAdmin()}
}

func (b *Board) homeView(workerID string) domain.View {
	if rec, ok := b.engine.Record(workerID); ok && rec.IsAdmin() {
		return domain.ViewAdmin
	}
	return domain.ViewEmployee
}

func (b *Board) setView(v domain.View) {
	b.mu.Lock()
	b.view = v
	b.mu.Unlock()
}
