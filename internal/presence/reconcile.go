package presence

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"statusboard/internal/domain"
	"statusboard/internal/feed"
	"statusboard/internal/models"
)

// AlertSink receives alerts produced by the engine.
type AlertSink interface {
	Enqueue(a Alert) bool
}

type EngineOptions struct {
	SuppressionWindow time.Duration
	Now               func() time.Time
	Logger            zerolog.Logger
	// Alive is checked before every mutation; nil means always alive.
	Alive func() bool
	// Removed is called, without the engine lock, with the ids a delete
	// delta or a snapshot dropped.
	Removed func(ids []string)
}

// Engine holds the canonical worker state. Snapshots from the poll loop and
// deltas from the change feed are applied in arrival order; the last one
// processed wins.
type Engine struct {
	mu      sync.Mutex
	records map[string]models.Worker
	primed  bool

	sink    AlertSink
	dedup   *Suppressor[Alert, alertKey]
	now     func() time.Time
	alive   func() bool
	removed func(ids []string)
	log     zerolog.Logger
}

func NewEngine(sink AlertSink, opts EngineOptions) *Engine {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	window := opts.SuppressionWindow
	if window <= 0 {
		window = 5 * time.Second
	}
	alive := opts.Alive
	if alive == nil {
		alive = func() bool { return true }
	}
	return &Engine{
		records: make(map[string]models.Worker),
		sink:    sink,
		dedup:   NewSuppressor[Alert, alertKey](window, keyOf, now),
		now:     now,
		alive:   alive,
		removed: opts.Removed,
		log:     opts.Logger,
	}
}

// ApplySnapshot replaces the canonical state with records. Records missing
// from the snapshot are dropped.
func (e *Engine) ApplySnapshot(records []models.Worker) []Alert {
	if !e.alive() {
		return nil
	}
	e.mu.Lock()
	now := e.now()
	next := make(map[string]models.Worker, len(records))
	var pending []Alert
	for _, r := range records {
		if r.ID == "" {
			continue
		}
		r.Normalize()
		prev, existed := e.records[r.ID]
		pending = append(pending, e.diff(prev, existed, r, feed.FullPatch(r), true, now)...)
		next[r.ID] = r
	}
	var dropped []string
	for id := range e.records {
		if _, ok := next[id]; !ok {
			dropped = append(dropped, id)
		}
	}
	e.records = next
	e.primed = true
	e.mu.Unlock()
	e.notifyRemoved(dropped)
	return e.emit(pending)
}

// ApplyDelta merges one change feed event. Only fields present in the
// payload are compared and merged.
func (e *Engine) ApplyDelta(ev feed.ChangeEvent) []Alert {
	if !e.alive() {
		return nil
	}
	if ev.Type == domain.EventDelete {
		id := ev.Old.Worker.ID
		if id == "" {
			id = ev.New.Worker.ID
		}
		if id == "" {
			return nil
		}
		e.mu.Lock()
		_, existed := e.records[id]
		delete(e.records, id)
		e.mu.Unlock()
		if existed {
			e.notifyRemoved([]string{id})
		}
		return nil
	}

	p := ev.New
	id := p.Worker.ID
	if id == "" {
		e.log.Debug().Str("event", string(ev.Type)).Msg("change without record id ignored")
		return nil
	}
	e.mu.Lock()
	now := e.now()
	prev, existed := e.records[id]
	if !existed && ev.Type == domain.EventUpdate && !p.Has(feed.FieldDisplayName) {
		e.mu.Unlock()
		e.log.Debug().Str("worker", id).Msg("partial update for unknown record ignored")
		return nil
	}
	merged := p.Merge(prev)
	merged.Normalize()
	pending := e.diff(prev, existed, merged, p, ev.Type == domain.EventInsert, now)
	e.records[id] = merged
	e.mu.Unlock()
	return e.emit(pending)
}

// ApplyLocal applies a confirmed write before the next snapshot arrives.
func (e *Engine) ApplyLocal(w models.Worker) []Alert {
	return e.ApplyDelta(feed.ChangeEvent{
		Topic: domain.TopicWorkers,
		Type:  domain.EventUpdate,
		New:   feed.FullPatch(w),
	})
}

// diff must be called with e.mu held.
func (e *Engine) diff(prev models.Worker, existed bool, next models.Worker, p feed.Patch, insert bool, now time.Time) []Alert {
	if !existed {
		if !e.primed || !insert {
			return nil
		}
		return []Alert{e.newAlert(next, AlertJoined, displayName(next)+" joined the board", fingerprint(next.ID), now)}
	}
	var out []Alert
	if p.Has(feed.FieldStatus) && prev.Status != next.Status {
		out = append(out, e.newAlert(next, AlertStatusChange, StatusMessage(next, now), statusFingerprint(next), now))
	}
	if p.Has(feed.FieldStatusNote) && prev.Note() != next.Note() && strings.TrimSpace(next.Note()) != "" {
		msg := displayName(next) + " updated their note: \"" + NotePreview(next.Note()) + "\""
		out = append(out, e.newAlert(next, AlertNoteChange, msg, fingerprint(next.Note()), now))
	}
	return out
}

func (e *Engine) newAlert(w models.Worker, kind AlertKind, msg, fp string, now time.Time) Alert {
	return Alert{
		ID:          uuid.NewString(),
		WorkerID:    w.ID,
		Kind:        kind,
		Message:     msg,
		Fingerprint: fp,
		CreatedAt:   now,
	}
}

func (e *Engine) emit(pending []Alert) []Alert {
	var out []Alert
	for _, a := range pending {
		if !e.dedup.Allow(a) {
			e.log.Debug().Str("worker", a.WorkerID).Str("kind", string(a.Kind)).Msg("duplicate alert suppressed")
			continue
		}
		out = append(out, a)
		if e.sink != nil {
			e.sink.Enqueue(a)
		}
	}
	return out
}

func (e *Engine) notifyRemoved(ids []string) {
	if len(ids) == 0 || e.removed == nil {
		return
	}
	e.removed(ids)
}

// SweepSuppression drops expired dedup keys.
func (e *Engine) SweepSuppression() int {
	return e.dedup.Sweep()
}

// Records returns the canonical state ordered by display name.
func (e *Engine) Records() []models.Worker {
	e.mu.Lock()
	out := make([]models.Worker, 0, len(e.records))
	for _, r := range e.records {
		out = append(out, r)
	}
	e.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i].DisplayName), strings.ToLower(out[j].DisplayName)
		if a != b {
			return a < b
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (e *Engine) Record(id string) (models.Worker, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	w, ok := e.records[id]
	return w, ok
}

// Primed reports whether a full snapshot has been applied.
func (e *Engine) Primed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.primed
}
