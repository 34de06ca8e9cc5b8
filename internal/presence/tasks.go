package presence

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Task names.
const (
	TaskPoll             = "poll"
	TaskHealthCheck      = "health-check"
	TaskExpiryScan       = "expiry-scan"
	TaskAlertSweep       = "alert-sweep"
	TaskMarkerSweep      = "marker-sweep"
	TaskSessionTick      = "session-tick"
	TaskSessionKeepalive = "session-keepalive"
)

type task struct {
	interval time.Duration
	fn       func(ctx context.Context)
	cancel   context.CancelFunc
}

// Tasks runs named periodic tasks. Each can be started and stopped on its
// own; Shutdown stops all of them and flips the liveness flag for good.
type Tasks struct {
	mu    sync.Mutex
	tasks map[string]*task
	alive atomic.Bool
	log   zerolog.Logger
}

func NewTasks(logger zerolog.Logger) *Tasks {
	t := &Tasks{tasks: make(map[string]*task), log: logger}
	t.alive.Store(true)
	return t
}

// Alive is false once Shutdown has been called.
func (t *Tasks) Alive() bool {
	return t.alive.Load()
}

// Register adds a task without starting it. Registering an existing name
// replaces it, stopping the old one first.
func (t *Tasks) Register(name string, interval time.Duration, fn func(ctx context.Context)) {
	t.Stop(name)
	t.mu.Lock()
	t.tasks[name] = &task{interval: interval, fn: fn}
	t.mu.Unlock()
}

// Start runs the named task every interval, the first run after one interval.
func (t *Tasks) Start(ctx context.Context, name string) bool {
	if !t.Alive() {
		return false
	}
	t.mu.Lock()
	tk, ok := t.tasks[name]
	if !ok || tk.cancel != nil {
		t.mu.Unlock()
		return false
	}
	tctx, cancel := context.WithCancel(ctx)
	tk.cancel = cancel
	t.mu.Unlock()

	go t.loop(tctx, name, tk)
	t.log.Debug().Str("task", name).Dur("interval", tk.interval).Msg("task started")
	return true
}

func (t *Tasks) loop(ctx context.Context, name string, tk *task) {
	ticker := time.NewTicker(tk.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !t.Alive() {
				return
			}
			tk.fn(ctx)
		}
	}
}

// Stop halts the named task. A run already in flight finishes on its own;
// it may call Stop or Shutdown itself.
func (t *Tasks) Stop(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	tk, ok := t.tasks[name]
	if !ok || tk.cancel == nil {
		return false
	}
	tk.cancel()
	tk.cancel = nil
	return true
}

// StartAll starts every registered task that is not running.
func (t *Tasks) StartAll(ctx context.Context) {
	for _, name := range t.Names() {
		t.Start(ctx, name)
	}
}

func (t *Tasks) Running(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	tk, ok := t.tasks[name]
	return ok && tk.cancel != nil
}

func (t *Tasks) Names() []string {
	t.mu.Lock()
	names := make([]string, 0, len(t.tasks))
	for name := range t.tasks {
		names = append(names, name)
	}
	t.mu.Unlock()
	sort.Strings(names)
	return names
}

// Shutdown stops every task. Timers that still fire afterwards see Alive()
// false and do nothing.
func (t *Tasks) Shutdown() {
	if !t.alive.CompareAndSwap(true, false) {
		return
	}
	for _, name := range t.Names() {
		t.Stop(name)
	}
	t.log.Debug().Msg("all tasks stopped")
}
