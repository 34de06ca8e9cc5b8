package presence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"statusboard/internal/domain"
	"statusboard/internal/feed"
)

// FeedConn is one open change feed subscription.
type FeedConn interface {
	// ReadFrame blocks until the next frame arrives or the connection fails.
	ReadFrame() (feed.Frame, error)
	Close() error
}

// FeedDialer opens a subscription under the given channel id.
type FeedDialer interface {
	Dial(ctx context.Context, channel string) (FeedConn, error)
}

// DeltaSink consumes change events.
type DeltaSink interface {
	ApplyDelta(ev feed.ChangeEvent) []Alert
}

type FeedOptions struct {
	Topic      string
	RetryDelay time.Duration
	MaxRetries int
	Logger     zerolog.Logger
	Alive      func() bool
}

var errUnexpectedClose = errors.New("change feed closed")

// ChangeFeedClient keeps one push subscription open and forwards its events.
// After MaxRetries consecutive failures it stops retrying and leaves the
// board to the poll loop until the next forced resubscribe.
type ChangeFeedClient struct {
	dialer FeedDialer
	sink   DeltaSink

	mu       sync.Mutex
	state    string
	channel  string
	gen      uint64
	failures int
	degraded bool
	cancel   context.CancelFunc
	retry    *time.Timer
	parent   context.Context

	topic      string
	retryDelay time.Duration
	maxRetries int
	log        zerolog.Logger
	alive      func() bool
}

func NewChangeFeedClient(dialer FeedDialer, sink DeltaSink, opts FeedOptions) *ChangeFeedClient {
	if opts.Topic == "" {
		opts.Topic = domain.TopicWorkers
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 3 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 5
	}
	if opts.Alive == nil {
		opts.Alive = func() bool { return true }
	}
	return &ChangeFeedClient{
		dialer:     dialer,
		sink:       sink,
		state:      feed.StateClosed,
		topic:      opts.Topic,
		retryDelay: opts.RetryDelay,
		maxRetries: opts.MaxRetries,
		log:        opts.Logger,
		alive:      opts.Alive,
	}
}

// Subscribe drops any current subscription and opens a new one under a fresh
// channel id. The retry budget is reset.
func (c *ChangeFeedClient) Subscribe(ctx context.Context) {
	c.mu.Lock()
	c.failures = 0
	c.degraded = false
	c.mu.Unlock()
	c.resubscribe(ctx)
}

func (c *ChangeFeedClient) resubscribe(ctx context.Context) {
	if !c.alive() {
		return
	}
	c.mu.Lock()
	c.stopLocked()
	c.gen++
	gen := c.gen
	c.parent = ctx
	sctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.channel = c.topic + "-" + uuid.NewString()
	channel := c.channel
	c.state = feed.StateJoining
	c.mu.Unlock()

	c.log.Debug().Str("channel", channel).Msg("subscribing to change feed")
	go c.run(sctx, gen, channel)
}

func (c *ChangeFeedClient) run(ctx context.Context, gen uint64, channel string) {
	conn, err := c.dialer.Dial(ctx, channel)
	if err != nil {
		c.fail(gen, fmt.Errorf("dial: %w", err))
		return
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer conn.Close()

	for {
		f, err := conn.ReadFrame()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.fail(gen, err)
			return
		}
		if !c.current(gen) || !c.alive() {
			return
		}
		switch f.Type {
		case feed.FrameSystem:
			if f.Status == feed.StateErrored || f.Status == feed.StateClosed {
				c.fail(gen, fmt.Errorf("server reported %s: %w", f.Status, errUnexpectedClose))
				return
			}
			c.onSystem(gen, f)
		case feed.FrameChange:
			ev, err := f.Change()
			if err != nil {
				c.log.Warn().Err(err).Msg("malformed change frame dropped")
				continue
			}
			if ev.Topic != "" && ev.Topic != c.topic {
				continue
			}
			c.sink.ApplyDelta(ev)
		}
	}
}

func (c *ChangeFeedClient) onSystem(gen uint64, f feed.Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	if f.Status == feed.StateJoined {
		c.state = feed.StateJoined
		c.failures = 0
		c.degraded = false
		c.log.Info().Str("channel", c.channel).Msg("change feed joined")
	}
}

func (c *ChangeFeedClient) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen == c.gen
}

func (c *ChangeFeedClient) fail(gen uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.state = feed.StateErrored
	c.failures++
	if c.failures >= c.maxRetries {
		c.degraded = true
		c.log.Warn().Err(err).Int("failures", c.failures).Msg("change feed retries exhausted; relying on polling")
		return
	}
	c.log.Debug().Err(err).Int("failures", c.failures).Dur("retry_in", c.retryDelay).Msg("change feed failed")
	parent := c.parent
	c.retry = time.AfterFunc(c.retryDelay, func() {
		if !c.current(gen) || parent.Err() != nil {
			return
		}
		c.resubscribe(parent)
	})
}

// stopLocked cancels the active subscription and any pending retry.
func (c *ChangeFeedClient) stopLocked() {
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// Close ends the subscription without scheduling a retry.
func (c *ChangeFeedClient) Close() {
	c.mu.Lock()
	c.stopLocked()
	c.gen++
	c.state = feed.StateClosed
	c.mu.Unlock()
}

func (c *ChangeFeedClient) State() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *ChangeFeedClient) Channel() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel
}

func (c *ChangeFeedClient) Failures() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failures
}

// Degraded reports whether the retry budget is spent.
func (c *ChangeFeedClient) Degraded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.degraded
}

// HealthMonitor forces a resubscribe when the feed is neither joined nor
// joining. It catches stalls that never raise an error.
type HealthMonitor struct {
	client *ChangeFeedClient
	log    zerolog.Logger
	alive  func() bool
}

func NewHealthMonitor(client *ChangeFeedClient, logger zerolog.Logger, alive func() bool) *HealthMonitor {
	if alive == nil {
		alive = func() bool { return true }
	}
	return &HealthMonitor{client: client, log: logger, alive: alive}
}

// Check reports whether a resubscribe was forced.
func (h *HealthMonitor) Check(ctx context.Context) bool {
	if !h.alive() {
		return false
	}
	switch st := h.client.State(); st {
	case feed.StateJoined, feed.StateJoining:
		return false
	default:
		h.log.Info().Str("state", st).Msg("change feed unhealthy; resubscribing")
		h.client.Subscribe(ctx)
		return true
	}
}
