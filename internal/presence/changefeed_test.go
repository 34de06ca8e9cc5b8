package presence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statusboard/internal/domain"
	"statusboard/internal/feed"
)

var errConnClosed = errors.New("connection closed")

type fakeConn struct {
	frames chan feed.Frame
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{frames: make(chan feed.Frame, 16), closed: make(chan struct{})}
}

func (c *fakeConn) ReadFrame() (feed.Frame, error) {
	select {
	case f := <-c.frames:
		return f, nil
	case <-c.closed:
		return feed.Frame{}, errConnClosed
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

type fakeDialer struct {
	mu       sync.Mutex
	fail     bool
	conns    []*fakeConn
	channels []string
}

func (d *fakeDialer) Dial(_ context.Context, channel string) (FeedConn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.channels = append(d.channels, channel)
	if d.fail {
		return nil, errors.New("refused")
	}
	c := newFakeConn()
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) setFail(v bool) {
	d.mu.Lock()
	d.fail = v
	d.mu.Unlock()
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.channels)
}

func (d *fakeDialer) last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

type recordingSink struct {
	mu     sync.Mutex
	events []feed.ChangeEvent
}

func (s *recordingSink) ApplyDelta(ev feed.ChangeEvent) []Alert {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func newTestFeed(d *fakeDialer, sink DeltaSink, retries int) *ChangeFeedClient {
	return NewChangeFeedClient(d, sink, FeedOptions{
		RetryDelay: 5 * time.Millisecond,
		MaxRetries: retries,
		Logger:     zerolog.Nop(),
	})
}

func joinedFrame() feed.Frame {
	return feed.Frame{Type: feed.FrameSystem, Status: feed.StateJoined}
}

func statusFrame(t *testing.T, topic string) feed.Frame {
	t.Helper()
	f, err := feed.NewChangeFrame(domain.EventUpdate, ptrWorker(worker("a", "Ada", domain.StatusImportant)), nil, feed.StatusFields...)
	require.NoError(t, err)
	f.Topic = topic
	return f
}

const waitFor = 2 * time.Second

func TestChangeFeedJoinsAndForwards(t *testing.T) {
	d := &fakeDialer{}
	sink := &recordingSink{}
	c := newTestFeed(d, sink, 5)
	defer c.Close()

	c.Subscribe(context.Background())
	assert.Equal(t, feed.StateJoining, c.State())
	require.Eventually(t, func() bool { return d.last() != nil }, waitFor, time.Millisecond)

	conn := d.last()
	conn.frames <- joinedFrame()
	require.Eventually(t, func() bool { return c.State() == feed.StateJoined }, waitFor, time.Millisecond)

	conn.frames <- statusFrame(t, "other-topic")
	conn.frames <- statusFrame(t, domain.TopicWorkers)
	require.Eventually(t, func() bool { return sink.count() == 1 }, waitFor, time.Millisecond)
	assert.Contains(t, c.Channel(), domain.TopicWorkers+"-")
}

func TestChangeFeedRetryBudget(t *testing.T) {
	d := &fakeDialer{fail: true}
	c := newTestFeed(d, &recordingSink{}, 5)
	defer c.Close()

	c.Subscribe(context.Background())
	require.Eventually(t, c.Degraded, waitFor, time.Millisecond)
	assert.Equal(t, 5, c.Failures())
	assert.Equal(t, feed.StateErrored, c.State())

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 5, d.dials(), "no retries once the budget is spent")

	// a forced resubscribe starts over
	d.setFail(false)
	c.Subscribe(context.Background())
	assert.False(t, c.Degraded())
	assert.Equal(t, 0, c.Failures())
	require.Eventually(t, func() bool { return d.dials() == 6 }, waitFor, time.Millisecond)
}

func TestChangeFeedResubscribesWithFreshChannel(t *testing.T) {
	d := &fakeDialer{}
	c := newTestFeed(d, &recordingSink{}, 5)
	defer c.Close()

	c.Subscribe(context.Background())
	require.Eventually(t, func() bool { return d.last() != nil }, waitFor, time.Millisecond)
	first := d.last()
	firstChannel := c.Channel()

	// the server reports the channel errored; the client retries on its own
	first.frames <- feed.Frame{Type: feed.FrameSystem, Status: feed.StateErrored}
	require.Eventually(t, func() bool { return d.dials() == 2 }, waitFor, time.Millisecond)
	assert.NotEqual(t, firstChannel, c.Channel())
	assert.Equal(t, 1, c.Failures())

	d.last().frames <- joinedFrame()
	require.Eventually(t, func() bool { return c.Failures() == 0 }, waitFor, time.Millisecond)
}

func TestChangeFeedCloseStopsRetries(t *testing.T) {
	d := &fakeDialer{}
	c := newTestFeed(d, &recordingSink{}, 5)

	c.Subscribe(context.Background())
	require.Eventually(t, func() bool { return d.last() != nil }, waitFor, time.Millisecond)
	c.Close()
	assert.Equal(t, feed.StateClosed, c.State())

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, d.dials())
	assert.Equal(t, 0, c.Failures())
}

func TestHealthMonitorForcesResubscribe(t *testing.T) {
	d := &fakeDialer{fail: true}
	c := newTestFeed(d, &recordingSink{}, 1)
	defer c.Close()
	h := NewHealthMonitor(c, zerolog.Nop(), nil)

	assert.True(t, h.Check(context.Background()), "never subscribed")
	require.Eventually(t, c.Degraded, waitFor, time.Millisecond)

	d.setFail(false)
	assert.True(t, h.Check(context.Background()))
	require.Eventually(t, func() bool { return d.last() != nil }, waitFor, time.Millisecond)
	d.last().frames <- joinedFrame()
	require.Eventually(t, func() bool { return c.State() == feed.StateJoined }, waitFor, time.Millisecond)

	assert.False(t, h.Check(context.Background()))
}

func TestChangeFeedRespectsLiveness(t *testing.T) {
	d := &fakeDialer{}
	c := NewChangeFeedClient(d, &recordingSink{}, FeedOptions{Logger: zerolog.Nop(), Alive: func() bool { return false }})
	c.Subscribe(context.Background())
	assert.Equal(t, 0, d.dials())
	assert.Equal(t, feed.StateClosed, c.State())
}
