package presence

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statusboard/internal/domain"
)

type sessionFixture struct {
	clock    *fakeClock
	kv       *memKV
	clockS   *SessionClock
	warnings []time.Duration
	expired  int
}

func newSessionFixture(kv *memKV, clock *fakeClock) *sessionFixture {
	f := &sessionFixture{clock: clock, kv: kv}
	f.clockS = NewSessionClock(SessionOptions{
		Length:     15 * time.Minute,
		WarnBefore: 2 * time.Minute,
		Now:        clock.Now,
		Store:      kv,
		Logger:     zerolog.Nop(),
		OnWarning:  func(d time.Duration) { f.warnings = append(f.warnings, d) },
		OnExpired:  func() { f.expired++ },
	})
	return f
}

func TestSessionLoginPersists(t *testing.T) {
	f := newSessionFixture(newMemKV(), newClock())
	f.clockS.Login("w-1")

	assert.Equal(t, Active, f.clockS.Phase())
	assert.Equal(t, "w-1", f.clockS.UserID())
	assert.Equal(t, 15*time.Minute, f.clockS.Remaining())

	user, ok, _ := f.kv.Get(SessionUserKey)
	require.True(t, ok)
	assert.Equal(t, "w-1", user)
	_, ok, _ = f.kv.Get(SessionExpiryKey)
	assert.True(t, ok)
}

func TestSessionWarnsOnceThenExpires(t *testing.T) {
	f := newSessionFixture(newMemKV(), newClock())
	f.clockS.Login("w-1")

	f.clock.Advance(12 * time.Minute)
	f.clockS.Tick()
	assert.Empty(t, f.warnings)

	f.clock.Advance(90 * time.Second)
	assert.Equal(t, 90*time.Second, f.clockS.Tick())
	f.clockS.Tick()
	require.Len(t, f.warnings, 1)
	assert.Equal(t, 90*time.Second, f.warnings[0])

	f.clock.Advance(90 * time.Second)
	assert.Equal(t, time.Duration(0), f.clockS.Tick())
	f.clockS.Tick()
	assert.Equal(t, 1, f.expired)
	assert.Equal(t, Expired, f.clockS.Phase())
	assert.Empty(t, f.clockS.UserID())

	_, ok, _ := f.kv.Get(SessionUserKey)
	assert.False(t, ok, "an expired session is cleared from storage")
	assert.False(t, f.clockS.Activity(ActivityKey))
}

func TestSessionActivityExtends(t *testing.T) {
	f := newSessionFixture(newMemKV(), newClock())
	f.clockS.Login("w-1")

	f.clock.Advance(14 * time.Minute)
	f.clockS.Tick()
	require.Len(t, f.warnings, 1)

	assert.True(t, f.clockS.Activity(ActivityPointer))
	assert.Equal(t, 15*time.Minute, f.clockS.Remaining())

	// the warning re-arms after an extension
	f.clock.Advance(14 * time.Minute)
	f.clockS.Tick()
	assert.Len(t, f.warnings, 2)
}

func TestSessionKeepaliveNeedsNavigation(t *testing.T) {
	f := newSessionFixture(newMemKV(), newClock())
	f.clockS.Login("w-1")
	f.clock.Advance(5 * time.Minute)

	assert.False(t, f.clockS.Keepalive())
	assert.Equal(t, 10*time.Minute, f.clockS.Remaining())

	f.clockS.Navigate(domain.ViewAdmin)
	assert.True(t, f.clockS.Keepalive())
	assert.Equal(t, 15*time.Minute, f.clockS.Remaining())
	assert.False(t, f.clockS.Keepalive(), "one extension per navigation")
}

func TestSessionResume(t *testing.T) {
	kv := newMemKV()
	clock := newClock()
	first := newSessionFixture(kv, clock)
	first.clockS.Login("w-1")

	clock.Advance(10 * time.Minute)
	second := newSessionFixture(kv, clock)
	id, ok := second.clockS.Resume()
	require.True(t, ok)
	assert.Equal(t, "w-1", id)
	assert.Equal(t, 5*time.Minute, second.clockS.Remaining())

	clock.Advance(5 * time.Minute)
	third := newSessionFixture(kv, clock)
	_, ok = third.clockS.Resume()
	assert.False(t, ok)
	_, stored, _ := kv.Get(SessionUserKey)
	assert.False(t, stored)
}

func TestSessionLogout(t *testing.T) {
	f := newSessionFixture(newMemKV(), newClock())
	f.clockS.Login("w-1")
	f.clockS.Logout()

	assert.Equal(t, LoggedOut, f.clockS.Phase())
	assert.Equal(t, time.Duration(0), f.clockS.Remaining())
	assert.False(t, f.clockS.Activity(ActivityClick))
	_, ok, _ := f.kv.Get(SessionExpiryKey)
	assert.False(t, ok)
	assert.Equal(t, 0, f.expired)
}

func TestFormatRemaining(t *testing.T) {
	assert.Equal(t, "1:30", FormatRemaining(90*time.Second))
	assert.Equal(t, "15:00", FormatRemaining(15*time.Minute))
	assert.Equal(t, "0:00", FormatRemaining(-time.Second))
}
