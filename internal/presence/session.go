package presence

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/hako/durafmt"
	"github.com/rs/zerolog"

	"statusboard/internal/domain"
)

// Local storage keys for the session.
const (
	SessionUserKey   = "currentUserId"
	SessionExpiryKey = "sessionExpiry"
)

type SessionPhase int

const (
	LoggedOut SessionPhase = iota
	Active
	Expired
)

func (p SessionPhase) String() string {
	switch p {
	case Active:
		return "active"
	case Expired:
		return "expired"
	}
	return "logged_out"
}

// ActivityKind is a recognized local user-activity event.
type ActivityKind string

const (
	ActivityPointer ActivityKind = "pointer"
	ActivityKey     ActivityKind = "key"
	ActivityScroll  ActivityKind = "scroll"
	ActivityTouch   ActivityKind = "touch"
	ActivityClick   ActivityKind = "click"
)

type SessionOptions struct {
	Length     time.Duration
	WarnBefore time.Duration
	Now        func() time.Time
	Store      KV
	Logger     zerolog.Logger
	// OnWarning fires once per window when remaining time drops below WarnBefore.
	OnWarning func(remaining time.Duration)
	// OnExpired fires once when the session runs out.
	OnExpired func()
}

// SessionClock is the local countdown that decides whether the user is still
// logged in. It only consumes local activity and wall-clock time.
type SessionClock struct {
	mu        sync.Mutex
	phase     SessionPhase
	userID    string
	expiresAt time.Time
	warned    bool
	navigated bool

	length     time.Duration
	warnBefore time.Duration
	now        func() time.Time
	store      KV
	log        zerolog.Logger
	onWarning  func(time.Duration)
	onExpired  func()
}

func NewSessionClock(opts SessionOptions) *SessionClock {
	if opts.Length <= 0 {
		opts.Length = 15 * time.Minute
	}
	if opts.WarnBefore <= 0 {
		opts.WarnBefore = 2 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &SessionClock{
		length:     opts.Length,
		warnBefore: opts.WarnBefore,
		now:        opts.Now,
		store:      opts.Store,
		log:        opts.Logger,
		onWarning:  opts.OnWarning,
		onExpired:  opts.OnExpired,
	}
}

func (s *SessionClock) Login(userID string) {
	s.mu.Lock()
	s.phase = Active
	s.userID = userID
	s.refreshLocked()
	exp := s.expiresAt
	s.mu.Unlock()
	s.persist(userID, exp)
	s.log.Info().Str("user", userID).Str("expires_in", durafmt.Parse(s.length).String()).Msg("session started")
}

// Resume restores a session persisted by a previous run. It reports false
// when nothing was stored or the stored session already ran out.
func (s *SessionClock) Resume() (string, bool) {
	if s.store == nil {
		return "", false
	}
	userID, ok, err := s.store.Get(SessionUserKey)
	if err != nil || !ok || userID == "" {
		return "", false
	}
	raw, ok, err := s.store.Get(SessionExpiryKey)
	if err != nil || !ok {
		return "", false
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return "", false
	}
	exp := time.UnixMilli(ms)
	if !exp.After(s.now()) {
		s.clearStore()
		return "", false
	}
	s.mu.Lock()
	s.phase = Active
	s.userID = userID
	s.expiresAt = exp
	s.warned = false
	s.mu.Unlock()
	return userID, true
}

// Activity resets the expiry on a recognized local input event.
func (s *SessionClock) Activity(kind ActivityKind) bool {
	s.mu.Lock()
	if s.phase != Active || !s.now().Before(s.expiresAt) {
		s.mu.Unlock()
		return false
	}
	s.refreshLocked()
	userID, exp := s.userID, s.expiresAt
	s.mu.Unlock()
	s.persist(userID, exp)
	s.log.Debug().Str("activity", string(kind)).Msg("session extended")
	return true
}

// Navigate records a view change. The next keepalive tick extends the
// session because of it.
func (s *SessionClock) Navigate(v domain.View) {
	s.mu.Lock()
	if s.phase == Active {
		s.navigated = true
	}
	s.mu.Unlock()
	s.log.Debug().Str("view", string(v)).Msg("view changed")
}

// Keepalive extends a still-valid session when the user navigated since the
// last extension.
func (s *SessionClock) Keepalive() bool {
	s.mu.Lock()
	remaining := s.expiresAt.Sub(s.now())
	if s.phase != Active || !s.navigated || remaining <= 0 || remaining > s.length {
		s.mu.Unlock()
		return false
	}
	s.refreshLocked()
	userID, exp := s.userID, s.expiresAt
	s.mu.Unlock()
	s.persist(userID, exp)
	return true
}

// Tick recomputes the remaining time, fires the one-time warning and expires
// the session once nothing is left.
func (s *SessionClock) Tick() time.Duration {
	s.mu.Lock()
	if s.phase != Active {
		s.mu.Unlock()
		return 0
	}
	remaining := s.expiresAt.Sub(s.now())
	if remaining <= 0 {
		s.phase = Expired
		userID := s.userID
		s.userID = ""
		s.mu.Unlock()
		s.clearStore()
		s.log.Info().Str("user", userID).Msg("session expired")
		if s.onExpired != nil {
			s.onExpired()
		}
		return 0
	}
	warn := !s.warned && remaining < s.warnBefore
	if warn {
		s.warned = true
	}
	s.mu.Unlock()
	if warn && s.onWarning != nil {
		s.onWarning(remaining)
	}
	return remaining
}

func (s *SessionClock) Logout() {
	s.mu.Lock()
	s.phase = LoggedOut
	s.userID = ""
	s.expiresAt = time.Time{}
	s.warned = false
	s.navigated = false
	s.mu.Unlock()
	s.clearStore()
}

func (s *SessionClock) Phase() SessionPhase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *SessionClock) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

func (s *SessionClock) ExpiresAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiresAt
}

// Remaining returns the time left, zero when not active.
func (s *SessionClock) Remaining() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != Active {
		return 0
	}
	if d := s.expiresAt.Sub(s.now()); d > 0 {
		return d
	}
	return 0
}

// FormatRemaining renders d as M:SS.
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

func (s *SessionClock) refreshLocked() {
	s.expiresAt = s.now().Add(s.length)
	s.warned = false
	s.navigated = false
}

func (s *SessionClock) persist(userID string, exp time.Time) {
	if s.store == nil {
		return
	}
	if err := s.store.Put(SessionUserKey, userID); err != nil {
		s.log.Warn().Err(err).Msg("persist session user")
		return
	}
	if err := s.store.Put(SessionExpiryKey, strconv.FormatInt(exp.UnixMilli(), 10)); err != nil {
		s.log.Warn().Err(err).Msg("persist session expiry")
	}
}

func (s *SessionClock) clearStore() {
	if s.store == nil {
		return
	}
	if err := s.store.Delete(SessionUserKey, SessionExpiryKey); err != nil {
		s.log.Warn().Err(err).Msg("clear session")
	}
}
