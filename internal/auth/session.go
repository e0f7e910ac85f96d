// Package auth tracks whether the operator is logged in and throttles
// password attempts with an escalating lockout.
package auth

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"scheinicam/internal/gateway"
	"scheinicam/internal/logging"
	"scheinicam/internal/reactive"
	"scheinicam/internal/services"
	"scheinicam/internal/sessionstore"
)

const component = "auth"

// State is a snapshot of the login state.
type State struct {
	Authenticated    bool   `json:"authenticated" yaml:"authenticated"`
	RememberMe       bool   `json:"remember_me" yaml:"remember_me"`
	FailedAttempts   uint   `json:"failed_attempts" yaml:"failed_attempts"`
	LockoutRemaining uint   `json:"lockout_remaining" yaml:"lockout_remaining"`
	Loading          bool   `json:"loading" yaml:"loading"`
	LastError        string `json:"last_error,omitempty" yaml:"last_error,omitempty"`
}

// Locked reports whether login attempts are currently refused.
func (s State) Locked() bool {
	return s.LockoutRemaining > 0
}

// Gateway is the backend call used for password checks.
type Gateway interface {
	Login(ctx context.Context, password string) (gateway.LoginResponse, error)
}

// Persister remembers successful logins.
type Persister interface {
	Load(ctx context.Context) (sessionstore.Persistence, error)
	Save(ctx context.Context, mode sessionstore.Persistence) error
	Clear(ctx context.Context) error
}

// TickSource returns a channel delivering one tick per countdown second and a
// stop function.
type TickSource func() (<-chan time.Time, func())

func secondTicker() (<-chan time.Time, func()) {
	ticker := time.NewTicker(time.Second)
	return ticker.C, ticker.Stop
}

// Option customizes a Session.
type Option func(*Session)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logging.NewComponentLogger(logger, component)
	}
}

// WithTicks replaces the one-second countdown ticker.
func WithTicks(source TickSource) Option {
	return func(s *Session) {
		if source != nil {
			s.ticks = source
		}
	}
}

// Session is the login state container. At most one countdown goroutine is
// alive per Session.
type Session struct {
	gw     Gateway
	store  Persister
	logger *slog.Logger
	ticks  TickSource
	state  *reactive.Value[State]

	// gen identifies the current lockout; a countdown only decrements while
	// its generation is current.
	gen atomic.Uint64

	mu      sync.Mutex
	cancel  context.CancelFunc
	running uint64
	closed  bool
	wg      sync.WaitGroup
}

// New builds a Session and restores any remembered login.
func New(ctx context.Context, gw Gateway, store Persister, opts ...Option) *Session {
	s := &Session{
		gw:     gw,
		store:  store,
		logger: logging.NewComponentLogger(nil, component),
		ticks:  secondTicker,
		state:  reactive.New(State{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.CheckAuth(ctx)
	return s
}

// State returns the current snapshot.
func (s *Session) State() State {
	return s.state.Load()
}

// Subscribe registers fn for state changes.
func (s *Session) Subscribe(fn func(State)) func() {
	return s.state.Subscribe(fn)
}

// Changes returns a coalescing change signal.
func (s *Session) Changes() (<-chan struct{}, func()) {
	return s.state.Changes()
}

// IsAuthenticated reports whether a login is active.
func (s *Session) IsAuthenticated() bool {
	return s.state.Load().Authenticated
}

// CanAttempt reports whether Login would reach the backend.
func (s *Session) CanAttempt() bool {
	return !s.state.Load().Locked()
}

// CheckAuth restores the login from the persisted flag. A store that cannot
// be read counts as logged out.
func (s *Session) CheckAuth(ctx context.Context) {
	mode := sessionstore.PersistNone
	if s.store != nil {
		loaded, err := s.store.Load(ctx)
		if err != nil {
			logging.WarnWithContext(s.logger, "session flag unreadable; treating as logged out", "session_load_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "delete the session database or run camctl logout"),
				logging.String(logging.FieldImpact, "login required"),
			)
		} else {
			mode = loaded
		}
	}
	s.state.Update(func(st *State) bool {
		st.Authenticated = mode != sessionstore.PersistNone
		st.RememberMe = mode == sessionstore.PersistDurable
		return true
	})
	s.logger.Debug("session restored", logging.String("persistence", mode.String()))
}

// Login submits password. While a lockout is running it fails immediately
// with *LockedOutError and no request is made.
func (s *Session) Login(ctx context.Context, password string, rememberMe bool) error {
	ctx = services.WithOperation(ctx, "login")
	logger := logging.WithContext(ctx, s.logger)

	var locked uint
	s.state.Update(func(st *State) bool {
		if st.LockoutRemaining > 0 {
			locked = st.LockoutRemaining
			st.LastError = (&LockedOutError{Remaining: locked}).UserMessage()
			return true
		}
		st.Loading = true
		st.LastError = ""
		return true
	})
	if locked > 0 {
		return &LockedOutError{Remaining: locked}
	}

	resp, err := s.gw.Login(ctx, password)
	if err != nil {
		s.state.Update(func(st *State) bool {
			st.Loading = false
			st.LastError = services.MessageConnection
			return true
		})
		logger.Warn("login request failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "login_transport_failed"),
			logging.String(logging.FieldErrorHint, "check server.base_url and that the backend is reachable"),
			logging.String(logging.FieldImpact, "login attempt not counted"),
		)
		return services.Wrap(services.ErrTransport, component, "login", "request failed", err)
	}

	if !resp.Success {
		return s.reject(logger)
	}
	return s.accept(ctx, logger, rememberMe)
}

func (s *Session) reject(logger *slog.Logger) error {
	var (
		attempts uint
		seconds  uint
		gen      uint64
	)
	s.state.Update(func(st *State) bool {
		st.FailedAttempts++
		attempts = st.FailedAttempts
		seconds = LockoutSeconds(attempts)
		st.LockoutRemaining = seconds
		if seconds > 0 {
			st.Authenticated = false
			gen = s.gen.Add(1)
		}
		st.Loading = false
		st.LastError = services.MessageIncorrectPassword
		return true
	})
	if seconds > 0 {
		s.startCountdown(gen)
	}
	logging.WarnWithContext(logger, "login rejected", "login_rejected",
		logging.Uint64("failed_attempts", uint64(attempts)),
		logging.Uint64("lockout_seconds", uint64(seconds)),
		logging.String(logging.FieldErrorHint, "check the panel password"),
		logging.String(logging.FieldImpact, "further attempts delayed"),
	)
	return services.Wrap(services.ErrRejectedCredential, component, "login", "password rejected", nil)
}

func (s *Session) accept(ctx context.Context, logger *slog.Logger, rememberMe bool) error {
	mode := sessionstore.PersistTransient
	if rememberMe {
		mode = sessionstore.PersistDurable
	}
	if s.store != nil {
		if err := s.store.Save(ctx, mode); err != nil {
			logging.WarnWithContext(logger, "login not persisted", "session_save_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check permissions on paths.state_dir and paths.runtime_dir"),
				logging.String(logging.FieldImpact, "next invocation will ask for the password again"),
			)
		}
	}

	s.state.Update(func(st *State) bool {
		s.gen.Add(1)
		st.Authenticated = true
		st.RememberMe = rememberMe
		st.FailedAttempts = 0
		st.LockoutRemaining = 0
		st.Loading = false
		st.LastError = ""
		return true
	})
	s.stopCountdown()
	logger.Info("login accepted",
		logging.Bool("remember_me", rememberMe),
		logging.String(logging.FieldEventType, "login_accepted"),
	)
	return nil
}

// Logout clears the login and every persisted flag. No request is made.
func (s *Session) Logout(ctx context.Context) error {
	var err error
	if s.store != nil {
		err = s.store.Clear(ctx)
	}
	s.state.Update(func(st *State) bool {
		st.Authenticated = false
		st.RememberMe = false
		return true
	})
	if err != nil {
		return services.Wrap(services.ErrConfiguration, component, "logout", "clear session flags", err)
	}
	s.logger.Info("logged out", logging.String(logging.FieldEventType, "logout"))
	return nil
}

// Close stops the countdown and waits for it to exit.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// startCountdown replaces the running countdown unless a newer lockout has
// already been issued.
func (s *Session) startCountdown(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.gen.Load() || gen <= s.running {
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = gen
	ticks, stop := s.ticks()
	s.wg.Add(1)
	go s.countdown(ctx, gen, ticks, stop)
}

func (s *Session) stopCountdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Session) countdown(ctx context.Context, gen uint64, ticks <-chan time.Time, stop func()) {
	defer s.wg.Done()
	defer stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
		}
		var (
			remaining uint
			stale     bool
		)
		s.state.Update(func(st *State) bool {
			if s.gen.Load() != gen {
				stale = true
				return false
			}
			if st.LockoutRemaining > 0 {
				st.LockoutRemaining--
			}
			remaining = st.LockoutRemaining
			return true
		})
		if stale {
			return
		}
		if remaining == 0 {
			s.logger.Debug("lockout expired", logging.String(logging.FieldEventType, "lockout_expired"))
			return
		}
	}
}
