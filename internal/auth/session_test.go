package auth_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"scheinicam/internal/auth"
	"scheinicam/internal/gateway"
	"scheinicam/internal/services"
	"scheinicam/internal/sessionstore"
	"scheinicam/internal/testsupport"
)

// manualTicks hands each countdown its own channel and lets the test drive it.
type manualTicks struct {
	mu      sync.Mutex
	current chan time.Time
	all     []chan time.Time
	started int
}

func (m *manualTicks) source() (<-chan time.Time, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = make(chan time.Time)
	m.all = append(m.all, m.current)
	m.started++
	return m.current, func() {}
}

func (m *manualTicks) tick(t *testing.T) {
	t.Helper()
	m.mu.Lock()
	ch := m.current
	m.mu.Unlock()
	if ch == nil {
		t.Fatal("no countdown running")
	}
	select {
	case ch <- time.Now():
	case <-time.After(2 * time.Second):
		t.Fatal("countdown did not accept tick")
	}
}

// channel returns the tick channel handed to the i-th countdown.
func (m *manualTicks) channel(i int) chan time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.all[i]
}

func (m *manualTicks) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

// drain ticks until the lockout reaches zero.
func drain(t *testing.T, session *auth.Session, ticks *manualTicks) {
	t.Helper()
	for session.State().LockoutRemaining > 0 {
		want := session.State().LockoutRemaining - 1
		ticks.tick(t)
		waitFor(t, func() bool { return session.State().LockoutRemaining == want })
	}
}

type loginFunc func(ctx context.Context, password string) (gateway.LoginResponse, error)

func (f loginFunc) Login(ctx context.Context, password string) (gateway.LoginResponse, error) {
	return f(ctx, password)
}

func newSession(t *testing.T, gw auth.Gateway, store auth.Persister) (*auth.Session, *manualTicks) {
	t.Helper()
	ticks := &manualTicks{}
	session := auth.New(context.Background(), gw, store, auth.WithTicks(ticks.source))
	t.Cleanup(session.Close)
	return session, ticks
}

func TestLockoutSchedule(t *testing.T) {
	want := []uint{0, 2, 5, 10, 30, 30, 30}
	for attempts, seconds := range want {
		if got := auth.LockoutSeconds(uint(attempts)); got != seconds {
			t.Fatalf("LockoutSeconds(%d) = %d, want %d", attempts, got, seconds)
		}
	}
}

func TestLoginSuccessPersistsMode(t *testing.T) {
	fake := testsupport.NewFakeServer(t)
	store := sessionstore.NewMemory()
	session, _ := newSession(t, fake.Client(), store)
	ctx := context.Background()

	if session.IsAuthenticated() {
		t.Fatal("new session should start logged out")
	}
	if err := session.Login(ctx, "secret", false); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !session.IsAuthenticated() || session.State().RememberMe {
		t.Fatalf("unexpected state: %+v", session.State())
	}
	if mode, _ := store.Load(ctx); mode != sessionstore.PersistTransient {
		t.Fatalf("expected transient persistence, got %s", mode)
	}

	if err := session.Login(ctx, "secret", true); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if mode, _ := store.Load(ctx); mode != sessionstore.PersistDurable {
		t.Fatalf("expected durable persistence, got %s", mode)
	}

	restored, _ := newSession(t, fake.Client(), store)
	if state := restored.State(); !state.Authenticated || !state.RememberMe {
		t.Fatalf("expected restored durable login, got %+v", state)
	}
}

func TestRejectedLoginArmsLockoutAndBlocksNetwork(t *testing.T) {
	fake := testsupport.NewFakeServer(t)
	session, ticks := newSession(t, fake.Client(), sessionstore.NewMemory())
	ctx := context.Background()

	err := session.Login(ctx, "wrong", false)
	if !errors.Is(err, services.ErrRejectedCredential) {
		t.Fatalf("expected rejected credential, got %v", err)
	}
	state := session.State()
	if state.FailedAttempts != 1 || state.LockoutRemaining != 2 || state.LastError != "incorrect password" {
		t.Fatalf("unexpected state after rejection: %+v", state)
	}
	if session.CanAttempt() {
		t.Fatal("expected attempts to be blocked")
	}

	err = session.Login(ctx, "secret", false)
	if !errors.Is(err, services.ErrLockedOut) {
		t.Fatalf("expected lockout, got %v", err)
	}
	if remaining, ok := auth.RemainingLockout(err); !ok || remaining != 2 {
		t.Fatalf("expected 2 seconds remaining, got %d ok=%v", remaining, ok)
	}
	if calls := fake.Calls(testsupport.RouteLogin); calls != 1 {
		t.Fatalf("locked login must not reach the backend, calls=%d", calls)
	}

	ticks.tick(t)
	waitFor(t, func() bool { return session.State().LockoutRemaining == 1 })
	ticks.tick(t)
	waitFor(t, func() bool { return session.State().LockoutRemaining == 0 })

	if err := session.Login(ctx, "secret", false); err != nil {
		t.Fatalf("Login after lockout: %v", err)
	}
	state = session.State()
	if !state.Authenticated || state.FailedAttempts != 0 || state.LockoutRemaining != 0 {
		t.Fatalf("expected reset after success, got %+v", state)
	}
}

func TestFourFailuresLockForThirtySeconds(t *testing.T) {
	fake := testsupport.NewFakeServer(t)
	session, ticks := newSession(t, fake.Client(), sessionstore.NewMemory())
	ctx := context.Background()

	wantLockouts := []uint{2, 5, 10, 30}
	for i, want := range wantLockouts {
		if i > 0 {
			drain(t, session, ticks)
		}
		if err := session.Login(ctx, "wrong", false); !errors.Is(err, services.ErrRejectedCredential) {
			t.Fatalf("attempt %d: expected rejection, got %v", i+1, err)
		}
		if got := session.State().LockoutRemaining; got != want {
			t.Fatalf("attempt %d: lockout %d, want %d", i+1, got, want)
		}
	}

	err := session.Login(ctx, "secret", false)
	var locked *auth.LockedOutError
	if !errors.As(err, &locked) || locked.Remaining != 30 {
		t.Fatalf("expected 30 second lockout, got %v", err)
	}
	if got := services.UserMessage(err); got != "too many failed attempts, 30 seconds remaining" {
		t.Fatalf("unexpected message %q", got)
	}

	drain(t, session, ticks)
	if err := session.Login(ctx, "secret", false); err != nil {
		t.Fatalf("Login after countdown: %v", err)
	}
	if session.State().FailedAttempts != 0 {
		t.Fatalf("expected counter reset, got %+v", session.State())
	}
	if ticks.count() != len(wantLockouts) {
		t.Fatalf("expected one countdown per lockout, got %d", ticks.count())
	}
}

func TestOverlappingRejectionsReplaceCountdown(t *testing.T) {
	arrived := make(chan struct{}, 2)
	release := make(chan struct{})
	gw := loginFunc(func(ctx context.Context, password string) (gateway.LoginResponse, error) {
		arrived <- struct{}{}
		<-release
		return gateway.LoginResponse{Success: false}, nil
	})
	session, ticks := newSession(t, gw, sessionstore.NewMemory())
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 2 {
		wg.Go(func() {
			if err := session.Login(ctx, "wrong", false); !errors.Is(err, services.ErrRejectedCredential) {
				t.Errorf("expected rejection, got %v", err)
			}
		})
	}
	<-arrived
	<-arrived
	close(release)
	wg.Wait()

	state := session.State()
	if state.FailedAttempts != 2 || state.LockoutRemaining != 5 {
		t.Fatalf("unexpected state after overlapping rejections: %+v", state)
	}
	started := ticks.count()
	if started < 1 || started > 2 {
		t.Fatalf("expected one or two countdowns, got %d", started)
	}

	ticks.tick(t)
	waitFor(t, func() bool { return session.State().LockoutRemaining == 4 })
	time.Sleep(20 * time.Millisecond)
	if got := session.State().LockoutRemaining; got != 4 {
		t.Fatalf("one tick must decrement once, got %d", got)
	}

	if started == 2 {
		// The replaced countdown is cancelled; a tick on its channel is
		// either refused or discarded by the generation check.
		select {
		case ticks.channel(0) <- time.Now():
		case <-time.After(50 * time.Millisecond):
		}
		time.Sleep(20 * time.Millisecond)
		if got := session.State().LockoutRemaining; got != 4 {
			t.Fatalf("replaced countdown decremented the lockout: %d", got)
		}
	}

	drain(t, session, ticks)
	if !session.CanAttempt() {
		t.Fatal("expected attempts to be allowed after the countdown")
	}
}

func TestTransportFailureLeavesCounterUntouched(t *testing.T) {
	gw := loginFunc(func(context.Context, string) (gateway.LoginResponse, error) {
		return gateway.LoginResponse{}, services.Wrap(services.ErrTransport, "gateway", "login", "dial", errors.New("refused"))
	})
	session, ticks := newSession(t, gw, sessionstore.NewMemory())

	err := session.Login(context.Background(), "secret", true)
	if !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	state := session.State()
	if state.FailedAttempts != 0 || state.LockoutRemaining != 0 || state.LastError != "connection error" {
		t.Fatalf("unexpected state: %+v", state)
	}
	if state.Loading {
		t.Fatal("loading flag should be cleared")
	}
	if ticks.count() != 0 {
		t.Fatal("transport failure must not arm a countdown")
	}
}

func TestLogoutClearsPersistence(t *testing.T) {
	fake := testsupport.NewFakeServer(t)
	store := sessionstore.NewMemory()
	session, _ := newSession(t, fake.Client(), store)
	ctx := context.Background()

	if err := session.Login(ctx, "secret", true); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := session.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if session.IsAuthenticated() || session.State().RememberMe {
		t.Fatalf("expected logged out state, got %+v", session.State())
	}
	if mode, _ := store.Load(ctx); mode != sessionstore.PersistNone {
		t.Fatalf("expected cleared store, got %s", mode)
	}
	if calls := fake.Calls(testsupport.RouteLogin); calls != 1 {
		t.Fatalf("logout must not call the backend, login calls=%d", calls)
	}
}

func TestSubscribersSeeCountdown(t *testing.T) {
	fake := testsupport.NewFakeServer(t)
	session, ticks := newSession(t, fake.Client(), sessionstore.NewMemory())

	var (
		mu   sync.Mutex
		seen []uint
	)
	cancel := session.Subscribe(func(state auth.State) {
		mu.Lock()
		seen = append(seen, state.LockoutRemaining)
		mu.Unlock()
	})
	defer cancel()

	_ = session.Login(context.Background(), "wrong", false)
	drain(t, session, ticks)

	mu.Lock()
	defer mu.Unlock()
	if len(seen) < 3 || seen[len(seen)-1] != 0 {
		t.Fatalf("expected countdown snapshots ending at zero, got %v", seen)
	}
}

func TestCloseStopsCountdown(t *testing.T) {
	fake := testsupport.NewFakeServer(t)
	session, _ := newSession(t, fake.Client(), sessionstore.NewMemory())

	_ = session.Login(context.Background(), "wrong", false)
	done := make(chan struct{})
	go func() {
		session.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not stop the countdown")
	}
	if session.State().LockoutRemaining != 2 {
		t.Fatalf("closing must not alter the lockout, got %+v", session.State())
	}
}
