// Package sessionstore remembers whether the user is logged in.
//
// Two backends exist: a durable SQLite database in the state directory for
// "remember me" logins and a session-scoped JSON file in the runtime
// directory for everything else. At most one of them holds the auth flag.
package sessionstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"scheinicam/internal/config"
)

type backend interface {
	Load(ctx context.Context) (Flags, error)
	Save(ctx context.Context, flags Flags) error
	Clear(ctx context.Context) error
	Close() error
}

// Store combines the durable and transient backends.
type Store struct {
	durable   backend
	transient backend
}

// Open opens the session stores configured for cfg.
func Open(cfg *config.Config) (*Store, error) {
	if cfg == nil {
		return nil, errors.New("sessionstore: config is nil")
	}
	durable, err := openSQLite(cfg.SessionDBPath())
	if err != nil {
		return nil, err
	}
	return &Store{
		durable:   durable,
		transient: &fileBackend{path: cfg.RuntimeSessionPath()},
	}, nil
}

// NewMemory returns a store that keeps everything in memory.
func NewMemory() *Store {
	return &Store{durable: &memoryBackend{}, transient: &memoryBackend{}}
}

// Load reports how the current login is remembered. A durable flag wins over
// a transient one.
func (s *Store) Load(ctx context.Context) (Persistence, error) {
	durable, err := s.durable.Load(ctx)
	if err != nil {
		return PersistNone, err
	}
	if durable.Auth {
		return PersistDurable, nil
	}
	transient, err := s.transient.Load(ctx)
	if err != nil {
		return PersistNone, err
	}
	if transient.Auth {
		return PersistTransient, nil
	}
	return PersistNone, nil
}

// Save records a login with the given persistence and clears the other mode.
func (s *Store) Save(ctx context.Context, mode Persistence) error {
	switch mode {
	case PersistDurable:
		if err := s.durable.Save(ctx, Flags{Auth: true, RememberMe: true}); err != nil {
			return err
		}
		return s.transient.Clear(ctx)
	case PersistTransient:
		if err := s.transient.Save(ctx, Flags{Auth: true}); err != nil {
			return err
		}
		return s.durable.Clear(ctx)
	case PersistNone:
		return s.Clear(ctx)
	default:
		return fmt.Errorf("sessionstore: unknown persistence %d", mode)
	}
}

// Clear removes every remembered flag.
func (s *Store) Clear(ctx context.Context) error {
	return errors.Join(s.durable.Clear(ctx), s.transient.Clear(ctx))
}

// Close releases the backends.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return errors.Join(s.durable.Close(), s.transient.Close())
}

type memoryBackend struct {
	mu    sync.Mutex
	flags Flags
}

func (m *memoryBackend) Load(context.Context) (Flags, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flags, nil
}

func (m *memoryBackend) Save(_ context.Context, flags Flags) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flags = flags
	return nil
}

func (m *memoryBackend) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flags = Flags{}
	return nil
}

func (m *memoryBackend) Close() error { return nil }
