package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// fileBackend keeps session-scoped flags in a JSON file under the runtime
// directory, which the login session owns and clears.
type fileBackend struct {
	path string
}

type fileState struct {
	Flags
	SavedAt time.Time `json:"saved_at"`
}

func (b *fileBackend) Load(context.Context) (Flags, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Flags{}, nil
		}
		return Flags{}, fmt.Errorf("read session state: %w", err)
	}
	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		return Flags{}, fmt.Errorf("decode session state: %w", err)
	}
	return state.Flags, nil
}

// Save persists the flags with restricted permissions, replacing the file atomically.
func (b *fileBackend) Save(_ context.Context, flags Flags) error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o700); err != nil {
		return fmt.Errorf("ensure session state directory: %w", err)
	}
	data, err := json.MarshalIndent(fileState{Flags: flags, SavedAt: time.Now().UTC()}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session state: %w", err)
	}
	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write session state: %w", err)
	}
	if err := os.Rename(tmp, b.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace session state: %w", err)
	}
	return nil
}

func (b *fileBackend) Clear(context.Context) error {
	if err := os.Remove(b.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session state: %w", err)
	}
	return nil
}

func (b *fileBackend) Close() error { return nil }
