// Package hook manages the shell-hook integration: the persisted
// enabled/disabled state consulted on every hook-guarded shell event, the
// per-shell hook scripts, and their installation into shell config files.
package hook

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// EnvDisable is the environment variable that forces the hook off for one
// process without touching the persisted state.
const EnvDisable = "WHY_HOOK_DISABLE"

// State is the persisted hook toggle. Mutated only by explicit
// enable/disable commands; read on every hook-guarded shell event.
type State struct {
	Enabled bool `json:"enabled"`
}

// ErrNoState is returned by LoadState when the state file does not exist
// (the hook has never been enabled).
var ErrNoState = errors.New("no hook state recorded")

// StatePath returns the hook state file location:
// $XDG_STATE_HOME/why/hook.json or ~/.local/state/why/hook.json.
func StatePath() (string, error) {
	base := os.Getenv("XDG_STATE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving state directory: %w", err)
		}
		base = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(base, "why", "hook.json"), nil
}

// LoadState reads the persisted hook state. Returns ErrNoState when no
// state has ever been written.
func LoadState() (*State, error) {
	path, err := StatePath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoState
		}
		return nil, fmt.Errorf("failed to read hook state: %w", err)
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse hook state: %w", err)
	}
	return &s, nil
}

// SaveState persists s atomically via a temp file + rename.
func SaveState(s *State) error {
	path, err := StatePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to persist hook state: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "hook-*.json.tmp")
	if err != nil {
		return fmt.Errorf("failed to persist hook state: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to persist hook state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to persist hook state: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to persist hook state: %w", err)
	}
	return nil
}

// Enable persists the hook as enabled.
func Enable() error { return SaveState(&State{Enabled: true}) }

// Disable persists the hook as disabled.
func Disable() error { return SaveState(&State{Enabled: false}) }

// IsEnabled reports whether hook-triggered explanations should run in this
// process. The WHY_HOOK_DISABLE=1 environment override wins over the
// persisted value. Absent state means disabled: the hook only fires after
// an explicit enable (install performs one).
func IsEnabled() bool {
	if os.Getenv(EnvDisable) == "1" {
		return false
	}
	s, err := LoadState()
	if err != nil {
		return false
	}
	return s.Enabled
}
