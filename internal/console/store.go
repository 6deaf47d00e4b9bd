package console

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"

	"github.com/lexislearn/admin-gateway/pkg/apiclient"
)

// SessionStore persists the console session between invocations.
type SessionStore struct {
	path string
}

// NewSessionStore expands environment variables in path.
func NewSessionStore(path string) *SessionStore {
	return &SessionStore{path: os.ExpandEnv(path)}
}

func (s *SessionStore) Path() string {
	return s.path
}

// Load returns the stored session state. A missing file yields an empty state.
func (s *SessionStore) Load() (apiclient.State, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return apiclient.State{}, nil
	}
	if err != nil {
		return apiclient.State{}, fmt.Errorf("reading session file: %w", err)
	}

	var state apiclient.State
	if err := yaml.Unmarshal(b, &state); err != nil {
		return apiclient.State{}, fmt.Errorf("parsing session file %s: %w", s.path, err)
	}

	return state, nil
}

func (s *SessionStore) Save(state apiclient.State) error {
	b, err := yaml.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating session directory: %w", err)
	}

	if err := os.WriteFile(s.path, b, 0o600); err != nil {
		return fmt.Errorf("writing session file: %w", err)
	}

	return nil
}

// Remove deletes the session file. Removing a missing file is not an error.
func (s *SessionStore) Remove() error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing session file: %w", err)
	}

	return nil
}
