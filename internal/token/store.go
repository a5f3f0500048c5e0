// Package token persists the opaque session token between runs, the CLI
// counterpart of the browser's localStorage slot.
package token

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const defaultFileName = "token"

// Store reads and writes the session token at a fixed path. Set and Clear
// invoke the registered change callback so the UI can refresh its
// authenticated/unauthenticated state.
type Store struct {
	mu       sync.RWMutex
	path     string
	onChange func(authenticated bool)
}

// NewStore creates a store at path. An empty path selects the default
// location under the user config directory.
func NewStore(path string) (*Store, error) {
	if path == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("resolve config dir: %w", err)
		}
		path = filepath.Join(configDir, "pravochat", defaultFileName)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create token dir: %w", err)
	}

	return &Store{path: path}, nil
}

// OnChange registers a callback fired after every Set and Clear.
func (s *Store) OnChange(fn func(authenticated bool)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Set persists the token and notifies the change callback.
func (s *Store) Set(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("empty token")
	}

	s.mu.Lock()
	err := os.WriteFile(s.path, []byte(token), 0o600)
	fn := s.onChange
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	if fn != nil {
		fn(true)
	}
	return nil
}

// Get returns the stored token, or false when none is present. No structural
// validation happens here; liveness is established lazily against the profile
// endpoint.
func (s *Store) Get() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", false
	}

	token := strings.TrimSpace(string(data))
	return token, token != ""
}

// Clear removes the token and notifies the change callback. Clearing an
// already absent token is not an error.
func (s *Store) Clear() error {
	s.mu.Lock()
	err := os.Remove(s.path)
	fn := s.onChange
	s.mu.Unlock()

	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token: %w", err)
	}
	if fn != nil {
		fn(false)
	}
	return nil
}
