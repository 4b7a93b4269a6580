package credentials

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps secrets in a JSON object on disk so they survive restarts.
type FileStore struct {
	path    string
	mu      sync.RWMutex
	secrets map[Purpose]string
}

// NewFileStore creates a store backed by path. Call Load to read existing
// secrets.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, secrets: make(map[Purpose]string)}
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads secrets from disk; a missing file is an empty store.
func (s *FileStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.secrets = make(map[Purpose]string)

	if s.path == "" {
		return errors.New("credential store path not set")
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		_ = os.MkdirAll(filepath.Dir(s.path), 0o700)
		return nil
	}
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for k, v := range raw {
		if k != "" {
			s.secrets[Purpose(k)] = v
		}
	}
	return nil
}

func (s *FileStore) Get(purpose Purpose) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	secret, ok := s.secrets[purpose]
	return secret, ok
}

func (s *FileStore) Set(purpose Purpose, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[purpose] = secret
	return s.saveLocked()
}

func (s *FileStore) Clear(purpose Purpose) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.secrets[purpose]; !ok {
		return nil
	}
	delete(s.secrets, purpose)
	return s.saveLocked()
}

// saveLocked writes the map atomically with 0600 permissions.
// Caller MUST hold s.mu.
func (s *FileStore) saveLocked() error {
	raw := make(map[string]string, len(s.secrets))
	for k, v := range s.secrets {
		raw[string(k)] = v
	}
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
