package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tower-qa/tower-qa/internal/models"
)

const credentialsFileName = "credentials.json"

type byHost map[string]models.Credentials

// DiskStore implements Store with one JSON file mapping controller hosts to
// credentials. The file is readable by its owner only.
type DiskStore struct {
	path string
	mu   sync.RWMutex
}

func NewDiskStore(folder string) *DiskStore {
	return &DiskStore{path: filepath.Join(folder, credentialsFileName)}
}

// DefaultFolder is the towerqa folder under the user config directory, or
// the working directory when there is none.
func DefaultFolder() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, "towerqa")
}

func (s *DiskStore) Save(creds models.Credentials) error {
	return s.update(func(all byHost) {
		all[hostKey(creds.Host)] = creds
	})
}

func (s *DiskStore) Load(host string) (*models.Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all, err := s.load()
	if err != nil {
		return nil, err
	}
	creds, ok := all[hostKey(host)]
	if !ok {
		return nil, ErrNotFound
	}
	return &creds, nil
}

func (s *DiskStore) Delete(host string) error {
	return s.update(func(all byHost) {
		delete(all, hostKey(host))
	})
}

func (s *DiskStore) Exists(host string) bool {
	_, err := s.Load(host)
	return err == nil
}

// update applies change under the write lock. An empty result removes the
// file instead of leaving "{}" behind.
func (s *DiskStore) update(change func(byHost)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return err
	}
	change(all)

	if len(all) == 0 {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing %s: %w", s.path, err)
		}
		return nil
	}
	return s.store(all)
}

func (s *DiskStore) load() (byHost, error) {
	all := byHost{}
	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return all, nil
	case err != nil:
		return nil, err
	}
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", s.path, err)
	}
	return all, nil
}

// store writes through a temporary file so a crash never leaves a
// truncated credentials file.
func (s *DiskStore) store(all byHost) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), credentialsFileName+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

func hostKey(host string) string {
	return strings.TrimRight(strings.ToLower(host), "/")
}
