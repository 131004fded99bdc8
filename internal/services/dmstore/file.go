package dmstore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// FileStore implements the store as a JSON file holding the id set,
// loaded once at startup and rewritten on each new id.
type FileStore struct {
	path   string
	logger *logrus.Logger

	mu  sync.Mutex
	ids map[string]struct{}
}

// NewFileStore creates a file-backed store. A missing file means an
// empty set, not an error.
func NewFileStore(path string, logger *logrus.Logger) (*FileStore, error) {
	s := &FileStore{
		path:   path,
		logger: logger,
		ids:    make(map[string]struct{}),
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	if err := s.load(); err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"path": path,
		"ids":  len(s.ids),
	}).Info("DM context loaded")

	return s, nil
}

func (s *FileStore) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}

	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return nil
}

func (s *FileStore) persist() error {
	ids := make([]string, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	data, err := json.MarshalIndent(ids, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.path, data, 0644)
}

func (s *FileStore) Has(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.ids[id]
	return ok, nil
}

func (s *FileStore) Record(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ids[id]; ok {
		return nil
	}

	s.ids[id] = struct{}{}
	return s.persist()
}

func (s *FileStore) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.ids), nil
}
