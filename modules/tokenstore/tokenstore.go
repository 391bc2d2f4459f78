package tokenstore

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Store keeps the Reddit bearer token for one account on disk so a
// restart does not need a new password grant.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: strings.TrimSpace(path)}
}

func (s *Store) Path() string {
	return s.path
}

// Load returns an empty slice when nothing has been saved yet.
func (s *Store) Load() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []byte{}, nil
		}
		return nil, errors.Wrap(err, "failed to read token file")
	}
	return data, nil
}

func (s *Store) Save(data []byte) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return errors.Wrap(err, "failed to create token dir")
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return errors.Wrap(err, "failed to write token file")
	}
	return nil
}

func (s *Store) Delete() error {
	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to delete token file")
	}
	return nil
}
