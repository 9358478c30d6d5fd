// Package cas stores build info records, one JSON file per task key.
package cas

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.trai.ch/garden/internal/core/domain"
	"go.trai.ch/garden/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.BuildInfoStore = (*Store)(nil)

// Store implements ports.BuildInfoStore using a file-per-key strategy.
type Store struct {
	dir string
}

// NewStore creates a BuildInfoStore backed by dir. The directory is created on first write.
func NewStore(dir string) *Store {
	return &Store{dir: filepath.Clean(dir)}
}

// Get retrieves the build info for key. It returns nil, nil when none is stored.
func (s *Store) Get(key domain.TaskKey) (*domain.BuildInfo, error) {
	filename := s.filename(key)
	data, err := os.ReadFile(filename) //nolint:gosec // Hashed filename inside the store directory
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, zerr.With(fmt.Errorf("%w: %w", domain.ErrStoreReadFailed, err), "key", key.String())
	}

	var info domain.BuildInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, zerr.With(fmt.Errorf("%w: %w", domain.ErrStoreUnmarshalFailed, err), "key", key.String())
	}

	return &info, nil
}

// Put stores info under its key, replacing any previous record.
func (s *Store) Put(info domain.BuildInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return zerr.With(fmt.Errorf("%w: %w", domain.ErrStoreMarshalFailed, err), "key", info.Key.String())
	}

	if err := os.MkdirAll(s.dir, domain.DirPerm); err != nil {
		return zerr.With(fmt.Errorf("%w: %w", domain.ErrStoreCreateFailed, err), "dir", s.dir)
	}

	// Write then rename so concurrent readers never see a partial record.
	filename := s.filename(info.Key)
	tmp, err := os.CreateTemp(s.dir, ".buildinfo-*")
	if err != nil {
		return zerr.With(fmt.Errorf("%w: %w", domain.ErrStoreWriteFailed, err), "key", info.Key.String())
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return zerr.With(fmt.Errorf("%w: %w", domain.ErrStoreWriteFailed, err), "key", info.Key.String())
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return zerr.With(fmt.Errorf("%w: %w", domain.ErrStoreWriteFailed, err), "key", info.Key.String())
	}
	if err := os.Rename(tmp.Name(), filename); err != nil {
		_ = os.Remove(tmp.Name())
		return zerr.With(fmt.Errorf("%w: %w", domain.ErrStoreWriteFailed, err), "key", info.Key.String())
	}

	return nil
}

// Clear removes every stored record.
func (s *Store) Clear() error {
	if err := os.RemoveAll(s.dir); err != nil {
		return zerr.With(zerr.Wrap(err, "clear build info store"), "dir", s.dir)
	}
	return nil
}

func (s *Store) filename(key domain.TaskKey) string {
	hash := sha256.Sum256([]byte(key))
	return filepath.Join(s.dir, hex.EncodeToString(hash[:])+".json")
}
