package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"

	"RSSDigest/internal/domain"
	"RSSDigest/internal/ports"
)

// FileStore keeps each checkpoint as a JSON array in {dir}/{prefix}_{name}.json.
type FileStore struct {
	dir    string
	prefix string
}

var _ ports.CheckpointStore = (*FileStore)(nil)

// NewFileStore creates the directory if needed.
func NewFileStore(dir, prefix string) (*FileStore, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &FileStore{dir: dir, prefix: prefix}, nil
}

// Path returns the file backing a checkpoint.
func (s *FileStore) Path(name ports.Checkpoint) string {
	return filepath.Join(s.dir, Key(s.prefix, name)+".json")
}

// Exists reports whether the checkpoint file is present.
func (s *FileStore) Exists(_ context.Context, name ports.Checkpoint) (bool, error) {
	_, err := os.Stat(s.Path(name))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", name, err)
}

// Load reads a checkpoint. A missing file is ok=false, not an error.
func (s *FileStore) Load(_ context.Context, name ports.Checkpoint) ([]domain.Item, bool, error) {
	path := s.Path(name)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read %s: %w", path, err)
	}

	items, err := decodeItems(path, data)
	if err != nil {
		return nil, false, err
	}
	return items, true, nil
}

// Save writes to a temp file in the same directory and renames it into place,
// so readers see either the previous file or the complete new one.
func (s *FileStore) Save(_ context.Context, name ports.Checkpoint, items []domain.Item) error {
	data, err := encodeItems(items)
	if err != nil {
		return err
	}
	if err := renameio.WriteFile(s.Path(name), data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// Delete removes the checkpoint; absent files are ignored.
func (s *FileStore) Delete(_ context.Context, name ports.Checkpoint) error {
	err := os.Remove(s.Path(name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}

// Rename moves from onto to in one rename(2), replacing to if present.
func (s *FileStore) Rename(_ context.Context, from, to ports.Checkpoint) error {
	err := os.Rename(s.Path(from), s.Path(to))
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("rename %s: %w", from, ErrNotFound)
	}
	return fmt.Errorf("rename %s to %s: %w", from, to, err)
}
