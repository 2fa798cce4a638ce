package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"

	"RSSDigest/internal/ports"
)

// FileWriter stores reports under a directory, replacing same-day files atomically.
type FileWriter struct {
	dir string
}

var _ ports.ReportWriter = (*FileWriter)(nil)

// NewFileWriter targets dir ("." when empty).
func NewFileWriter(dir string) *FileWriter {
	if dir == "" {
		dir = "."
	}
	return &FileWriter{dir: dir}
}

// Write saves document as dir/name and returns the path.
func (w *FileWriter) Write(_ context.Context, name string, document []byte) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(w.dir, name)
	if err := renameio.WriteFile(path, document, 0o644); err != nil {
		return "", fmt.Errorf("write report %s: %w", path, err)
	}
	return path, nil
}
