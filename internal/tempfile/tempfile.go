// Package tempfile manages the locally staged source images that avatar jobs
// reference. A staged file is created by the producer before enqueue, is
// owned exclusively by the job that references it, and is released by the
// pipeline on every terminal path.
package tempfile

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrEmptyImage is returned by Stage when the source reader yields no bytes.
// Jobs must reference a non-empty image at enqueue time.
var ErrEmptyImage = errors.New("tempfile: staged image is empty")

// Manager stages source images into a dedicated directory and releases them
// once the referencing job reaches a terminal state.
type Manager struct {
	dir    string
	logger *slog.Logger
}

// NewManager creates a Manager rooted at dir, creating the directory if
// needed.
func NewManager(dir string, logger *slog.Logger) (*Manager, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("tempfile: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("tempfile: ensure directory: %w", err)
	}
	return &Manager{
		dir:    dir,
		logger: logger.With("component", "tempfile_manager"),
	}, nil
}

// Dir returns the staging directory.
func (m *Manager) Dir() string {
	return m.dir
}

// Stage copies the source image into the staging directory under a unique
// name and returns its path. The caller owns the returned path until it is
// passed to Remove. An empty source is rejected.
func (m *Manager) Stage(src io.Reader, ext string) (string, error) {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	path := filepath.Join(m.dir, uuid.New().String()+ext)

	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("tempfile: create staged file: %w", err)
	}

	written, err := io.Copy(dst, src)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("tempfile: write staged file: %w", err)
	}
	if written == 0 {
		_ = os.Remove(path)
		return "", ErrEmptyImage
	}

	m.logger.Debug("staged source image", "path", path, "bytes", written)
	return path, nil
}

// Remove deletes the staged file at path. It is idempotent: removing a path
// that no longer exists is not an error, so every terminal branch of the
// pipeline can call it without coordination.
func (m *Manager) Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			m.logger.Debug("staged file already removed", "path", path)
			return nil
		}
		return fmt.Errorf("tempfile: remove staged file: %w", err)
	}
	m.logger.Debug("removed staged file", "path", path)
	return nil
}
