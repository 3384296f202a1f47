// Package writer persists temperature readings to the side-channel file read
// by external monitoring agents.
package writer

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"tempagent/internal/logger"
	"tempagent/internal/reading"
)

// Writer persists a single reading. Implementations must be safe for
// concurrent use.
type Writer interface {
	Persist(r reading.Reading) error
}

// FileWriter overwrites one file with the latest reading. All writes to the
// path go through mu, so the file never holds interleaved content from two
// writers in this process.
type FileWriter struct {
	fs   afero.Fs
	path string
	mu   sync.Mutex
}

// NewFileWriter creates a FileWriter for path on fs. A nil fs means the
// operating system filesystem.
func NewFileWriter(fs afero.Fs, path string) *FileWriter {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &FileWriter{fs: fs, path: path}
}

// Path returns the file the writer persists to.
func (w *FileWriter) Path() string {
	return w.path
}

// EnsureExists creates the parent directories and an empty file when the
// path does not exist yet. An existing file keeps its content.
func (w *FileWriter) EnsureExists() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.fs.Stat(w.path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat temperature file: %w", err)
	}

	if dir := filepath.Dir(w.path); dir != "" && dir != "." {
		if err := w.fs.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create temperature directory: %w", err)
		}
	}

	f, err := w.fs.OpenFile(w.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return fmt.Errorf("failed to create temperature file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close temperature file: %w", err)
	}

	log := logger.WithComponent("writer")
	log.Info().Str("path", w.path).Msg("Created temperature file")
	return nil
}

// Persist replaces the file content with the reading formatted to one
// fractional digit and a trailing newline. A failure after truncation can
// leave the file empty until the next successful write.
func (w *FileWriter) Persist(r reading.Reading) (err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := w.fs.OpenFile(w.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to open temperature file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close temperature file: %w", cerr)
		}
	}()

	if _, err := f.WriteString(r.String() + "\n"); err != nil {
		return fmt.Errorf("failed to write temperature file: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync temperature file: %w", err)
	}
	return nil
}
