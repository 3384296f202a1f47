package service

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// StartupErrorFileName is the file written by WriteStartupErrorFile.
const StartupErrorFileName = "startup-error.log"

// WriteStartupErrorFile writes a startup error next to the agent log, so it
// is visible even when logging could not be initialized. The file is
// overwritten on each call so that only the most recent error is kept.
func WriteStartupErrorFile(fs afero.Fs, logDir string, err error) error {
	if mkErr := fs.MkdirAll(logDir, 0755); mkErr != nil {
		return mkErr
	}

	path := filepath.Join(logDir, StartupErrorFileName)
	ts := time.Now().Format("2006-01-02 15:04:05")
	content := fmt.Sprintf("[%s] %s STARTUP ERROR\n%v\n", ts, Name, err)
	return afero.WriteFile(fs, path, []byte(content), 0644)
}

// ClearStartupErrorFile removes a startup error left by a previous run.
func ClearStartupErrorFile(fs afero.Fs, logDir string) error {
	err := fs.Remove(filepath.Join(logDir, StartupErrorFileName))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
