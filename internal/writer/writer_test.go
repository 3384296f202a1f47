package writer

import (
	"errors"
	"os"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempagent/internal/logger"
	"tempagent/internal/reading"
)

func init() {
	_ = logger.Init(logger.Config{Level: "disabled"})
}

const testPath = "/OpenHardwareMonitor/temperature.txt"

func readFile(t *testing.T, fs afero.Fs) string {
	t.Helper()
	data, err := afero.ReadFile(fs, testPath)
	require.NoError(t, err)
	return string(data)
}

func TestEnsureExists_CreatesEmptyFileAndDirectories(t *testing.T) {
	fs := afero.NewMemMapFs()
	w := NewFileWriter(fs, testPath)

	require.NoError(t, w.EnsureExists())

	isDir, err := afero.IsDir(fs, "/OpenHardwareMonitor")
	require.NoError(t, err)
	assert.True(t, isDir)
	assert.Equal(t, "", readFile(t, fs))
}

func TestEnsureExists_LeavesExistingContent(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, testPath, []byte("99.9\n"), 0644))

	w := NewFileWriter(fs, testPath)
	require.NoError(t, w.EnsureExists())
	require.NoError(t, w.EnsureExists())

	assert.Equal(t, "99.9\n", readFile(t, fs))
}

func TestEnsureExists_ReadOnlyFilesystem(t *testing.T) {
	w := NewFileWriter(afero.NewReadOnlyFs(afero.NewMemMapFs()), testPath)
	assert.Error(t, w.EnsureExists())
}

func TestPersist_OverwritesWithOneDecimal(t *testing.T) {
	fs := afero.NewMemMapFs()
	w := NewFileWriter(fs, testPath)
	require.NoError(t, w.EnsureExists())

	require.NoError(t, w.Persist(reading.Reading{SensorName: "CPU Package", Celsius: 55.1}))
	assert.Equal(t, "55.1\n", readFile(t, fs))

	require.NoError(t, w.Persist(reading.Reading{SensorName: "CPU Package", Celsius: 40}))
	assert.Equal(t, "40.0\n", readFile(t, fs))
}

func TestPersist_ShorterValueTruncates(t *testing.T) {
	fs := afero.NewMemMapFs()
	w := NewFileWriter(fs, testPath)
	require.NoError(t, w.EnsureExists())

	require.NoError(t, w.Persist(reading.Reading{SensorName: "CPU Package", Celsius: 100}))
	assert.Equal(t, "100.0\n", readFile(t, fs))

	require.NoError(t, w.Persist(reading.Reading{SensorName: "CPU Package", Celsius: 9.5}))
	assert.Equal(t, "9.5\n", readFile(t, fs))
}

func TestPersist_CreatesMissingFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/OpenHardwareMonitor", 0755))
	w := NewFileWriter(fs, testPath)

	require.NoError(t, w.Persist(reading.Reading{SensorName: "Core (Tctl/Tdie)", Celsius: 61.4}))
	assert.Equal(t, "61.4\n", readFile(t, fs))
}

// flakyFs fails OpenFile while failing is set.
type flakyFs struct {
	afero.Fs
	failing bool
}

var errDiskGone = errors.New("disk gone")

func (f *flakyFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if f.failing {
		return nil, &os.PathError{Op: "open", Path: name, Err: errDiskGone}
	}
	return f.Fs.OpenFile(name, flag, perm)
}

func TestPersist_FailureThenRecovery(t *testing.T) {
	fs := &flakyFs{Fs: afero.NewMemMapFs()}
	w := NewFileWriter(fs, testPath)
	require.NoError(t, w.EnsureExists())

	fs.failing = true
	err := w.Persist(reading.Reading{SensorName: "CPU Package", Celsius: 50})
	require.Error(t, err)
	assert.ErrorIs(t, err, errDiskGone)

	fs.failing = false
	require.NoError(t, w.Persist(reading.Reading{SensorName: "CPU Package", Celsius: 51.5}))
	assert.Equal(t, "51.5\n", readFile(t, fs))
}

func TestNewFileWriter_DefaultsToOsFs(t *testing.T) {
	w := NewFileWriter(nil, testPath)
	_, ok := w.fs.(*afero.OsFs)
	assert.True(t, ok)
	assert.Equal(t, testPath, w.Path())
}
