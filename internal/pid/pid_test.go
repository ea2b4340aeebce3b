package pid

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"codeberg.org/mutker/envlogger/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireAndRelease(t *testing.T) {
	f := New(filepath.Join(t.TempDir(), "test.pid"))

	require.NoError(t, f.Acquire())
	data, err := os.ReadFile(f.Path())
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))

	require.NoError(t, f.Release())
	_, err = os.Stat(f.Path())
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, f.Release())
}

func TestAcquireDetectsRunningInstance(t *testing.T) {
	f := New(filepath.Join(t.TempDir(), "test.pid"))
	require.NoError(t, f.Acquire())

	err := New(f.Path()).Acquire()
	assert.True(t, errors.HasCode(err, errors.ErrAlreadyRunning))
}

func TestAcquireReplacesGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.pid")
	require.NoError(t, os.WriteFile(path, []byte("not a pid\n"), 0o600))

	assert.NoError(t, New(path).Acquire())
}

func TestDefaultPath(t *testing.T) {
	assert.Equal(t, filepath.Join(os.TempDir(), "envlogger.pid"), New("").Path())
}
