// Package pid keeps a single logger instance per host.
package pid

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"codeberg.org/mutker/envlogger/internal/errors"
)

const defaultName = "envlogger.pid"

// File is a pid file guarding one running instance.
type File struct {
	path string
}

// New returns the pid file at path, or in the temp directory when path is
// empty.
func New(path string) *File {
	if path == "" {
		path = filepath.Join(os.TempDir(), defaultName)
	}

	return &File{path: path}
}

func (f *File) Path() string {
	return f.path
}

// Acquire writes the current process ID. It fails when the file names a
// live process; unreadable or stale files are replaced.
func (f *File) Acquire() error {
	errFactory := errors.New()

	if running, err := f.running(); err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	} else if running {
		return errFactory.WithData(errors.ErrAlreadyRunning, f.path)
	}

	if err := os.WriteFile(f.path, []byte(strconv.Itoa(os.Getpid())), 0o600); err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}

func (f *File) running() (bool, error) {
	data, err := os.ReadFile(f.path)
	switch {
	case os.IsNotExist(err):
		return false, nil
	case err != nil:
		return false, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return false, nil
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false, nil
	}

	return process.Signal(syscall.Signal(0)) == nil, nil
}

// Release removes the pid file.
func (f *File) Release() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return errors.New().Wrap(errors.ErrInternal, err)
	}

	return nil
}
