package manifest

import (
	"fmt"
	"os"
	"path/filepath"
)

// LockFilename is the advisory lock file held inside a playlist folder for the duration of a sync run.
const LockFilename = ".plsync.lock"

// Lock is an exclusive advisory lock on a playlist folder.
type Lock struct {
	f    *os.File
	path string
}

// AcquireLock takes the folder lock of dir without blocking.
// It returns [shared.ErrLocked] when another run, in this or any other process, holds it.
func AcquireLock(dir string) (*Lock, error) {
	path := filepath.Join(dir, LockFilename)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}
	if err := lockFile(f); err != nil {
		f.Close()
		return nil, err
	}
	return &Lock{f: f, path: path}, nil
}

// Release drops the lock. The lock file itself stays in place.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	err := unlockFile(l.f)
	if cerr := l.f.Close(); err == nil {
		err = cerr
	}
	l.f = nil
	return err
}
