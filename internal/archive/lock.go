package archive

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

const LockFilename = ".redumparchive.lock"

var ErrLocked = errors.New("output root is locked by another run")

type Lock struct {
	flock *flock.Flock
}

// Lock takes an exclusive, non-blocking lock on the output root.
func (l Layout) Lock() (*Lock, error) {
	path := filepath.Join(l.root, LockFilename)
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}
	return &Lock{flock: lock}, nil
}

func (l *Lock) Release() error {
	return l.flock.Unlock()
}
