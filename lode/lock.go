package lode

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFile is the name of the advisory lock held in an fs root during a run.
const LockFile = ".gridcap.lock"

// ErrLocked is returned when another run holds the storage root.
var ErrLocked = errors.New("storage root is locked by another run")

// LockRoot takes an exclusive advisory lock on the fs storage root so two
// runs never overwrite each other's tiles. The root must exist. S3 roots are
// not locked; the returned release func is then a no-op.
func LockRoot(cfg StoreConfig) (release func() error, err error) {
	if cfg.Backend == BackendS3 {
		return func() error { return nil }, nil
	}

	lock := flock.New(filepath.Join(cfg.Path, LockFile))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, WrapInitError(fmt.Errorf("acquire lock: %w", err), cfg.Path)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, cfg.Path)
	}
	return lock.Unlock, nil
}
