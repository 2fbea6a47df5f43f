package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"

	ierr "github.com/surfbill/surfbill/internal/errors"
	"github.com/surfbill/surfbill/internal/logger"
)

const (
	lockFileName = "surfbill.lock"

	// DefaultLockStaleAfter is how old an abandoned lock file may be
	// before a new instance takes it over (crashed predecessor)
	DefaultLockStaleAfter = 30 * time.Second

	lockRetryInterval = 100 * time.Millisecond
	lockRetryAttempts = 5
)

// Lock is the single-instance guard for the data directory. The
// document store and counter file are owned exclusively by one process;
// the shell acquires the lock before touching either.
type Lock struct {
	path   string
	logger *logger.Logger
}

// AcquireLock creates the exclusive lock file under dataDir, retrying
// briefly and taking over locks older than staleAfter.
func AcquireLock(dataDir string, staleAfter time.Duration, log *logger.Logger) (*Lock, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, ierr.WithError(err).
			WithHintf("failed to create data directory %s", dataDir).
			Mark(ierr.ErrIO)
	}

	l := &Lock{
		path:   filepath.Join(dataDir, lockFileName),
		logger: log,
	}

	policy := backoff.WithMaxRetries(
		backoff.NewConstantBackOff(lockRetryInterval), lockRetryAttempts)

	err := backoff.Retry(func() error {
		return l.tryAcquire(staleAfter)
	}, policy)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("another instance appears to be running; close it or remove the stale lock file").
			Mark(ierr.ErrSystem)
	}
	return l, nil
}

func (l *Lock) tryAcquire(staleAfter time.Duration) error {
	if info, err := os.Stat(l.path); err == nil {
		if time.Since(info.ModTime()) <= staleAfter {
			return fmt.Errorf("lock file %s held by another instance", l.path)
		}
		l.logger.Warnw("removing stale instance lock", "path", l.path)
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = fmt.Fprintf(f, "%d\n", os.Getpid())
	return err
}

// Release removes the lock file
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return ierr.WithError(err).
			WithHintf("failed to remove lock file %s", l.path).
			Mark(ierr.ErrIO)
	}
	return nil
}
