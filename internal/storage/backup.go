package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"

	ierr "github.com/surfbill/surfbill/internal/errors"
	"github.com/surfbill/surfbill/internal/types"
)

const snapshotPrefix = "snapshot_"

// Backup copies every current invoice document plus the counter files
// into a timestamped snapshot directory under <data_dir>/backups and
// prunes snapshots beyond the configured retention. Caller-triggered;
// snapshots are never read by normal load operations.
func (s *Store) Backup(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshotID := fmt.Sprintf("%s%s_%s",
		snapshotPrefix,
		time.Now().Format("20060102_150405"),
		types.GenerateUUID())
	snapshotDir := filepath.Join(s.backupsDir, snapshotID)

	if err := os.MkdirAll(snapshotDir, 0o755); err != nil {
		return "", ierr.WithError(err).
			WithHintf("failed to create snapshot directory %s", snapshotDir).
			Mark(ierr.ErrIO)
	}

	entries, err := os.ReadDir(s.invoicesDir)
	if err != nil {
		return "", ierr.WithError(err).
			WithHintf("failed to scan %s", s.invoicesDir).
			Mark(ierr.ErrIO)
	}

	p := pool.New().WithMaxGoroutines(scanWorkers).WithErrors()
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), documentExt) {
			continue
		}
		name := entry.Name()
		p.Go(func() error {
			return copyFile(
				filepath.Join(s.invoicesDir, name),
				filepath.Join(snapshotDir, name))
		})
	}
	if err := p.Wait(); err != nil {
		return "", err
	}

	// the counter state travels with the documents so a restore never
	// reissues an already used number
	counterMirror := filepath.Join(filepath.Dir(s.counterPath), "counter.backup.json")
	for _, counterFile := range []string{s.counterPath, counterMirror} {
		if _, err := os.Stat(counterFile); err != nil {
			continue
		}
		if err := copyFile(counterFile, filepath.Join(snapshotDir, filepath.Base(counterFile))); err != nil {
			return "", err
		}
	}

	if err := s.pruneSnapshots(); err != nil {
		return "", err
	}

	s.logger.Infow("created backup snapshot", "path", snapshotDir)
	return snapshotDir, nil
}

// backupRevision copies the current document to the backup directory
// before an overwrite, then prunes old revisions for the same number.
// Called with the write lock held.
func (s *Store) backupRevision(number, path string) error {
	revision := fmt.Sprintf("%s_%s%s", number, time.Now().Format("20060102_150405.000"), documentExt)
	if err := copyFile(path, filepath.Join(s.backupsDir, revision)); err != nil {
		return err
	}
	s.pruneRevisions(number)
	return nil
}

// pruneSnapshots removes the oldest snapshot directories beyond the
// retention count. Snapshot names sort chronologically by construction.
func (s *Store) pruneSnapshots() error {
	entries, err := os.ReadDir(s.backupsDir)
	if err != nil {
		return ierr.WithError(err).
			WithHintf("failed to scan %s", s.backupsDir).
			Mark(ierr.ErrIO)
	}

	var snapshots []string
	for _, entry := range entries {
		if entry.IsDir() && strings.HasPrefix(entry.Name(), snapshotPrefix) {
			snapshots = append(snapshots, entry.Name())
		}
	}
	if len(snapshots) <= s.retention {
		return nil
	}

	sort.Strings(snapshots)
	for _, name := range snapshots[:len(snapshots)-s.retention] {
		if err := os.RemoveAll(filepath.Join(s.backupsDir, name)); err != nil {
			s.logger.Warnw("failed to prune old snapshot", "snapshot", name, "error", err)
		}
	}
	return nil
}

// pruneRevisions keeps the newest retention revisions for one invoice
func (s *Store) pruneRevisions(number string) {
	entries, err := os.ReadDir(s.backupsDir)
	if err != nil {
		return
	}

	prefix := number + "_"
	var revisions []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), prefix) {
			revisions = append(revisions, entry.Name())
		}
	}
	if len(revisions) <= s.retention {
		return
	}

	sort.Strings(revisions)
	for _, name := range revisions[:len(revisions)-s.retention] {
		if err := os.Remove(filepath.Join(s.backupsDir, name)); err != nil {
			s.logger.Warnw("failed to prune old revision", "revision", name, "error", err)
		}
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return ierr.WithError(err).
			WithHintf("failed to open %s", src).
			Mark(ierr.ErrIO)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return ierr.WithError(err).
			WithHintf("failed to create %s", dst).
			Mark(ierr.ErrIO)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return ierr.WithError(err).
			WithHintf("failed to copy %s", src).
			Mark(ierr.ErrIO)
	}
	return out.Sync()
}
