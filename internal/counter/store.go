package counter

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	jsoniter "github.com/json-iterator/go"

	ierr "github.com/surfbill/surfbill/internal/errors"
	"github.com/surfbill/surfbill/internal/logger"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Store issues sequential invoice numbers per series. Issued numbers
// are strictly increasing with at-least-once persistence: a crash
// between persist and use may leave a gap, never a duplicate.
type Store interface {
	// NextNumber issues the next number for a series: strictly greater
	// than every previously issued number for it
	NextNumber(ctx context.Context, series string) (int64, error)

	// Peek returns the highest issued number for a series without
	// consuming one; 0 for a fresh series
	Peek(ctx context.Context, series string) (int64, error)
}

// state is the persisted counter document: highest issued number per
// series. Values must be non-negative integers or the state is corrupt.
type state struct {
	Series map[string]int64 `json:"series"`
}

type fileStore struct {
	mu         sync.Mutex
	path       string
	mirrorPath string
	logger     *logger.Logger
}

// NewFileStore creates a counter store persisting under dir as
// counter.json with a counter.backup.json mirror
func NewFileStore(dir string, log *logger.Logger) (Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, ierr.WithError(err).
			WithHint("failed to create counter directory").
			Mark(ierr.ErrIO)
	}
	return &fileStore{
		path:       filepath.Join(dir, "counter.json"),
		mirrorPath: filepath.Join(dir, "counter.backup.json"),
		logger:     log,
	}, nil
}

func (s *fileStore) NextNumber(ctx context.Context, series string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err != nil {
		return 0, err
	}

	next := st.Series[series] + 1
	st.Series[series] = next

	if err := s.persist(st); err != nil {
		return 0, err
	}

	s.logger.Debugw("issued invoice number", "series", series, "number", next)
	return next, nil
}

func (s *fileStore) Peek(ctx context.Context, series string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err != nil {
		return 0, err
	}
	return st.Series[series], nil
}

// load reads the persisted state. A missing file is a fresh store; an
// unreadable main file falls back to the mirror; when both are
// unreadable the error surfaces instead of silently resetting, since a
// reset risks issuing colliding numbers.
func (s *fileStore) load() (*state, error) {
	st, err := readStateFile(s.path)
	if err == nil {
		return st, nil
	}
	if os.IsNotExist(err) {
		return &state{Series: map[string]int64{}}, nil
	}

	s.logger.Warnw("counter file unreadable, trying backup mirror",
		"path", s.path, "error", err)

	st, mirrorErr := readStateFile(s.mirrorPath)
	if mirrorErr == nil {
		s.logger.Infow("recovered counter state from backup mirror",
			"path", s.mirrorPath)
		return st, nil
	}

	return nil, ierr.WithError(err).
		WithHint("counter state is unreadable and the backup mirror did not help; restore from a backup before issuing numbers").
		Mark(ierr.ErrCorruptState)
}

func readStateFile(path string) (*state, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, ierr.WithError(err).
			WithHintf("counter file %s is not valid json", path).
			Mark(ierr.ErrCorruptState)
	}
	if st.Series == nil {
		return nil, ierr.NewError("counter file has no series map").
			WithHintf("counter file %s is missing the series key", path).
			Mark(ierr.ErrCorruptState)
	}
	for series, value := range st.Series {
		if value < 0 {
			return nil, ierr.NewError("counter value is negative").
				WithHintf("series %q holds invalid value %d", series, value).
				Mark(ierr.ErrCorruptState)
		}
	}
	return &st, nil
}

// persist writes the mirror first, then replaces the main file via
// write-new-then-rename so a crash never leaves a torn main file
func (s *fileStore) persist(st *state) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return ierr.WithError(err).
			WithHint("failed to encode counter state").
			Mark(ierr.ErrSystem)
	}

	if err := writeFileAtomic(s.mirrorPath, data); err != nil {
		return err
	}
	return writeFileAtomic(s.path, data)
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return ierr.WithError(err).
			WithHintf("failed to write %s", tmp).
			Mark(ierr.ErrIO)
	}
	if err := os.Rename(tmp, path); err != nil {
		return ierr.WithError(err).
			WithHintf("failed to replace %s", path).
			Mark(ierr.ErrIO)
	}
	return nil
}
