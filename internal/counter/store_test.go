package counter

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ierr "github.com/surfbill/surfbill/internal/errors"
	"github.com/surfbill/surfbill/internal/logger"
)

func newTestStore(t *testing.T) (Store, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := NewFileStore(dir, logger.NewNopLogger())
	require.NoError(t, err)
	return store, dir
}

func seedCounter(t *testing.T, dir string, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "counter.json"), []byte(content), 0o644))
}

func TestNextNumberFreshSeries(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	n, err := store.NextNumber(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestNextNumberStrictlyIncreasing(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	seen := map[int64]bool{}
	var prev int64
	for i := 0; i < 50; i++ {
		n, err := store.NextNumber(ctx, "default")
		require.NoError(t, err)
		assert.Greater(t, n, prev)
		assert.False(t, seen[n], "number %d issued twice", n)
		seen[n] = true
		prev = n
	}
}

func TestNextNumberAndPeekScenario(t *testing.T) {
	store, dir := newTestStore(t)
	ctx := context.Background()
	seedCounter(t, dir, `{"series":{"default":5}}`)

	last, err := store.Peek(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, int64(5), last)

	n, err := store.NextNumber(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)

	last, err = store.Peek(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, int64(6), last)

	n, err = store.NextNumber(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
}

func TestSeriesAreIndependent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	n, err := store.NextNumber(ctx, "2026")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = store.NextNumber(ctx, "2027")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = store.NextNumber(ctx, "2026")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestPeekFreshSeriesIsZero(t *testing.T) {
	store, _ := newTestStore(t)

	last, err := store.Peek(context.Background(), "default")
	require.NoError(t, err)
	assert.Equal(t, int64(0), last)
}

func TestPeekDoesNotConsume(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := store.Peek(ctx, "default")
		require.NoError(t, err)
	}

	n, err := store.NextNumber(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestStateSurvivesReopen(t *testing.T) {
	store, dir := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := store.NextNumber(ctx, "default")
		require.NoError(t, err)
	}

	reopened, err := NewFileStore(dir, logger.NewNopLogger())
	require.NoError(t, err)

	n, err := reopened.NextNumber(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestCorruptStateSurfaces(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "invalid json", content: `{]`},
		{name: "missing series key", content: `{"counter": 5}`},
		{name: "negative value", content: `{"series":{"default":-1}}`},
		{name: "non integer value", content: `{"series":{"default":"5"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, dir := newTestStore(t)
			seedCounter(t, dir, tt.content)
			// the mirror must not mask the corruption
			require.NoError(t, os.WriteFile(
				filepath.Join(dir, "counter.backup.json"), []byte(tt.content), 0o644))

			_, err := store.NextNumber(context.Background(), "default")
			require.Error(t, err)
			assert.True(t, ierr.IsCorruptState(err), "expected corrupt state, got %v", err)

			_, err = store.Peek(context.Background(), "default")
			require.Error(t, err)
			assert.True(t, ierr.IsCorruptState(err))
		})
	}
}

func TestRecoversFromMirror(t *testing.T) {
	store, dir := newTestStore(t)
	seedCounter(t, dir, `{broken`)
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "counter.backup.json"),
		[]byte(`{"series":{"default":12}}`), 0o644))

	n, err := store.NextNumber(context.Background(), "default")
	require.NoError(t, err)
	assert.Equal(t, int64(13), n)
}

func TestPersistWritesBothCopies(t *testing.T) {
	store, dir := newTestStore(t)

	_, err := store.NextNumber(context.Background(), "default")
	require.NoError(t, err)

	for _, name := range []string{"counter.json", "counter.backup.json"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, "%s should exist after persist", name)
	}
}
