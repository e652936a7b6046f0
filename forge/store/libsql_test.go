package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLibSQL(t *testing.T) *LibSQLStore {
	t.Helper()
	if testing.Short() {
		t.Skip("libsql driver needs cgo; skipped in -short runs")
	}

	dsn := "file:" + filepath.Join(t.TempDir(), "forge.db")
	s, err := OpenLibSQL(dsn, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// TestLibSQLStore_RoundTrip tests save/load through the database, including
// the migration run on open.
func TestLibSQLStore_RoundTrip(t *testing.T) {
	s := openTestLibSQL(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "c1", sampleState(t)))

	loaded, err := s.Load(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "track the flaky test", loaded.Query)
	require.Len(t, loaded.Iterations, 1)
	assert.Equal(t, "reran it ten times", loaded.Iterations[0].Observation)
	require.Len(t, loaded.Iterations[0].Tools, 1)
	assert.Equal(t, "2 failures", loaded.Iterations[0].Tools[0].Output)
}

// TestLibSQLStore_SaveUpserts tests that saving the same id replaces the
// stored snapshot.
func TestLibSQLStore_SaveUpserts(t *testing.T) {
	s := openTestLibSQL(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "c1", sampleState(t)))

	updated := sampleState(t)
	updated.Summary = "revised"
	require.NoError(t, s.Save(ctx, "c1", updated))

	loaded, err := s.Load(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "revised", loaded.Summary)

	ids, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, ids)
}

func TestLibSQLStore_NotFound(t *testing.T) {
	s := openTestLibSQL(t)

	_, err := s.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLibSQLStore_ListAndDelete(t *testing.T) {
	s := openTestLibSQL(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "a", sampleState(t)))
	require.NoError(t, s.Save(ctx, "b", sampleState(t)))

	ids, err := s.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, ids)

	require.NoError(t, s.Delete(ctx, "a"))
	ids, err = s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids)

	assert.NoError(t, s.Delete(ctx, "missing"))
}
