package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"tycoon/internal/db"
)

func roundTrip(t *testing.T, s Slot) {
	t.Helper()
	ctx := context.Background()

	_, found, err := s.Retrieve(ctx)
	require.NoError(t, err)
	require.False(t, found, "fresh store should be empty")

	first := []byte(`{"schemaVersion":2,"balance":1000,"businesses":[]}`)
	require.NoError(t, s.Persist(ctx, first))
	got, found, err := s.Retrieve(ctx)
	require.NoError(t, err)
	require.True(t, found)
	require.JSONEq(t, string(first), string(got))

	second := []byte(`{"schemaVersion":2,"balance":42.5,"businesses":[{"id":"retail","level":3}]}`)
	require.NoError(t, s.Persist(ctx, second))
	got, found, err = s.Retrieve(ctx)
	require.NoError(t, err)
	require.True(t, found)
	require.JSONEq(t, string(second), string(got), "persist must overwrite the slot")
}

func TestMemoryRoundTrip(t *testing.T) {
	roundTrip(t, NewMemory())
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saves", "game.json.zst")
	f, err := NewFile(path)
	require.NoError(t, err)
	roundTrip(t, f)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileRejectsCorruptSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "game.json.zst")
	require.NoError(t, os.WriteFile(path, []byte("plain text, not zstd"), 0o644))
	f, err := NewFile(path)
	require.NoError(t, err)
	_, _, err = f.Retrieve(context.Background())
	require.Error(t, err)
}

func TestSQLiteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tycoon.sqlite")
	s, err := OpenSQL(context.Background(), DialectSQLite, path, "player-1")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	roundTrip(t, s)
}

func TestSQLiteSlotsArePerPlayer(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tycoon.sqlite")

	a, err := OpenSQL(ctx, DialectSQLite, path, "alice")
	require.NoError(t, err)
	require.NoError(t, a.Persist(ctx, []byte(`{"balance":1}`)))
	require.NoError(t, a.Close())

	// Reopening runs migrations again; they must be idempotent.
	b, err := OpenSQL(ctx, DialectSQLite, path, "bob")
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	_, found, err := b.Retrieve(ctx)
	require.NoError(t, err)
	require.False(t, found)
}

func TestOpenSQLValidation(t *testing.T) {
	ctx := context.Background()
	_, err := OpenSQL(ctx, DialectSQLite, filepath.Join(t.TempDir(), "x.sqlite"), " ")
	require.Error(t, err)
	_, err = OpenSQL(ctx, Dialect("oracle"), "dsn", "p")
	require.Error(t, err)
	_, err = OpenSQL(ctx, DialectPostgres, "", "p")
	require.Error(t, err)
}

func TestOpenByKind(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	for _, kind := range []string{KindSQLite, KindFile, KindMemory} {
		s, closeFn, err := Open(ctx, Options{
			Kind:       kind,
			SQLitePath: filepath.Join(dir, "k.sqlite"),
			SaveFile:   filepath.Join(dir, "k.json.zst"),
			PlayerID:   "p1",
		})
		require.NoError(t, err, kind)
		roundTrip(t, s)
		closeFn()
	}

	_, closeFn, err := Open(ctx, Options{Kind: "carrier-pigeon"})
	require.Error(t, err)
	require.NotNil(t, closeFn)
}

func TestSchemaVersionOf(t *testing.T) {
	require.Equal(t, 2, schemaVersionOf([]byte(`{"schemaVersion":2}`)))
	require.Equal(t, 0, schemaVersionOf([]byte(`{"balance":1}`)))
	require.Equal(t, 0, schemaVersionOf([]byte(`garbage`)))
}

// Postgres-backed stores run only when a database is provided.
func TestPostgresStores(t *testing.T) {
	dsn := os.Getenv("TYCOON_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TYCOON_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	s, err := OpenSQL(ctx, DialectPostgres, dsn, "test-"+t.Name())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	_, err = s.db.ExecContext(ctx, "DELETE FROM game_saves WHERE player_id = $1", "test-"+t.Name())
	require.NoError(t, err)
	roundTrip(t, s)

	pool, err := db.Connect(ctx, dsn, db.Options{ApplicationName: "tycoon-test"})
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	r, err := NewRemote(pool, "remote-"+t.Name())
	require.NoError(t, err)
	require.NoError(t, r.EnsureSchema(ctx))
	_, err = pool.Exec(ctx, "DELETE FROM players WHERE id = $1", "remote-"+t.Name())
	require.NoError(t, err)
	roundTrip(t, r)
}
