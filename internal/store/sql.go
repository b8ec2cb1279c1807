package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationFS embed.FS

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// SQLStore keeps one save slot per player in a SQL table.
type SQLStore struct {
	dialect  Dialect
	db       *sql.DB
	playerID string
}

// OpenSQL opens the database, applies pending migrations and returns a store
// bound to playerID. For sqlite dsn is a file path.
func OpenSQL(ctx context.Context, dialect Dialect, dsn, playerID string) (*SQLStore, error) {
	if strings.TrimSpace(playerID) == "" {
		return nil, errors.New("player id is required")
	}
	var driverName string
	switch dialect {
	case DialectSQLite:
		driverName = "sqlite"
		if dsn == "" {
			return nil, errors.New("sqlite path is required")
		}
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	case DialectPostgres:
		driverName = "pgx"
		if dsn == "" {
			return nil, errors.New("postgres dsn is required")
		}
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s database: %w", dialect, err)
	}

	s := &SQLStore{dialect: dialect, db: db, playerID: playerID}
	if err := s.applyMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) bind(pos int) string {
	if s.dialect == DialectPostgres {
		return fmt.Sprintf("$%d", pos)
	}
	return "?"
}

func (s *SQLStore) applyMigrations(ctx context.Context) error {
	create := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL
		)
	`
	if _, err := s.db.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	applied := map[string]bool{}
	rows, err := s.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("read schema_migrations: %w", err)
	}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return fmt.Errorf("scan schema migration: %w", err)
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterate schema migrations: %w", err)
	}
	rows.Close()

	files, err := fs.Glob(migrationFS, fmt.Sprintf("migrations/%s/*.sql", s.dialect))
	if err != nil {
		return fmt.Errorf("glob migrations: %w", err)
	}
	sort.Strings(files)
	record := fmt.Sprintf("INSERT INTO schema_migrations (version, applied_at) VALUES (%s, %s)", s.bind(1), s.bind(2))
	for _, file := range files {
		base := filepath.Base(file)
		if applied[base] {
			continue
		}
		body, err := migrationFS.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration tx %s: %w", file, err)
		}
		if _, err := tx.ExecContext(ctx, string(body)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
		if _, err := tx.ExecContext(ctx, record, base, time.Now().UTC()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}
	}
	return nil
}

// Persist upserts the player's save slot.
func (s *SQLStore) Persist(ctx context.Context, snapshot []byte) error {
	q := fmt.Sprintf(`
		INSERT INTO game_saves (player_id, schema_version, snapshot, saved_at)
		VALUES (%s, %s, %s, %s)
		ON CONFLICT (player_id) DO UPDATE SET
			schema_version = excluded.schema_version,
			snapshot = excluded.snapshot,
			saved_at = excluded.saved_at
	`, s.bind(1), s.bind(2), s.bind(3), s.bind(4))
	if _, err := s.db.ExecContext(ctx, q, s.playerID, schemaVersionOf(snapshot), string(snapshot), time.Now().UTC()); err != nil {
		return fmt.Errorf("save game: %w", err)
	}
	return nil
}

func (s *SQLStore) Retrieve(ctx context.Context) ([]byte, bool, error) {
	q := fmt.Sprintf("SELECT snapshot FROM game_saves WHERE player_id = %s", s.bind(1))
	var snapshot string
	err := s.db.QueryRowContext(ctx, q, s.playerID).Scan(&snapshot)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load game: %w", err)
	}
	return []byte(snapshot), true, nil
}

// schemaVersionOf reads schemaVersion from a snapshot for indexing. A
// snapshot without one reports 0.
func schemaVersionOf(snapshot []byte) int {
	var head struct {
		SchemaVersion int `json:"schemaVersion"`
	}
	_ = json.Unmarshal(snapshot, &head)
	return head.SchemaVersion
}
