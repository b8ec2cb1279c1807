package store

import (
	"context"
	"fmt"

	"tycoon/internal/db"
)

const (
	KindSQLite   = "sqlite"
	KindPostgres = "postgres"
	KindRemote   = "remote"
	KindFile     = "file"
	KindMemory   = "memory"
)

// Slot is what every store in this package provides.
type Slot interface {
	Persist(ctx context.Context, snapshot []byte) error
	Retrieve(ctx context.Context) ([]byte, bool, error)
}

type Options struct {
	Kind        string
	SQLitePath  string
	DatabaseURL string
	SaveFile    string
	PlayerID    string
}

// Open builds the store named by opts.Kind. The returned close func releases
// whatever connections the store holds and is never nil.
func Open(ctx context.Context, opts Options) (Slot, func(), error) {
	noop := func() {}
	switch opts.Kind {
	case KindSQLite, "":
		s, err := OpenSQL(ctx, DialectSQLite, opts.SQLitePath, opts.PlayerID)
		if err != nil {
			return nil, noop, err
		}
		return s, func() { _ = s.Close() }, nil
	case KindPostgres:
		s, err := OpenSQL(ctx, DialectPostgres, opts.DatabaseURL, opts.PlayerID)
		if err != nil {
			return nil, noop, err
		}
		return s, func() { _ = s.Close() }, nil
	case KindRemote:
		pool, err := db.Connect(ctx, opts.DatabaseURL, db.Options{MaxConns: 4, ApplicationName: "tycoon-sync"})
		if err != nil {
			return nil, noop, err
		}
		r, err := NewRemote(pool, opts.PlayerID)
		if err != nil {
			pool.Close()
			return nil, noop, err
		}
		if err := r.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, noop, err
		}
		return r, pool.Close, nil
	case KindFile:
		f, err := NewFile(opts.SaveFile)
		if err != nil {
			return nil, noop, err
		}
		return f, noop, nil
	case KindMemory:
		return NewMemory(), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown store kind %q", opts.Kind)
	}
}
