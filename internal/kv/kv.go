// Package kv holds the key-value collaborators the balance store persists
// through. Values are opaque strings; a missing key is not an error.
package kv

import (
	"context"
	"fmt"
	"strings"

	"minibet/internal/db"
)

type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

type Closer interface {
	Close() error
}

const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverSQLite   = "sqlite"
)

type Options struct {
	Driver string
	// Path is the JSON file for the file driver and the database file for
	// sqlite.
	Path string
	// DSN is the PostgreSQL connection string.
	DSN string
	// Pool tunes the PostgreSQL connection pool.
	Pool  db.PoolOptions
	Redis RedisOptions
}

type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// Open builds the backend named by opts.Driver. The returned store may also
// implement Closer.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case "", DriverFile:
		return OpenFile(opts.Path)
	case DriverMemory:
		return NewMemory(), nil
	case DriverPostgres:
		return OpenPostgres(ctx, opts.DSN, opts.Pool)
	case DriverRedis:
		return OpenRedis(ctx, opts.Redis)
	case DriverSQLite:
		return OpenSQLite(ctx, opts.Path)
	default:
		return nil, fmt.Errorf("unknown kv driver %q", opts.Driver)
	}
}

// Close releases s when the backend holds resources.
func Close(s Store) error {
	if c, ok := s.(Closer); ok {
		return c.Close()
	}
	return nil
}
