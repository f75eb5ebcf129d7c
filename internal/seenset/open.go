package seenset

import (
	"context"
	"fmt"
	"strings"
)

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendBadger   = "badger"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config selects and parameterizes a store backend.
// DSN is a file path for sqlite, a directory for badger, a connection URL for
// postgres and a redis:// URL for redis.
type Config struct {
	Backend  string
	DSN      string
	Table    string
	MaxConns int
}

// Open constructs the configured backend scoped to document.
func Open(ctx context.Context, cfg Config, document string) (Store, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" {
		backend = BackendSQLite
	}
	switch backend {
	case BackendMemory:
		return NewMemoryStore(nil), nil
	case BackendSQLite:
		return NewSQLiteStore(cfg.DSN, cfg.Table, document)
	case BackendBadger:
		return NewBadgerStore(cfg.DSN, document)
	case BackendPostgres:
		return NewPostgresStore(ctx, cfg.DSN, cfg.Table, document, cfg.MaxConns)
	case BackendRedis:
		return NewRedisStore(ctx, cfg.DSN, document)
	default:
		return nil, fmt.Errorf("unsupported seen-set backend %q (expected memory, sqlite, badger, postgres or redis)", cfg.Backend)
	}
}
