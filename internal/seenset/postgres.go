package seenset

import (
	"context"
	"fmt"
	"time"

	"github.com/bakkerme/salewatch/internal/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore shares one table across documents. The composite primary key
// gives per-key upsert atomicity between concurrent runs.
type PostgresStore struct {
	pool       *pgxpool.Pool
	tableIdent string
	document   string
}

func NewPostgresStore(ctx context.Context, connString, table, document string, maxConns int) (*PostgresStore, error) {
	if connString == "" {
		return nil, fmt.Errorf("postgres connection string is required")
	}
	if document == "" {
		return nil, fmt.Errorf("postgres document name is required")
	}
	if table == "" {
		table = defaultSQLiteTable
	}
	if !sqlIdentifierPattern.MatchString(table) {
		return nil, fmt.Errorf("table name %q must match %s", table, sqlIdentifierPattern.String())
	}

	poolCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &PostgresStore{
		pool:       pool,
		tableIdent: pgx.Identifier{table}.Sanitize(),
		document:   document,
	}
	if err := store.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) Load(ctx context.Context) (core.SeenSet, error) {
	rows, err := s.pool.Query(
		ctx,
		fmt.Sprintf("SELECT sale_id, seen_at FROM %s WHERE document = $1", s.tableIdent),
		s.document,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	defer rows.Close()

	seen := core.SeenSet{}
	for rows.Next() {
		var (
			id     string
			seenAt time.Time
		)
		if err := rows.Scan(&id, &seenAt); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoad, err)
		}
		seen[id] = seenAt
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	return seen, nil
}

func (s *PostgresStore) Merge(ctx context.Context, delta core.SeenSet) error {
	if len(delta) == 0 {
		return nil
	}
	query := fmt.Sprintf(
		"INSERT INTO %s (document, sale_id, seen_at) VALUES ($1, $2, COALESCE($3, now())) ON CONFLICT (document, sale_id) DO NOTHING",
		s.tableIdent,
	)
	batch := &pgx.Batch{}
	for id, seenAt := range delta {
		if id == "" {
			continue
		}
		var ts *time.Time
		if !seenAt.IsZero() {
			utc := seenAt.UTC()
			ts = &utc
		}
		batch.Queue(query, s.document, id, ts)
	}
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMerge, err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		document TEXT NOT NULL,
		sale_id TEXT NOT NULL,
		seen_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (document, sale_id)
	)`, s.tableIdent)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create postgres table: %w", err)
	}
	return nil
}
