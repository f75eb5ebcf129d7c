package seenset

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/bakkerme/salewatch/internal/core"
	_ "modernc.org/sqlite"
)

const (
	defaultSQLiteTable = "seen_sales"
)

type SQLiteStore struct {
	db         *sql.DB
	table      string
	tableIdent string
	document   string
}

func NewSQLiteStore(dsn, table, document string) (*SQLiteStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("sqlite dsn is required")
	}
	if document == "" {
		return nil, fmt.Errorf("sqlite document name is required")
	}
	if table == "" {
		table = defaultSQLiteTable
	}
	tableIdent, err := quoteSQLiteIdentifier(table)
	if err != nil {
		return nil, err
	}
	if err := ensureSQLiteDir(dsn); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	store := &SQLiteStore{
		db:         db,
		table:      table,
		tableIdent: tableIdent,
		document:   document,
	}
	if err := store.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Load(ctx context.Context) (core.SeenSet, error) {
	rows, err := s.db.QueryContext(
		ctx,
		fmt.Sprintf("SELECT sale_id, seen_at FROM %s WHERE document = ?", s.tableIdent),
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

func (s *SQLiteStore) Merge(ctx context.Context, delta core.SeenSet) error {
	if len(delta) == 0 {
		return nil
	}
	if err := s.merge(ctx, delta); err != nil {
		return fmt.Errorf("%w: %w", ErrMerge, err)
	}
	return nil
}

func (s *SQLiteStore) merge(ctx context.Context, delta core.SeenSet) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	// First-seen wins: a re-merged key keeps its original timestamp.
	stmt, err := tx.PrepareContext(
		ctx,
		fmt.Sprintf("INSERT INTO %s (document, sale_id, seen_at) VALUES (?, ?, ?) ON CONFLICT(document, sale_id) DO NOTHING", s.tableIdent),
	)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()
	for id, seenAt := range delta {
		if id == "" {
			continue
		}
		if seenAt.IsZero() {
			seenAt = time.Now()
		}
		if _, err := stmt.ExecContext(ctx, s.document, id, seenAt.UTC()); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) ensureSchema(ctx context.Context) error {
	if s.table == "" {
		return fmt.Errorf("sqlite table name is required")
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		document TEXT NOT NULL,
		sale_id TEXT NOT NULL,
		seen_at TIMESTAMP NOT NULL,
		PRIMARY KEY (document, sale_id)
	)`, s.tableIdent)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create sqlite table: %w", err)
	}
	return nil
}

func ensureSQLiteDir(dsn string) error {
	if strings.HasPrefix(dsn, "file:") {
		dsn = strings.TrimPrefix(dsn, "file:")
		if idx := strings.IndexRune(dsn, '?'); idx >= 0 {
			dsn = dsn[:idx]
		}
	}
	if dsn == "" || dsn == ":memory:" {
		return nil
	}
	dir := filepath.Dir(dsn)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

var sqlIdentifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func quoteSQLiteIdentifier(identifier string) (string, error) {
	if identifier == "" {
		return "", fmt.Errorf("table name is required")
	}
	if !sqlIdentifierPattern.MatchString(identifier) {
		return "", fmt.Errorf("table name %q must match %s", identifier, sqlIdentifierPattern.String())
	}
	return `"` + identifier + `"`, nil
}
