package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/smartenergy/aidaily/internal/domain"
)

// Store implements domain.Store on PostgreSQL through database/sql.
// Production wires the pgx pool in via stdlib.OpenDBFromPool.
type Store struct {
	db     *sql.DB
	schema Schema
	loc    *time.Location
	logger *zap.Logger
}

// NewStore creates a new PostgreSQL store
func NewStore(db *sql.DB, schema Schema, loc *time.Location, logger *zap.Logger) *Store {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, schema: schema, loc: loc, logger: logger}
}

// Within runs fn on one dedicated connection inside a REPEATABLE READ transaction
func (s *Store) Within(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("postgres: failed to acquire connection: %w: %w", domain.ErrStoreConnection, err)
	}
	defer conn.Close()

	sqlTx, err := conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
	if err != nil {
		return fmt.Errorf("postgres: failed to begin transaction: %w: %w", domain.ErrStoreConnection, err)
	}
	// no-op once committed
	defer func() { _ = sqlTx.Rollback() }()

	if err := fn(ctx, &tx{tx: sqlTx, schema: s.schema, loc: s.loc, logger: s.logger}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("postgres: failed to commit: %w: %w", domain.ErrStoreQuery, err)
	}
	return nil
}

// Recent reads back the newest rows of a target table
func (s *Store) Recent(ctx context.Context, target domain.Target, limit int) (domain.RecordSet, error) {
	t, ok := s.schema.target(target)
	if !ok {
		return domain.RecordSet{}, fmt.Errorf("postgres: unknown target %q: %w", target, domain.ErrStoreQuery)
	}

	columns := make([]string, 0, len(t.Columns)+1)
	columns = append(columns, t.Key)
	for _, m := range t.Columns {
		columns = append(columns, m.Column)
	}
	set := domain.RecordSet{Columns: columns, Rows: []domain.Record{}}
	if limit <= 0 {
		return set, nil
	}

	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quote(c)
	}
	query := "SELECT " + strings.Join(quoted, ", ") + " FROM " + quote(t.Table)
	if t.VerifyFilter != "" {
		query += " WHERE " + t.VerifyFilter
	}
	query += " ORDER BY " + quote(t.Key) + " DESC LIMIT $1"

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return domain.RecordSet{}, fmt.Errorf("postgres: failed to read back %s: %w: %w", target, domain.ErrStoreQuery, err)
	}
	defer rows.Close()

	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return domain.RecordSet{}, fmt.Errorf("postgres: failed to scan %s row: %w: %w", target, domain.ErrStoreQuery, err)
		}
		rec := make(domain.Record, len(columns))
		for i, c := range columns {
			rec[c] = domain.FormatValue(values[i])
		}
		set.Rows = append(set.Rows, rec)
	}
	if err := rows.Err(); err != nil {
		return domain.RecordSet{}, fmt.Errorf("postgres: failed to read back %s: %w: %w", target, domain.ErrStoreQuery, err)
	}
	return set, nil
}

// Health checks database connectivity
func (s *Store) Health(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres: health check failed: %w", err)
	}
	return nil
}
