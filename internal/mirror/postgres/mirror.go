// Package postgres copies recorded link rows into a Postgres table.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/xllinks/internal/linkcheck"
)

const defaultTable = "link_records"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for mirrored rows.
type Config struct {
	DSN             string
	Table           string
	RunID           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// RecordMirror inserts one row per recorded link.
type RecordMirror struct {
	pool  execCloser
	table string
	runID string
}

// NewRecordMirror connects a pool using cfg.
func NewRecordMirror(ctx context.Context, cfg Config) (*RecordMirror, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("mirror.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &RecordMirror{pool: pool, table: table, runID: cfg.RunID}, nil
}

// NewWithPool constructs a mirror from an existing pool (primarily for testing).
func NewWithPool(pool execCloser, table, runID string) (*RecordMirror, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &RecordMirror{pool: pool, table: name, runID: runID}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (m *RecordMirror) Close() {
	if m == nil || m.pool == nil {
		return
	}
	m.pool.Close()
}

// Mirror inserts rec, tagged with the schema tag and the run identifier.
func (m *RecordMirror) Mirror(ctx context.Context, rec linkcheck.Record) error {
	if m == nil || m.pool == nil {
		return fmt.Errorf("record mirror is not configured")
	}
	if rec.Link == "" {
		return fmt.Errorf("record link is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	schema_tag,
	run_id,
	link_group,
	result_code,
	reason,
	link,
	title,
	entered_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8
)`, m.table)

	args := []any{
		linkcheck.SchemaTag,
		m.runID,
		rec.Group,
		rec.StatusCode,
		rec.Reason,
		rec.Link,
		rec.Title,
		rec.EnteredAt,
	}
	if _, err := m.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert link record: %w", err)
	}
	return nil
}
