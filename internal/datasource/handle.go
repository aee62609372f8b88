// Package datasource opens the live relational sources a run can read from
// and exposes them through one capability: run a query, get a table back.
//
// Two handle flavours exist:
//   - StatementHandle: database/sql. Each query pins one connection and runs
//     a prepared statement on it (SQL Server, MySQL, SQLite file databases).
//   - PooledHandle: a pgx connection pool (Postgres).
//
// Callers depend on Handle only; which flavour sits behind it does not change
// the shape of the returned table.
package datasource

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"

	"salesetl/internal/table"
)

// Handle is a live source that can answer SQL queries.
type Handle interface {
	RunQuery(ctx context.Context, query string) (*table.Table, error)
	Close() error
}

// StatementHandle runs queries through database/sql.
type StatementHandle struct {
	db *sql.DB
}

// NewStatementHandle wraps an open *sql.DB. The handle owns db and closes it.
func NewStatementHandle(db *sql.DB) *StatementHandle {
	return &StatementHandle{db: db}
}

// RunQuery prepares query on a dedicated connection, executes it and
// materializes every row.
func (h *StatementHandle) RunQuery(ctx context.Context, query string) (*table.Table, error) {
	conn, err := h.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	stmt, err := conn.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	rows, err := stmt.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	t := table.New("", cols...)
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		row := make([]any, len(cols))
		for i, v := range vals {
			row[i] = normalizeValue(v)
		}
		t.Rows = append(t.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return t, nil
}

// Close releases the underlying pool.
func (h *StatementHandle) Close() error { return h.db.Close() }

// pgxQuerier is the subset of *pgxpool.Pool used by PooledHandle.
type pgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// PooledHandle runs queries on a pgx pool.
type PooledHandle struct {
	pool pgxQuerier
}

// NewPooledHandle wraps a pool (typically *pgxpool.Pool). The handle owns it.
func NewPooledHandle(pool pgxQuerier) *PooledHandle {
	return &PooledHandle{pool: pool}
}

// RunQuery executes query with the simple protocol defaults of the pool and
// materializes every row.
func (h *PooledHandle) RunQuery(ctx context.Context, query string) (*table.Table, error) {
	rows, err := h.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	fds := rows.FieldDescriptions()
	cols := make([]string, len(fds))
	for i, fd := range fds {
		cols[i] = fd.Name
	}

	t := table.New("", cols...)
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("values: %w", err)
		}
		row := make([]any, len(cols))
		for i := range row {
			if i < len(vals) {
				row[i] = normalizeValue(vals[i])
			}
		}
		t.Rows = append(t.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return t, nil
}

// Close closes the pool.
func (h *PooledHandle) Close() error {
	h.pool.Close()
	return nil
}

var (
	_ Handle = (*StatementHandle)(nil)
	_ Handle = (*PooledHandle)(nil)
)
