// Package storage persists the SalesFact table into a relational database.
//
// Backends live in sub-packages and register themselves from init() under a
// kind ("sqlite", "postgres", "mssql"). Import internal/storage/all to link
// every backend.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Config selects and configures a backend.
type Config struct {
	Kind string
	DSN  string
}

// Repository is the backend-agnostic fact table writer.
//
// ReplaceRows makes a load idempotent: re-running the pipeline over the same
// input leaves the table with the same content instead of doubling it. Each
// backend implements it in one transaction.
type Repository interface {
	// Close releases backend resources. Call once.
	Close()

	// EnsureTable creates the table when it does not exist. An existing table
	// is left untouched.
	EnsureTable(ctx context.Context, spec TableSpec) error

	// ReplaceRows deletes every row of table and inserts rows, atomically.
	// It returns the number of rows inserted.
	ReplaceRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)
}

type factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend under kind. It panics on an empty kind, a nil
// factory or a duplicate registration.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// New constructs a Repository using the factory registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("storage: unsupported kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// Kinds lists the registered backend kinds in sorted order.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ChunkRows splits rows so that no chunk binds more than maxParams
// parameters. Every chunk holds at least one row.
func ChunkRows(rows [][]any, columns, maxParams int) [][][]any {
	per := maxParams / max(1, columns)
	if per < 1 {
		per = 1
	}
	out := make([][][]any, 0, (len(rows)+per-1)/per)
	for start := 0; start < len(rows); start += per {
		end := min(start+per, len(rows))
		out = append(out, rows[start:end])
	}
	return out
}
