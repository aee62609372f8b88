package storage

import (
	"fmt"
	"strings"
)

// ColumnType is a backend-neutral column type. Each backend maps it onto its
// own DDL type.
type ColumnType string

const (
	TypeText      ColumnType = "text"
	TypeInteger   ColumnType = "integer"
	TypeReal      ColumnType = "real"
	TypeTimestamp ColumnType = "timestamp"
)

// ColumnSpec describes one column.
type ColumnSpec struct {
	Name     string     `json:"name"`
	Type     ColumnType `json:"type"`
	Nullable bool       `json:"nullable"`
}

// TableSpec describes a table to create. Name may be schema-qualified
// ("sales.sales_fact") on backends that support schemas.
type TableSpec struct {
	Name    string       `json:"name"`
	Columns []ColumnSpec `json:"columns"`
}

// ColumnNames returns the column names in order.
func (t TableSpec) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Validate checks the spec is usable for DDL.
func (t TableSpec) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("storage: table name is empty")
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("storage: table %s has no columns", t.Name)
	}
	seen := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		n := strings.ToLower(strings.TrimSpace(c.Name))
		if n == "" {
			return fmt.Errorf("storage: table %s has an unnamed column", t.Name)
		}
		if seen[n] {
			return fmt.Errorf("storage: table %s has duplicate column %s", t.Name, c.Name)
		}
		seen[n] = true
		switch c.Type {
		case TypeText, TypeInteger, TypeReal, TypeTimestamp:
		default:
			return fmt.Errorf("storage: column %s.%s has unsupported type %q", t.Name, c.Name, c.Type)
		}
	}
	return nil
}
