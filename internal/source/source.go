// Package source decides, per logical table, which physical source a run
// reads it from.
//
// Two run modes exist and are selected by connectivity alone:
//   - no live database handle: every table is looked up in the CSV fallback
//     directory by fuzzy file-name match
//   - at least one live handle: the static source map is authoritative. A
//     table mapped to a source that is not connected is skipped; it is never
//     redirected to CSV.
package source

import (
	"fmt"
	"sort"
	"strings"
)

// Kind identifies a physical source.
type Kind string

const (
	PrimarySQL     Kind = "primary_sql"
	SecondaryStore Kind = "secondary_store"
	CSVFallback    Kind = "csv_fallback"
)

// ParseKind accepts the canonical names plus a few operator-friendly aliases.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "primary_sql", "primary", "sql", "sqlserver":
		return PrimarySQL, nil
	case "secondary_store", "secondary", "access", "file_db":
		return SecondaryStore, nil
	case "csv_fallback", "csv":
		return CSVFallback, nil
	default:
		return "", fmt.Errorf("unknown source kind %q", s)
	}
}

// Logical table names, in extraction order.
const (
	Orders       = "Orders"
	OrderDetails = "OrderDetails"
	Products     = "Products"
	Categories   = "Categories"
	Customers    = "Customers"
	Employees    = "Employees"
	Shippers     = "Shippers"
	Suppliers    = "Suppliers"
)

// LogicalTables lists every table a run asks for.
var LogicalTables = []string{
	Orders, OrderDetails, Products, Categories, Customers, Employees, Shippers, Suppliers,
}

// IsLogicalTable reports whether name is one of LogicalTables.
func IsLogicalTable(name string) bool {
	for _, t := range LogicalTables {
		if t == name {
			return true
		}
	}
	return false
}

// Map binds each logical table to exactly one source kind. It is fixed for
// the duration of a run.
type Map map[string]Kind

// DefaultMap keeps order transactions on the primary SQL server and the
// product catalogue in the secondary file database.
func DefaultMap() Map {
	return Map{
		Orders:       PrimarySQL,
		OrderDetails: PrimarySQL,
		Customers:    PrimarySQL,
		Employees:    PrimarySQL,
		Shippers:     PrimarySQL,
		Products:     SecondaryStore,
		Categories:   SecondaryStore,
		Suppliers:    SecondaryStore,
	}
}

// Uniform maps every logical table to k. A single-source deployment is just
// this degenerate map.
func Uniform(k Kind) Map {
	m := make(Map, len(LogicalTables))
	for _, t := range LogicalTables {
		m[t] = k
	}
	return m
}

// ParseMap converts a config-level map of table -> kind name. Tables not
// mentioned keep their binding from base.
func ParseMap(base Map, raw map[string]string) (Map, error) {
	out := make(Map, len(base)+len(raw))
	for k, v := range base {
		out[k] = v
	}
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, name := range keys {
		canon, ok := CanonicalTableName(name)
		if !ok {
			return nil, fmt.Errorf("source map: unknown table %q", name)
		}
		k, err := ParseKind(raw[name])
		if err != nil {
			return nil, fmt.Errorf("source map: table %s: %w", name, err)
		}
		out[canon] = k
	}
	return out, nil
}

// CanonicalTableName resolves config keys such as "order_details" or
// "orders" to the logical name. Config loaders lower-case keys, so an exact
// match cannot be relied on.
func CanonicalTableName(name string) (string, bool) {
	key := NormalizeTableKey(name)
	for _, t := range LogicalTables {
		if NormalizeTableKey(t) == key {
			return t, true
		}
	}
	return "", false
}

// NormalizeTableKey produces the key used to compare a logical table name
// with a file stem: lower-case with whitespace, underscores and hyphens
// removed. "Order Details", "order_details" and "OrderDetails" share the key
// "orderdetails".
func NormalizeTableKey(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(name) {
		switch r {
		case ' ', '\t', '\n', '\r', '_', '-':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
