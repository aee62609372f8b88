// Package table holds the in-memory tabular container passed between the
// extract and transform stages.
//
// A Table is a named, ordered set of columns plus positional rows. Cells are
// untyped (any); nil is the only null marker. Producers normalize driver
// specific types to a small set before handing a Table downstream:
// string, int64, float64, bool and time.Time.
//
// Transform code treats every input Table as read-only and works on a Clone.
package table

import "strings"

// Table is a dataframe-like container: Columns names the cells of every row
// in order, and each Rows[i] has exactly len(Columns) values.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]any
}

// New returns an empty table with the given column order.
func New(name string, columns ...string) *Table {
	return &Table{
		Name:    name,
		Columns: append([]string(nil), columns...),
	}
}

// Len returns the number of rows. A nil table has zero rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Clone returns a deep copy of the column list and row slices. Cell values are
// copied by value; none of the normalized cell types share mutable state.
func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	out := &Table{
		Name:    t.Name,
		Columns: append([]string(nil), t.Columns...),
		Rows:    make([][]any, len(t.Rows)),
	}
	for i, r := range t.Rows {
		out.Rows[i] = append([]any(nil), r...)
	}
	return out
}

// Index returns the position of column name, or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Has reports whether the table carries a column called name.
func (t *Table) Has(name string) bool { return t != nil && t.Index(name) >= 0 }

// Value returns row[col] or nil when the column does not exist.
func (t *Table) Value(row int, name string) any {
	i := t.Index(name)
	if i < 0 {
		return nil
	}
	return t.Rows[row][i]
}

// AppendRow adds a row. Short rows are padded with nils; long rows are cut.
func (t *Table) AppendRow(vals ...any) {
	row := make([]any, len(t.Columns))
	copy(row, vals)
	t.Rows = append(t.Rows, row)
}

// SetColumn overwrites an existing column or appends a new one. fill is called
// once per row and its result stored in that row.
func (t *Table) SetColumn(name string, fill func(row int) any) {
	i := t.Index(name)
	if i < 0 {
		t.Columns = append(t.Columns, name)
		for r := range t.Rows {
			t.Rows[r] = append(t.Rows[r], nil)
		}
		i = len(t.Columns) - 1
	}
	for r := range t.Rows {
		t.Rows[r][i] = fill(r)
	}
}

// TrimColumnNames strips surrounding whitespace from every column name.
func (t *Table) TrimColumnNames() {
	for i, c := range t.Columns {
		t.Columns[i] = strings.TrimSpace(c)
	}
}

// Rename applies mapping to the column names. Names absent from mapping keep
// their current value.
func (t *Table) Rename(mapping map[string]string) {
	for i, c := range t.Columns {
		if to, ok := mapping[c]; ok {
			t.Columns[i] = to
		}
	}
}

// Filter keeps the rows for which keep returns true. Row order is preserved.
func (t *Table) Filter(keep func(row []any) bool) {
	out := t.Rows[:0]
	for _, r := range t.Rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	for i := len(out); i < len(t.Rows); i++ {
		t.Rows[i] = nil
	}
	t.Rows = out
}

// Project returns a new table containing only the requested columns that are
// present, in the order they are requested.
func (t *Table) Project(columns []string) *Table {
	idx := make([]int, 0, len(columns))
	names := make([]string, 0, len(columns))
	for _, c := range columns {
		if i := t.Index(c); i >= 0 {
			idx = append(idx, i)
			names = append(names, c)
		}
	}
	out := &Table{Name: t.Name, Columns: names, Rows: make([][]any, len(t.Rows))}
	for r, row := range t.Rows {
		nr := make([]any, len(idx))
		for j, i := range idx {
			nr[j] = row[i]
		}
		out.Rows[r] = nr
	}
	return out
}

// DropDuplicates removes rows that are identical across all columns, keeping
// the first occurrence. It returns the number of rows removed.
func (t *Table) DropDuplicates() int {
	seen := make(map[[32]byte]struct{}, len(t.Rows))
	before := len(t.Rows)
	t.Filter(func(row []any) bool {
		k := Fingerprint(row)
		if _, dup := seen[k]; dup {
			return false
		}
		seen[k] = struct{}{}
		return true
	})
	return before - len(t.Rows)
}
