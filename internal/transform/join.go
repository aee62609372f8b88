package transform

import "salesetl/internal/table"

// LeftJoin returns left ⋈ right on key, keeping every left row exactly once
// and in order.
//
// The result has all left columns followed by the right columns except key.
// A right column whose name is already taken gets suffix appended. When right
// holds several rows for one key the first wins; null keys never match.
func LeftJoin(left, right *table.Table, key, suffix string) *table.Table {
	lk := left.Index(key)
	rk := right.Index(key)

	taken := make(map[string]bool, len(left.Columns)+len(right.Columns))
	cols := append([]string(nil), left.Columns...)
	for _, c := range cols {
		taken[c] = true
	}

	rightIdx := make([]int, 0, len(right.Columns))
	for i, c := range right.Columns {
		if i == rk {
			continue
		}
		name := c
		for taken[name] {
			name += suffix
		}
		taken[name] = true
		cols = append(cols, name)
		rightIdx = append(rightIdx, i)
	}

	lookup := make(map[string][]any, right.Len())
	if rk >= 0 {
		for _, row := range right.Rows {
			k := table.NormalizeKey(row[rk])
			if k == "" {
				continue
			}
			if _, seen := lookup[k]; !seen {
				lookup[k] = row
			}
		}
	}

	out := &table.Table{Name: left.Name, Columns: cols, Rows: make([][]any, len(left.Rows))}
	for r, lrow := range left.Rows {
		row := make([]any, len(cols))
		copy(row, lrow)
		if lk >= 0 {
			if k := table.NormalizeKey(lrow[lk]); k != "" {
				if match, ok := lookup[k]; ok {
					for j, i := range rightIdx {
						row[len(lrow)+j] = match[i]
					}
				}
			}
		}
		out.Rows[r] = row
	}
	return out
}
