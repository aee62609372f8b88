package transform

import (
	"strings"

	"salesetl/internal/table"
)

// CleanOrders normalizes Orders: every column whose name contains "date"
// (any case) is parsed to a time, and rows without an OrderID are dropped.
// It returns the cleaned copy and the number of rows dropped.
func CleanOrders(orders *table.Table) (*table.Table, int) {
	t := NormalizeColumns(orders)

	for i, c := range t.Columns {
		if !strings.Contains(strings.ToLower(c), "date") {
			continue
		}
		for _, row := range t.Rows {
			row[i] = toTime(row[i])
		}
	}

	before := t.Len()
	if id := t.Index("OrderID"); id >= 0 {
		t.Filter(func(row []any) bool { return !isNull(row[id]) })
	}
	return t, before - t.Len()
}

// CleanOrderDetails normalizes OrderDetails: UnitPrice, Quantity and Discount
// become numbers (nil when unparsable), and a missing Quantity is taken to
// mean one unit. Quantity is truncated to an integer.
func CleanOrderDetails(details *table.Table) *table.Table {
	t := NormalizeColumns(details)

	for _, c := range []string{"UnitPrice", "Quantity", "Discount"} {
		i := t.Index(c)
		if i < 0 {
			continue
		}
		for _, row := range t.Rows {
			row[i] = toFloat(row[i])
		}
	}

	if q := t.Index("Quantity"); q >= 0 {
		for _, row := range t.Rows {
			row[q] = int64(floatOr(row[q], 1))
		}
	}
	return t
}

// isNull reports whether a cell counts as missing. Blank strings are missing
// too.
func isNull(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case float64:
		return t != t
	default:
		return false
	}
}
