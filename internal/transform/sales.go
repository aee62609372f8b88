package transform

import (
	"fmt"
	"strings"
	"time"

	"salesetl/internal/source"
	"salesetl/internal/table"
)

// SalesFact is the name given to the output table.
const SalesFact = "SalesFact"

// OutputColumns is the projection allow-list, in output order.
var OutputColumns = []string{
	"OrderID", "ProductID", "ProductName", "CategoryID", "CategoryName",
	"CustomerID", "CompanyName", "EmployeeID", "OrderDate", "ShippedDate",
	"UnitPrice", "Quantity", "Discount", "TotalPrice", "Year", "Month",
	"ShipCountry",
}

// RequiredColumns lists, per input table, the columns BuildSalesTable joins
// on or computes from. Tables not listed are optional.
var RequiredColumns = map[string][]string{
	source.Orders:       {"OrderID"},
	source.OrderDetails: {"OrderID", "ProductID", "UnitPrice", "Quantity"},
	source.Products:     {"ProductID"},
	source.Categories:   {"CategoryID"},
	source.Customers:    {"CustomerID"},
}

// orderDateCandidates lists where the order date may live after joining.
var orderDateCandidates = []string{"OrderDate", "OrderDate_ord", "OrderDate_od"}

// MissingRequiredInputError means Orders or OrderDetails was not extracted.
type MissingRequiredInputError struct {
	Missing []string
}

func (e *MissingRequiredInputError) Error() string {
	return fmt.Sprintf("missing required input table(s): %s", strings.Join(e.Missing, ", "))
}

// Stats describes what BuildSalesTable did to the rows.
type Stats struct {
	// Joined is the row count after joining, always equal to the OrderDetails
	// row count.
	Joined int
	// OrdersDropped counts Orders rows removed for a null OrderID.
	OrdersDropped int
	Duplicates    int
	NullTotal     int
	// DateColumn is the column Year and Month came from, or "".
	DateColumn string
	// Joins lists the optional tables that were joined, in order.
	Joins []string
}

// BuildSalesTable joins and derives the SalesFact table. tables is keyed by
// logical table name; only Orders and OrderDetails are mandatory.
func BuildSalesTable(tables map[string]*table.Table) (*table.Table, Stats, error) {
	var st Stats

	orders, details := tables[source.Orders], tables[source.OrderDetails]
	var missing []string
	if orders == nil {
		missing = append(missing, source.Orders)
	}
	if details == nil {
		missing = append(missing, source.OrderDetails)
	}
	if len(missing) > 0 {
		return nil, st, &MissingRequiredInputError{Missing: missing}
	}

	cleanOrders, dropped := CleanOrders(orders)
	st.OrdersDropped = dropped

	sales := LeftJoin(CleanOrderDetails(details), cleanOrders, "OrderID", "_ord")

	if p := tables[source.Products]; p != nil {
		sales = LeftJoin(sales, NormalizeColumns(p), "ProductID", "_prod")
		st.Joins = append(st.Joins, source.Products)
	}
	if c := tables[source.Categories]; c != nil && sales.Has("CategoryID") {
		sales = LeftJoin(sales, NormalizeColumns(c), "CategoryID", "_cat")
		st.Joins = append(st.Joins, source.Categories)
	}
	if c := tables[source.Customers]; c != nil && sales.Has("CustomerID") {
		sales = LeftJoin(sales, NormalizeColumns(c), "CustomerID", "_cust")
		st.Joins = append(st.Joins, source.Customers)
	}
	st.Joined = sales.Len()

	addTotalPrice(sales)
	st.DateColumn = addYearMonth(sales)

	out := sales.Project(OutputColumns)
	out.Name = SalesFact
	st.Duplicates = out.DropDuplicates()

	before := out.Len()
	if tp := out.Index("TotalPrice"); tp >= 0 {
		out.Filter(func(row []any) bool { return row[tp] != nil })
	}
	st.NullTotal = before - out.Len()

	return out, st, nil
}

// addTotalPrice sets TotalPrice = UnitPrice * Quantity * (1 - Discount).
// A null or unparsable Discount counts as 0. TotalPrice is null when either
// operand is missing.
func addTotalPrice(t *table.Table) {
	up, qty, disc := t.Index("UnitPrice"), t.Index("Quantity"), t.Index("Discount")
	if up < 0 || qty < 0 {
		t.SetColumn("TotalPrice", func(int) any { return nil })
		return
	}
	t.SetColumn("TotalPrice", func(r int) any {
		row := t.Rows[r]
		p, ok1 := toFloat(row[up]).(float64)
		q, ok2 := toFloat(row[qty]).(float64)
		if !ok1 || !ok2 {
			return nil
		}
		if disc < 0 {
			return p * q
		}
		return p * q * (1 - floatOr(row[disc], 0))
	})
}

// addYearMonth derives Year and Month from the first order date candidate
// present and returns its name. Nothing is added when none exists.
func addYearMonth(t *table.Table) string {
	col := ""
	for _, c := range orderDateCandidates {
		if t.Has(c) {
			col = c
			break
		}
	}
	if col == "" {
		return ""
	}

	i := t.Index(col)
	for _, row := range t.Rows {
		row[i] = toTime(row[i])
	}
	t.SetColumn("Year", func(r int) any {
		if ts, ok := t.Rows[r][i].(time.Time); ok {
			return int64(ts.Year())
		}
		return nil
	})
	t.SetColumn("Month", func(r int) any {
		if ts, ok := t.Rows[r][i].(time.Time); ok {
			return int64(ts.Month())
		}
		return nil
	})
	return col
}
