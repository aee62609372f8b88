package transform

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	csvparser "salesetl/internal/parser/csv"
	"salesetl/internal/source"
	"salesetl/internal/table"
)

func mkTable(name string, cols []string, rows ...[]any) *table.Table {
	t := table.New(name, cols...)
	for _, r := range rows {
		t.AppendRow(r...)
	}
	return t
}

// northwind returns a small, CSV-shaped (all strings) Northwind extract.
func northwind() map[string]*table.Table {
	return map[string]*table.Table{
		source.Orders: mkTable(source.Orders,
			[]string{"orderID", "customerID", "employeeID", "orderDate", "shippedDate", "shipCountry"},
			[]any{"10248", "VINET", "5", "1996-07-04 00:00:00.000", "1996-07-16 00:00:00.000", "France"},
			[]any{"10249", "TOMSP", "6", "1996-07-05 00:00:00.000", nil, "Germany"},
			[]any{nil, "ALFKI", "1", "1996-07-06", nil, "Germany"},
		),
		source.OrderDetails: mkTable(source.OrderDetails,
			[]string{" orderID", "productID ", "unitPrice", "quantity", "discount"},
			[]any{"10248", "11", "14.00", "12", "0"},
			[]any{"10248", "42", "9.80", "10", "0"},
			[]any{"10249", "14", "18.60", "9", "0.05"},
			[]any{"10249", "14", "18.60", "9", "0.05"}, // exact duplicate
			[]any{"10250", "11", "n/a", "3", "0"},     // no order, no price
			[]any{"10248", "72", "34.80", nil, nil},
		),
		source.Products: mkTable(source.Products,
			[]string{"productID", "productName", "categoryID", "unitPrice"},
			[]any{"11", "Queso Cabrales", "4", "21.00"},
			[]any{"14", "Tofu", "7", "23.25"},
			[]any{"42", "Singaporean Hokkien Fried Mee", "5", "14.00"},
			[]any{"72", "Mozzarella di Giovanni", "4", "34.80"},
		),
		source.Categories: mkTable(source.Categories,
			[]string{"categoryID", "categoryName"},
			[]any{"4", "Dairy Products"},
			[]any{"5", "Grains/Cereals"},
			[]any{"7", "Produce"},
		),
		source.Customers: mkTable(source.Customers,
			[]string{"customerID", "companyName", "country"},
			[]any{"VINET", "Vins et alcools Chevalier", "France"},
			[]any{"TOMSP", "Toms Spezialitäten", "Germany"},
		),
	}
}

func TestNormalizeColumns(t *testing.T) {
	t.Parallel()

	in := mkTable("x", []string{" orderID ", "unitPrice", "Freight", "Custom"})
	got := NormalizeColumns(in)

	assert.Equal(t, []string{"OrderID", "UnitPrice", "Freight", "Custom"}, got.Columns)
	assert.Equal(t, []string{" orderID ", "unitPrice", "Freight", "Custom"}, in.Columns, "input must not be mutated")
}

func TestCleanOrders(t *testing.T) {
	t.Parallel()

	in := mkTable(source.Orders,
		[]string{"OrderID", "OrderDate", "RequiredDate", "ShipCity"},
		[]any{"1", "2024-01-05", "not a date", "Reims"},
		[]any{nil, "2024-01-06", nil, "Lyon"},
		[]any{"  ", "2024-01-07", nil, "Graz"},
		[]any{"3", time.Date(2024, 2, 1, 9, 30, 0, 0, time.UTC), "02/15/2024", "Bern"},
	)
	got, dropped := CleanOrders(in)

	require.Equal(t, 2, dropped)
	require.Equal(t, 2, got.Len())
	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), got.Value(0, "OrderDate"))
	assert.Nil(t, got.Value(0, "RequiredDate"), "unparsable dates become null")
	assert.Equal(t, time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC), got.Value(1, "RequiredDate"))
	assert.Equal(t, "Reims", got.Value(0, "ShipCity"))
	assert.Equal(t, 4, in.Len(), "input must not be mutated")
}

func TestCleanOrderDetails_QuantityDefault(t *testing.T) {
	t.Parallel()

	in := mkTable(source.OrderDetails,
		[]string{"quantity", "unitPrice", "discount"},
		[]any{"4", "2.5", "0.1"},
		[]any{nil, "1", "x"},
		[]any{"many", "1", nil},
		[]any{"7.9", "1", "0"},
		[]any{int64(3), float64(2), nil},
	)
	got := CleanOrderDetails(in)

	var qty []any
	for r := range got.Rows {
		qty = append(qty, got.Value(r, "Quantity"))
	}
	assert.Equal(t, []any{int64(4), int64(1), int64(1), int64(7), int64(3)}, qty)
	assert.Nil(t, got.Value(1, "Discount"))
	assert.Equal(t, 2.5, got.Value(0, "UnitPrice"))
}

func TestLeftJoin(t *testing.T) {
	t.Parallel()

	left := mkTable("l", []string{"OrderID", "UnitPrice"},
		[]any{"1", 2.0},
		[]any{int64(2), 3.0},
		[]any{nil, 4.0},
		[]any{"9", 5.0},
	)
	right := mkTable("r", []string{"OrderID", "UnitPrice", "ShipCountry"},
		[]any{int64(1), 99.0, "France"},
		[]any{"2.0", 98.0, "Spain"},
		[]any{"2", 97.0, "Italy"}, // duplicate key, ignored
		[]any{nil, 96.0, "Nowhere"},
	)

	got := LeftJoin(left, right, "OrderID", "_ord")

	want := [][]any{
		{"1", 2.0, 99.0, "France"},
		{int64(2), 3.0, 98.0, "Spain"},
		{nil, 4.0, nil, nil},
		{"9", 5.0, nil, nil},
	}
	assert.Equal(t, []string{"OrderID", "UnitPrice", "UnitPrice_ord", "ShipCountry"}, got.Columns)
	if diff := cmp.Diff(want, got.Rows); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestLeftJoin_MissingRightKeyAddsNullColumns(t *testing.T) {
	t.Parallel()

	left := mkTable("l", []string{"ProductID"}, []any{"1"})
	right := mkTable("r", []string{"ProductName"}, []any{"Chai"})

	got := LeftJoin(left, right, "ProductID", "_prod")
	assert.Equal(t, []string{"ProductID", "ProductName"}, got.Columns)
	assert.Equal(t, [][]any{{"1", nil}}, got.Rows)
}

func TestBuildSalesTable_Scenario(t *testing.T) {
	t.Parallel()

	tables := map[string]*table.Table{
		source.Orders: mkTable(source.Orders, []string{"OrderID", "OrderDate"},
			[]any{"1", "2024-01-05"}),
		source.OrderDetails: mkTable(source.OrderDetails, []string{"OrderID", "ProductID", "UnitPrice", "Quantity", "Discount"},
			[]any{"1", "10", "2.5", "4", "0.1"}),
	}

	got, st, err := BuildSalesTable(tables)
	require.NoError(t, err)
	require.Equal(t, 1, got.Len())
	assert.Equal(t, SalesFact, got.Name)
	assert.Equal(t, "OrderDate", st.DateColumn)

	assert.Equal(t, 9.0, got.Value(0, "TotalPrice"))
	assert.Equal(t, int64(2024), got.Value(0, "Year"))
	assert.Equal(t, int64(1), got.Value(0, "Month"))

	var buf bytes.Buffer
	require.NoError(t, csvparser.WriteTable(&buf, got))
	assert.Equal(t,
		"OrderID,ProductID,OrderDate,UnitPrice,Quantity,Discount,TotalPrice,Year,Month\n"+
			"1,10,2024-01-05,2.5,4,0.1,9.0,2024,1\n",
		buf.String())
}

func TestBuildSalesTable_Northwind(t *testing.T) {
	t.Parallel()

	in := northwind()
	got, st, err := BuildSalesTable(in)
	require.NoError(t, err)

	assert.Equal(t, in[source.OrderDetails].Len(), st.Joined, "left joins preserve the anchor row count")
	assert.Equal(t, 1, st.OrdersDropped)
	assert.Equal(t, 1, st.Duplicates)
	assert.Equal(t, 1, st.NullTotal)
	assert.Equal(t, []string{source.Products, source.Categories, source.Customers}, st.Joins)

	assert.Equal(t, []string{
		"OrderID", "ProductID", "ProductName", "CategoryID", "CategoryName",
		"CustomerID", "CompanyName", "EmployeeID", "OrderDate", "ShippedDate",
		"UnitPrice", "Quantity", "Discount", "TotalPrice", "Year", "Month", "ShipCountry",
	}, got.Columns)
	require.Equal(t, 4, got.Len())

	// UnitPrice from OrderDetails wins the unqualified name over Products'.
	assert.Equal(t, 14.0, got.Value(0, "UnitPrice"))
	assert.Equal(t, "Dairy Products", got.Value(0, "CategoryName"))
	assert.Equal(t, "Vins et alcools Chevalier", got.Value(0, "CompanyName"))
	assert.Equal(t, int64(1996), got.Value(0, "Year"))
	assert.Equal(t, int64(7), got.Value(0, "Month"))

	// Missing quantity defaults to one unit; missing discount counts as 0.
	assert.Equal(t, int64(1), got.Value(3, "Quantity"))
	assert.Equal(t, 34.8, got.Value(3, "TotalPrice"))

	// Original inputs are untouched.
	assert.Equal(t, "orderID", in[source.Orders].Columns[0])
	assert.Equal(t, "1996-07-04 00:00:00.000", in[source.Orders].Rows[0][3])
}

func TestBuildSalesTable_DiscountLaw(t *testing.T) {
	t.Parallel()

	prices := []float64{0.01, 2.5, 14, 18.6, 263.5}
	qtys := []int64{1, 3, 12, 40}
	discounts := []float64{0, 0.05, 0.1, 0.25}

	od := table.New(source.OrderDetails, "OrderID", "ProductID", "UnitPrice", "Quantity", "Discount")
	for _, p := range prices {
		for _, q := range qtys {
			for _, d := range discounts {
				od.AppendRow(int64(1), fmt.Sprintf("%v-%v-%v", p, q, d), p, q, d)
			}
		}
	}
	orders := mkTable(source.Orders, []string{"OrderID"}, []any{int64(1)})

	got, _, err := BuildSalesTable(map[string]*table.Table{source.Orders: orders, source.OrderDetails: od})
	require.NoError(t, err)
	require.Equal(t, od.Len(), got.Len())

	for r := range got.Rows {
		p := got.Value(r, "UnitPrice").(float64)
		q := float64(got.Value(r, "Quantity").(int64))
		d := got.Value(r, "Discount").(float64)
		if tp := got.Value(r, "TotalPrice").(float64); tp != p*q*(1-d) {
			t.Fatalf("row %d: TotalPrice=%v, want %v*%v*(1-%v)", r, tp, p, q, d)
		}
	}

	noDisc := od.Project([]string{"OrderID", "ProductID", "UnitPrice", "Quantity"})
	got, _, err = BuildSalesTable(map[string]*table.Table{source.Orders: orders, source.OrderDetails: noDisc})
	require.NoError(t, err)
	assert.False(t, got.Has("Discount"))
	for r := range got.Rows {
		p := got.Value(r, "UnitPrice").(float64)
		q := float64(got.Value(r, "Quantity").(int64))
		if tp := got.Value(r, "TotalPrice").(float64); tp != p*q {
			t.Fatalf("row %d: TotalPrice=%v, want %v", r, tp, p*q)
		}
	}
}

func TestBuildSalesTable_NoPriceColumnDropsEverything(t *testing.T) {
	t.Parallel()

	od := mkTable(source.OrderDetails, []string{"OrderID", "Quantity"}, []any{"1", "2"})
	orders := mkTable(source.Orders, []string{"OrderID"}, []any{"1"})

	got, st, err := BuildSalesTable(map[string]*table.Table{source.Orders: orders, source.OrderDetails: od})
	require.NoError(t, err)
	assert.Zero(t, got.Len())
	assert.Equal(t, 1, st.NullTotal)
	assert.True(t, got.Has("TotalPrice"))
}

func TestBuildSalesTable_NoDateColumn(t *testing.T) {
	t.Parallel()

	od := mkTable(source.OrderDetails, []string{"OrderID", "UnitPrice", "Quantity"}, []any{"1", "2", "2"})
	orders := mkTable(source.Orders, []string{"OrderID", "ShipCountry"}, []any{"1", "Brazil"})

	got, st, err := BuildSalesTable(map[string]*table.Table{source.Orders: orders, source.OrderDetails: od})
	require.NoError(t, err)
	assert.Empty(t, st.DateColumn)
	assert.False(t, got.Has("Year"))
	assert.False(t, got.Has("Month"))
	assert.Equal(t, "Brazil", got.Value(0, "ShipCountry"))
}

func TestBuildSalesTable_MissingRequiredInput(t *testing.T) {
	t.Parallel()

	nw := northwind()
	cases := []struct {
		name string
		drop []string
		want []string
	}{
		{"no order details", []string{source.OrderDetails}, []string{source.OrderDetails}},
		{"no orders", []string{source.Orders}, []string{source.Orders}},
		{"neither", []string{source.Orders, source.OrderDetails}, []string{source.Orders, source.OrderDetails}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			in := map[string]*table.Table{}
			for k, v := range nw {
				in[k] = v
			}
			for _, d := range tc.drop {
				delete(in, d)
			}

			_, _, err := BuildSalesTable(in)
			var mre *MissingRequiredInputError
			require.True(t, errors.As(err, &mre), "err=%v", err)
			assert.Equal(t, tc.want, mre.Missing)
		})
	}
}

func TestBuildSalesTable_Idempotent(t *testing.T) {
	t.Parallel()

	render := func() []byte {
		out, _, err := BuildSalesTable(northwind())
		require.NoError(t, err)
		var buf bytes.Buffer
		require.NoError(t, csvparser.WriteTable(&buf, out))
		return buf.Bytes()
	}

	first, second := render(), render()
	assert.Equal(t, first, second)
	assert.NotEmpty(t, first)
}

func TestToTime(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   any
		want any
	}{
		{"2024-01-05", time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)},
		{"1996-07-04 00:00:00.000", time.Date(1996, 7, 4, 0, 0, 0, 0, time.UTC)},
		{"2024-03-01T10:00:00Z", time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"7/4/1996", time.Date(1996, 7, 4, 0, 0, 0, 0, time.UTC)},
		{"", nil},
		{"garbage", nil},
		{int64(1700000000), nil},
		{nil, nil},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, toTime(tc.in), "toTime(%#v)", tc.in)
	}
}

func TestCanonicalColumn(t *testing.T) {
	assert.Equal(t, "UnitPrice", CanonicalColumn(" unitPrice "))
	assert.Equal(t, "OrderID", CanonicalColumn("OrderID"))
	assert.Equal(t, "Freight_x", CanonicalColumn("Freight_x"))

	for tbl, cols := range RequiredColumns {
		for _, c := range cols {
			assert.Equal(t, c, CanonicalColumn(c), "%s.%s should already be canonical", tbl, c)
		}
	}
}
