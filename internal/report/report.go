// Package report aggregates the SalesFact CSV into dashboard figures: KPIs,
// a monthly trend and revenue rankings.
package report

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	csvparser "salesetl/internal/parser/csv"
	"salesetl/internal/table"
)

// TopN bounds the product and country rankings.
const TopN = 10

// ErrNoData is returned by LoadCSV when the sales file does not exist.
var ErrNoData = errors.New("sales data not found; run salesetl first")

// MissingColumnError reports a column the report cannot do without.
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("report: missing column %q", e.Column)
}

type KPIs struct {
	Revenue       decimal.Decimal `json:"total_revenue"`
	Orders        int             `json:"total_orders"`
	Customers     int             `json:"total_customers"`
	AvgOrderValue decimal.Decimal `json:"avg_order_value"`
}

// MonthRevenue is one point of the trend. Year is 0 when the report is
// filtered to a single year.
type MonthRevenue struct {
	Year    int             `json:"year,omitempty"`
	Month   int             `json:"month"`
	Revenue decimal.Decimal `json:"revenue"`
}

type NamedRevenue struct {
	Name    string          `json:"name"`
	Revenue decimal.Decimal `json:"revenue"`
}

// Report is the aggregated view of one (optionally year-filtered) data set.
type Report struct {
	// Year is the selected year, 0 for all years.
	Year  int   `json:"year,omitempty"`
	Years []int `json:"available_years"`
	Rows  int   `json:"rows"`

	KPIs        KPIs           `json:"kpis"`
	Monthly     []MonthRevenue `json:"monthly"`
	ByCategory  []NamedRevenue `json:"by_category"`
	TopProducts []NamedRevenue `json:"top_products"`
	// TopCountries is nil when the data has no ShipCountry column.
	TopCountries []NamedRevenue `json:"top_countries,omitempty"`
	HasCountries bool           `json:"has_countries"`
}

// LoadCSV reads the sales CSV written by the pipeline.
func LoadCSV(ctx context.Context, path string) (*table.Table, error) {
	t, err := csvparser.ReadFile(ctx, path, csvparser.DefaultOptions())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, ErrNoData)
	}
	return t, err
}

// AvailableYears lists the distinct years present, ascending.
func AvailableYears(t *table.Table) []int {
	yi := t.Index("Year")
	if yi < 0 {
		return nil
	}
	seen := map[int]bool{}
	for _, row := range t.Rows {
		if y, ok := toInt(row[yi]); ok {
			seen[y] = true
		}
	}
	out := make([]int, 0, len(seen))
	for y := range seen {
		out = append(out, y)
	}
	sort.Ints(out)
	return out
}

// Summarize builds the report. year 0 selects every row.
//
// TotalPrice and OrderID are required. Rankings whose grouping column is
// absent are empty. Null group keys and null prices are skipped.
func Summarize(t *table.Table, year int) (*Report, error) {
	for _, c := range []string{"TotalPrice", "OrderID"} {
		if !t.Has(c) {
			return nil, &MissingColumnError{Column: c}
		}
	}
	if year != 0 && !t.Has("Year") {
		return nil, &MissingColumnError{Column: "Year"}
	}

	r := &Report{Year: year, Years: AvailableYears(t)}

	var (
		price    = t.Index("TotalPrice")
		order    = t.Index("OrderID")
		customer = t.Index("CustomerID")
		yearIdx  = t.Index("Year")
		month    = t.Index("Month")
		category = t.Index("CategoryName")
		product  = t.Index("ProductName")
		country  = t.Index("ShipCountry")
	)

	orders := map[string]bool{}
	customers := map[string]bool{}
	monthly := map[[2]int]decimal.Decimal{}
	byCategory := map[string]decimal.Decimal{}
	byProduct := map[string]decimal.Decimal{}
	byCountry := map[string]decimal.Decimal{}

	for _, row := range t.Rows {
		y, hasYear := 0, false
		if yearIdx >= 0 {
			y, hasYear = toInt(row[yearIdx])
		}
		if year != 0 && (!hasYear || y != year) {
			continue
		}
		r.Rows++

		if k := table.NormalizeKey(row[order]); k != "" {
			orders[k] = true
		}
		if customer >= 0 {
			if k := table.NormalizeKey(row[customer]); k != "" {
				customers[k] = true
			}
		}

		amount, ok := toDecimal(row[price])
		if !ok {
			continue
		}
		r.KPIs.Revenue = r.KPIs.Revenue.Add(amount)

		if m, ok := column(row, month); ok && hasYear {
			if mi, ok := toInt(m); ok {
				key := [2]int{y, mi}
				if year != 0 {
					key[0] = 0
				}
				monthly[key] = monthly[key].Add(amount)
			}
		}
		addTo(byCategory, row, category, amount)
		addTo(byProduct, row, product, amount)
		addTo(byCountry, row, country, amount)
	}

	r.KPIs.Orders = len(orders)
	r.KPIs.Customers = len(customers)
	if r.KPIs.Orders > 0 {
		r.KPIs.AvgOrderValue = r.KPIs.Revenue.Div(decimal.NewFromInt(int64(r.KPIs.Orders)))
	}

	r.Monthly = make([]MonthRevenue, 0, len(monthly))
	for k, v := range monthly {
		r.Monthly = append(r.Monthly, MonthRevenue{Year: k[0], Month: k[1], Revenue: v})
	}
	sort.Slice(r.Monthly, func(i, j int) bool {
		a, b := r.Monthly[i], r.Monthly[j]
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		return a.Month < b.Month
	})

	r.ByCategory = ranked(byCategory, true, 0)
	r.TopProducts = ranked(byProduct, false, TopN)
	if country >= 0 {
		r.HasCountries = true
		r.TopCountries = ranked(byCountry, false, TopN)
	}
	return r, nil
}

func column(row []any, i int) (any, bool) {
	if i < 0 || row[i] == nil {
		return nil, false
	}
	return row[i], true
}

func addTo(m map[string]decimal.Decimal, row []any, i int, amount decimal.Decimal) {
	v, ok := column(row, i)
	if !ok {
		return
	}
	name := strings.TrimSpace(cast.ToString(v))
	if name == "" {
		return
	}
	m[name] = m[name].Add(amount)
}

// ranked orders m by revenue (ties by name) and keeps at most limit entries
// when limit > 0.
func ranked(m map[string]decimal.Decimal, ascending bool, limit int) []NamedRevenue {
	out := make([]NamedRevenue, 0, len(m))
	for k, v := range m {
		out = append(out, NamedRevenue{Name: k, Revenue: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Revenue.Cmp(out[j].Revenue); c != 0 {
			return (c < 0) == ascending
		}
		return out[i].Name < out[j].Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case nil:
		return decimal.Zero, false
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(t))
		return d, err == nil
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(t), true
	default:
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(f), true
	}
}

// toInt accepts 2024, "2024" and "2024.0".
func toInt(v any) (int, bool) {
	if v == nil {
		return 0, false
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}
