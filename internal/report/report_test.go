package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	csvparser "salesetl/internal/parser/csv"
	"salesetl/internal/table"
)

const salesCSV = `OrderID,ProductID,ProductName,CategoryName,CustomerID,TotalPrice,Year,Month,ShipCountry
1,10,Chai,Beverages,ALFKI,100.0,2023,12,Germany
1,11,Chang,Beverages,ALFKI,50.5,2023,12,Germany
2,12,Tofu,Produce,BONAP,200.0,2024,1,France
3,10,Chai,Beverages,ALFKI,10.0,2024,1,Germany
4,13,Ikura,Seafood,,,2024,2,
5,12,Tofu,Produce,CACTU,0.1,2024,2,Argentina
6,12,Tofu,Produce,CACTU,0.2,2024,2,Argentina
`

func readSales(t *testing.T, body string) *table.Table {
	t.Helper()
	tb, err := csvparser.ReadTable(context.Background(), strings.NewReader(body), "sales_clean", csvparser.DefaultOptions())
	require.NoError(t, err)
	return tb
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func names(rs []NamedRevenue) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Name
	}
	return out
}

func TestSummarize_AllYears(t *testing.T) {
	r, err := Summarize(readSales(t, salesCSV), 0)
	require.NoError(t, err)

	assert.Equal(t, []int{2023, 2024}, r.Years)
	assert.Equal(t, 7, r.Rows)
	assert.True(t, r.KPIs.Revenue.Equal(dec("360.8")), r.KPIs.Revenue.String())
	assert.Equal(t, 6, r.KPIs.Orders)
	assert.Equal(t, 3, r.KPIs.Customers)
	assert.Equal(t, "$60.13", Money(r.KPIs.AvgOrderValue))

	require.Len(t, r.Monthly, 3)
	assert.Equal(t, "2023-12", r.Monthly[0].Period())
	assert.True(t, r.Monthly[0].Revenue.Equal(dec("150.5")))
	assert.Equal(t, "2024-02", r.Monthly[2].Period())
	assert.True(t, r.Monthly[2].Revenue.Equal(dec("0.3")), "decimal sums stay exact")

	assert.Equal(t, []string{"Beverages", "Produce"}, names(r.ByCategory))
	assert.Equal(t, []string{"Tofu", "Chai", "Chang"}, names(r.TopProducts))
	assert.True(t, r.HasCountries)
	assert.Equal(t, []string{"France", "Germany", "Argentina"}, names(r.TopCountries))
}

func TestSummarize_YearFilter(t *testing.T) {
	r, err := Summarize(readSales(t, salesCSV), 2024)
	require.NoError(t, err)

	assert.Equal(t, 5, r.Rows)
	assert.True(t, r.KPIs.Revenue.Equal(dec("210.3")))
	assert.Equal(t, 5, r.KPIs.Orders)
	assert.Equal(t, 3, r.KPIs.Customers)

	require.Len(t, r.Monthly, 2)
	assert.Equal(t, MonthRevenue{Month: 1, Revenue: r.Monthly[0].Revenue}, r.Monthly[0])
	assert.Equal(t, "January", r.Monthly[0].Period())
	assert.Equal(t, []int{2023, 2024}, r.Years, "available years ignore the filter")
}

func TestSummarize_EmptyAndMissing(t *testing.T) {
	r, err := Summarize(readSales(t, "OrderID,TotalPrice\n"), 0)
	require.NoError(t, err)
	assert.Equal(t, 0, r.KPIs.Orders)
	assert.True(t, r.KPIs.AvgOrderValue.IsZero())
	assert.False(t, r.HasCountries)
	assert.Nil(t, r.TopCountries)

	_, err = Summarize(readSales(t, "OrderID\n1\n"), 0)
	var mc *MissingColumnError
	require.True(t, errors.As(err, &mc))
	assert.Equal(t, "TotalPrice", mc.Column)

	_, err = Summarize(readSales(t, "OrderID,TotalPrice\n1,2\n"), 2024)
	require.True(t, errors.As(err, &mc))
	assert.Equal(t, "Year", mc.Column)
}

func TestSummarize_TopNLimit(t *testing.T) {
	var b strings.Builder
	b.WriteString("OrderID,ProductName,TotalPrice\n")
	for i := 0; i < 15; i++ {
		fmt.Fprintf(&b, "%d,P%c,%d\n", i, 'A'+i, i+1)
	}
	r, err := Summarize(readSales(t, b.String()), 0)
	require.NoError(t, err)
	require.Len(t, r.TopProducts, TopN)
	assert.Equal(t, "PO", r.TopProducts[0].Name)
}

func TestMoney(t *testing.T) {
	cases := map[string]string{
		"0":           "$0.00",
		"999":         "$999.00",
		"1234567.891": "$1,234,567.89",
		"-1234.5":     "-$1,234.50",
		"100000":      "$100,000.00",
	}
	for in, want := range cases {
		assert.Equal(t, want, Money(dec(in)), in)
	}
}

func TestWriteHTML(t *testing.T) {
	body := strings.Replace(salesCSV, "Chang", "<b>Chang</b>", 1)
	r, err := Summarize(readSales(t, body), 0)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, r))

	doc, err := goquery.NewDocumentFromReader(&buf)
	require.NoError(t, err)

	assert.Equal(t, "$360.80", doc.Find("#kpi-revenue .value").Text())
	assert.Equal(t, "6", doc.Find("#kpi-orders .value").Text())
	assert.Equal(t, 4, doc.Find("#products tr").Length())
	assert.Equal(t, "Tofu", doc.Find("#products tr").Eq(1).Find("td").Eq(1).Text())
	assert.Equal(t, "<b>Chang</b>", doc.Find("#products tr").Eq(3).Find("td").Eq(1).Text())
	assert.Equal(t, 0, doc.Find("#products b").Length(), "names are escaped")
	assert.Equal(t, 4, doc.Find("#countries tr").Length())
	assert.Equal(t, 0, doc.Find("#countries-missing").Length())
}

func TestWriteHTML_NoCountries(t *testing.T) {
	r, err := Summarize(readSales(t, "OrderID,TotalPrice\n1,2.5\n"), 0)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, r))
	doc, err := goquery.NewDocumentFromReader(&buf)
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Find("#countries-missing").Length())
	assert.Equal(t, 0, doc.Find("#countries").Length())
}

func TestWriteJSONAndText(t *testing.T) {
	r, err := Summarize(readSales(t, salesCSV), 0)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, r, "json"))
	var got struct {
		KPIs struct {
			Revenue string `json:"total_revenue"`
			Orders  int    `json:"total_orders"`
		} `json:"kpis"`
		Years []int `json:"available_years"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "360.8", got.KPIs.Revenue)
	assert.Equal(t, 6, got.KPIs.Orders)
	assert.Equal(t, []int{2023, 2024}, got.Years)

	buf.Reset()
	require.NoError(t, Write(&buf, r, "text"))
	out := buf.String()
	assert.Contains(t, out, "All years")
	assert.Contains(t, out, "$360.80")
	assert.Contains(t, out, "1. Tofu")

	assert.Error(t, Write(&buf, r, "pdf"))
}

func TestLoadCSV_Missing(t *testing.T) {
	_, err := LoadCSV(context.Background(), filepath.Join(t.TempDir(), "sales_clean.csv"))
	require.ErrorIs(t, err, ErrNoData)
}

func TestLoadCSV(t *testing.T) {
	p := filepath.Join(t.TempDir(), "sales_clean.csv")
	require.NoError(t, os.WriteFile(p, []byte(salesCSV), 0o644))
	tb, err := LoadCSV(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 7, tb.Len())
}
