package report

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
)

// Money formats d as "$1,234.56".
func Money(d decimal.Decimal) string {
	s := d.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	out := "$" + b.String() + "." + frac
	if neg {
		out = "-" + out
	}
	return out
}

// Period renders the label of a trend point.
func (m MonthRevenue) Period() string {
	if m.Year == 0 {
		return time.Month(m.Month).String()
	}
	return fmt.Sprintf("%04d-%02d", m.Year, m.Month)
}

func (r *Report) scope() string {
	if r.Year == 0 {
		return "All years"
	}
	return fmt.Sprintf("Year %d", r.Year)
}

// WriteText renders r as aligned plain text.
func WriteText(w io.Writer, r *Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	p := func(format string, args ...any) { fmt.Fprintf(tw, format, args...) }

	p("Northwind sales report (%s)\n\n", r.scope())
	p("Total Revenue\t%s\n", Money(r.KPIs.Revenue))
	p("Total Orders\t%d\n", r.KPIs.Orders)
	p("Total Customers\t%d\n", r.KPIs.Customers)
	p("Avg Order Value\t%s\n", Money(r.KPIs.AvgOrderValue))

	p("\nSales trend (monthly)\n")
	for _, m := range r.Monthly {
		p("  %s\t%s\n", m.Period(), Money(m.Revenue))
	}
	p("\nSales by category\n")
	for _, c := range r.ByCategory {
		p("  %s\t%s\n", c.Name, Money(c.Revenue))
	}
	p("\nTop %d products by revenue\n", TopN)
	for i, pr := range r.TopProducts {
		p("  %d. %s\t%s\n", i+1, pr.Name, Money(pr.Revenue))
	}
	p("\nSales by country\n")
	if !r.HasCountries {
		p("  ShipCountry data not available.\n")
	}
	for _, c := range r.TopCountries {
		p("  %s\t%s\n", c.Name, Money(c.Revenue))
	}
	return tw.Flush()
}

// WriteJSON renders r as indented JSON. Amounts are decimal strings.
func WriteJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

var pageTmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"money": Money,
	"inc":   func(i int) int { return i + 1 },
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Northwind Analytical Dashboard</title>
<style>
body { font-family: sans-serif; margin: 2em; }
.kpis { display: flex; gap: 2em; }
.kpi { border: 1px solid #ddd; padding: 1em; }
table { border-collapse: collapse; margin-bottom: 2em; }
td, th { padding: 0.25em 1em; border-bottom: 1px solid #eee; text-align: left; }
td.amount { text-align: right; }
</style>
</head>
<body>
<h1>Northwind Analytical Dashboard</h1>
<p class="scope">{{.Scope}}{{if .Report.Years}} (available years:{{range .Report.Years}} {{.}}{{end}}){{end}}</p>
<div class="kpis">
<div class="kpi" id="kpi-revenue"><h3>Total Revenue</h3><span class="value">{{money .Report.KPIs.Revenue}}</span></div>
<div class="kpi" id="kpi-orders"><h3>Total Orders</h3><span class="value">{{.Report.KPIs.Orders}}</span></div>
<div class="kpi" id="kpi-customers"><h3>Total Customers</h3><span class="value">{{.Report.KPIs.Customers}}</span></div>
<div class="kpi" id="kpi-aov"><h3>Avg Order Value</h3><span class="value">{{money .Report.KPIs.AvgOrderValue}}</span></div>
</div>
<h2>Sales Trend (Monthly)</h2>
<table id="monthly"><tr><th>Period</th><th>Revenue</th></tr>
{{range .Report.Monthly}}<tr><td>{{.Period}}</td><td class="amount">{{money .Revenue}}</td></tr>
{{end}}</table>
<h2>Sales by Category</h2>
<table id="categories"><tr><th>Category</th><th>Revenue</th></tr>
{{range .Report.ByCategory}}<tr><td>{{.Name}}</td><td class="amount">{{money .Revenue}}</td></tr>
{{end}}</table>
<h2>Top 10 Products by Revenue</h2>
<table id="products"><tr><th>#</th><th>Product</th><th>Revenue</th></tr>
{{range $i, $p := .Report.TopProducts}}<tr><td>{{inc $i}}</td><td>{{$p.Name}}</td><td class="amount">{{money $p.Revenue}}</td></tr>
{{end}}</table>
<h2>Sales by Country</h2>
{{if .Report.HasCountries}}<table id="countries"><tr><th>Country</th><th>Revenue</th></tr>
{{range .Report.TopCountries}}<tr><td>{{.Name}}</td><td class="amount">{{money .Revenue}}</td></tr>
{{end}}</table>{{else}}<p id="countries-missing">ShipCountry data not available.</p>{{end}}
</body>
</html>
`))

// WriteHTML renders r as a standalone HTML page.
func WriteHTML(w io.Writer, r *Report) error {
	return pageTmpl.Execute(w, struct {
		Scope  string
		Report *Report
	}{r.scope(), r})
}

// Write renders r in format: "text", "json" or "html".
func Write(w io.Writer, r *Report, format string) error {
	switch strings.ToLower(format) {
	case "", "text":
		return WriteText(w, r)
	case "json":
		return WriteJSON(w, r)
	case "html":
		return WriteHTML(w, r)
	default:
		return fmt.Errorf("report: unknown format %q", format)
	}
}
