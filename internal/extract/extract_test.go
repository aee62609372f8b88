package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"salesetl/internal/datasource"
	"salesetl/internal/metrics"
	csvparser "salesetl/internal/parser/csv"
	"salesetl/internal/source"
	"salesetl/internal/table"
)

type fakeHandle struct {
	tables  map[string]*table.Table
	queries []string
	err     error
}

func (f *fakeHandle) RunQuery(_ context.Context, q string) (*table.Table, error) {
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	t, ok := f.tables[q]
	if !ok {
		return nil, errors.New("invalid object name")
	}
	return t.Clone(), nil
}

func (f *fakeHandle) Close() error { return nil }

func TestBuildQuery(t *testing.T) {
	t.Parallel()

	cases := []struct {
		kind    source.Kind
		logical string
		want    string
	}{
		{source.PrimarySQL, source.Orders, "SELECT * FROM Orders"},
		{source.PrimarySQL, source.OrderDetails, "SELECT * FROM [Order Details]"},
		{source.SecondaryStore, source.OrderDetails, "SELECT * FROM OrderDetails"},
		{source.SecondaryStore, "Sales Totals", "SELECT * FROM [Sales Totals]"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, BuildQuery(tc.kind, tc.logical), "%s/%s", tc.kind, tc.logical)
	}
}

func TestExtract_LiveHandleUsesLogicalName(t *testing.T) {
	od := table.New("", "OrderID", "ProductID")
	od.AppendRow(int64(10248), int64(11))
	h := &fakeHandle{tables: map[string]*table.Table{"SELECT * FROM [Order Details]": od}}

	x := New(map[source.Kind]datasource.Handle{source.PrimarySQL: h, source.SecondaryStore: nil}, csvparser.DefaultOptions(), nil)
	require.Len(t, x.Handles, 1)

	got, err := x.Extract(context.Background(), source.Decision{Table: source.OrderDetails, Source: source.PrimarySQL, Extract: true})
	require.NoError(t, err)
	assert.Equal(t, source.OrderDetails, got.Name)
	assert.Equal(t, 1, got.Len())
	assert.Equal(t, []string{"SELECT * FROM [Order Details]"}, h.queries)
}

func TestExtract_QueryOverride(t *testing.T) {
	h := &fakeHandle{tables: map[string]*table.Table{
		`SELECT * FROM "Order Details"`: table.New("", "OrderID"),
	}}
	x := New(map[source.Kind]datasource.Handle{source.PrimarySQL: h}, csvparser.DefaultOptions(), nil)
	x.Queries = map[string]string{source.OrderDetails: `SELECT * FROM "Order Details"`}

	_, err := x.Extract(context.Background(), source.Decision{Table: source.OrderDetails, Source: source.PrimarySQL, Extract: true})
	require.NoError(t, err)
	assert.Equal(t, []string{`SELECT * FROM "Order Details"`}, h.queries)
}

func TestExtract_CSVReadsWholeFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "order_details.csv")
	require.NoError(t, os.WriteFile(path, []byte("OrderID,ProductID\n10248,11\n10248,42\n"), 0o644))

	x := New(nil, csvparser.DefaultOptions(), nil)
	got, err := x.Extract(context.Background(), source.Decision{Table: source.OrderDetails, Source: source.CSVFallback, File: path, Extract: true})
	require.NoError(t, err)
	assert.Equal(t, source.OrderDetails, got.Name)
	assert.Equal(t, 2, got.Len())
}

func TestExtract_Errors(t *testing.T) {
	boom := errors.New("connection reset")
	x := New(map[source.Kind]datasource.Handle{source.PrimarySQL: &fakeHandle{err: boom}}, csvparser.DefaultOptions(), nil)

	cases := []struct {
		name string
		d    source.Decision
	}{
		{"query error", source.Decision{Table: source.Orders, Source: source.PrimarySQL, Extract: true}},
		{"missing handle", source.Decision{Table: source.Products, Source: source.SecondaryStore, Extract: true}},
		{"missing file", source.Decision{Table: source.Orders, Source: source.CSVFallback, File: filepath.Join(t.TempDir(), "orders.csv"), Extract: true}},
		{"skipped decision", source.Decision{Table: source.Orders, Source: source.PrimarySQL, Reason: "not connected"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := x.Extract(context.Background(), tc.d)
			var xe *ExtractionError
			require.ErrorAs(t, err, &xe)
			assert.Equal(t, tc.d.Table, xe.Table)
			assert.Equal(t, tc.d.Source, xe.Source)
		})
	}

	_, err := x.Extract(context.Background(), cases[0].d)
	assert.ErrorIs(t, err, boom)
}

func TestExtractAll_CollectsSkipsAndFailures(t *testing.T) {
	rec := metrics.NewRecorder()
	metrics.SetBackend(rec)
	t.Cleanup(func() { metrics.SetBackend(nil) })

	orders := table.New("", "OrderID")
	orders.AppendRow(int64(1))
	orders.AppendRow(int64(2))
	h := &fakeHandle{tables: map[string]*table.Table{"SELECT * FROM Orders": orders}}

	core, logs := observer.New(zap.InfoLevel)
	x := New(map[source.Kind]datasource.Handle{source.PrimarySQL: h}, csvparser.DefaultOptions(), zap.New(core))

	decisions := []source.Decision{
		{Table: source.Orders, Source: source.PrimarySQL, Extract: true},
		{Table: source.Customers, Source: source.PrimarySQL, Extract: true},
		{Table: source.Products, Source: source.SecondaryStore, Reason: "source secondary_store not connected"},
	}
	res, err := x.ExtractAll(context.Background(), decisions)
	require.NoError(t, err)

	require.Contains(t, res.Tables, source.Orders)
	assert.NotContains(t, res.Tables, source.Customers)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, source.Customers, res.Failed[0].Table)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, source.Products, res.Skipped[0].Table)

	assert.Equal(t, 1, logs.FilterMessage("table extracted").FilterField(zap.Int("rows", 2)).Len())
	assert.Equal(t, 1, logs.FilterMessage("table extraction failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("table skipped").Len())

	assert.Equal(t, 2.0, rec.Counter(metrics.TableRowsTotal, metrics.Labels{"table": source.Orders, "source": string(source.PrimarySQL)}))
	assert.Equal(t, 1.0, rec.Counter(metrics.TablesTotal, metrics.Labels{"status": "failed"}))
	assert.Equal(t, 1.0, rec.Counter(metrics.TablesTotal, metrics.Labels{"status": "skipped"}))
}

func TestExtractAll_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	x := New(nil, csvparser.DefaultOptions(), nil)
	_, err := x.ExtractAll(ctx, []source.Decision{{Table: source.Orders, Source: source.CSVFallback, Extract: true}})
	assert.ErrorIs(t, err, context.Canceled)
}
