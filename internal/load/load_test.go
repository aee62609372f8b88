package load

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"salesetl/internal/storage"
	_ "salesetl/internal/storage/all"
	"salesetl/internal/table"
)

func sampleFact() *table.Table {
	t := table.New("SalesFact", "OrderID", "ProductID", "OrderDate", "TotalPrice", "CustomerID", "Discontinued")
	t.AppendRow(int64(1), int64(10), time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), 9.0, "007", false)
	t.AppendRow("2", int64(11), nil, 12.5, "ALFKI", nil)
	return t
}

func TestSaveCSV_CreatesDirectoriesAndReplaces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data", "clean", "sales_clean.csv")

	require.NoError(t, SaveCSV(path, sampleFact()))
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t,
		"OrderID,ProductID,OrderDate,TotalPrice,CustomerID,Discontinued\n"+
			"1,10,2024-01-05,9.0,007,False\n"+
			"2,11,,12.5,ALFKI,\n",
		string(got))

	small := table.New("SalesFact", "OrderID")
	small.AppendRow(int64(3))
	require.NoError(t, SaveCSV(path, small))
	got, err = os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "OrderID\n3\n", string(got))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
}

func TestSaveCSV_ParentIsAFile(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "data")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	err := SaveCSV(filepath.Join(blocker, "out.csv"), sampleFact())
	var pe *PersistError
	require.True(t, errors.As(err, &pe), "got %v", err)
	require.Equal(t, "create directory", pe.Op)
}

func TestInferSpec(t *testing.T) {
	spec, rows := InferSpec("sales_fact", sampleFact())

	types := map[string]storage.ColumnType{}
	for _, c := range spec.Columns {
		types[c.Name] = c.Type
		require.True(t, c.Nullable)
	}
	require.Equal(t, map[string]storage.ColumnType{
		"OrderID":      storage.TypeInteger,
		"ProductID":    storage.TypeInteger,
		"OrderDate":    storage.TypeTimestamp,
		"TotalPrice":   storage.TypeReal,
		"CustomerID":   storage.TypeText,
		"Discontinued": storage.TypeText,
	}, types)

	require.Equal(t, int64(2), rows[1][0])
	require.Nil(t, rows[1][2])
	require.Equal(t, "007", rows[0][4])
	require.Equal(t, "False", rows[0][5])
}

func TestInferSpec_MixedNumbersAreReal(t *testing.T) {
	tb := table.New("x", "v", "empty")
	tb.AppendRow(int64(1), nil)
	tb.AppendRow("2.5", nil)

	spec, rows := InferSpec("x", tb)
	require.Equal(t, storage.TypeReal, spec.Columns[0].Type)
	require.Equal(t, storage.TypeText, spec.Columns[1].Type)
	require.Equal(t, 1.0, rows[0][0])
	require.Equal(t, 2.5, rows[1][0])
}

func TestDBSink_SQLiteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "warehouse.db")

	sink, err := OpenDBSink(ctx, storage.Config{Kind: "sqlite", DSN: path}, "")
	require.NoError(t, err)
	defer sink.Close()
	require.Equal(t, DefaultFactTable, sink.Table)

	for i := 0; i < 2; i++ {
		n, err := sink.Load(ctx, sampleFact())
		require.NoError(t, err)
		require.Equal(t, int64(2), n)
	}

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM "sales_fact"`).Scan(&count))
	require.Equal(t, 2, count)

	var total float64
	require.NoError(t, db.QueryRowContext(ctx, `SELECT SUM("TotalPrice") FROM "sales_fact"`).Scan(&total))
	require.InDelta(t, 21.5, total, 1e-9)
}

func TestOpenDBSink_UnknownKind(t *testing.T) {
	_, err := OpenDBSink(context.Background(), storage.Config{Kind: "oracle"}, "t")
	var pe *PersistError
	require.True(t, errors.As(err, &pe))
	require.Equal(t, "connect", pe.Op)
}
