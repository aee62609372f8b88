package load

import (
	"context"
	"strconv"
	"strings"
	"time"

	csvparser "salesetl/internal/parser/csv"
	"salesetl/internal/storage"
	"salesetl/internal/table"
)

// DefaultFactTable is the destination table name when none is configured.
const DefaultFactTable = "sales_fact"

// DBSink loads the SalesFact table into a relational table through a
// storage.Repository.
type DBSink struct {
	Repo  storage.Repository
	Table string
}

// OpenDBSink opens the backend described by cfg.
func OpenDBSink(ctx context.Context, cfg storage.Config, tableName string) (*DBSink, error) {
	if tableName == "" {
		tableName = DefaultFactTable
	}
	repo, err := storage.New(ctx, cfg)
	if err != nil {
		return nil, &PersistError{Target: cfg.Kind + ":" + tableName, Op: "connect", Err: err}
	}
	return &DBSink{Repo: repo, Table: tableName}, nil
}

// Load creates the table if needed and replaces its content with t. It
// returns the number of rows written.
func (s *DBSink) Load(ctx context.Context, t *table.Table) (int64, error) {
	target := s.Table
	spec, rows := InferSpec(s.Table, t)

	if err := s.Repo.EnsureTable(ctx, spec); err != nil {
		return 0, &PersistError{Target: target, Op: "ensure table", Err: err}
	}
	n, err := s.Repo.ReplaceRows(ctx, spec.Name, spec.ColumnNames(), rows)
	if err != nil {
		return 0, &PersistError{Target: target, Op: "replace rows", Err: err}
	}
	return n, nil
}

// Close closes the underlying repository.
func (s *DBSink) Close() {
	if s != nil && s.Repo != nil {
		s.Repo.Close()
	}
}

// InferSpec derives a table spec from the values in t and returns the rows
// converted to match it. Every column is nullable.
//
//   - only times: timestamp
//   - only integers (int64, or digit strings without leading zeros): integer
//   - only numbers: real
//   - anything else, including all-null columns: text
func InferSpec(name string, t *table.Table) (storage.TableSpec, [][]any) {
	spec := storage.TableSpec{Name: name, Columns: make([]storage.ColumnSpec, len(t.Columns))}
	rows := make([][]any, len(t.Rows))
	for r := range t.Rows {
		rows[r] = make([]any, len(t.Columns))
	}

	for c, col := range t.Columns {
		typ := inferType(t, c)
		spec.Columns[c] = storage.ColumnSpec{Name: col, Type: typ, Nullable: true}
		for r, row := range t.Rows {
			rows[r][c] = convert(row[c], typ)
		}
	}
	return spec, rows
}

func inferType(t *table.Table, c int) storage.ColumnType {
	var times, ints, floats, others, seen int
	for _, row := range t.Rows {
		switch v := row[c].(type) {
		case nil:
			continue
		case time.Time:
			times++
		case int64, int, int32:
			ints++
		case float64:
			floats++
		case string:
			if _, ok := parseInt(v); ok {
				ints++
			} else if _, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				floats++
			} else {
				others++
			}
		default:
			others++
		}
		seen++
	}

	switch {
	case seen == 0 || others > 0:
		return storage.TypeText
	case times == seen:
		return storage.TypeTimestamp
	case ints == seen:
		return storage.TypeInteger
	case ints+floats == seen:
		return storage.TypeReal
	default:
		return storage.TypeText
	}
}

// parseInt accepts canonical integers only, so codes like "007" stay text.
func parseInt(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || strconv.FormatInt(n, 10) != s {
		return 0, false
	}
	return n, true
}

func convert(v any, typ storage.ColumnType) any {
	if v == nil {
		return nil
	}
	switch typ {
	case storage.TypeInteger:
		switch t := v.(type) {
		case int64:
			return t
		case int:
			return int64(t)
		case int32:
			return int64(t)
		case string:
			n, _ := parseInt(t)
			return n
		}
	case storage.TypeReal:
		switch t := v.(type) {
		case float64:
			return t
		case int64:
			return float64(t)
		case int:
			return float64(t)
		case int32:
			return float64(t)
		case string:
			f, _ := strconv.ParseFloat(strings.TrimSpace(t), 64)
			return f
		}
	case storage.TypeTimestamp:
		return v
	}
	return csvparser.FormatValue(v)
}
