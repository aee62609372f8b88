// Package extract materializes each logical table from the source chosen for
// it by the resolver.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"salesetl/internal/datasource"
	"salesetl/internal/metrics"
	csvparser "salesetl/internal/parser/csv"
	"salesetl/internal/source"
	"salesetl/internal/table"
)

// ExtractionError reports that one table could not be read. It never aborts
// the run; the table is treated as absent downstream.
type ExtractionError struct {
	Table  string
	Source source.Kind
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s from %s: %v", e.Table, e.Source, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// physicalNames maps logical names onto the physical table name in the
// primary SQL source where they differ.
var physicalNames = map[source.Kind]map[string]string{
	source.PrimarySQL: {source.OrderDetails: "Order Details"},
}

// BuildQuery returns the default extraction query for a logical table on a
// live source. Names containing whitespace are bracket-quoted.
func BuildQuery(kind source.Kind, logical string) string {
	name := logical
	if p, ok := physicalNames[kind][logical]; ok {
		name = p
	}
	if strings.ContainsAny(name, " \t") {
		name = "[" + name + "]"
	}
	return "SELECT * FROM " + name
}

// Extractor reads tables from live handles or CSV files.
type Extractor struct {
	Handles map[source.Kind]datasource.Handle
	CSV     csvparser.Options
	// Queries overrides the default query per logical table.
	Queries map[string]string
	Logger  *zap.Logger
}

// New returns an Extractor over the given handles. Nil entries are dropped.
func New(handles map[source.Kind]datasource.Handle, csvOpt csvparser.Options, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	hs := make(map[source.Kind]datasource.Handle, len(handles))
	for k, h := range handles {
		if h != nil {
			hs[k] = h
		}
	}
	return &Extractor{Handles: hs, CSV: csvOpt, Logger: logger}
}

// Query returns the query that will be run for logical on kind.
func (e *Extractor) Query(kind source.Kind, logical string) string {
	if q, ok := e.Queries[logical]; ok && strings.TrimSpace(q) != "" {
		return q
	}
	return BuildQuery(kind, logical)
}

// Extract reads one table according to d. The returned table is named after
// the logical table whatever the physical source called it.
func (e *Extractor) Extract(ctx context.Context, d source.Decision) (*table.Table, error) {
	if !d.Extract {
		return nil, &ExtractionError{Table: d.Table, Source: d.Source, Err: errors.New(d.Reason)}
	}

	var (
		t   *table.Table
		err error
	)
	switch d.Source {
	case source.CSVFallback:
		t, err = csvparser.ReadFile(ctx, d.File, e.CSV)
	case source.PrimarySQL, source.SecondaryStore:
		h, ok := e.Handles[d.Source]
		if !ok {
			err = errors.New("no open handle")
			break
		}
		t, err = h.RunQuery(ctx, e.Query(d.Source, d.Table))
	default:
		err = fmt.Errorf("unsupported source kind %q", d.Source)
	}
	if err != nil {
		return nil, &ExtractionError{Table: d.Table, Source: d.Source, Err: err}
	}
	t.Name = d.Table
	return t, nil
}

// Result is the outcome of ExtractAll.
type Result struct {
	Tables  map[string]*table.Table
	Skipped []source.Decision
	Failed  []*ExtractionError
}

// ExtractAll runs every decision in order. Skips and failures are logged and
// collected; only context cancellation stops the loop early.
func (e *Extractor) ExtractAll(ctx context.Context, decisions []source.Decision) (Result, error) {
	res := Result{Tables: make(map[string]*table.Table, len(decisions))}
	log := e.logger()

	for _, d := range decisions {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if !d.Extract {
			res.Skipped = append(res.Skipped, d)
			metrics.RecordTable("skipped")
			log.Info("table skipped",
				zap.String("table", d.Table),
				zap.String("source", string(d.Source)),
				zap.String("reason", d.Reason))
			continue
		}

		start := time.Now()
		t, err := e.Extract(ctx, d)
		if err != nil {
			var xe *ExtractionError
			if !errors.As(err, &xe) {
				xe = &ExtractionError{Table: d.Table, Source: d.Source, Err: err}
			}
			res.Failed = append(res.Failed, xe)
			metrics.RecordTable("failed")
			log.Error("table extraction failed",
				zap.String("table", d.Table),
				zap.String("source", string(d.Source)),
				zap.Error(xe.Err))
			continue
		}

		res.Tables[d.Table] = t
		metrics.RecordTable("extracted")
		metrics.RecordTableRows(d.Table, string(d.Source), t.Len())
		log.Info("table extracted",
			zap.String("table", d.Table),
			zap.String("source", string(d.Source)),
			zap.Int("rows", t.Len()),
			zap.Duration("duration", time.Since(start).Truncate(time.Millisecond)))
	}
	return res, nil
}

func (e *Extractor) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}
