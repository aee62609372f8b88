// Package probe inspects a CSV fallback folder before a run: which file each
// logical table would be read from, what its columns look like, and whether
// the columns the sales transformation depends on are present.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"go.uber.org/zap"

	csvparser "salesetl/internal/parser/csv"
	"salesetl/internal/source"
	"salesetl/internal/transform"
)

// DefaultSampleRows bounds type inference.
const DefaultSampleRows = 1000

// Options control probing.
type Options struct {
	Dir        string
	CSV        csvparser.Options
	SampleRows int
	Logger     *zap.Logger
}

// Column describes one column of a probed file.
type Column struct {
	Header    string `json:"header"`
	Canonical string `json:"canonical"`
	Type      string `json:"type"`
	Layout    string `json:"layout,omitempty"`
}

// TableReport is the probe outcome for one logical table.
type TableReport struct {
	Table string `json:"table"`
	File  string `json:"file,omitempty"`
	// Rows is the total row count; SampledRows the rows used for inference.
	Rows            int      `json:"rows"`
	SampledRows     int      `json:"sampled_rows"`
	Columns         []Column `json:"columns,omitempty"`
	MissingRequired []string `json:"missing_required,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// Found reports whether a file matched and was readable.
func (t TableReport) Found() bool { return t.File != "" && t.Error == "" }

// Result is the probe outcome for every logical table.
type Result struct {
	Dir    string        `json:"dir"`
	Tables []TableReport `json:"tables"`
}

// Ready reports whether a run over the folder can produce output: Orders and
// OrderDetails were found with their required columns.
func (r Result) Ready() bool {
	for _, t := range r.Tables {
		if t.Table != source.Orders && t.Table != source.OrderDetails {
			continue
		}
		if !t.Found() || len(t.MissingRequired) > 0 {
			return false
		}
	}
	return len(r.Tables) > 0
}

// Run probes opt.Dir. An unreadable folder is an error; per-file problems are
// reported in the result.
func Run(ctx context.Context, opt Options) (Result, error) {
	log := opt.Logger
	if log == nil {
		log = zap.NewNop()
	}
	sample := opt.SampleRows
	if sample <= 0 {
		sample = DefaultSampleRows
	}

	files, err := source.ListCSV(opt.Dir)
	if err != nil {
		return Result{}, fmt.Errorf("probe %s: %w", opt.Dir, err)
	}

	res := Result{Dir: opt.Dir}
	for _, name := range source.LogicalTables {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		tr := TableReport{Table: name}
		f, ok := source.MatchFile(name, files)
		if !ok {
			log.Debug("no file", zap.String("table", name))
			res.Tables = append(res.Tables, tr)
			continue
		}
		tr.File = f

		t, err := csvparser.ReadFile(ctx, f, opt.CSV)
		if err != nil {
			tr.Error = err.Error()
			log.Warn("probe read failed", zap.String("table", name), zap.String("file", f), zap.Error(err))
			res.Tables = append(res.Tables, tr)
			continue
		}
		tr.Rows = t.Len()
		rows := t.Rows
		if len(rows) > sample {
			rows = rows[:sample]
		}
		tr.SampledRows = len(rows)

		types := inferTypes(len(t.Columns), rows)
		layouts := detectColumnLayouts(rows, types)
		have := map[string]bool{}
		for i, h := range t.Columns {
			c := Column{Header: h, Canonical: transform.CanonicalColumn(h), Type: types[i], Layout: layouts[i]}
			have[c.Canonical] = true
			tr.Columns = append(tr.Columns, c)
		}
		for _, req := range transform.RequiredColumns[name] {
			if !have[req] {
				tr.MissingRequired = append(tr.MissingRequired, req)
			}
		}
		log.Debug("probed", zap.String("table", name), zap.String("file", f), zap.Int("rows", tr.Rows))
		res.Tables = append(res.Tables, tr)
	}
	return res, nil
}

// WriteText renders res as a human-readable summary.
func WriteText(w io.Writer, res Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "dir=%s ready=%t\n", res.Dir, res.Ready())
	for _, t := range res.Tables {
		switch {
		case t.File == "":
			fmt.Fprintf(tw, "\n%s: no matching CSV file\n", t.Table)
			continue
		case t.Error != "":
			fmt.Fprintf(tw, "\n%s: %s: %s\n", t.Table, t.File, t.Error)
			continue
		}
		fmt.Fprintf(tw, "\n%s: %s rows=%d sampled=%d\n", t.Table, t.File, t.Rows, t.SampledRows)
		if len(t.MissingRequired) > 0 {
			fmt.Fprintf(tw, "  missing required: %s\n", strings.Join(t.MissingRequired, ", "))
		}
		fmt.Fprintf(tw, "  header\tcanonical\ttype\tlayout\n")
		for _, c := range t.Columns {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", c.Header, c.Canonical, c.Type, c.Layout)
		}
	}
	return tw.Flush()
}

// WriteJSON renders res as indented JSON.
func WriteJSON(w io.Writer, res Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Result
		Ready bool `json:"ready"`
	}{res, res.Ready()})
}
