package source

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Availability records which live handles a run managed to open.
type Availability struct {
	Primary   bool
	Secondary bool
}

// Any reports whether at least one live handle exists.
func (a Availability) Any() bool { return a.Primary || a.Secondary }

// Has reports whether a handle of kind k is available. CSV is never a live
// handle.
func (a Availability) Has(k Kind) bool {
	switch k {
	case PrimarySQL:
		return a.Primary
	case SecondaryStore:
		return a.Secondary
	default:
		return false
	}
}

// Decision is the per-table outcome of resolution.
type Decision struct {
	Table  string
	Source Kind
	// File is the matched CSV path when Source is CSVFallback.
	File    string
	Extract bool
	// Reason explains why Extract is false.
	Reason string
}

// Resolver turns a source map and run-time availability into decisions.
type Resolver struct {
	Map         Map
	Tables      []string
	FallbackDir string
	Logger      *zap.Logger

	// listCSV is a test seam; nil uses the filesystem.
	listCSV func(dir string) ([]string, error)
}

// NewResolver builds a resolver over the standard logical tables.
func NewResolver(m Map, fallbackDir string, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		Map:         m,
		Tables:      append([]string(nil), LogicalTables...),
		FallbackDir: fallbackDir,
		Logger:      logger,
	}
}

// Resolve returns one decision per table, in r.Tables order.
func (r *Resolver) Resolve(avail Availability) []Decision {
	if !avail.Any() {
		return r.resolveCSV()
	}

	out := make([]Decision, 0, len(r.Tables))
	for _, t := range r.Tables {
		k, ok := r.Map[t]
		if !ok {
			out = append(out, Decision{Table: t, Reason: "table not present in source map"})
			r.logger().Warn("source map has no binding", zap.String("table", t))
			continue
		}
		d := Decision{Table: t, Source: k}
		switch {
		case k == CSVFallback:
			// Partial connectivity never reads CSV; the map entry is a
			// configuration error surfaced by validation.
			d.Reason = "csv source is only used when no database is connected"
		case avail.Has(k):
			d.Extract = true
		default:
			d.Reason = string(k) + " not connected"
		}
		if !d.Extract {
			r.logger().Debug("not extracting", zap.String("table", t), zap.String("source", string(k)), zap.String("reason", d.Reason))
		}
		out = append(out, d)
	}
	return out
}

func (r *Resolver) resolveCSV() []Decision {
	log := r.logger()
	files, err := r.list(r.FallbackDir)
	if err != nil {
		log.Warn("csv fallback directory unreadable", zap.String("dir", r.FallbackDir), zap.Error(err))
	}

	out := make([]Decision, 0, len(r.Tables))
	for _, t := range r.Tables {
		d := Decision{Table: t, Source: CSVFallback}
		if f, ok := MatchFile(t, files); ok {
			d.File = f
			d.Extract = true
			log.Info("fallback match", zap.String("table", t), zap.String("file", f))
		} else {
			d.Reason = "no matching CSV file"
			log.Warn("fallback: CSV not found", zap.String("table", t), zap.String("dir", r.FallbackDir))
		}
		out = append(out, d)
	}
	return out
}

// MatchFile returns the first path (in the given order) whose file stem,
// normalized with NormalizeTableKey, starts with the normalized table name.
func MatchFile(tableName string, paths []string) (string, bool) {
	key := NormalizeTableKey(tableName)
	if key == "" {
		return "", false
	}
	for _, p := range paths {
		base := filepath.Base(p)
		stem := strings.TrimSuffix(base, filepath.Ext(base))
		if strings.HasPrefix(NormalizeTableKey(stem), key) {
			return p, true
		}
	}
	return "", false
}

func (r *Resolver) list(dir string) ([]string, error) {
	if r.listCSV != nil {
		return r.listCSV(dir)
	}
	return ListCSV(dir)
}

// ListCSV returns the *.csv files directly under dir (extension matched
// case-insensitively), sorted by name.
func ListCSV(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *Resolver) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}
