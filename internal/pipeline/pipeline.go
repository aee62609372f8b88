// Package pipeline runs one sales ETL pass: connect, resolve, extract,
// transform, persist.
package pipeline

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"salesetl/internal/config"
	"salesetl/internal/datasource"
	"salesetl/internal/extract"
	"salesetl/internal/load"
	"salesetl/internal/metrics"
	"salesetl/internal/publish"
	"salesetl/internal/source"
	"salesetl/internal/storage"
	"salesetl/internal/table"
	"salesetl/internal/transform"
)

// Sink receives the SalesFact table after it was written to CSV.
type Sink interface {
	Load(ctx context.Context, t *table.Table) (int64, error)
	Close()
}

// Publisher delivers the written CSV somewhere else.
type Publisher interface {
	Publish(ctx context.Context, localPath string) (string, error)
}

// TableSummary describes one extracted table.
type TableSummary struct {
	Table  string
	Source source.Kind
	Rows   int
}

// RunSummary is what a run did.
type RunSummary struct {
	RunID     string
	Decisions []source.Decision
	Tables    []TableSummary
	Failed    []*extract.ExtractionError
	Stats     transform.Stats

	OutputPath string
	OutputRows int
	LoadedRows int64
	// PublishedURI is empty unless the output was uploaded.
	PublishedURI string

	Duration time.Duration
}

// Runner executes runs for one configuration. The open/new functions are
// replaceable for tests.
type Runner struct {
	Config config.Pipeline
	Logger *zap.Logger

	OpenPrimary   func(ctx context.Context, cfg datasource.PrimaryConfig) (datasource.Handle, error)
	OpenSecondary func(ctx context.Context, path string) (datasource.Handle, error)
	OpenSink      func(ctx context.Context, cfg storage.Config, table string) (Sink, error)
	NewPublisher  func(ctx context.Context, cfg publish.S3Config, logger *zap.Logger) (Publisher, error)
}

// New returns a Runner wired to the real connectors.
func New(cfg config.Pipeline, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		Config:        cfg,
		Logger:        logger,
		OpenPrimary:   datasource.OpenPrimary,
		OpenSecondary: datasource.OpenSecondary,
		OpenSink: func(ctx context.Context, cfg storage.Config, table string) (Sink, error) {
			return load.OpenDBSink(ctx, cfg, table)
		},
		NewPublisher: func(ctx context.Context, cfg publish.S3Config, logger *zap.Logger) (Publisher, error) {
			return publish.NewS3Publisher(ctx, cfg, logger)
		},
	}
}

// Run executes one pass. Table-level failures are logged and tolerated; a
// missing mandatory table, a failed write, load or upload is returned as an
// error. The summary is returned in every case with whatever was completed.
func (r *Runner) Run(ctx context.Context) (*RunSummary, error) {
	start := time.Now()
	sum := &RunSummary{RunID: uuid.NewString(), OutputPath: r.Config.Output.Path}
	log := r.Logger.With(zap.String("run_id", sum.RunID), zap.String("job", r.Config.Job))
	defer func() { sum.Duration = time.Since(start) }()

	log.Info("run started")

	srcMap, err := r.Config.SourceMap()
	if err != nil {
		return sum, err
	}

	// connect
	var (
		handles map[source.Kind]datasource.Handle
		avail   source.Availability
	)
	err = r.step(log, "connect", func() error {
		handles, avail = r.connect(ctx, log)
		return nil
	})
	defer closeHandles(handles, log)
	if err != nil {
		return sum, err
	}

	// resolve
	_ = r.step(log, "resolve", func() error {
		res := source.NewResolver(srcMap, r.Config.CSV.Dir, log)
		sum.Decisions = res.Resolve(avail)
		return nil
	})

	// extract
	var extracted extract.Result
	err = r.step(log, "extract", func() error {
		ex := extract.New(handles, r.Config.CSVOptions(), log)
		ex.Queries = r.Config.QueryOverrides()
		var err error
		extracted, err = ex.ExtractAll(ctx, sum.Decisions)
		return err
	})
	sum.Failed = extracted.Failed
	sum.Tables = tableSummaries(sum.Decisions, extracted.Tables)
	if err != nil {
		return sum, err
	}

	// transform
	var fact *table.Table
	err = r.step(log, "transform", func() error {
		var err error
		fact, sum.Stats, err = transform.BuildSalesTable(extracted.Tables)
		return err
	})
	if err != nil {
		var missing *transform.MissingRequiredInputError
		if errors.As(err, &missing) {
			log.Error("mandatory input missing; no output written", zap.Strings("tables", missing.Missing))
		}
		return sum, err
	}
	sum.OutputRows = fact.Len()
	metrics.RecordRecords("output", fact.Len())
	metrics.RecordRecords("orders_dropped", sum.Stats.OrdersDropped)
	metrics.RecordRecords("duplicates", sum.Stats.Duplicates)
	metrics.RecordRecords("null_total", sum.Stats.NullTotal)
	log.Info("sales table built",
		zap.Int("rows", fact.Len()),
		zap.Int("joined", sum.Stats.Joined),
		zap.Strings("joins", sum.Stats.Joins),
		zap.Int("orders_dropped", sum.Stats.OrdersDropped),
		zap.Int("duplicates", sum.Stats.Duplicates),
		zap.Int("null_total", sum.Stats.NullTotal),
		zap.String("date_column", sum.Stats.DateColumn))

	// save
	if err := r.step(log, "save", func() error { return load.SaveCSV(sum.OutputPath, fact) }); err != nil {
		return sum, err
	}
	log.Info("output written", zap.String("path", sum.OutputPath), zap.Int("rows", fact.Len()))

	// load
	if r.Config.Load.Kind != "" {
		err := r.step(log, "load", func() error {
			sink, err := r.OpenSink(ctx, r.Config.StorageConfig(), r.Config.Load.Table)
			if err != nil {
				return err
			}
			defer sink.Close()
			sum.LoadedRows, err = sink.Load(ctx, fact)
			return err
		})
		if err != nil {
			return sum, err
		}
		log.Info("fact table loaded", zap.String("kind", r.Config.Load.Kind), zap.String("table", r.Config.Load.Table), zap.Int64("rows", sum.LoadedRows))
	}

	// publish
	if s3cfg := r.Config.S3Config(); s3cfg.Enabled() {
		err := r.step(log, "publish", func() error {
			pub, err := r.NewPublisher(ctx, s3cfg, log)
			if err != nil {
				return err
			}
			sum.PublishedURI, err = pub.Publish(ctx, sum.OutputPath)
			return err
		})
		if err != nil {
			return sum, err
		}
	}

	log.Info("run finished",
		zap.Int("tables", len(sum.Tables)),
		zap.Int("failed", len(sum.Failed)),
		zap.Int("rows", sum.OutputRows),
		zap.Duration("duration", time.Since(start).Truncate(time.Millisecond)))
	return sum, nil
}

// step times fn, records it and logs "stage ok" or "stage failed".
func (r *Runner) step(log *zap.Logger, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	d := time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RecordStep(name, status, d)

	fields := []zap.Field{zap.String("stage", name), zap.Duration("duration", d.Truncate(time.Millisecond))}
	if err != nil {
		log.Error("stage failed", append(fields, zap.Error(err))...)
		return err
	}
	log.Info("stage ok", fields...)
	return nil
}

// connect opens every configured live source. A source that fails to open is
// reported and treated as unavailable.
func (r *Runner) connect(ctx context.Context, log *zap.Logger) (map[source.Kind]datasource.Handle, source.Availability) {
	handles := map[source.Kind]datasource.Handle{}
	var avail source.Availability

	if pc := r.Config.PrimaryConfig(); pc.Configured() {
		h, err := r.OpenPrimary(ctx, pc)
		if err != nil {
			log.Warn("primary source unavailable", zap.Error(err))
		} else {
			handles[source.PrimarySQL] = h
			avail.Primary = true
			log.Info("connected", zap.String("source", string(source.PrimarySQL)))
		}
	} else if r.Config.Primary.Host != "" {
		log.Warn("primary source incomplete; skipping")
	}

	if path := r.Config.Secondary.Path; path != "" {
		h, err := r.OpenSecondary(ctx, path)
		if err != nil {
			log.Warn("secondary source unavailable", zap.Error(err))
		} else {
			handles[source.SecondaryStore] = h
			avail.Secondary = true
			log.Info("connected", zap.String("source", string(source.SecondaryStore)), zap.String("path", path))
		}
	}

	if !avail.Any() {
		log.Info("no database connected; using csv fallback", zap.String("dir", r.Config.CSV.Dir))
	}
	return handles, avail
}

func closeHandles(handles map[source.Kind]datasource.Handle, log *zap.Logger) {
	kinds := make([]string, 0, len(handles))
	for k := range handles {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		if err := handles[source.Kind(k)].Close(); err != nil {
			log.Warn("close source", zap.String("source", k), zap.Error(err))
		}
	}
}

func tableSummaries(decisions []source.Decision, tables map[string]*table.Table) []TableSummary {
	var out []TableSummary
	for _, d := range decisions {
		if t, ok := tables[d.Table]; ok {
			out = append(out, TableSummary{Table: d.Table, Source: d.Source, Rows: t.Len()})
		}
	}
	return out
}
