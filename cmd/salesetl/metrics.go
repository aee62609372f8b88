package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"salesetl/internal/config"
	"salesetl/internal/metrics"
	"salesetl/internal/metrics/datadog"
)

type metricsBackend interface {
	metrics.Backend
	Close() error
}

// Seams for tests.
var (
	newDatadogBackend = func(ctx context.Context, opts datadog.Options) (metricsBackend, error) {
		return datadog.NewBackend(ctx, opts)
	}
	setMetricsBackend = metrics.SetBackend
)

// initMetrics installs the configured backend and returns its cleanup. The
// cleanup is never nil.
func initMetrics(ctx context.Context, cfg config.MetricsConfig, job string, logger *zap.Logger) (func(), error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if job == "" {
		job = "salesetl"
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "none", "noop":
		logger.Debug("metrics disabled")
		return func() {}, nil

	case "log":
		rec := metrics.NewRecorder()
		setMetricsBackend(rec)
		return func() { logCounters(logger, rec) }, nil

	case "datadog", "dd":
		tags := datadog.ParseTagsCSV(cfg.Tags)
		b, err := newDatadogBackend(ctx, datadog.Options{
			JobName:    job,
			Tags:       tags,
			FlushEvery: 60 * time.Second,
		})
		if err != nil {
			return func() {}, err
		}
		logger.Info("metrics enabled", zap.String("backend", "datadog"), zap.String("job", job), zap.Strings("tags", tags))
		setMetricsBackend(b)
		// Close stops the flush loop and submits what is left.
		return func() {
			if err := b.Close(); err != nil {
				logger.Warn("metrics: datadog close error", zap.Error(err))
			}
		}, nil

	default:
		return func() {}, fmt.Errorf("unknown metrics backend %q", cfg.Backend)
	}
}

func logCounters(logger *zap.Logger, rec *metrics.Recorder) {
	counters := rec.Counters()
	keys := make([]string, 0, len(counters))
	for k := range counters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		logger.Info("metric", zap.String("series", k), zap.Float64("value", counters[k]))
	}
}
