// Package metrics is the backend-neutral metrics facade used by the run.
//
// Core code records through the package-level helpers only. A backend is
// installed once by the binary (SetBackend); until then every call is a no-op.
package metrics

import (
	"sync"
	"time"
)

// Labels are metric dimensions.
type Labels map[string]string

// Backend receives metric observations.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
}

// Flusher is implemented by backends that buffer.
type Flusher interface {
	Flush() error
}

// Metric names.
const (
	StepTotal           = "etl_step_total"
	StepDurationSeconds = "etl_step_duration_seconds"
	TableRowsTotal      = "etl_table_rows_total"
	TablesTotal         = "etl_tables_total"
	RecordsTotal        = "etl_records_total"
)

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b. A nil b restores the no-op backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		b = nopBackend{}
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush flushes the installed backend if it buffers.
func Flush() error {
	if f, ok := current().(Flusher); ok {
		return f.Flush()
	}
	return nil
}

// RecordStep counts one pipeline step outcome and its duration.
func RecordStep(step, status string, d time.Duration) {
	b := current()
	l := Labels{"step": step, "status": status}
	b.IncCounter(StepTotal, 1, l)
	b.ObserveHistogram(StepDurationSeconds, d.Seconds(), l)
}

// RecordTableRows counts rows extracted for a logical table from a source.
func RecordTableRows(table, source string, n int) {
	if n <= 0 {
		return
	}
	current().IncCounter(TableRowsTotal, float64(n), Labels{"table": table, "source": source})
}

// RecordTable counts one per-table outcome: extracted, skipped or failed.
func RecordTable(status string) {
	current().IncCounter(TablesTotal, 1, Labels{"status": status})
}

// RecordRecords counts transformer records by kind: "output",
// "orders_dropped", "duplicates" or "null_total".
func RecordRecords(kind string, n int) {
	if n <= 0 {
		return
	}
	current().IncCounter(RecordsTotal, float64(n), Labels{"kind": kind})
}
