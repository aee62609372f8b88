package metrics

import (
	"errors"
	"testing"
	"time"
)

type flushingBackend struct {
	*Recorder
	flushed int
	err     error
}

func (f *flushingBackend) Flush() error {
	f.flushed++
	return f.err
}

func TestSeriesKey(t *testing.T) {
	t.Parallel()

	if got := SeriesKey("etl_tables_total", nil); got != "etl_tables_total" {
		t.Fatalf("SeriesKey(no labels)=%q", got)
	}
	got := SeriesKey(TableRowsTotal, Labels{"table": "Orders", "source": "primary_sql"})
	want := "etl_table_rows_total{source=primary_sql,table=Orders}"
	if got != want {
		t.Fatalf("SeriesKey()=%q, want %q", got, want)
	}
}

// Not parallel: mutates the package backend.
func TestHelpersRecordThroughInstalledBackend(t *testing.T) {
	rec := NewRecorder()
	SetBackend(rec)
	t.Cleanup(func() { SetBackend(nil) })

	RecordStep("extract", "ok", 1500*time.Millisecond)
	RecordTableRows("Orders", "csv_fallback", 830)
	RecordTableRows("Shippers", "csv_fallback", 0)
	RecordTable("extracted")
	RecordTable("extracted")
	RecordRecords("output", 2155)

	if got := rec.Counter(StepTotal, Labels{"step": "extract", "status": "ok"}); got != 1 {
		t.Fatalf("step counter=%v, want 1", got)
	}
	if got := rec.Samples(StepDurationSeconds, Labels{"step": "extract", "status": "ok"}); len(got) != 1 || got[0] != 1.5 {
		t.Fatalf("step duration samples=%v, want [1.5]", got)
	}
	if got := rec.Counter(TableRowsTotal, Labels{"table": "Orders", "source": "csv_fallback"}); got != 830 {
		t.Fatalf("rows=%v, want 830", got)
	}
	if got := rec.Counter(TableRowsTotal, Labels{"table": "Shippers", "source": "csv_fallback"}); got != 0 {
		t.Fatalf("zero-row table should not be counted, got %v", got)
	}
	if got := rec.Counter(TablesTotal, Labels{"status": "extracted"}); got != 2 {
		t.Fatalf("tables=%v, want 2", got)
	}
	if got := rec.Counter(RecordsTotal, Labels{"kind": "output"}); got != 2155 {
		t.Fatalf("records=%v, want 2155", got)
	}
}

func TestFlush(t *testing.T) {
	t.Cleanup(func() { SetBackend(nil) })

	SetBackend(NewRecorder())
	if err := Flush(); err != nil {
		t.Fatalf("Flush() on non-buffering backend = %v, want nil", err)
	}

	boom := errors.New("submit failed")
	fb := &flushingBackend{Recorder: NewRecorder(), err: boom}
	SetBackend(fb)
	if err := Flush(); !errors.Is(err, boom) {
		t.Fatalf("Flush()=%v, want %v", err, boom)
	}
	if fb.flushed != 1 {
		t.Fatalf("flushed=%d, want 1", fb.flushed)
	}

	SetBackend(nil)
	RecordTable("skipped") // must not panic on the nop backend
}
