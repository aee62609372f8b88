// Package load persists the SalesFact table: always as a CSV file, and
// optionally into a relational table.
package load

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	csvparser "salesetl/internal/parser/csv"
	"salesetl/internal/table"
)

// DefaultOutputPath is where the SalesFact CSV goes when nothing else is
// configured.
const DefaultOutputPath = "data/clean/sales_clean.csv"

// PersistError reports that the output could not be written. It is fatal for
// the run.
type PersistError struct {
	Target string
	Op     string
	Err    error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %s: %s: %v", e.Target, e.Op, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// SaveCSV writes t to path with a header row, creating parent directories.
// An existing file is replaced. The data is written to a temporary file in
// the same directory and renamed into place, so readers never observe a
// partial file.
func SaveCSV(path string, t *table.Table) (err error) {
	fail := func(op string, e error) error { return &PersistError{Target: path, Op: op, Err: e} }

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fail("create directory", err)
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fail("create temp file", err)
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	w := bufio.NewWriter(f)
	if err := csvparser.WriteTable(w, t); err != nil {
		return fail("write", err)
	}
	if err := w.Flush(); err != nil {
		return fail("write", err)
	}
	if err := f.Sync(); err != nil {
		return fail("sync", err)
	}
	if err := f.Close(); err != nil {
		return fail("close", err)
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		return fail("chmod", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fail("rename", err)
	}
	return nil
}
