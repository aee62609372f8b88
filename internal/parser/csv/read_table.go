// Package csv reads flat-file exports into table.Table values and writes
// tables back out in the pipeline's output format.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"salesetl/internal/table"
)

// Options controls CSV decoding.
type Options struct {
	// Comma is the field delimiter. Zero means ','.
	Comma rune
	// LazyQuotes tolerates stray quotes inside unquoted fields.
	LazyQuotes bool
	// TrimSpace trims leading/trailing whitespace from every cell.
	TrimSpace bool
	// Encoding names the source character set: "", "utf-8", "utf-16",
	// "windows-1252" or "latin1". A byte-order mark always wins.
	Encoding string
}

// DefaultOptions matches the Northwind CSV exports.
func DefaultOptions() Options {
	return Options{Comma: ',', TrimSpace: true}
}

// ReadFile reads a whole CSV file. The table is named after the file stem.
func ReadFile(ctx context.Context, path string, opt Options) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	base := filepath.Base(path)
	return ReadTable(ctx, f, strings.TrimSuffix(base, filepath.Ext(base)), opt)
}

// ReadTable decodes src into a table. The first record is the header.
//
// Cells are kept as strings; empty cells become nil. Records shorter than
// the header are padded with nil and longer records are cut, so every row has
// len(Columns) values. A header-only input yields a table with no rows; an
// empty input is an error.
func ReadTable(ctx context.Context, src io.Reader, name string, opt Options) (*table.Table, error) {
	dec, err := decoderFor(opt.Encoding)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(transform.NewReader(src, unicode.BOMOverride(dec.NewDecoder())))
	cr.Comma = opt.Comma
	if cr.Comma == 0 {
		cr.Comma = ','
	}
	cr.LazyQuotes = opt.LazyQuotes
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	hdr, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("csv %s: empty input", name)
	}
	if err != nil {
		return nil, fmt.Errorf("csv %s: read header: %w", name, err)
	}

	cols := make([]string, len(hdr))
	for i, h := range hdr {
		if i == 0 {
			h = strings.TrimPrefix(h, "\uFEFF")
		}
		cols[i] = h
	}
	t := table.New(name, cols...)

	for line := 2; ; line++ {
		if line%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv %s: line %d: %w", name, line, err)
		}

		row := make([]any, len(cols))
		for i := range cols {
			if i >= len(rec) {
				break
			}
			v := rec[i]
			if opt.TrimSpace && hasEdgeSpace(v) {
				v = strings.TrimSpace(v)
			}
			if v != "" {
				row[i] = v
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// CheckEncoding reports whether name is a supported source encoding.
func CheckEncoding(name string) error {
	_, err := decoderFor(name)
	return err
}

func decoderFor(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return unicode.UTF8, nil
	case "utf-16", "utf16":
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	case "latin1", "iso-8859-1":
		return charmap.ISO8859_1, nil
	default:
		return nil, fmt.Errorf("csv: unsupported encoding %q", name)
	}
}

// hasEdgeSpace reports whether s starts or ends with ASCII whitespace, so the
// common clean cell skips strings.TrimSpace.
func hasEdgeSpace(s string) bool {
	if s == "" {
		return false
	}
	return isSpace(s[0]) || isSpace(s[len(s)-1])
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}
