// Command salesreport prints the sales KPIs and revenue breakdowns computed
// from the CSV written by salesetl.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"salesetl/internal/load"
	"salesetl/internal/report"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := runMain(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func runMain(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("salesreport", flag.ContinueOnError)
	fs.SetOutput(stderr)

	in := fs.String("in", load.DefaultOutputPath, "sales CSV written by salesetl")
	year := fs.Int("year", 0, "restrict to one year (0 = all)")
	format := fs.String("format", "text", "output format: text, json, html")
	out := fs.String("out", "", "write the report to this file instead of stdout")
	listYears := fs.Bool("list-years", false, "print the available years and exit")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "usage: salesreport [-in file] [-year N] [-format text|json|html]; unexpected argument %q\n", fs.Arg(0))
		return 2
	}
	switch strings.ToLower(*format) {
	case "text", "json", "html":
	default:
		fmt.Fprintf(stderr, "usage: -format must be text, json or html, got %q\n", *format)
		return 2
	}

	t, err := report.LoadCSV(ctx, *in)
	if err != nil {
		if errors.Is(err, report.ErrNoData) {
			fmt.Fprintf(stderr, "%v\nrun: salesetl -csv-fallback data/raw\n", err)
			return 1
		}
		fmt.Fprintf(stderr, "read %s: %v\n", *in, err)
		return 1
	}

	if *listYears {
		for _, y := range report.AvailableYears(t) {
			fmt.Fprintln(stdout, y)
		}
		return 0
	}

	r, err := report.Summarize(t, *year)
	if err != nil {
		fmt.Fprintf(stderr, "report: %v\n", err)
		return 1
	}
	if *year != 0 && r.Rows == 0 {
		fmt.Fprintf(stderr, "warning: no rows for year %d\n", *year)
	}

	if *out == "" {
		if err := report.Write(stdout, r, *format); err != nil {
			fmt.Fprintf(stderr, "write report: %v\n", err)
			return 1
		}
		return 0
	}
	if err := writeFile(*out, r, *format); err != nil {
		fmt.Fprintf(stderr, "write report: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "report written to %s\n", *out)
	return 0
}

func writeFile(path string, r *report.Report, format string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := report.Write(f, r, format); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
