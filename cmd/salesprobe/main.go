// Command salesprobe inspects a CSV fallback folder before a salesetl run.
//
// For every logical Northwind table it reports the file that would be read,
// the row count, the inferred type of each column and any column the sales
// transformation requires but the file lacks.
//
// Exit codes:
//
//	0  the folder can produce output (Orders and OrderDetails are usable)
//	1  the folder cannot produce output, or probing failed
//	2  usage error
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"salesetl/internal/logging"
	csvparser "salesetl/internal/parser/csv"
	"salesetl/internal/probe"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := runMain(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func runMain(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("salesprobe", flag.ContinueOnError)
	fs.SetOutput(stderr)

	dir := fs.String("dir", "data/raw", "CSV fallback folder to inspect")
	rows := fs.Int("rows", probe.DefaultSampleRows, "rows per file used for type inference")
	format := fs.String("format", "text", "output format: text or json")
	encoding := fs.String("encoding", "", "source character set (utf-8, utf-16, windows-1252, latin1)")
	delimiter := fs.String("delimiter", ",", "field delimiter")
	verbose := fs.Bool("v", false, "debug logging to stderr")
	timeout := fs.Duration("timeout", time.Minute, "overall probe timeout")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "usage: salesprobe [-dir folder] [-format text|json]; unexpected argument %q\n", fs.Arg(0))
		return 2
	}

	f := strings.ToLower(*format)
	if f != "text" && f != "json" {
		fmt.Fprintf(stderr, "usage: -format must be text or json, got %q\n", *format)
		return 2
	}
	if *rows <= 0 {
		fmt.Fprintf(stderr, "usage: -rows must be positive, got %d\n", *rows)
		return 2
	}
	if err := csvparser.CheckEncoding(*encoding); err != nil {
		fmt.Fprintf(stderr, "usage: -encoding: %v\n", err)
		return 2
	}
	comma := []rune(*delimiter)
	if len(comma) != 1 {
		fmt.Fprintf(stderr, "usage: -delimiter must be a single character, got %q\n", *delimiter)
		return 2
	}

	log := zap.NewNop()
	if *verbose {
		cfg := logging.DefaultConfig()
		cfg.Level = "debug"
		l, err := logging.NewWriter(cfg, stderr)
		if err != nil {
			fmt.Fprintf(stderr, "init logger: %v\n", err)
			return 1
		}
		log = l
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	opt := csvparser.DefaultOptions()
	opt.Comma = comma[0]
	opt.Encoding = *encoding

	res, err := probe.Run(ctx, probe.Options{Dir: *dir, CSV: opt, SampleRows: *rows, Logger: log})
	if err != nil {
		fmt.Fprintf(stderr, "probe: %v\n", err)
		return 1
	}

	if f == "json" {
		err = probe.WriteJSON(stdout, res)
	} else {
		err = probe.WriteText(stdout, res)
	}
	if err != nil {
		fmt.Fprintf(stderr, "write: %v\n", err)
		return 1
	}
	if !res.Ready() {
		fmt.Fprintln(stderr, "folder is not ready: Orders and OrderDetails need their key, price and quantity columns")
		return 1
	}
	return 0
}
