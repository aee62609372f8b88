package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sales = "OrderID,ProductName,CategoryName,CustomerID,TotalPrice,Year,Month\n" +
	"1,Chai,Beverages,ALFKI,100.0,2023,12\n" +
	"2,Tofu,Produce,BONAP,50.0,2024,1\n"

func writeSales(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "sales_clean.csv")
	if err := os.WriteFile(p, []byte(sales), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestRunMain(t *testing.T) {
	t.Parallel()
	in := writeSales(t)

	tests := []struct {
		name          string
		args          []string
		wantCode      int
		wantStdoutSub string
		wantStderrSub string
	}{
		{"text", []string{"-in", in}, 0, "$150.00", ""},
		{"year_filter", []string{"-in", in, "-year", "2024"}, 0, "Year 2024", ""},
		{"json", []string{"-in", in, "-format", "json"}, 0, `"total_orders": 2`, ""},
		{"html", []string{"-in", in, "-format", "html"}, 0, "<h1>Northwind Analytical Dashboard</h1>", ""},
		{"list_years", []string{"-in", in, "-list-years"}, 0, "2023\n2024\n", ""},
		{"empty_year_warns", []string{"-in", in, "-year", "1990"}, 0, "$0.00", "no rows for year 1990"},
		{"missing_file", []string{"-in", filepath.Join(t.TempDir(), "none.csv")}, 1, "", "run salesetl first"},
		{"bad_format", []string{"-in", in, "-format", "pdf"}, 2, "", "-format must be"},
		{"unknown_flag", []string{"-nope"}, 2, "", "flag provided but not defined"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var stdout, stderr bytes.Buffer
			code := runMain(context.Background(), tc.args, &stdout, &stderr)
			if code != tc.wantCode {
				t.Fatalf("exit code=%d, want %d; stderr=%q", code, tc.wantCode, stderr.String())
			}
			if !strings.Contains(stdout.String(), tc.wantStdoutSub) {
				t.Fatalf("stdout=%q, want contains %q", stdout.String(), tc.wantStdoutSub)
			}
			if !strings.Contains(stderr.String(), tc.wantStderrSub) {
				t.Fatalf("stderr=%q, want contains %q", stderr.String(), tc.wantStderrSub)
			}
		})
	}
}

func TestRunMain_OutFile(t *testing.T) {
	t.Parallel()
	in := writeSales(t)
	out := filepath.Join(t.TempDir(), "reports", "sales.html")

	var stdout, stderr bytes.Buffer
	if code := runMain(context.Background(), []string{"-in", in, "-format", "html", "-out", out}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit code=%d; stderr=%q", code, stderr.String())
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(b), "$150.00") {
		t.Fatalf("html missing revenue: %q", b)
	}
}
