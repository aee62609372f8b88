package config

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"salesetl/internal/logging"
	csvparser "salesetl/internal/parser/csv"
	"salesetl/internal/source"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding. Path names the offending key.
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

var (
	primaryDrivers  = []string{"sqlserver", "mssql", "postgres", "pgx", "mysql"}
	loadKinds       = []string{"sqlite", "postgres", "mssql"}
	metricsBackends = []string{"none", "log", "datadog"}
)

// ValidatePipeline checks p without touching the network or filesystem.
func ValidatePipeline(p Pipeline) []Issue {
	var out []Issue
	add := func(sev Severity, path, format string, args ...any) {
		out = append(out, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	// sources
	primaryOn := p.Primary.URL != "" || p.Primary.Host != ""
	if !primaryOn && p.Secondary.Path == "" && p.CSV.Dir == "" {
		add(SeverityError, "sources", "no source configured: set primary, secondary.path or csv.dir")
	}
	if p.Primary.URL == "" && p.Primary.Host != "" {
		var missing []string
		for _, f := range []struct{ name, val string }{
			{"user", p.Primary.User}, {"password", p.Primary.Password}, {"database", p.Primary.Database},
		} {
			if f.val == "" {
				missing = append(missing, f.name)
			}
		}
		if len(missing) > 0 {
			add(SeverityWarning, "primary", "incomplete (missing %s); primary source will be unavailable", strings.Join(missing, ", "))
		}
	}
	if d := strings.ToLower(p.Primary.Driver); d != "" && !oneOf(d, primaryDrivers) {
		add(SeverityError, "primary.driver", "unknown driver %q (want one of %s)", p.Primary.Driver, strings.Join(primaryDrivers, ", "))
	}
	if primaryOn && !bracketDialect(primaryDriver(p.Primary)) && orderDetailsFromPrimary(p) {
		if q := p.QueryOverrides()[source.OrderDetails]; strings.TrimSpace(q) == "" {
			add(SeverityWarning, "queries.orderdetails",
				"primary driver %q does not accept [Order Details]; set a query for OrderDetails or it will not be extracted from the primary source",
				primaryDriver(p.Primary))
		}
	}
	if p.Primary.Port < 0 || p.Primary.Port > 65535 {
		add(SeverityError, "primary.port", "port %d out of range", p.Primary.Port)
	}
	if p.Primary.PingTimeout < 0 {
		add(SeverityError, "primary.ping_timeout", "must not be negative")
	}

	if err := csvparser.CheckEncoding(p.CSV.Encoding); err != nil {
		add(SeverityError, "csv.encoding", "%v", err)
	}
	if p.CSV.Delimiter != "" && utf8.RuneCountInString(p.CSV.Delimiter) != 1 {
		add(SeverityError, "csv.delimiter", "must be a single character, got %q", p.CSV.Delimiter)
	}

	if p.Sources.Uniform != "" {
		if _, err := source.ParseKind(p.Sources.Uniform); err != nil {
			add(SeverityError, "sources.uniform", "%v", err)
		}
		if len(p.Sources.Map) > 0 {
			add(SeverityWarning, "sources.map", "ignored because sources.uniform is set")
		}
	}
	for _, name := range sortedKeys(p.Sources.Map) {
		path := "sources.map." + name
		if _, ok := source.CanonicalTableName(name); !ok {
			add(SeverityError, path, "unknown table %q", name)
		}
		k, err := source.ParseKind(p.Sources.Map[name])
		if err != nil {
			add(SeverityError, path, "%v", err)
		} else if k == source.CSVFallback && p.Sources.Uniform == "" {
			add(SeverityWarning, path, "csv is only read when no database is connected; this table is skipped otherwise")
		}
	}

	for _, name := range sortedKeys(p.Queries) {
		path := "queries." + name
		if _, ok := source.CanonicalTableName(name); !ok {
			add(SeverityError, path, "unknown table %q", name)
		}
		if strings.TrimSpace(p.Queries[name]) == "" {
			add(SeverityWarning, path, "empty query; the default is used")
		}
	}

	// sinks
	if strings.TrimSpace(p.Output.Path) == "" {
		add(SeverityError, "output.path", "required")
	}
	if p.Load.Kind != "" {
		if !oneOf(p.Load.Kind, loadKinds) {
			add(SeverityError, "load.kind", "unknown kind %q (want one of %s)", p.Load.Kind, strings.Join(loadKinds, ", "))
		}
		if p.Load.DSN == "" {
			add(SeverityError, "load.dsn", "required when load.kind is set")
		}
		if p.Load.Table == "" {
			add(SeverityError, "load.table", "required when load.kind is set")
		}
	} else if p.Load.DSN != "" {
		add(SeverityWarning, "load.kind", "load.dsn is set but load.kind is empty; the database load is disabled")
	}

	if p.Publish.Bucket == "" {
		if p.Publish.Key != "" || p.Publish.Endpoint != "" {
			add(SeverityWarning, "publish.bucket", "publish settings present but no bucket; upload is disabled")
		}
	}
	if (p.Publish.AccessKey == "") != (p.Publish.SecretKey == "") {
		add(SeverityError, "publish.access_key", "access_key and secret_key must be set together")
	}

	// ambient
	if b := strings.ToLower(p.Metrics.Backend); b != "" && !oneOf(b, metricsBackends) {
		add(SeverityError, "metrics.backend", "unknown backend %q (want one of %s)", p.Metrics.Backend, strings.Join(metricsBackends, ", "))
	}
	if _, err := logging.ParseLevel(p.Log.Level); err != nil {
		add(SeverityError, "log.level", "%v", err)
	}
	if f := strings.ToLower(p.Log.Format); f != "" && f != "json" && f != "console" {
		add(SeverityError, "log.format", "unknown format %q (want json or console)", p.Log.Format)
	}

	return out
}

func oneOf(s string, set []string) bool {
	for _, v := range set {
		if s == v {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// primaryDriver is the driver a primary connection will use: the URL scheme
// when a URL is set, else the configured driver.
func primaryDriver(pc PrimarySource) string {
	if u := strings.TrimSpace(pc.URL); u != "" {
		if i := strings.Index(u, ":"); i > 0 {
			return strings.ToLower(u[:i])
		}
		return ""
	}
	return strings.ToLower(strings.TrimSpace(pc.Driver))
}

// bracketDialect reports whether driver speaks T-SQL bracket quoting.
func bracketDialect(driver string) bool {
	switch driver {
	case "", "sqlserver", "mssql", "ms", "azuresql":
		return true
	}
	return false
}

func orderDetailsFromPrimary(p Pipeline) bool {
	m, err := p.SourceMap()
	return err == nil && m[source.OrderDetails] == source.PrimarySQL
}
