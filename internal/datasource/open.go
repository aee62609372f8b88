package datasource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xo/dburl"

	"salesetl/internal/source"

	// database/sql drivers reachable through a primary SQL URL or the
	// secondary file database.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"
)

// ConnectionError reports that a configured source could not be opened. The
// run continues with that source treated as unavailable.
type ConnectionError struct {
	Source source.Kind
	// Target identifies what was dialled, with any password redacted.
	Target string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s (%s): %v", e.Source, e.Target, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// PrimaryConfig describes the primary SQL server. URL wins when set;
// otherwise a URL is assembled from the discrete fields.
type PrimaryConfig struct {
	URL      string
	Driver   string // sqlserver (default), postgres, mysql
	Host     string
	Port     int
	User     string
	Password string
	Database string

	// PingTimeout bounds the connectivity check. Zero means 5s.
	PingTimeout time.Duration
}

// Configured reports whether enough is set to attempt a connection. Host,
// user, password and database are all required in the discrete form.
func (c PrimaryConfig) Configured() bool {
	if strings.TrimSpace(c.URL) != "" {
		return true
	}
	return c.Host != "" && c.User != "" && c.Password != "" && c.Database != ""
}

// BuildURL returns the connection URL for the primary source.
func (c PrimaryConfig) BuildURL() string {
	if s := strings.TrimSpace(c.URL); s != "" {
		return s
	}
	driver := strings.ToLower(strings.TrimSpace(c.Driver))
	if driver == "" {
		driver = "sqlserver"
	}
	host := c.Host
	if c.Port > 0 {
		host = net.JoinHostPort(c.Host, fmt.Sprint(c.Port))
	}
	u := &url.URL{
		Scheme: driver,
		User:   url.UserPassword(c.User, c.Password),
		Host:   host,
	}
	if driver == "sqlserver" || driver == "mssql" {
		q := url.Values{}
		q.Set("database", c.Database)
		u.RawQuery = q.Encode()
	} else {
		u.Path = "/" + c.Database
	}
	return u.String()
}

// OpenPrimary connects to the primary SQL source. Postgres URLs get a
// PooledHandle; every other driver gets a StatementHandle.
func OpenPrimary(ctx context.Context, cfg PrimaryConfig) (Handle, error) {
	raw := cfg.BuildURL()
	target := redact(raw)

	if _, err := url.Parse(raw); err != nil {
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return nil, &ConnectionError{Source: source.PrimarySQL, Target: target, Err: fmt.Errorf("malformed url: %w", err)}
	}
	u, err := dburl.Parse(raw)
	if err != nil {
		return nil, &ConnectionError{Source: source.PrimarySQL, Target: target, Err: scrubURL(err, raw, target)}
	}

	pctx, cancel := context.WithTimeout(ctx, pingTimeout(cfg.PingTimeout))
	defer cancel()

	switch u.Driver {
	case "postgres", "pgx":
		pool, err := pgxpool.New(ctx, u.DSN)
		if err != nil {
			return nil, &ConnectionError{Source: source.PrimarySQL, Target: target, Err: err}
		}
		if err := pool.Ping(pctx); err != nil {
			pool.Close()
			return nil, &ConnectionError{Source: source.PrimarySQL, Target: target, Err: err}
		}
		return NewPooledHandle(pool), nil
	default:
		db, err := sql.Open(sqlDriverName(u.Driver), u.DSN)
		if err != nil {
			return nil, &ConnectionError{Source: source.PrimarySQL, Target: target, Err: err}
		}
		if err := db.PingContext(pctx); err != nil {
			_ = db.Close()
			return nil, &ConnectionError{Source: source.PrimarySQL, Target: target, Err: err}
		}
		return NewStatementHandle(db), nil
	}
}

// OpenSecondary opens the secondary file database read-only. The file must
// already exist; a missing file is a ConnectionError, never an empty database.
func OpenSecondary(ctx context.Context, path string) (Handle, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = fmt.Errorf("database file not found: %w", err)
		}
		return nil, &ConnectionError{Source: source.SecondaryStore, Target: path, Err: err}
	}

	db, err := sql.Open("sqlite", secondaryDSN(path))
	if err != nil {
		return nil, &ConnectionError{Source: source.SecondaryStore, Target: path, Err: err}
	}

	pctx, cancel := context.WithTimeout(ctx, pingTimeout(0))
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, &ConnectionError{Source: source.SecondaryStore, Target: path, Err: err}
	}
	return NewStatementHandle(db), nil
}

func secondaryDSN(path string) string {
	return "file:" + path + "?mode=ro"
}

// sqlDriverName maps dburl driver names onto the names the linked drivers
// register with database/sql.
func sqlDriverName(d string) string {
	switch d {
	case "sqlite3", "moderncsqlite":
		return "sqlite"
	case "mssql":
		return "sqlserver"
	default:
		return d
	}
}

func pingTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return 5 * time.Second
	}
	return d
}

// unparsableURL replaces a URL that does not parse.
const unparsableURL = "<unparsable url>"

func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return unparsableURL
	}
	if u.User == nil {
		return raw
	}
	return u.Redacted()
}

// scrubURL replaces any copy of raw quoted in err with its redacted form.
func scrubURL(err error, raw, redacted string) error {
	msg := err.Error()
	if raw == "" || raw == redacted || !strings.Contains(msg, raw) {
		return err
	}
	return errors.New(strings.ReplaceAll(msg, raw, redacted))
}
