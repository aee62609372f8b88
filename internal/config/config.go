// Package config loads the pipeline configuration.
//
// Priority, highest first:
//  1. command-line flags (applied by the caller on the returned Pipeline)
//  2. SALESETL_* environment variables (SALESETL_PRIMARY_HOST, ...)
//  3. the optional config file (YAML, JSON or TOML)
//  4. built-in defaults
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SALESETL"

// Pipeline is the full configuration of one run.
type Pipeline struct {
	Job string

	Primary   PrimarySource
	Secondary SecondarySource
	CSV       CSVSource

	// Sources binds tables to source kinds.
	Sources SourcesConfig
	// Queries overrides the extraction query per logical table.
	Queries map[string]string

	Output  OutputConfig
	Load    LoadConfig
	Publish PublishConfig
	Metrics MetricsConfig
	Log     LogConfig
}

type PrimarySource struct {
	URL         string
	Driver      string
	Host        string
	Port        int
	User        string
	Password    string
	Database    string
	PingTimeout time.Duration
}

type SecondarySource struct {
	Path string
}

type CSVSource struct {
	Dir       string
	Encoding  string
	Delimiter string
}

// SourcesConfig is either a single kind for every table (Uniform) or a
// per-table map layered over the default map.
type SourcesConfig struct {
	Uniform string
	Map     map[string]string
}

type OutputConfig struct {
	Path string
}

// LoadConfig enables loading the fact table into a database when Kind is set.
type LoadConfig struct {
	Kind  string
	DSN   string
	Table string
}

// PublishConfig enables the S3 upload when Bucket is set.
type PublishConfig struct {
	Bucket    string
	Key       string
	Region    string
	Endpoint  string
	PathStyle bool
	AccessKey string
	SecretKey string
}

type MetricsConfig struct {
	Backend string
	Tags    string
}

type LogConfig struct {
	Level  string
	Format string
	Output string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("job", "salesetl")

	v.SetDefault("primary.url", "")
	v.SetDefault("primary.driver", "sqlserver")
	v.SetDefault("primary.host", "")
	v.SetDefault("primary.port", 0)
	v.SetDefault("primary.user", "")
	v.SetDefault("primary.password", "")
	v.SetDefault("primary.database", "")
	v.SetDefault("primary.ping_timeout", 5*time.Second)

	v.SetDefault("secondary.path", "")

	v.SetDefault("csv.dir", "data/raw")
	v.SetDefault("csv.encoding", "")
	v.SetDefault("csv.delimiter", ",")

	v.SetDefault("sources.uniform", "")

	v.SetDefault("output.path", "data/clean/sales_clean.csv")

	v.SetDefault("load.kind", "")
	v.SetDefault("load.dsn", "")
	v.SetDefault("load.table", "sales_fact")

	v.SetDefault("publish.bucket", "")
	v.SetDefault("publish.key", "")
	v.SetDefault("publish.region", "")
	v.SetDefault("publish.endpoint", "")
	v.SetDefault("publish.path_style", false)
	v.SetDefault("publish.access_key", "")
	v.SetDefault("publish.secret_key", "")

	v.SetDefault("metrics.backend", "none")
	v.SetDefault("metrics.tags", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stderr")
}

// Load reads defaults, the config file at path (skipped when empty) and the
// environment.
func Load(path string) (Pipeline, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Pipeline{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) Pipeline {
	return Pipeline{
		Job: v.GetString("job"),
		Primary: PrimarySource{
			URL:         v.GetString("primary.url"),
			Driver:      v.GetString("primary.driver"),
			Host:        v.GetString("primary.host"),
			Port:        v.GetInt("primary.port"),
			User:        v.GetString("primary.user"),
			Password:    v.GetString("primary.password"),
			Database:    v.GetString("primary.database"),
			PingTimeout: v.GetDuration("primary.ping_timeout"),
		},
		Secondary: SecondarySource{
			Path: v.GetString("secondary.path"),
		},
		CSV: CSVSource{
			Dir:       v.GetString("csv.dir"),
			Encoding:  v.GetString("csv.encoding"),
			Delimiter: v.GetString("csv.delimiter"),
		},
		Sources: SourcesConfig{
			Uniform: v.GetString("sources.uniform"),
			Map:     v.GetStringMapString("sources.map"),
		},
		Queries: v.GetStringMapString("queries"),
		Output: OutputConfig{
			Path: v.GetString("output.path"),
		},
		Load: LoadConfig{
			Kind:  v.GetString("load.kind"),
			DSN:   v.GetString("load.dsn"),
			Table: v.GetString("load.table"),
		},
		Publish: PublishConfig{
			Bucket:    v.GetString("publish.bucket"),
			Key:       v.GetString("publish.key"),
			Region:    v.GetString("publish.region"),
			Endpoint:  v.GetString("publish.endpoint"),
			PathStyle: v.GetBool("publish.path_style"),
			AccessKey: v.GetString("publish.access_key"),
			SecretKey: v.GetString("publish.secret_key"),
		},
		Metrics: MetricsConfig{
			Backend: v.GetString("metrics.backend"),
			Tags:    v.GetString("metrics.tags"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
	}
}

// Default returns the built-in configuration without reading any file or
// environment variable.
func Default() Pipeline {
	v := viper.New()
	setDefaults(v)
	return fromViper(v)
}
