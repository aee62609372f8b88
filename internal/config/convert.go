package config

import (
	"unicode/utf8"

	"salesetl/internal/datasource"
	"salesetl/internal/logging"
	csvparser "salesetl/internal/parser/csv"
	"salesetl/internal/publish"
	"salesetl/internal/source"
	"salesetl/internal/storage"
)

// SourceMap returns the table→kind binding for the run.
func (p Pipeline) SourceMap() (source.Map, error) {
	if p.Sources.Uniform != "" {
		k, err := source.ParseKind(p.Sources.Uniform)
		if err != nil {
			return nil, err
		}
		return source.Uniform(k), nil
	}
	return source.ParseMap(source.DefaultMap(), p.Sources.Map)
}

// QueryOverrides keys the configured queries by logical table name.
func (p Pipeline) QueryOverrides() map[string]string {
	out := make(map[string]string, len(p.Queries))
	for name, q := range p.Queries {
		if canon, ok := source.CanonicalTableName(name); ok {
			out[canon] = q
		}
	}
	return out
}

func (p Pipeline) PrimaryConfig() datasource.PrimaryConfig {
	return datasource.PrimaryConfig{
		URL:         p.Primary.URL,
		Driver:      p.Primary.Driver,
		Host:        p.Primary.Host,
		Port:        p.Primary.Port,
		User:        p.Primary.User,
		Password:    p.Primary.Password,
		Database:    p.Primary.Database,
		PingTimeout: p.Primary.PingTimeout,
	}
}

func (p Pipeline) CSVOptions() csvparser.Options {
	opt := csvparser.DefaultOptions()
	opt.Encoding = p.CSV.Encoding
	if r, size := utf8.DecodeRuneInString(p.CSV.Delimiter); size > 0 && r != utf8.RuneError {
		opt.Comma = r
	}
	return opt
}

func (p Pipeline) StorageConfig() storage.Config {
	return storage.Config{Kind: p.Load.Kind, DSN: p.Load.DSN}
}

func (p Pipeline) S3Config() publish.S3Config {
	return publish.S3Config{
		Bucket:    p.Publish.Bucket,
		Key:       p.Publish.Key,
		Region:    p.Publish.Region,
		Endpoint:  p.Publish.Endpoint,
		PathStyle: p.Publish.PathStyle,
		AccessKey: p.Publish.AccessKey,
		SecretKey: p.Publish.SecretKey,
	}
}

func (p Pipeline) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	if p.Log.Level != "" {
		cfg.Level = p.Log.Level
	}
	if p.Log.Format != "" {
		cfg.Format = p.Log.Format
	}
	if p.Log.Output != "" {
		cfg.Output = p.Log.Output
	}
	return cfg
}
