// Package publish uploads the SalesFact CSV to S3-compatible object storage.
package publish

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"salesetl/internal/load"
)

const defaultRegion = "us-east-1"

// S3Config describes the destination bucket. AccessKey and SecretKey are
// optional; without them the default AWS credential chain is used.
type S3Config struct {
	Bucket    string
	Key       string
	Region    string
	Endpoint  string
	PathStyle bool
	AccessKey string
	SecretKey string
}

// Enabled reports whether an upload is configured.
func (c S3Config) Enabled() bool { return strings.TrimSpace(c.Bucket) != "" }

// ObjectKey returns the configured key, or the file's base name when the key
// is empty or ends with "/".
func (c S3Config) ObjectKey(localPath string) string {
	base := filepath.Base(localPath)
	switch {
	case c.Key == "":
		return base
	case strings.HasSuffix(c.Key, "/"):
		return path.Join(c.Key, base)
	default:
		return c.Key
	}
}

type putter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Publisher uploads files to one bucket.
type S3Publisher struct {
	client putter
	cfg    S3Config
	logger *zap.Logger
}

// NewS3Publisher builds a client from cfg.
func NewS3Publisher(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3Publisher, error) {
	if !cfg.Enabled() {
		return nil, errors.New("publish: bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = defaultRegion
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKey != "" || cfg.SecretKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("publish: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return newS3Publisher(client, cfg, logger), nil
}

func newS3Publisher(client putter, cfg S3Config, logger *zap.Logger) *S3Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &S3Publisher{client: client, cfg: cfg, logger: logger}
}

// Publish uploads the file at localPath and returns its s3:// URI.
func (p *S3Publisher) Publish(ctx context.Context, localPath string) (string, error) {
	key := p.cfg.ObjectKey(localPath)
	uri := "s3://" + p.cfg.Bucket + "/" + key

	f, err := os.Open(localPath)
	if err != nil {
		return "", &load.PersistError{Target: uri, Op: "open", Err: err}
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return "", &load.PersistError{Target: uri, Op: "stat", Err: err}
	}

	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.cfg.Bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(st.Size()),
		ContentType:   aws.String("text/csv; charset=utf-8"),
	})
	if err != nil {
		return "", &load.PersistError{Target: uri, Op: "upload", Err: err}
	}

	p.logger.Info("output published", zap.String("uri", uri), zap.Int64("bytes", st.Size()))
	return uri, nil
}
