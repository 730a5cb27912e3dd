package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/pithecene-io/bundlesync/iox"
)

// S3Config configures an S3Fetcher.
type S3Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string
	// Prefix is the key prefix of the content root within the bucket.
	Prefix string
	// Region is the AWS region (optional, uses default chain if empty).
	Region string
	// Endpoint is a custom S3 endpoint URL for S3-compatible providers
	// (e.g. Cloudflare R2, MinIO). Empty uses the default AWS endpoint.
	Endpoint string
	// UsePathStyle forces path-style addressing.
	UsePathStyle bool
	// Timeout bounds each GetObject call (default 15s).
	Timeout time.Duration
}

// Validate checks that required S3 configuration is present.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("S3 bucket is required")
	}
	return nil
}

// s3GetAPI is the subset of the S3 client used by S3Fetcher.
type s3GetAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Fetcher reads objects from {Bucket}/{Prefix}/{name}.
type S3Fetcher struct {
	config S3Config
	client s3GetAPI
}

// NewS3Fetcher creates an S3 fetcher.
// Uses AWS SDK default credential chain (env vars, shared config, IAM role).
func NewS3Fetcher(ctx context.Context, cfg S3Config) (*S3Fetcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return newS3FetcherWithClient(cfg, s3.NewFromConfig(awsConfig, s3Opts...)), nil
}

func newS3FetcherWithClient(cfg S3Config, client s3GetAPI) *S3Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &S3Fetcher{config: cfg, client: client}
}

// Key returns the object key for name.
func (f *S3Fetcher) Key(name string) string {
	return joinKey(f.config.Prefix, name)
}

// Fetch downloads one object.
func (f *S3Fetcher) Fetch(ctx context.Context, name string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.config.Bucket),
		Key:    aws.String(f.Key(name)),
	})
	if err != nil {
		return nil, NewTransportError(Classify(err), "fetch", name, err)
	}
	defer iox.DiscardClose(out.Body)

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, NewTransportError(Classify(err), "read", name, err)
	}
	return data, nil
}

// Close is a no-op; the SDK client holds no per-fetcher resources.
func (f *S3Fetcher) Close() error { return nil }

var _ Fetcher = (*S3Fetcher)(nil)
