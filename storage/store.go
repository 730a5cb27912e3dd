package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/justapithecus/lode/lode"
	lodes3 "github.com/justapithecus/lode/lode/s3"
)

// Backend kinds.
const (
	BackendFS     = "fs"
	BackendS3     = "s3"
	BackendMemory = "memory"
)

// Config selects and configures a store backend.
type Config struct {
	// Backend is "fs", "s3" or "memory".
	Backend string
	// Root is the base directory for the fs backend.
	Root string
	S3   S3Config
}

// S3Config holds configuration for the S3 backend.
type S3Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string
	// Prefix is the key prefix within the bucket (optional).
	Prefix string
	// Region is the AWS region (optional, uses default chain if empty).
	Region string
	// Endpoint is a custom S3 endpoint URL for S3-compatible providers
	// (e.g. Cloudflare R2, MinIO). Empty uses the default AWS endpoint.
	Endpoint string
	// UsePathStyle forces path-style addressing (bucket in path, not subdomain).
	UsePathStyle bool
}

// Validate checks that required S3 configuration is present.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("S3 bucket is required")
	}
	return nil
}

// ParseS3Path parses a path in format "bucket/prefix" or "bucket".
func ParseS3Path(path string) (bucket, prefix string) {
	bucket, prefix, _ = strings.Cut(path, "/")
	return bucket, prefix
}

// Validate checks the configuration for the selected backend.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendFS:
		if c.Root == "" {
			return errors.New("storage root is required for fs backend")
		}
	case BackendS3:
		return c.S3.Validate()
	case BackendMemory:
	default:
		return fmt.Errorf("unknown storage backend: %q (must be fs, s3 or memory)", c.Backend)
	}
	return nil
}

// NewStoreFactory returns a lode.StoreFactory for cfg. The S3 backend
// uses the AWS SDK default credential chain (env vars, shared config,
// IAM role).
func NewStoreFactory(ctx context.Context, cfg Config) (lode.StoreFactory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case BackendFS:
		return lode.NewFSFactory(cfg.Root), nil
	case BackendMemory:
		return lode.NewMemoryFactory(), nil
	}

	var opts []func(*config.LoadOptions) error
	if cfg.S3.Region != "" {
		opts = append(opts, config.WithRegion(cfg.S3.Region))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, Wrap(fmt.Errorf("load AWS config: %w", err), "init", cfg.S3.Bucket)
	}

	var s3Opts []func(*s3.Options)
	if cfg.S3.Endpoint != "" {
		endpoint := cfg.S3.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if cfg.S3.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}
	client := s3.NewFromConfig(awsConfig, s3Opts...)

	return func() (lode.Store, error) {
		return lodes3.New(client, lodes3.Config{
			Bucket: cfg.S3.Bucket,
			Prefix: cfg.S3.Prefix,
		})
	}, nil
}
