package cmd

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/bundlesync/adapter"
	redisadapter "github.com/pithecene-io/bundlesync/adapter/redis"
	"github.com/pithecene-io/bundlesync/adapter/webhook"
	"github.com/pithecene-io/bundlesync/build"
	"github.com/pithecene-io/bundlesync/cli/config"
	"github.com/pithecene-io/bundlesync/log"
	"github.com/pithecene-io/bundlesync/manifest"
	"github.com/pithecene-io/bundlesync/metrics"
	"github.com/pithecene-io/bundlesync/storage"
	"github.com/pithecene-io/bundlesync/syncer"
	"github.com/pithecene-io/bundlesync/transport"
)

// env is what a command resolves from its config file and flags.
type env struct {
	cfg    *config.Config
	logger *log.Logger
}

// loadEnv reads the config file, applies the log level override and
// builds the logger. Errors are config errors.
func loadEnv(c *cli.Context, component string) (*env, error) {
	cfg, err := config.LoadOrDefault(c.String("config"))
	if err != nil {
		return nil, configError(err)
	}
	setString(c, "log-level", &cfg.Log.Level)

	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, configError(err)
	}
	logger := log.NewLogger(component, level)
	if c.App != nil && c.App.ErrWriter != nil {
		logger = logger.WithOutput(c.App.ErrWriter)
	}
	return &env{cfg: cfg, logger: logger}, nil
}

func setString(c *cli.Context, flag string, dst *string) {
	if c.IsSet(flag) {
		*dst = c.String(flag)
	}
}

func setInt(c *cli.Context, flag string, dst *int) {
	if c.IsSet(flag) {
		*dst = c.Int(flag)
	}
}

func setBool(c *cli.Context, flag string, dst *bool) {
	if c.IsSet(flag) {
		*dst = c.Bool(flag)
	}
}

// resolveLayout computes the build output layout from the build section.
func resolveLayout(b config.BuildConfig) (build.Layout, error) {
	platform, err := manifest.ParsePlatform(b.Platform)
	if err != nil {
		return build.Layout{}, &config.ValidationError{Field: "build.platform", Reason: err.Error()}
	}
	return build.ResolveLayout(b.OutputRoot, platform, b.AppVersion, b.Revision)
}

// contentPrefix is the store prefix of the published content root:
// storage.prefix when set, otherwise the build output directory relative
// to build.output_root (e.g. android/integral, ios/1.4.0/3).
func contentPrefix(cfg *config.Config) (string, error) {
	if p := strings.Trim(cfg.Storage.Prefix, "/"); p != "" {
		return p, nil
	}
	layout, err := resolveLayout(cfg.Build)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(cfg.Build.OutputRoot, layout.OutputDir)
	if err != nil {
		return "", fmt.Errorf("derive content prefix: %w", err)
	}
	return filepath.ToSlash(rel), nil
}

func storageConfig(st config.StorageConfig) storage.Config {
	sc := storage.Config{Backend: strings.ToLower(st.Backend)}
	if sc.Backend == storage.BackendS3 {
		bucket, prefix := storage.ParseS3Path(st.Path)
		sc.S3 = storage.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       st.Region,
			Endpoint:     st.Endpoint,
			UsePathStyle: st.S3PathStyle,
		}
		return sc
	}
	sc.Root = st.Path
	return sc
}

// newFetcher builds the transport for sync.source.
func newFetcher(ctx context.Context, cfg *config.Config) (transport.Fetcher, error) {
	s := cfg.Sync
	switch strings.ToLower(s.Source) {
	case "s3":
		f, err := transport.NewS3Fetcher(ctx, transport.S3Config{
			Bucket:       s.S3.Bucket,
			Prefix:       s.S3.Prefix,
			Region:       s.S3.Region,
			Endpoint:     s.S3.Endpoint,
			UsePathStyle: s.S3.PathStyle,
			Timeout:      s.Timeout.Duration,
		})
		if err != nil {
			return nil, err
		}
		return f, nil
	case "store":
		prefix, err := contentPrefix(cfg)
		if err != nil {
			return nil, err
		}
		factory, err := storage.NewStoreFactory(ctx, storageConfig(cfg.Storage))
		if err != nil {
			return nil, err
		}
		f, err := storage.NewStoreFetcher(factory, prefix, s.Timeout.Duration)
		if err != nil {
			return nil, err
		}
		return f, nil
	default:
		f, err := transport.NewHTTPFetcher(transport.HTTPConfig{
			BaseURL: s.RemoteURL,
			Headers: s.Headers,
			Timeout: s.Timeout.Duration,
		})
		if err != nil {
			return nil, err
		}
		return f, nil
	}
}

// newEngine builds and initializes a sync engine. The caller must call
// Teardown, which also closes the fetcher.
func newEngine(ctx context.Context, e *env, collector *metrics.Collector) (*syncer.Engine, error) {
	s := e.cfg.Sync
	var platform manifest.Platform
	if s.Platform != "" {
		p, err := manifest.ParsePlatform(s.Platform)
		if err != nil {
			return nil, &config.ValidationError{Field: "sync.platform", Reason: err.Error()}
		}
		platform = p
	}

	fetcher, err := newFetcher(ctx, e.cfg)
	if err != nil {
		return nil, err
	}
	engine, err := syncer.New(syncer.Config{
		CacheDir:     s.CacheDir,
		SeedDir:      s.SeedDir,
		AppVersion:   s.AppVersion,
		Platform:     platform,
		ManifestName: s.ManifestName,
		Concurrency:  s.Concurrency,
		MaxAttempts:  s.MaxAttempts,
		RetryBackoff: s.RetryBackoff.Duration,
	}, fetcher, e.logger, collector)
	if err != nil {
		_ = fetcher.Close()
		return nil, err
	}
	if err := engine.Initialize(ctx); err != nil {
		_ = engine.Teardown()
		return nil, fmt.Errorf("initialize cache: %w", err)
	}
	return engine, nil
}

var archiveLevels = map[string]zstd.EncoderLevel{
	"":        zstd.SpeedDefault,
	"fastest": zstd.SpeedFastest,
	"default": zstd.SpeedDefault,
	"better":  zstd.SpeedBetterCompression,
	"best":    zstd.SpeedBestCompression,
}

// newPackager builds the packaging backend for build.packager.
func newPackager(p config.PackagerConfig) (build.Packager, error) {
	switch strings.ToLower(p.Type) {
	case "", "archive":
		level, ok := archiveLevels[strings.ToLower(p.Level)]
		if !ok {
			return nil, &config.ValidationError{Field: "build.packager.level", Reason: fmt.Sprintf("unknown level %q", p.Level)}
		}
		return &build.ArchivePackager{Level: level}, nil
	case "command":
		var envs []string
		for _, k := range slices.Sorted(maps.Keys(p.Env)) {
			envs = append(envs, k+"="+p.Env[k])
		}
		return &build.CommandPackager{Command: p.Command, Args: p.Args, Env: envs}, nil
	default:
		return nil, &config.ValidationError{Field: "build.packager.type", Reason: fmt.Sprintf("unknown packager %q", p.Type)}
	}
}

// newNotifier builds the event notifier. An unset adapter type yields a
// notifier that does nothing.
func newNotifier(cfg *config.Config, logger *log.Logger) (*adapter.Notifier, error) {
	a := cfg.Adapter
	if a.Type == "" {
		return adapter.NewNotifier(nil, logger), nil
	}

	var (
		ad  adapter.Adapter
		err error
	)
	switch strings.ToLower(a.Type) {
	case "webhook":
		retries := webhook.DefaultRetries
		if a.Retries != nil {
			retries = *a.Retries
		}
		ad, err = webhook.New(webhook.Config{
			URL:     a.URL,
			Headers: a.Headers,
			Timeout: a.Timeout.Duration,
			Retries: retries,
		})
	case "redis":
		retries := redisadapter.DefaultRetries
		if a.Retries != nil {
			retries = *a.Retries
		}
		ad, err = redisadapter.New(redisadapter.Config{
			URL:     a.URL,
			Channel: a.Channel,
			Stream:  a.Stream,
			Timeout: a.Timeout.Duration,
			Retries: retries,
		})
	default:
		err = errors.New("unknown adapter type: " + a.Type)
	}
	if err != nil {
		return nil, &config.ValidationError{Field: "adapter", Reason: err.Error()}
	}
	return adapter.NewNotifier(ad, logger), nil
}
