package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"
)

// Defaults applied by ApplyDefaults.
const (
	DefaultLogLevel     = "info"
	DefaultPackagerType = "archive"
	DefaultSyncMode     = "bundle"
	DefaultSyncSource   = "http"
	DefaultManifestName = "filesinfo.dat"
	DefaultConcurrency  = 5
	DefaultMaxAttempts  = 3
	DefaultRetryBackoff = 250 * time.Millisecond
	DefaultTimeout      = 15 * time.Second
	DefaultBackend      = "fs"
)

// ErrInvalid is matched by every *ValidationError.
var ErrInvalid = errors.New("invalid configuration")

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Is reports whether target is ErrInvalid.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalid
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ApplyDefaults fills unset values. It is idempotent.
func (c *Config) ApplyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Build.Packager.Type == "" {
		c.Build.Packager.Type = DefaultPackagerType
	}

	s := &c.Sync
	if s.Mode == "" {
		s.Mode = DefaultSyncMode
	}
	if s.Source == "" {
		s.Source = DefaultSyncSource
	}
	if s.ManifestName == "" {
		s.ManifestName = DefaultManifestName
	}
	if s.Concurrency == 0 {
		s.Concurrency = DefaultConcurrency
	}
	if s.MaxAttempts == 0 {
		s.MaxAttempts = DefaultMaxAttempts
	}
	if s.RetryBackoff.Duration == 0 {
		s.RetryBackoff.Duration = DefaultRetryBackoff
	}
	if s.Timeout.Duration == 0 {
		s.Timeout.Duration = DefaultTimeout
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = DefaultBackend
	}
}

var (
	platforms     = []string{"android", "ios"}
	packagerTypes = []string{"archive", "command"}
	archiveLevels = []string{"", "fastest", "default", "better", "best"}
	syncModes     = []string{"bundle", "catalog"}
	syncSources   = []string{"http", "s3", "store"}
	backends      = []string{"fs", "s3"}
	adapterTypes  = []string{"webhook", "redis"}
)

func oneOf(field, value string, allowed []string) error {
	if slices.Contains(allowed, strings.ToLower(value)) {
		return nil
	}
	return invalid(field, "%q is not one of %s", value, strings.Join(allowed, ", "))
}

// ValidateBuild checks the settings the build command needs.
func (c *Config) ValidateBuild() error {
	b := &c.Build
	if b.SourceRoot == "" {
		return invalid("build.source_root", "is required")
	}
	if b.OutputRoot == "" {
		return invalid("build.output_root", "is required")
	}
	if err := oneOf("build.platform", b.Platform, platforms); err != nil {
		return err
	}
	if b.Revision >= 1 && b.AppVersion == "" {
		return invalid("build.app_version", "is required for revision %d", b.Revision)
	}
	if len(b.Folders) == 0 {
		return invalid("build.folders", "at least one folder is required")
	}
	for i, f := range b.Folders {
		if strings.TrimSpace(f.Path) == "" {
			return invalid(fmt.Sprintf("build.folders[%d].path", i), "is required")
		}
	}
	if err := oneOf("build.packager.type", b.Packager.Type, packagerTypes); err != nil {
		return err
	}
	if err := oneOf("build.packager.level", b.Packager.Level, archiveLevels); err != nil {
		return err
	}
	if strings.EqualFold(b.Packager.Type, "command") && b.Packager.Command == "" {
		return invalid("build.packager.command", "is required for the command packager")
	}
	return nil
}

// ValidateSync checks the settings the sync, diff and status commands need.
func (c *Config) ValidateSync() error {
	s := &c.Sync
	if s.CacheDir == "" {
		return invalid("sync.cache_dir", "is required")
	}
	if err := oneOf("sync.mode", s.Mode, syncModes); err != nil {
		return err
	}
	if s.Platform != "" {
		if err := oneOf("sync.platform", s.Platform, platforms); err != nil {
			return err
		}
	}
	if s.Concurrency < 1 {
		return invalid("sync.concurrency", "must be >= 1, got %d", s.Concurrency)
	}
	if s.MaxAttempts < 1 {
		return invalid("sync.max_attempts", "must be >= 1, got %d", s.MaxAttempts)
	}
	if s.Timeout.Duration < 0 || s.RetryBackoff.Duration < 0 {
		return invalid("sync.timeout", "durations must not be negative")
	}

	switch strings.ToLower(s.Source) {
	case "http":
		if s.RemoteURL == "" {
			return invalid("sync.remote_url", "is required for the http source")
		}
		u, err := url.Parse(s.RemoteURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return invalid("sync.remote_url", "%q is not an http(s) URL", s.RemoteURL)
		}
	case "s3":
		if s.S3.Bucket == "" {
			return invalid("sync.s3.bucket", "is required for the s3 source")
		}
	case "store":
		return c.ValidateStorage()
	default:
		return oneOf("sync.source", s.Source, syncSources)
	}
	return nil
}

// ValidateStorage checks the publish target.
func (c *Config) ValidateStorage() error {
	st := &c.Storage
	if err := oneOf("storage.backend", st.Backend, backends); err != nil {
		return err
	}
	if st.Path == "" {
		return invalid("storage.path", "is required")
	}
	return nil
}

// ValidateAdapter checks the adapter settings. An unset type disables
// notifications and is valid.
func (c *Config) ValidateAdapter() error {
	a := &c.Adapter
	if a.Type == "" {
		return nil
	}
	if err := oneOf("adapter.type", a.Type, adapterTypes); err != nil {
		return err
	}
	if a.URL == "" {
		return invalid("adapter.url", "is required for the %s adapter", a.Type)
	}
	if a.Retries != nil && *a.Retries < 0 {
		return invalid("adapter.retries", "must be >= 0, got %d", *a.Retries)
	}
	return nil
}
