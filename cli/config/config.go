package config

import (
	"fmt"
	"time"
)

// DefaultPath is the config file read when --config is not given and
// the file exists in the working directory.
const DefaultPath = "bundlesync.yaml"

// Config represents a bundlesync.yaml configuration file.
// Values act as defaults for command flags; flags always override them.
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Build   BuildConfig   `yaml:"build"`
	Sync    SyncConfig    `yaml:"sync"`
	Storage StorageConfig `yaml:"storage"`
	Adapter AdapterConfig `yaml:"adapter"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
}

// BuildConfig holds build settings.
type BuildConfig struct {
	SourceRoot string         `yaml:"source_root"`
	OutputRoot string         `yaml:"output_root"`
	Platform   string         `yaml:"platform"`
	AppVersion string         `yaml:"app_version"`
	Revision   int            `yaml:"revision"`
	Folders    []FolderConfig `yaml:"folders"`
	Packager   PackagerConfig `yaml:"packager"`
}

// FolderConfig is one bundle folder. Label is the logical name the
// bundle is loaded by and may be empty.
type FolderConfig struct {
	Path  string `yaml:"path"`
	Label string `yaml:"label"`
}

// PackagerConfig selects the packaging backend.
type PackagerConfig struct {
	// Type is "archive" (default) or "command".
	Type string `yaml:"type"`
	// Level is the archive compression level: fastest, default, better, best.
	Level   string            `yaml:"level"`
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Env     map[string]string `yaml:"env"`
}

// SyncConfig holds client synchronization settings.
type SyncConfig struct {
	// Mode is "bundle" (default) or "catalog".
	Mode string `yaml:"mode"`
	// Source is "http" (default), "s3" or "store".
	Source       string            `yaml:"source"`
	RemoteURL    string            `yaml:"remote_url"`
	Headers      map[string]string `yaml:"headers,omitempty"`
	S3           S3Config          `yaml:"s3"`
	CacheDir     string            `yaml:"cache_dir"`
	SeedDir      string            `yaml:"seed_dir"`
	AppVersion   string            `yaml:"app_version"`
	Platform     string            `yaml:"platform"`
	ManifestName string            `yaml:"manifest_name"`
	Concurrency  int               `yaml:"concurrency"`
	MaxAttempts  int               `yaml:"max_attempts"`
	RetryBackoff Duration          `yaml:"retry_backoff"`
	Timeout      Duration          `yaml:"timeout"`
}

// S3Config locates a content root inside a bucket.
type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
}

// StorageConfig holds the publish target. The sync "store" source reads
// from the same store.
type StorageConfig struct {
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
	// Prefix overrides the key prefix derived from the build layout.
	Prefix string `yaml:"prefix"`
	Prune  bool   `yaml:"prune"`
}

// AdapterConfig holds event notification settings.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Stream  string            `yaml:"stream,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML renders the duration in its string form.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}
