package config

import "testing"

func TestExpandEnv(t *testing.T) {
	t.Setenv("BUNDLESYNC_REMOTE_URL", "https://cdn.example.com/ios")
	t.Setenv("BUNDLESYNC_BUCKET", "bundles-prod")
	t.Setenv("BUNDLESYNC_EMPTY", "")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"set", "remote_url: ${BUNDLESYNC_REMOTE_URL}", "remote_url: https://cdn.example.com/ios"},
		{"unset", "remote_url: ${BUNDLESYNC_UNSET_12345}", "remote_url: "},
		{"fallback when unset", "cache_dir: ${BUNDLESYNC_UNSET_12345:-/var/cache/bundles}", "cache_dir: /var/cache/bundles"},
		{"fallback when empty", "mode: ${BUNDLESYNC_EMPTY:-catalog}", "mode: catalog"},
		{"fallback ignored when set", "bucket: ${BUNDLESYNC_BUCKET:-bundles-dev}", "bucket: bundles-prod"},
		{"fallback with colon", "remote_url: ${BUNDLESYNC_UNSET_12345:-http://localhost:8080}", "remote_url: http://localhost:8080"},
		{"several", "path: ${BUNDLESYNC_BUCKET}/${BUNDLESYNC_UNSET_12345:-android}", "path: bundles-prod/android"},
		{"bare dollar untouched", "label: $BUNDLESYNC_BUCKET", "label: $BUNDLESYNC_BUCKET"},
		{"no references", "platform: android", "platform: android"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExpandEnv(tt.in); got != tt.want {
				t.Errorf("ExpandEnv(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestLoad_ExpandsEnvInSyncSection(t *testing.T) {
	t.Setenv("BUNDLESYNC_REMOTE_URL", "https://cdn.example.com/android")
	t.Setenv("BUNDLESYNC_CDN_TOKEN", "secret")

	path := writeTemp(t, `sync:
  remote_url: ${BUNDLESYNC_REMOTE_URL}
  headers:
    Authorization: Bearer ${BUNDLESYNC_CDN_TOKEN}
  cache_dir: ${BUNDLESYNC_CACHE_DIR:-cache}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Sync.RemoteURL != "https://cdn.example.com/android" {
		t.Errorf("remote_url = %q", cfg.Sync.RemoteURL)
	}
	if cfg.Sync.Headers["Authorization"] != "Bearer secret" {
		t.Errorf("headers = %v", cfg.Sync.Headers)
	}
	if cfg.Sync.CacheDir != "cache" {
		t.Errorf("cache_dir = %q", cfg.Sync.CacheDir)
	}
}
