// Package config handles bundlesync.yaml loading, defaults and validation.
package config

import (
	"os"
	"regexp"
)

// envRef matches ${NAME} and ${NAME:-fallback}.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnv substitutes environment references in raw config text before
// it is parsed:
//
//	sync:
//	  remote_url: ${BUNDLESYNC_REMOTE_URL:-https://cdn.example.com/android}
//
// A set, non-empty variable wins; otherwise the fallback is used, and a
// reference without one becomes the empty string. Missing required values
// are reported by the Validate methods, not here.
func ExpandEnv(raw string) string {
	return envRef.ReplaceAllStringFunc(raw, func(ref string) string {
		m := envRef.FindStringSubmatch(ref)
		if v := os.Getenv(m[1]); v != "" {
			return v
		}
		return m[2]
	})
}
