package build

import (
	"errors"
	"fmt"
)

// ErrConfig is the sentinel for invalid build configuration.
var ErrConfig = errors.New("invalid build configuration")

// ConfigError reports a configuration problem detected before any
// filesystem mutation.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("build config: %s: %s", e.Field, e.Reason)
}

// Is reports whether target is ErrConfig.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}

// PackagingError wraps a packager failure for one folder.
// Any PackagingError aborts the run before the manifest is written.
type PackagingError struct {
	Folder string
	Bundle string
	Err    error
}

func (e *PackagingError) Error() string {
	return fmt.Sprintf("package %s (%s): %v", e.Folder, e.Bundle, e.Err)
}

// Unwrap returns the underlying packager error.
func (e *PackagingError) Unwrap() error {
	return e.Err
}

// IsPackagingError reports whether err carries a PackagingError.
func IsPackagingError(err error) bool {
	var pe *PackagingError
	return errors.As(err, &pe)
}
