package build

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pithecene-io/bundlesync/manifest"
)

const (
	integralDir     = "integral"
	integralPrevDir = "integral_prev"
)

// Layout resolves where a build writes its artifacts and where the
// previous build's artifacts are found.
//
// Revisions below 1 use the integral layout: a single rolling directory
// whose previous contents are kept once as integral_prev. Other revisions
// get their own {appVersion}/{revision} directory and older revisions are
// retained.
type Layout struct {
	// PlatformDir is {root}/{platform}; the build cache lives here.
	PlatformDir string
	// OutputDir receives this build's artifacts and manifest.
	OutputDir string
	// PrevDir holds the previous build's artifacts, used for reuse.
	PrevDir string
	// Integral is true for the rolling layout.
	Integral bool
}

// ResolveLayout computes the layout without touching the filesystem.
func ResolveLayout(root string, platform manifest.Platform, appVersion string, revision int) (Layout, error) {
	if root == "" {
		return Layout{}, &ConfigError{Field: "output", Reason: "path is required"}
	}
	if platform != manifest.PlatformAndroid && platform != manifest.PlatformIOS {
		return Layout{}, &ConfigError{Field: "platform", Reason: fmt.Sprintf("unknown platform %d", int(platform))}
	}

	platformDir := filepath.Join(root, platform.String())
	if revision < 1 {
		return Layout{
			PlatformDir: platformDir,
			OutputDir:   filepath.Join(platformDir, integralDir),
			PrevDir:     filepath.Join(platformDir, integralPrevDir),
			Integral:    true,
		}, nil
	}

	if appVersion == "" {
		return Layout{}, &ConfigError{Field: "app_version", Reason: "required for revisioned builds"}
	}
	versionDir := filepath.Join(platformDir, appVersion)
	return Layout{
		PlatformDir: platformDir,
		OutputDir:   filepath.Join(versionDir, strconv.Itoa(revision)),
		PrevDir:     filepath.Join(versionDir, strconv.Itoa(revision-1)),
	}, nil
}

// Prepare readies OutputDir for a fresh build.
//
// Integral: an existing integral_prev is deleted and the current integral
// directory is renamed into its place. The deleted backup is not restored
// if the build later fails. Revisioned: a directory already present for
// the same revision is removed.
//
// Returns true when an older integral backup was discarded.
func (l Layout) Prepare() (discardedBackup bool, err error) {
	if l.Integral {
		if _, statErr := os.Stat(l.OutputDir); statErr == nil {
			if _, prevErr := os.Stat(l.PrevDir); prevErr == nil {
				discardedBackup = true
			}
			if err := os.RemoveAll(l.PrevDir); err != nil {
				return false, fmt.Errorf("remove %s: %w", l.PrevDir, err)
			}
			if err := os.Rename(l.OutputDir, l.PrevDir); err != nil {
				return false, fmt.Errorf("rotate %s: %w", l.OutputDir, err)
			}
		} else if !errors.Is(statErr, os.ErrNotExist) {
			return false, statErr
		}
	} else if err := os.RemoveAll(l.OutputDir); err != nil {
		return false, fmt.Errorf("remove %s: %w", l.OutputDir, err)
	}

	if err := os.MkdirAll(l.OutputDir, 0o755); err != nil {
		return discardedBackup, fmt.Errorf("create %s: %w", l.OutputDir, err)
	}
	return discardedBackup, nil
}
