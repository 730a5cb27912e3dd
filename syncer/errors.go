package syncer

import (
	"errors"
	"fmt"
)

var (
	// ErrSyncInProgress is returned when a round is already running.
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrIntegrity is the sentinel carried by every IntegrityError.
	ErrIntegrity = errors.New("integrity check failed")

	// ErrInvalidManifest indicates the remote manifest could not be decoded.
	ErrInvalidManifest = errors.New("invalid remote manifest")

	// ErrPlatformMismatch indicates the remote manifest targets another platform.
	ErrPlatformMismatch = errors.New("remote manifest platform mismatch")

	// ErrUnsafePath indicates a manifest path escaping the cache directory.
	ErrUnsafePath = errors.New("unsafe manifest path")

	// ErrClosed is returned after Teardown.
	ErrClosed = errors.New("engine closed")
)

// IntegrityError reports a fetched file whose size or fingerprint does
// not match its manifest entry. GotHash is empty when the size check
// already failed.
type IntegrityError struct {
	Path     string
	WantSize int64
	GotSize  int64
	WantHash string
	GotHash  string
}

func (e *IntegrityError) Error() string {
	if e.GotSize != e.WantSize {
		return fmt.Sprintf("%s: size %d, want %d", e.Path, e.GotSize, e.WantSize)
	}
	return fmt.Sprintf("%s: hash %s, want %s", e.Path, e.GotHash, e.WantHash)
}

// Is reports whether target is ErrIntegrity.
func (e *IntegrityError) Is(target error) bool {
	return target == ErrIntegrity
}
