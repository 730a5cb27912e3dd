package syncer

import (
	"fmt"
	"sort"
	"time"
)

// State is the engine's position within a sync round.
type State int32

const (
	StateIdle State = iota
	StateFetchingRemoteManifest
	StateDiffing
	StateDeleting
	StateDownloading
	StateCommitting
	// StateFailed is held briefly after an aborted round before the
	// engine returns to StateIdle.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetchingRemoteManifest:
		return "fetching_remote_manifest"
	case StateDiffing:
		return "diffing"
	case StateDeleting:
		return "deleting"
	case StateDownloading:
		return "downloading"
	case StateCommitting:
		return "committing"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Outcome classifies a finished round.
type Outcome string

const (
	// OutcomeSuccess means every transfer was accepted and the remote
	// revision was committed.
	OutcomeSuccess Outcome = "success"
	// OutcomeCurrent means nothing needed transferring.
	OutcomeCurrent Outcome = "current"
	// OutcomePartial means some files failed; they were left out of the
	// committed manifest and the local revision was kept.
	OutcomePartial Outcome = "partial"
	// OutcomeFailed means the round aborted and local state is unchanged.
	OutcomeFailed Outcome = "failed"
)

// ProgressFunc receives completed/total once per settled transfer.
type ProgressFunc func(fraction float64)

// RoundResult describes one sync round.
type RoundResult struct {
	RoundID string
	Outcome Outcome

	// LocalRevision is the revision held before the round.
	LocalRevision int
	// RemoteRevision is -1 when the remote manifest was not obtained.
	RemoteRevision int
	// CommittedRevision is the revision written at the end of the round.
	CommittedRevision int

	ToAdd    int
	ToUpdate int
	ToRemove int

	Downloaded      int
	DownloadedBytes int64
	Deleted         int
	// Failed maps each file left out of the commit to its last error.
	Failed map[string]error

	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns the wall time of the round.
func (r *RoundResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// FailedPaths returns the failed file paths in sorted order.
func (r *RoundResult) FailedPaths() []string {
	paths := make([]string, 0, len(r.Failed))
	for p := range r.Failed {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
