package syncer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/pithecene-io/bundlesync/iox"
)

// StateFileName is the last-round record kept in the cache directory.
const StateFileName = ".syncstate"

// ErrNoState is returned by LoadState when no round has been recorded.
var ErrNoState = errors.New("no sync state recorded")

// SyncState is the persisted summary of the last round. It is
// informational only and never consulted when diffing.
type SyncState struct {
	RoundID           string    `msgpack:"round_id"`
	Outcome           Outcome   `msgpack:"outcome"`
	LocalRevision     int       `msgpack:"local_revision"`
	RemoteRevision    int       `msgpack:"remote_revision"`
	CommittedRevision int       `msgpack:"committed_revision"`
	Downloaded        int       `msgpack:"downloaded"`
	DownloadedBytes   int64     `msgpack:"downloaded_bytes"`
	Deleted           int       `msgpack:"deleted"`
	FailedPaths       []string  `msgpack:"failed_paths,omitempty"`
	Error             string    `msgpack:"error,omitempty"`
	StartedAt         time.Time `msgpack:"started_at"`
	FinishedAt        time.Time `msgpack:"finished_at"`
}

// NewSyncState summarizes a round result. roundErr may be nil.
func NewSyncState(r *RoundResult, roundErr error) *SyncState {
	s := &SyncState{
		RoundID:           r.RoundID,
		Outcome:           r.Outcome,
		LocalRevision:     r.LocalRevision,
		RemoteRevision:    r.RemoteRevision,
		CommittedRevision: r.CommittedRevision,
		Downloaded:        r.Downloaded,
		DownloadedBytes:   r.DownloadedBytes,
		Deleted:           r.Deleted,
		FailedPaths:       r.FailedPaths(),
		StartedAt:         r.StartedAt,
		FinishedAt:        r.FinishedAt,
	}
	if roundErr != nil {
		s.Error = roundErr.Error()
	}
	return s
}

// SaveState writes s to dir atomically.
func SaveState(dir string, s *SyncState) error {
	data, err := msgpack.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode sync state: %w", err)
	}
	return iox.WriteFileAtomic(filepath.Join(dir, StateFileName), data, 0o644)
}

// LoadState reads the state recorded in dir.
func LoadState(dir string) (*SyncState, error) {
	data, err := os.ReadFile(filepath.Join(dir, StateFileName))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoState
	}
	if err != nil {
		return nil, err
	}
	var s SyncState
	if err := msgpack.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode sync state: %w", err)
	}
	return &s, nil
}
