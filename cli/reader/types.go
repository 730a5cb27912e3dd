// Package reader builds the read-side payloads rendered by the CLI.
//
// Every command renders one of these types through the render package,
// and the TUI views consume the same payloads. Nothing here mutates a
// cache or an output directory.
package reader

import "time"

// StatusResponse describes a client cache.
type StatusResponse struct {
	CacheDir   string `json:"cache_dir"`
	Seeded     bool   `json:"seeded"`
	Platform   string `json:"platform"`
	AppVersion string `json:"app_version"`
	// Revision is -1 when the cache holds no manifest yet.
	Revision   int      `json:"revision"`
	Files      int      `json:"files"`
	TotalBytes int64    `json:"total_bytes"`
	Present    int      `json:"present"`
	FromSeed   int      `json:"from_seed"`
	Missing    []string `json:"missing"`
	// Corrupt is only populated when verification was requested.
	Corrupt   []string   `json:"corrupt"`
	Verified  bool       `json:"verified"`
	LastRound *LastRound `json:"last_round"`
}

// LastRound is the persisted summary of the most recent sync round.
type LastRound struct {
	RoundID           string    `json:"round_id"`
	Outcome           string    `json:"outcome"`
	CommittedRevision int       `json:"committed_revision"`
	Downloaded        int       `json:"downloaded"`
	Deleted           int       `json:"deleted"`
	FailedPaths       []string  `json:"failed_paths"`
	Error             string    `json:"error,omitempty"`
	FinishedAt        time.Time `json:"finished_at"`
}

// DiffItem is one file of a diff.
type DiffItem struct {
	Path  string `json:"path"`
	Label string `json:"label"`
	Hash  string `json:"hash"`
	Size  int64  `json:"size"`
}

// DiffResponse is a dry-run view of the next sync round.
type DiffResponse struct {
	LocalRevision  int        `json:"local_revision"`
	RemoteRevision int        `json:"remote_revision"`
	Current        bool       `json:"current"`
	ToAdd          []DiffItem `json:"to_add"`
	ToUpdate       []DiffItem `json:"to_update"`
	ToRemove       []DiffItem `json:"to_remove"`
	DownloadBytes  int64      `json:"download_bytes"`
}

// HashItem is the fingerprint of one file.
type HashItem struct {
	Path string `json:"path"`
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}

// FailedItem is a file left out of a sync commit.
type FailedItem struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// SyncResponse reports one sync round.
type SyncResponse struct {
	RoundID           string       `json:"round_id"`
	Mode              string       `json:"mode"`
	Outcome           string       `json:"outcome"`
	LocalRevision     int          `json:"local_revision"`
	RemoteRevision    int          `json:"remote_revision"`
	CommittedRevision int          `json:"committed_revision"`
	ToAdd             int          `json:"to_add"`
	ToUpdate          int          `json:"to_update"`
	ToRemove          int          `json:"to_remove"`
	Downloaded        int          `json:"downloaded"`
	DownloadedBytes   int64        `json:"downloaded_bytes"`
	Deleted           int          `json:"deleted"`
	Failed            []FailedItem `json:"failed"`
	DurationMs        int64        `json:"duration_ms"`
}

// BuildResponse reports one build.
type BuildResponse struct {
	BuildID    string   `json:"build_id"`
	OutputDir  string   `json:"output_dir"`
	Platform   string   `json:"platform"`
	AppVersion string   `json:"app_version"`
	Revision   int      `json:"revision"`
	Files      int      `json:"files"`
	TotalBytes int64    `json:"total_bytes"`
	Packaged   []string `json:"packaged"`
	Reused     []string `json:"reused"`
	Skipped    []string `json:"skipped"`
	DurationMs int64    `json:"duration_ms"`
}

// PublishResponse reports one publish.
type PublishResponse struct {
	Prefix      string   `json:"prefix"`
	ManifestKey string   `json:"manifest_key"`
	Platform    string   `json:"platform"`
	AppVersion  string   `json:"app_version"`
	Revision    int      `json:"revision"`
	Uploaded    []string `json:"uploaded"`
	Unchanged   []string `json:"unchanged"`
	Pruned      []string `json:"pruned"`
	Bytes       int64    `json:"bytes"`
}
