// Package engine implements the bidirectional directory synchronizer: the
// directory scanner, the per-directory record refresh, the per-file
// reconciliation procedure, and the tree-level orchestration that applies
// them to a pair of replicas until both hold the same files, contents,
// modification times, and histories.
package engine

import (
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/nilaysetiya/dirsync-go/internal/record"
)

// ActionType labels a mutating operation for the audit journal and the run
// summary.
type ActionType string

// Actions recorded during a sync pass.
const (
	ActionCopy         ActionType = "copy"
	ActionDelete       ActionType = "delete"
	ActionRestoreMtime ActionType = "restore_mtime"
	ActionTombstone    ActionType = "tombstone"
	ActionConflict     ActionType = "conflict"
	ActionRevive       ActionType = "revive"
)

// Recorder receives one row per mutating action. Implementations must be
// best-effort: the engine never fails a sync because journaling failed.
type Recorder interface {
	RecordAction(action ActionType, path, detail string)
}

// nopRecorder discards all actions. Used when no journal is configured.
type nopRecorder struct{}

func (nopRecorder) RecordAction(ActionType, string, string) {}

// Replica is one side of a sync: a directory and its in-memory record.
type Replica struct {
	Dir    string
	Record record.Record
}

// Path returns the path of name inside the replica's directory. It is
// relative when Dir is relative.
func (r *Replica) Path(name string) string {
	return filepath.Join(r.Dir, name)
}

// Summary counts the mutations performed by one sync pass, including all
// recursive descents.
type Summary struct {
	Copies        int
	Deletes       int
	MtimeRestores int
	Tombstones    int
	Conflicts     int
	Revivals      int
	Errors        int
}

// Total returns the number of filesystem and record mutations.
func (s *Summary) Total() int {
	return s.Copies + s.Deletes + s.MtimeRestores + s.Tombstones + s.Revivals
}

// Options configures a Syncer. The zero value is usable: listings are
// unsorted, malformed sidecars are silently reset, logging is discarded,
// and no journal is kept.
type Options struct {
	// SortListings makes directory iteration deterministic. Recommended;
	// the engine is correct either way.
	SortListings bool

	// QuarantineMalformed renames an undecodable sidecar aside instead of
	// discarding it. Either way the record is rebuilt from the listing.
	QuarantineMalformed bool

	Logger   *slog.Logger
	Recorder Recorder

	// Now supplies tombstone timestamps. Defaults to time.Now.
	Now func() time.Time
}

// discardLogger returns a logger that drops everything, for nil Options.Logger.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
