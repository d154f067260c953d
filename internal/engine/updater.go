package engine

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"

	"github.com/nilaysetiya/dirsync-go/internal/record"
)

// Updater refreshes a directory's record so each current regular file's
// head entry matches what the filesystem reports. Content changes prepend a
// new entry; an unchanged file whose mtime drifted gets its mtime restored
// from the recorded canonical time instead. Missing files are left alone —
// deletion handling belongs to the Syncer.
type Updater struct {
	scanner *Scanner
	journal Recorder
	logger  *slog.Logger
}

// NewUpdater creates an Updater using the given scanner.
func NewUpdater(scanner *Scanner, journal Recorder, logger *slog.Logger) *Updater {
	if logger == nil {
		logger = discardLogger()
	}

	if journal == nil {
		journal = nopRecorder{}
	}

	return &Updater{scanner: scanner, journal: journal, logger: logger}
}

// Refresh updates rec in place from dir's current listing and reports how
// many mtime restores it performed. Per-file I/O failures are logged and
// skipped so a single unreadable file never aborts the pass.
func (u *Updater) Refresh(ctx context.Context, dir string, rec record.Record) (restored int, err error) {
	listing, err := u.scanner.List(dir)
	if err != nil {
		return 0, err
	}

	for _, name := range listing.Files {
		if err := ctx.Err(); err != nil {
			return restored, err
		}

		if u.refreshFile(dir, name, rec) {
			restored++
		}
	}

	return restored, nil
}

// refreshFile brings one filename's head entry up to date. Returns true
// when it restored a drifted mtime.
func (u *Updater) refreshFile(dir, name string, rec record.Record) bool {
	full := filepath.Join(dir, name)

	head, headErr := rec.Head(name)
	if headErr != nil {
		if !errors.Is(headErr, record.ErrMissingHistory) {
			u.logger.Warn("updater: unreadable history, rebuilding", "dir", dir, "name", name, "error", headErr)
		}

		u.insertFresh(dir, name, full, rec)

		return false
	}

	digest, err := record.HashFile(full)
	if err != nil {
		u.logger.Warn("updater: cannot hash file, skipping", "dir", dir, "name", name, "error", err)
		return false
	}

	stamp, err := record.StampFromFile(full)
	if err != nil {
		u.logger.Warn("updater: cannot stat file, skipping", "dir", dir, "name", name, "error", err)
		return false
	}

	switch {
	case !digest.Equal(head.Digest) && !head.Digest.IsTombstone():
		// Content changed since the last observation.
		rec[name] = rec[name].Prepend(record.NewEntry(stamp, digest))
		u.logger.Debug("updater: content changed",
			"dir", dir, "name", name, "digest", digest.Short())

	case digest.Equal(head.Digest) && !stamp.Equal(head.Stamp):
		// Same content, drifted mtime: the recorded time is canonical, so
		// correct the file rather than record a new entry.
		if err := record.RestoreMtime(full, head.Stamp); err != nil {
			u.logger.Warn("updater: cannot restore mtime", "dir", dir, "name", name, "error", err)
			return false
		}

		u.journal.RecordAction(ActionRestoreMtime, full, head.Stamp.String())
		u.logger.Debug("updater: mtime drift corrected",
			"dir", dir, "name", name, "restored_to", head.Stamp.String())

		return true
	}

	return false
}

// insertFresh records a single-entry history from the file's current state.
// Used for files never seen before and for keys whose history is unreadable.
func (u *Updater) insertFresh(dir, name, full string, rec record.Record) {
	entry, err := record.ObserveFile(full)
	if err != nil {
		u.logger.Warn("updater: cannot observe new file, skipping", "dir", dir, "name", name, "error", err)
		return
	}

	rec[name] = record.History{entry}
	u.logger.Debug("updater: new file recorded",
		"dir", dir, "name", name, "digest", entry.Digest.Short())
}
