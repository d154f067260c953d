package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/nilaysetiya/dirsync-go/internal/record"
)

// Syncer runs full synchronization passes over a directory pair. A pass is
// seven ordered phases: refresh both records, load them, reconcile names
// known to both sides, revive files re-created after deletion, propagate
// deletions as tombstones, recurse into common subdirectories, and finally
// copy over one-sided files and subtrees.
//
// The ordering carries the semantics: refresh first so heads reflect disk,
// reconciliation before deletion detection so an edit on one side outranks
// a delete on the other, revival before deletion detection so a re-created
// file is not re-tombstoned, and one-sided propagation last so it is not
// confused by files created or removed earlier in the pass.
type Syncer struct {
	scanner    *Scanner
	updater    *Updater
	reconciler *Reconciler

	journal    Recorder
	logger     *slog.Logger
	quarantine bool
	now        func() time.Time

	summary *Summary
}

// New creates a Syncer from opts.
func New(opts Options) *Syncer {
	logger := opts.Logger
	if logger == nil {
		logger = discardLogger()
	}

	journal := opts.Recorder
	if journal == nil {
		journal = nopRecorder{}
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	summary := &Summary{}
	scanner := NewScanner(opts.SortListings, logger)

	return &Syncer{
		scanner:    scanner,
		updater:    NewUpdater(scanner, journal, logger),
		reconciler: NewReconciler(journal, summary, logger),
		journal:    journal,
		logger:     logger,
		quarantine: opts.QuarantineMalformed,
		now:        now,
		summary:    summary,
	}
}

// Sync synchronizes dir1 and dir2, recursing into common subdirectories,
// and returns the accumulated summary. Per-file failures are logged and
// skipped; only directory-level failures (unreadable listings, unwritable
// sidecars) abort the pass.
func (s *Syncer) Sync(ctx context.Context, dir1, dir2 string) (*Summary, error) {
	s.logger.Info("sync started", "dir1", dir1, "dir2", dir2)

	if err := s.syncPair(ctx, dir1, dir2); err != nil {
		return s.summary, err
	}

	s.logger.Info("sync complete",
		"dir1", dir1, "dir2", dir2,
		"copies", s.summary.Copies,
		"deletes", s.summary.Deletes,
		"mtime_restores", s.summary.MtimeRestores,
		"tombstones", s.summary.Tombstones,
		"conflicts", s.summary.Conflicts,
		"revivals", s.summary.Revivals,
		"errors", s.summary.Errors,
	)

	return s.summary, nil
}

// syncPair runs the seven phases for one directory pair. Called recursively
// for common subdirectories.
func (s *Syncer) syncPair(ctx context.Context, dir1, dir2 string) error {
	// Phase 1: refresh both sidecars from disk.
	for _, dir := range []string{dir1, dir2} {
		if err := s.refresh(ctx, dir); err != nil {
			return err
		}
	}

	// Phase 2: load both records.
	r1 := &Replica{Dir: dir1, Record: s.loadRecord(dir1)}
	r2 := &Replica{Dir: dir2, Record: s.loadRecord(dir2)}

	// Phase 3: reconcile every name present in both records.
	if err := s.reconcileCommon(ctx, r1, r2); err != nil {
		return err
	}

	// Phase 4: revive files re-created after deletion.
	if err := s.reviveDeleted(ctx, r1, r2); err != nil {
		return err
	}

	// Phase 5: propagate deletions as tombstones.
	if err := s.detectDeletions(ctx, r1, r2); err != nil {
		return err
	}

	// Phase 6: recurse into subdirectories present on both sides.
	if err := s.recurse(ctx, r1, r2); err != nil {
		return err
	}

	// Phase 7: copy over one-sided files and subtrees.
	return s.propagateOneSided(ctx, r1, r2)
}

// refresh runs the record updater over one directory and persists the
// result.
func (s *Syncer) refresh(ctx context.Context, dir string) error {
	rec := s.loadRecord(dir)

	restored, err := s.updater.Refresh(ctx, dir, rec)
	if err != nil {
		return err
	}

	s.summary.MtimeRestores += restored

	return s.storeRecord(dir, rec)
}

// loadRecord loads a directory's record, applying the malformed-sidecar
// policy: quarantine the broken file when configured, otherwise let the
// empty record stand and the refresh rebuild it.
func (s *Syncer) loadRecord(dir string) record.Record {
	rec, err := record.Load(dir)
	if err == nil {
		return rec
	}

	if !errors.Is(err, record.ErrMalformed) {
		s.logger.Warn("cannot read sidecar, starting empty", "dir", dir, "error", err)
		return record.Record{}
	}

	s.logger.Warn("malformed sidecar, history reset", "dir", dir, "error", err)

	if s.quarantine {
		suffix := s.now().Format("20060102-150405")
		if qErr := record.Quarantine(dir, suffix); qErr != nil {
			s.logger.Warn("sidecar quarantine failed", "dir", dir, "error", qErr)
		}
	}

	return rec
}

// storeRecord persists a record, counting failures. A replica whose sidecar
// cannot be written must not be trusted further, so the error propagates.
func (s *Syncer) storeRecord(dir string, rec record.Record) error {
	if err := record.Store(dir, rec); err != nil {
		s.summary.Errors++
		return err
	}

	return nil
}

// reconcileCommon applies the per-file decision procedure to every filename
// in both records, then persists both sides.
func (s *Syncer) reconcileCommon(ctx context.Context, r1, r2 *Replica) error {
	for _, name := range r1.Record.Names() {
		if err := ctx.Err(); err != nil {
			return err
		}

		if _, ok := r2.Record[name]; !ok {
			continue
		}

		if err := s.reconciler.ReconcileFile(name, r1, r2); err != nil {
			s.summary.Errors++
			s.logger.Warn("reconcile failed, continuing", "name", name, "error", err)
		}
	}

	return s.storeBoth(r1, r2)
}

// reviveDeleted copies back files that exist in one directory while the
// other side's record still carries a tombstone head for them. The side-1
// listing is checked first; a revival updates both records, so the mirror
// check sees live heads and does not fire twice.
func (s *Syncer) reviveDeleted(ctx context.Context, r1, r2 *Replica) error {
	pairs := []struct{ src, dst *Replica }{{r1, r2}, {r2, r1}}

	for _, p := range pairs {
		listing, err := s.scanner.List(p.src.Dir)
		if err != nil {
			return err
		}

		for _, name := range listing.Files {
			if err := ctx.Err(); err != nil {
				return err
			}

			if !p.dst.Record[name].Tombstoned() {
				continue
			}

			if err := s.reconciler.Revive(name, p.src, p.dst); err != nil {
				s.summary.Errors++
				s.logger.Warn("revival failed, continuing", "name", name, "error", err)
			}
		}
	}

	return s.storeBoth(r1, r2)
}

// detectDeletions finds filenames recorded on one side but no longer on its
// disk while still present on the other side: the file was deleted locally
// since the last run. Both records get a tombstone head and the surviving
// copy is removed.
func (s *Syncer) detectDeletions(ctx context.Context, r1, r2 *Replica) error {
	list1, err := s.scanner.List(r1.Dir)
	if err != nil {
		return err
	}

	list2, err := s.scanner.List(r2.Dir)
	if err != nil {
		return err
	}

	if err := s.propagateDeletions(ctx, r1, list1, r2, list2); err != nil {
		return err
	}

	if err := s.propagateDeletions(ctx, r2, list2, r1, list1); err != nil {
		return err
	}

	return s.storeBoth(r1, r2)
}

// propagateDeletions handles one direction of deletion detection: keys in
// deleted.Record absent from deleted's listing but present in survivor's
// listing.
func (s *Syncer) propagateDeletions(
	ctx context.Context, deleted *Replica, deletedList *Listing, survivor *Replica, survivorList *Listing,
) error {
	for _, name := range deleted.Record.Names() {
		if err := ctx.Err(); err != nil {
			return err
		}

		if deletedList.HasFile(name) || !survivorList.HasFile(name) {
			continue
		}

		// Already tombstoned heads stay untouched: tombstones are monotone.
		if deleted.Record[name].Tombstoned() {
			continue
		}

		entry := record.NewEntry(record.StampOf(s.now()), record.Tombstone())
		deleted.Record[name] = deleted.Record[name].Prepend(entry)
		survivor.Record[name] = survivor.Record[name].Prepend(entry)

		if err := os.Remove(survivor.Path(name)); err != nil {
			s.summary.Errors++
			s.logger.Warn("cannot remove deleted file's counterpart, continuing",
				"name", name, "dir", survivor.Dir, "error", err)
			continue
		}

		s.journal.RecordAction(ActionTombstone, deleted.Path(name), "deleted since last sync")
		s.journal.RecordAction(ActionDelete, survivor.Path(name), "deletion propagated")
		s.summary.Tombstones++
		s.summary.Deletes++
		s.logger.Info("deletion propagated",
			"name", name, "deleted_on", deleted.Dir, "removed_from", survivor.Dir)
	}

	return nil
}

// recurse synchronizes subdirectories present on both sides. A failing
// subtree is logged and skipped so the remaining pairs still converge.
func (s *Syncer) recurse(ctx context.Context, r1, r2 *Replica) error {
	list1, err := s.scanner.List(r1.Dir)
	if err != nil {
		return err
	}

	list2, err := s.scanner.List(r2.Dir)
	if err != nil {
		return err
	}

	for _, name := range list1.Dirs {
		if err := ctx.Err(); err != nil {
			return err
		}

		if !list2.HasDir(name) {
			continue
		}

		if err := s.syncPair(ctx, r1.Path(name), r2.Path(name)); err != nil {
			s.summary.Errors++
			s.logger.Warn("subdirectory sync failed, continuing",
				"name", name, "error", err)
		}
	}

	return nil
}

// propagateOneSided copies files and whole subtrees that exist on only one
// side, carrying their histories across. Subtree copies include sidecars,
// so the copied tree arrives with its history; files additionally get their
// history cloned into the destination record.
func (s *Syncer) propagateOneSided(ctx context.Context, r1, r2 *Replica) error {
	list1, err := s.scanner.List(r1.Dir)
	if err != nil {
		return err
	}

	list2, err := s.scanner.List(r2.Dir)
	if err != nil {
		return err
	}

	if err := s.propagateSide(ctx, r1, list1, r2, list2); err != nil {
		return err
	}

	if err := s.propagateSide(ctx, r2, list2, r1, list1); err != nil {
		return err
	}

	return s.storeBoth(r1, r2)
}

// propagateSide copies src-only files and subtrees to dst.
func (s *Syncer) propagateSide(
	ctx context.Context, src *Replica, srcList *Listing, dst *Replica, dstList *Listing,
) error {
	for _, name := range srcList.Files {
		if err := ctx.Err(); err != nil {
			return err
		}

		if dstList.HasFile(name) {
			continue
		}

		if err := copyFile(src.Path(name), dst.Path(name)); err != nil {
			s.summary.Errors++
			s.logger.Warn("one-sided copy failed, continuing", "name", name, "error", err)
			continue
		}

		if h, ok := src.Record[name]; ok {
			dst.Record[name] = h.Clone()
		}

		s.journal.RecordAction(ActionCopy, dst.Path(name), "from "+src.Path(name))
		s.summary.Copies++
		s.logger.Info("one-sided file propagated",
			"name", name, "from", src.Dir, "to", dst.Dir)
	}

	for _, name := range srcList.Dirs {
		if err := ctx.Err(); err != nil {
			return err
		}

		if dstList.HasDir(name) {
			continue
		}

		if err := copyTree(src.Path(name), dst.Path(name)); err != nil {
			s.summary.Errors++
			s.logger.Warn("subtree copy failed, continuing", "name", name, "error", err)
			continue
		}

		s.journal.RecordAction(ActionCopy, dst.Path(name), "subtree from "+src.Path(name))
		s.summary.Copies++
		s.logger.Info("one-sided subtree propagated",
			"name", name, "from", src.Dir, "to", dst.Dir)
	}

	return nil
}

// storeBoth persists both replicas' records, reporting the first failure.
func (s *Syncer) storeBoth(r1, r2 *Replica) error {
	if err := s.storeRecord(r1.Dir, r1.Record); err != nil {
		return fmt.Errorf("persisting %s: %w", r1.Dir, err)
	}

	if err := s.storeRecord(r2.Dir, r2.Record); err != nil {
		return fmt.Errorf("persisting %s: %w", r2.Dir, err)
	}

	return nil
}
