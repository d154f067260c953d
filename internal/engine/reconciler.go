package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/nilaysetiya/dirsync-go/internal/record"
)

// Reconciler is the per-file decision procedure. Given one filename known
// to both replicas, it compares the two history heads and the on-disk files
// and applies whatever filesystem and record mutations bring the sides into
// agreement: timestamp alignment, adoption of newer content, or conflict
// resolution by latest modification time.
type Reconciler struct {
	journal Recorder
	logger  *slog.Logger
	summary *Summary
}

// NewReconciler creates a Reconciler that accumulates counts into summary.
func NewReconciler(journal Recorder, summary *Summary, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = discardLogger()
	}

	if journal == nil {
		journal = nopRecorder{}
	}

	return &Reconciler{journal: journal, logger: logger, summary: summary}
}

// ReconcileFile reconciles one filename present in both replicas' records.
// Record mutations are applied to the replicas' in-memory records; the
// caller persists them.
func (r *Reconciler) ReconcileFile(name string, r1, r2 *Replica) error {
	h1, ok1 := r.usableHistory(name, r1)
	h2, ok2 := r.usableHistory(name, r2)

	if !ok1 || !ok2 {
		// One side has no usable history and no file to rebuild it from.
		// The refresh on the next run re-observes whatever exists.
		return nil
	}

	head1, head2 := h1[0], h2[0]
	d1, d2 := head1.Digest, head2.Digest
	t1, t2 := head1.Stamp, head2.Stamp

	switch {
	case d1.IsTombstone() && d2.IsTombstone():
		// Both sides agree the file is gone.
		return nil

	case d1.Equal(d2) && !t1.Equal(t2):
		return r.alignTimestamps(name, r1, r2)

	case d1.Equal(d2):
		// Identical content and timestamp: already in sync.
		return nil
	}

	// Heads differ. A side whose current digest appears deeper in the other
	// side's history is stale: the other side has seen this content and
	// moved past it. Each direction is checked against live state, so after
	// one direction adopts, the other finds its digest at the head and
	// stops.
	adopted := false

	if h2.IndexOf(d1) > 0 {
		if err := r.adoptNewer(name, r2, r1); err != nil {
			return err
		}

		adopted = true
	}

	if r1.Record[name].IndexOf(d2) > 0 {
		if err := r.adoptNewer(name, r1, r2); err != nil {
			return err
		}

		adopted = true
	}

	if adopted {
		return nil
	}

	// Neither side's current content is known to the other: both were
	// modified independently since they last agreed. Resolve by latest
	// modification time.
	return r.resolveConflict(name, r1, r2)
}

// usableHistory returns the history for name, rebuilding a fresh
// single-entry history from the on-disk file when the recorded one is
// absent or empty. The second return is false when no usable history could
// be produced.
func (r *Reconciler) usableHistory(name string, rep *Replica) (record.History, bool) {
	h := rep.Record[name]
	if len(h) > 0 {
		return h, true
	}

	entry, err := record.ObserveFile(rep.Path(name))
	if err != nil {
		r.logger.Warn("reconciler: no history and no readable file",
			"dir", rep.Dir, "name", name, "error", err)
		return nil, false
	}

	rep.Record[name] = record.History{entry}
	r.logger.Debug("reconciler: rebuilt missing history", "dir", rep.Dir, "name", name)

	return rep.Record[name], true
}

// alignTimestamps handles two replicas holding the same content under
// different mtimes. The earlier instant is canonical: the later side's head
// is rewritten to it and the file's mtime restored, so both files carry the
// original modification time.
func (r *Reconciler) alignTimestamps(name string, r1, r2 *Replica) error {
	head1, _ := r1.Record[name].Head()
	head2, _ := r2.Record[name].Head()

	earlier, later := head1.Stamp, r2
	if head2.Stamp.Before(head1.Stamp) {
		earlier, later = head2.Stamp, r1
	}

	h := later.Record[name].Clone()
	h[0] = record.NewEntry(earlier, h[0].Digest)
	later.Record[name] = h

	if err := record.RestoreMtime(later.Path(name), earlier); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// The file is gone on the later side; the record correction alone
			// is enough. Deletion handling will catch up with the file itself.
			return nil
		}

		return fmt.Errorf("aligning timestamps for %s: %w", name, err)
	}

	r.journal.RecordAction(ActionRestoreMtime, later.Path(name), earlier.String())
	r.summary.MtimeRestores++
	r.logger.Debug("reconciler: timestamps aligned",
		"name", name, "dir", later.Dir, "canonical", earlier.String())

	return nil
}

// adoptNewer makes stale adopt from's current file and head entry. from's
// history already contains stale's current digest below the head, proving
// from has advanced past it.
func (r *Reconciler) adoptNewer(name string, from, stale *Replica) error {
	head, err := from.Record[name].Head()
	if err != nil {
		return err
	}

	stale.Record[name] = stale.Record[name].Prepend(head)

	if err := copyFile(from.Path(name), stale.Path(name)); err != nil {
		return fmt.Errorf("adopting %s from %s: %w", name, from.Dir, err)
	}

	r.journal.RecordAction(ActionCopy, stale.Path(name), "from "+from.Path(name))
	r.summary.Copies++
	r.logger.Info("reconciler: stale side updated",
		"name", name, "from", from.Dir, "to", stale.Dir, "digest", head.Digest.Short())

	return nil
}

// resolveConflict handles independent modification on both sides. The side
// with the later head timestamp wins: its head entry is prepended onto the
// loser and its file copied across. Equal timestamps leave both sides
// untouched.
func (r *Reconciler) resolveConflict(name string, r1, r2 *Replica) error {
	head1, _ := r1.Record[name].Head()
	head2, _ := r2.Record[name].Head()

	if head1.Stamp.Equal(head2.Stamp) {
		r.logger.Debug("reconciler: conflicting histories with equal timestamps, leaving both",
			"name", name)
		return nil
	}

	winner, loser := r1, r2
	if head1.Stamp.Before(head2.Stamp) {
		winner, loser = r2, r1
	}

	unrelated := !r1.Record[name].SharesDigest(r2.Record[name])

	head, err := winner.Record[name].Head()
	if err != nil {
		return err
	}

	loser.Record[name] = loser.Record[name].Prepend(head)

	if err := copyFile(winner.Path(name), loser.Path(name)); err != nil {
		return fmt.Errorf("resolving conflict for %s: %w", name, err)
	}

	detail := "kept " + winner.Path(name) + " (" + head.Stamp.String() + ")"
	if unrelated {
		detail += ", histories never overlapped"
	}

	r.journal.RecordAction(ActionConflict, loser.Path(name), detail)
	r.summary.Conflicts++
	r.summary.Copies++
	r.logger.Info("reconciler: conflict resolved by latest modification",
		"name", name, "winner", winner.Dir, "loser", loser.Dir, "digest", head.Digest.Short())

	return nil
}

// Revive copies name from src to dst after dst tombstoned it, then records
// a fresh observation on both sides so the next run sees the file as live
// everywhere.
func (r *Reconciler) Revive(name string, src, dst *Replica) error {
	if err := copyFile(src.Path(name), dst.Path(name)); err != nil {
		return fmt.Errorf("reviving %s into %s: %w", name, dst.Dir, err)
	}

	entry, err := record.ObserveFile(dst.Path(name))
	if err != nil {
		return fmt.Errorf("observing revived %s: %w", name, err)
	}

	src.Record[name] = src.Record[name].Prepend(entry)
	dst.Record[name] = dst.Record[name].Prepend(entry)

	r.journal.RecordAction(ActionRevive, dst.Path(name), "from "+src.Path(name))
	r.summary.Revivals++
	r.summary.Copies++
	r.logger.Info("reconciler: deleted file revived",
		"name", name, "from", src.Dir, "to", dst.Dir, "digest", entry.Digest.Short())

	return nil
}
