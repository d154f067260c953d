package record

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMissingHistory is returned when a filename is expected to have history
// but its entry list is absent or empty. Callers recover by rebuilding a
// fresh single-entry history from current filesystem state.
var ErrMissingHistory = errors.New("missing history entry")

// Entry is one observed state of a file: the mtime at which the state was
// seen and the content digest (or tombstone). Entries are immutable once
// prepended to a history.
type Entry struct {
	Stamp  Stamp
	Digest Digest
}

// NewEntry pairs a stamp with a digest.
func NewEntry(s Stamp, d Digest) Entry {
	return Entry{Stamp: s, Digest: d}
}

// ObserveFile builds an entry from the file's current mtime and content.
func ObserveFile(path string) (Entry, error) {
	stamp, err := StampFromFile(path)
	if err != nil {
		return Entry{}, err
	}

	digest, err := HashFile(path)
	if err != nil {
		return Entry{}, err
	}

	return Entry{Stamp: stamp, Digest: digest}, nil
}

// MarshalJSON encodes the entry as a two-element array [timestamp, digest],
// the sidecar wire form.
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{e.Stamp.String(), e.Digest.String()})
}

// UnmarshalJSON decodes the [timestamp, digest] pair.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var pair [2]string
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("history entry: %w", err)
	}

	stamp, err := ParseStamp(pair[0])
	if err != nil {
		return fmt.Errorf("history entry: %w", err)
	}

	digest, err := ParseDigest(pair[1])
	if err != nil {
		return fmt.Errorf("history entry: %w", err)
	}

	e.Stamp = stamp
	e.Digest = digest

	return nil
}

// History is the ordered list of observed states for one filename, newest
// first. A well-formed history is non-empty; the head reflects the most
// recently observed state, including tombstones.
type History []Entry

// Head returns the newest entry, or ErrMissingHistory if the history is
// empty.
func (h History) Head() (Entry, error) {
	if len(h) == 0 {
		return Entry{}, ErrMissingHistory
	}

	return h[0], nil
}

// Prepend returns a new history with e as the head. The receiver is not
// modified.
func (h History) Prepend(e Entry) History {
	out := make(History, 0, len(h)+1)
	out = append(out, e)
	out = append(out, h...)

	return out
}

// IndexOf returns the position of the first entry whose digest equals d,
// or -1 if none does.
func (h History) IndexOf(d Digest) int {
	for i, e := range h {
		if e.Digest.Equal(d) {
			return i
		}
	}

	return -1
}

// SharesDigest reports whether any digest appears in both histories.
// Tombstones are states like any other and participate in the comparison.
func (h History) SharesDigest(other History) bool {
	for _, e := range h {
		if other.IndexOf(e.Digest) >= 0 {
			return true
		}
	}

	return false
}

// Tombstoned reports whether the head entry is a tombstone. An empty
// history is not tombstoned.
func (h History) Tombstoned() bool {
	return len(h) > 0 && h[0].Digest.IsTombstone()
}

// Clone returns an independent copy of the history.
func (h History) Clone() History {
	out := make(History, len(h))
	copy(out, h)

	return out
}
