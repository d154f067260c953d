package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// SidecarName is the per-directory history file. It begins with a dot so
// the directory scanner never treats it as synchronized content.
const SidecarName = ".sync"

// sidecarMode is the permission for newly written sidecars.
const sidecarMode = 0o644

// ErrMalformed is returned (wrapped) by Load when a sidecar exists but
// cannot be decoded. Load still returns a usable empty record; the caller
// decides whether to quarantine the broken file or let the next refresh
// rebuild the history from the directory listing.
var ErrMalformed = errors.New("malformed sidecar")

// Record maps filenames (basenames, no path separators) to their histories.
// One record per directory; the sidecar in that directory is its durable
// form. A missing sidecar is equivalent to an empty record.
type Record map[string]History

// Load reads the sidecar from dir. A missing sidecar yields an empty record
// and no error. A sidecar that cannot be decoded yields an empty record and
// an error wrapping ErrMalformed.
func Load(dir string) (Record, error) {
	path := filepath.Join(dir, SidecarName)

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Record{}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("reading sidecar %s: %w", path, err)
	}

	// An empty file carries no history but is not malformed.
	if len(data) == 0 {
		return Record{}, nil
	}

	rec := Record{}
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("decoding sidecar %s: %w: %w", path, ErrMalformed, err)
	}

	return rec, nil
}

// Store writes the record to dir's sidecar, truncating any previous
// contents. Output is indented for human inspection; the exact whitespace
// is not part of the format.
func Store(dir string, rec Record) error {
	path := filepath.Join(dir, SidecarName)

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding sidecar for %s: %w", dir, err)
	}

	if err := os.WriteFile(path, data, sidecarMode); err != nil {
		return fmt.Errorf("writing sidecar %s: %w", path, err)
	}

	return nil
}

// Quarantine renames a broken sidecar aside so its bytes survive for
// inspection, using the given suffix (typically a timestamp). Used when the
// quarantine policy is enabled instead of silently discarding history.
func Quarantine(dir, suffix string) error {
	path := filepath.Join(dir, SidecarName)
	aside := path + ".corrupt-" + suffix

	if err := os.Rename(path, aside); err != nil {
		return fmt.Errorf("quarantining sidecar %s: %w", path, err)
	}

	return nil
}

// Names returns the record's filenames in sorted order, for deterministic
// iteration.
func (r Record) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Head returns the head entry for name. Absent names and empty histories
// both return ErrMissingHistory.
func (r Record) Head(name string) (Entry, error) {
	h, ok := r[name]
	if !ok {
		return Entry{}, ErrMissingHistory
	}

	return h.Head()
}
