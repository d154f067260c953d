package record

import (
	"fmt"
	"os"
	"time"
)

// stampLayout is the sidecar timestamp format: seconds precision with a
// signed four-digit offset from UTC, e.g. "2024-03-01 12:05:44 +0100".
const stampLayout = "2006-01-02 15:04:05 -0700"

// Stamp is a file modification time at seconds precision, carrying the zone
// offset it was observed in. The offset is informational: equality and
// ordering compare the absolute instant, so the same instant rendered in two
// zones is one Stamp for comparison purposes.
type Stamp struct {
	t time.Time
}

// StampOf truncates a time to whole seconds and wraps it. The time keeps
// its location so rendering preserves the offset.
func StampOf(t time.Time) Stamp {
	return Stamp{t: t.Truncate(time.Second)}
}

// StampFromFile reads the mtime of the file at path, truncated to seconds,
// in the local zone.
func StampFromFile(path string) (Stamp, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Stamp{}, fmt.Errorf("stat for timestamp: %w", err)
	}

	return StampOf(info.ModTime().Local()), nil
}

// ParseStamp inverts the sidecar format into an absolute instant.
func ParseStamp(s string) (Stamp, error) {
	t, err := time.Parse(stampLayout, s)
	if err != nil {
		return Stamp{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}

	return Stamp{t: t}, nil
}

// RestoreMtime sets the access and modification times of the file at path
// to the stamp's instant.
func RestoreMtime(path string, s Stamp) error {
	if err := os.Chtimes(path, s.t, s.t); err != nil {
		return fmt.Errorf("restoring mtime of %s: %w", path, err)
	}

	return nil
}

// IsZero reports whether the stamp is unset.
func (s Stamp) IsZero() bool {
	return s.t.IsZero()
}

// Time returns the underlying instant.
func (s Stamp) Time() time.Time {
	return s.t
}

// Equal compares absolute instants, ignoring the textual zone.
func (s Stamp) Equal(other Stamp) bool {
	return s.t.Equal(other.t)
}

// Before reports whether s is strictly earlier than other.
func (s Stamp) Before(other Stamp) bool {
	return s.t.Before(other.t)
}

// String renders the sidecar form in the stamp's own zone.
func (s Stamp) String() string {
	return s.t.Format(stampLayout)
}
