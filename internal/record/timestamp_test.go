package record

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStamp_RoundTrip(t *testing.T) {
	t.Parallel()

	orig := StampOf(time.Date(2024, 3, 1, 12, 5, 44, 0, time.FixedZone("", 3600)))
	assert.Equal(t, "2024-03-01 12:05:44 +0100", orig.String())

	parsed, err := ParseStamp(orig.String())
	require.NoError(t, err)
	assert.True(t, parsed.Equal(orig))
}

func TestStampOf_TruncatesSubsecond(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 6, 15, 8, 30, 2, 987654321, time.UTC)
	s := StampOf(base)
	assert.Equal(t, time.Date(2024, 6, 15, 8, 30, 2, 0, time.UTC), s.Time())
}

func TestParseStamp_Invalid(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"", "not a time", "2024-03-01T12:05:44Z", "2024-03-01 12:05:44"} {
		_, err := ParseStamp(input)
		assert.Error(t, err, "input %q", input)
	}
}

func TestStamp_EqualAcrossZones(t *testing.T) {
	t.Parallel()

	// The same instant rendered in two zones compares equal.
	utc, err := ParseStamp("2024-03-01 11:05:44 +0000")
	require.NoError(t, err)

	cet, err := ParseStamp("2024-03-01 12:05:44 +0100")
	require.NoError(t, err)

	assert.True(t, utc.Equal(cet))
	assert.NotEqual(t, utc.String(), cet.String())
}

func TestStamp_Before(t *testing.T) {
	t.Parallel()

	early, err := ParseStamp("2024-03-01 10:00:00 +0000")
	require.NoError(t, err)

	late, err := ParseStamp("2024-03-01 10:00:01 +0000")
	require.NoError(t, err)

	assert.True(t, early.Before(late))
	assert.False(t, late.Before(early))
	assert.False(t, early.Before(early))
}

func TestStampFromFile_And_Restore(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	want := time.Date(2023, 11, 20, 14, 45, 30, 0, time.Local)
	require.NoError(t, os.Chtimes(path, want, want))

	s, err := StampFromFile(path)
	require.NoError(t, err)
	assert.True(t, s.Time().Equal(want))

	// Restoring from the rendered form is idempotent at seconds precision.
	parsed, err := ParseStamp(s.String())
	require.NoError(t, err)
	require.NoError(t, RestoreMtime(path, parsed))

	again, err := StampFromFile(path)
	require.NoError(t, err)
	assert.True(t, again.Equal(s))
}

func TestStampFromFile_Missing(t *testing.T) {
	t.Parallel()

	_, err := StampFromFile(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
