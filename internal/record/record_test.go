package record

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingSidecar(t *testing.T) {
	t.Parallel()

	rec, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, rec)
}

func TestLoad_EmptySidecar(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, SidecarName), nil, 0o644))

	rec, err := Load(dir)
	require.NoError(t, err)
	assert.Empty(t, rec)
}

func TestLoad_Malformed(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, SidecarName), []byte("{not json"), 0o644))

	rec, err := Load(dir)
	assert.ErrorIs(t, err, ErrMalformed)
	assert.Empty(t, rec, "malformed sidecar still yields a usable empty record")
}

func TestStoreLoad_RoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	rec := Record{
		"notes.txt": History{
			histEntry(t, "2024-03-01 12:05:44 +0100", emptySHA256),
			histEntry(t, "2024-02-28 09:11:02 +0100", "deleted"),
		},
		"data.bin": History{
			histEntry(t, "2024-01-01 00:00:00 +0000", strings.Repeat("a", 64)),
		},
	}

	require.NoError(t, Store(dir, rec))

	back, err := Load(dir)
	require.NoError(t, err)
	require.Len(t, back, 2)

	notes := back["notes.txt"]
	require.Len(t, notes, 2)
	assert.True(t, notes[0].Digest.Equal(mustDigest(emptySHA256)))
	assert.True(t, notes[1].Digest.IsTombstone())
	assert.Equal(t, "2024-03-01 12:05:44 +0100", notes[0].Stamp.String())
}

func TestStore_Truncates(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	big := Record{"a.txt": History{histEntry(t, "2024-03-01 12:05:44 +0100", emptySHA256)}}
	require.NoError(t, Store(dir, big))

	require.NoError(t, Store(dir, Record{}))

	back, err := Load(dir)
	require.NoError(t, err)
	assert.Empty(t, back)
}

func TestQuarantine(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	sidecar := filepath.Join(dir, SidecarName)
	require.NoError(t, os.WriteFile(sidecar, []byte("{broken"), 0o644))

	require.NoError(t, Quarantine(dir, "20240301-120544"))

	_, err := os.Stat(sidecar)
	assert.ErrorIs(t, err, os.ErrNotExist)

	moved, err := os.ReadFile(sidecar + ".corrupt-20240301-120544")
	require.NoError(t, err)
	assert.Equal(t, "{broken", string(moved))
}

func TestRecord_Names(t *testing.T) {
	t.Parallel()

	rec := Record{
		"zeta": History{},
		"alfa": History{},
		"mike": History{},
	}

	assert.Equal(t, []string{"alfa", "mike", "zeta"}, rec.Names())
}

func TestRecord_Head(t *testing.T) {
	t.Parallel()

	rec := Record{
		"present": History{histEntry(t, "2024-03-01 12:05:44 +0100", emptySHA256)},
		"empty":   History{},
	}

	head, err := rec.Head("present")
	require.NoError(t, err)
	assert.True(t, head.Digest.Equal(mustDigest(emptySHA256)))

	_, err = rec.Head("empty")
	assert.ErrorIs(t, err, ErrMissingHistory)

	_, err = rec.Head("absent")
	assert.ErrorIs(t, err, ErrMissingHistory)
}
