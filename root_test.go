package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCmd executes the CLI with args in an isolated environment and returns
// stdout, stderr, and the execution error.
func runCmd(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	// Isolate config and journal from the real user environment.
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(t.TempDir(), "config"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(t.TempDir(), "cache"))
	t.Setenv("DIRSYNC_JOURNAL", "0")

	var stdout, stderr bytes.Buffer

	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()

	return stdout.String(), stderr.String(), err
}

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()

	mtime := time.Date(2024, 3, 1, 12, 0, 0, 0, time.Local)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestRoot_WrongArgumentCount(t *testing.T) {
	for _, args := range [][]string{{}, {"one"}, {"one", "two", "three"}} {
		_, stderr, err := runCmd(t, args...)
		assert.ErrorIs(t, err, errUsage)
		assert.Contains(t, stderr, "Please provide a valid input")
	}
}

func TestRoot_BothDirectoriesMissing(t *testing.T) {
	base := t.TempDir()

	_, stderr, err := runCmd(t, filepath.Join(base, "a"), filepath.Join(base, "b"))
	assert.ErrorIs(t, err, errUsage)
	assert.Contains(t, stderr, "Please make sure at least one directory exists")
}

func TestRoot_OneMissingDirectoryCreated(t *testing.T) {
	base := t.TempDir()
	dirA := filepath.Join(base, "a")
	dirB := filepath.Join(base, "b")
	require.NoError(t, os.Mkdir(dirA, 0o755))
	writeTestFile(t, filepath.Join(dirA, "f.txt"), "hello\n")

	_, _, err := runCmd(t, dirA, dirB)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dirB, "f.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))
}

func TestRoot_SyncPairEndToEnd(t *testing.T) {
	dirA, dirB := t.TempDir(), t.TempDir()
	writeTestFile(t, filepath.Join(dirA, "a.txt"), "hello\n")
	writeTestFile(t, filepath.Join(dirB, "b.txt"), "world\n")

	stdout, _, err := runCmd(t, dirA, dirB)
	require.NoError(t, err)
	assert.Contains(t, stdout, "copied")

	for _, dir := range []string{dirA, dirB} {
		for _, name := range []string{"a.txt", "b.txt"} {
			_, statErr := os.Stat(filepath.Join(dir, name))
			assert.NoError(t, statErr, "%s missing in %s", name, dir)
		}
	}

	// Second run reports no work.
	stdout, _, err = runCmd(t, dirA, dirB)
	require.NoError(t, err)
	assert.Contains(t, stdout, "already in sync")
}

func TestHistory_ShowsSidecarEntries(t *testing.T) {
	dirA, dirB := t.TempDir(), t.TempDir()
	writeTestFile(t, filepath.Join(dirA, "a.txt"), "hello\n")

	_, _, err := runCmd(t, dirA, dirB)
	require.NoError(t, err)

	stdout, _, err := runCmd(t, "history", dirA, "a.txt")
	require.NoError(t, err)
	assert.Contains(t, stdout, "a.txt")
	assert.Contains(t, stdout, "2024-03-01 12:00:00")
}

func TestHistory_MissingArgs(t *testing.T) {
	_, stderr, err := runCmd(t, "history")
	assert.ErrorIs(t, err, errUsage)
	assert.Contains(t, stderr, "Please provide a valid input")
}

func TestHistory_UnknownFile(t *testing.T) {
	dir := t.TempDir()

	_, _, err := runCmd(t, "history", dir, "ghost.txt")
	assert.Error(t, err)
}
