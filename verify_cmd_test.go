package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerify_InSyncAfterSync(t *testing.T) {
	dirA, dirB := t.TempDir(), t.TempDir()
	writeTestFile(t, filepath.Join(dirA, "a.txt"), "hello\n")
	writeTestFile(t, filepath.Join(dirB, "b.txt"), "world\n")

	_, _, err := runCmd(t, dirA, dirB)
	require.NoError(t, err)

	stdout, _, err := runCmd(t, "verify", dirA, dirB)
	require.NoError(t, err)
	assert.Contains(t, stdout, "in sync")
}

func TestVerify_ReportsDifferences(t *testing.T) {
	dirA, dirB := t.TempDir(), t.TempDir()
	writeTestFile(t, filepath.Join(dirA, "only-a.txt"), "a\n")
	writeTestFile(t, filepath.Join(dirA, "common.txt"), "same\n")
	writeTestFile(t, filepath.Join(dirB, "common.txt"), "different\n")
	require.NoError(t, os.Mkdir(filepath.Join(dirB, "only-dir"), 0o755))

	stdout, _, err := runCmd(t, "verify", dirA, dirB)
	assert.ErrorIs(t, err, errVerifyMismatch)
	assert.Contains(t, stdout, "only in "+dirA+": only-a.txt")
	assert.Contains(t, stdout, "differs: common.txt")
	assert.Contains(t, stdout, "only in "+dirB+": only-dir/")
	assert.Contains(t, stdout, "3 differences")
}

func TestVerify_WrongArgs(t *testing.T) {
	_, stderr, err := runCmd(t, "verify", "just-one")
	assert.ErrorIs(t, err, errUsage)
	assert.Contains(t, stderr, "Please provide a valid input")
}
