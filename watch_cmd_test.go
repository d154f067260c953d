package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelevantEvent(t *testing.T) {
	cases := []struct {
		name string
		ev   fsnotify.Event
		want bool
	}{
		{"visible write", fsnotify.Event{Name: "/a/f.txt", Op: fsnotify.Write}, true},
		{"visible create", fsnotify.Event{Name: "/a/f.txt", Op: fsnotify.Create}, true},
		{"visible remove", fsnotify.Event{Name: "/a/f.txt", Op: fsnotify.Remove}, true},
		{"sidecar write", fsnotify.Event{Name: "/a/.sync", Op: fsnotify.Write}, false},
		{"hidden file", fsnotify.Event{Name: "/a/.swp", Op: fsnotify.Create}, false},
		{"attribute only", fsnotify.Event{Name: "/a/f.txt", Op: fsnotify.Chmod}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, relevantEvent(tc.ev))
		})
	}
}

func TestAddWatchesRecursive(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a", "b"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".hidden", "c"), 0o755))

	watcher, err := fsnotify.NewWatcher()
	require.NoError(t, err)
	defer watcher.Close()

	require.NoError(t, addWatchesRecursive(watcher, root))

	watched := watcher.WatchList()
	assert.Contains(t, watched, root)
	assert.Contains(t, watched, filepath.Join(root, "a"))
	assert.Contains(t, watched, filepath.Join(root, "a", "b"))
	assert.NotContains(t, watched, filepath.Join(root, ".hidden"))
	assert.NotContains(t, watched, filepath.Join(root, ".hidden", "c"))
}
