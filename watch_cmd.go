package main

import (
	"context"
	"fmt"
	"io/fs"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// newWatchCmd builds the watch command: continuous synchronization driven
// by filesystem notifications.
func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <dir1> <dir2>",
		Short: "Continuously synchronize two directories",
		Long: "watch performs an initial synchronization, then watches both trees\n" +
			"and re-synchronizes after changes settle. Stop with Ctrl-C.",
		Args: cobra.ArbitraryArgs,
		RunE: runWatch,
	}
}

// runWatch performs the initial pass, then loops on debounced filesystem
// events until interrupted.
func runWatch(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())

	dir1, dir2, err := validateDirs(cmd, args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := watchSyncPass(ctx, cmd, cc, dir1, dir2); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	for _, dir := range []string{dir1, dir2} {
		if err := addWatchesRecursive(watcher, dir); err != nil {
			return err
		}
	}

	debounce := time.Duration(cc.Cfg.WatchDebounceMS) * time.Millisecond

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return watchLoop(ctx, cmd, cc, watcher, debounce, dir1, dir2)
	})

	return g.Wait()
}

// watchLoop consumes watcher events, re-syncing after each quiet period.
// A pass's own writes re-trigger at most one follow-up pass, which finds
// nothing to do; sidecar writes are filtered out entirely.
func watchLoop(
	ctx context.Context, cmd *cobra.Command, cc *CLIContext,
	watcher *fsnotify.Watcher, debounce time.Duration, dir1, dir2 string,
) error {
	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if !relevantEvent(ev) {
				continue
			}

			cc.Logger.Debug("filesystem event", "op", ev.Op.String(), "path", ev.Name)
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			cc.Logger.Warn("watcher error", "error", err)

		case <-timer.C:
			if err := watchSyncPass(ctx, cmd, cc, dir1, dir2); err != nil {
				return err
			}

			// Pick up watches for directories created since the last pass.
			for _, dir := range []string{dir1, dir2} {
				if err := addWatchesRecursive(watcher, dir); err != nil {
					cc.Logger.Warn("cannot refresh watches", "dir", dir, "error", err)
				}
			}
		}
	}
}

// watchSyncPass runs one synchronization and prints its summary.
func watchSyncPass(ctx context.Context, cmd *cobra.Command, cc *CLIContext, dir1, dir2 string) error {
	if ctx.Err() != nil {
		return nil
	}

	summary, err := syncOnce(ctx, cc, dir1, dir2)
	if err != nil {
		if ctx.Err() != nil {
			return nil // interrupted mid-pass; re-running later recovers
		}

		return err
	}

	if !flagQuiet && summary.Total() > 0 {
		printSummary(cmd.OutOrStdout(), summary)
	}

	return nil
}

// relevantEvent filters out hidden files (including sidecar writes) and
// attribute-only changes, which the engine itself produces while restoring
// mtimes.
func relevantEvent(ev fsnotify.Event) bool {
	if strings.HasPrefix(filepath.Base(ev.Name), ".") {
		return false
	}

	return ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0
}

// addWatchesRecursive registers root and every visible subdirectory.
// Already-watched directories are re-added harmlessly.
func addWatchesRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}

		if !d.IsDir() {
			return nil
		}

		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}

		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}

		return nil
	})
}
