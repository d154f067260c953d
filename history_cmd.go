package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nilaysetiya/dirsync-go/internal/config"
	"github.com/nilaysetiya/dirsync-go/internal/journal"
	"github.com/nilaysetiya/dirsync-go/internal/record"
)

// historyRunsLimit bounds --runs output.
const historyRunsLimit = 20

// newHistoryCmd builds the history command: inspect a directory's sidecar,
// or past runs from the journal.
func newHistoryCmd() *cobra.Command {
	var showRuns bool

	cmd := &cobra.Command{
		Use:   "history <dir> [file]",
		Short: "Show the recorded sync history of a directory or file",
		Long: "history prints the per-file version history from a directory's .sync\n" +
			"sidecar, newest first. With --runs it instead lists recent sync runs\n" +
			"from the audit journal.",
		Args: cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if showRuns {
				return runHistoryRuns(cmd)
			}

			return runHistorySidecar(cmd, args)
		},
	}

	cmd.Flags().BoolVar(&showRuns, "runs", false, "list recent sync runs from the journal")

	return cmd
}

// runHistorySidecar prints histories from a directory's sidecar.
func runHistorySidecar(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), msgInvalidInput)
		return errUsage
	}

	dir := args[0]

	rec, err := record.Load(dir)
	if err != nil {
		return fmt.Errorf("loading history for %s: %w", dir, err)
	}

	if len(args) == 2 {
		name := args[1]

		h, ok := rec[name]
		if !ok {
			return fmt.Errorf("no history for %s in %s", name, dir)
		}

		printHistory(cmd.OutOrStdout(), name, h)

		return nil
	}

	for _, name := range rec.Names() {
		printHistory(cmd.OutOrStdout(), name, rec[name])
	}

	return nil
}

// runHistoryRuns prints recent runs from the audit journal.
func runHistoryRuns(cmd *cobra.Command) error {
	cc := mustCLIContext(cmd.Context())

	path := cc.Cfg.JournalPath
	if path == "" {
		defaultPath, err := config.DefaultJournalPath()
		if err != nil {
			return err
		}

		path = defaultPath
	}

	j, err := journal.Open(path, cc.Logger)
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	defer j.Close()

	runs, err := j.RecentRuns(cmd.Context(), historyRunsLimit)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no recorded runs")
		return nil
	}

	for _, r := range runs {
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %-9s  %d actions  %s <-> %s\n",
			r.ID[:8], r.StartedAt.Format(time.DateTime), r.Status, r.Actions, r.Dir1, r.Dir2)
	}

	return nil
}
