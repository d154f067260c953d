package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nilaysetiya/dirsync-go/internal/config"
	"github.com/nilaysetiya/dirsync-go/internal/engine"
	"github.com/nilaysetiya/dirsync-go/internal/journal"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagVerbose    bool
	flagDebug      bool
	flagQuiet      bool
)

// errUsage marks user errors whose message has already been printed; main
// exits non-zero without the generic error prefix.
var errUsage = errors.New("usage error")

// User-facing messages for argument and directory validation.
const (
	msgInvalidInput = "Please provide a valid input"
	msgNoDirectory  = "Please make sure at least one directory exists"
)

// CLIContext bundles the resolved config and logger. Created once in
// PersistentPreRunE.
type CLIContext struct {
	Cfg    *config.Config
	Logger *slog.Logger
}

// cliContextKey is the context key for CLIContext.
type cliContextKey struct{}

// mustCLIContext extracts the CLIContext or panics with an actionable
// message. The command tree guarantees PersistentPreRunE populated it
// before any RunE executes.
func mustCLIContext(ctx context.Context) *CLIContext {
	cc, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok {
		panic("BUG: CLIContext not found in context — PersistentPreRunE did not run")
	}

	return cc
}

// newRootCmd builds the fully-assembled command tree. The root command
// itself performs a single synchronization pass over a directory pair.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "dirsync <dir1> <dir2>",
		Short:   "Bidirectional directory synchronizer",
		Long: "dirsync makes two directory trees hold the same files, contents, and\n" +
			"modification times, keeping a per-file history in a .sync sidecar so\n" +
			"deletions, revivals, and conflicts resolve the same way on every machine.",
		Version: version,
		Args:    cobra.ArbitraryArgs,
		// Silence cobra's default error/usage printing — we handle it ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadConfig(cmd)
		},
		RunE: runSync,
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "show detailed output")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	cmd.MarkFlagsMutuallyExclusive("verbose", "debug", "quiet")

	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newVerifyCmd())

	return cmd
}

// runSync is the root RunE: validate the directory pair, run one pass,
// print the summary.
func runSync(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())

	dir1, dir2, err := validateDirs(cmd, args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := syncOnce(ctx, cc, dir1, dir2)
	if err != nil {
		return err
	}

	if !flagQuiet {
		printSummary(cmd.OutOrStdout(), summary)
	}

	return nil
}

// validateDirs enforces the two-argument contract: exactly two paths, at
// least one existing; a single missing directory is created empty.
func validateDirs(cmd *cobra.Command, args []string) (string, string, error) {
	if len(args) != 2 {
		fmt.Fprintln(cmd.ErrOrStderr(), msgInvalidInput)
		return "", "", errUsage
	}

	dir1, dir2 := args[0], args[1]

	exists1 := dirExists(dir1)
	exists2 := dirExists(dir2)

	switch {
	case !exists1 && !exists2:
		fmt.Fprintln(cmd.ErrOrStderr(), msgNoDirectory)
		return "", "", errUsage

	case !exists1:
		if err := os.MkdirAll(dir1, 0o755); err != nil {
			return "", "", fmt.Errorf("creating %s: %w", dir1, err)
		}

	case !exists2:
		if err := os.MkdirAll(dir2, 0o755); err != nil {
			return "", "", fmt.Errorf("creating %s: %w", dir2, err)
		}
	}

	return dir1, dir2, nil
}

// dirExists reports whether path exists and is a directory.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// syncOnce runs one full synchronization pass, journaled when enabled.
func syncOnce(ctx context.Context, cc *CLIContext, dir1, dir2 string) (*engine.Summary, error) {
	recorder, finish, err := openJournalRun(ctx, cc, dir1, dir2)
	if err != nil {
		// A broken journal must not block synchronization.
		cc.Logger.Warn("journal unavailable, continuing without audit trail", "error", err)
		recorder, finish = nil, func(error) {}
	}

	syncer := engine.New(engine.Options{
		SortListings:        cc.Cfg.SortListings,
		QuarantineMalformed: cc.Cfg.QuarantineMalformed,
		Logger:              cc.Logger,
		Recorder:            recorder,
	})

	summary, err := syncer.Sync(ctx, dir1, dir2)
	finish(err)

	if err != nil {
		return nil, fmt.Errorf("sync failed: %w", err)
	}

	return summary, nil
}

// openJournalRun opens the configured journal and begins a run row. The
// returned finish func records the terminal status and closes the journal.
// When the journal is disabled both returns are inert.
func openJournalRun(
	ctx context.Context, cc *CLIContext, dir1, dir2 string,
) (engine.Recorder, func(error), error) {
	if !cc.Cfg.JournalEnabled {
		return nil, func(error) {}, nil
	}

	path := cc.Cfg.JournalPath
	if path == "" {
		defaultPath, err := config.DefaultJournalPath()
		if err != nil {
			return nil, nil, err
		}

		path = defaultPath
	}

	j, err := journal.Open(path, cc.Logger)
	if err != nil {
		return nil, nil, err
	}

	run, err := j.BeginRun(ctx, dir1, dir2)
	if err != nil {
		j.Close()
		return nil, nil, err
	}

	finish := func(syncErr error) {
		status := journal.StatusCompleted
		if syncErr != nil {
			status = journal.StatusFailed
		}

		if err := run.Finish(context.Background(), status); err != nil {
			cc.Logger.Warn("cannot finalize journal run", "error", err)
		}

		if err := j.Close(); err != nil {
			cc.Logger.Warn("cannot close journal", "error", err)
		}
	}

	return run, finish, nil
}

// loadConfig resolves the effective configuration and stores it with the
// final logger in the command's context.
func loadConfig(cmd *cobra.Command) error {
	// Bootstrap logger from CLI flags only; config is not loaded yet.
	logger := buildLogger(nil)

	env := config.ReadEnvOverrides(logger)

	cfg, err := config.Load(flagConfigPath, env, logger)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	cc := &CLIContext{Cfg: cfg, Logger: buildLogger(cfg)}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cmd.SetContext(context.WithValue(ctx, cliContextKey{}, cc))

	return nil
}

// buildLogger creates an slog.Logger from the config-file log level with
// CLI flags layered on top. Pass nil for pre-config bootstrap.
func buildLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelWarn

	if cfg != nil {
		switch cfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "error":
			level = slog.LevelError
		}
	}

	// CLI flags override config.
	if flagVerbose {
		level = slog.LevelInfo
	}

	if flagDebug {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
