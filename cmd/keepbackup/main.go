// Command keepbackup backs up notes to a dated JSON archive or smoke-checks
// the notes page in a headless browser. Every invocation is one run that
// ends with a summary line on stdout and exit status 0 or 1.
//
// Usage:
//
//	keepbackup --note "Buy milk" --notes-file notes.txt   # backup (default)
//	keepbackup --mode smoke-live                          # load the live page
//	keepbackup --mode smoke-fixture --fixture page.html   # check a local fixture
//	keepbackup --run-id "$UUID" --notes-file notes.txt    # tag the run log
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hazyhaar/keepbackup/backup"
	"github.com/hazyhaar/keepbackup/config"
	"github.com/hazyhaar/keepbackup/idgen"
	"github.com/hazyhaar/keepbackup/runlog"
	"github.com/hazyhaar/keepbackup/runner"
	"github.com/hazyhaar/keepbackup/verify"
)

const (
	modeBackup       = "backup"
	modeSmokeLive    = "smoke-live"
	modeSmokeFixture = "smoke-fixture"
)

// exitUsage is returned when flags, mode or configuration are invalid and
// no run was started.
const exitUsage = 2

type options struct {
	mode       string
	notes      []string
	notesFile  string
	fixture    string
	configFile string
	envFile    string
	logLevel   string
	runID      string
}

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

func execute(args []string, stdout, stderr io.Writer) int {
	code := 0
	cmd := newRootCmd(stdout, stderr, &code)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(stderr, "keepbackup:", err)
		return exitUsage
	}
	return code
}

func newRootCmd(stdout, stderr io.Writer, code *int) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "keepbackup",
		Short: "Back up notes to a dated JSON archive or smoke-check the notes page",
		Long: `keepbackup performs one run per invocation.

Modes:
  backup         write --note values and --notes-file entries to backups/<date>/keep.json
  smoke-live     load the live notes page in headless Chrome (KEEP_BROWSER_PROFILE_DIR reuses a login)
  smoke-fixture  load a local HTML fixture and require at least one note element

Each run appends to logs/run_<timestamp>.log and prints a summary line.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch opts.mode {
			case modeBackup, modeSmokeLive, modeSmokeFixture:
			default:
				return fmt.Errorf("invalid --mode %q (want %s, %s or %s)", opts.mode, modeBackup, modeSmokeLive, modeSmokeFixture)
			}
			if !cmd.Flags().Changed("fixture") {
				opts.fixture = ""
			}
			if opts.runID != "" {
				id, err := idgen.Parse(opts.runID)
				if err != nil {
					return err
				}
				opts.runID = id
			}

			if opts.logLevel != "" {
				if _, err := zapcore.ParseLevel(opts.logLevel); err != nil {
					return fmt.Errorf("--log-level: %w", err)
				}
			}

			// Configuration problems fail the run itself, so they still
			// get a log file, a summary and exit status 1.
			cfg, cfgErr := config.Load(config.Options{File: opts.configFile, EnvFile: opts.envFile})
			if opts.logLevel != "" {
				cfg.LogLevel = opts.logLevel
			}

			logger := newLogger(stderr, cfg.LogLevel)
			defer logger.Sync() //nolint:errcheck

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			*code = run(ctx, stdout, logger, cfg, cfgErr, opts)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.mode, "mode", modeBackup, "execution mode: backup, smoke-live or smoke-fixture")
	f.StringArrayVar(&opts.notes, "note", nil, "manual note body text (repeatable)")
	f.StringVar(&opts.notesFile, "notes-file", "", "text file with one note per line, or an HTML page with note elements")
	f.StringVar(&opts.fixture, "fixture", config.DefaultFixturePath, "HTML fixture for smoke-fixture")
	f.StringVar(&opts.configFile, "config", "", "YAML config file (default "+config.DefaultFile+" if present)")
	f.StringVar(&opts.envFile, "env-file", "", "KEY=VALUE file merged under the environment (default "+config.DefaultEnvFile+" if present)")
	f.StringVar(&opts.logLevel, "log-level", "", "diagnostics level on stderr: debug, info, warn, error")
	f.StringVar(&opts.runID, "run-id", "", "UUID to tag this run with instead of a generated one")

	return cmd
}

// run resolves the run paths once and hands the chosen operation to the
// runner. A configuration error replaces the operation's work.
func run(ctx context.Context, stdout io.Writer, logger *zap.Logger, cfg config.Config, cfgErr error, opts options) int {
	start := time.Now()
	paths := runlog.ResolveIn(cfg.OutputDir, start)

	op := operation(logger, cfg, opts)
	if err := errors.Join(cfgErr, checkMode(cfg, opts.mode)); err != nil {
		logger.Error("keepbackup: configuration rejected", zap.String("mode", opts.mode), zap.Error(err))
		op = runner.Reject(op, err)
	}
	logger.Info("keepbackup: run", zap.String("mode", opts.mode), zap.String("log_file", paths.LogFile))

	ropts := []runner.Option{runner.WithLogger(logger)}
	if opts.runID != "" {
		ropts = append(ropts, runner.WithIDGenerator(idgen.Fixed(opts.runID)))
	}
	return runner.New(stdout, ropts...).Run(ctx, start, paths, op)
}

func operation(logger *zap.Logger, cfg config.Config, opts options) runner.Operation {
	if opts.mode == modeBackup {
		return &backup.Operation{Manual: opts.notes, NotesFile: opts.notesFile}
	}

	v := verify.New(
		verify.NewBrowserOpener(verify.BrowserConfig{
			Bin:               cfg.Browser.Bin,
			AutoDownload:      cfg.Browser.AutoDownload,
			NavigationTimeout: cfg.Browser.NavigationTimeout,
			Logger:            logger,
		}),
		verify.WithSettleDelay(cfg.Browser.SettleDelay),
		verify.WithLogger(logger),
	)

	if opts.mode == modeSmokeLive {
		return verify.NewLiveSmoke(v, cfg.Live.URL, cfg.Browser.ProfileDir)
	}

	fixture := opts.fixture
	if fixture == "" {
		fixture = cfg.Fixture.Path
	}
	return verify.NewFixtureSmoke(v, fixture, cfg.Fixture.Selector, cfg.Fixture.MinNotes)
}

// checkMode validates the settings only the given mode uses.
func checkMode(cfg config.Config, mode string) error {
	switch mode {
	case modeSmokeLive:
		return cfg.ValidateLive()
	case modeSmokeFixture:
		return cfg.ValidateFixture()
	}
	return nil
}

// newLogger builds the stderr diagnostics logger. An unknown level falls
// back to warn; Load has already reported it.
func newLogger(w io.Writer, level string) *zap.Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.WarnLevel
	}
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(w),
		zap.NewAtomicLevelAt(lvl),
	)
	return zap.New(core)
}
