package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/meigma/seal"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// app holds the state shared by every subcommand of one invocation.
type app struct {
	stdout  io.Writer
	stderr  io.Writer
	cfgFile string
	cfg     *config
	logger  *slog.Logger
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}
	root := &cobra.Command{
		Use:   "seal",
		Short: "Pack directory trees into verifiable, optionally encrypted archives",
		Long: `seal packs a directory tree into a single archive file and restores it.

Archives are deterministic: packing the same tree with the same settings
produces the same body digest. Every archive carries a SHA-256 digest of its
body, and encrypted archives authenticate every chunk, so unpack refuses to
write anything until the whole archive has been verified.

Settings can come from flags, SEAL_* environment variables (for example
SEAL_COMPRESSION=zstd or SEAL_KEY_FILE=./key) or a config file given with
--config.`,
		Version:           getVersionString(),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (YAML, TOML or JSON)")
	root.PersistentFlags().String("log-level", defaultConfig().LogLevel, "log level (debug, info, warn, error)")

	root.AddCommand(a.packCmd())
	root.AddCommand(a.unpackCmd())
	root.AddCommand(a.verifyCmd())
	root.AddCommand(a.inspectCmd())
	root.AddCommand(a.keygenCmd())
	return root
}

// setup resolves configuration and installs the logger before any
// subcommand runs.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(a.cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("log level %q: %w", cfg.LogLevel, err)
	}
	handler := log.NewWithOptions(a.stderr, log.Options{
		Prefix: "seal",
		Level:  level,
	})
	a.cfg = cfg
	a.logger = slog.New(handler)
	return nil
}

// progress logs each stage transition at debug level.
func (a *app) progress() seal.ProgressFunc {
	var (
		started bool
		last    seal.ProgressStage
	)
	return func(ev seal.ProgressEvent) {
		if started && ev.Stage == last {
			return
		}
		started, last = true, ev.Stage
		a.logger.Debug("stage", "stage", ev.Stage.String(), "entries", ev.EntriesTotal, "bytes", ev.BytesTotal)
	}
}

// run executes the CLI with args and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "seal: %v\n", err)
	}
	return exitCode(err)
}

func printSummary(w io.Writer, path string, sum *seal.Summary) {
	m := &sum.Manifest
	fmt.Fprintf(w, "%-12s %s\n", "archive", path)
	fmt.Fprintf(w, "%-12s %s\n", "digest", m.Digest)
	fmt.Fprintf(w, "%-12s %d (%d files, %d dirs, %d symlinks)\n", "entries", sum.Entries(), sum.Files, sum.Dirs, sum.Symlinks)
	fmt.Fprintf(w, "%-12s %d bytes\n", "content", sum.ContentBytes)
	fmt.Fprintf(w, "%-12s %d bytes\n", "size", sum.ArchiveSize())
	fmt.Fprintf(w, "%-12s %s\n", "compression", m.Compression)
	fmt.Fprintf(w, "%-12s %s\n", "cipher", m.Cipher)
}
