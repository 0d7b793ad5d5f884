package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/rws/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Config   string // config file, empty for ./rws.yaml when present
	LogLevel string // overrides the configured level when set

	// Settings is the merged configuration, loaded before any subcommand runs.
	Settings *config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// settings returns the loaded configuration, or the defaults when the
// command runs without the root command (tests).
func (o *RootOptions) settings() config.Config {
	if o.Settings != nil {
		return *o.Settings
	}
	return config.Defaults()
}

// NewRootCommand creates the root command for the rws CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "rws",
		Short: "rws - rigid waist shift knobs",
		Long: `Derive, inspect and archive the powering knobs of a rigid waist shift.

Reads twiss tables in TFS format, compares optics configurations and writes
the circuit powering changes as MAD-X knob files.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(opts, cmd)
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "config file (default ./"+config.DefaultFile+" when present)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error)")

	// Add subcommands
	cmd.AddCommand(NewDeviationCommand(opts))
	cmd.AddCommand(NewDeriveCommand(opts))
	cmd.AddCommand(NewWaistCommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

// setup loads the configuration, lets explicit flags override it and
// installs the process logger.
func setup(opts *RootOptions, cmd *cobra.Command) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load configuration", err)
	}

	flags := cmd.Flags()
	if flags.Changed("format") {
		cfg.Format = opts.Format
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = opts.LogLevel
	}
	if !isValidFormat(cfg.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", cfg.Format, ValidFormats))
	}
	opts.Format = cfg.Format

	level, err := cfg.Level()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid log level", err)
	}
	if opts.Verbose && level > slog.LevelDebug {
		level = slog.LevelDebug
	}
	opts.Settings = &cfg

	slog.SetDefault(newLogger(cmd.ErrOrStderr(), level))
	slog.Debug("configuration loaded",
		"format", cfg.Format,
		"output_dir", cfg.OutputDir,
		"archive", cfg.Archive,
	)
	return nil
}

// newLogger writes text records to w, the command's stderr, so JSON output on
// stdout stays parseable.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
