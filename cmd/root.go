package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/suprsokr/sidekick/internal/logging"
)

// Exit codes.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // at least one entry failed
	ExitCommandError = 2 // bad config, unreadable catalog, bad arguments
)

// ExitError carries the process exit code for an error.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error { return e.Err }

func newExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func wrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// ExitCode extracts the exit code from an error. Errors that are not an
// ExitError are command errors.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCommandError
}

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
	LogJSON    bool
	Format     string // "text" | "json"

	PatchesDir   string
	Replacements []string
	Roots        []string
	PatchTool    string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the sidekick command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "sidekick",
		Short: "sidekick - apply game patches and config tweaks, safely and repeatably",
		Long: `sidekick applies third-party modifications to files it does not own:
binary patches and whole-file replacements verified by CRC-32 before and
after, and text or byte-pattern replacements in configuration files.

Every target gets a one-time pristine backup (<file>.backup). Runs are
idempotent: applying the same catalog twice changes nothing the second time.

Run one sidekick at a time against a given game tree; there is no locking.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file (default ./"+DefaultConfigFile+" if present)")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")
	pf.BoolVar(&opts.LogJSON, "log-json", false, "log as JSON lines")
	pf.StringVar(&opts.Format, "format", "text", "output format (text|json)")
	pf.StringVar(&opts.PatchesDir, "patches-dir", "", "directory searched for patch.json catalogs")
	pf.StringSliceVar(&opts.Replacements, "replacements", nil, "replacement catalog file (repeatable)")
	pf.StringSliceVar(&opts.Roots, "root", nil, "search root, highest priority first (repeatable; replaces configured roots)")
	pf.StringVar(&opts.PatchTool, "patch-tool", "", "binary-diff tool path or name on PATH")

	cmd.AddCommand(NewApplyCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewRestoreCommand(opts))
	cmd.AddCommand(NewCrcCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

// Execute parses CLI arguments and dispatches to the appropriate command.
func Execute(args []string) error {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	return cmd.Execute()
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// env is what every command needs once flags are parsed.
type env struct {
	cfg *Config
	log *zap.Logger
	out *printer
}

// setup loads the config, applies flag overrides and builds the logger.
func setup(cmd *cobra.Command, opts *RootOptions) (*env, error) {
	path, required := opts.ConfigPath, true
	if path == "" {
		path, required = DefaultConfigFile, false
	}
	cfg, err := LoadConfig(path, required)
	if err != nil {
		return nil, wrapExitError(ExitCommandError, "config", err)
	}

	if opts.PatchesDir != "" {
		cfg.PatchesDir = opts.PatchesDir
	}
	if len(opts.Replacements) > 0 {
		cfg.Replacements = opts.Replacements
	}
	if len(opts.Roots) > 0 {
		cfg.SearchRoots = opts.Roots
	}
	if opts.PatchTool != "" {
		cfg.PatchTool = opts.PatchTool
	}

	log, err := logging.New(logging.Options{Verbose: opts.Verbose, JSON: opts.LogJSON, Writer: cmd.ErrOrStderr()})
	if err != nil {
		return nil, wrapExitError(ExitCommandError, "logger", err)
	}
	// Keep stdout clean for machine-readable output.
	human := cmd.OutOrStdout()
	if opts.Format == "json" {
		human = cmd.ErrOrStderr()
	}
	return &env{cfg: cfg, log: log, out: newPrinter(human)}, nil
}

func (e *env) close() {
	_ = e.log.Sync()
}
