// Package cmd implements the vendor-qc command line.
package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/EmundoT/vendor-qc/internal/core"
	"github.com/EmundoT/vendor-qc/internal/tui"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	settingsPath string
	configPath   string
	jsonOut      bool
	quiet        bool
	yes          bool
	logLevel     string
	logFormat    string
	workers      int
}

// settingsFlags maps flag names to the settings keys they override.
var settingsFlags = map[string]string{
	"workers":      "workers",
	"log-level":    "log.level",
	"log-format":   "log.format",
	"metrics-file": "metrics.textfile",
}

// NewRootCommand builds the vendor-qc command tree writing to stdout and stderr.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "vendor-qc",
		Short: "Quality control for vendor deliveries",
		Long: `vendor-qc checks vendor delivery archives against a per-vendor policy.

Commands:
  run       Evaluate a batch of delivery rows
  watch     Re-run the batch whenever the input or policy changes
  compare   Byte-compare one file type between two archives
  inspect   List and search archive entries
  config    Validate or scaffold a policy document`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return core.NewExitError(core.ExitInvalidArguments, err)
	})

	pf := root.PersistentFlags()
	pf.StringVar(&opts.settingsPath, "settings", "", "runtime settings file (default .vendor-qc.yaml in . or $HOME)")
	pf.StringVarP(&opts.configPath, "config", "c", "", "vendor policy document")
	pf.BoolVar(&opts.jsonOut, "json", false, "structured JSON output")
	pf.BoolVarP(&opts.quiet, "quiet", "q", false, "errors and the final verdict only")
	pf.BoolVarP(&opts.yes, "yes", "y", false, "auto-approve prompts")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&opts.logFormat, "log-format", "", "log format: text or json")
	pf.IntVar(&opts.workers, "workers", 0, "parallel workers (0 = number of CPUs, max 8)")

	root.AddCommand(
		newRunCommand(opts),
		newWatchCommand(opts),
		newCompareCommand(opts),
		newInspectCommand(opts),
		newConfigCommand(opts),
		newCompletionCommand(),
		newVersionCommand(),
	)

	return root
}

// Execute runs the CLI against os.Args and reports any error. The returned error
// carries the exit code through core.CLIExitCodeForError.
func Execute() error {
	root := NewRootCommand(os.Stdout, os.Stderr)
	return reportError(root, root.Execute())
}

// reportError prints err in the selected output mode. Exit errors without a cause
// have already been reported by the command.
func reportError(root *cobra.Command, err error) error {
	if err == nil {
		return nil
	}
	var exitErr *core.ExitError
	if errors.As(err, &exitErr) && exitErr.Err == nil {
		return err
	}

	jsonOut, _ := root.PersistentFlags().GetBool("json")
	if jsonOut {
		_ = core.WriteCLIError(root.OutOrStdout(), core.CLIErrorCodeForError(err), err.Error())
		return err
	}
	tui.NewPrinter(root.ErrOrStderr()).Error(errorTitle(err), err.Error())
	return err
}

func errorTitle(err error) string {
	switch core.CLIExitCodeForError(err) {
	case core.ExitConfigError:
		return "Configuration Error"
	case core.ExitInvalidArguments:
		return "Invalid Input"
	default:
		return "Error"
	}
}

// outputMode resolves --json and --quiet.
func (o *globalOptions) outputMode() core.OutputMode {
	return core.OutputModeFromFlags(o.jsonOut, o.quiet)
}

// callback picks the interactive UI only for normal output on a terminal without --yes.
func (o *globalOptions) callback(cmd *cobra.Command) core.UICallback {
	flags := core.NonInteractiveFlags{Yes: o.yes, Mode: o.outputMode()}
	out := cmd.OutOrStdout()
	if f, ok := out.(*os.File); ok && !flags.Yes && flags.Mode == core.OutputNormal && tui.IsTerminal(f) {
		return tui.NewTUICallback(out)
	}
	// JSON status lines stay off stdout, which carries the command's response document.
	if flags.Mode == core.OutputJSON {
		out = cmd.ErrOrStderr()
	}
	return tui.NewNonInteractiveTUICallback(flags, out, cmd.ErrOrStderr())
}

// loadSettings resolves runtime settings with command-line flags bound over their keys.
func (o *globalOptions) loadSettings(cmd *cobra.Command) (*core.Settings, error) {
	s, err := core.LoadSettings(o.settingsPath, func(v *viper.Viper) error {
		for name, key := range settingsFlags {
			if f := lookupFlag(cmd, name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, core.NewConfigurationError(o.settingsPath, "", "invalid runtime settings", err)
	}
	return s, nil
}

// logger builds the structured logger on stderr.
func (o *globalOptions) logger(cmd *cobra.Command, s *core.Settings) (*slog.Logger, error) {
	logger, err := core.NewLogger(cmd.ErrOrStderr(), s.Log.Level, s.Log.Format)
	if err != nil {
		return nil, core.NewExitError(core.ExitInvalidArguments, err)
	}
	return logger, nil
}

// requireConfig fails with an argument error when --config is missing.
func (o *globalOptions) requireConfig() error {
	if o.configPath == "" {
		return core.NewExitError(core.ExitInvalidArguments, errors.New("--config is required"))
	}
	return nil
}

func lookupFlag(cmd *cobra.Command, name string) *pflag.Flag {
	if f := cmd.Flags().Lookup(name); f != nil {
		return f
	}
	return cmd.InheritedFlags().Lookup(name)
}

// usageError wraps a cobra argument validator so bad arguments exit with ExitInvalidArguments.
func usageError(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return core.NewExitError(core.ExitInvalidArguments, fmt.Errorf("%s: %w", cmd.CommandPath(), err))
		}
		return nil
	}
}
