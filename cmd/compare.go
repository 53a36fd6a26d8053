package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/EmundoT/vendor-qc/internal/archive"
	"github.com/EmundoT/vendor-qc/internal/core"
	"github.com/EmundoT/vendor-qc/internal/tui"
)

func newCompareCommand(g *globalOptions) *cobra.Command {
	var (
		ext     string
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "compare SOURCE TARGET",
		Short: "Byte-compare one file type between two archives",
		Long: `Find the single entry with the given extension in each archive and compare
their bytes. Exits 0 when identical and 1 otherwise.

Examples:
  vendor-qc compare src/T1_v1.tar.gz dst/T1_v1.tar.gz --ext .rctl
  vendor-qc compare a.tar.lz4 b.tar.lz4 --ext rctl -v`,
		Args: usageError(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if ext == "" {
				return core.NewExitError(core.ExitInvalidArguments, fmt.Errorf("--ext is required"))
			}
			settings, err := g.loadSettings(cmd)
			if err != nil {
				return err
			}

			result := archive.NewComparer(archive.WithMaxEntrySize(settings.Archive.MaxEntryBytes)).
				Compare(args[0], args[1], ext)

			out := cmd.OutOrStdout()
			switch g.outputMode() {
			case core.OutputJSON:
				if err := core.WriteCLISuccess(out, result); err != nil {
					return err
				}
			case core.OutputQuiet:
				fmt.Fprintln(out, compareVerdict(result))
			default:
				printer := tui.NewPrinter(out)
				if result.Success {
					printer.Success(result.Message)
				} else {
					printer.Error("Mismatch", result.Message)
				}
				if verbose {
					printCompareDetails(printer, result)
				}
			}

			if !result.Success {
				return core.NewExitError(core.ExitGeneralError, nil)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&ext, "ext", "", "file extension to compare, e.g. .rctl")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show matched entries and a diff preview")
	return cmd
}

func compareVerdict(r archive.CompareResult) string {
	if r.Success {
		return "IDENTICAL"
	}
	return "DIFFERENT"
}

func printCompareDetails(printer *tui.Printer, r archive.CompareResult) {
	if r.SourceEntry != nil {
		printer.Info(fmt.Sprintf("  source: %s (%d bytes)", r.SourceEntry.Path, r.SourceEntry.Size))
	}
	if r.TargetEntry != nil {
		printer.Info(fmt.Sprintf("  target: %s (%d bytes)", r.TargetEntry.Path, r.TargetEntry.Size))
	}
	if r.Diff != "" {
		printer.Info("\n" + r.Diff)
	}
}
