package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/EmundoT/vendor-qc/internal/version"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  usageError(cobra.NoArgs),
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "vendor-qc %s\n", version.GetFullVersion())
		},
	}
}
