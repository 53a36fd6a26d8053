package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// ErrUnsupportedShell is returned when completion is asked for an unknown shell.
var ErrUnsupportedShell = errors.New("unsupported shell")

// supportedShells lists the shells accepted by `completion`.
var supportedShells = []string{"bash", "zsh", "fish", "powershell"}

func newCompletionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "completion SHELL",
		Short: "Generate shell completion scripts",
		Long: `Generate a completion script for bash, zsh, fish or powershell.

Examples:
  source <(vendor-qc completion bash)
  vendor-qc completion zsh > "${fpath[1]}/_vendor-qc"
  vendor-qc completion fish > ~/.config/fish/completions/vendor-qc.fish`,
		ValidArgs: supportedShells,
		Args:      usageError(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return GenerateCompletion(cmd.Root(), args[0], cmd.OutOrStdout())
		},
	}
}

// GenerateCompletion writes the completion script for shell.
func GenerateCompletion(root *cobra.Command, shell string, w io.Writer) error {
	var err error
	switch shell {
	case "bash":
		err = root.GenBashCompletionV2(w, true)
	case "zsh":
		err = root.GenZshCompletion(w)
	case "fish":
		err = root.GenFishCompletion(w, true)
	case "powershell":
		err = root.GenPowerShellCompletionWithDesc(w)
	default:
		return fmt.Errorf("%w: '%s' (use bash, zsh, fish or powershell)", ErrUnsupportedShell, shell)
	}
	if err != nil {
		return fmt.Errorf("failed to generate %s completion: %w", shell, err)
	}
	return nil
}
