package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/EmundoT/vendor-qc/internal/core"
	"github.com/EmundoT/vendor-qc/internal/types"
)

// configValidation is the JSON payload of `config validate --json`.
type configValidation struct {
	Path    string              `json:"path"`
	Vendors []string            `json:"vendors"`
	Paths   types.PathsConfig   `json:"paths"`
	Vendor  *types.VendorPolicy `json:"vendor,omitempty"`
}

func newConfigCommand(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Validate or scaffold a policy document",
	}
	cmd.AddCommand(newConfigValidateCommand(g), newConfigInitCommand(g))
	return cmd
}

func newConfigValidateCommand(g *globalOptions) *cobra.Command {
	var vendor string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the policy document for structural and regex errors",
		Args:  usageError(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := g.requireConfig(); err != nil {
				return err
			}
			store := core.NewPolicyStore(g.configPath, core.NewPatternCache())
			if err := store.Load(); err != nil {
				return err
			}

			res := configValidation{Path: g.configPath, Vendors: store.Vendors(), Paths: store.Paths()}
			if vendor != "" {
				if ok, msg := store.Validate(vendor); !ok {
					return core.NewConfigurationError(g.configPath, vendor, msg, nil)
				}
				p, _ := store.Policy(vendor)
				res.Vendor = &p
			}

			out := cmd.OutOrStdout()
			switch g.outputMode() {
			case core.OutputJSON:
				return core.WriteCLISuccess(out, res)
			case core.OutputQuiet:
				return nil
			}
			ui := g.callback(cmd)
			if res.Vendor != nil {
				ui.ShowSuccess(fmt.Sprintf("Vendor '%s' is valid (%d required patterns)",
					res.Vendor.VendorKey, len(res.Vendor.RequiredPatterns)))
				return nil
			}
			ui.ShowSuccess(fmt.Sprintf("Configuration valid: %d vendors (%v)", len(res.Vendors), res.Vendors))
			return nil
		},
	}

	cmd.Flags().StringVar(&vendor, "vendor", "", "also check that this vendor key has a valid section")
	return cmd
}

func newConfigInitCommand(g *globalOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write an example policy document to --config",
		Args:  usageError(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := g.requireConfig(); err != nil {
				return err
			}
			if _, err := os.Stat(g.configPath); err == nil && !force {
				return core.NewExitError(core.ExitInvalidArguments,
					fmt.Errorf("%s already exists (use --force to overwrite)", g.configPath))
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}

			if err := core.NewYAMLStore[types.PolicyDocument](g.configPath, false).Save(ExamplePolicy()); err != nil {
				return err
			}
			if g.outputMode() == core.OutputNormal {
				g.callback(cmd).ShowSuccess("Wrote example policy to " + g.configPath)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

// ExamplePolicy is the document written by `config init`. It passes validation.
func ExamplePolicy() types.PolicyDocument {
	enabled := true
	threshold := 5
	return types.PolicyDocument{
		Paths: &types.PathsConfig{
			SourceRoot: "/data/deliveries/source",
			TargetRoot: "/data/deliveries/target",
		},
		Vendors: map[string]*types.VendorEntry{
			"acme": {
				ArchiveConfig: &types.ArchiveConfig{
					SourceArchiveRegex: `{source_root}/{tool_number}_.*\.tar\.gz$`,
					TargetArchiveRegex: `{target_root}/{tool_column}/{tool_number}_.*\.tar\.gz$`,
					ConsistencyCheck: &types.ConsistencyCheck{
						Enabled:       &enabled,
						FileExtension: ".rctl",
					},
				},
				RequiredPatterns: []string{
					`Report_{tool_number}\.xlsx$`,
					`Summary_{tool_number}\.pdf$`,
					`Config_{tool_number}\.aaa$`,
				},
				BypassRules: &types.BypassRules{
					TechnologyThreshold: &threshold,
					BypassPatterns:      []string{`.aaa$`},
				},
			},
		},
	}
}
