package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/EmundoT/vendor-qc/internal/core"
)

func newWatchCommand(g *globalOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "watch INPUT",
		Short: "Re-run the batch whenever the input or policy changes",
		Long: `Run the batch once, then re-run it each time INPUT or the policy document
is written. Events within one second are coalesced. Stop with Ctrl+C.`,
		Args: usageError(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newPipeline(cmd, g, opts)
			if err != nil {
				return err
			}
			return watchBatch(cmd, p, args[0])
		},
	}

	registerRunFlags(cmd, opts)
	return cmd
}

// watchBatch runs once and then on every change until interrupted. Failed runs are
// reported and watching continues; only a configuration error on the first run aborts.
func watchBatch(cmd *cobra.Command, p *pipeline, inputPath string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rerun := func(ctx context.Context) error {
		report, err := p.run(ctx, inputPath)
		if err != nil {
			return err
		}
		if err := p.finish(ctx, report); err != nil && core.CLIExitCodeForError(err) != core.ExitValidationFailed {
			return err
		}
		return nil
	}

	if err := rerun(ctx); err != nil {
		if core.IsConfigurationError(err) {
			return err
		}
		p.ui.ShowError("Run Failed", err.Error())
	}

	if p.global.outputMode() == core.OutputNormal {
		p.ui.ShowSuccess(fmt.Sprintf("Watching %s and %s for changes (Ctrl+C to stop)",
			filepath.Base(inputPath), filepath.Base(p.global.configPath)))
	}

	watcher := core.NewWatcher([]string{inputPath, p.global.configPath}, p.ui, p.logger)
	return watcher.Watch(ctx, func(ctx context.Context, changed string) error {
		p.logger.Info("change detected", "path", changed)
		p.policies.Invalidate()
		return rerun(ctx)
	})
}
