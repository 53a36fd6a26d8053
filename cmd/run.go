package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/EmundoT/vendor-qc/internal/archive"
	"github.com/EmundoT/vendor-qc/internal/core"
	"github.com/EmundoT/vendor-qc/internal/input"
	"github.com/EmundoT/vendor-qc/internal/notify"
	"github.com/EmundoT/vendor-qc/internal/schedule"
	"github.com/EmundoT/vendor-qc/internal/tui"
	"github.com/EmundoT/vendor-qc/internal/types"
)

// runOptions are the flags of `run` and `watch`.
type runOptions struct {
	asOf           string
	notify         bool
	metricsFile    string
	failOnFindings bool
	details        bool
	allRows        bool
}

func newRunCommand(g *globalOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run INPUT",
		Short: "Evaluate a batch of delivery rows",
		Long: `Evaluate every delivery row in INPUT (.csv, .json, .yaml) against the
checkpoints and print the failures grouped by checkpoint.

Examples:
  vendor-qc run deliveries.csv --config policy.yaml
  vendor-qc run deliveries.csv --config policy.yaml --as-of 2025-03-03 --json
  vendor-qc run deliveries.csv --config policy.yaml --notify --yes`,
		Args: usageError(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newPipeline(cmd, g, opts)
			if err != nil {
				return err
			}
			report, err := p.run(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return p.finish(cmd.Context(), report)
		},
	}

	registerRunFlags(cmd, opts)
	return cmd
}

func registerRunFlags(cmd *cobra.Command, opts *runOptions) {
	f := cmd.Flags()
	f.StringVar(&opts.asOf, "as-of", "", "evaluation date YYYY-MM-DD (default today)")
	f.BoolVar(&opts.notify, "notify", false, "send failures to the configured notification sink")
	f.StringVar(&opts.metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile")
	f.BoolVar(&opts.failOnFindings, "fail-on-findings", false, "exit 4 when any row fails")
	f.BoolVar(&opts.details, "details", false, "include per-tool validation results in JSON output")
	f.BoolVar(&opts.allRows, "all-rows", false, "evaluate every row, ignoring the input window")
}

// pipeline is everything a batch run needs, built once per invocation.
type pipeline struct {
	cmd      *cobra.Command
	global   *globalOptions
	opts     *runOptions
	settings *core.Settings
	logger   *slog.Logger
	policies *core.PolicyStore
	patterns *core.PatternCache
	ui       core.UICallback
	asOf     time.Time
}

func newPipeline(cmd *cobra.Command, g *globalOptions, opts *runOptions) (*pipeline, error) {
	if err := g.requireConfig(); err != nil {
		return nil, err
	}

	asOf := core.DateOnly(time.Now())
	if opts.asOf != "" {
		t, err := input.ParseDate(opts.asOf)
		if err != nil {
			return nil, core.NewExitError(core.ExitInvalidArguments, fmt.Errorf("invalid --as-of: %w", err))
		}
		asOf = t
	}

	settings, err := g.loadSettings(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := g.logger(cmd, settings)
	if err != nil {
		return nil, err
	}

	patterns := core.NewPatternCache()
	return &pipeline{
		cmd:      cmd,
		global:   g,
		opts:     opts,
		settings: settings,
		logger:   logger,
		policies: core.NewPolicyStore(g.configPath, patterns),
		patterns: patterns,
		ui:       g.callback(cmd),
		asOf:     asOf,
	}, nil
}

// loadRows reads the input, applies the schedule window and fills start dates.
func (p *pipeline) loadRows(path string) ([]types.DeliveryRow, error) {
	rows, err := input.Load(path, input.WithLogger(p.logger))
	if err != nil {
		return nil, err
	}
	loaded := len(rows)
	if !p.opts.allRows {
		rows = input.FilterWindow(rows, p.asOf, p.settings.Input.WindowWeeks)
	}

	cal, err := p.calendar()
	if err != nil {
		return nil, err
	}
	rows = input.FillStartDates(rows, cal, p.settings.Schedule.LeadBusinessDays)

	p.logger.Info("rows loaded", "path", path, "loaded", loaded, "in_window", len(rows))
	return rows, nil
}

func (p *pipeline) calendar() (schedule.Calendar, error) {
	holidays, err := schedule.ParseHolidays(p.settings.Schedule.Holidays)
	if err != nil {
		return nil, core.NewConfigurationError(p.global.settingsPath, "", "invalid schedule.holidays", err)
	}
	if file := p.settings.Schedule.HolidayFile; file != "" {
		more, err := schedule.LoadHolidays(file)
		if err != nil {
			return nil, core.NewConfigurationError(file, "", "invalid holiday file", err)
		}
		holidays = append(holidays, more...)
	}
	return schedule.NewWeekdayCalendar(holidays...), nil
}

// run loads the policy and rows and evaluates the batch. Configuration errors abort
// before any row is processed.
func (p *pipeline) run(ctx context.Context, inputPath string) (*types.BatchReport, error) {
	if err := p.policies.Load(); err != nil {
		return nil, err
	}

	rows, err := p.loadRows(inputPath)
	if err != nil {
		return nil, err
	}

	metrics := core.NewPromMetrics(core.DefaultMetricsNamespace)
	fs := core.NewOSFileSystem()
	readerOpts := []archive.Option{archive.WithMaxEntrySize(p.settings.Archive.MaxEntryBytes)}
	engine := core.NewValidationEngine(
		core.NewFSLocator(fs, p.patterns),
		archive.NewComparer(readerOpts...),
		p.patterns,
		p.policies.Paths(),
		p.logger,
		readerOpts...,
	)

	registry := core.NewCheckpointRegistry(p.logger, metrics)
	if err := registry.RegisterDefaults(core.DefaultCheckpointDeps{
		FileSystem: fs,
		Policies:   p.policies,
		Engine:     engine,
		Settings:   p.settings.Checkpoints,
		Metrics:    metrics,
	}); err != nil {
		return nil, err
	}

	runner := core.NewBatchRunner(
		registry,
		core.NewParallelExecutor(p.settings.Workers),
		p.logger,
		core.WithProgress(p.progress()),
		core.WithMetrics(metrics),
	)
	report := runner.Run(ctx, rows, p.asOf)

	if err := p.writeMetrics(metrics); err != nil {
		p.ui.ShowWarning("Metrics Not Written", err.Error())
	}
	return report, nil
}

func (p *pipeline) progress() core.ProgressTracker {
	if f, ok := p.cmd.ErrOrStderr().(*os.File); ok {
		return tui.NewProgressTracker(p.global.outputMode(), f, "Evaluating deliveries")
	}
	return tui.NewNoOpProgressTracker()
}

func (p *pipeline) writeMetrics(m *core.PromMetrics) error {
	path := p.settings.Metrics.Textfile
	if path == "" {
		return nil
	}
	return m.WriteTextfile(path)
}

// finish prints the report, dispatches notifications and maps the verdict to an exit error.
func (p *pipeline) finish(ctx context.Context, report *types.BatchReport) error {
	out := p.cmd.OutOrStdout()
	switch p.global.outputMode() {
	case core.OutputJSON:
		if err := core.WriteCLISuccess(out, core.NewFailureReport(report, p.opts.details)); err != nil {
			return err
		}
	case core.OutputQuiet:
		fmt.Fprintf(out, "%s (%d passed, %d failed)\n",
			report.Summary.Result, report.Summary.Successes, report.Summary.Failures)
	default:
		fmt.Fprint(out, core.FormatBatchReport(report))
	}

	if p.opts.notify {
		if err := p.dispatch(ctx, report.AllFailures()); err != nil {
			return err
		}
	}

	if p.opts.failOnFindings && report.Summary.Result != types.BatchResultPass {
		return core.NewExitError(core.ExitValidationFailed, nil)
	}
	return nil
}

// dispatch sends failures to the configured sink after confirmation.
func (p *pipeline) dispatch(ctx context.Context, failures []types.FailureRecord) error {
	if len(failures) == 0 {
		return nil
	}
	groups := notify.Group(failures)
	if !p.global.yes && !p.ui.AskConfirmation("Send Notifications",
		fmt.Sprintf("Notify %d users about %d failures via %s?", len(groups), len(failures), p.settings.Notify.Sink)) {
		p.ui.ShowWarning("Notifications Skipped", "no notifications were sent")
		return nil
	}

	// JSON output owns stdout, so the stdout sink moves to stderr.
	sinkOut := p.cmd.OutOrStdout()
	if p.global.outputMode() == core.OutputJSON {
		sinkOut = p.cmd.ErrOrStderr()
	}
	sink, closeSink, err := notify.FromSettings(ctx, p.settings.Notify, sinkOut, p.logger)
	if err != nil {
		return core.NewConfigurationError(p.global.settingsPath, "", "notification sink unavailable", err)
	}
	defer func() {
		if err := closeSink(); err != nil {
			p.logger.Warn("closing notification sink", "error", err)
		}
	}()

	sent, err := notify.NewDispatcher(sink, p.logger).Dispatch(ctx, failures)
	if err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	if p.global.outputMode() == core.OutputNormal {
		p.ui.ShowSuccess(fmt.Sprintf("Sent %d notifications", sent))
	}
	return nil
}
