package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/walkthrough/internal/artifacts"
	"github.com/xkilldash9x/walkthrough/internal/config"
	"github.com/xkilldash9x/walkthrough/internal/driver"
	"github.com/xkilldash9x/walkthrough/internal/driver/cdp"
	"github.com/xkilldash9x/walkthrough/internal/driver/pw"
	"github.com/xkilldash9x/walkthrough/internal/observability"
	"github.com/xkilldash9x/walkthrough/internal/reporting"
	"github.com/xkilldash9x/walkthrough/internal/runner"
	"github.com/xkilldash9x/walkthrough/internal/scenario"
	"github.com/xkilldash9x/walkthrough/internal/scenarios"
)

// ErrScenarioFailed is returned when at least one step failed. The reports
// already say why, so it is not logged again.
var ErrScenarioFailed = errors.New("one or more scenarios failed")

const shutdownTimeout = 30 * time.Second

// sessionFactoryProvider opens the browser backend. Tests inject a mock
// factory instead of launching a browser.
type sessionFactoryProvider interface {
	Create(ctx context.Context, logger *zap.Logger, cfg config.BrowserConfig) (driver.SessionFactory, error)
}

type defaultSessionFactoryProvider struct{}

// NewSessionFactoryProvider returns the provider that launches real browsers.
func NewSessionFactoryProvider() sessionFactoryProvider {
	return &defaultSessionFactoryProvider{}
}

func (p *defaultSessionFactoryProvider) Create(ctx context.Context, logger *zap.Logger, cfg config.BrowserConfig) (driver.SessionFactory, error) {
	switch strings.ToLower(cfg.Backend) {
	case config.BackendPlaywright:
		return pw.NewManager(ctx, logger, cfg)
	default:
		return cdp.NewManager(ctx, logger, cfg)
	}
}

func newRunCmd(provider sessionFactoryProvider) *cobra.Command {
	var files []string

	runCmd := &cobra.Command{
		Use:   "run [scenario...]",
		Short: "Run built-in journeys or scenario files and print a report",
		Long: `Runs the named built-in journeys, or every journey when none is named.
With --file, scenarios are loaded from YAML instead. The exit status is
non-zero when any step fails.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			params := scenarios.ParamsFromConfig(cfg.Target, uuid.NewString(), time.Now())
			selected, err := selectScenarios(args, files, params)
			if err != nil {
				return err
			}

			reporter, err := openReporter(cmd.OutOrStdout(), cfg)
			if err != nil {
				return err
			}
			return runScenarios(ctx, logger, cfg, selected, provider, reporter)
		},
	}

	runCmd.Flags().StringSliceVarP(&files, "file", "f", nil, "YAML scenario file (repeatable); replaces the built-in journeys")
	addRunFlags(runCmd)
	return runCmd
}

// addRunFlags registers the flags shared by run and watch.
func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().String("backend", "", "browser backend: cdp or playwright")
	cmd.Flags().Bool("headless", true, "run the browser without a window")
	cmd.Flags().String("base-url", "", "base URL of the LogMind deployment")
	cmd.Flags().String("log-date", "", "yyyy-mm-dd daily log page to write (default today)")
	cmd.Flags().Duration("timeout", 0, "default verification timeout")
	cmd.Flags().Int("concurrency", 0, "scenarios run at once")
	cmd.Flags().String("format", "", "report format: text, json or sarif")
	cmd.Flags().StringP("output", "o", "", "report file path (default stdout)")
	cmd.Flags().String("theme", "", "text report theme: mono or default")
	cmd.Flags().String("artifacts-dir", "", "directory for failure screenshots")
}

// selectScenarios resolves the journeys to run: files when given, else the
// named built-ins, else all of them.
func selectScenarios(names, files []string, params scenarios.Params) ([]*scenario.Scenario, error) {
	if len(files) > 0 {
		if len(names) > 0 {
			return nil, errors.New("scenario names and --file cannot be combined")
		}
		var out []*scenario.Scenario
		for _, path := range files {
			loaded, err := scenario.LoadFile(path, params.Vars())
			if err != nil {
				return nil, err
			}
			out = append(out, loaded...)
		}
		return out, nil
	}

	if len(names) == 0 {
		return scenarios.All(params), nil
	}
	out := make([]*scenario.Scenario, 0, len(names))
	for _, name := range names {
		sc, err := scenarios.Lookup(name, params)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, nil
}

func reportOptions(cfg *config.Config) reporting.Options {
	return reporting.Options{
		Format:      cfg.Report.Format,
		Output:      cfg.Report.Output,
		Theme:       cfg.Report.Theme,
		ToolVersion: Version,
	}
}

// openReporter writes to the command's stdout unless a file is configured.
func openReporter(stdout io.Writer, cfg *config.Config) (reporting.Reporter, error) {
	if cfg.Report.Output != "" && cfg.Report.Output != "stdout" {
		return reporting.New(reportOptions(cfg))
	}
	return reporting.NewWithWriter(reportOptions(cfg), reporting.NopCloser(stdout)), nil
}

// runScenarios is the testable core of run: open the backend, run every
// scenario, and write the reports. The reporter is closed on every path.
func runScenarios(
	ctx context.Context,
	logger *zap.Logger,
	cfg *config.Config,
	selected []*scenario.Scenario,
	provider sessionFactoryProvider,
	reporter reporting.Reporter,
) (err error) {
	defer func() {
		if cerr := reporter.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	factory, err := provider.Create(ctx, logger, cfg.Browser)
	if err != nil {
		return fmt.Errorf("failed to start %s browser backend: %w", cfg.Browser.Backend, err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if serr := factory.Shutdown(shutdownCtx); serr != nil {
			logger.Warn("Browser backend did not shut down cleanly.", zap.Error(serr))
		}
	}()

	r := newRunner(logger, cfg)
	logger.Info("Running scenarios.", zap.Int("count", len(selected)), zap.String("backend", cfg.Browser.Backend))
	reports := r.RunAll(ctx, selected, factory)
	return writeReports(ctx, reporter, reports)
}

func newRunner(logger *zap.Logger, cfg *config.Config) *runner.Runner {
	var opts []runner.Option
	if cfg.Artifacts.Enabled {
		opts = append(opts, runner.WithArtifacts(artifacts.NewScreenshotStore(cfg.Artifacts.Dir)))
	}
	return runner.New(logger, runner.OptionsFromConfig(cfg), opts...)
}

// writeReports emits reports in order and maps the outcome to an error.
func writeReports(ctx context.Context, reporter reporting.Reporter, reports []*scenario.RunReport) error {
	failed := false
	for _, rep := range reports {
		if err := reporter.Write(rep); err != nil {
			return err
		}
		if rep.Failed() {
			failed = true
		}
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run interrupted: %w", err)
	}
	if failed {
		return ErrScenarioFailed
	}
	return nil
}
