package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/walkthrough/internal/observability"
	"github.com/xkilldash9x/walkthrough/internal/scenario"
	"github.com/xkilldash9x/walkthrough/internal/scenarios"
)

const watchDebounce = 300 * time.Millisecond

func newWatchCmd(provider sessionFactoryProvider) *cobra.Command {
	watchCmd := &cobra.Command{
		Use:   "watch <file>",
		Short: "Re-run a scenario file every time it changes",
		Long: `Runs the scenarios in <file>, then runs them again whenever the file is
saved. The browser stays open between runs. Stop with Ctrl-C.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			logger := observability.GetLogger().Named("watch")
			path := args[0]

			factory, err := provider.Create(ctx, logger, cfg.Browser)
			if err != nil {
				return fmt.Errorf("failed to start %s browser backend: %w", cfg.Browser.Backend, err)
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
				defer cancel()
				if err := factory.Shutdown(shutdownCtx); err != nil {
					logger.Warn("Browser backend did not shut down cleanly.", zap.Error(err))
				}
			}()

			r := newRunner(logger, cfg)
			rerun := func(ctx context.Context) {
				params := scenarios.ParamsFromConfig(cfg.Target, uuid.NewString(), time.Now())
				loaded, err := scenario.LoadFile(path, params.Vars())
				if err != nil {
					logger.Warn("Scenario file is invalid; waiting for the next change.", zap.Error(err))
					return
				}
				reporter, err := openReporter(cmd.OutOrStdout(), cfg)
				if err != nil {
					logger.Error("Could not open report output.", zap.Error(err))
					return
				}
				err = writeReports(ctx, reporter, r.RunAll(ctx, loaded, factory))
				if cerr := reporter.Close(); cerr != nil {
					logger.Warn("Could not finalize report.", zap.Error(cerr))
				}
				switch {
				case err == nil:
					logger.Info("All scenarios passed.")
				case errors.Is(err, ErrScenarioFailed):
					logger.Warn("Scenarios failed; waiting for the next change.")
				default:
					logger.Warn("Run ended early.", zap.Error(err))
				}
			}
			return watchFile(ctx, logger, path, watchDebounce, rerun)
		},
	}
	addRunFlags(watchCmd)
	return watchCmd
}

// watchFile calls onChange once, then again after each burst of writes to
// path settles for debounce. Calls never overlap. It returns when ctx ends.
func watchFile(ctx context.Context, logger *zap.Logger, path string, debounce time.Duration, onChange func(context.Context)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %q: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors often replace the file instead of writing it.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %q: %w", path, err)
	}

	onChange(ctx)

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			logger.Info("Scenario file changed; re-running.", zap.String("path", path))
			onChange(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("File watcher error.", zap.Error(err))
		}
	}
}
