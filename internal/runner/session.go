package runner

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/walkthrough/internal/driver"
	"github.com/xkilldash9x/walkthrough/internal/scenario"
)

const sessionCloseTimeout = 10 * time.Second

// RunSession opens a session, runs sc on it, and releases the session on
// every exit path. A session that cannot be opened yields a report holding a
// single Fail.
func (r *Runner) RunSession(ctx context.Context, sc *scenario.Scenario, factory driver.SessionFactory) *scenario.RunReport {
	sess, err := factory.NewSession(ctx)
	if err != nil {
		r.logger.Error("Could not open browser session.", zap.String("scenario", sc.Name), zap.Error(err))
		return notStarted(sc, "could not open browser session: "+err.Error())
	}
	defer func() {
		// Release even when ctx is already canceled.
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sessionCloseTimeout)
		defer cancel()
		if err := sess.Close(closeCtx); err != nil {
			r.logger.Warn("Failed to close browser session.", zap.String("scenario", sc.Name), zap.Error(err))
		}
	}()

	return r.Run(ctx, sc, sess)
}

// RunAll runs every scenario on its own session, at most Concurrency at a
// time, pacing session launches by LaunchRate. Reports come back in input order.
func (r *Runner) RunAll(ctx context.Context, scenarios []*scenario.Scenario, factory driver.SessionFactory) []*scenario.RunReport {
	reports := make([]*scenario.RunReport, len(scenarios))

	limit := rate.Inf
	if r.opts.LaunchRate > 0 {
		limit = rate.Limit(r.opts.LaunchRate)
	}
	limiter := rate.NewLimiter(limit, 1)

	var g errgroup.Group
	g.SetLimit(r.opts.Concurrency)
	for i, sc := range scenarios {
		g.Go(func() error {
			if err := limiter.Wait(ctx); err != nil {
				reports[i] = notStarted(sc, "run cancelled before start: "+err.Error())
				return nil
			}
			reports[i] = r.RunSession(ctx, sc, factory)
			return nil
		})
	}
	// Workers never return errors; every outcome lives in its report.
	_ = g.Wait()
	return reports
}

// notStarted reports a run that failed before its first step executed.
func notStarted(sc *scenario.Scenario, detail string) *scenario.RunReport {
	now := time.Now()
	return &scenario.RunReport{
		RunID:        uuid.NewString(),
		ScenarioName: sc.Name,
		Results: []scenario.Result{{
			StepIndex:   0,
			Description: "open browser session",
			Outcome:     scenario.Fail,
			Detail:      detail,
		}},
		Aborted:  true,
		Started:  now,
		Finished: now,
	}
}
