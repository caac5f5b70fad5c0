// Package runner executes scenarios against a browser driver. Steps run
// strictly in order; each verification is polled until it holds or its
// timeout passes, and the step's criticality decides whether a miss ends the
// run.
package runner

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/walkthrough/internal/config"
	"github.com/xkilldash9x/walkthrough/internal/driver"
	"github.com/xkilldash9x/walkthrough/internal/scenario"
)

const (
	defaultTimeout      = 5 * time.Second
	defaultPollInterval = 250 * time.Millisecond
	// screenshotTimeout bounds failure capture, which runs even after cancellation.
	screenshotTimeout = 10 * time.Second
)

// Options tunes the wait policy and fan-out.
type Options struct {
	// DefaultTimeout applies when neither the step nor the scenario sets one.
	DefaultTimeout time.Duration
	PollInterval   time.Duration
	// Concurrency bounds how many scenarios RunAll executes at once.
	Concurrency int
	// LaunchRate caps sessions opened per second by RunAll. Zero means no cap.
	LaunchRate float64
}

// OptionsFromConfig maps the runner and browser sections onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		DefaultTimeout: cfg.Runner.DefaultTimeout,
		PollInterval:   cfg.Runner.PollInterval,
		Concurrency:    cfg.Runner.Concurrency,
		LaunchRate:     cfg.Browser.LaunchRate,
	}
}

// ArtifactSink stores screenshots taken when a step fails.
type ArtifactSink interface {
	SaveScreenshot(runID, scenarioName string, step int, data []byte) (string, error)
}

// Option configures a Runner.
type Option func(*Runner)

// WithArtifacts enables failure screenshots.
func WithArtifacts(sink ArtifactSink) Option {
	return func(r *Runner) { r.artifacts = sink }
}

// Runner is safe for concurrent use; it holds no per-run state.
type Runner struct {
	logger    *zap.Logger
	opts      Options
	artifacts ArtifactSink
}

func New(logger *zap.Logger, opts Options, options ...Option) *Runner {
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = defaultTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	r := &Runner{logger: logger.Named("runner"), opts: opts}
	for _, o := range options {
		o(r)
	}
	return r
}

// stepOutcome is the classified result of one step before bookkeeping.
type stepOutcome struct {
	outcome scenario.Outcome
	detail  string
	abort   bool
}

func pass() stepOutcome { return stepOutcome{outcome: scenario.Pass} }

func fail(detail string) stepOutcome {
	return stepOutcome{outcome: scenario.Fail, detail: detail, abort: true}
}

// Run executes sc against drv and always returns a complete report. Driver
// faults and panics become Fail results; nothing is propagated to the caller.
func (r *Runner) Run(ctx context.Context, sc *scenario.Scenario, drv driver.Driver) *scenario.RunReport {
	report := &scenario.RunReport{
		RunID:        uuid.NewString(),
		ScenarioName: sc.Name,
		Results:      make([]scenario.Result, 0, len(sc.Steps)),
		Started:      time.Now(),
	}
	log := r.logger.With(zap.String("scenario", sc.Name), zap.String("run_id", report.RunID[:8]))
	log.Info("Scenario started.", zap.Int("steps", len(sc.Steps)))

	for i, step := range sc.Steps {
		start := time.Now()
		so := r.runStep(ctx, sc, step, drv)
		res := scenario.Result{
			StepIndex:   i,
			Description: step.Description(),
			Outcome:     so.outcome,
			Detail:      so.detail,
			Duration:    time.Since(start),
		}
		if res.Outcome == scenario.Fail {
			res.Artifact = r.capture(ctx, log, report.RunID, sc.Name, i, drv)
		}
		report.Results = append(report.Results, res)
		logResult(log, res)

		if so.abort {
			report.Aborted = true
			log.Warn("Scenario aborted.", zap.Int("step", i))
			break
		}
	}

	report.Finished = time.Now()
	counts := report.Counts()
	log.Info("Scenario finished.",
		zap.Int("pass", counts.Pass), zap.Int("fail", counts.Fail), zap.Int("warn", counts.Warn),
		zap.Bool("aborted", report.Aborted), zap.Duration("elapsed", report.Duration()))
	return report
}

func logResult(log *zap.Logger, res scenario.Result) {
	fields := []zap.Field{
		zap.Int("step", res.StepIndex),
		zap.String("description", res.Description),
		zap.Duration("duration", res.Duration),
	}
	switch res.Outcome {
	case scenario.Pass:
		log.Debug("Step passed.", fields...)
	case scenario.Warn:
		log.Warn("Step warned.", append(fields, zap.String("detail", res.Detail))...)
	default:
		log.Error("Step failed.", append(fields, zap.String("detail", res.Detail))...)
	}
}

// runStep performs one step. A panic in the driver is recovered into a Fail.
func (r *Runner) runStep(ctx context.Context, sc *scenario.Scenario, step scenario.Step, drv driver.Driver) (so stepOutcome) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Recovered from driver panic.", zap.Any("panic", p), zap.Stack("stack"))
			so = fail(fmt.Sprintf("driver panic: %v", p))
		}
	}()

	if err := ctx.Err(); err != nil {
		return fail("run cancelled: " + err.Error())
	}

	// Action failure is always fatal: nothing after it can be meaningfully verified.
	if err := r.perform(ctx, sc, step.Action, drv); err != nil {
		if ctx.Err() != nil {
			return fail("run cancelled: " + err.Error())
		}
		return fail(err.Error())
	}

	if step.Verify == nil {
		if step.BestEffort {
			return stepOutcome{outcome: scenario.Warn, detail: "action completed; nothing verified"}
		}
		return pass()
	}

	timeout := sc.EffectiveTimeout(step, r.opts.DefaultTimeout)
	observed, err := r.await(ctx, sc, step.Verify, drv, timeout)
	switch {
	case err == nil:
		return pass()
	case ctx.Err() != nil:
		return fail("run cancelled while waiting for " + step.Verify.Describe())
	case errors.Is(err, context.DeadlineExceeded):
		detail := fmt.Sprintf("timed out after %s waiting for %s", timeout, step.Verify.Describe())
		if observed != "" {
			detail += " (last: " + observed + ")"
		}
		if step.Criticality == scenario.NonCritical {
			return stepOutcome{outcome: scenario.Warn, detail: detail}
		}
		return fail(detail)
	default:
		// A broken session is fatal no matter how the step is classified.
		return fail("verification fault: " + err.Error())
	}
}

// perform executes an action. Sequences stop at their first failing member.
func (r *Runner) perform(ctx context.Context, sc *scenario.Scenario, a scenario.Action, drv driver.Driver) error {
	switch a.Kind {
	case scenario.ActionNavigate:
		return drv.Navigate(ctx, sc.Resolve(a.URL))
	case scenario.ActionFill:
		return drv.Fill(ctx, a.Target, a.Value)
	case scenario.ActionClick:
		return drv.Click(ctx, a.Target)
	case scenario.ActionReload:
		return drv.Reload(ctx)
	case scenario.ActionObserve:
		return nil
	case scenario.ActionSequence:
		for i, sub := range a.Actions {
			if err := r.perform(ctx, sc, sub, drv); err != nil {
				return fmt.Errorf("action %d of %d (%s): %w", i+1, len(a.Actions), sub.Describe(), err)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown action kind %q", a.Kind)
	}
}

// await polls v until it holds or timeout passes. The first check is
// immediate. It returns nil when the condition held, the poll context's error
// on timeout or cancellation, or a driver fault. observed describes the last
// state seen.
func (r *Runner) await(ctx context.Context, sc *scenario.Scenario, v *scenario.Verification, drv driver.Driver, timeout time.Duration) (observed string, err error) {
	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()

	for {
		met, seen, err := r.check(pollCtx, sc, v, drv)
		if err != nil {
			// A check cut off by the deadline is a timeout, not a fault.
			if pollCtx.Err() != nil {
				return observed, pollCtx.Err()
			}
			return observed, err
		}
		observed = seen
		if met {
			return observed, nil
		}

		select {
		case <-pollCtx.Done():
			return observed, pollCtx.Err()
		case <-ticker.C:
		}
	}
}

// check evaluates v once. "Not found" is an ordinary unmet observation.
func (r *Runner) check(ctx context.Context, sc *scenario.Scenario, v *scenario.Verification, drv driver.Driver) (bool, string, error) {
	switch v.Kind {
	case scenario.VerifyVisibleText:
		return visibility(ctx, drv, scenario.Text(v.Text), true)
	case scenario.VerifyVisibleSelector:
		return visibility(ctx, drv, v.Ref, true)
	case scenario.VerifyNotVisibleText:
		return visibility(ctx, drv, scenario.Text(v.Text), false)
	case scenario.VerifyURLEquals:
		current, err := drv.CurrentURL(ctx)
		if err != nil {
			return false, "", err
		}
		return sameURL(current, sc.Resolve(v.URL)), "url " + current, nil
	case scenario.VerifyTitleContains:
		title, err := drv.Title(ctx)
		if err != nil {
			return false, "", err
		}
		return strings.Contains(title, v.Text), fmt.Sprintf("title %q", title), nil
	case scenario.VerifyAnyOf:
		seen := make([]string, 0, len(v.Checks))
		for _, c := range v.Checks {
			met, s, err := r.check(ctx, sc, c, drv)
			if err != nil {
				return false, "", err
			}
			if met {
				return true, s, nil
			}
			seen = append(seen, s)
		}
		return false, strings.Join(seen, "; "), nil
	default:
		return false, "", fmt.Errorf("unknown verification kind %q", v.Kind)
	}
}

func visibility(ctx context.Context, drv driver.Driver, l scenario.Locator, want bool) (bool, string, error) {
	visible, err := drv.CheckVisible(ctx, l)
	switch {
	case errors.Is(err, driver.ErrNotFound):
		return !want, l.String() + " not found", nil
	case err != nil:
		return false, "", err
	case visible:
		return want, l.String() + " visible", nil
	default:
		return !want, l.String() + " present but hidden", nil
	}
}

// sameURL compares absolute URLs, treating an empty path as "/".
func sameURL(a, b string) bool {
	ua, errA := url.Parse(a)
	ub, errB := url.Parse(b)
	if errA != nil || errB != nil {
		return a == b
	}
	for _, u := range []*url.URL{ua, ub} {
		if u.Path == "" {
			u.Path = "/"
		}
		u.Scheme = strings.ToLower(u.Scheme)
		u.Host = strings.ToLower(u.Host)
	}
	return ua.String() == ub.String()
}

// capture takes a failure screenshot. Errors are logged and never change the outcome.
func (r *Runner) capture(ctx context.Context, log *zap.Logger, runID, scenarioName string, step int, drv driver.Driver) (path string) {
	if r.artifacts == nil {
		return ""
	}
	defer func() {
		if p := recover(); p != nil {
			log.Warn("Screenshot capture panicked.", zap.Any("panic", p))
			path = ""
		}
	}()

	shotCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), screenshotTimeout)
	defer cancel()

	data, err := drv.Screenshot(shotCtx)
	if err != nil {
		log.Warn("Could not capture failure screenshot.", zap.Int("step", step), zap.Error(err))
		return ""
	}
	path, err = r.artifacts.SaveScreenshot(runID, scenarioName, step, data)
	if err != nil {
		log.Warn("Could not save failure screenshot.", zap.Int("step", step), zap.Error(err))
		return ""
	}
	return path
}
