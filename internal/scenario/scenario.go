// Package scenario defines the declarative model the runner executes:
// locators, actions, verifications, steps, and scenarios, plus the results
// a run produces.
package scenario

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Criticality decides whether a failed verification ends the scenario.
type Criticality int

const (
	// Critical is the zero value: unless a step says otherwise, a failed check aborts.
	Critical Criticality = iota
	NonCritical
)

func (c Criticality) String() string {
	switch c {
	case Critical:
		return "critical"
	case NonCritical:
		return "non-critical"
	default:
		return fmt.Sprintf("Criticality(%d)", int(c))
	}
}

// ParseCriticality accepts "critical" and "non-critical" (or "noncritical").
func ParseCriticality(s string) (Criticality, error) {
	switch s {
	case "", "critical":
		return Critical, nil
	case "non-critical", "noncritical", "non_critical":
		return NonCritical, nil
	default:
		return Critical, fmt.Errorf("unknown criticality %q", s)
	}
}

// Step is one action followed by at most one verification.
type Step struct {
	// Name overrides the generated description when set.
	Name   string
	Action Action
	Verify *Verification
	// Timeout bounds the verification poll. Zero inherits the scenario default.
	Timeout     time.Duration
	Criticality Criticality
	// BestEffort marks a step with no assertion that should be reported as Warn
	// instead of Pass, so nothing unverified is counted as a full pass.
	BestEffort bool
}

// Description is the label a Result carries for this step.
func (s Step) Description() string {
	if s.Name != "" {
		return s.Name
	}
	if s.Action.Kind == ActionObserve && s.Verify != nil {
		return s.Verify.Describe()
	}
	desc := s.Action.Describe()
	if s.Verify != nil {
		desc += " => " + s.Verify.Describe()
	}
	return desc
}

func (s Step) Validate() error {
	if s.Timeout < 0 {
		return fmt.Errorf("negative timeout %s", s.Timeout)
	}
	if err := s.Action.Validate(); err != nil {
		return err
	}
	if s.Action.Kind == ActionObserve && s.Verify == nil {
		return errors.New("observe step requires a verification")
	}
	if s.BestEffort && s.Verify != nil {
		return errors.New("best-effort step cannot have a verification")
	}
	if s.Verify != nil {
		if err := s.Verify.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Scenario is an ordered user journey. It is built once and never mutated
// during a run, so a single value may be executed by several runs at once.
type Scenario struct {
	Name        string
	Description string
	// BaseURL resolves relative navigate and url_equals targets.
	BaseURL        string
	Steps          []Step
	DefaultTimeout time.Duration
}

// Validate rejects scenarios the runner cannot execute meaningfully.
func (sc *Scenario) Validate() error {
	if sc.Name == "" {
		return errors.New("scenario name is required")
	}
	if len(sc.Steps) == 0 {
		return fmt.Errorf("scenario %q has no steps", sc.Name)
	}
	if sc.DefaultTimeout < 0 {
		return fmt.Errorf("scenario %q: negative default timeout %s", sc.Name, sc.DefaultTimeout)
	}
	if sc.BaseURL != "" {
		if u, err := url.Parse(sc.BaseURL); err != nil || !u.IsAbs() {
			return fmt.Errorf("scenario %q: base url %q is not absolute", sc.Name, sc.BaseURL)
		}
	}
	for i, step := range sc.Steps {
		if err := step.Validate(); err != nil {
			return fmt.Errorf("scenario %q step %d: %w", sc.Name, i, err)
		}
	}
	return nil
}

// EffectiveTimeout returns the step timeout, else the scenario default, else fallback.
func (sc *Scenario) EffectiveTimeout(step Step, fallback time.Duration) time.Duration {
	if step.Timeout > 0 {
		return step.Timeout
	}
	if sc.DefaultTimeout > 0 {
		return sc.DefaultTimeout
	}
	return fallback
}

// Resolve turns raw into an absolute URL using BaseURL. Unparsable input is
// returned untouched so the driver reports the real error.
func (sc *Scenario) Resolve(raw string) string {
	if sc.BaseURL == "" {
		return raw
	}
	base, err := url.Parse(sc.BaseURL)
	if err != nil {
		return raw
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return base.ResolveReference(ref).String()
}
