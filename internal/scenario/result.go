package scenario

import (
	"fmt"
	"time"
)

// Outcome classifies a single executed step.
type Outcome int

const (
	Pass Outcome = iota
	Fail
	// Warn is a check that could not be confirmed without ending the journey,
	// or a best-effort step that asserted nothing.
	Warn
)

func (o Outcome) String() string {
	switch o {
	case Pass:
		return "PASS"
	case Fail:
		return "FAIL"
	case Warn:
		return "WARN"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// MarshalText renders the outcome tag in structured reports.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Result records one executed step. Results are appended in execution order
// and never modified afterwards.
type Result struct {
	StepIndex   int           `json:"stepIndex"`
	Description string        `json:"description"`
	Outcome     Outcome       `json:"outcome"`
	Detail      string        `json:"detail,omitempty"`
	Duration    time.Duration `json:"durationNs"`
	// Artifact is the path of a screenshot captured when the step failed.
	Artifact string `json:"artifact,omitempty"`
}

// Counts tallies outcomes.
type Counts struct {
	Pass int `json:"pass"`
	Fail int `json:"fail"`
	Warn int `json:"warn"`
}

// RunReport is the outcome of one scenario run.
type RunReport struct {
	RunID        string    `json:"runId"`
	ScenarioName string    `json:"scenario"`
	Results      []Result  `json:"results"`
	Aborted      bool      `json:"aborted"`
	Started      time.Time `json:"started"`
	Finished     time.Time `json:"finished"`
}

// Counts is derived from Results on every call.
func (r *RunReport) Counts() Counts {
	var c Counts
	for _, res := range r.Results {
		switch res.Outcome {
		case Pass:
			c.Pass++
		case Fail:
			c.Fail++
		case Warn:
			c.Warn++
		}
	}
	return c
}

// FirstFailure returns the earliest Fail result.
func (r *RunReport) FirstFailure() (Result, bool) {
	for _, res := range r.Results {
		if res.Outcome == Fail {
			return res, true
		}
	}
	return Result{}, false
}

// Failed reports whether any step failed.
func (r *RunReport) Failed() bool {
	_, ok := r.FirstFailure()
	return ok
}

// Duration is the wall time of the run.
func (r *RunReport) Duration() time.Duration {
	if r.Finished.Before(r.Started) {
		return 0
	}
	return r.Finished.Sub(r.Started)
}
