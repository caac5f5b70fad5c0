package reporting

import (
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/walkthrough/internal/observability"
	"github.com/xkilldash9x/walkthrough/internal/reporting/sarif"
	"github.com/xkilldash9x/walkthrough/internal/scenario"
)

// Constants for tool identification in the SARIF report.
const (
	ToolName     = "walkthrough"
	ToolInfoURI  = "https://github.com/xkilldash9x/walkthrough"
	SARIFVersion = "2.1.0"
	SARIFSchema  = "https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json"
)

// Rule IDs, one per outcome.
const (
	RuleStepPassed = "WT0001"
	RuleStepFailed = "WT1001"
	RuleStepWarned = "WT2001"
)

// SARIFReporter emits one SARIF run per scenario report. Every result is kept,
// passes included, so the run reads in execution order. It is thread safe.
type SARIFReporter struct {
	writer  io.WriteCloser
	logger  *zap.Logger
	version string

	mu  sync.Mutex
	log *sarif.Log
}

func NewSARIFReporter(writer io.WriteCloser, toolVersion string) *SARIFReporter {
	return &SARIFReporter{
		writer:  writer,
		logger:  observability.GetLogger().Named("sarif_reporter"),
		version: toolVersion,
		log: &sarif.Log{
			Version: SARIFVersion,
			Schema:  SARIFSchema,
			// Empty, not nil, so an empty log still marshals to "runs": [].
			Runs: []*sarif.Run{},
		},
	}
}

func (r *SARIFReporter) Write(report *scenario.RunReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	run := &sarif.Run{
		Tool: r.tool(),
		AutomationDetails: &sarif.AutomationDetails{
			ID:   report.ScenarioName + "/",
			GUID: report.RunID,
		},
		Invocations: []*sarif.Invocation{{
			ExecutionSuccessful: !report.Failed(),
			StartTimeUTC:        timestamp(report.Started),
			EndTimeUTC:          timestamp(report.Finished),
		}},
		Results: make([]*sarif.Result, 0, len(report.Results)),
	}
	for _, res := range report.Results {
		run.Results = append(run.Results, convertResult(report, res))
	}
	r.log.Runs = append(r.log.Runs, run)

	r.logger.Debug("Added scenario run to SARIF log",
		zap.String("scenario", report.ScenarioName),
		zap.Int("results", len(run.Results)),
	)
	return nil
}

// Close writes the SARIF log to the output writer.
func (r *SARIFReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Info("Finalizing SARIF report", zap.Int("runs", len(r.log.Runs)))

	data, encodeErr := json.MarshalIndent(r.log, "", "  ")
	if encodeErr == nil {
		_, encodeErr = r.writer.Write(append(data, '\n'))
	}
	// Always attempt to close the writer, regardless of encoding success.
	closeErr := r.writer.Close()

	if encodeErr != nil {
		r.logger.Error("Failed to encode SARIF log", zap.Error(encodeErr))
		return fmt.Errorf("failed to encode SARIF output: %w", encodeErr)
	}
	if closeErr != nil {
		r.logger.Error("Failed to close output writer", zap.Error(closeErr))
		return fmt.Errorf("failed to close output writer: %w", closeErr)
	}
	return nil
}

func (r *SARIFReporter) tool() *sarif.Tool {
	return &sarif.Tool{
		Driver: &sarif.ToolComponent{
			Name:           ToolName,
			Version:        pString(r.version),
			InformationURI: pString(ToolInfoURI),
			Rules: []*sarif.ReportingDescriptor{
				rule(RuleStepPassed, "StepPassed", "Step action completed and its check held.", sarif.LevelNone),
				rule(RuleStepFailed, "StepFailed", "Step action failed or a critical check never held.", sarif.LevelError),
				rule(RuleStepWarned, "StepWarned", "Informative check never held, or nothing was verified.", sarif.LevelWarning),
			},
		},
	}
}

func rule(id, name, desc string, level sarif.Level) *sarif.ReportingDescriptor {
	return &sarif.ReportingDescriptor{
		ID:               id,
		Name:             pString(name),
		ShortDescription: &sarif.MultiformatMessageString{Text: pString(desc)},
		DefaultConfig:    &sarif.ReportingConfiguration{Level: level},
	}
}

func convertResult(report *scenario.RunReport, res scenario.Result) *sarif.Result {
	text := res.Description
	if res.Detail != "" {
		text += ": " + res.Detail
	}
	stepName := fmt.Sprintf("step-%02d", res.StepIndex)

	out := &sarif.Result{
		Message: &sarif.Message{Text: pString(text)},
		Locations: []*sarif.Location{{
			LogicalLocations: []*sarif.LogicalLocation{{
				Name:               stepName,
				FullyQualifiedName: report.ScenarioName + "/" + stepName,
				Kind:               "function",
			}},
		}},
		Properties: sarif.PropertyBag{
			"stepIndex":  res.StepIndex,
			"durationMs": res.Duration.Milliseconds(),
		},
	}

	switch res.Outcome {
	case scenario.Pass:
		out.RuleID, out.Kind, out.Level = RuleStepPassed, sarif.KindPass, sarif.LevelNone
	case scenario.Warn:
		out.RuleID, out.Kind, out.Level = RuleStepWarned, sarif.KindFail, sarif.LevelWarning
	default:
		out.RuleID, out.Kind, out.Level = RuleStepFailed, sarif.KindFail, sarif.LevelError
	}

	if res.Artifact != "" {
		out.Attachments = []*sarif.Attachment{{
			Description:      &sarif.Message{Text: pString("screenshot at failure")},
			ArtifactLocation: &sarif.ArtifactLocation{URI: pString(res.Artifact)},
		}}
	}
	return out
}

func timestamp(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	return pString(t.UTC().Format(time.RFC3339Nano))
}

// pString returns a pointer to the given string value. Helper for optional SARIF fields.
func pString(s string) *string {
	return &s
}
