package reporting_test

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
	"github.com/google/go-cmp/cmp"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/walkthrough/internal/reporting"
	"github.com/xkilldash9x/walkthrough/internal/reporting/sarif"
	"github.com/xkilldash9x/walkthrough/internal/scenario"
)

const testToolVersion = "v1.0.0-test"

// MockWriteCloser captures output and can simulate I/O errors.
type MockWriteCloser struct {
	Buffer    *bytes.Buffer
	FailWrite bool
	FailClose bool
	Closed    bool
}

func newMockWriter() *MockWriteCloser { return &MockWriteCloser{Buffer: new(bytes.Buffer)} }

func (m *MockWriteCloser) Write(p []byte) (int, error) {
	if m.FailWrite {
		return 0, errors.New("simulated write error")
	}
	return m.Buffer.Write(p)
}

func (m *MockWriteCloser) Close() error {
	m.Closed = true
	if m.FailClose {
		return errors.New("simulated close error")
	}
	return nil
}

// abortedLogin is a run that failed on its second step with a screenshot.
func abortedLogin() *scenario.RunReport {
	start := time.Date(2025, 3, 17, 9, 0, 0, 0, time.UTC)
	return &scenario.RunReport{
		RunID:        "0f8e7d6c-1111-2222-3333-444455556666",
		ScenarioName: "login",
		Results: []scenario.Result{
			{StepIndex: 0, Description: "navigate /login", Outcome: scenario.Pass, Duration: 120 * time.Millisecond},
			{
				StepIndex:   1,
				Description: "submit credentials",
				Outcome:     scenario.Fail,
				Detail:      `timed out after 10s waiting for url = "/"`,
				Duration:    10 * time.Second,
				Artifact:    "shots/login-0f8e7d6c/step-01.png",
			},
		},
		Aborted:  true,
		Started:  start,
		Finished: start.Add(11 * time.Second),
	}
}

func toggledUser() *scenario.RunReport {
	return &scenario.RunReport{
		RunID:        "run-2",
		ScenarioName: "user-management",
		Results: []scenario.Result{
			{StepIndex: 0, Description: "open user list", Outcome: scenario.Pass},
			{StepIndex: 1, Description: "disable account", Outcome: scenario.Warn, Detail: `timed out after 5s waiting for text "已禁用" visible`},
			{StepIndex: 2, Description: "delete account", Outcome: scenario.Pass},
		},
	}
}

// -- Text --

func TestRenderText(t *testing.T) {
	want := strings.Join([]string{
		"Scenario: login",
		"[PASS] navigate /login",
		`[FAIL] submit credentials: timed out after 10s waiting for url = "/"`,
		"    screenshot: shots/login-0f8e7d6c/step-01.png",
		"pass=1 fail=1 warn=0 aborted=true",
		"",
	}, "\n")

	got := reporting.RenderText(abortedLogin(), reporting.MonoTheme())
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("RenderText() mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderText_KeepsExecutionOrder(t *testing.T) {
	got := reporting.RenderText(toggledUser(), reporting.MonoTheme())
	lines := strings.Split(strings.TrimSpace(got), "\n")

	require.Len(t, lines, 5)
	assert.Equal(t, "Scenario: user-management", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "[PASS] open user list"))
	assert.True(t, strings.HasPrefix(lines[2], "[WARN] disable account: "), "warn stays in place, not sorted by severity")
	assert.True(t, strings.HasPrefix(lines[3], "[PASS] delete account"))
	assert.Equal(t, "pass=2 fail=0 warn=1 aborted=false", lines[4])
}

func TestRenderText_Deterministic(t *testing.T) {
	report := abortedLogin()
	first := reporting.RenderText(report, reporting.MonoTheme())
	report.Finished = report.Finished.Add(time.Hour)
	assert.Equal(t, first, reporting.RenderText(report, reporting.MonoTheme()), "timestamps never reach the text output")
}

func TestRenderText_DefaultThemeKeepsContent(t *testing.T) {
	got := reporting.RenderText(abortedLogin(), reporting.DefaultTheme())
	for _, want := range []string{"[PASS]", "[FAIL]", "navigate /login", "pass=1 fail=1 warn=0 aborted=true"} {
		assert.Contains(t, got, want)
	}
}

func TestRenderText_MultilineDetailStaysOnTaggedLine(t *testing.T) {
	report := &scenario.RunReport{
		ScenarioName: "daily-log",
		Results: []scenario.Result{
			{StepIndex: 0, Description: "open log form", Outcome: scenario.Pass},
			{
				StepIndex:   1,
				Description: "save log",
				Outcome:     scenario.Fail,
				Detail:      "click failed: Timeout 5000ms exceeded.\nCall log:\r\n  - waiting for locator(\"button\")\n\n",
			},
		},
		Aborted: true,
	}

	got := reporting.RenderText(report, reporting.MonoTheme())
	lines := strings.Split(strings.TrimSuffix(got, "\n"), "\n")

	require.Len(t, lines, 4, "one line per result between the header and the summary")
	for i, line := range lines[1 : len(lines)-1] {
		assert.Regexp(t, `^\[(PASS|FAIL|WARN)\] `, line, "result line %d is untagged", i+1)
	}
	assert.Equal(t,
		`[FAIL] save log: click failed: Timeout 5000ms exceeded. | Call log: | - waiting for locator("button")`,
		lines[2])
	assert.Equal(t, "pass=1 fail=1 warn=0 aborted=true", lines[3])
}

func TestThemeByName(t *testing.T) {
	assert.Equal(t, "default", reporting.ThemeByName("default").Name)
	assert.Equal(t, "default", reporting.ThemeByName("color").Name)
	assert.Equal(t, "mono", reporting.ThemeByName("mono").Name)
	assert.Equal(t, "mono", reporting.ThemeByName("unknown").Name)
}

func TestTextReporter_MultipleReports(t *testing.T) {
	w := newMockWriter()
	r := reporting.NewTextReporter(w, reporting.MonoTheme())

	require.NoError(t, r.Write(abortedLogin()))
	require.NoError(t, r.Write(toggledUser()))
	require.NoError(t, r.Close())

	out := w.Buffer.String()
	assert.True(t, w.Closed)
	assert.Contains(t, out, "aborted=true\n\nScenario: user-management\n")
	assert.True(t, strings.HasSuffix(out, "\nscenarios=2 failed=1\n"))
}

func TestTextReporter_SingleReportHasNoTotals(t *testing.T) {
	w := newMockWriter()
	r := reporting.NewTextReporter(w, reporting.MonoTheme())
	require.NoError(t, r.Write(toggledUser()))
	require.NoError(t, r.Close())
	assert.NotContains(t, w.Buffer.String(), "scenarios=")
}

func TestTextReporter_WriteError(t *testing.T) {
	w := newMockWriter()
	w.FailWrite = true
	err := reporting.NewTextReporter(w, reporting.MonoTheme()).Write(toggledUser())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "simulated write error")
}

// -- JSON --

func TestJSONReporter(t *testing.T) {
	w := newMockWriter()
	r := reporting.NewJSONReporter(w, testToolVersion)
	require.NoError(t, r.Write(abortedLogin()))
	require.NoError(t, r.Write(toggledUser()))
	require.NoError(t, r.Close())

	var doc struct {
		Version string `json:"version"`
		Reports []struct {
			Scenario string `json:"scenario"`
			Aborted  bool   `json:"aborted"`
			Results  []struct {
				Outcome  string `json:"outcome"`
				Artifact string `json:"artifact"`
			} `json:"results"`
		} `json:"reports"`
		Totals map[string]int `json:"totals"`
	}
	require.NoError(t, jsoniter.Unmarshal(w.Buffer.Bytes(), &doc))

	assert.Equal(t, testToolVersion, doc.Version)
	require.Len(t, doc.Reports, 2)
	assert.Equal(t, "login", doc.Reports[0].Scenario)
	assert.True(t, doc.Reports[0].Aborted)
	assert.Equal(t, "FAIL", doc.Reports[0].Results[1].Outcome)
	assert.Equal(t, "shots/login-0f8e7d6c/step-01.png", doc.Reports[0].Results[1].Artifact)
	assert.Equal(t, "WARN", doc.Reports[1].Results[1].Outcome)
	assert.Equal(t, map[string]int{"pass": 3, "fail": 1, "warn": 1, "scenarios": 2, "aborted": 1}, doc.Totals)
}

func TestJSONReporter_EmptyIsValid(t *testing.T) {
	w := newMockWriter()
	require.NoError(t, reporting.NewJSONReporter(w, testToolVersion).Close())
	assert.Contains(t, w.Buffer.String(), `"reports": []`)
}

func TestJSONReporter_CloseError(t *testing.T) {
	w := newMockWriter()
	w.FailClose = true
	err := reporting.NewJSONReporter(w, testToolVersion).Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to close output writer")
}

// -- SARIF --

func decodeSARIF(t *testing.T, data []byte) sarif.Log {
	t.Helper()
	var log sarif.Log
	require.NoError(t, jsoniter.Unmarshal(data, &log), "output should be valid SARIF JSON")
	return log
}

func TestSARIFReporter_Empty(t *testing.T) {
	w := newMockWriter()
	require.NoError(t, reporting.NewSARIFReporter(w, testToolVersion).Close())

	log := decodeSARIF(t, w.Buffer.Bytes())
	assert.Equal(t, reporting.SARIFVersion, log.Version)
	assert.Equal(t, reporting.SARIFSchema, log.Schema)
	require.NotNil(t, log.Runs)
	assert.Empty(t, log.Runs)
}

func TestSARIFReporter_Levels(t *testing.T) {
	w := newMockWriter()
	r := reporting.NewSARIFReporter(w, testToolVersion)
	require.NoError(t, r.Write(abortedLogin()))
	require.NoError(t, r.Write(toggledUser()))
	require.NoError(t, r.Close())

	log := decodeSARIF(t, w.Buffer.Bytes())
	require.Len(t, log.Runs, 2)

	login := log.Runs[0]
	assert.Equal(t, "v1.0.0-test", *login.Tool.Driver.Version)
	assert.Equal(t, "0f8e7d6c-1111-2222-3333-444455556666", login.AutomationDetails.GUID)
	require.Len(t, login.Invocations, 1)
	assert.False(t, login.Invocations[0].ExecutionSuccessful)
	assert.Equal(t, "2025-03-17T09:00:00Z", *login.Invocations[0].StartTimeUTC)

	require.Len(t, login.Results, 2)
	assert.Equal(t, sarif.LevelNone, login.Results[0].Level)
	assert.Equal(t, sarif.KindPass, login.Results[0].Kind)
	failed := login.Results[1]
	assert.Equal(t, reporting.RuleStepFailed, failed.RuleID)
	assert.Equal(t, sarif.LevelError, failed.Level)
	assert.Equal(t, `submit credentials: timed out after 10s waiting for url = "/"`, *failed.Message.Text)
	assert.Equal(t, "login/step-01", failed.Locations[0].LogicalLocations[0].FullyQualifiedName)
	require.Len(t, failed.Attachments, 1)
	assert.Equal(t, "shots/login-0f8e7d6c/step-01.png", *failed.Attachments[0].ArtifactLocation.URI)

	users := log.Runs[1]
	assert.True(t, users.Invocations[0].ExecutionSuccessful, "warnings do not fail the run")
	assert.Nil(t, users.Invocations[0].StartTimeUTC)
	assert.Equal(t, reporting.RuleStepWarned, users.Results[1].RuleID)
	assert.Equal(t, sarif.LevelWarning, users.Results[1].Level)
}

func TestSARIFReporter_WriteFailure(t *testing.T) {
	w := newMockWriter()
	w.FailWrite = true
	r := reporting.NewSARIFReporter(w, testToolVersion)
	require.NoError(t, r.Write(toggledUser()))

	err := r.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to encode SARIF output")
	assert.True(t, w.Closed, "writer is closed even when encoding fails")
}

// -- Factory --

func TestNew_Stdout(t *testing.T) {
	for _, format := range []string{"text", "json", "sarif"} {
		for _, output := range []string{"", "stdout"} {
			r, err := reporting.New(reporting.Options{Format: format, Output: output})
			require.NoError(t, err)
			assert.NoError(t, r.Close())
		}
	}
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.txt")
	r, err := reporting.New(reporting.Options{Format: "text", Output: path})
	require.NoError(t, err)
	require.NoError(t, r.Write(toggledUser()))
	require.NoError(t, r.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Scenario: user-management")
}

func TestNew_UnsupportedFormatCreatesNoFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xml")
	r, err := reporting.New(reporting.Options{Format: "junit", Output: path})
	require.Error(t, err)
	assert.Nil(t, r)
	assert.Contains(t, err.Error(), "unsupported output format: junit")
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestNew_FileCreationFailure(t *testing.T) {
	r, err := reporting.New(reporting.Options{Format: "json", Output: t.TempDir()})
	require.Error(t, err)
	assert.Nil(t, r)
	assert.Contains(t, err.Error(), "failed to create output file")
}

// -- Fuzz --

func FuzzRenderText(f *testing.F) {
	f.Add([]byte("seed"))
	f.Fuzz(func(t *testing.T, data []byte) {
		var report scenario.RunReport
		if err := fuzz.NewConsumer(data).GenerateStruct(&report); err != nil {
			return
		}
		out := reporting.RenderText(&report, reporting.MonoTheme())
		assert.True(t, strings.HasPrefix(out, "Scenario: "))
		c := report.Counts()
		lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
		want := fmt.Sprintf("pass=%d fail=%d warn=%d aborted=%t", c.Pass, c.Fail, c.Warn, report.Aborted)
		assert.Equal(t, want, lines[len(lines)-1])
		assert.Equal(t, out, reporting.RenderText(&report, reporting.MonoTheme()))
	})
}
