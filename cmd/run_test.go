package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/walkthrough/internal/config"
	"github.com/xkilldash9x/walkthrough/internal/driver"
	"github.com/xkilldash9x/walkthrough/internal/mocks"
	"github.com/xkilldash9x/walkthrough/internal/observability"
	"github.com/xkilldash9x/walkthrough/internal/reporting"
	"github.com/xkilldash9x/walkthrough/internal/scenario"
	"github.com/xkilldash9x/walkthrough/internal/scenarios"
)

const smokeYAML = `
name: smoke
base_url: http://app.test
steps:
  - do:
      - navigate: /login
    expect:
      title: LogMind
`

// mockProvider hands out a prepared factory and records the browser config it saw.
type mockProvider struct {
	factory driver.SessionFactory
	err     error
	got     config.BrowserConfig
	calls   int
}

func (p *mockProvider) Create(_ context.Context, _ *zap.Logger, cfg config.BrowserConfig) (driver.SessionFactory, error) {
	p.calls++
	p.got = cfg
	if p.err != nil {
		return nil, p.err
	}
	return p.factory, nil
}

// isolate runs the test from an empty directory so no walkthrough.yaml is
// picked up, and resets the global logger afterwards.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	// Poll fast so short verification timeouts stay valid.
	t.Setenv("WALKTHROUGH_RUNNER_POLL_INTERVAL", "10ms")
	t.Cleanup(observability.ResetForTest)
	return dir
}

func writeScenarioFile(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "smoke.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// smokeFactory serves one session whose page title is title.
func smokeFactory(title string) (*mocks.MockSessionFactory, *mocks.MockSession) {
	sess := mocks.NewMockSession()
	sess.On("Navigate", mock.Anything, "http://app.test/login").Return(nil)
	sess.On("Title", mock.Anything).Return(title, nil)
	sess.On("Screenshot", mock.Anything).Return([]byte("\x89PNG"), nil).Maybe()
	sess.On("Close", mock.Anything).Return(nil)

	factory := &mocks.MockSessionFactory{}
	factory.On("NewSession", mock.Anything).Return(sess, nil)
	factory.On("Shutdown", mock.Anything).Return(nil).Once()
	return factory, sess
}

func executeRoot(t *testing.T, provider sessionFactoryProvider, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand(provider)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRunCommand_Pass(t *testing.T) {
	dir := isolate(t)
	path := writeScenarioFile(t, dir, smokeYAML)
	factory, sess := smokeFactory("LogMind - 工作台")
	provider := &mockProvider{factory: factory}

	out, err := executeRoot(t, provider, "run", "--file", path, "--backend", "playwright", "--artifacts-dir", filepath.Join(dir, "shots"))
	require.NoError(t, err)

	assert.Contains(t, out, "Scenario: smoke")
	assert.Contains(t, out, "[PASS]")
	assert.Contains(t, out, "pass=1 fail=0 warn=0 aborted=false")
	assert.Equal(t, 1, provider.calls)
	assert.Equal(t, config.BackendPlaywright, provider.got.Backend, "flag overrides the default backend")
	sess.AssertExpectations(t)
	factory.AssertExpectations(t)
}

func TestRunCommand_FailReturnsErrScenarioFailed(t *testing.T) {
	dir := isolate(t)
	path := writeScenarioFile(t, dir, smokeYAML)
	factory, _ := smokeFactory("Sign in")
	shots := filepath.Join(dir, "shots")

	out, err := executeRoot(t, &mockProvider{factory: factory},
		"run", "-f", path, "--timeout", "50ms", "--artifacts-dir", shots)
	require.ErrorIs(t, err, ErrScenarioFailed)

	assert.Contains(t, out, "[FAIL]")
	assert.Contains(t, out, "timed out after 50ms")
	assert.Contains(t, out, "screenshot: "+shots)
	assert.Contains(t, out, "pass=0 fail=1 warn=0 aborted=true")

	entries, readErr := os.ReadDir(shots)
	require.NoError(t, readErr)
	assert.NotEmpty(t, entries, "a failure screenshot is written")
	factory.AssertExpectations(t)
}

func TestRunCommand_JSONToFile(t *testing.T) {
	dir := isolate(t)
	path := writeScenarioFile(t, dir, smokeYAML)
	factory, _ := smokeFactory("LogMind")
	reportPath := filepath.Join(dir, "report.json")

	out, err := executeRoot(t, &mockProvider{factory: factory},
		"run", "-f", path, "--format", "json", "-o", reportPath)
	require.NoError(t, err)
	assert.Empty(t, out, "the report goes to the file, not stdout")

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"scenario": "smoke"`)
	assert.Contains(t, string(data), `"totals"`)
}

func TestRunCommand_BackendStartFailure(t *testing.T) {
	isolate(t)
	provider := &mockProvider{err: errors.New("chrome not found")}

	_, err := executeRoot(t, provider, "run", "login")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start cdp browser backend")
	assert.Contains(t, err.Error(), "chrome not found")
}

func TestRunCommand_UnknownScenario(t *testing.T) {
	isolate(t)
	provider := &mockProvider{}

	_, err := executeRoot(t, provider, "run", "checkout")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown scenario "checkout"`)
	assert.Zero(t, provider.calls, "no browser is started for an invalid selection")
}

func TestRunCommand_InvalidConfig(t *testing.T) {
	isolate(t)
	_, err := executeRoot(t, &mockProvider{}, "run", "login", "--concurrency=-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load or validate config")
}

func TestSelectScenarios(t *testing.T) {
	dir := t.TempDir()
	path := writeScenarioFile(t, dir, smokeYAML)
	params := scenarios.ParamsFromConfig(config.TargetConfig{BaseURL: "http://localhost:3000"}, "0123456789", time.Now())

	t.Run("all built-ins by default", func(t *testing.T) {
		selected, err := selectScenarios(nil, nil, params)
		require.NoError(t, err)
		var names []string
		for _, sc := range selected {
			names = append(names, sc.Name)
		}
		assert.ElementsMatch(t, scenarios.Names(), names)
	})

	t.Run("named in order", func(t *testing.T) {
		selected, err := selectScenarios([]string{"user-management", "login"}, nil, params)
		require.NoError(t, err)
		require.Len(t, selected, 2)
		assert.Equal(t, "user-management", selected[0].Name)
		assert.Equal(t, "login", selected[1].Name)
	})

	t.Run("files", func(t *testing.T) {
		selected, err := selectScenarios(nil, []string{path}, params)
		require.NoError(t, err)
		require.Len(t, selected, 1)
		assert.Equal(t, "smoke", selected[0].Name)
	})

	t.Run("names and files conflict", func(t *testing.T) {
		_, err := selectScenarios([]string{"login"}, []string{path}, params)
		assert.EqualError(t, err, "scenario names and --file cannot be combined")
	})
}

type failingReporter struct {
	writeErr error
	closed   bool
}

func (f *failingReporter) Write(*scenario.RunReport) error { return f.writeErr }
func (f *failingReporter) Close() error                   { f.closed = true; return nil }

var _ reporting.Reporter = (*failingReporter)(nil)

func TestRunScenarios_ClosesReporterOnStartFailure(t *testing.T) {
	rep := &failingReporter{}
	cfg := config.NewDefaultConfig()

	err := runScenarios(context.Background(), zaptest.NewLogger(t), cfg, nil, &mockProvider{err: errors.New("no browser")}, rep)
	require.Error(t, err)
	assert.True(t, rep.closed)
}

func TestWriteReports(t *testing.T) {
	passed := &scenario.RunReport{ScenarioName: "a", Results: []scenario.Result{{Outcome: scenario.Pass}}}
	warned := &scenario.RunReport{ScenarioName: "b", Results: []scenario.Result{{Outcome: scenario.Warn}}}
	failed := &scenario.RunReport{ScenarioName: "c", Results: []scenario.Result{{Outcome: scenario.Fail}}, Aborted: true}

	t.Run("warnings do not fail the run", func(t *testing.T) {
		assert.NoError(t, writeReports(context.Background(), &failingReporter{}, []*scenario.RunReport{passed, warned}))
	})

	t.Run("any failure", func(t *testing.T) {
		err := writeReports(context.Background(), &failingReporter{}, []*scenario.RunReport{passed, failed})
		assert.ErrorIs(t, err, ErrScenarioFailed)
	})

	t.Run("interrupted wins over failure", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := writeReports(ctx, &failingReporter{}, []*scenario.RunReport{failed})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Contains(t, err.Error(), "run interrupted")
	})

	t.Run("write error", func(t *testing.T) {
		err := writeReports(context.Background(), &failingReporter{writeErr: errors.New("disk full")}, []*scenario.RunReport{passed})
		assert.EqualError(t, err, "disk full")
	})
}
