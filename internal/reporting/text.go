package reporting

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/xkilldash9x/walkthrough/internal/scenario"
)

// RenderText renders one report as lines: the scenario name, one line per
// result in execution order, then the summary. Output depends only on the
// report and theme, never on wall-clock time.
func RenderText(report *scenario.RunReport, theme Theme) string {
	var b strings.Builder
	b.WriteString(theme.Title.Render("Scenario: " + singleLine(report.ScenarioName)))
	b.WriteByte('\n')

	for _, res := range report.Results {
		b.WriteString(theme.outcome(res.Outcome).Render("[" + res.Outcome.String() + "]"))
		b.WriteByte(' ')
		b.WriteString(singleLine(res.Description))
		if detail := singleLine(res.Detail); detail != "" {
			b.WriteString(": ")
			b.WriteString(detail)
		}
		b.WriteByte('\n')
		if res.Artifact != "" {
			b.WriteString(theme.Muted.Render("    screenshot: " + singleLine(res.Artifact)))
			b.WriteByte('\n')
		}
	}

	b.WriteString(summaryLine(report))
	b.WriteByte('\n')
	return b.String()
}

// singleLine joins the non-blank lines of s with " | " so a multi-line driver
// error stays on its result's tagged line.
func singleLine(s string) string {
	if !strings.ContainsAny(s, "\r\n") {
		return s
	}
	lines := strings.FieldsFunc(s, func(r rune) bool { return r == '\n' || r == '\r' })
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, " | ")
}

func summaryLine(report *scenario.RunReport) string {
	c := report.Counts()
	return fmt.Sprintf("pass=%d fail=%d warn=%d aborted=%t", c.Pass, c.Fail, c.Warn, report.Aborted)
}

// TextReporter streams each report as it arrives. Reports are separated by a
// blank line; Close appends a totals line when more than one was written.
type TextReporter struct {
	writer io.WriteCloser
	theme  Theme

	mu        sync.Mutex
	scenarios int
	failed    int
}

func NewTextReporter(writer io.WriteCloser, theme Theme) *TextReporter {
	return &TextReporter{writer: writer, theme: theme}
}

func (r *TextReporter) Write(report *scenario.RunReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := RenderText(report, r.theme)
	if r.scenarios > 0 {
		out = "\n" + out
	}
	if _, err := io.WriteString(r.writer, out); err != nil {
		return fmt.Errorf("failed to write text report: %w", err)
	}
	r.scenarios++
	if report.Failed() {
		r.failed++
	}
	return nil
}

func (r *TextReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var writeErr error
	if r.scenarios > 1 {
		_, writeErr = fmt.Fprintf(r.writer, "\nscenarios=%d failed=%d\n", r.scenarios, r.failed)
	}
	closeErr := r.writer.Close()
	if writeErr != nil {
		return fmt.Errorf("failed to write text report: %w", writeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close output writer: %w", closeErr)
	}
	return nil
}
