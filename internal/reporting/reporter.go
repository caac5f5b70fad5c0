// Package reporting renders run reports as text, json, or SARIF.
package reporting

import (
	"fmt"
	"io"
	"os"

	"github.com/xkilldash9x/walkthrough/internal/scenario"
)

// Reporter defines the interface for writing run reports to an output.
type Reporter interface {
	// Write processes a single run report.
	Write(report *scenario.RunReport) error
	// Close finalizes the report and closes any underlying resources (e.g., file handles).
	Close() error
}

// Options selects the format and destination of a Reporter.
type Options struct {
	Format string
	// Output is a file path; "" or "stdout" writes to standard output.
	Output      string
	Theme       string
	ToolVersion string
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// New creates a new reporter based on the specified format and output path.
func New(opts Options) (Reporter, error) {
	switch opts.Format {
	case "", "text", "json", "sarif":
	default:
		return nil, fmt.Errorf("unsupported output format: %s", opts.Format)
	}

	var writer io.WriteCloser
	if opts.Output == "" || opts.Output == "stdout" {
		// Wrap Stdout so Close() is a no-op.
		writer = &nopWriteCloser{os.Stdout}
	} else {
		f, err := os.Create(opts.Output)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", opts.Output, err)
		}
		writer = f
	}
	return NewWithWriter(opts, writer), nil
}

// NewWithWriter builds a reporter that takes ownership of writer. The
// format must already be valid; unknown formats fall back to text.
func NewWithWriter(opts Options, writer io.WriteCloser) Reporter {
	switch opts.Format {
	case "sarif":
		return NewSARIFReporter(writer, opts.ToolVersion)
	case "json":
		return NewJSONReporter(writer, opts.ToolVersion)
	default:
		return NewTextReporter(writer, ThemeByName(opts.Theme))
	}
}

// NopCloser adapts w for NewWithWriter when the caller keeps ownership.
func NopCloser(w io.Writer) io.WriteCloser {
	return &nopWriteCloser{w}
}
