package reporting

import (
	"fmt"
	"io"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/walkthrough/internal/scenario"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// jsonDocument is the top-level shape of a json report.
type jsonDocument struct {
	Version string                `json:"version"`
	Reports []*scenario.RunReport `json:"reports"`
	Totals  jsonTotals            `json:"totals"`
}

type jsonTotals struct {
	scenario.Counts
	Scenarios int `json:"scenarios"`
	Aborted   int `json:"aborted"`
}

// JSONReporter buffers reports and writes a single document on Close.
type JSONReporter struct {
	writer  io.WriteCloser
	version string

	mu      sync.Mutex
	reports []*scenario.RunReport
}

func NewJSONReporter(writer io.WriteCloser, toolVersion string) *JSONReporter {
	return &JSONReporter{writer: writer, version: toolVersion, reports: []*scenario.RunReport{}}
}

func (r *JSONReporter) Write(report *scenario.RunReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
	return nil
}

func (r *JSONReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc := jsonDocument{Version: r.version, Reports: r.reports}
	for _, rep := range r.reports {
		c := rep.Counts()
		doc.Totals.Pass += c.Pass
		doc.Totals.Fail += c.Fail
		doc.Totals.Warn += c.Warn
		if rep.Aborted {
			doc.Totals.Aborted++
		}
	}
	doc.Totals.Scenarios = len(r.reports)

	data, encodeErr := json.MarshalIndent(doc, "", "  ")
	if encodeErr == nil {
		_, encodeErr = r.writer.Write(append(data, '\n'))
	}
	closeErr := r.writer.Close()

	if encodeErr != nil {
		return fmt.Errorf("failed to encode json report: %w", encodeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close output writer: %w", closeErr)
	}
	return nil
}
