// Package artifacts persists failure screenshots under a per-run directory.
package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// ScreenshotStore writes screenshots to Dir/<scenario>-<run>/step-NN.png.
type ScreenshotStore struct {
	Dir string
}

func NewScreenshotStore(dir string) *ScreenshotStore {
	return &ScreenshotStore{Dir: dir}
}

// SaveScreenshot writes data and returns the file path.
func (s *ScreenshotStore) SaveScreenshot(runID, scenarioName string, step int, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty screenshot for step %d", step)
	}
	dir := filepath.Join(s.Dir, fmt.Sprintf("%s-%s", sanitize(scenarioName), shortID(runID)))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create artifact directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("step-%02d.png", step))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write screenshot: %w", err)
	}
	return path, nil
}

// sanitize keeps names filesystem-safe.
func sanitize(name string) string {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, name)
	if clean == "" {
		return "scenario"
	}
	return clean
}

func shortID(runID string) string {
	if len(runID) > 8 {
		return runID[:8]
	}
	if runID == "" {
		return "run"
	}
	return runID
}
