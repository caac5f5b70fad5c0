package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/walkthrough/cmd"
)

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitOK, exitCode(nil))
	assert.Equal(t, exitFailure, exitCode(cmd.ErrScenarioFailed))
	assert.Equal(t, exitFailure, exitCode(errors.New("bad config")))
	assert.Equal(t, exitInterrupted, exitCode(fmt.Errorf("run interrupted: %w", context.Canceled)))
}

func mockExit(t *testing.T) *int {
	t.Helper()
	code := -1
	osExit = func(c int) { code = c }
	t.Cleanup(func() { osExit = os.Exit })
	return &code
}

func TestHandlePanic_WritesLog(t *testing.T) {
	code := mockExit(t)
	var written []byte
	var path string
	osWriteFile = func(name string, data []byte, _ os.FileMode) error {
		path, written = name, data
		return nil
	}
	t.Cleanup(func() { osWriteFile = os.WriteFile })

	func() {
		defer handlePanic()
		panic("session map corrupted")
	}()

	assert.Equal(t, exitPanic, *code)
	assert.Equal(t, panicLogFile, path)
	assert.Contains(t, string(written), "panic: session map corrupted")
	assert.Contains(t, string(written), "goroutine")
}

func TestHandlePanic_LogWriteFails(t *testing.T) {
	code := mockExit(t)
	osWriteFile = func(string, []byte, os.FileMode) error { return errors.New("read-only fs") }
	t.Cleanup(func() { osWriteFile = os.WriteFile })

	require.NotPanics(t, func() {
		defer handlePanic()
		panic("boom")
	})
	assert.Equal(t, exitPanic, *code)
}

func TestHandlePanic_NoPanic(t *testing.T) {
	code := mockExit(t)
	func() {
		defer handlePanic()
	}()
	assert.Equal(t, -1, *code, "exit is not called without a panic")
}

func TestMain_UsesExecuteResult(t *testing.T) {
	code := mockExit(t)
	execute = func(context.Context) error { return cmd.ErrScenarioFailed }
	t.Cleanup(func() { execute = cmd.Execute })

	main()
	assert.Equal(t, exitFailure, *code)
}
