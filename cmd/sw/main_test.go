package main

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withExecute(t *testing.T, fn func(args []string, stdout io.Writer, stderr io.Writer) error) {
	t.Helper()
	previous := executeFunc
	executeFunc = fn
	t.Cleanup(func() { executeFunc = previous })
}

func TestRunMain_SilentExitErrorMapsToCode(t *testing.T) {
	withExecute(t, func([]string, io.Writer, io.Writer) error {
		return &SilentExitError{Code: 3}
	})

	var code int
	var stderr bytes.Buffer
	runMain([]string{"sw", "install"}, io.Discard, &stderr, func(c int) { code = c })
	assert.Equal(t, 3, code)
	assert.Empty(t, stderr.String(), "silent exit must not emit error output")
}

func TestRunMain_GenericErrorPrintsAndExitsOne(t *testing.T) {
	withExecute(t, func([]string, io.Writer, io.Writer) error {
		return errors.New("boom")
	})

	var code int
	var stderr bytes.Buffer
	runMain([]string{"sw"}, io.Discard, &stderr, func(c int) { code = c })
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "boom")
}

func TestRunMain_SuccessDoesNotExit(t *testing.T) {
	withExecute(t, func([]string, io.Writer, io.Writer) error { return nil })

	exited := false
	runMain([]string{"sw"}, io.Discard, io.Discard, func(int) { exited = true })
	assert.False(t, exited)
}

func TestExecute_UnknownCommandErrors(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := execute([]string{"sw", "no-such-command"}, &stdout, &stderr)
	require.Error(t, err)
}

func TestExecute_VersionFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := execute([]string{"sw", "--version"}, &stdout, &stderr)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), Version)
}
