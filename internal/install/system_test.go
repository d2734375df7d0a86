package install

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackwise-dev/stackwise/internal/testutil"
)

func TestExecRunner_RunsArgvInDir(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteStubExpectArg(t, dir, "post-setup", "--quiet")
	t.Setenv("PATH", dir)

	runner := ExecRunner{}
	require.NoError(t, runner.Run(context.Background(), dir, []string{"post-setup", "--quiet"}))

	err := runner.Run(context.Background(), dir, []string{"post-setup", "--loud"})
	require.Error(t, err)
}

func TestExecRunner_NonZeroExitSurfaces(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteStubWithExit(t, dir, "failing-hook", 2)
	t.Setenv("PATH", dir)

	err := ExecRunner{}.Run(context.Background(), dir, []string{"failing-hook"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exit status 2")
}

func TestExecRunner_EmptyCommand(t *testing.T) {
	require.Error(t, ExecRunner{}.Run(context.Background(), t.TempDir(), nil))
}
