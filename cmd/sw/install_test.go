package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackwise-dev/stackwise/internal/manifest"
)

func withInteractive(t *testing.T, interactive bool) {
	t.Helper()
	previous := isInteractiveFunc
	isInteractiveFunc = func() bool { return interactive }
	t.Cleanup(func() { isInteractiveFunc = previous })
}

func withSelectComponents(t *testing.T, fn func(manifest.Set, string) ([]string, error)) {
	t.Helper()
	previous := selectComponentsFunc
	selectComponentsFunc = fn
	t.Cleanup(func() { selectComponentsFunc = previous })
}

func writeManifest(t *testing.T, dist string, name string, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dist, name), []byte(body), 0o644))
}

func seedDist(t *testing.T) string {
	t.Helper()
	dist := t.TempDir()
	writeManifest(t, dist, "core.toml", `
id = "core"
version = "1.0.0"
required = true
targets = ["core"]

[[files]]
source = "payload/base.md"
destination = "core/base.md"
`)
	writeManifest(t, dist, "commands.toml", `
id = "commands"
version = "1.0.0"
recommended = true
dependencies = ["core"]
targets = ["commands"]

[[files]]
source = "payload/review.md"
destination = "commands/review.md"
`)
	require.NoError(t, os.MkdirAll(filepath.Join(dist, "payload"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dist, "payload", "base.md"), []byte("base\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dist, "payload", "review.md"), []byte("review\n"), 0o644))
	return dist
}

func TestInstallCommand_InstallsRequestedComponents(t *testing.T) {
	dist := seedDist(t)
	root := t.TempDir()

	var stdout, stderr bytes.Buffer
	err := execute([]string{"sw", "install", "--root", root, "--dist", dist, "commands"}, &stdout, &stderr)
	require.NoError(t, err, "stderr: %s", stderr.String())

	data, err := os.ReadFile(filepath.Join(root, "core", "base.md"))
	require.NoError(t, err)
	assert.Equal(t, "base\n", string(data))
	data, err = os.ReadFile(filepath.Join(root, "commands", "review.md"))
	require.NoError(t, err)
	assert.Equal(t, "review\n", string(data))

	assert.Contains(t, stdout.String(), "Installed 2 of 2 components")
	assert.Contains(t, stdout.String(), "Result: success")
}

func TestInstallCommand_PartialFailureExitsWithThree(t *testing.T) {
	dist := seedDist(t)
	// Break the commands payload so only core installs.
	require.NoError(t, os.Remove(filepath.Join(dist, "payload", "review.md")))
	root := t.TempDir()

	var stdout, stderr bytes.Buffer
	err := execute([]string{"sw", "install", "--root", root, "--dist", dist, "--all"}, &stdout, &stderr)
	require.Error(t, err)
	var silent *SilentExitError
	require.ErrorAs(t, err, &silent)
	assert.Equal(t, 3, silent.Code)
	assert.Contains(t, stdout.String(), "Result: partial")
}

func TestInstallCommand_RecordCommandShowsLastRun(t *testing.T) {
	dist := seedDist(t)
	root := t.TempDir()

	var stdout, stderr bytes.Buffer
	require.NoError(t, execute([]string{"sw", "install", "--root", root, "--dist", dist, "core"}, &stdout, &stderr))

	stdout.Reset()
	require.NoError(t, execute([]string{"sw", "record", "--root", root}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "result success")
	assert.Contains(t, stdout.String(), "core")
}

func TestInstallCommand_RollbackRestoresPreviousState(t *testing.T) {
	dist := seedDist(t)
	root := t.TempDir()

	// Pre-existing file the install overwrites.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "core"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "core", "base.md"), []byte("user content\n"), 0o644))

	var stdout, stderr bytes.Buffer
	require.NoError(t, execute([]string{"sw", "install", "--root", root, "--dist", dist, "core"}, &stdout, &stderr))

	// Find the retained checkpoint and roll it back.
	stdout.Reset()
	require.NoError(t, execute([]string{"sw", "checkpoints", "--root", root}, &stdout, &stderr))
	fields := bytes.Fields(stdout.Bytes())
	require.NotEmpty(t, fields)
	checkpointID := string(fields[0])

	stdout.Reset()
	require.NoError(t, execute([]string{"sw", "rollback", "--root", root, checkpointID}, &stdout, &stderr))

	data, err := os.ReadFile(filepath.Join(root, "core", "base.md"))
	require.NoError(t, err)
	assert.Equal(t, "user content\n", string(data))
}

func TestSelectInstallIDs(t *testing.T) {
	set := manifest.Set{
		"core":     {ID: "core", Required: true},
		"commands": {ID: "commands", Recommended: true},
		"mcp":      {ID: "mcp"},
	}

	ids, err := selectInstallIDs([]string{"mcp"}, set, "/r", false, false, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"mcp"}, ids)

	ids, err = selectInstallIDs(nil, set, "/r", true, false, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"commands", "core", "mcp"}, ids)

	ids, err = selectInstallIDs(nil, set, "/r", false, true, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"commands", "core"}, ids)

	ids, err = selectInstallIDs(nil, set, "/r", false, false, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"core"}, ids)

	_, err = selectInstallIDs([]string{"missing"}, set, "/r", false, false, false)
	require.ErrorContains(t, err, "missing")
}

func TestSelectInstallIDs_NonInteractiveWithoutFlagsErrors(t *testing.T) {
	withInteractive(t, false)
	set := manifest.Set{"core": {ID: "core", Required: true}}

	_, err := selectInstallIDs(nil, set, "/r", false, false, false)
	require.Error(t, err)
}

func TestSelectInstallIDs_InteractiveUsesWizard(t *testing.T) {
	withInteractive(t, true)
	withSelectComponents(t, func(set manifest.Set, root string) ([]string, error) {
		assert.Equal(t, "/r", root)
		return []string{"core"}, nil
	})

	set := manifest.Set{"core": {ID: "core", Required: true}}
	ids, err := selectInstallIDs(nil, set, "/r", false, false, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"core"}, ids)
}

func TestResolveRoot_DefaultsToHomeDotStackwise(t *testing.T) {
	root, err := resolveRoot("")
	require.NoError(t, err)
	assert.Equal(t, ".stackwise", filepath.Base(root))

	explicit := t.TempDir()
	root, err = resolveRoot(explicit)
	require.NoError(t, err)
	assert.Equal(t, explicit, root)
}

func TestInterceptCommand_RoutesNativeRead(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "note.txt")
	require.NoError(t, os.WriteFile(target, []byte("hello\n"), 0o644))

	request := fmt.Sprintf(`{"tool":"Read","arguments":{"file_path":%q}}`, target)

	cmd := newRootCmd()
	cmd.SetArgs([]string{"intercept", "--root", root, "--threshold", "1", "--timeout", "100ms"})
	var stdout, stderr bytes.Buffer
	cmd.SetIn(bytes.NewBufferString(request))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)

	require.NoError(t, cmd.Execute(), "stderr: %s", stderr.String())
	// No backend command configured: the fast path fails and the native
	// fallback serves the read.
	assert.Contains(t, stdout.String(), "hello")
	assert.Contains(t, stdout.String(), "fallback")
}
