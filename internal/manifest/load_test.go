package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, dir string, name string, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const coreManifest = `
id = "core"
version = "1.0.0"
description = "Framework core documents"
required = true
targets = ["core"]

[[files]]
source = "core/FRAMEWORK.md"
destination = "FRAMEWORK.md"
`

func TestLoadSingleManifest(t *testing.T) {
	dir := t.TempDir()
	path := writeManifest(t, dir, "core.toml", coreManifest)

	set, err := Load(RealSystem{}, dir)
	require.NoError(t, err)
	require.Len(t, set, 1)

	m := set["core"]
	require.NotNil(t, m)
	assert.Equal(t, "1.0.0", m.Version)
	assert.True(t, m.Required)
	assert.Equal(t, path, m.SourceFile())
	assert.Equal(t, []Target{TargetCore}, m.Targets)
	require.Len(t, m.Files, 1)
	assert.Equal(t, "FRAMEWORK.md", m.Files[0].Destination)
}

func TestLoadResolvesDependenciesAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "core.toml", coreManifest)
	writeManifest(t, dir, "commands.toml", `
id = "commands"
version = "1.0.0"
dependencies = ["core"]
targets = ["commands"]

[[files]]
source = "commands/build.md"
destination = "commands/build.md"
`)

	set, err := Load(RealSystem{}, dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"core", "commands"}, set.IDs())
}

func TestLoadFailures(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantSub string
	}{
		{
			name:    "missing id",
			body:    "version = \"1.0.0\"\ntargets = [\"core\"]\n",
			wantSub: "id is required",
		},
		{
			name:    "missing version",
			body:    "id = \"x\"\ntargets = [\"core\"]\n",
			wantSub: "version is required",
		},
		{
			name:    "unknown target",
			body:    "id = \"x\"\nversion = \"1.0.0\"\ntargets = [\"plugins\"]\n",
			wantSub: "unknown install target",
		},
		{
			name:    "no targets",
			body:    "id = \"x\"\nversion = \"1.0.0\"\n",
			wantSub: "install target is required",
		},
		{
			name:    "unresolved dependency",
			body:    "id = \"x\"\nversion = \"1.0.0\"\ntargets = [\"core\"]\ndependencies = [\"ghost\"]\n",
			wantSub: "no loaded manifest provides",
		},
		{
			name:    "self dependency",
			body:    "id = \"x\"\nversion = \"1.0.0\"\ntargets = [\"core\"]\ndependencies = [\"x\"]\n",
			wantSub: "depends on itself",
		},
		{
			name:    "absolute destination",
			body:    "id = \"x\"\nversion = \"1.0.0\"\ntargets = [\"core\"]\n[[files]]\nsource = \"a\"\ndestination = \"/etc/passwd\"\n",
			wantSub: "must be relative",
		},
		{
			name:    "incomplete module",
			body:    "id = \"x\"\nversion = \"1.0.0\"\ntargets = [\"core\"]\n[module]\nname = \"settings-merge\"\n",
			wantSub: "module declarations require",
		},
		{
			name:    "malformed toml",
			body:    "id = [broken",
			wantSub: "decode manifest",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			writeManifest(t, dir, "bad.toml", tt.body)

			_, err := Load(RealSystem{}, dir)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantSub)
		})
	}
}

func TestLoadDuplicateID(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "a.toml", coreManifest)
	writeManifest(t, dir, "b.toml", coreManifest)

	_, err := Load(RealSystem{}, dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "declared in both")
}

func TestLoadEmptyDirFails(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(RealSystem{}, dir)
	require.Error(t, err)

	var merr *Error
	require.ErrorAs(t, err, &merr)
}

func TestLoadRequiresArguments(t *testing.T) {
	_, err := Load(nil, "x")
	require.Error(t, err)

	_, err = Load(RealSystem{}, "  ")
	require.Error(t, err)
}
