package wizard

import (
	"testing"

	"github.com/charmbracelet/huh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackwise-dev/stackwise/internal/manifest"
)

func withFormRunner(t *testing.T, fn func(form *huh.Form) error) {
	t.Helper()
	previous := runFormFunc
	runFormFunc = fn
	t.Cleanup(func() { runFormFunc = previous })
}

func testSet() manifest.Set {
	return manifest.Set{
		"core":     {ID: "core", Required: true},
		"commands": {ID: "commands", Recommended: true, Description: "slash commands"},
		"mcp":      {ID: "mcp"},
	}
}

func TestSelectComponents_DefaultsIncludeRequiredAndRecommended(t *testing.T) {
	withFormRunner(t, func(form *huh.Form) error { return nil })

	chosen, err := SelectComponents(testSet(), "/home/u/.stackwise")
	require.NoError(t, err)
	assert.Equal(t, []string{"commands", "core"}, chosen)
}

func TestSelectComponents_UserAbortDuringSelection(t *testing.T) {
	withFormRunner(t, func(form *huh.Form) error { return huh.ErrUserAborted })

	_, err := SelectComponents(testSet(), "/root")
	require.ErrorIs(t, err, ErrAborted)
}

func TestSelectComponents_RequiredOnlySkipsSelection(t *testing.T) {
	forms := 0
	withFormRunner(t, func(form *huh.Form) error {
		forms++
		return nil
	})

	set := manifest.Set{"core": {ID: "core", Required: true}}
	chosen, err := SelectComponents(set, "/root")
	require.NoError(t, err)
	assert.Equal(t, []string{"core"}, chosen)
	assert.Equal(t, 1, forms, "only the confirmation form should run")
}

func TestSelectComponents_AbortDuringConfirmation(t *testing.T) {
	forms := 0
	withFormRunner(t, func(form *huh.Form) error {
		forms++
		if forms == 2 {
			return huh.ErrUserAborted
		}
		return nil
	})

	_, err := SelectComponents(testSet(), "/root")
	require.ErrorIs(t, err, ErrAborted)
}

func TestSelectComponents_EmptySetErrors(t *testing.T) {
	_, err := SelectComponents(manifest.Set{}, "/root")
	require.Error(t, err)
}
