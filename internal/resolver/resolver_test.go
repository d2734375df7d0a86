package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackwise-dev/stackwise/internal/manifest"
)

func manifestsFor(deps map[string][]string) manifest.Set {
	set := make(manifest.Set, len(deps))
	for id, d := range deps {
		set[id] = &manifest.Manifest{
			ID:           id,
			Version:      "1.0.0",
			Dependencies: d,
			Targets:      []manifest.Target{manifest.TargetCore},
		}
	}
	return set
}

func TestResolveDependenciesPrecedeDependents(t *testing.T) {
	set := manifestsFor(map[string][]string{
		"A": nil,
		"B": {"A"},
		"C": {"B"},
	})

	plan, err := Resolve([]string{"C", "A", "B"}, set)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, plan.IDs())
}

func TestResolvePreservesRequestOrderForIndependents(t *testing.T) {
	set := manifestsFor(map[string][]string{
		"core":     nil,
		"commands": {"core"},
		"settings": {"core"},
		"mcp":      {"core"},
	})

	plan, err := Resolve([]string{"settings", "mcp", "commands"}, set)
	require.NoError(t, err)
	assert.Equal(t, []string{"core", "settings", "mcp", "commands"}, plan.IDs())
}

func TestResolveIsDeterministic(t *testing.T) {
	set := manifestsFor(map[string][]string{
		"a": {"shared"},
		"b": {"shared"},
		"shared": nil,
	})

	first, err := Resolve([]string{"a", "b"}, set)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Resolve([]string{"a", "b"}, set)
		require.NoError(t, err)
		assert.Equal(t, first.IDs(), again.IDs())
	}
}

func TestResolveSharedSubtreeVisitedOnce(t *testing.T) {
	// Diamond: both branches share a dependency; it must appear exactly once.
	set := manifestsFor(map[string][]string{
		"top":   {"left", "right"},
		"left":  {"base"},
		"right": {"base"},
		"base":  nil,
	})

	plan, err := Resolve([]string{"top"}, set)
	require.NoError(t, err)
	assert.Equal(t, []string{"base", "left", "right", "top"}, plan.IDs())

	seen := map[string]int{}
	for _, id := range plan.IDs() {
		seen[id]++
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, "component %s appears %d times", id, n)
	}
}

func TestResolveCycle(t *testing.T) {
	set := manifestsFor(map[string][]string{
		"X": {"Y"},
		"Y": {"X"},
	})

	plan, err := Resolve([]string{"X"}, set)
	assert.Nil(t, plan)

	var cerr *CycleError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, []string{"X", "Y"}, cerr.IDs)
}

func TestResolveDeepCycleReportsMembersInDiscoveryOrder(t *testing.T) {
	set := manifestsFor(map[string][]string{
		"entry": {"a"},
		"a":     {"b"},
		"b":     {"c"},
		"c":     {"a"},
	})

	_, err := Resolve([]string{"entry"}, set)
	var cerr *CycleError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, []string{"a", "b", "c"}, cerr.IDs)
}

func TestResolveMissingRequested(t *testing.T) {
	set := manifestsFor(map[string][]string{"A": nil})

	_, err := Resolve([]string{"ghost"}, set)
	var merr *MissingDependencyError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, "ghost", merr.ID)
	assert.Empty(t, merr.RequiredBy)
}

func TestResolveMissingTransitiveDependency(t *testing.T) {
	// The manifest store normally rejects unresolved ids, but the resolver
	// still guards against sets assembled programmatically.
	set := manifest.Set{
		"A": {ID: "A", Version: "1.0.0", Dependencies: []string{"ghost"}},
	}

	_, err := Resolve([]string{"A"}, set)
	var merr *MissingDependencyError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, "ghost", merr.ID)
	assert.Equal(t, "A", merr.RequiredBy)
}

func TestResolveEmptyRequest(t *testing.T) {
	plan, err := Resolve(nil, manifestsFor(map[string][]string{"A": nil}))
	require.NoError(t, err)
	assert.Empty(t, plan)
}
