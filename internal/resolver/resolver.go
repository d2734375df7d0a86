// Package resolver turns requested component ids plus their manifests into a
// single dependency-ordered installation plan. Cycles and missing
// dependencies fail resolution; no partial plan is ever returned.
package resolver

import (
	"fmt"
	"strings"

	"github.com/stackwise-dev/stackwise/internal/manifest"
)

// Plan is an ordered sequence of manifests such that every component's
// declared dependencies appear earlier in the sequence. A plan never contains
// the same component twice.
type Plan []*manifest.Manifest

// IDs returns the plan's component ids in order.
func (p Plan) IDs() []string {
	out := make([]string, len(p))
	for i, m := range p {
		out[i] = m.ID
	}
	return out
}

// CycleError reports a dependency cycle. IDs holds the cycle's member ids in
// discovery order.
type CycleError struct {
	IDs []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle between %s", strings.Join(e.IDs, " -> "))
}

// MissingDependencyError reports a requested or depended-on id that resolves
// to no loaded manifest.
type MissingDependencyError struct {
	ID         string
	RequiredBy string
}

func (e *MissingDependencyError) Error() string {
	if e.RequiredBy == "" {
		return fmt.Sprintf("component %s is not available", e.ID)
	}
	return fmt.Sprintf("component %s required by %s is not available", e.ID, e.RequiredBy)
}

// mark is the per-vertex DFS state.
type mark uint8

const (
	unvisited mark = iota
	onStack
	done
)

// Resolve computes the installation plan for the requested ids. Components
// with no dependency relationship keep request order first, then the order
// they were discovered through dependency edges, so the result is
// deterministic for a given manifest set and request order. Each vertex is
// expanded once, so resolution is O(V+E).
func Resolve(requested []string, manifests manifest.Set) (Plan, error) {
	index := make(map[string]int, len(manifests))
	arena := make([]*manifest.Manifest, 0, len(manifests))
	lookup := func(id string) (int, bool) {
		if i, ok := index[id]; ok {
			return i, true
		}
		m, ok := manifests[id]
		if !ok {
			return 0, false
		}
		index[id] = len(arena)
		arena = append(arena, m)
		return index[id], true
	}

	marks := make([]mark, 0, len(manifests))
	ensureMark := func(i int) {
		for len(marks) <= i {
			marks = append(marks, unvisited)
		}
	}

	var plan Plan
	var stack []int

	var visit func(i int) error
	visit = func(i int) error {
		ensureMark(i)
		switch marks[i] {
		case done:
			return nil
		case onStack:
			return cycleFrom(arena, stack, i)
		}
		marks[i] = onStack
		stack = append(stack, i)
		for _, dep := range arena[i].Dependencies {
			j, ok := lookup(dep)
			if !ok {
				return &MissingDependencyError{ID: dep, RequiredBy: arena[i].ID}
			}
			if err := visit(j); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		marks[i] = done
		plan = append(plan, arena[i])
		return nil
	}

	for _, id := range requested {
		i, ok := lookup(id)
		if !ok {
			return nil, &MissingDependencyError{ID: id}
		}
		if err := visit(i); err != nil {
			return nil, err
		}
	}
	return plan, nil
}

// cycleFrom extracts the cycle members from the active recursion stack,
// starting at the first occurrence of the revisited vertex, preserving
// discovery order.
func cycleFrom(arena []*manifest.Manifest, stack []int, revisited int) error {
	start := 0
	for i, v := range stack {
		if v == revisited {
			start = i
			break
		}
	}
	ids := make([]string, 0, len(stack)-start)
	for _, v := range stack[start:] {
		ids = append(ids, arena[v].ID)
	}
	return &CycleError{IDs: ids}
}
