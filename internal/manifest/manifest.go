// Package manifest loads declarative component descriptors from a
// distribution directory. The store is pure data access: it parses, validates
// field-level shape, and detects dependency ids that resolve to no loaded
// manifest. Cycle detection is the resolver's concern.
package manifest

import (
	"fmt"

	"github.com/stackwise-dev/stackwise/internal/messages"
)

// Target identifies where a component's payload belongs in the install root.
type Target string

// Known install targets.
const (
	TargetCore     Target = "core"
	TargetCommands Target = "commands"
	TargetSettings Target = "settings"
	TargetMCP      Target = "mcp"
)

func knownTarget(t Target) bool {
	switch t {
	case TargetCore, TargetCommands, TargetSettings, TargetMCP:
		return true
	}
	return false
}

// FileMapping maps a payload file in the distribution directory to its
// destination relative to the install root.
type FileMapping struct {
	Source      string `toml:"source"`
	Destination string `toml:"destination"`
}

// ModuleRef names a statically registered post-install handler together with
// the payload file it operates on and the expected sha256 of that file.
// Handlers are looked up by name in a fixed registry; there is no dynamic
// code loading.
type ModuleRef struct {
	Name   string `toml:"name"`
	Path   string `toml:"path"`
	SHA256 string `toml:"sha256"`
}

// Manifest describes one installable component. Instances are immutable once
// loaded; the store hands out read-only views.
type Manifest struct {
	ID           string        `toml:"id"`
	Version      string        `toml:"version"`
	Description  string        `toml:"description"`
	Required     bool          `toml:"required"`
	Recommended  bool          `toml:"recommended"`
	Dependencies []string      `toml:"dependencies"`
	Files        []FileMapping `toml:"files"`
	Targets      []Target      `toml:"targets"`
	PostCopy     []string      `toml:"post_copy"`
	Module       *ModuleRef    `toml:"module"`

	source string
}

// SourceFile returns the manifest file this component was loaded from.
func (m *Manifest) SourceFile() string { return m.source }

// Set is the loaded manifest collection keyed by component id.
type Set map[string]*Manifest

// IDs returns every loaded component id in unspecified order.
func (s Set) IDs() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	return out
}

// Error reports a malformed or inconsistent manifest source.
type Error struct {
	Source string
	Reason string
}

func (e *Error) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("%s: %s", messages.ManifestLoadErrPrefix, e.Reason)
	}
	return fmt.Sprintf("%s %s: %s", messages.ManifestLoadErrPrefix, e.Source, e.Reason)
}

func newError(source string, format string, args ...any) *Error {
	return &Error{Source: source, Reason: fmt.Sprintf(format, args...)}
}
