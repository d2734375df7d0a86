package intercept

import (
	"context"
	"errors"
)

// Canonical tool names accepted by Route.
const (
	ToolRead  = "Read"
	ToolWrite = "Write"
	ToolEdit  = "Edit"
	ToolList  = "LS"
	ToolGlob  = "Glob"
)

// ErrBackendUnavailable reports that the fast backend could not serve a
// request. The interceptor recovers from it via the native path.
var ErrBackendUnavailable = errors.New("fast backend unavailable")

// Payload is a successful tool result.
type Payload struct {
	Text string
}

// Backend serves tool invocations. Both the fast MCP client and the native
// executor implement it, so the interceptor treats them uniformly.
type Backend interface {
	// Name identifies the backend for state persistence and logging.
	Name() string
	Invoke(ctx context.Context, tool string, args map[string]any) (*Payload, error)
}

func knownTool(tool string) bool {
	switch tool {
	case ToolRead, ToolWrite, ToolEdit, ToolList, ToolGlob:
		return true
	}
	return false
}
