package intercept

import (
	"context"
	"fmt"
	"os/exec"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/stackwise-dev/stackwise/internal/messages"
)

// toolMapping translates canonical tool names to the fast backend's MCP tool
// names.
var toolMapping = map[string]string{
	ToolRead:  "read_file",
	ToolWrite: "write_file",
	ToolEdit:  "edit_file",
	ToolList:  "list_directory",
	ToolGlob:  "search_files",
}

// MCPBackend invokes tools on an MCP server spawned as a subprocess. The
// session is established lazily on first use and reused afterwards.
type MCPBackend struct {
	name    string
	argv    []string
	version string

	mu      sync.Mutex
	session *mcp.ClientSession
}

// NewMCPBackend creates a backend that runs the given server command.
func NewMCPBackend(name string, argv []string, version string) *MCPBackend {
	return &MCPBackend{name: name, argv: argv, version: version}
}

// Name identifies the backend.
func (b *MCPBackend) Name() string { return b.name }

func (b *MCPBackend) connect(ctx context.Context) (*mcp.ClientSession, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session != nil {
		return b.session, nil
	}
	if len(b.argv) == 0 {
		return nil, fmt.Errorf(messages.InterceptBackendSpawnFmt, b.name, ErrBackendUnavailable)
	}
	client := mcp.NewClient(&mcp.Implementation{
		Name:    "stackwise",
		Version: b.version,
	}, nil)
	cmd := exec.Command(b.argv[0], b.argv[1:]...)
	session, err := client.Connect(ctx, &mcp.CommandTransport{Command: cmd}, nil)
	if err != nil {
		return nil, fmt.Errorf(messages.InterceptBackendSpawnFmt, b.name, err)
	}
	b.session = session
	return session, nil
}

// Invoke calls the mapped MCP tool and flattens its text content.
func (b *MCPBackend) Invoke(ctx context.Context, tool string, args map[string]any) (*Payload, error) {
	mapped, ok := toolMapping[tool]
	if !ok {
		return nil, fmt.Errorf(messages.InterceptUnknownToolFmt, tool)
	}
	session, err := b.connect(ctx)
	if err != nil {
		return nil, err
	}
	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      mapped,
		Arguments: args,
	})
	if err != nil {
		return nil, fmt.Errorf(messages.InterceptBackendFailedFmt, mapped, err)
	}
	if result.IsError {
		return nil, fmt.Errorf(messages.InterceptBackendFailedFmt, mapped, flattenError(result))
	}
	text := flattenText(result)
	if text == "" {
		return nil, fmt.Errorf(messages.InterceptEmptyResultFmt, mapped)
	}
	return &Payload{Text: text}, nil
}

// Close tears down the MCP session.
func (b *MCPBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return nil
	}
	err := b.session.Close()
	b.session = nil
	return err
}

func flattenText(result *mcp.CallToolResult) string {
	var text string
	for _, content := range result.Content {
		if tc, ok := content.(*mcp.TextContent); ok {
			text += tc.Text
		}
	}
	return text
}

func flattenError(result *mcp.CallToolResult) error {
	if text := flattenText(result); text != "" {
		return fmt.Errorf("%s", text)
	}
	return ErrBackendUnavailable
}
