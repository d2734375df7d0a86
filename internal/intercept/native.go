package intercept

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/stackwise-dev/stackwise/internal/fsutil"
	"github.com/stackwise-dev/stackwise/internal/messages"
	"github.com/stackwise-dev/stackwise/internal/policy"
)

// NativeBackend serves tool requests directly against the local filesystem.
// It is the fallback path and must work with no external process. Writes and
// edits are validated against policy before touching disk.
type NativeBackend struct {
	checker *policy.Checker
}

// NewNativeBackend creates the native executor. checker may be nil, in which
// case writes are unrestricted (trusted local use).
func NewNativeBackend(checker *policy.Checker) *NativeBackend {
	return &NativeBackend{checker: checker}
}

// Name identifies the backend.
func (n *NativeBackend) Name() string { return "native" }

// Invoke executes the tool locally.
func (n *NativeBackend) Invoke(ctx context.Context, tool string, args map[string]any) (*Payload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch tool {
	case ToolRead:
		return n.readFile(args)
	case ToolWrite:
		return n.writeFile(args)
	case ToolEdit:
		return n.editFile(args)
	case ToolList:
		return n.listDirectory(args)
	case ToolGlob:
		return n.glob(args)
	}
	return nil, fmt.Errorf(messages.InterceptUnknownToolFmt, tool)
}

func stringArg(tool string, args map[string]any, key string) (string, error) {
	value, ok := args[key].(string)
	if !ok || value == "" {
		return "", fmt.Errorf(messages.InterceptMissingArgFmt, tool, key)
	}
	return value, nil
}

func (n *NativeBackend) checkWrite(path string) error {
	if n.checker == nil {
		return nil
	}
	return n.checker.CheckWrite(path).Err()
}

func (n *NativeBackend) readFile(args map[string]any) (*Payload, error) {
	path, err := stringArg(ToolRead, args, "file_path")
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &Payload{Text: string(data)}, nil
}

func (n *NativeBackend) writeFile(args map[string]any) (*Payload, error) {
	path, err := stringArg(ToolWrite, args, "file_path")
	if err != nil {
		return nil, err
	}
	content, err := stringArg(ToolWrite, args, "content")
	if err != nil {
		return nil, err
	}
	if err := n.checkWrite(path); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if err := fsutil.WriteFileAtomic(path, []byte(content), 0o644); err != nil {
		return nil, err
	}
	return &Payload{Text: fmt.Sprintf("wrote %d bytes to %s", len(content), path)}, nil
}

func (n *NativeBackend) editFile(args map[string]any) (*Payload, error) {
	path, err := stringArg(ToolEdit, args, "file_path")
	if err != nil {
		return nil, err
	}
	oldText, err := stringArg(ToolEdit, args, "old_string")
	if err != nil {
		return nil, err
	}
	newText, ok := args["new_string"].(string)
	if !ok {
		return nil, fmt.Errorf(messages.InterceptMissingArgFmt, ToolEdit, "new_string")
	}
	if err := n.checkWrite(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	content := string(data)
	if !strings.Contains(content, oldText) {
		return nil, fmt.Errorf("old_string not found in %s", path)
	}
	updated := strings.Replace(content, oldText, newText, 1)
	if err := fsutil.WriteFileAtomic(path, []byte(updated), 0o644); err != nil {
		return nil, err
	}
	return &Payload{Text: fmt.Sprintf("edited %s", path)}, nil
}

func (n *NativeBackend) listDirectory(args map[string]any) (*Payload, error) {
	path, err := stringArg(ToolList, args, "path")
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return &Payload{Text: strings.Join(names, "\n")}, nil
}

func (n *NativeBackend) glob(args map[string]any) (*Payload, error) {
	pattern, err := stringArg(ToolGlob, args, "pattern")
	if err != nil {
		return nil, err
	}
	base, _ := args["path"].(string)
	if base != "" {
		pattern = filepath.Join(base, pattern)
	}
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return &Payload{Text: strings.Join(matches, "\n")}, nil
}
