package install

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/stackwise-dev/stackwise/internal/messages"
)

// HandlerFunc applies a component's configuration payload to the install
// root. Handlers live in a fixed registry; components reference them by name
// and the payload checksum is verified before a handler ever runs.
type HandlerFunc func(sys System, root string, payload []byte) error

type handlerSpec struct {
	fn HandlerFunc
	// target is the file the handler rewrites, relative to the install root.
	target string
}

var handlers = map[string]handlerSpec{
	"settings-merge": {fn: mergeJSONHandler("settings.json"), target: "settings.json"},
	"mcp-config":     {fn: mergeJSONHandler(filepath.Join("mcp", "servers.json")), target: filepath.Join("mcp", "servers.json")},
}

func lookupHandler(name string) (handlerSpec, error) {
	spec, ok := handlers[name]
	if !ok {
		return handlerSpec{}, fmt.Errorf(messages.InstallUnknownHandlerFmt, name)
	}
	return spec, nil
}

// mergeJSONHandler merges a JSON object payload into relPath under the
// install root. Nested objects merge recursively; scalar and array values
// from the payload win. Keys never present in the payload are left alone, so
// user-added configuration survives reinstalls.
func mergeJSONHandler(relPath string) HandlerFunc {
	return func(sys System, root string, payload []byte) error {
		var incoming map[string]any
		if err := json.Unmarshal(payload, &incoming); err != nil {
			return fmt.Errorf("parse payload: %w", err)
		}

		dest := filepath.Join(root, relPath)
		current := map[string]any{}
		existing, err := sys.ReadFile(dest)
		switch {
		case err == nil:
			if err := json.Unmarshal(existing, &current); err != nil {
				return fmt.Errorf("parse %s: %w", dest, err)
			}
		case errors.Is(err, os.ErrNotExist):
			// First install; start from an empty document.
		default:
			return fmt.Errorf(messages.InstallFailedReadFmt, dest, err)
		}

		merged := mergeJSON(current, incoming)
		data, err := json.MarshalIndent(merged, "", "  ")
		if err != nil {
			return err
		}
		data = append(data, '\n')
		if err := sys.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return fmt.Errorf(messages.InstallFailedCreateDirFmt, filepath.Dir(dest), err)
		}
		if err := sys.WriteFileAtomic(dest, data, 0o644); err != nil {
			return fmt.Errorf(messages.InstallFailedWriteFmt, dest, err)
		}
		return nil
	}
}

func mergeJSON(current map[string]any, incoming map[string]any) map[string]any {
	out := make(map[string]any, len(current)+len(incoming))
	for key, value := range current {
		out[key] = value
	}
	for key, value := range incoming {
		incomingMap, incomingIsMap := value.(map[string]any)
		currentMap, currentIsMap := out[key].(map[string]any)
		if incomingIsMap && currentIsMap {
			out[key] = mergeJSON(currentMap, incomingMap)
			continue
		}
		out[key] = value
	}
	return out
}
