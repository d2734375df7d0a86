// Package policy implements the safety validator consulted before any
// mutating operation. The checker is stateless and side-effect-free: it
// inspects a candidate operation and returns an allow or deny decision with a
// machine-readable reason code.
package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/stackwise-dev/stackwise/internal/messages"
)

// Policy is the externally loaded allow-list. The checker treats it as
// read-only input; hot reload is not supported.
type Policy struct {
	AllowedRoots    []string          `toml:"allowed_roots"`
	AllowedCommands []string          `toml:"allowed_commands"`
	ModuleChecksums map[string]string `toml:"module_checksums"`
}

// LoadPolicy reads and validates a policy file.
func LoadPolicy(path string) (*Policy, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf(messages.PolicyFileRequired)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf(messages.PolicyFailedReadFmt, path, err)
	}
	var p Policy
	if err := toml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf(messages.PolicyDecodeFailedFmt, path, err)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Policy) validate() error {
	if len(p.AllowedRoots) == 0 {
		return fmt.Errorf(messages.PolicyNoRoots)
	}
	for _, root := range p.AllowedRoots {
		if !filepath.IsAbs(root) {
			return fmt.Errorf(messages.PolicyRootNotAbsFmt, root)
		}
	}
	for i, cmd := range p.AllowedCommands {
		if strings.TrimSpace(cmd) == "" {
			return fmt.Errorf(messages.PolicyCommandEmptyFmt, i)
		}
	}
	return nil
}
