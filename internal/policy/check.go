package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/stackwise-dev/stackwise/internal/messages"
)

// Reason codes carried by deny decisions.
const (
	CodePathNotAbsolute  = "path_not_absolute"
	CodePathTraversal    = "path_traversal"
	CodePathOutsideRoot  = "path_outside_root"
	CodeCommandEmpty     = "command_empty"
	CodeCommandNotListed = "command_not_allowed"
	CodeSignatureMissing = "module_signature_missing"
	CodeSignatureInvalid = "module_signature_mismatch"
)

// Decision is the outcome of a single check. A zero Code means allow.
type Decision struct {
	Allow  bool
	Code   string
	Reason string
}

func allow() Decision { return Decision{Allow: true} }

func deny(code string, format string, args ...any) Decision {
	return Decision{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// Denied converts a deny decision into an error. Validation denials are never
// downgraded to warnings.
type Denied struct {
	Code   string
	Reason string
}

func (e *Denied) Error() string {
	return fmt.Sprintf(messages.PolicyDeniedFmt, e.Code, e.Reason)
}

// Err returns nil for an allow decision and a *Denied for a deny.
func (d Decision) Err() error {
	if d.Allow {
		return nil
	}
	return &Denied{Code: d.Code, Reason: d.Reason}
}

// Checker evaluates operations against a loaded policy.
type Checker struct {
	policy *Policy
}

// NewChecker wraps a policy for evaluation.
func NewChecker(p *Policy) *Checker {
	return &Checker{policy: p}
}

// CheckWrite decides whether a filesystem write to path is permitted. The
// path must canonicalize to an absolute location inside an allowed root; any
// parent-directory traversal segment surviving canonicalization denies.
func (c *Checker) CheckWrite(path string) Decision {
	clean := filepath.Clean(path)
	if !filepath.IsAbs(clean) {
		return deny(CodePathNotAbsolute, messages.PolicyDenyPathNotAbsolute, path)
	}
	if containsTraversal(clean) {
		return deny(CodePathTraversal, messages.PolicyDenyPathTraversal, path)
	}
	for _, root := range c.policy.AllowedRoots {
		if underRoot(clean, filepath.Clean(root)) {
			return allow()
		}
	}
	return deny(CodePathOutsideRoot, messages.PolicyDenyPathOutsideRoot, path)
}

// CheckCommand decides whether a process invocation is permitted. Only the
// command name is matched against the allow-list; arguments are carried as a
// discrete vector and never interpolated into a shell string.
func (c *Checker) CheckCommand(argv []string) Decision {
	if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
		return deny(CodeCommandEmpty, messages.PolicyDenyCommandEmpty)
	}
	name := filepath.Base(argv[0])
	for _, allowed := range c.policy.AllowedCommands {
		if name == allowed {
			return allow()
		}
	}
	return deny(CodeCommandNotListed, messages.PolicyDenyCommandFmt, name)
}

// CheckModule decides whether a handler module payload may be used. The
// content must hash to the expected sha256; a module with no expected
// signature is denied, not warned about.
func (c *Checker) CheckModule(name string, expectedSHA256 string, content []byte) Decision {
	expected := strings.ToLower(strings.TrimSpace(expectedSHA256))
	if expected == "" {
		if registered, ok := c.policy.ModuleChecksums[name]; ok {
			expected = strings.ToLower(strings.TrimSpace(registered))
		}
	}
	if expected == "" {
		return deny(CodeSignatureMissing, messages.PolicyDenySignatureMissing, name)
	}
	sum := sha256.Sum256(content)
	actual := hex.EncodeToString(sum[:])
	if actual != expected {
		return deny(CodeSignatureInvalid, messages.PolicyDenySignatureFmt, name, actual, expected)
	}
	return allow()
}

// containsTraversal reports whether any path element is "..". filepath.Clean
// collapses interior traversals, so a surviving ".." always points above the
// path's anchor.
func containsTraversal(clean string) bool {
	for _, part := range strings.Split(clean, string(filepath.Separator)) {
		if part == ".." {
			return true
		}
	}
	return false
}

func underRoot(path string, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	rel = filepath.Clean(rel)
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return true
}
