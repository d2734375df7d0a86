package install

import (
	"fmt"
	"strings"

	"github.com/aymanbagabas/go-udiff"
)

// DefaultDiffMaxLines is the default maximum number of diff lines shown per file.
const DefaultDiffMaxLines = 40

// diffLineCapFlagName is the CLI flag used to raise per-file diff line caps.
const diffLineCapFlagName = "--diff-lines"

// DiffPreview is a user-facing, per-file preview of what an overwrite will
// change.
type DiffPreview struct {
	Path        string
	UnifiedDiff string
	Truncated   bool
}

func normalizeDiffMaxLines(value int) int {
	if value <= 0 {
		return DefaultDiffMaxLines
	}
	return value
}

func buildDiffPreview(relPath string, current []byte, incoming []byte, maxLines int) DiffPreview {
	rendered, truncated := renderTruncatedUnifiedDiff(relPath, relPath, string(current), string(incoming), maxLines)
	return DiffPreview{
		Path:        relPath,
		UnifiedDiff: rendered,
		Truncated:   truncated,
	}
}

func renderTruncatedUnifiedDiff(fromName string, toName string, fromContent string, toContent string, maxLines int) (string, bool) {
	limit := normalizeDiffMaxLines(maxLines)
	diff := udiff.Unified(fromName, toName, fromContent, toContent)
	lines := splitDiffLines(diff)
	if len(lines) <= limit {
		return ensureTrailingNewline(strings.Join(lines, "\n")), false
	}
	truncated := lines[:limit]
	truncated = append(
		truncated,
		fmt.Sprintf("... (truncated to %d lines; rerun with %s <n> to see more)", limit, diffLineCapFlagName),
	)
	return ensureTrailingNewline(strings.Join(truncated, "\n")), true
}

func splitDiffLines(content string) []string {
	trimmed := strings.TrimRight(content, "\n")
	if trimmed == "" {
		return []string{}
	}
	return strings.Split(trimmed, "\n")
}

func ensureTrailingNewline(content string) string {
	if content == "" {
		return ""
	}
	if strings.HasSuffix(content, "\n") {
		return content
	}
	return content + "\n"
}
