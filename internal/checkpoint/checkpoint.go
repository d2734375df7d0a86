// Package checkpoint snapshots mutable state before risky operations and
// restores it on failure or explicit request. Snapshots are JSON files under
// the install root's state directory; restore is resumable, re-applying only
// entries not yet confirmed restored.
package checkpoint

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

const (
	schemaVersion = 1
	dirRelPath    = "state/checkpoints"
	maxRetained   = 20
)

// Status is the checkpoint lifecycle state.
type Status string

// Checkpoint lifecycle states.
const (
	StatusCreated            Status = "created"
	StatusApplied            Status = "applied"
	StatusAutoRolledBack     Status = "auto_rolled_back"
	StatusManuallyRolledBack Status = "manually_rolled_back"
	StatusRollbackFailed     Status = "rollback_failed"
)

// Kind classifies a captured path.
type Kind string

// Entry kinds.
const (
	KindFile   Kind = "file"
	KindDir    Kind = "dir"
	KindAbsent Kind = "absent"
)

// Entry is one captured path. Restored marks entries already re-applied by an
// interrupted rollback so a resumed rollback can skip them.
type Entry struct {
	Path          string  `json:"path"`
	Kind          Kind    `json:"kind"`
	Perm          *uint32 `json:"perm,omitempty"`
	ContentBase64 string  `json:"content_base64,omitempty"`
	Restored      bool    `json:"restored,omitempty"`
}

// Checkpoint is a named, timestamped snapshot of the paths an operation is
// about to mutate. Owned exclusively by the Manager.
type Checkpoint struct {
	SchemaVersion int     `json:"schema_version"`
	ID            string  `json:"id"`
	Label         string  `json:"label"`
	CreatedAtUTC  string  `json:"created_at_utc"`
	Status        Status  `json:"status"`
	FailureReason string  `json:"failure_reason,omitempty"`
	Entries       []Entry `json:"entries"`
}

// Metadata provides lightweight listing fields.
type Metadata struct {
	ID           string
	Label        string
	CreatedAtUTC string
	Status       Status
}

// Error reports a snapshot or restore failure. Checkpoint errors are fatal to
// an orchestration run: the rollback safety guarantee cannot be honored once
// one occurs.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("checkpoint %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newID(now time.Time) string {
	return fmt.Sprintf("%s-%d", now.UTC().Format("20060102-150405"), now.UTC().UnixNano())
}

func validate(cp *Checkpoint) error {
	if cp.SchemaVersion != schemaVersion {
		return fmt.Errorf("unsupported schema_version %d", cp.SchemaVersion)
	}
	if strings.TrimSpace(cp.ID) == "" {
		return fmt.Errorf("checkpoint id is required")
	}
	if _, err := time.Parse(time.RFC3339, cp.CreatedAtUTC); err != nil {
		return fmt.Errorf("invalid created_at_utc %q: %w", cp.CreatedAtUTC, err)
	}
	switch cp.Status {
	case StatusCreated, StatusApplied, StatusAutoRolledBack, StatusManuallyRolledBack, StatusRollbackFailed:
	default:
		return fmt.Errorf("invalid status %q", cp.Status)
	}
	seen := make(map[string]struct{}, len(cp.Entries))
	for _, entry := range cp.Entries {
		if err := validateEntry(entry); err != nil {
			return err
		}
		if _, ok := seen[entry.Path]; ok {
			return fmt.Errorf("duplicate entry path %q", entry.Path)
		}
		seen[entry.Path] = struct{}{}
	}
	return nil
}

func validateEntry(entry Entry) error {
	if strings.TrimSpace(entry.Path) == "" {
		return fmt.Errorf("entry path is required")
	}
	switch entry.Kind {
	case KindFile:
		if _, err := base64.StdEncoding.DecodeString(entry.ContentBase64); err != nil {
			return fmt.Errorf("entry %s has invalid content_base64: %w", entry.Path, err)
		}
	case KindDir, KindAbsent:
		if entry.ContentBase64 != "" {
			return fmt.Errorf("entry %s must not set content_base64", entry.Path)
		}
	default:
		return fmt.Errorf("invalid entry kind %q", entry.Kind)
	}
	return nil
}
