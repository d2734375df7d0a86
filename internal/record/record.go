// Package record persists installation run records and interceptor state in
// an embedded badger database under the install root.
package record

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Result is the overall outcome of an installation run.
type Result string

// Run results.
const (
	ResultSuccess    Result = "success"
	ResultPartial    Result = "partial"
	ResultAborted    Result = "aborted"
	ResultRolledBack Result = "rolled_back"
)

// ExitCode maps a run result to the process exit code reported by the CLI.
func (r Result) ExitCode() int {
	switch r {
	case ResultSuccess:
		return 0
	case ResultPartial:
		return 3
	case ResultAborted:
		return 4
	case ResultRolledBack:
		return 5
	}
	return 1
}

// Status is the per-component outcome within a run.
type Status string

// Component statuses.
const (
	StatusInstalled             Status = "installed"
	StatusSkipped               Status = "skipped"
	StatusFailed                Status = "failed"
	StatusDependencyUnavailable Status = "dependency_unavailable"
)

// ComponentEntry is the outcome of one component in a run.
type ComponentEntry struct {
	Status         Status    `json:"status"`
	InstalledFiles []string  `json:"installed_files,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	Error          string    `json:"error,omitempty"`
}

// Record is one installation run. Component updates go through SetComponent
// so concurrent apply workers never race on the map.
type Record struct {
	mu sync.Mutex

	RunID      string                    `json:"run_id"`
	StartedAt  time.Time                 `json:"started_at"`
	FinishedAt time.Time                 `json:"finished_at,omitzero"`
	Result     Result                    `json:"result"`
	Checkpoint string                    `json:"checkpoint,omitempty"`
	Components map[string]ComponentEntry `json:"components"`
}

// NewRecord starts a record for a fresh run.
func NewRecord(now time.Time) *Record {
	return &Record{
		RunID:      uuid.NewString(),
		StartedAt:  now.UTC(),
		Components: make(map[string]ComponentEntry),
	}
}

// SetComponent records the outcome for one component.
func (r *Record) SetComponent(id string, entry ComponentEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	r.Components[id] = entry
}

// Component returns the recorded entry for id, if any.
func (r *Record) Component(id string) (ComponentEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.Components[id]
	return entry, ok
}

// Finish stamps the end time and overall result.
func (r *Record) Finish(result Result, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Result = result
	r.FinishedAt = now.UTC()
}

// MarkRolledBack downgrades installed entries to skipped and clears their
// file lists. After a rollback the restored tree no longer contains the
// installed files, so the record must not claim them.
func (r *Record) MarkRolledBack() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, entry := range r.Components {
		if entry.Status == StatusInstalled {
			entry.Status = StatusSkipped
			entry.InstalledFiles = nil
			r.Components[id] = entry
		}
	}
}

// CountByStatus tallies component entries per status.
func (r *Record) CountByStatus() map[Status]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[Status]int, len(r.Components))
	for _, entry := range r.Components {
		counts[entry.Status]++
	}
	return counts
}
