package checkpoint

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/stackwise-dev/stackwise/internal/messages"
)

// Manager owns checkpoint lifecycle for one install root. At most one
// checkpoint is active per orchestration run; nested risky operations reuse
// the active checkpoint rather than stacking.
type Manager struct {
	root   string
	sys    System
	warn   io.Writer
	active *Checkpoint
}

// NewManager creates a checkpoint manager for the given install root.
func NewManager(root string, sys System, warn io.Writer) (*Manager, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf(messages.CheckpointRootRequired)
	}
	if sys == nil {
		return nil, fmt.Errorf(messages.CheckpointSystemRequired)
	}
	if warn == nil {
		warn = os.Stderr
	}
	return &Manager{root: root, sys: sys, warn: warn}, nil
}

func (m *Manager) dirPath() string {
	return filepath.Join(m.root, filepath.FromSlash(dirRelPath))
}

func (m *Manager) filePath(id string) string {
	return filepath.Join(m.dirPath(), id+".json")
}

// Active returns the currently active checkpoint, or nil.
func (m *Manager) Active() *Checkpoint { return m.active }

// Create captures the current state of every target path and persists the
// snapshot before returning, guaranteeing the capture precedes the first
// mutating step of the guarded operation. When a checkpoint is already
// active it is reused.
func (m *Manager) Create(label string, targets []string) (*Checkpoint, error) {
	if m.active != nil {
		return m.active, nil
	}
	entries, err := m.capture(targets)
	if err != nil {
		return nil, &Error{Op: "create", Err: err}
	}
	now := time.Now().UTC()
	cp := &Checkpoint{
		SchemaVersion: schemaVersion,
		ID:            newID(now),
		Label:         label,
		CreatedAtUTC:  now.Format(time.RFC3339),
		Status:        StatusCreated,
		Entries:       entries,
	}
	if err := m.prune(maxRetained - 1); err != nil {
		return nil, &Error{Op: "create", Err: err}
	}
	if err := m.persist(cp); err != nil {
		return nil, &Error{Op: "create", Err: err}
	}
	m.active = cp
	_, _ = fmt.Fprintf(m.warn, messages.CheckpointCreatedFmt, cp.ID, cp.ID)
	return cp, nil
}

// Discard confirms the guarded operation succeeded. The snapshot is marked
// applied and retained until pruned, so it stays available for manual
// rollback within the retention window.
func (m *Manager) Discard(cp *Checkpoint) error {
	cp.Status = StatusApplied
	cp.FailureReason = ""
	if err := m.persist(cp); err != nil {
		return &Error{Op: "discard", Err: err}
	}
	if m.active == cp {
		m.active = nil
	}
	return nil
}

// Rollback restores every captured path to its pre-checkpoint state. It is
// resumable: entries already marked restored are skipped.
func (m *Manager) Rollback(cp *Checkpoint) error {
	if err := m.restore(cp); err != nil {
		cp.Status = StatusRollbackFailed
		cp.FailureReason = err.Error()
		if perr := m.persist(cp); perr != nil {
			return &Error{Op: "rollback", Err: fmt.Errorf("%v; persist rollback_failed state: %w", err, perr)}
		}
		return &Error{Op: "rollback", Err: err}
	}
	cp.Status = StatusAutoRolledBack
	cp.FailureReason = ""
	if err := m.persist(cp); err != nil {
		return &Error{Op: "rollback", Err: err}
	}
	if m.active == cp {
		m.active = nil
	}
	_, _ = fmt.Fprintf(m.warn, messages.CheckpointRolledBackFmt, cp.ID)
	return nil
}

// RollbackByID restores an applied checkpoint by id, for the external
// rollback CLI. Only applied checkpoints can be manually rolled back.
func (m *Manager) RollbackByID(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf(messages.CheckpointIDRequired)
	}
	if filepath.Base(id) != id {
		return fmt.Errorf(messages.CheckpointIDInvalidFmt, id)
	}
	path := m.filePath(id)
	if _, err := m.sys.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf(messages.CheckpointNotFoundFmt, id, m.dirPath())
		}
		return fmt.Errorf(messages.InstallFailedStatFmt, path, err)
	}
	cp, err := m.read(path)
	if err != nil {
		return err
	}
	if cp.Status != StatusApplied && cp.Status != StatusRollbackFailed {
		return fmt.Errorf(messages.CheckpointNotActiveFmt, id, cp.Status)
	}
	if err := m.restore(cp); err != nil {
		cp.Status = StatusRollbackFailed
		cp.FailureReason = err.Error()
		if perr := m.persist(cp); perr != nil {
			return &Error{Op: "rollback", Err: fmt.Errorf("%v; persist rollback_failed state: %w", err, perr)}
		}
		return &Error{Op: "rollback", Err: err}
	}
	cp.Status = StatusManuallyRolledBack
	cp.FailureReason = ""
	if err := m.persist(cp); err != nil {
		return &Error{Op: "rollback", Err: err}
	}
	_, _ = fmt.Fprintf(m.warn, messages.CheckpointRolledBackFmt, cp.ID)
	return nil
}

// List returns metadata for every retained checkpoint, newest first.
func (m *Manager) List() ([]Metadata, error) {
	files, err := m.listFiles()
	if err != nil {
		return nil, err
	}
	out := make([]Metadata, 0, len(files))
	for i := len(files) - 1; i >= 0; i-- {
		cp, err := m.read(files[i].path)
		if err != nil {
			// Unreadable snapshots are skipped, not fatal to listing.
			continue
		}
		out = append(out, Metadata{
			ID:           cp.ID,
			Label:        cp.Label,
			CreatedAtUTC: cp.CreatedAtUTC,
			Status:       cp.Status,
		})
	}
	return out, nil
}

func (m *Manager) persist(cp *Checkpoint) error {
	if err := validate(cp); err != nil {
		return err
	}
	dir := m.dirPath()
	if err := m.sys.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf(messages.InstallFailedCreateDirFmt, dir, err)
	}
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf(messages.CheckpointPersistFailedFmt, cp.ID, err)
	}
	data = append(data, '\n')
	path := m.filePath(cp.ID)
	if err := m.sys.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf(messages.InstallFailedWriteFmt, path, err)
	}
	return nil
}

func (m *Manager) read(path string) (*Checkpoint, error) {
	data, err := m.sys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf(messages.InstallFailedReadFmt, path, err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf(messages.CheckpointDecodeFailedFmt, path, err)
	}
	if err := validate(&cp); err != nil {
		return nil, fmt.Errorf(messages.CheckpointDecodeFailedFmt, path, err)
	}
	return &cp, nil
}

type checkpointFile struct {
	path      string
	createdAt time.Time
	id        string
}

func (m *Manager) listFiles() ([]checkpointFile, error) {
	dir := m.dirPath()
	if _, err := m.sys.Stat(dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf(messages.InstallFailedStatFmt, dir, err)
	}
	var files []checkpointFile
	err := m.sys.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || !strings.HasSuffix(path, ".json") {
			return nil
		}
		cp, readErr := m.read(path)
		if readErr != nil {
			return nil
		}
		createdAt, parseErr := time.Parse(time.RFC3339, cp.CreatedAtUTC)
		if parseErr != nil {
			return nil
		}
		files = append(files, checkpointFile{path: path, createdAt: createdAt, id: cp.ID})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool {
		if files[i].createdAt.Equal(files[j].createdAt) {
			return files[i].id < files[j].id
		}
		return files[i].createdAt.Before(files[j].createdAt)
	})
	return files, nil
}

func (m *Manager) prune(retain int) error {
	files, err := m.listFiles()
	if err != nil {
		return err
	}
	if len(files) <= retain {
		return nil
	}
	for i := 0; i < len(files)-retain; i++ {
		if err := m.sys.RemoveAll(files[i].path); err != nil {
			return fmt.Errorf("delete old checkpoint %s: %w", files[i].path, err)
		}
	}
	return nil
}

func (m *Manager) capture(targets []string) ([]Entry, error) {
	entries := make(map[string]Entry)
	for _, target := range uniquePaths(targets) {
		if err := m.captureTarget(target, entries); err != nil {
			return nil, err
		}
	}
	out := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (m *Manager) captureTarget(target string, entries map[string]Entry) error {
	info, err := m.sys.Stat(target)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			rel, relErr := m.relPath(target)
			if relErr != nil {
				return relErr
			}
			upsertEntry(entries, Entry{Path: rel, Kind: KindAbsent})
			return nil
		}
		return fmt.Errorf(messages.CheckpointCaptureFailedFmt, target, err)
	}
	if info.IsDir() {
		return m.sys.WalkDir(target, func(path string, dirEntry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			walkInfo, infoErr := dirEntry.Info()
			if infoErr != nil {
				return infoErr
			}
			if dirEntry.IsDir() {
				rel, relErr := m.relPath(path)
				if relErr != nil {
					return relErr
				}
				upsertEntry(entries, Entry{Path: rel, Kind: KindDir, Perm: permOf(walkInfo.Mode())})
				return nil
			}
			if !walkInfo.Mode().IsRegular() {
				return fmt.Errorf("unsupported file type at %s", path)
			}
			return m.captureFile(path, walkInfo.Mode(), entries)
		})
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("unsupported file type at %s", target)
	}
	return m.captureFile(target, info.Mode(), entries)
}

func (m *Manager) captureFile(path string, mode fs.FileMode, entries map[string]Entry) error {
	rel, err := m.relPath(path)
	if err != nil {
		return err
	}
	content, err := m.sys.ReadFile(path)
	if err != nil {
		return fmt.Errorf(messages.CheckpointCaptureFailedFmt, path, err)
	}
	upsertEntry(entries, Entry{
		Path:          rel,
		Kind:          KindFile,
		Perm:          permOf(mode),
		ContentBase64: base64.StdEncoding.EncodeToString(content),
	})
	return nil
}

// restore re-applies snapshot entries. Each entry's path is reset and
// recreated from the capture; the Restored flag is persisted per entry so an
// interrupted rollback skips completed work when resumed.
func (m *Manager) restore(cp *Checkpoint) error {
	order := make([]int, 0, len(cp.Entries))
	for i := range cp.Entries {
		order = append(order, i)
	}
	// Parent directories sort before their children, so directory entries are
	// recreated before the files inside them.
	sort.Slice(order, func(a, b int) bool {
		return cp.Entries[order[a]].Path < cp.Entries[order[b]].Path
	})

	for _, i := range order {
		entry := &cp.Entries[i]
		if entry.Restored {
			continue
		}
		if err := m.restoreEntry(*entry); err != nil {
			return fmt.Errorf(messages.CheckpointRestoreFailedFmt, entry.Path, err)
		}
		entry.Restored = true
		if err := m.persist(cp); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) restoreEntry(entry Entry) error {
	abs, err := m.absPath(entry.Path)
	if err != nil {
		return err
	}
	switch entry.Kind {
	case KindAbsent:
		return m.sys.RemoveAll(abs)
	case KindDir:
		return m.sys.MkdirAll(abs, permFrom(entry.Perm, 0o755))
	case KindFile:
		content, err := base64.StdEncoding.DecodeString(entry.ContentBase64)
		if err != nil {
			return fmt.Errorf("decode content: %w", err)
		}
		if err := m.sys.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return err
		}
		return m.sys.WriteFileAtomic(abs, content, permFrom(entry.Perm, 0o644))
	}
	return fmt.Errorf("invalid entry kind %q", entry.Kind)
}

func (m *Manager) relPath(path string) (string, error) {
	rel, err := filepath.Rel(m.root, path)
	if err != nil {
		return "", err
	}
	rel = filepath.Clean(rel)
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("path %s is outside install root %s", path, m.root)
	}
	return filepath.ToSlash(rel), nil
}

func (m *Manager) absPath(rel string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(rel))
	if clean == "." || clean == "" || clean == ".." || strings.HasPrefix(clean, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("entry path %q is invalid", rel)
	}
	return filepath.Join(m.root, clean), nil
}

func upsertEntry(entries map[string]Entry, candidate Entry) {
	current, exists := entries[candidate.Path]
	if !exists || (current.Kind == KindAbsent && candidate.Kind != KindAbsent) {
		entries[candidate.Path] = candidate
	}
}

func uniquePaths(paths []string) []string {
	dedup := make(map[string]struct{}, len(paths))
	for _, path := range paths {
		clean := filepath.Clean(path)
		if clean == "." || clean == "" {
			continue
		}
		dedup[clean] = struct{}{}
	}
	out := make([]string, 0, len(dedup))
	for path := range dedup {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

func permOf(mode fs.FileMode) *uint32 {
	perm := uint32(mode.Perm())
	return &perm
}

func permFrom(perm *uint32, fallback fs.FileMode) fs.FileMode {
	if perm == nil {
		return fallback
	}
	return fs.FileMode(*perm) & os.ModePerm
}
