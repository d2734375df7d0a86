// Package install orchestrates component installation runs: it plans the
// component order, validates every planned mutation against policy, snapshots
// the touched paths, applies the components, and persists a run record. No
// file is mutated before the checkpoint exists.
package install

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stackwise-dev/stackwise/internal/checkpoint"
	"github.com/stackwise-dev/stackwise/internal/manifest"
	"github.com/stackwise-dev/stackwise/internal/messages"
	"github.com/stackwise-dev/stackwise/internal/policy"
	"github.com/stackwise-dev/stackwise/internal/record"
	"github.com/stackwise-dev/stackwise/internal/resolver"
)

// Phase names reported by aborted runs.
const (
	PhasePlan       = "plan"
	PhaseValidate   = "validate"
	PhaseCheckpoint = "checkpoint"
	PhaseApply      = "apply"
	PhaseFinalize   = "finalize"
)

// Options controls an installation run.
type Options struct {
	Manifests    manifest.Set
	Policy       *policy.Checker
	Store        *record.Store
	Checkpoints  *checkpoint.Manager
	Atomic       bool
	Concurrency  int
	DistDir      string
	System       System
	Runner       CommandRunner
	WarnWriter   io.Writer
	DiffMaxLines int
}

// AbortError reports a run that stopped before completing, with the phase it
// stopped in and a remediation hint.
type AbortError struct {
	Phase       string
	Component   string
	Remediation string
	Err         error
}

func (e *AbortError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf(messages.InstallAbortedComponentFmt, e.Phase, e.Component, e.Err, e.Remediation)
	}
	return fmt.Sprintf(messages.InstallAbortedFmt, e.Phase, e.Err, e.Remediation)
}

func (e *AbortError) Unwrap() error { return e.Err }

// ComponentApplyError reports a single component's apply failure. In
// non-atomic runs it stays local to the component; in atomic runs it aborts
// the whole run.
type ComponentApplyError struct {
	ID  string
	Err error
}

func (e *ComponentApplyError) Error() string {
	return fmt.Sprintf("apply component %s: %v", e.ID, e.Err)
}

func (e *ComponentApplyError) Unwrap() error { return e.Err }

type installer struct {
	root         string
	manifests    manifest.Set
	checker      *policy.Checker
	store        *record.Store
	checkpoints  *checkpoint.Manager
	atomic       bool
	concurrency  int
	distDir      string
	sys          System
	runner       CommandRunner
	warnWriter   io.Writer
	diffMaxLines int
	rec          *record.Record
}

// Install runs the five installation phases for the requested component ids
// and returns the run record. The record is persisted for every outcome,
// including aborts; its Result maps to the process exit code.
func Install(ctx context.Context, root string, requested []string, opts Options) (*record.Record, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf(messages.InstallRootRequired)
	}
	if opts.System == nil {
		return nil, fmt.Errorf(messages.InstallSystemRequired)
	}
	if opts.Policy == nil {
		return nil, fmt.Errorf(messages.InstallPolicyRequired)
	}
	if opts.Store == nil {
		return nil, fmt.Errorf(messages.InstallStoreRequired)
	}
	if len(requested) == 0 {
		return nil, fmt.Errorf(messages.InstallNoComponents)
	}
	warnWriter := opts.WarnWriter
	if warnWriter == nil {
		warnWriter = os.Stderr
	}
	runner := opts.Runner
	if runner == nil {
		runner = ExecRunner{}
	}
	checkpoints := opts.Checkpoints
	if checkpoints == nil {
		mgr, err := checkpoint.NewManager(root, checkpoint.RealSystem{}, warnWriter)
		if err != nil {
			return nil, err
		}
		checkpoints = mgr
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	inst := &installer{
		root:         root,
		manifests:    opts.Manifests,
		checker:      opts.Policy,
		store:        opts.Store,
		checkpoints:  checkpoints,
		atomic:       opts.Atomic,
		concurrency:  concurrency,
		distDir:      opts.DistDir,
		sys:          opts.System,
		runner:       runner,
		warnWriter:   warnWriter,
		diffMaxLines: normalizeDiffMaxLines(opts.DiffMaxLines),
		rec:          record.NewRecord(time.Now()),
	}
	return inst.run(ctx, requested)
}

func (inst *installer) run(ctx context.Context, requested []string) (*record.Record, error) {
	plan, err := resolver.Resolve(requested, inst.manifests)
	if err != nil {
		return inst.abort(&AbortError{
			Phase:       PhasePlan,
			Remediation: planRemediation(err),
			Err:         err,
		})
	}

	if err := inst.validate(plan); err != nil {
		return inst.abort(err)
	}

	cp, err := inst.checkpoints.Create(checkpointLabel(plan), inst.touchedPaths(plan))
	if err != nil {
		return inst.abort(&AbortError{
			Phase:       PhaseCheckpoint,
			Remediation: messages.InstallRemediationValidate,
			Err:         err,
		})
	}
	inst.rec.Checkpoint = cp.ID

	if applyErr := inst.apply(ctx, plan); applyErr != nil {
		return inst.rollback(plan, cp, applyErr)
	}

	return inst.finalize(cp)
}

func planRemediation(err error) string {
	var cycleErr *resolver.CycleError
	if errors.As(err, &cycleErr) {
		return fmt.Sprintf(messages.InstallRemediationCycleFmt, strings.Join(cycleErr.IDs, ", "))
	}
	return messages.InstallRemediationPlan
}

func checkpointLabel(plan resolver.Plan) string {
	return "install " + strings.Join(plan.IDs(), " ")
}

// abort finalizes a run that stopped before or during mutation. Components
// without a recorded outcome are marked skipped.
func (inst *installer) abort(cause error) (*record.Record, error) {
	inst.rec.Finish(record.ResultAborted, time.Now())
	if err := inst.store.PutRecord(inst.rec); err != nil {
		return inst.rec, fmt.Errorf("%v; %w", cause, fmt.Errorf(messages.InstallRecordPersistFmt, err))
	}
	return inst.rec, cause
}

// validate checks every planned mutation before anything is written. A single
// deny aborts the run with no files modified.
func (inst *installer) validate(plan resolver.Plan) error {
	for _, m := range plan {
		for _, f := range m.Files {
			dest := inst.destPath(f.Destination)
			if d := inst.checker.CheckWrite(dest); !d.Allow {
				return inst.validateFailure(m.ID, d.Err())
			}
		}
		if len(m.PostCopy) > 0 {
			if d := inst.checker.CheckCommand(m.PostCopy); !d.Allow {
				return inst.validateFailure(m.ID, d.Err())
			}
		}
		if m.Module != nil {
			spec, err := lookupHandler(m.Module.Name)
			if err != nil {
				return inst.validateFailure(m.ID, err)
			}
			if d := inst.checker.CheckWrite(filepath.Join(inst.root, spec.target)); !d.Allow {
				return inst.validateFailure(m.ID, d.Err())
			}
			payload, err := inst.sys.ReadFile(inst.sourcePath(m, m.Module.Path))
			if err != nil {
				return inst.validateFailure(m.ID, err)
			}
			if d := inst.checker.CheckModule(m.Module.Name, m.Module.SHA256, payload); !d.Allow {
				return inst.validateFailure(m.ID, d.Err())
			}
		}
	}
	return nil
}

func (inst *installer) validateFailure(componentID string, err error) error {
	return &AbortError{
		Phase:       PhaseValidate,
		Component:   componentID,
		Remediation: messages.InstallRemediationValidate,
		Err:         err,
	}
}

// touchedPaths returns every absolute path the plan may mutate, for
// checkpoint capture.
func (inst *installer) touchedPaths(plan resolver.Plan) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(path string) {
		clean := filepath.Clean(path)
		if _, ok := seen[clean]; ok {
			return
		}
		seen[clean] = struct{}{}
		out = append(out, clean)
	}
	for _, m := range plan {
		for _, f := range m.Files {
			add(inst.destPath(f.Destination))
		}
		if m.Module != nil {
			if spec, err := lookupHandler(m.Module.Name); err == nil {
				add(filepath.Join(inst.root, spec.target))
			}
		}
	}
	sort.Strings(out)
	return out
}

func (inst *installer) destPath(destination string) string {
	return filepath.Join(inst.root, filepath.FromSlash(destination))
}

// sourcePath resolves a payload path relative to the distribution directory,
// falling back to the directory the component's manifest was loaded from.
func (inst *installer) sourcePath(m *manifest.Manifest, rel string) string {
	base := inst.distDir
	if base == "" {
		base = filepath.Dir(m.SourceFile())
	}
	return filepath.Join(base, filepath.FromSlash(rel))
}

// apply installs plan components wave by wave. Waves follow dependency
// levels; within a wave, components that share no destination path run
// concurrently. Returns the first failure in atomic mode and on context
// cancellation; otherwise failures stay in the record.
func (inst *installer) apply(ctx context.Context, plan resolver.Plan) error {
	for _, wave := range planWaves(plan, inst.touchedFor) {
		if err := ctx.Err(); err != nil {
			return err
		}
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(inst.concurrency)
		for _, m := range wave {
			if blockedBy, blocked := inst.unavailableDependency(m); blocked {
				inst.rec.SetComponent(m.ID, record.ComponentEntry{
					Status: record.StatusDependencyUnavailable,
					Error:  fmt.Sprintf("dependency %s unavailable", blockedBy),
				})
				_, _ = fmt.Fprintf(inst.warnWriter, messages.InstallDependencySkippedFmt, m.ID, blockedBy)
				continue
			}
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				return inst.applyComponent(gctx, m)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return ctx.Err()
}

// unavailableDependency reports whether any direct dependency failed or was
// itself blocked. Dependencies always run in an earlier wave, so their
// outcome is recorded before dependents are scheduled.
func (inst *installer) unavailableDependency(m *manifest.Manifest) (string, bool) {
	for _, dep := range m.Dependencies {
		entry, ok := inst.rec.Component(dep)
		if !ok {
			continue
		}
		if entry.Status == record.StatusFailed || entry.Status == record.StatusDependencyUnavailable {
			return dep, true
		}
	}
	return "", false
}

func (inst *installer) applyComponent(ctx context.Context, m *manifest.Manifest) error {
	files, err := inst.installFiles(ctx, m)
	if err == nil && m.Module != nil {
		var handlerFiles []string
		handlerFiles, err = inst.runHandler(m)
		files = append(files, handlerFiles...)
	}
	if err == nil && len(m.PostCopy) > 0 {
		if runErr := inst.runner.Run(ctx, inst.root, m.PostCopy); runErr != nil {
			err = fmt.Errorf(messages.InstallPostCopyFailedFmt, m.PostCopy, runErr)
		}
	}
	if err != nil {
		applyErr := &ComponentApplyError{ID: m.ID, Err: err}
		inst.rec.SetComponent(m.ID, record.ComponentEntry{
			Status:         record.StatusFailed,
			InstalledFiles: files,
			Error:          err.Error(),
		})
		_, _ = fmt.Fprintf(inst.warnWriter, messages.InstallComponentFailedFmt, m.ID, err)
		if inst.atomic {
			return applyErr
		}
		return nil
	}
	inst.rec.SetComponent(m.ID, record.ComponentEntry{
		Status:         record.StatusInstalled,
		InstalledFiles: files,
	})
	return nil
}

func (inst *installer) installFiles(ctx context.Context, m *manifest.Manifest) ([]string, error) {
	var installed []string
	for _, f := range m.Files {
		if err := ctx.Err(); err != nil {
			return installed, err
		}
		src := inst.sourcePath(m, f.Source)
		data, err := inst.sys.ReadFile(src)
		if err != nil {
			return installed, fmt.Errorf(messages.InstallFailedReadFmt, src, err)
		}
		dest := inst.destPath(f.Destination)
		existing, readErr := inst.sys.ReadFile(dest)
		if readErr == nil && bytes.Equal(existing, data) {
			// Unchanged file; count it as installed without re-copying.
			installed = append(installed, f.Destination)
			continue
		}
		if readErr == nil {
			preview := buildDiffPreview(f.Destination, existing, data, inst.diffMaxLines)
			_, _ = fmt.Fprintf(inst.warnWriter, messages.InstallDiffHeaderFmt, m.ID, f.Destination)
			_, _ = io.WriteString(inst.warnWriter, preview.UnifiedDiff)
		}
		if err := inst.sys.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return installed, fmt.Errorf(messages.InstallFailedCreateDirFmt, filepath.Dir(dest), err)
		}
		if err := inst.sys.WriteFileAtomic(dest, data, 0o644); err != nil {
			return installed, fmt.Errorf(messages.InstallFailedCopyFmt, src, dest, err)
		}
		installed = append(installed, f.Destination)
	}
	return installed, nil
}

func (inst *installer) runHandler(m *manifest.Manifest) ([]string, error) {
	spec, err := lookupHandler(m.Module.Name)
	if err != nil {
		return nil, err
	}
	payload, err := inst.sys.ReadFile(inst.sourcePath(m, m.Module.Path))
	if err != nil {
		return nil, fmt.Errorf(messages.InstallFailedReadFmt, m.Module.Path, err)
	}
	if err := spec.fn(inst.sys, inst.root, payload); err != nil {
		return nil, fmt.Errorf(messages.InstallHandlerFailedFmt, m.Module.Name, err)
	}
	return []string{filepath.ToSlash(spec.target)}, nil
}

// rollback restores the checkpoint after an atomic failure or cancellation.
// Components never attempted are marked skipped.
func (inst *installer) rollback(plan resolver.Plan, cp *checkpoint.Checkpoint, cause error) (*record.Record, error) {
	var compErr *ComponentApplyError
	if errors.As(cause, &compErr) {
		cause = fmt.Errorf("%w; %s", cause, fmt.Sprintf(messages.InstallRemediationApplyFmt, compErr.ID))
	}
	for _, m := range plan {
		if _, ok := inst.rec.Component(m.ID); !ok {
			inst.rec.SetComponent(m.ID, record.ComponentEntry{Status: record.StatusSkipped})
		}
	}
	inst.rec.MarkRolledBack()
	if rollbackErr := inst.checkpoints.Rollback(cp); rollbackErr != nil {
		inst.rec.Finish(record.ResultAborted, time.Now())
		if err := inst.store.PutRecord(inst.rec); err != nil {
			return inst.rec, fmt.Errorf("%v; rollback failed: %v; %v", cause, rollbackErr, err)
		}
		return inst.rec, fmt.Errorf("%v; rollback failed: %w", cause, rollbackErr)
	}
	_, _ = fmt.Fprintf(inst.warnWriter, messages.InstallRolledBackFmt, cp.ID)
	inst.rec.Finish(record.ResultRolledBack, time.Now())
	if err := inst.store.PutRecord(inst.rec); err != nil {
		return inst.rec, fmt.Errorf("%v; %w", cause, fmt.Errorf(messages.InstallRecordPersistFmt, err))
	}
	return inst.rec, cause
}

// finalize persists the record and releases the checkpoint. The checkpoint is
// marked applied and retained, so partial runs stay manually rollback-able.
func (inst *installer) finalize(cp *checkpoint.Checkpoint) (*record.Record, error) {
	counts := inst.rec.CountByStatus()
	result := record.ResultSuccess
	if counts[record.StatusFailed] > 0 || counts[record.StatusDependencyUnavailable] > 0 {
		result = record.ResultPartial
	}
	if err := inst.checkpoints.Discard(cp); err != nil {
		inst.rec.Finish(record.ResultAborted, time.Now())
		_ = inst.store.PutRecord(inst.rec)
		return inst.rec, err
	}
	inst.rec.Finish(result, time.Now())
	if err := inst.store.PutRecord(inst.rec); err != nil {
		return inst.rec, fmt.Errorf(messages.InstallRecordPersistFmt, err)
	}
	return inst.rec, nil
}

// planWaves partitions the plan into batches safe to run concurrently: a
// component lands strictly after its dependencies, and two components in the
// same wave never share a destination path.
func planWaves(plan resolver.Plan, touched func(*manifest.Manifest) []string) []resolver.Plan {
	level := make(map[string]int, len(plan))
	inPlan := make(map[string]*manifest.Manifest, len(plan))
	for _, m := range plan {
		inPlan[m.ID] = m
	}
	for _, m := range plan {
		// Plan order is topological, so dependency levels are already set.
		lvl := 0
		for _, dep := range m.Dependencies {
			if _, ok := inPlan[dep]; !ok {
				continue
			}
			if level[dep]+1 > lvl {
				lvl = level[dep] + 1
			}
		}
		level[m.ID] = lvl
	}

	maxLevel := 0
	for _, lvl := range level {
		if lvl > maxLevel {
			maxLevel = lvl
		}
	}

	var waves []resolver.Plan
	for lvl := 0; lvl <= maxLevel; lvl++ {
		var members resolver.Plan
		for _, m := range plan {
			if level[m.ID] == lvl {
				members = append(members, m)
			}
		}
		waves = append(waves, splitByPathConflict(members, touched)...)
	}
	return waves
}

// splitByPathConflict greedily packs components into sub-waves so no two
// members write the same path.
func splitByPathConflict(members resolver.Plan, touched func(*manifest.Manifest) []string) []resolver.Plan {
	var subWaves []resolver.Plan
	var claimed []map[string]struct{}
	for _, m := range members {
		paths := touched(m)
		placed := false
		for i, wavePaths := range claimed {
			if !conflicts(wavePaths, paths) {
				subWaves[i] = append(subWaves[i], m)
				claim(wavePaths, paths)
				placed = true
				break
			}
		}
		if !placed {
			wavePaths := make(map[string]struct{}, len(paths))
			claim(wavePaths, paths)
			subWaves = append(subWaves, resolver.Plan{m})
			claimed = append(claimed, wavePaths)
		}
	}
	return subWaves
}

func conflicts(claimed map[string]struct{}, paths []string) bool {
	for _, path := range paths {
		if _, ok := claimed[path]; ok {
			return true
		}
	}
	return false
}

func claim(claimed map[string]struct{}, paths []string) {
	for _, path := range paths {
		claimed[path] = struct{}{}
	}
}

// touchedFor lists the absolute paths one component writes.
func (inst *installer) touchedFor(m *manifest.Manifest) []string {
	var out []string
	for _, f := range m.Files {
		out = append(out, inst.destPath(f.Destination))
	}
	if m.Module != nil {
		if spec, err := lookupHandler(m.Module.Name); err == nil {
			out = append(out, filepath.Join(inst.root, spec.target))
		}
	}
	return out
}
