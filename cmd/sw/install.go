package main

import (
	"errors"
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/stackwise-dev/stackwise/internal/install"
	"github.com/stackwise-dev/stackwise/internal/manifest"
	"github.com/stackwise-dev/stackwise/internal/messages"
	"github.com/stackwise-dev/stackwise/internal/record"
	"github.com/stackwise-dev/stackwise/internal/terminal"
	"github.com/stackwise-dev/stackwise/internal/wizard"
)

var isInteractiveFunc = terminal.IsInteractive
var selectComponentsFunc = wizard.SelectComponents
var installFunc = install.Install

func newInstallCmd() *cobra.Command {
	var (
		flagAll         bool
		flagRecommended bool
		flagMinimal     bool
		flagAtomic      bool
		flagRoot        string
		flagDist        string
		flagPolicy      string
		flagJobs        int
		flagDiffLines   int
	)

	cmd := &cobra.Command{
		Use:   messages.InstallUse,
		Short: messages.InstallShort,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolveRoot(flagRoot)
			if err != nil {
				return err
			}
			manifests, err := manifest.Load(manifest.RealSystem{}, flagDist)
			if err != nil {
				return err
			}
			ids, err := selectInstallIDs(args, manifests, root, flagAll, flagRecommended, flagMinimal)
			if err != nil {
				return err
			}
			checker, err := loadChecker(flagPolicy, root)
			if err != nil {
				return err
			}
			store, err := openStore(root)
			if err != nil {
				return err
			}
			defer store.Close()

			rec, installErr := installFunc(cmd.Context(), root, ids, install.Options{
				Manifests:    manifests,
				Policy:       checker,
				Store:        store,
				Atomic:       flagAtomic,
				Concurrency:  flagJobs,
				DistDir:      flagDist,
				System:       install.RealSystem{},
				WarnWriter:   cmd.ErrOrStderr(),
				DiffMaxLines: flagDiffLines,
			})
			if rec != nil {
				printRunSummary(cmd, rec)
			}
			if installErr != nil {
				_, _ = fmt.Fprintln(cmd.ErrOrStderr(), installErr)
				if rec != nil {
					return &SilentExitError{Code: rec.Result.ExitCode()}
				}
				return &SilentExitError{Code: 1}
			}
			if rec.Result != record.ResultSuccess {
				return &SilentExitError{Code: rec.Result.ExitCode()}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&flagAll, "all", false, messages.InstallFlagAll)
	cmd.Flags().BoolVar(&flagRecommended, "recommended", false, messages.InstallFlagRecommended)
	cmd.Flags().BoolVar(&flagMinimal, "minimal", false, messages.InstallFlagMinimal)
	cmd.Flags().BoolVar(&flagAtomic, "atomic", false, messages.InstallFlagAtomic)
	cmd.Flags().StringVar(&flagRoot, "root", "", messages.InstallFlagRoot)
	cmd.Flags().StringVar(&flagDist, "dist", "dist", messages.InstallFlagDist)
	cmd.Flags().StringVar(&flagPolicy, "policy", "", "Policy file with allowed roots and commands")
	cmd.Flags().IntVar(&flagJobs, "jobs", 1, messages.InstallFlagJobs)
	cmd.Flags().IntVar(&flagDiffLines, "diff-lines", install.DefaultDiffMaxLines, "Maximum diff lines shown per overwritten file")
	return cmd
}

// selectInstallIDs resolves which components to install from args, selection
// flags, or the interactive wizard.
func selectInstallIDs(args []string, manifests manifest.Set, root string, all bool, recommended bool, minimal bool) ([]string, error) {
	if len(args) > 0 {
		for _, id := range args {
			if _, ok := manifests[id]; !ok {
				return nil, fmt.Errorf(messages.ManifestUnknownRequestFmt, id)
			}
		}
		return args, nil
	}
	switch {
	case all:
		ids := manifests.IDs()
		sort.Strings(ids)
		return ids, nil
	case recommended, minimal:
		var ids []string
		for id, m := range manifests {
			if m.Required || (recommended && m.Recommended) {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			return nil, errors.New(messages.InstallNothingSelected)
		}
		sort.Strings(ids)
		return ids, nil
	}
	if !isInteractiveFunc() {
		return nil, errors.New(messages.InstallSelectionNeedsTerminal)
	}
	return selectComponentsFunc(manifests, root)
}

func printRunSummary(cmd *cobra.Command, rec *record.Record) {
	out := cmd.OutOrStdout()
	counts := rec.CountByStatus()
	installed := counts[record.StatusInstalled]
	_, _ = fmt.Fprintf(out, messages.InstallSummaryHeaderFmt, installed, len(rec.Components), rec.RunID)

	ids := make([]string, 0, len(rec.Components))
	for id := range rec.Components {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		entry := rec.Components[id]
		line := statusColor(entry.Status).Sprint(string(entry.Status))
		_, _ = fmt.Fprintf(out, messages.InstallComponentLineFmt, id, line, entry.Error)
	}
	_, _ = fmt.Fprintf(out, messages.InstallResultFmt, rec.Result)
}

func statusColor(status record.Status) *color.Color {
	switch status {
	case record.StatusInstalled:
		return color.New(color.FgGreen)
	case record.StatusFailed:
		return color.New(color.FgRed)
	case record.StatusDependencyUnavailable:
		return color.New(color.FgYellow)
	}
	return color.New(color.Faint)
}
