package main

import (
	"fmt"
	"path/filepath"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"

	"github.com/stackwise-dev/stackwise/internal/messages"
	"github.com/stackwise-dev/stackwise/internal/policy"
	"github.com/stackwise-dev/stackwise/internal/record"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           messages.RootUse,
		Short:         messages.RootShort,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newInstallCmd())
	cmd.AddCommand(newRollbackCmd())
	cmd.AddCommand(newCheckpointsCmd())
	cmd.AddCommand(newRecordCmd())
	cmd.AddCommand(newInterceptCmd())
	return cmd
}

// resolveRoot expands the install root flag, defaulting to ~/.stackwise.
func resolveRoot(flagValue string) (string, error) {
	value := strings.TrimSpace(flagValue)
	if value == "" {
		home, err := homedir.Dir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return filepath.Join(home, ".stackwise"), nil
	}
	expanded, err := homedir.Expand(value)
	if err != nil {
		return "", err
	}
	return filepath.Abs(expanded)
}

// openStore opens the run-record store under the install root.
func openStore(root string) (*record.Store, error) {
	return record.Open(filepath.Join(root, "state", "records"))
}

// loadChecker loads the policy file when present; otherwise it falls back to
// a policy that only permits writes under the install root and no commands.
func loadChecker(policyPath string, root string) (*policy.Checker, error) {
	if strings.TrimSpace(policyPath) != "" {
		p, err := policy.LoadPolicy(policyPath)
		if err != nil {
			return nil, err
		}
		return policy.NewChecker(p), nil
	}
	return policy.NewChecker(&policy.Policy{AllowedRoots: []string{root}}), nil
}
