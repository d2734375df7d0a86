package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/stackwise-dev/stackwise/internal/intercept"
	"github.com/stackwise-dev/stackwise/internal/messages"
)

// newInterceptCmd reads one tool request as JSON on stdin, routes it, and
// writes the JSON response on stdout. Hook runners invoke it once per tool
// call, so breaker state is persisted between invocations.
func newInterceptCmd() *cobra.Command {
	var (
		flagRoot       string
		flagPolicy     string
		flagBackendCmd []string
		flagTimeout    time.Duration
		flagThreshold  int
		flagCooldown   time.Duration
	)

	cmd := &cobra.Command{
		Use:   messages.InterceptUse,
		Short: messages.InterceptShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolveRoot(flagRoot)
			if err != nil {
				return err
			}
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf(messages.InterceptReadRequestErr, err)
			}
			var req intercept.Request
			if err := json.Unmarshal(data, &req); err != nil {
				return fmt.Errorf(messages.InterceptBadRequestFmt, err)
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

			fast := intercept.NewMCPBackend("morph", flagBackendCmd, Version)
			defer fast.Close()

			it, err := intercept.New(intercept.Options{
				Fast:   fast,
				Native: intercept.NewNativeBackend(checker),
				Breaker: intercept.BreakerConfig{
					FailureThreshold: flagThreshold,
					Cooldown:         flagCooldown,
				},
				InvokeTimeout: flagTimeout,
				States:        store,
				WarnWriter:    cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}

			resp, err := it.Route(cmd.Context(), req)
			if err != nil {
				return err
			}
			encoded, err := json.Marshal(resp)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
			return nil
		},
	}

	cmd.Flags().StringVar(&flagRoot, "root", "", messages.InstallFlagRoot)
	cmd.Flags().StringVar(&flagPolicy, "policy", "", "Policy file with allowed roots and commands")
	cmd.Flags().StringSliceVar(&flagBackendCmd, "backend-cmd", nil, messages.InterceptFlagBackendCmd)
	cmd.Flags().DurationVar(&flagTimeout, "timeout", intercept.DefaultInvokeTimeout, messages.InterceptFlagTimeout)
	cmd.Flags().IntVar(&flagThreshold, "threshold", 0, messages.InterceptFlagThreshold)
	cmd.Flags().DurationVar(&flagCooldown, "cooldown", 0, messages.InterceptFlagCooldown)
	return cmd
}
