package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stackwise-dev/stackwise/internal/checkpoint"
	"github.com/stackwise-dev/stackwise/internal/messages"
)

func newRollbackCmd() *cobra.Command {
	var flagRoot string

	cmd := &cobra.Command{
		Use:   messages.RollbackUse,
		Short: messages.RollbackShort,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolveRoot(flagRoot)
			if err != nil {
				return err
			}
			mgr, err := checkpoint.NewManager(root, checkpoint.RealSystem{}, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if err := mgr.RollbackByID(args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), messages.RollbackSuccessFmt, args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&flagRoot, "root", "", messages.InstallFlagRoot)
	return cmd
}

func newCheckpointsCmd() *cobra.Command {
	var flagRoot string

	cmd := &cobra.Command{
		Use:   messages.CheckpointsUse,
		Short: messages.CheckpointsShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolveRoot(flagRoot)
			if err != nil {
				return err
			}
			mgr, err := checkpoint.NewManager(root, checkpoint.RealSystem{}, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			list, err := mgr.List()
			if err != nil {
				return err
			}
			if len(list) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), messages.CheckpointsNone)
				return nil
			}
			for _, meta := range list {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), messages.CheckpointsLineFmt,
					meta.ID, meta.CreatedAtUTC, meta.Status, meta.Label)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&flagRoot, "root", "", messages.InstallFlagRoot)
	return cmd
}
