package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/stackwise-dev/stackwise/internal/messages"
	"github.com/stackwise-dev/stackwise/internal/record"
)

func newRecordCmd() *cobra.Command {
	var flagRoot string

	cmd := &cobra.Command{
		Use:   messages.RecordUse,
		Short: messages.RecordShort,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolveRoot(flagRoot)
			if err != nil {
				return err
			}
			store, err := openStore(root)
			if err != nil {
				return err
			}
			defer store.Close()

			var rec *record.Record
			if len(args) == 1 {
				rec, err = store.GetRecord(args[0])
			} else {
				rec, err = store.LatestRecord()
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, messages.RecordHeaderFmt,
				rec.RunID, rec.StartedAt.Format(time.RFC3339), rec.Result)

			ids := make([]string, 0, len(rec.Components))
			for id := range rec.Components {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				entry := rec.Components[id]
				_, _ = fmt.Fprintf(out, messages.RecordComponentFmt, id, entry.Status, entry.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&flagRoot, "root", "", messages.InstallFlagRoot)
	return cmd
}
