package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/sydlexius/cadenza/internal/report"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs [id]",
		Short: "List recorded runs, or show the results of one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck
			store := report.NewStore(db)

			if len(args) == 1 {
				run, err := store.GetRun(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				results, err := store.Results(cmd.Context(), run.ID)
				if err != nil {
					return err
				}
				return report.RenderResults(cmd.OutOrStdout(), run, results)
			}

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return report.RenderRuns(cmd.OutOrStdout(), runs, time.Now())
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Maximum runs to list")
	return cmd
}
