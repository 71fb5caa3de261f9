package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"capstan/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently archived item outcomes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			archive, err := history.Open(cfg.HistoryPath())
			if err != nil {
				return err
			}
			defer archive.Close()

			entries, err := archive.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No archived outcomes")
				return nil
			}

			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				detail := entry.Error
				if detail == "" {
					detail = entry.Duration.String()
				}
				rows = append(rows, []string{
					entry.FinishedAt.Local().Format("2006-01-02 15:04:05"),
					entry.Queue,
					entry.ItemID,
					string(entry.Outcome),
					detail,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Finished", "Queue", "Item", "Outcome", "Detail"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of entries to show")
	return cmd
}
