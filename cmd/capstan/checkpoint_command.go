package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"capstan/internal/checkpoint"
)

func newCheckpointCommand(ctx *commandContext) *cobra.Command {
	checkpointCmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Inspect and manage job checkpoints",
	}

	checkpointCmd.AddCommand(newCheckpointShowCommand(ctx))
	checkpointCmd.AddCommand(newCheckpointResetCommand(ctx))

	return checkpointCmd
}

func checkpointPath(ctx *commandContext, job string) (string, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfg.CheckpointDir(), job+".json"), nil
}

func newCheckpointShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job>",
		Short: "Show checkpoint progress for a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := checkpointPath(ctx, args[0])
			if err != nil {
				return err
			}
			store := checkpoint.New(path)
			if err := store.Load(); err != nil {
				return fmt.Errorf("load checkpoint for %s: %w", args[0], err)
			}

			stats, err := store.Stats()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			rows := [][]string{
				{"completed", strconv.Itoa(stats.Completed)},
				{"failed", strconv.Itoa(stats.Failed)},
			}
			fmt.Fprintln(out, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))

			failures, err := store.Failed()
			if err != nil {
				return err
			}
			for _, failure := range failures {
				fmt.Fprintf(out, "failed %s: %s\n", failure.ID, failure.Error)
			}
			return nil
		},
	}
}

func newCheckpointResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <job>",
		Short: "Discard checkpoint progress for a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := checkpointPath(ctx, args[0])
			if err != nil {
				return err
			}
			store := checkpoint.New(path)
			if err := store.Load(); err != nil {
				return fmt.Errorf("load checkpoint for %s: %w", args[0], err)
			}
			if err := store.Reset(); err != nil {
				return fmt.Errorf("reset checkpoint for %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Checkpoint for %s reset\n", args[0])
			return nil
		},
	}
}
