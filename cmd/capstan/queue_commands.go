package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"capstan/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage durable queues",
	}

	queueCmd.AddCommand(newQueuePushCommand(ctx))
	queueCmd.AddCommand(newQueueLengthCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueStatsCommand(ctx))
	queueCmd.AddCommand(newQueueSweepCommand(ctx))
	queueCmd.AddCommand(newQueueDeadCommand(ctx))

	return queueCmd
}

func newQueuePushCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "push <queue> [key=value ...]",
		Short: "Enqueue a payload",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := parsePayload(args[1:])
			if err != nil {
				return err
			}
			q, err := ctx.openQueue(args[0])
			if err != nil {
				return err
			}
			id, err := q.Push(payload)
			if err != nil {
				return fmt.Errorf("push to %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Enqueued %s on %s\n", id, args[0])
			return nil
		},
	}
}

func newQueueLengthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "length <queue>",
		Short: "Count pending items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := ctx.openQueue(args[0])
			if err != nil {
				return err
			}
			length, err := q.Length()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), length)
			return nil
		},
	}
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List queues with item counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			names, err := queue.ListNames(cfg.QueuesDir())
			if err != nil {
				return err
			}
			if len(names) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No queues found")
				return nil
			}

			rows := make([][]string, 0, len(names))
			for _, name := range names {
				q, openErr := ctx.openQueue(name)
				if openErr != nil {
					return openErr
				}
				stats, statsErr := q.Stats()
				if statsErr != nil {
					return statsErr
				}
				rows = append(rows, []string{
					name,
					strconv.Itoa(stats.Pending),
					strconv.Itoa(stats.Claimed),
					strconv.Itoa(stats.Dead),
				})
			}
			out := renderTable(
				[]string{"Queue", "Pending", "Claimed", "Dead"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight},
			)
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

func newQueueStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <queue>",
		Short: "Show item counts for one queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := ctx.openQueue(args[0])
			if err != nil {
				return err
			}
			stats, err := q.Stats()
			if err != nil {
				return err
			}
			rows := [][]string{
				{"pending", strconv.Itoa(stats.Pending)},
				{"claimed", strconv.Itoa(stats.Claimed)},
				{"dead", strconv.Itoa(stats.Dead)},
				{"total", strconv.Itoa(stats.Total())},
			}
			out := renderTable([]string{"State", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
}

func newQueueSweepCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep <queue>",
		Short: "Return aged-out claims to pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			q, err := ctx.openQueue(args[0])
			if err != nil {
				return err
			}
			reclaimed, err := q.Sweep(cfg.ReclaimAfter())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reclaimed %d item(s) on %s\n", reclaimed, args[0])
			return nil
		},
	}
}

func newQueueDeadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "dead <queue>",
		Short: "List quarantined items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := ctx.openQueue(args[0])
			if err != nil {
				return err
			}
			keys, err := q.Dead()
			if err != nil {
				return err
			}
			if len(keys) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No dead items")
				return nil
			}
			for _, key := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), key)
			}
			return nil
		},
	}
}

func parsePayload(pairs []string) (map[string]any, error) {
	payload := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !found || key == "" {
			return nil, fmt.Errorf("invalid payload field %q (expected key=value)", pair)
		}
		payload[key] = value
	}
	return payload, nil
}
