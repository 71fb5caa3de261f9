package main

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"capstan/internal/heartbeat"
	"capstan/internal/history"
	"capstan/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queues, worker liveness, and recent outcomes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			names, err := queue.ListNames(cfg.QueuesDir())
			if err != nil {
				return err
			}
			if len(names) == 0 {
				fmt.Fprintln(out, "No queues found")
			} else {
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
				fmt.Fprintln(out, renderTable(
					[]string{"Queue", "Pending", "Claimed", "Dead"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignRight, alignRight},
				))
			}

			if err := printHeartbeats(ctx, cmd); err != nil {
				return err
			}
			return printHistorySummary(ctx, cmd)
		},
	}
}

func printHeartbeats(ctx *commandContext, cmd *cobra.Command) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	monitor, err := heartbeat.New(cfg.HeartbeatDir(), cfg.HeartbeatInterval(), cfg.HeartbeatTimeout())
	if err != nil {
		return err
	}
	identities, err := monitor.List()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(identities) == 0 {
		fmt.Fprintln(out, "No worker heartbeats on record")
		return nil
	}

	rows := make([][]string, 0, len(identities))
	for _, identity := range identities {
		status := monitor.Check(identity)
		detail := status.Age.Round(time.Second).String()
		if !status.Alive() {
			detail = string(status.Reason)
		}
		rows = append(rows, []string{identity, string(status.State), detail})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Worker", "State", "Age/Reason"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft},
	))
	return nil
}

func printHistorySummary(ctx *commandContext, cmd *cobra.Command) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	archive, err := history.Open(cfg.HistoryPath())
	if err != nil {
		return err
	}
	defer archive.Close()

	stats, err := archive.Stats(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(stats) == 0 {
		fmt.Fprintln(out, "No archived outcomes")
		return nil
	}

	queues := make([]string, 0, len(stats))
	for queueName := range stats {
		queues = append(queues, queueName)
	}
	sort.Strings(queues)

	rows := make([][]string, 0, len(queues))
	for _, queueName := range queues {
		counts := stats[queueName]
		rows = append(rows, []string{
			queueName,
			strconv.Itoa(counts.Completed),
			strconv.Itoa(counts.Failed),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Queue", "Completed", "Failed"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight},
	))
	return nil
}
