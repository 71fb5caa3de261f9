package main

import (
	"github.com/spf13/cobra"
)

func newHeartbeatCommand(ctx *commandContext) *cobra.Command {
	heartbeatCmd := &cobra.Command{
		Use:   "heartbeat",
		Short: "Inspect worker liveness",
	}

	heartbeatCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List workers and their liveness state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printHeartbeats(ctx, cmd)
		},
	})

	return heartbeatCmd
}
