/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>

*/
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/aegisalert/aegis/client/agent"
	"github.com/aegisalert/aegis/client/fanout"
	"github.com/spf13/cobra"
)

// agentCmd represents the agent command
func init() {
	rootCmd.AddCommand(createAgentCmd())
}

func createAgentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "agent",
		Short: "Run the foreground alert watcher",
		Long: `The agent restores your saved session, joins your alert group on the
push channel and prints alert activity to the terminal until interrupted.
It re-fetches the authoritative state on every event and on a fixed
schedule, so missed pushes never leave it stale.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newClientApp()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fan := fanout.NewFanout(app.api, app.channel, app.logg)
			watcher := agent.New(app.flow, fan, app.channel, app.config.Agent, cmd.OutOrStdout(), app.logg)

			return watcher.Run(ctx)
		},
	}
}
