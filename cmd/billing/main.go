package main

import (
	"os"

	"github.com/spf13/cobra"

	"chatdesk/internal/interfaces/cli/migrate"
	"chatdesk/internal/interfaces/cli/server"
	"chatdesk/internal/interfaces/cli/worker"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "billing",
		Short: "Chatdesk billing - subscription lifecycle and entitlement engine",
		Long:  `Chatdesk billing keeps tenant subscriptions in step with the payment provider and enforces plan limits on users and channels.`,
	}

	rootCmd.AddCommand(
		server.NewCommand(),
		worker.NewCommand(),
		migrate.NewCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
