package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the assistant and its backends answer",
	Args:  cobra.NoArgs,
	RunE:  runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, _ []string) error {
	health, err := newClient().Health(cmd.Context())
	if health != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "status: %s\ndatabase: %s\nredis: %s\nai: %s\n",
			health.Status, health.Database, health.Redis, health.AI)
	}
	return err
}
