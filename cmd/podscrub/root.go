package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var serverFlag string
	var tokenFlag string

	rootCmd := &cobra.Command{
		Use:           "podscrub",
		Short:         "Podcast ad-removal proxy CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", "http://127.0.0.1:8080", "Daemon API base URL")
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "API bearer token")

	client := func() *apiClient {
		return newAPIClient(serverFlag, tokenFlag)
	}

	rootCmd.AddCommand(newStatusCommand(client))
	rootCmd.AddCommand(newFeedsCommand(client))
	rootCmd.AddCommand(newEpisodesCommand(client))
	rootCmd.AddCommand(newReprocessCommand(client))
	rootCmd.AddCommand(newConfigCommand())

	return rootCmd
}
