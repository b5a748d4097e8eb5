package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

func newLeaderboardCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the top players",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/leaderboard"
			if limit > 0 {
				path += "?limit=" + strconv.Itoa(limit)
			}

			var result []LeaderboardEntry
			if err := client.Get(path, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Number of players (server default 20)")

	return cmd
}

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result HealthResult

			if err := client.Get("/health", &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}
