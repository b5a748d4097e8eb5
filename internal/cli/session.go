package cli

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Game session commands",
	}

	cmd.AddCommand(newSessionStartCmd())
	cmd.AddCommand(newSessionEndCmd())
	cmd.AddCommand(newSessionGetCmd())
	cmd.AddCommand(newSessionDataCmd())

	return cmd
}

func newSessionStartCmd() *cobra.Command {
	var playerID string
	var gameType int

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a game session",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]any{"playerId": playerID, "gameType": gameType}
			var result Session

			if err := client.Post("/sessions/start", req, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&playerID, "player", "", "Player id (required)")
	cmd.Flags().IntVar(&gameType, "game-type", 0, "Game type: 1 deploy_the_cat, 2 git_blaster (required)")
	_ = cmd.MarkFlagRequired("player")
	_ = cmd.MarkFlagRequired("game-type")

	return cmd
}

func newSessionEndCmd() *cobra.Command {
	var score int64
	var completed bool
	var data []string

	cmd := &cobra.Command{
		Use:   "end <session-id>",
		Short: "End a session with its final score",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gameData, err := parseGameData(data)
			if err != nil {
				return err
			}
			req := map[string]any{
				"finalScore":            score,
				"completedSuccessfully": completed,
				"finalGameData":         gameData,
			}
			var result EndResult

			if err := client.Post("/sessions/"+url.PathEscape(args[0])+"/end", req, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}

	cmd.Flags().Int64Var(&score, "score", 0, "Final score")
	cmd.Flags().BoolVar(&completed, "completed", false, "Whether the game was completed")
	cmd.Flags().StringArrayVar(&data, "data", nil, "Final game data as key=value (repeatable)")

	return cmd
}

func newSessionGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <session-id>",
		Short: "Show a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Session

			if err := client.Get("/sessions/"+url.PathEscape(args[0]), &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}

func newSessionDataCmd() *cobra.Command {
	var data []string

	cmd := &cobra.Command{
		Use:   "data <session-id>",
		Short: "Merge game data into an active session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gameData, err := parseGameData(data)
			if err != nil {
				return err
			}
			if len(gameData) == 0 {
				return fmt.Errorf("at least one --set key=value is required")
			}
			var result Session

			if err := client.Put("/sessions/"+url.PathEscape(args[0])+"/data", map[string]any{"gameData": gameData}, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&data, "set", nil, "Game data as key=value (repeatable)")

	return cmd
}

// parseGameData turns key=value pairs into a map. Values that look like
// integers, floats or booleans are sent as such.
func parseGameData(pairs []string) (map[string]any, error) {
	data := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid game data %q, want key=value", pair)
		}
		data[key] = parseValue(strings.TrimSpace(raw))
	}
	return data, nil
}

func parseValue(raw string) any {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}
