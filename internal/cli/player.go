package cli

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

func newPlayerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "player",
		Short: "Player account commands",
	}

	cmd.AddCommand(newPlayerCreateCmd())
	cmd.AddCommand(newPlayerGetCmd())
	cmd.AddCommand(newPlayerUpdateCmd())
	cmd.AddCommand(newPlayerSessionsCmd())

	return cmd
}

func newPlayerCreateCmd() *cobra.Command {
	var name, email, idempotencyKey string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a new player",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{"name": name, "email": email}
			var result Player

			if err := client.Do(http.MethodPost, "/players", req, &result, "Idempotency-Key", idempotencyKey); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name (required)")
	cmd.Flags().StringVar(&email, "email", "", "Email address (required)")
	cmd.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "Replay-safe request key")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func newPlayerGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <player-id>",
		Short: "Show a player",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Player

			if err := client.Get("/players/"+url.PathEscape(args[0]), &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}

func newPlayerUpdateCmd() *cobra.Command {
	var name, email string

	cmd := &cobra.Command{
		Use:   "update <player-id>",
		Short: "Change a player's name and email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{"name": name, "email": email}
			var result Player

			if err := client.Put("/players/"+url.PathEscape(args[0]), req, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name (required)")
	cmd.Flags().StringVar(&email, "email", "", "Email address (required)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func newPlayerSessionsCmd() *cobra.Command {
	var gameType string
	var limit int

	cmd := &cobra.Command{
		Use:   "sessions <player-id>",
		Short: "List a player's sessions, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if gameType != "" {
				q.Set("gameType", gameType)
			}
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}
			path := fmt.Sprintf("/players/%s/sessions", url.PathEscape(args[0]))
			if len(q) > 0 {
				path += "?" + q.Encode()
			}

			var result []Session
			if err := client.Get(path, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&gameType, "game-type", "", "Filter by game: 1, 2, deploy_the_cat or git_blaster")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum sessions to list (server default 20)")

	return cmd
}
