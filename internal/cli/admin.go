package cli

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/rogerbap/gaminglibrary/internal/auth"
	"github.com/rogerbap/gaminglibrary/internal/dependencies/clock"
	"github.com/spf13/cobra"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Admin moderation commands (need an admin token)",
	}

	cmd.AddCommand(newAdminTokenCmd())
	cmd.AddCommand(newAdminSetActiveCmd("deactivate", "Block a player from starting sessions"))
	cmd.AddCommand(newAdminSetActiveCmd("reactivate", "Restore a deactivated player"))
	cmd.AddCommand(newAdminFlaggedCmd())

	return cmd
}

func newAdminTokenCmd() *cobra.Command {
	var secret, subject, role string
	var expiry time.Duration
	var save bool

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an admin token signed with the server's JWT secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return fmt.Errorf("--secret or JWT_SECRET is required")
			}

			clk := clock.New()
			mgr := auth.NewJWTManager(secret, expiry, clk)
			token, err := mgr.GenerateAdminToken(subject, role)
			if err != nil {
				return err
			}
			if save {
				if err := cfg.SaveToken(token); err != nil {
					return fmt.Errorf("failed to save token: %w", err)
				}
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(TokenResult{
				Token:     token,
				Subject:   subject,
				Role:      role,
				ExpiresAt: clk.Now().Add(expiry),
			})
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "JWT signing secret (env: JWT_SECRET)")
	cmd.Flags().StringVar(&subject, "subject", "", "Admin identity recorded in the token (required)")
	cmd.Flags().StringVar(&role, "role", auth.RoleAdmin, "Role: viewer, admin or superadmin")
	cmd.Flags().DurationVar(&expiry, "expiry", 8*time.Hour, "Token lifetime")
	cmd.Flags().BoolVar(&save, "save", false, "Save the token to --token-file")
	_ = cmd.MarkFlagRequired("subject")

	return cmd
}

func newAdminSetActiveCmd(action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <player-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Player

			if err := client.Post("/admin/players/"+url.PathEscape(args[0])+"/"+action, nil, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}

func newAdminFlaggedCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "flagged",
		Short: "List sessions flagged for review",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/admin/sessions/flagged"
			if limit > 0 {
				path += "?limit=" + strconv.Itoa(limit)
			}

			var result []Session
			if err := client.Get(path, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum sessions to list (server default 20)")

	return cmd
}
