package cli

import (
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/keydesk/keydesk/internal/identity"
	"github.com/keydesk/keydesk/internal/model"
)

func newTokenCmd(a *app) *cobra.Command {
	var (
		ttl   time.Duration
		email string
	)

	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Mint a session token signed with JWT_SECRET (development only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.RequireJWTSecret(); err != nil {
				return err
			}
			if ttl <= 0 {
				return fmt.Errorf("--ttl must be positive")
			}

			verifier := identity.NewVerifier(a.cfg.JWTSecret, a.cfg.JWTIssuer, a.cfg.JWTAudience)
			sessionID := ulid.Make().String()
			token, err := verifier.Sign(model.Principal{ID: args[0], Email: email}, sessionID, ttl)
			if err != nil {
				return err
			}

			if a.output == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]string{
					"token":      token,
					"session_id": sessionID,
					"expires_at": time.Now().Add(ttl).UTC().Format(time.RFC3339),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	cmd.Flags().StringVar(&email, "email", "", "Email claim")

	return cmd
}
