package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keydesk/keydesk/internal/admin"
	"github.com/keydesk/keydesk/internal/console"
	"github.com/keydesk/keydesk/internal/identity"
	"github.com/keydesk/keydesk/internal/license"
	"github.com/keydesk/keydesk/internal/model"
)

var errMissingToken = errors.New("no session token: pass --token or set KEYDESK_TOKEN")

func newIssueCmd(a *app) *cobra.Command {
	var (
		count int
		token string
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a batch of license keys",
		Long: "Sign in with a session token, confirm the principal is an administrator " +
			"and store a batch of new license keys. A non-administrator session is signed out.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := a.cfg

			if token == "" {
				token = cfg.Token
			}
			if token == "" {
				return errMissingToken
			}
			if err := cfg.RequireJWTSecret(); err != nil {
				return err
			}

			store, closeStore, err := a.openStore(ctx, cfg)
			if err != nil {
				return fmt.Errorf("open license store: %w", err)
			}
			defer closeStore()

			revoker, closeRevoker, err := a.openRevoker(ctx, cfg)
			if err != nil {
				return fmt.Errorf("open session store: %w", err)
			}
			defer closeRevoker()

			broker := identity.NewBroker(
				identity.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience),
				revoker,
				a.logger,
			)
			if _, err := broker.SignInWithToken(token); err != nil {
				return fmt.Errorf("sign in: %w", err)
			}

			issuer := license.NewIssuer(store,
				license.WithMaxBatch(cfg.LicenseMaxBatch),
				license.WithLogger(a.logger),
			)
			con := console.New(ctx, broker, admin.NewGate(store, a.logger, nil), issuer, a.logger)
			defer con.Close()

			keys, err := con.Issue(ctx, count)
			if err != nil {
				return describeIssueError(err)
			}

			if a.output == "json" {
				return printJSON(cmd.OutOrStdout(), model.IssueLicensesResponse{Keys: keys, Count: len(keys)})
			}
			for _, k := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 1, "Number of keys to issue (1-100)")
	cmd.Flags().StringVar(&token, "token", "", "Session token (default $KEYDESK_TOKEN)")

	return cmd
}

func describeIssueError(err error) error {
	switch {
	case errors.Is(err, console.ErrAccessDenied):
		return fmt.Errorf("%w; administrator access is required", err)
	case errors.Is(err, license.ErrUniquenessViolation), errors.Is(err, license.ErrStoreUnavailable):
		return fmt.Errorf("%w; nothing was stored, try again", err)
	default:
		return err
	}
}
