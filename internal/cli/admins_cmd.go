package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newAdminsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admins",
		Short: "Manage administrator records",
	}

	cmd.AddCommand(newAdminsGrantCmd(a))
	cmd.AddCommand(newAdminsRevokeCmd(a))
	cmd.AddCommand(newAdminsListCmd(a))

	return cmd
}

func newAdminsGrantCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "grant <user-id>",
		Short: "Make a user an administrator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := a.openStore(cmd.Context(), a.cfg)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer closeStore()

			rec, err := store.CreateAdmin(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("grant %s: %w", args[0], err)
			}

			if a.output == "json" {
				return printJSON(cmd.OutOrStdout(), rec)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "granted admin to %s (%s)\n", rec.UserID, rec.ID)
			return nil
		},
	}
}

func newAdminsRevokeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <user-id>",
		Short: "Remove a user's administrator record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := a.openStore(cmd.Context(), a.cfg)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer closeStore()

			if err := store.DeleteAdmin(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("revoke %s: %w", args[0], err)
			}

			if a.output == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]string{"revoked": args[0]})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "revoked admin from %s\n", args[0])
			return nil
		},
	}
}

func newAdminsListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List administrators",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, closeStore, err := a.openStore(cmd.Context(), a.cfg)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer closeStore()

			admins, err := store.ListAdmins(cmd.Context())
			if err != nil {
				return fmt.Errorf("list admins: %w", err)
			}

			if a.output == "json" {
				return printJSON(cmd.OutOrStdout(), admins)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "USER ID\tRECORD ID\tCREATED")
			for _, adm := range admins {
				fmt.Fprintf(w, "%s\t%s\t%s\n", adm.UserID, adm.ID, adm.CreatedAt.UTC().Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
}
