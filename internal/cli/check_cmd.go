package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/keydesk/keydesk/internal/licensekey"
	"github.com/keydesk/keydesk/internal/repository"
)

type checkResult struct {
	Input  string `json:"input"`
	Key    string `json:"key"`
	Valid  bool   `json:"valid"`
	Exists *bool  `json:"exists,omitempty"`
	IsUsed *bool  `json:"is_used,omitempty"`
}

func newCheckCmd(a *app) *cobra.Command {
	var lookup bool

	cmd := &cobra.Command{
		Use:   "check <key>",
		Short: "Validate and normalize a license key",
		Long: "Check that a key has the XXXX-XXXX-XXXX-XXXX format. Input is trimmed, " +
			"uppercased and re-grouped first. With --lookup the key is also looked up in the store.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := licensekey.Normalize(args[0])
			if err != nil {
				return fmt.Errorf("%q: %w", args[0], err)
			}

			res := checkResult{Input: args[0], Key: key, Valid: true}

			if lookup {
				store, closeStore, err := a.openStore(cmd.Context(), a.cfg)
				if err != nil {
					return fmt.Errorf("open store: %w", err)
				}
				defer closeStore()

				lic, err := store.GetLicenseByKey(cmd.Context(), key)
				switch {
				case errors.Is(err, repository.ErrLicenseNotFound):
					exists := false
					res.Exists = &exists
				case err != nil:
					return fmt.Errorf("look up %s: %w", key, err)
				default:
					exists := true
					res.Exists = &exists
					res.IsUsed = &lic.IsUsed
				}
			}

			if a.output == "json" {
				return printJSON(cmd.OutOrStdout(), res)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s valid\n", key)
			if res.Exists != nil {
				switch {
				case !*res.Exists:
					fmt.Fprintln(out, "not issued")
				case *res.IsUsed:
					fmt.Fprintln(out, "issued, used")
				default:
					fmt.Fprintln(out, "issued, unused")
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&lookup, "lookup", false, "Also look the key up in the license store")

	return cmd
}
