package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tapfarm/internal/accounts"
	"tapfarm/internal/config"
	"tapfarm/internal/utils"
)

func newAccountsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List the accounts that the next run will farm",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			accs, err := accounts.LoadFile(cfg.Accounts.File)
			if err != nil {
				return fmt.Errorf("load accounts: %w", err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "LINE\tLABEL\tCREDENTIAL")
			for _, a := range accs {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", strconv.Itoa(a.Line), a.Label, utils.MaskSecret(a.Credential, 6))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d account(s) from %s\n", len(accs), cfg.Accounts.File)
			return nil
		},
	}
}
