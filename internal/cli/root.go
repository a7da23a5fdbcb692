// Package cli wires configuration, the source client, the store, and the
// exporter into the finsync commands.
package cli

import (
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "finsync",
		Short: "finsync - Plaid to Postgres sync with csv exports",
		Long: `finsync pulls accounts and transactions from the Plaid API into Postgres
with idempotent upserts, and exports tables as csv artifacts to Cloud Storage.`,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	rootCmd.AddCommand(NewSyncCmd(), NewExportCmd())

	return rootCmd
}
