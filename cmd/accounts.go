package cmd

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/purib/ipopilot/internal/accounts"
	"github.com/purib/ipopilot/internal/observability"
)

// newAccountsCmd creates the `accounts` command, printing the roster with
// the last recorded status per account without opening a browser.
func newAccountsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "Print the account roster with the last recorded status per account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Name", "Username", "DP ID", "Active", "Preferred Bank", "Status", "Available Banks"})
			for _, acc := range store.Accounts() {
				t.AppendRow(table.Row{
					acc.Name,
					acc.Username,
					acc.DPID,
					acc.Active,
					acc.BankName,
					acc.Status,
					strings.Join(acc.AvailableBanks, ", "),
				})
			}
			t.SetStyle(table.StyleRounded)
			t.Render()
			return nil
		},
	}
}

// openStore loads the roster named by the active configuration.
func openStore() (*accounts.Store, error) {
	path := viper.GetString("storage.accounts_file")
	store, err := accounts.NewStore(path, observability.GetLogger())
	if err != nil {
		return nil, fmt.Errorf("failed to load account roster %s: %w", path, err)
	}
	return store, nil
}

func init() {
	rootCmd.AddCommand(newAccountsCmd())
}
