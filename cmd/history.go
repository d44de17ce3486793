package cmd

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/purib/ipopilot/internal/history"
	"github.com/purib/ipopilot/internal/observability"
)

// newHistoryCmd creates the `history` command, printing the application
// ledger so operators can see which accounts covered which offerings.
func newHistoryCmd() *cobra.Command {
	var migrate bool

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Print the completed-application ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()
			ledger := history.NewLedger(viper.GetString("storage.history_file"), logger)
			if migrate {
				if err := ledger.MigrateLegacy(viper.GetString("storage.legacy_history_file")); err != nil {
					return err
				}
			}

			records, err := ledger.All()
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Name", "Username", "Company", "Bank", "Applied At"})
			for _, rec := range records {
				t.AppendRow(table.Row{
					rec.Name,
					rec.Username,
					rec.Company,
					rec.Bank,
					rec.AppliedAt.Format("2006-01-02 15:04:05"),
				})
			}
			t.SetStyle(table.StyleRounded)
			t.Render()
			return nil
		},
	}

	historyCmd.Flags().BoolVar(&migrate, "migrate", false, "import a legacy JSON history file into the ledger first")
	return historyCmd
}

func init() {
	rootCmd.AddCommand(newHistoryCmd())
}
