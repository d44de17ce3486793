package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newImportCmd creates the `import` command, merging accounts from an Excel
// workbook into the canonical CSV roster.
func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <workbook.xlsx>",
		Short: "Import accounts from an Excel workbook into the roster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}

			added, err := store.ImportWorkbook(args[0])
			if err != nil {
				return fmt.Errorf("workbook import failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d new account(s) from %s\n", added, args[0])
			return nil
		},
	}
}

func init() {
	rootCmd.AddCommand(newImportCmd())
}
