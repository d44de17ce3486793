package cmd

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/purib/ipopilot/internal/accounts"
	"github.com/purib/ipopilot/internal/browser"
	"github.com/purib/ipopilot/internal/config"
	"github.com/purib/ipopilot/internal/discovery"
	"github.com/purib/ipopilot/internal/observability"
	"github.com/purib/ipopilot/internal/session"
)

// newCheckCmd creates the `check` command: sign in with the first active
// account, enumerate open offerings, and print them without applying.
func newCheckCmd() *cobra.Command {
	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "List open offerings without applying",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return viper.BindPFlag("browser.headless", cmd.Flags().Lookup("headless"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			store, err := accounts.NewStore(cfg.Storage.AccountsFile, logger)
			if err != nil {
				return fmt.Errorf("failed to load account roster: %w", err)
			}
			active := store.Active()
			if len(active) == 0 {
				return fmt.Errorf("no active accounts with complete credentials in %s", cfg.Storage.AccountsFile)
			}

			manager := browser.NewManager(ctx, cfg.Browser, logger)
			defer manager.Shutdown()

			page, closePage, err := manager.NewPage(ctx)
			if err != nil {
				return fmt.Errorf("failed to open browser: %w", err)
			}
			defer closePage()

			auth := session.NewService(cfg.Portal, store, logger)
			if !auth.Login(ctx, page, active[0]) {
				return fmt.Errorf("login failed for %s", active[0].Username)
			}

			offerings := discovery.NewEngine(cfg.Portal, logger).Discover(ctx, page)
			if len(offerings) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No open offerings.")
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"#", "Company", "Action", "URL"})
			for _, off := range offerings {
				t.AppendRow(table.Row{off.Index + 1, off.Company, string(off.Kind), off.URL})
			}
			t.SetStyle(table.StyleRounded)
			t.Render()
			return nil
		},
	}

	checkCmd.Flags().Bool("headless", false, "run the browser without a visible window")
	return checkCmd
}

func init() {
	rootCmd.AddCommand(newCheckCmd())
}
