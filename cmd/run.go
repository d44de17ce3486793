package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/purib/ipopilot/internal/accounts"
	"github.com/purib/ipopilot/internal/browser"
	"github.com/purib/ipopilot/internal/config"
	"github.com/purib/ipopilot/internal/discovery"
	"github.com/purib/ipopilot/internal/history"
	"github.com/purib/ipopilot/internal/notify"
	"github.com/purib/ipopilot/internal/observability"
	"github.com/purib/ipopilot/internal/orchestrator"
	"github.com/purib/ipopilot/internal/session"
	"github.com/purib/ipopilot/internal/workflow"
)

// newRunCmd creates and configures the `run` command, the main entry point
// that walks every active account through every open offering.
func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Apply every active account to every open offering",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags to their Viper keys so command-line flags
			// correctly override config file and environment values.
			if err := viper.BindPFlag("browser.headless", cmd.Flags().Lookup("headless")); err != nil {
				return err
			}
			if err := viper.BindPFlag("run.kitta", cmd.Flags().Lookup("kitta")); err != nil {
				return err
			}
			if err := viper.BindPFlag("storage.accounts_file", cmd.Flags().Lookup("accounts")); err != nil {
				return err
			}
			return viper.BindPFlag("storage.history_file", cmd.Flags().Lookup("history"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Use the context passed from main (signal-aware).
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			if err := executeRun(ctx, cfg, logger); err != nil {
				if errors.Is(err, context.Canceled) {
					logger.Warn("Run aborted by user signal")
					return fmt.Errorf("run aborted by user signal")
				}
				return err
			}
			return nil
		},
	}

	runCmd.Flags().Bool("headless", false, "run the browser without a visible window")
	runCmd.Flags().String("kitta", "", "applied unit count entered into each form")
	runCmd.Flags().String("accounts", "", "path to the account roster CSV")
	runCmd.Flags().String("history", "", "path to the completed-application ledger CSV")
	return runCmd
}

// executeRun wires the storage, browser, and portal components together and
// drives the orchestration loop.
func executeRun(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	store, err := accounts.NewStore(cfg.Storage.AccountsFile, logger)
	if err != nil {
		return fmt.Errorf("failed to load account roster: %w", err)
	}

	active := store.Active()
	if len(active) == 0 {
		logger.Warn("No active accounts with complete credentials",
			zap.String("file", cfg.Storage.AccountsFile))
		return nil
	}

	ledger := history.NewLedger(cfg.Storage.HistoryFile, logger)
	if err := ledger.MigrateLegacy(cfg.Storage.LegacyHistoryFile); err != nil {
		logger.Warn("Legacy history migration failed, continuing with CSV ledger only",
			zap.Error(err))
	}

	manager := browser.NewManager(ctx, cfg.Browser, logger)
	defer manager.Shutdown()

	monitor := notify.NewMonitor(ledger, store, logger)
	monitor.Start(ctx)
	defer monitor.Stop()

	runner := orchestrator.NewRunner(
		cfg.Run,
		active,
		manager,
		session.NewService(cfg.Portal, store, logger),
		discovery.NewEngine(cfg.Portal, logger),
		workflow.New(cfg.Portal, cfg.Run, ledger, store, monitor, logger),
		monitor,
		ledger,
		logger,
	)
	return runner.Run(ctx)
}

func init() {
	rootCmd.AddCommand(newRunCmd())
}
