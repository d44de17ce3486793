// File: internal/orchestrator/runner.go
// Package orchestrator owns the top-level run loop: one discovery pass,
// then accounts x undone offerings with a fresh browser context per
// account.
package orchestrator

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/purib/ipopilot/internal/config"
	"github.com/purib/ipopilot/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// PageFactory creates isolated browser pages; the returned close function
// tears the page's browser context down.
type PageFactory interface {
	NewPage(ctx context.Context) (domain.Page, func(), error)
}

// Authenticator signs an account into the portal on the given page.
type Authenticator interface {
	Login(ctx context.Context, page domain.Page, acc *domain.Account) bool
}

// Discoverer enumerates open offerings on an authenticated page.
type Discoverer interface {
	Discover(ctx context.Context, page domain.Page) []domain.Offering
}

// Applier runs one application attempt.
type Applier interface {
	Apply(ctx context.Context, page domain.Page, acc *domain.Account, offering domain.Offering)
}

// Attacher installs the notification bridge for the pair about to run.
type Attacher interface {
	Attach(ctx context.Context, page domain.Page, acc *domain.Account, offering domain.Offering) error
}

// Runner drives a full run over the given accounts.
type Runner struct {
	accounts  []*domain.Account
	browser   PageFactory
	auth      Authenticator
	discovery Discoverer
	workflow  Applier
	monitor   Attacher
	ledger    domain.Ledger
	limiter   *rate.Limiter
	logger    *zap.Logger
}

func NewRunner(
	cfg config.RunConfig,
	accounts []*domain.Account,
	browser PageFactory,
	auth Authenticator,
	discovery Discoverer,
	workflow Applier,
	monitor Attacher,
	ledger domain.Ledger,
	logger *zap.Logger,
) *Runner {
	return &Runner{
		accounts:  accounts,
		browser:   browser,
		auth:      auth,
		discovery: discovery,
		workflow:  workflow,
		monitor:   monitor,
		ledger:    ledger,
		limiter:   rate.NewLimiter(rate.Every(cfg.OfferingPause), 1),
		logger:    logger.Named("orchestrator"),
	}
}

// Run executes the full loop. Per-account and per-offering failures are
// logged and skipped; only resource-acquisition failures (no browser) or a
// canceled context abort the run.
func (r *Runner) Run(ctx context.Context) error {
	log := r.logger.With(zap.String("run_id", uuid.NewString()))
	log.Info("Run started", zap.Int("accounts", len(r.accounts)))

	if len(r.accounts) == 0 {
		log.Warn("No active accounts to process")
		return nil
	}

	page, closePage, err := r.browser.NewPage(ctx)
	if err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	defer func() { closePage() }()

	// The first account doubles as the discovery session.
	first := r.accounts[0]
	log.Info("Checking for open offerings", zap.String("username", first.Username))
	if !r.auth.Login(ctx, page, first) {
		log.Warn("Initial login failed, cannot discover offerings")
		return nil
	}

	offerings := r.discovery.Discover(ctx, page)
	if len(offerings) == 0 {
		log.Info("No open offerings, nothing to do")
		return nil
	}
	log.Info("Offerings discovered", zap.Int("count", len(offerings)))

	loggedIn := true
	for i, acc := range r.accounts {
		if err := ctx.Err(); err != nil {
			return err
		}
		alog := log.With(zap.String("username", acc.Username))

		todo, err := r.pending(acc, offerings)
		if err != nil {
			return err
		}
		if len(todo) == 0 {
			alog.Info("All open offerings already applied, skipping")
			continue
		}
		alog.Info("Processing offerings", zap.Int("count", len(todo)))

		// Accounts after the first get a fresh browser context and login.
		if i > 0 {
			closePage()
			page, closePage, err = r.browser.NewPage(ctx)
			if err != nil {
				return fmt.Errorf("failed to open browser: %w", err)
			}
			loggedIn = r.auth.Login(ctx, page, acc)
		}
		if !loggedIn {
			alog.Warn("Login failed, skipping account")
			continue
		}

		for _, offering := range todo {
			if err := r.monitor.Attach(ctx, page, acc, offering); err != nil {
				alog.Warn("Failed to attach notification monitor",
					zap.String("company", offering.Company), zap.Error(err))
			}
			r.workflow.Apply(ctx, page, acc, offering)
			if err := r.limiter.Wait(ctx); err != nil {
				return err
			}
		}
	}

	log.Info("Run finished")
	return nil
}

// pending filters the offerings acc has not completed yet.
func (r *Runner) pending(acc *domain.Account, offerings []domain.Offering) ([]domain.Offering, error) {
	var todo []domain.Offering
	for _, offering := range offerings {
		done, err := r.ledger.IsCompleted(acc.Username, offering.Company)
		if err != nil {
			return nil, fmt.Errorf("ledger check failed: %w", err)
		}
		if !done {
			todo = append(todo, offering)
		}
	}
	return todo, nil
}
