// File: internal/session/service.go
// Package session signs an account into the portal and verifies the
// resulting dashboard.
package session

import (
	"context"
	"strings"

	"github.com/chromedp/chromedp/kb"
	"github.com/purib/ipopilot/internal/config"
	"github.com/purib/ipopilot/internal/domain"
	"go.uber.org/zap"
)

// Selectors for the portal's login screen. The depository picker is a
// select2 widget, so the native <select> is hidden and the search box must
// be driven instead.
const (
	selDepositoryBox    = ".select2-selection--single"
	selDepositorySearch = ".select2-search__field"
	selUsername         = "#username"
	selPassword         = "#password"
	selSignIn           = "button.sign-in"

	// dashboardLink is the landmark proving a login landed on the
	// dashboard.
	dashboardLink = "//a[contains(normalize-space(.),'Dashboard')]"
)

// Service performs portal logins.
type Service struct {
	cfg    config.PortalConfig
	store  domain.AccountStore
	logger *zap.Logger
}

func NewService(cfg config.PortalConfig, store domain.AccountStore, logger *zap.Logger) *Service {
	return &Service{
		cfg:    cfg,
		store:  store,
		logger: logger.Named("session"),
	}
}

// Login drives the full login flow for acc and reports whether the
// dashboard was reached. Failures are recorded on the account's status and
// never abort the run; the caller simply skips the account.
func (s *Service) Login(ctx context.Context, page domain.Page, acc *domain.Account) bool {
	log := s.logger.With(zap.String("username", acc.Username))
	log.Info("Logging in")

	if err := s.fillLoginForm(ctx, page, acc); err != nil {
		log.Warn("Login form interaction failed", zap.Error(err))
		s.markCredentials(acc, false)
		return false
	}

	if !s.dashboardReached(ctx, page) {
		log.Warn("Login failed, dashboard not reached")
		s.markCredentials(acc, false)
		return false
	}

	log.Info("Login successful")
	s.markCredentials(acc, true)
	return true
}

func (s *Service) fillLoginForm(ctx context.Context, page domain.Page, acc *domain.Account) error {
	if err := page.Navigate(ctx, s.cfg.LoginURL); err != nil {
		return err
	}

	// Pick the depository participant through the select2 search box.
	if err := page.WaitVisible(ctx, selDepositoryBox, s.cfg.SelectorTimeout); err != nil {
		return err
	}
	if err := page.Click(ctx, selDepositoryBox); err != nil {
		return err
	}
	if err := page.WaitVisible(ctx, selDepositorySearch, s.cfg.SelectorTimeout); err != nil {
		return err
	}
	if err := page.Fill(ctx, selDepositorySearch, acc.DPID); err != nil {
		return err
	}
	if err := page.Press(ctx, selDepositorySearch, kb.Enter); err != nil {
		return err
	}

	if err := page.Fill(ctx, selUsername, acc.Username); err != nil {
		return err
	}
	if err := page.Fill(ctx, selPassword, acc.Password); err != nil {
		return err
	}
	return page.Click(ctx, selSignIn)
}

// dashboardReached waits for the dashboard link, then double-checks the
// rendered content. The content check catches the portal variant that
// renders the dashboard without the link being immediately visible.
func (s *Service) dashboardReached(ctx context.Context, page domain.Page) bool {
	if err := page.WaitVisible(ctx, dashboardLink, s.cfg.DashboardTimeout); err == nil {
		return true
	}
	content, err := page.Content(ctx)
	if err != nil {
		return false
	}
	return strings.Contains(content, "Dashboard")
}

func (s *Service) markCredentials(acc *domain.Account, ok bool) {
	if err := s.store.SetStatus(acc.Username, "credentials", ok); err != nil {
		s.logger.Warn("Failed to persist credential status",
			zap.String("username", acc.Username), zap.Error(err))
	}
}
