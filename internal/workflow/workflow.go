// File: internal/workflow/workflow.go
// Package workflow drives a single (account, offering) application attempt
// through the portal's detail form.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/chromedp/kb"
	"github.com/purib/ipopilot/internal/config"
	"github.com/purib/ipopilot/internal/domain"
	"go.uber.org/zap"
)

// Selectors on the application detail form.
const (
	selBank       = "#selectBank"
	selAccountNum = "select:not(#selectBank)"
	selKitta      = "#appliedKitta"
	selCRN        = "#crnNumber"
	selDisclaimer = "#disclaimer"
	selPIN        = "#transactionPIN"

	btnProceed = "//button[contains(normalize-space(.),'Proceed')]"
	btnApply   = "//button[contains(normalize-space(.),'Apply')]"
)

// errNoBanks aborts the attempt without a diagnostic screenshot; an empty
// bank list is a data problem, not an interaction fault.
var errNoBanks = errors.New("no bank options available")

// errNoOptions marks a readiness poll that ran out its bound with only
// placeholder options present.
var errNoOptions = errors.New("no non-placeholder options")

// SelectionSink receives the bank chosen during the selecting stage, so
// completion records written by the notification consumer carry the right
// bank. Implementations must tolerate calls from the workflow goroutine
// while toasts are being consumed.
type SelectionSink interface {
	SetSelectedBank(bank string)
}

// Workflow applies one account to one offering. Outcomes are communicated
// through the notification monitor and the history ledger, not a return
// value; every failure is isolated to the single (account, offering) pair.
type Workflow struct {
	portal     config.PortalConfig
	run        config.RunConfig
	ledger     domain.Ledger
	store      domain.AccountStore
	selections SelectionSink
	logger     *zap.Logger
}

func New(portal config.PortalConfig, run config.RunConfig, ledger domain.Ledger, store domain.AccountStore, selections SelectionSink, logger *zap.Logger) *Workflow {
	return &Workflow{
		portal:     portal,
		run:        run,
		ledger:     ledger,
		store:      store,
		selections: selections,
		logger:     logger.Named("workflow"),
	}
}

// Apply runs the application state machine for acc on offering.
func (w *Workflow) Apply(ctx context.Context, page domain.Page, acc *domain.Account, offering domain.Offering) {
	log := w.logger.With(
		zap.String("username", acc.Username),
		zap.String("company", offering.Company))
	log.Info("Processing offering")

	// Fresh attempt, fresh selection state.
	w.selections.SetSelectedBank("")

	url, ok := w.navigate(ctx, page, offering, log)
	if !ok {
		log.Warn("Could not reach application detail page, skipping")
		return
	}

	if strings.Contains(url, w.portal.EditPathFragment) {
		log.Info("Already applied (edit mode), recording and skipping")
		w.recordAlreadyApplied(acc, offering, url, log)
		return
	}

	if err := w.selectBankAndAccount(ctx, page, acc, log); err != nil {
		if errors.Is(err, errNoBanks) {
			log.Warn("No banks found for account")
			return
		}
		log.Warn("Bank selection failed", zap.Error(err))
		w.screenshot(ctx, page, "select_err", acc)
		return
	}

	if err := w.fillForm(ctx, page, acc, log); err != nil {
		log.Warn("Form fill failed", zap.Error(err))
		w.screenshot(ctx, page, "form_err", acc)
		return
	}
}

// navigate loads the offering's detail URL, falling back to re-locating
// the offering on the index by its label when the direct URL does not land
// on a detail page.
func (w *Workflow) navigate(ctx context.Context, page domain.Page, offering domain.Offering, log *zap.Logger) (string, bool) {
	if err := page.Navigate(ctx, offering.URL); err != nil {
		log.Warn("Navigation to offering failed", zap.Error(err))
	}

	url, err := page.CurrentURL(ctx)
	if err == nil && w.isDetailURL(url) {
		return url, true
	}

	log.Info("Not on a detail page, retrying through the offerings index", zap.String("url", url))
	if err := page.Navigate(ctx, w.portal.OfferingsURL); err != nil {
		log.Warn("Failed to open offerings index", zap.Error(err))
		return "", false
	}

	var clicked bool
	if err := page.Evaluate(ctx, clickOfferingByLabelScript(offering.Company), &clicked); err != nil || !clicked {
		log.Warn("Offering not found on index", zap.Error(err))
		return "", false
	}

	url, err = w.waitDetailURL(ctx, page)
	if err != nil {
		log.Warn("Index click did not land on a detail page", zap.Error(err))
		return "", false
	}
	return url, true
}

func (w *Workflow) isDetailURL(url string) bool {
	return strings.Contains(url, w.portal.ApplyPathFragment) ||
		strings.Contains(url, w.portal.EditPathFragment)
}

func (w *Workflow) waitDetailURL(ctx context.Context, page domain.Page) (string, error) {
	deadline := time.Now().Add(w.portal.OptionSettle)
	for {
		url, err := page.CurrentURL(ctx)
		if err != nil {
			return "", err
		}
		if w.isDetailURL(url) {
			return url, nil
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("url %q is not an application detail page", url)
		}
		if err := sleep(ctx, w.portal.OptionPollInterval); err != nil {
			return "", err
		}
	}
}

// recordAlreadyApplied writes the single ledger entry for an offering the
// portal reports as already applied. The ledger's uniqueness check makes
// the write idempotent.
func (w *Workflow) recordAlreadyApplied(acc *domain.Account, offering domain.Offering, url string, log *zap.Logger) {
	done, err := w.ledger.IsCompleted(acc.Username, offering.Company)
	if err != nil {
		log.Warn("Ledger check failed", zap.Error(err))
		return
	}
	if done {
		return
	}
	rec := domain.Record{
		Name:     acc.Name,
		Username: acc.Username,
		BOID:     acc.DPID,
		Company:  offering.Company,
		URL:      url,
		Bank:     domain.BankAlreadyApplied,
	}
	if err := w.ledger.Record(rec); err != nil {
		log.Warn("Failed to record already-applied state", zap.Error(err))
	}
}

// selectBankAndAccount performs the Selecting stage: waits for the bank
// dropdown to populate, persists the observed bank list, matches the
// preferred bank, and selects the dependent account number.
func (w *Workflow) selectBankAndAccount(ctx context.Context, page domain.Page, acc *domain.Account, log *zap.Logger) error {
	log.Info("Selecting bank", zap.String("preferred", acc.BankName))

	if err := page.WaitVisible(ctx, selBank, w.portal.SelectorTimeout); err != nil {
		return err
	}

	// Options load over AJAX after the control renders.
	banks, err := w.waitOptions(ctx, page, selBank)
	if err != nil {
		if errors.Is(err, errNoOptions) {
			return errNoBanks
		}
		return fmt.Errorf("bank options never populated: %w", err)
	}

	valid := make([]domain.SelectOption, 0, len(banks))
	names := make([]string, 0, len(banks))
	for _, o := range banks {
		if o.Value == "" {
			continue
		}
		o.Text = NormalizeBankText(o.Text)
		valid = append(valid, o)
		names = append(names, o.Text)
	}

	// Persist what the portal offered regardless of the outcome; operators
	// use this to fix a misspelled preference.
	acc.AvailableBanks = names
	if err := w.store.SetAvailableBanks(acc.Username, names); err != nil {
		log.Warn("Failed to persist available banks", zap.Error(err))
	}

	chosen, matched, ok := MatchBank(valid, acc.BankName)
	if !ok {
		return errNoBanks
	}
	if matched {
		log.Info("Matched bank", zap.String("bank", chosen.Text))
	} else {
		log.Info("Preferred bank not found, falling back to first", zap.String("bank", chosen.Text))
	}
	w.selections.SetSelectedBank(chosen.Text)

	if err := page.SetSelectValue(ctx, selBank, chosen.Value); err != nil {
		return err
	}
	// The form listens for change events, not value assignment.
	if err := page.DispatchChange(ctx, selBank); err != nil {
		return err
	}

	log.Info("Waiting for account list")
	accounts, err := w.waitOptions(ctx, page, selAccountNum)
	if err != nil {
		return fmt.Errorf("account options never populated: %w", err)
	}
	// Entry zero is a placeholder; take the first real account.
	var target domain.SelectOption
	if len(accounts) > 1 {
		target = accounts[1]
	} else {
		target = accounts[0]
	}
	if err := page.SetSelectValue(ctx, selAccountNum, target.Value); err != nil {
		return err
	}
	if err := page.DispatchChange(ctx, selAccountNum); err != nil {
		return err
	}
	log.Info("Account selected")
	return nil
}

// waitOptions polls a select control until at least one option with a
// non-empty value is present, returning the full option list. The poll is
// bounded by the configured option settle interval, the equivalent of the
// fixed delay the portal otherwise needs.
func (w *Workflow) waitOptions(ctx context.Context, page domain.Page, selector string) ([]domain.SelectOption, error) {
	deadline := time.Now().Add(w.portal.OptionSettle)
	for {
		options, err := page.Options(ctx, selector)
		if err != nil {
			return nil, err
		}
		for _, o := range options {
			if o.Value != "" {
				return options, nil
			}
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("select %q: %w", selector, errNoOptions)
		}
		if err := sleep(ctx, w.portal.OptionPollInterval); err != nil {
			return nil, err
		}
	}
}

// fillForm performs the FormFilling stage through submission.
func (w *Workflow) fillForm(ctx context.Context, page domain.Page, acc *domain.Account, log *zap.Logger) error {
	log.Info("Filling form")

	if err := page.Fill(ctx, selKitta, w.run.Kitta); err != nil {
		return err
	}
	// Tab out so the portal's validation sees the kitta value.
	if err := page.Press(ctx, selKitta, kb.Tab); err != nil {
		return err
	}
	if err := page.Fill(ctx, selCRN, acc.CRN); err != nil {
		return err
	}
	if err := w.clickWithRetry(ctx, page, selDisclaimer, log); err != nil {
		return err
	}

	enabled, err := page.IsEnabled(ctx, btnProceed)
	if err != nil {
		return err
	}
	if !enabled {
		// Unmet form preconditions, not a transient fault; no retry.
		return errors.New("proceed button is disabled, check form details")
	}
	if err := w.clickWithRetry(ctx, page, btnProceed, log); err != nil {
		return err
	}

	if err := page.WaitVisible(ctx, selPIN, w.portal.SelectorTimeout); err != nil {
		return err
	}
	if err := page.Fill(ctx, selPIN, acc.PIN); err != nil {
		return err
	}
	if err := w.clickWithRetry(ctx, page, btnApply, log); err != nil {
		return err
	}

	log.Info("Application submitted, waiting for confirmation")
	return page.Settle(ctx, w.portal.SubmitSettle)
}

// clickWithRetry retries a click a bounded number of times on interaction
// failure before giving up.
func (w *Workflow) clickWithRetry(ctx context.Context, page domain.Page, selector string, log *zap.Logger) error {
	var err error
	for attempt := 0; attempt <= w.run.ClickRetries; attempt++ {
		if err = page.Click(ctx, selector); err == nil {
			return nil
		}
		if attempt < w.run.ClickRetries {
			log.Info("Retrying click",
				zap.String("selector", selector),
				zap.Int("attempt", attempt+1))
			if serr := sleep(ctx, w.portal.OptionPollInterval); serr != nil {
				return serr
			}
		}
	}
	return fmt.Errorf("final click failure on %q: %w", selector, err)
}

func (w *Workflow) screenshot(ctx context.Context, page domain.Page, stage string, acc *domain.Account) {
	name := fmt.Sprintf("%s_%s.png", stage, acc.Username)
	path := filepath.Join(w.run.ScreenshotDir, name)
	if err := page.Screenshot(ctx, path); err != nil {
		w.logger.Warn("Failed to capture diagnostic screenshot",
			zap.String("path", path), zap.Error(err))
	}
}

func clickOfferingByLabelScript(label string) string {
	return fmt.Sprintf(`(() => {
		const label = %s.toLowerCase();
		const rows = Array.from(document.querySelectorAll('tr, .company-list'));
		for (const row of rows) {
			if (!(row.innerText || '').toLowerCase().includes(label)) { continue; }
			const btn = Array.from(row.querySelectorAll('button'))
				.find(b => /^(apply|edit)$/i.test((b.textContent || '').trim()));
			if (btn) { btn.click(); return true; }
		}
		return false;
	})()`, jsonString(label))
}

func jsonString(s string) string {
	// Minimal JSON string escape for embedding labels in scripts.
	replacer := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`)
	return `"` + replacer.Replace(s) + `"`
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
