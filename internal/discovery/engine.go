// File: internal/discovery/engine.go
// Package discovery enumerates the open offerings reachable from an
// authenticated portal session and resolves each to its application URL.
package discovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/purib/ipopilot/internal/config"
	"github.com/purib/ipopilot/internal/domain"
	"go.uber.org/zap"
)

// actionablesScript snapshots every Apply/Edit button on the offerings
// index together with the HTML of its enclosing row or card.
const actionablesScript = `(() => {
	const rx = /^(apply|edit)$/i;
	const btns = Array.from(document.querySelectorAll('button'))
		.filter(b => rx.test((b.textContent || '').trim()));
	return btns.map((b, i) => {
		const row = b.closest('tr, .company-list, .card') || b.parentElement;
		return {
			index: i,
			kind: (b.textContent || '').trim().toLowerCase(),
			row: row ? row.outerHTML : ''
		};
	});
})()`

// reopenTabScript clicks the "Apply for Issue" navigation tab when it is
// present.
const reopenTabScript = `(() => {
	const tab = Array.from(document.querySelectorAll('.nav-link'))
		.find(a => (a.textContent || '').includes('Apply for Issue'));
	if (!tab) { return false; }
	tab.click();
	return true;
})()`

// actionable is one entry of the snapshot.
type actionable struct {
	Index int    `json:"index"`
	Kind  string `json:"kind"`
	Row   string `json:"row"`
}

func clickActionableScript(index int) string {
	return fmt.Sprintf(`(() => {
		const rx = /^(apply|edit)$/i;
		const btns = Array.from(document.querySelectorAll('button'))
			.filter(b => rx.test((b.textContent || '').trim()));
		const btn = btns[%d];
		if (!btn) { return false; }
		btn.click();
		return true;
	})()`, index)
}

// Engine discovers open offerings.
type Engine struct {
	cfg    config.PortalConfig
	logger *zap.Logger
}

func NewEngine(cfg config.PortalConfig, logger *zap.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		logger: logger.Named("discovery"),
	}
}

// Discover walks the offerings index once and returns the offerings whose
// action buttons resolve to an application detail URL. An empty result is
// an expected outcome, not an error: internal failures are logged and
// collapse to "nothing to do".
//
// The live button set is re-queried on every iteration because earlier
// clicks can reshuffle or shrink the list.
func (e *Engine) Discover(ctx context.Context, page domain.Page) []domain.Offering {
	if err := page.Navigate(ctx, e.cfg.OfferingsURL); err != nil {
		e.logger.Warn("Failed to open offerings index", zap.Error(err))
		return nil
	}

	snapshot, err := e.waitActionables(ctx, page)
	if err != nil {
		e.logger.Warn("Offerings index never became actionable", zap.Error(err))
		return nil
	}
	if len(snapshot) == 0 {
		e.logger.Info("No open offerings found")
		return nil
	}

	total := len(snapshot)
	e.logger.Info("Found actionable offerings", zap.Int("count", total))

	var offerings []domain.Offering
	for i := 0; i < total; i++ {
		current, err := e.snapshot(ctx, page)
		if err != nil {
			e.logger.Warn("Failed to re-query offerings", zap.Int("index", i), zap.Error(err))
			break
		}
		if i >= len(current) {
			break
		}

		entry := current[i]
		label := CompanyLabel(entry.Row, i)

		offering, ok := e.resolve(ctx, page, entry, label, i)
		if ok {
			offerings = append(offerings, offering)
			e.logger.Info("Discovered offering",
				zap.String("company", offering.Company),
				zap.String("kind", string(offering.Kind)),
				zap.String("url", offering.URL))
		}

		// A resolved hit moved the page to the detail URL; return to the
		// index and re-open the offerings tab for the next control. A
		// non-match left the page where it was.
		if ok && i+1 < total {
			if err := page.Navigate(ctx, e.cfg.OfferingsURL); err != nil {
				e.logger.Warn("Failed to reopen offerings index", zap.Error(err))
				break
			}
			e.reopenOfferingsTab(ctx, page)
			if _, err := e.waitActionables(ctx, page); err != nil {
				break
			}
		}
	}
	return offerings
}

// resolve clicks one action button and classifies the resulting navigation.
// A click that does not land on an application detail URL is ignored, with
// no retry.
func (e *Engine) resolve(ctx context.Context, page domain.Page, entry actionable, label string, index int) (domain.Offering, bool) {
	var clicked bool
	if err := page.Evaluate(ctx, clickActionableScript(index), &clicked); err != nil || !clicked {
		e.logger.Warn("Failed to click offering control", zap.Int("index", index), zap.Error(err))
		return domain.Offering{}, false
	}

	url, err := e.waitDetailURL(ctx, page)
	if err != nil {
		e.logger.Warn("Offering control did not lead to a detail page",
			zap.String("company", label), zap.Error(err))
		return domain.Offering{}, false
	}

	kind := domain.ActionApply
	if entry.Kind == "edit" || strings.Contains(url, e.cfg.EditPathFragment) {
		kind = domain.ActionEdit
	}
	return domain.Offering{
		Company: label,
		Kind:    kind,
		URL:     url,
		Index:   index,
	}, true
}

// waitActionables polls the index until at least one Apply/Edit button is
// present, bounded by the selector timeout.
func (e *Engine) waitActionables(ctx context.Context, page domain.Page) ([]actionable, error) {
	deadline := time.Now().Add(e.cfg.SelectorTimeout)
	for {
		snapshot, err := e.snapshot(ctx, page)
		if err != nil {
			return nil, err
		}
		if len(snapshot) > 0 {
			return snapshot, nil
		}
		if time.Now().After(deadline) {
			return nil, nil
		}
		if err := sleep(ctx, e.cfg.OptionPollInterval); err != nil {
			return nil, err
		}
	}
}

// waitDetailURL polls the page location until it matches an application
// detail pattern, bounded by the option settle interval.
func (e *Engine) waitDetailURL(ctx context.Context, page domain.Page) (string, error) {
	deadline := time.Now().Add(e.cfg.OptionSettle)
	for {
		url, err := page.CurrentURL(ctx)
		if err != nil {
			return "", err
		}
		if strings.Contains(url, e.cfg.ApplyPathFragment) || strings.Contains(url, e.cfg.EditPathFragment) {
			return url, nil
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("url %q is not an application detail page", url)
		}
		if err := sleep(ctx, e.cfg.OptionPollInterval); err != nil {
			return "", err
		}
	}
}

// reopenOfferingsTab clicks the offerings tab after returning to the
// index; the router sometimes restores a different tab. Best effort.
func (e *Engine) reopenOfferingsTab(ctx context.Context, page domain.Page) {
	var clicked bool
	if err := page.Evaluate(ctx, reopenTabScript, &clicked); err != nil || !clicked {
		e.logger.Debug("Offerings tab not re-clicked", zap.Error(err))
	}
}

func (e *Engine) snapshot(ctx context.Context, page domain.Page) ([]actionable, error) {
	var snapshot []actionable
	if err := page.Evaluate(ctx, actionablesScript, &snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
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
