// File: internal/browser/page.go
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/purib/ipopilot/internal/config"
	"github.com/purib/ipopilot/internal/domain"
	"go.uber.org/zap"
)

// page drives one Chrome tab over CDP and implements domain.Page. All
// actions run on the tab's context combined with the caller's, so either
// side can cancel them.
type page struct {
	ctx    context.Context
	cfg    config.BrowserConfig
	logger *zap.Logger

	mu       sync.Mutex
	bindings map[string]struct{}
}

func newPage(tabCtx context.Context, cfg config.BrowserConfig, logger *zap.Logger) *page {
	return &page{
		ctx:      tabCtx,
		cfg:      cfg,
		logger:   logger,
		bindings: make(map[string]struct{}),
	}
}

// run executes actions on the tab, bounded by timeout when positive.
func (p *page) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	opCtx, cancel := combineContext(p.ctx, ctx)
	defer cancel()
	if timeout > 0 {
		var tcancel context.CancelFunc
		opCtx, tcancel = context.WithTimeout(opCtx, timeout)
		defer tcancel()
	}
	return chromedp.Run(opCtx, actions...)
}

// isXPath reports whether a selector is an XPath expression rather than a
// CSS query.
func isXPath(selector string) bool {
	return strings.HasPrefix(selector, "/") || strings.HasPrefix(selector, "(")
}

// selectorOpts picks the chromedp query strategy: XPath expressions are
// routed through the DOM search API, everything else is a CSS query.
func selectorOpts(selector string) chromedp.QueryOption {
	if isXPath(selector) {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

func (p *page) Navigate(ctx context.Context, url string) error {
	err := p.run(ctx, p.cfg.NavigationTimeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	// The portal renders client side; give the router a bounded settle.
	if p.cfg.PostLoadWait > 0 {
		return p.Settle(ctx, p.cfg.PostLoadWait)
	}
	return nil
}

func (p *page) CurrentURL(ctx context.Context) (string, error) {
	var url string
	if err := p.run(ctx, 5*time.Second, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("failed to read location: %w", err)
	}
	return url, nil
}

func (p *page) Content(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, 10*time.Second, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read page content: %w", err)
	}
	return html, nil
}

func (p *page) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	err := p.run(ctx, timeout, chromedp.WaitVisible(selector, selectorOpts(selector)))
	if err != nil {
		return fmt.Errorf("element %q not visible: %w", selector, err)
	}
	return nil
}

func (p *page) Click(ctx context.Context, selector string) error {
	err := p.run(ctx, p.cfg.NavigationTimeout, chromedp.Tasks{
		chromedp.WaitVisible(selector, selectorOpts(selector)),
		chromedp.ScrollIntoView(selector, selectorOpts(selector)),
		chromedp.Click(selector, selectorOpts(selector)),
	})
	if err != nil {
		return fmt.Errorf("failed to click %q: %w", selector, err)
	}
	return nil
}

func (p *page) Fill(ctx context.Context, selector, value string) error {
	err := p.run(ctx, p.cfg.NavigationTimeout, chromedp.Tasks{
		chromedp.WaitVisible(selector, selectorOpts(selector)),
		chromedp.Clear(selector, selectorOpts(selector)),
		chromedp.SendKeys(selector, value, selectorOpts(selector)),
	})
	if err != nil {
		return fmt.Errorf("failed to fill %q: %w", selector, err)
	}
	return nil
}

func (p *page) Press(ctx context.Context, selector, key string) error {
	err := p.run(ctx, 10*time.Second, chromedp.SendKeys(selector, key, selectorOpts(selector)))
	if err != nil {
		return fmt.Errorf("failed to press key in %q: %w", selector, err)
	}
	return nil
}

func (p *page) Options(ctx context.Context, selector string) ([]domain.SelectOption, error) {
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) { return []; }
		return Array.from(el.options).map(o => ({value: o.value, text: (o.textContent || '').trim()}));
	})()`, jsonEncode(selector))

	var options []domain.SelectOption
	if err := p.Evaluate(ctx, script, &options); err != nil {
		return nil, fmt.Errorf("failed to read options of %q: %w", selector, err)
	}
	return options, nil
}

func (p *page) SetSelectValue(ctx context.Context, selector, value string) error {
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) { return false; }
		el.value = %s;
		return el.value === %s;
	})()`, jsonEncode(selector), jsonEncode(value), jsonEncode(value))

	var ok bool
	if err := p.Evaluate(ctx, script, &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("select %q has no option with value %q", selector, value)
	}
	return nil
}

func (p *page) DispatchChange(ctx context.Context, selector string) error {
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) { return false; }
		el.dispatchEvent(new Event('change', {bubbles: true}));
		el.dispatchEvent(new Event('input', {bubbles: true}));
		return true;
	})()`, jsonEncode(selector))

	var ok bool
	if err := p.Evaluate(ctx, script, &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("element %q not found for change dispatch", selector)
	}
	return nil
}

func (p *page) IsEnabled(ctx context.Context, selector string) (bool, error) {
	lookup := fmt.Sprintf("document.querySelector(%s)", jsonEncode(selector))
	if isXPath(selector) {
		lookup = fmt.Sprintf(
			"document.evaluate(%s, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue",
			jsonEncode(selector))
	}
	script := fmt.Sprintf(`(() => {
		const el = %s;
		return !!el && !el.disabled;
	})()`, lookup)

	var enabled bool
	if err := p.Evaluate(ctx, script, &enabled); err != nil {
		return false, err
	}
	return enabled, nil
}

func (p *page) Evaluate(ctx context.Context, script string, out any) error {
	err := p.run(ctx, 15*time.Second, chromedp.Evaluate(script, out, func(ep *runtime.EvaluateParams) *runtime.EvaluateParams {
		return ep.WithAwaitPromise(true)
	}))
	if err != nil {
		return fmt.Errorf("script evaluation failed: %w", err)
	}
	return nil
}

// ExposeFunc registers fn as window[name] in the page. The binding survives
// navigations within the tab. Registering the same name twice keeps the
// first fn; page scripts re-invoke the same relay.
func (p *page) ExposeFunc(ctx context.Context, name string, fn func(payload string)) error {
	p.mu.Lock()
	if _, exists := p.bindings[name]; exists {
		p.mu.Unlock()
		return nil
	}
	p.bindings[name] = struct{}{}
	p.mu.Unlock()

	if err := p.run(ctx, 10*time.Second, runtime.AddBinding(name)); err != nil {
		return fmt.Errorf("failed to add binding %q: %w", name, err)
	}

	chromedp.ListenTarget(p.ctx, func(ev any) {
		if bc, ok := ev.(*runtime.EventBindingCalled); ok && bc.Name == name {
			// Called on chromedp's event goroutine; fn must not block.
			fn(bc.Payload)
		}
	})
	return nil
}

func (p *page) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := p.run(ctx, 15*time.Second, chromedp.CaptureScreenshot(&buf)); err != nil {
		return fmt.Errorf("failed to capture screenshot: %w", err)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("failed to write screenshot %s: %w", path, err)
	}
	p.logger.Debug("Saved screenshot", zap.String("path", path))
	return nil
}

func (p *page) Settle(ctx context.Context, d time.Duration) error {
	return p.run(ctx, 0, chromedp.Sleep(d))
}

// jsonEncode safely embeds a Go string into a generated script.
func jsonEncode(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(b)
}
