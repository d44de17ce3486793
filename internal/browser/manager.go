// File: internal/browser/manager.go
package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"
	"github.com/purib/ipopilot/internal/config"
	"github.com/purib/ipopilot/internal/domain"
	"go.uber.org/zap"
)

// Manager owns the Chrome exec allocator. Each NewPage call launches a
// fresh browser with a clean profile, which is what gives every account its
// own isolated cookie jar.
type Manager struct {
	cfg         config.BrowserConfig
	logger      *zap.Logger
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

// NewManager builds the exec allocator from configuration. Shutdown must be
// called to release it.
func NewManager(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) *Manager {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, execOptions(cfg)...)
	return &Manager{
		cfg:         cfg,
		logger:      logger.Named("browser"),
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
	}
}

// NewPage launches a browser and returns its single tab, plus a close
// function that tears the browser down. The returned close function is safe
// to call more than once.
func (m *Manager) NewPage(ctx context.Context) (domain.Page, func(), error) {
	tabCtx, tabCancel := chromedp.NewContext(m.allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			m.logger.Sugar().Debugf(format, args...)
		}),
		chromedp.WithErrorf(func(format string, args ...any) {
			m.logger.Sugar().Warnf(format, args...)
		}),
	)

	// Run a no-op task so the browser process starts now and launch
	// failures surface here instead of on the first navigation.
	startCtx, cancel := combineContext(tabCtx, ctx)
	defer cancel()
	if err := chromedp.Run(startCtx); err != nil {
		tabCancel()
		return nil, func() {}, fmt.Errorf("failed to launch browser: %w", err)
	}

	page := newPage(tabCtx, m.cfg, m.logger)
	m.logger.Debug("Launched browser context")
	return page, tabCancel, nil
}

// Shutdown releases the allocator, killing any browser still running.
func (m *Manager) Shutdown() {
	m.allocCancel()
	m.logger.Debug("Browser allocator released")
}

// execOptions translates browser configuration into chromedp allocator
// options.
func execOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		// Required on hardened hosts where the kernel sandbox is unavailable.
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if cfg.Headless {
		opts = append(opts, chromedp.Headless)
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}

	for _, arg := range cfg.ExtraArgs {
		if !strings.Contains(arg, "=") {
			opts = append(opts, chromedp.Flag(strings.TrimPrefix(arg, "--"), true))
			continue
		}
		parts := strings.SplitN(arg, "=", 2)
		opts = append(opts, chromedp.Flag(strings.TrimPrefix(parts[0], "--"), parts[1]))
	}
	return opts
}
