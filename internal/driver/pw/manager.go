// Package pw implements the browser driver on top of playwright-go. Each
// session is an isolated BrowserContext with a single page.
package pw

import (
	"context"
	"fmt"
	"sync"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/walkthrough/internal/config"
	"github.com/xkilldash9x/walkthrough/internal/driver"
)

var _ driver.SessionFactory = (*Manager)(nil)

// Manager owns the playwright driver process and one Chromium instance.
type Manager struct {
	logger  *zap.Logger
	cfg     config.BrowserConfig
	pw      *playwright.Playwright
	browser playwright.Browser

	wg sync.WaitGroup
}

// NewManager starts playwright, installing the driver and Chromium on first
// use, and launches the browser.
func NewManager(ctx context.Context, logger *zap.Logger, cfg config.BrowserConfig) (*Manager, error) {
	m := &Manager{logger: logger.Named("pw_manager"), cfg: cfg}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pw, err := playwright.Run()
	if err != nil {
		m.logger.Info("Playwright driver unavailable, installing.", zap.Error(err))
		if installErr := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); installErr != nil {
			return nil, fmt.Errorf("could not install playwright: %w", installErr)
		}
		pw, err = playwright.Run()
		if err != nil {
			return nil, fmt.Errorf("could not start playwright after install: %w", err)
		}
	}
	m.pw = pw

	opts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
		Timeout:  playwright.Float(float64(cfg.LaunchTimeout.Milliseconds())),
		Args:     cfg.Args,
	}
	if cfg.SlowMo > 0 {
		opts.SlowMo = playwright.Float(float64(cfg.SlowMo.Milliseconds()))
	}
	if cfg.ExecPath != "" {
		opts.ExecutablePath = playwright.String(cfg.ExecPath)
	}

	browser, err := pw.Chromium.Launch(opts)
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("could not launch browser: %w", err)
	}
	m.browser = browser

	m.logger.Info("Chromium launched via playwright.", zap.String("version", browser.Version()))
	return m, nil
}

// NewSession opens a fresh BrowserContext and page.
func (m *Manager) NewSession(ctx context.Context) (driver.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := playwright.BrowserNewContextOptions{
		IgnoreHttpsErrors: playwright.Bool(m.cfg.IgnoreTLSErrors),
	}
	if m.cfg.ViewportWidth > 0 && m.cfg.ViewportHeight > 0 {
		opts.Viewport = &playwright.Size{Width: m.cfg.ViewportWidth, Height: m.cfg.ViewportHeight}
	}
	if m.cfg.UserAgent != "" {
		opts.UserAgent = playwright.String(m.cfg.UserAgent)
	}

	bctx, err := m.browser.NewContext(opts)
	if err != nil {
		return nil, fmt.Errorf("could not create browser context: %w", err)
	}
	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("could not create page: %w", err)
	}
	page.SetDefaultTimeout(float64(m.cfg.ActionTimeout.Milliseconds()))
	page.SetDefaultNavigationTimeout(float64(m.cfg.NavigationTimeout.Milliseconds()))

	m.wg.Add(1)
	return newSession(bctx, page, m.cfg, m.logger, m.wg.Done), nil
}

// Shutdown waits for open sessions, bounded by ctx, then closes the browser
// and stops the playwright driver.
func (m *Manager) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("Shutdown deadline exceeded. Closing browser with sessions open.", zap.Error(ctx.Err()))
	}

	var firstErr error
	if m.browser != nil {
		if err := m.browser.Close(); err != nil {
			firstErr = fmt.Errorf("failed to close browser: %w", err)
		}
	}
	if m.pw != nil {
		if err := m.pw.Stop(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to stop playwright: %w", err)
		}
	}
	return firstErr
}
