// internal/driver/cdp/manager.go
package cdp

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/walkthrough/internal/config"
	"github.com/xkilldash9x/walkthrough/internal/driver"
)

var _ driver.SessionFactory = (*Manager)(nil)

// Manager owns one headless Chrome process and hands out one tab per session.
type Manager struct {
	logger *zap.Logger
	cfg    config.BrowserConfig

	// allocatorCtx manages the browser process. All tab contexts derive from it.
	allocatorCtx    context.Context
	allocatorCancel context.CancelFunc

	// wg tracks open sessions for a graceful shutdown.
	wg sync.WaitGroup
}

// NewManager launches the browser and checks that it responds.
func NewManager(ctx context.Context, logger *zap.Logger, cfg config.BrowserConfig) (*Manager, error) {
	m := &Manager{
		logger: logger.Named("cdp_manager"),
		cfg:    cfg,
	}
	if err := m.launchBrowser(ctx); err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	return m, nil
}

func (m *Manager) launchBrowser(ctx context.Context) error {
	m.logger.Info("Initializing browser allocator...", zap.Bool("headless", m.cfg.Headless))

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, m.buildAllocatorOptions()...)
	m.allocatorCtx = allocCtx
	m.allocatorCancel = cancel

	timeout := m.cfg.LaunchTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	// A throwaway tab proves the process is up; canceling it only closes that tab.
	probeCtx, cancelProbe := context.WithTimeout(allocCtx, timeout)
	defer cancelProbe()
	probeCtx, cancelTab := chromedp.NewContext(probeCtx)
	defer cancelTab()

	if err := chromedp.Run(probeCtx, chromedp.Navigate("about:blank")); err != nil {
		m.allocatorCancel()
		return fmt.Errorf("browser failed to start or respond: %w", err)
	}

	m.logger.Info("Browser launched successfully and is responsive.")
	return nil
}

func (m *Manager) buildAllocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	opts = append(opts,
		chromedp.Flag("headless", m.cfg.Headless),
		chromedp.Flag("ignore-certificate-errors", m.cfg.IgnoreTLSErrors),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-gpu", m.cfg.Headless),
	)
	if m.cfg.ViewportWidth > 0 && m.cfg.ViewportHeight > 0 {
		opts = append(opts, chromedp.WindowSize(m.cfg.ViewportWidth, m.cfg.ViewportHeight))
	}
	if m.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(m.cfg.UserAgent))
	}
	if m.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(m.cfg.ExecPath))
	}

	// Extra flags from config, "--name=value" or "--name".
	for _, arg := range m.cfg.Args {
		parts := strings.SplitN(arg, "=", 2)
		flagName := strings.TrimPrefix(parts[0], "--")
		if len(parts) == 2 {
			opts = append(opts, chromedp.Flag(flagName, parts[1]))
		} else {
			opts = append(opts, chromedp.Flag(flagName, true))
		}
	}

	// Needed inside containers.
	if runtime.GOOS == "linux" {
		opts = append(opts,
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)
	}
	return opts
}

// NewSession opens a fresh tab.
func (m *Manager) NewSession(ctx context.Context) (driver.Session, error) {
	if err := m.allocatorCtx.Err(); err != nil {
		return nil, fmt.Errorf("browser is shut down: %w", err)
	}

	id := uuid.New().String()
	tabCtx, cancel := chromedp.NewContext(m.allocatorCtx)

	// The first Run on a tab context creates the target and must not carry a
	// deadline, or the tab dies with it. Honor ctx by abandoning the wait.
	started := make(chan error, 1)
	go func() {
		started <- chromedp.Run(tabCtx)
	}()
	select {
	case err := <-started:
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to open browser tab: %w", err)
		}
	case <-ctx.Done():
		cancel()
		return nil, ctx.Err()
	}

	m.wg.Add(1)
	s := newSession(id, tabCtx, cancel, m.cfg, m.logger, m.wg.Done)
	s.logger.Debug("Browser tab opened.")
	return s, nil
}

// Shutdown waits for open sessions, bounded by ctx, then terminates the browser.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("Browser manager shutdown initiated. Waiting for active sessions to complete...")

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("All sessions have completed.")
	case <-ctx.Done():
		m.logger.Warn("Shutdown deadline exceeded. Forcing browser termination.", zap.Error(ctx.Err()))
	}

	if m.allocatorCancel != nil {
		m.allocatorCancel()
		<-m.allocatorCtx.Done()
	}
	return nil
}
