package pw

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/walkthrough/internal/config"
	"github.com/xkilldash9x/walkthrough/internal/driver"
	"github.com/xkilldash9x/walkthrough/internal/scenario"
)

var _ driver.Session = (*Session)(nil)

// Session drives one page inside its own BrowserContext. Playwright calls
// are not context-aware, so every call is bounded by a timeout derived from
// the caller's deadline.
type Session struct {
	id     string
	logger *zap.Logger
	cfg    config.BrowserConfig
	bctx   playwright.BrowserContext
	page   playwright.Page

	mu      sync.Mutex
	closed  bool
	onClose func()
}

func newSession(bctx playwright.BrowserContext, page playwright.Page, cfg config.BrowserConfig, logger *zap.Logger, onClose func()) *Session {
	id := uuid.New().String()
	return &Session{
		id:      id,
		logger:  logger.With(zap.String("session_id", id[:8])),
		cfg:     cfg,
		bctx:    bctx,
		page:    page,
		onClose: onClose,
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := s.bctx.Close()
	if s.onClose != nil {
		s.onClose()
	}
	if err != nil {
		return fmt.Errorf("failed to close browser context: %w", err)
	}
	return nil
}

// ready fails fast on a closed session or a finished caller context.
func (s *Session) ready(ctx context.Context) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return driver.ErrClosed
	}
	return ctx.Err()
}

// timeoutMs bounds a playwright call by the smaller of def and the time left on ctx.
func timeoutMs(ctx context.Context, def time.Duration) *float64 {
	d := def
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < d {
			d = left
		}
	}
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return playwright.Float(float64(d.Milliseconds()))
}

// locator builds the playwright chain for l.
func (s *Session) locator(l scenario.Locator) playwright.Locator {
	var loc playwright.Locator
	switch {
	case l.Selector != "" && l.Text != "":
		loc = s.page.Locator(l.Selector).Filter(playwright.LocatorFilterOptions{HasText: l.Text})
	case l.Selector != "":
		loc = s.page.Locator(l.Selector)
	default:
		loc = s.page.GetByText(l.Text)
	}
	for in := l.Inner; in != nil; in = in.Inner {
		switch {
		case in.Selector != "" && in.Text != "":
			loc = loc.Locator(in.Selector).Filter(playwright.LocatorFilterOptions{HasText: in.Text})
		case in.Selector != "":
			loc = loc.Locator(in.Selector)
		default:
			loc = loc.GetByText(in.Text)
		}
	}
	return loc
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	s.logger.Debug("Navigating.", zap.String("url", url))
	if _, err := s.page.Goto(url, playwright.PageGotoOptions{Timeout: timeoutMs(ctx, s.cfg.NavigationTimeout)}); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

func (s *Session) Reload(ctx context.Context) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if _, err := s.page.Reload(playwright.PageReloadOptions{Timeout: timeoutMs(ctx, s.cfg.NavigationTimeout)}); err != nil {
		return fmt.Errorf("reload failed: %w", err)
	}
	return nil
}

func (s *Session) Click(ctx context.Context, target scenario.Locator) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	loc := s.locator(target).First()
	if err := loc.Click(playwright.LocatorClickOptions{Timeout: timeoutMs(ctx, s.cfg.ActionTimeout)}); err != nil {
		return s.actionError("click", target, loc, err)
	}
	return nil
}

func (s *Session) Fill(ctx context.Context, field scenario.Locator, value string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	loc := s.locator(field).First()
	if err := loc.Fill(value, playwright.LocatorFillOptions{Timeout: timeoutMs(ctx, s.cfg.ActionTimeout)}); err != nil {
		return s.actionError("fill", field, loc, err)
	}
	return nil
}

// actionError maps a playwright timeout on a target that never appeared to ErrNotFound.
func (s *Session) actionError(op string, l scenario.Locator, loc playwright.Locator, err error) error {
	if errors.Is(err, playwright.ErrTimeout) {
		if n, countErr := loc.Count(); countErr == nil && n == 0 {
			return fmt.Errorf("%s on %s failed: %w", op, l, driver.ErrNotFound)
		}
		return fmt.Errorf("%s on %s timed out: %w", op, l, err)
	}
	return fmt.Errorf("%s on %s failed: %w", op, l, err)
}

func (s *Session) CheckVisible(ctx context.Context, l scenario.Locator) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}
	loc := s.locator(l)
	n, err := loc.Count()
	if err != nil {
		return false, fmt.Errorf("failed to query %s: %w", l, err)
	}
	if n == 0 {
		return false, fmt.Errorf("%s: %w", l, driver.ErrNotFound)
	}
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		visible, err := loc.Nth(i).IsVisible()
		if err != nil {
			return false, fmt.Errorf("failed to query %s: %w", l, err)
		}
		if visible {
			return true, nil
		}
	}
	return false, nil
}

func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	if err := s.ready(ctx); err != nil {
		return "", err
	}
	return s.page.URL(), nil
}

func (s *Session) Title(ctx context.Context) (string, error) {
	if err := s.ready(ctx); err != nil {
		return "", err
	}
	title, err := s.page.Title()
	if err != nil {
		return "", fmt.Errorf("failed to read title: %w", err)
	}
	return title, nil
}

func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	buf, err := s.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(true),
		Type:     playwright.ScreenshotTypePng,
		Timeout:  timeoutMs(ctx, s.cfg.ActionTimeout),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return buf, nil
}
