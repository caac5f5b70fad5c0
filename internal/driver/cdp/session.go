// internal/driver/cdp/session.go
package cdp

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/walkthrough/internal/config"
	"github.com/xkilldash9x/walkthrough/internal/driver"
	"github.com/xkilldash9x/walkthrough/internal/scenario"
)

//go:embed locate.js
var locateScript string

// markAttr tags the element a locator resolved to so chromedp can address it
// with a plain attribute selector.
const markAttr = "data-walkthrough-ref"

// locatePollInterval paces the wait for an action target to appear.
const locatePollInterval = 100 * time.Millisecond

var _ driver.Session = (*Session)(nil)

// Session drives a single browser tab.
type Session struct {
	id     string
	logger *zap.Logger
	cfg    config.BrowserConfig

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	closed  bool
	onClose func()
}

type locateResult struct {
	Found   bool   `json:"found"`
	Visible bool   `json:"visible"`
	Count   int    `json:"count"`
	Ref     string `json:"ref"`
}

func newSession(id string, tabCtx context.Context, cancel context.CancelFunc, cfg config.BrowserConfig, logger *zap.Logger, onClose func()) *Session {
	return &Session{
		id:      id,
		logger:  logger.With(zap.String("session_id", id[:8])),
		cfg:     cfg,
		ctx:     tabCtx,
		cancel:  cancel,
		onClose: onClose,
	}
}

func (s *Session) ID() string { return s.id }

// Close closes the tab. Later calls are no-ops.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	// Closing the target cleanly lets Chrome release the tab before the context goes.
	closeCtx, cancel := CombineContext(s.ctx, ctx)
	err := chromedp.Cancel(closeCtx)
	cancel()
	s.cancel()

	if s.onClose != nil {
		s.onClose()
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to close browser tab: %w", err)
	}
	return nil
}

// runActions executes chromedp actions bounded by both the tab lifetime and ctx.
func (s *Session) runActions(ctx context.Context, actions ...chromedp.Action) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return driver.ErrClosed
	}

	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// opError prefers context errors over the raw chromedp error so callers can
// tell cancellation and deadlines apart from page faults.
func (s *Session) opError(ctx, opCtx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if s.ctx.Err() != nil {
		return fmt.Errorf("%s: browser tab is gone: %w", op, s.ctx.Err())
	}
	if errors.Is(opCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s timed out: %w", op, opCtx.Err())
	}
	return fmt.Errorf("%s failed: %w", op, err)
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating.", zap.String("url", url))
	navCtx, cancel := context.WithTimeout(ctx, s.cfg.NavigationTimeout)
	defer cancel()

	if err := s.runActions(navCtx, chromedp.Navigate(url)); err != nil {
		return s.opError(ctx, navCtx, "navigation to "+url, err)
	}
	return nil
}

func (s *Session) Reload(ctx context.Context) error {
	navCtx, cancel := context.WithTimeout(ctx, s.cfg.NavigationTimeout)
	defer cancel()

	if err := s.runActions(navCtx, chromedp.Reload()); err != nil {
		return s.opError(ctx, navCtx, "reload", err)
	}
	return nil
}

func (s *Session) Click(ctx context.Context, target scenario.Locator) error {
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.ActionTimeout)
	defer cancel()

	sel, err := s.waitForTarget(opCtx, target)
	if err != nil {
		return s.targetError(ctx, opCtx, "click", target, err)
	}
	err = s.runActions(opCtx,
		chromedp.ScrollIntoView(sel, chromedp.ByQuery),
		chromedp.Click(sel, chromedp.ByQuery),
	)
	if err != nil {
		return s.opError(ctx, opCtx, "click on "+target.String(), err)
	}
	return nil
}

func (s *Session) Fill(ctx context.Context, field scenario.Locator, value string) error {
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.ActionTimeout)
	defer cancel()

	sel, err := s.waitForTarget(opCtx, field)
	if err != nil {
		return s.targetError(ctx, opCtx, "fill", field, err)
	}

	// Clear through JS and fire input/change so client-side frameworks see the
	// empty value before keys arrive.
	jsClear := fmt.Sprintf(`(function(sel) {
		const el = document.querySelector(sel);
		if (!el || el.disabled || el.readOnly) {
			return false;
		}
		el.focus();
		el.value = "";
		el.dispatchEvent(new Event('input', { bubbles: true }));
		el.dispatchEvent(new Event('change', { bubbles: true }));
		return true;
	})(%s)`, strconv.Quote(sel))

	var cleared bool
	err = s.runActions(opCtx,
		chromedp.ScrollIntoView(sel, chromedp.ByQuery),
		chromedp.Evaluate(jsClear, &cleared),
	)
	if err != nil {
		return s.opError(ctx, opCtx, "clearing "+field.String(), err)
	}
	if !cleared {
		return fmt.Errorf("fill on %s failed: field is disabled or read-only", field)
	}

	if err := s.runActions(opCtx, chromedp.SendKeys(sel, value, chromedp.ByQuery)); err != nil {
		return s.opError(ctx, opCtx, "typing into "+field.String(), err)
	}
	return nil
}

func (s *Session) CheckVisible(ctx context.Context, l scenario.Locator) (bool, error) {
	res, err := s.locate(ctx, l, false)
	if err != nil {
		return false, err
	}
	if !res.Found {
		return false, fmt.Errorf("%s: %w", l, driver.ErrNotFound)
	}
	return res.Visible, nil
}

func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	var u string
	if err := s.runActions(ctx, chromedp.Location(&u)); err != nil {
		return "", fmt.Errorf("failed to read location: %w", err)
	}
	return u, nil
}

func (s *Session) Title(ctx context.Context) (string, error) {
	var title string
	if err := s.runActions(ctx, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("failed to read title: %w", err)
	}
	return title, nil
}

func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	// Quality 100 yields PNG.
	if err := s.runActions(ctx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return buf, nil
}

// locateExpr builds the script call resolving l. With markTarget set the
// chosen element is tagged with markAttr; otherwise the page is not touched.
func locateExpr(l scenario.Locator, markTarget bool) (string, error) {
	arg, err := json.MarshalToString(l)
	if err != nil {
		return "", fmt.Errorf("failed to encode locator: %w", err)
	}
	return fmt.Sprintf("(%s)(%s, %s, %t)", locateScript, arg, strconv.Quote(markAttr), markTarget), nil
}

// locate resolves l once in the page, marking the chosen element when
// markTarget is set.
func (s *Session) locate(ctx context.Context, l scenario.Locator, markTarget bool) (locateResult, error) {
	var res locateResult
	expr, err := locateExpr(l, markTarget)
	if err != nil {
		return res, err
	}

	err = s.runActions(ctx, chromedp.Evaluate(expr, &res, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithReturnByValue(true).WithSilent(true)
	}))
	if err != nil {
		return res, fmt.Errorf("failed to resolve %s: %w", l, err)
	}
	return res, nil
}

// waitForTarget polls until l resolves to a visible element and returns a
// selector addressing exactly that element.
func (s *Session) waitForTarget(ctx context.Context, l scenario.Locator) (string, error) {
	ticker := time.NewTicker(locatePollInterval)
	defer ticker.Stop()

	var last locateResult
	for {
		res, err := s.locate(ctx, l, true)
		if err != nil {
			if ctx.Err() != nil {
				return "", lastSeen(last)
			}
			return "", err
		}
		if res.Found && res.Visible {
			return fmt.Sprintf("[%s=%q]", markAttr, res.Ref), nil
		}
		last = res

		select {
		case <-ctx.Done():
			return "", lastSeen(last)
		case <-ticker.C:
		}
	}
}

func lastSeen(last locateResult) error {
	if !last.Found {
		return driver.ErrNotFound
	}
	return fmt.Errorf("%d match(es), none visible", last.Count)
}

func (s *Session) targetError(ctx, opCtx context.Context, op string, l scenario.Locator, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, driver.ErrNotFound) {
		return fmt.Errorf("%s on %s failed: %w", op, l, err)
	}
	if opCtx.Err() != nil {
		return fmt.Errorf("%s on %s timed out after %s: %w", op, l, s.cfg.ActionTimeout, err)
	}
	return fmt.Errorf("%s on %s failed: %w", op, l, err)
}
