// internal/browser/session.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crawlkit/careerscout/api/schemas"
	"github.com/crawlkit/careerscout/internal/config"
)

// Session is one browser tab bound to one discovery attempt. It implements
// schemas.Renderer.
type Session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
	cfg    *config.Config

	onClose func()

	mu       sync.Mutex
	isClosed bool
}

var _ schemas.Renderer = (*Session)(nil)

func newSession(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, logger *zap.Logger) *Session {
	id := uuid.New().String()
	return &Session{
		id:     id,
		ctx:    ctx,
		cancel: cancel,
		cfg:    cfg,
		logger: logger.Named("session").With(zap.String("session_id", id)),
	}
}

// ID returns the unique identifier for the session.
func (s *Session) ID() string { return s.id }

// Navigate loads the URL and waits for the document plus a settle period.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating.", zap.String("url", url))

	navTimeout := s.cfg.Browser.NavigationTimeout
	if navTimeout <= 0 {
		navTimeout = 60 * time.Second
	}
	navCtx, cancel := s.operation(ctx, navTimeout)
	defer cancel()

	if err := chromedp.Run(navCtx, chromedp.Navigate(url)); err != nil {
		if navCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("navigation timed out after %s: %w", navTimeout, err)
		}
		return fmt.Errorf("navigation failed: %w", err)
	}

	if err := chromedp.Run(navCtx, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		// Non-critical on pages that never fire readiness; the settle wait
		// below still applies.
		s.logger.Debug("WaitReady failed after navigation.", zap.Error(err))
	}

	settle := s.cfg.Browser.SettleWait
	if settle > 0 {
		select {
		case <-time.After(settle):
		case <-navCtx.Done():
			return navCtx.Err()
		}
	}
	return nil
}

// ScrollTo moves the viewport to the absolute offset and waits for the scroll
// to settle.
func (s *Session) ScrollTo(ctx context.Context, offset int) error {
	opCtx, cancel := s.operation(ctx, s.opTimeout())
	defer cancel()

	script := fmt.Sprintf("window.scrollTo(0, %d)", offset)
	if err := chromedp.Run(opCtx, chromedp.Evaluate(script, nil)); err != nil {
		return fmt.Errorf("scroll to %d failed: %w", offset, err)
	}

	if settle := s.cfg.Scanner.ScrollSettle; settle > 0 {
		select {
		case <-time.After(settle):
		case <-opCtx.Done():
			return opCtx.Err()
		}
	}
	return nil
}

// PageHeight reports the document scroll height in pixels.
func (s *Session) PageHeight(ctx context.Context) (int, error) {
	opCtx, cancel := s.operation(ctx, s.opTimeout())
	defer cancel()

	var height int
	err := chromedp.Run(opCtx, chromedp.Evaluate(
		"Math.max(document.body.scrollHeight, document.documentElement.scrollHeight)", &height))
	if err != nil {
		return 0, fmt.Errorf("failed to read page height: %w", err)
	}
	return height, nil
}

// VisibleElements harvests interactive and text elements inside the current
// viewport. A pure DOM read: re-invoking at the same offset on an unchanged
// page returns the same set.
func (s *Session) VisibleElements(ctx context.Context) ([]schemas.Element, error) {
	opCtx, cancel := s.operation(ctx, s.opTimeout())
	defer cancel()

	var raw []harvestedElement
	if err := chromedp.Run(opCtx, chromedp.Evaluate(harvestScript, &raw)); err != nil {
		return nil, fmt.Errorf("element harvest failed: %w", err)
	}
	return filterHarvest(raw), nil
}

// ClickAt dispatches a real mouse click at viewport coordinates.
func (s *Session) ClickAt(ctx context.Context, x, y int) error {
	s.logger.Debug("Coordinate click.", zap.Int("x", x), zap.Int("y", y))

	opCtx, cancel := s.operation(ctx, s.opTimeout())
	defer cancel()

	if err := chromedp.Run(opCtx, chromedp.MouseClickXY(float64(x), float64(y))); err != nil {
		return fmt.Errorf("mouse click at (%d,%d) failed: %w", x, y, err)
	}
	return nil
}

// ClickActivate fires a synthetic activation on the element under the
// coordinates. Used when coordinate clicks are swallowed by overlays or
// custom event handling.
func (s *Session) ClickActivate(ctx context.Context, x, y int) error {
	s.logger.Debug("Synthetic activation.", zap.Int("x", x), zap.Int("y", y))

	opCtx, cancel := s.operation(ctx, s.opTimeout())
	defer cancel()

	var activated bool
	script := fmt.Sprintf(activateScript, x, y)
	if err := chromedp.Run(opCtx, chromedp.Evaluate(script, &activated)); err != nil {
		return fmt.Errorf("synthetic activation at (%d,%d) failed: %w", x, y, err)
	}
	if !activated {
		return fmt.Errorf("no activatable element at (%d,%d)", x, y)
	}
	return nil
}

// CurrentURL reports the page's present location.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	opCtx, cancel := s.operation(ctx, s.opTimeout())
	defer cancel()

	var url string
	if err := chromedp.Run(opCtx, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("failed to read current URL: %w", err)
	}
	return url, nil
}

// Close tears down the tab.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return nil
	}
	s.isClosed = true
	s.mu.Unlock()

	s.logger.Debug("Closing browser session.")
	if s.cancel != nil {
		s.cancel()
	}
	if s.onClose != nil {
		s.onClose()
	}
	return nil
}

func (s *Session) opTimeout() time.Duration {
	if t := s.cfg.Navigator.OpTimeout; t > 0 {
		return t
	}
	return 5 * time.Second
}

// operation derives a context that carries the tab's CDP target (from s.ctx)
// but is also canceled when the caller's ctx ends or the timeout elapses.
func (s *Session) operation(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	opCtx, cancel := context.WithTimeout(s.ctx, timeout)
	stop := context.AfterFunc(ctx, cancel)
	return opCtx, func() {
		stop()
		cancel()
	}
}
