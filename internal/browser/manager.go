// internal/browser/manager.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/crawlkit/careerscout/api/schemas"
	"github.com/crawlkit/careerscout/internal/config"
)

const shutdownGracePeriod = 15 * time.Second

// Manager owns the Chrome process (via a chromedp exec allocator) and creates
// isolated tab sessions, one per discovery attempt.
type Manager struct {
	logger *zap.Logger
	cfg    *config.Config

	allocCtx    context.Context
	allocCancel context.CancelFunc

	sessions map[string]*Session
	mu       sync.Mutex
	wg       sync.WaitGroup

	initOnce sync.Once
}

// NewManager creates a browser manager. Launching Chrome is deferred until the
// first session is requested.
func NewManager(cfg *config.Config, logger *zap.Logger) *Manager {
	return &Manager{
		logger:   logger.Named("browser_manager"),
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
}

// initialize sets up the exec allocator once. Allocator construction cannot
// fail; a broken Chrome install surfaces when the first tab is opened.
func (m *Manager) initialize() {
	m.initOnce.Do(func() {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.DisableGPU,
			chromedp.NoSandbox,
			chromedp.WindowSize(m.cfg.Browser.ViewportWidth, m.cfg.Browser.ViewportHeight),
			chromedp.Flag("headless", m.cfg.Browser.Headless),
		)
		for _, arg := range m.cfg.Browser.Args {
			opts = append(opts, chromedp.Flag(arg, true))
		}

		// The allocator must outlive the caller's context; session lifetimes
		// are managed individually.
		m.allocCtx, m.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
		m.logger.Info("Browser allocator initialized.",
			zap.Bool("headless", m.cfg.Browser.Headless),
			zap.Int("viewport_width", m.cfg.Browser.ViewportWidth),
			zap.Int("viewport_height", m.cfg.Browser.ViewportHeight))
	})
}

// NewSession creates an isolated tab for one attempt. The returned session
// implements schemas.Renderer.
func (m *Manager) NewSession(ctx context.Context) (schemas.Renderer, error) {
	m.initialize()

	tabCtx, tabCancel := chromedp.NewContext(m.allocCtx)

	// Establish the tab eagerly so a broken Chrome install fails here, not
	// in the middle of an attempt.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		return nil, fmt.Errorf("failed to open browser tab: %w", err)
	}

	s := newSession(tabCtx, tabCancel, m.cfg, m.logger)

	m.wg.Add(1)
	s.onClose = func() {
		m.mu.Lock()
		delete(m.sessions, s.ID())
		m.mu.Unlock()
		m.wg.Done()
		m.logger.Debug("Session removed from manager.", zap.String("session_id", s.ID()))
	}

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	m.logger.Info("New browser session created.", zap.String("session_id", s.ID()))
	return s, nil
}

// Shutdown closes all sessions and tears down the allocator, bounded by the
// grace period.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("Shutting down browser manager.")

	m.mu.Lock()
	open := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		open = append(open, s)
	}
	m.mu.Unlock()

	for _, s := range open {
		go func(s *Session) {
			if err := s.Close(ctx); err != nil {
				m.logger.Warn("Error closing session during shutdown.",
					zap.String("session_id", s.ID()), zap.Error(err))
			}
		}(s)
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("All sessions closed gracefully.")
	case <-time.After(shutdownGracePeriod):
		m.logger.Warn("Timeout waiting for sessions to close; forcing allocator shutdown.")
	case <-ctx.Done():
		m.logger.Warn("Shutdown context canceled; forcing allocator shutdown.")
	}

	if m.allocCancel != nil {
		m.allocCancel()
	}
	return nil
}
