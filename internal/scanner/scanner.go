// internal/scanner/scanner.go
package scanner

import (
	"context"

	"go.uber.org/zap"

	"github.com/crawlkit/careerscout/api/schemas"
	"github.com/crawlkit/careerscout/internal/config"
)

// Step is one stop in a viewport sweep: the scroll position reached and the
// elements visible there. Degraded marks a stop where the renderer could not
// scroll or answer; the sweep continues and the caller decides policy.
type Step struct {
	// Position is the absolute scroll offset in pixels.
	Position int
	// Viewport is the 1-based index of this stop within the sweep.
	Viewport int
	Elements []schemas.Element
	Degraded bool
}

// Scanner drives scroll positions on a rendered page and asks the renderer
// for visible elements at each stop.
type Scanner struct {
	renderer schemas.Renderer
	cfg      config.ScannerConfig
	logger   *zap.Logger
}

func New(renderer schemas.Renderer, cfg config.ScannerConfig, logger *zap.Logger) *Scanner {
	return &Scanner{
		renderer: renderer,
		cfg:      cfg,
		logger:   logger.Named("scanner"),
	}
}

// Sweep starts a fresh pass over the current page. Each call restarts from
// scroll position 0; the sweep is lazy, each stop is produced by Next.
func (s *Scanner) Sweep(ctx context.Context) *Sweep {
	height, err := s.renderer.PageHeight(ctx)
	if err != nil {
		s.logger.Warn("Could not read page height; sweeping to max scroll.", zap.Error(err))
		height = s.cfg.MaxScroll
	}

	limit := height
	if s.cfg.MaxScroll > 0 && s.cfg.MaxScroll < limit {
		limit = s.cfg.MaxScroll
	}

	return &Sweep{
		scanner:    s,
		pageHeight: height,
		limit:      limit,
		next:       0,
		viewport:   0,
	}
}

// Sweep is one lazy, finite pass over a page. Positions are strictly
// increasing starting at 0.
type Sweep struct {
	scanner    *Scanner
	pageHeight int
	limit      int
	next       int
	viewport   int
	done       bool
	// limitReached notes that the sweep consumed its full scroll budget.
	limitReached bool
}

// PageHeight reports the height observed when the sweep started.
func (w *Sweep) PageHeight() int { return w.pageHeight }

// LimitReached reports whether the sweep ran all the way to its scroll
// budget. Useful for diagnosing pages whose careers affordance was never in
// reach.
func (w *Sweep) LimitReached() bool { return w.limitReached }

// Next advances to the following scroll stop and harvests visible elements.
// Returns false when the sweep is exhausted or the context is done.
func (w *Sweep) Next(ctx context.Context) (Step, bool) {
	if w.done || ctx.Err() != nil {
		return Step{}, false
	}
	if w.next > w.limit {
		w.done = true
		w.limitReached = true
		return Step{}, false
	}

	position := w.next
	w.viewport++
	step := Step{Position: position, Viewport: w.viewport}

	if err := w.scanner.renderer.ScrollTo(ctx, position); err != nil {
		// A failed scroll degrades this stop; the sweep keeps going so
		// later stops can still be covered.
		w.scanner.logger.Warn("Scroll failed; step degraded.",
			zap.Int("position", position), zap.Error(err))
		step.Degraded = true
	} else {
		elements, err := w.scanner.renderer.VisibleElements(ctx)
		if err != nil {
			w.scanner.logger.Warn("Element query failed; step degraded.",
				zap.Int("position", position), zap.Error(err))
			step.Degraded = true
		} else {
			step.Elements = elements
		}
	}

	w.next = position + w.stepSize(position)
	if w.next > w.limit && position < w.limit {
		// Always cover the very bottom of the page; careers links cluster
		// in the footer.
		w.next = w.limit
	} else if position >= w.limit {
		w.done = true
		w.limitReached = true
	}

	return step, true
}

// stepSize halves the configured step once the sweep passes the page
// midpoint, doubling coverage density in the footer-biased lower half.
func (w *Sweep) stepSize(position int) int {
	step := w.scanner.cfg.StepSize
	if step <= 0 {
		step = 800
	}
	if w.pageHeight > 0 && position >= w.pageHeight/2 {
		if half := step / 2; half > 0 {
			return half
		}
	}
	return step
}
