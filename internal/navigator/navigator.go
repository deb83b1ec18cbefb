// internal/navigator/navigator.go

// Package navigator delivers clicks on ranked candidates and classifies
// where the page ends up. Every failure it reports is a schemas.NavError the
// state machine can act on; only a dead renderer is fatal.
package navigator

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/crawlkit/careerscout/api/schemas"
	"github.com/crawlkit/careerscout/internal/config"
)

// Navigator clicks candidates and waits for the resulting navigation to
// stabilize.
type Navigator struct {
	renderer schemas.Renderer
	cfg      config.NavigatorConfig
	logger   *zap.Logger
}

func New(renderer schemas.Renderer, cfg config.NavigatorConfig, logger *zap.Logger) *Navigator {
	return &Navigator{
		renderer: renderer,
		cfg:      cfg,
		logger:   logger.Named("navigator"),
	}
}

// Navigate acts on one candidate. Synthetic candidates load their URL
// directly; on-page candidates are re-scrolled into view and clicked at
// their bounding box center, with a synthetic activation fallback when the
// coordinate click does not cause a navigation.
func (n *Navigator) Navigate(ctx context.Context, c schemas.Candidate) (schemas.NavigationResult, error) {
	origin, err := n.renderer.CurrentURL(ctx)
	if err != nil {
		return schemas.NavigationResult{}, &schemas.FatalRendererError{Op: "current_url", Err: err}
	}

	if c.Synthetic {
		return n.direct(ctx, c.SyntheticURL)
	}

	if err := n.renderer.ScrollTo(ctx, c.ScrollPosition); err != nil {
		return schemas.NavigationResult{}, &schemas.NavError{Kind: schemas.NavClickFailed, Err: err}
	}

	x, y := c.Box.Center()
	method := schemas.MethodCoordinateClick

	if err := n.renderer.ClickAt(ctx, x, y); err != nil {
		n.logger.Debug("Coordinate click failed; trying element activation.",
			zap.String("label", c.Label), zap.Error(err))
		if err := n.renderer.ClickActivate(ctx, x, y); err != nil {
			return schemas.NavigationResult{}, &schemas.NavError{Kind: schemas.NavClickFailed, Err: err}
		}
		method = schemas.MethodSyntheticClick
	}

	landed, err := n.awaitNavigation(ctx, origin)
	if errors.Is(err, errNoNavigation) && method == schemas.MethodCoordinateClick {
		// The click was delivered but nothing moved. Some overlays swallow
		// raw mouse events; activating the underlying element directly gets
		// through.
		if err := n.renderer.ClickActivate(ctx, x, y); err != nil {
			return schemas.NavigationResult{}, &schemas.NavError{Kind: schemas.NavClickFailed, Err: err}
		}
		method = schemas.MethodSyntheticClick
		landed, err = n.awaitNavigation(ctx, origin)
	}
	if err != nil {
		if errors.Is(err, errNoNavigation) {
			return schemas.NavigationResult{}, &schemas.NavError{Kind: schemas.NavClickFailed, Err: err}
		}
		return schemas.NavigationResult{}, err
	}

	result := schemas.NavigationResult{NewURL: landed, Method: method}
	if trap := n.trapDomain(landed); trap != "" {
		n.logger.Info("Navigation diverted to a known trap domain.",
			zap.String("landed", landed), zap.String("trap", trap))
		return result, &schemas.NavError{Kind: schemas.NavRedirectTrap, NewURL: landed}
	}
	return result, nil
}

// direct loads a URL without clicking, used for separate-career-domain
// fallback candidates.
func (n *Navigator) direct(ctx context.Context, target string) (schemas.NavigationResult, error) {
	if target == "" {
		return schemas.NavigationResult{}, &schemas.NavError{Kind: schemas.NavClickFailed,
			Err: errors.New("synthetic candidate without a URL")}
	}
	if err := n.renderer.Navigate(ctx, target); err != nil {
		if ctx.Err() != nil {
			return schemas.NavigationResult{}, &schemas.NavError{Kind: schemas.NavTimeout, Err: err}
		}
		return schemas.NavigationResult{}, &schemas.NavError{Kind: schemas.NavClickFailed, Err: err}
	}

	landed, err := n.renderer.CurrentURL(ctx)
	if err != nil {
		return schemas.NavigationResult{}, &schemas.FatalRendererError{Op: "current_url", Err: err}
	}

	result := schemas.NavigationResult{NewURL: landed, Method: schemas.MethodDirectURL}
	if trap := n.trapDomain(landed); trap != "" {
		return result, &schemas.NavError{Kind: schemas.NavRedirectTrap, NewURL: landed}
	}
	return result, nil
}

var errNoNavigation = errors.New("url unchanged after click")

// awaitNavigation polls the current URL until it differs from origin and
// holds steady for one poll interval, or the stabilization window runs out.
func (n *Navigator) awaitNavigation(ctx context.Context, origin string) (string, error) {
	window := n.cfg.StabilizeWindow
	if window <= 0 {
		window = 3 * time.Second
	}
	poll := n.cfg.PollInterval
	if poll <= 0 {
		poll = 250 * time.Millisecond
	}

	deadline := time.NewTimer(window)
	defer deadline.Stop()
	tick := time.NewTicker(poll)
	defer tick.Stop()

	changed := ""
	for {
		current, err := n.renderer.CurrentURL(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return "", &schemas.NavError{Kind: schemas.NavTimeout, Err: ctx.Err()}
			}
			return "", &schemas.FatalRendererError{Op: "current_url", Err: err}
		}

		if current != origin {
			if current == changed {
				// Two consecutive reads agree; the redirect chain settled.
				return current, nil
			}
			changed = current
		}

		select {
		case <-ctx.Done():
			return "", &schemas.NavError{Kind: schemas.NavTimeout, Err: ctx.Err()}
		case <-deadline.C:
			if changed != "" {
				return changed, nil
			}
			return "", errNoNavigation
		case <-tick.C:
		}
	}
}

// trapDomain returns the matching trap entry when the URL's host is (or is a
// subdomain of) a configured redirect trap, empty otherwise.
func (n *Navigator) trapDomain(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	for _, trap := range n.cfg.RedirectTraps {
		trap = strings.ToLower(strings.TrimSpace(trap))
		if trap == "" {
			continue
		}
		if host == trap || strings.HasSuffix(host, "."+trap) {
			return trap
		}
	}
	return ""
}
