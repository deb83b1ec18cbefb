// internal/orchestrator/orchestrator.go

// Package orchestrator fans discovery attempts out over a bounded worker
// pool. Attempts are independent: each owns one browser session, and the only
// shared sinks are the record writer and the logger.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/crawlkit/careerscout/api/schemas"
	"github.com/crawlkit/careerscout/internal/config"
	"github.com/crawlkit/careerscout/internal/engine"
)

// SessionFactory hands out isolated renderer sessions, one per attempt.
// internal/browser.Manager is the production implementation.
type SessionFactory interface {
	NewSession(ctx context.Context) (schemas.Renderer, error)
}

// FactoryFunc adapts a function to SessionFactory.
type FactoryFunc func(ctx context.Context) (schemas.Renderer, error)

func (f FactoryFunc) NewSession(ctx context.Context) (schemas.Renderer, error) { return f(ctx) }

// Summary aggregates the results of one orchestrated run.
type Summary struct {
	Attempts []*schemas.Attempt
	Success  int
	Partial  int
	Failed   int
	Records  int
	Elapsed  time.Duration
}

// Orchestrator runs one attempt per start URL with bounded concurrency.
type Orchestrator struct {
	sessions SessionFactory
	emitter  schemas.RecordEmitter
	cfg      config.Config
	logger   *zap.Logger
	limiter  *rate.Limiter
}

func New(sessions SessionFactory, emitter schemas.RecordEmitter, cfg config.Config, logger *zap.Logger) *Orchestrator {
	perSecond := rate.Inf
	if cfg.Discovery.SessionsPerSecond > 0 {
		perSecond = rate.Limit(cfg.Discovery.SessionsPerSecond)
	}
	return &Orchestrator{
		sessions: sessions,
		emitter:  emitter,
		cfg:      cfg,
		logger:   logger.Named("orchestrator"),
		limiter:  rate.NewLimiter(perSecond, 1),
	}
}

// Run discovers every start URL and returns the per-attempt results in input
// order. A failing attempt never cancels its siblings; only context
// cancellation stops the run early, and even then the summary covers every
// attempt that finished.
func (o *Orchestrator) Run(ctx context.Context, startURLs []string) (*Summary, error) {
	started := time.Now()

	concurrency := o.cfg.Discovery.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	var mu sync.Mutex
	attempts := make([]*schemas.Attempt, len(startURLs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, startURL := range startURLs {
		g.Go(func() error {
			attempt := o.discover(gctx, startURL)
			mu.Lock()
			attempts[i] = attempt
			mu.Unlock()
			return nil
		})
	}

	// Workers never return errors, so this only waits.
	_ = g.Wait()

	summary := &Summary{Elapsed: time.Since(started)}
	for _, a := range attempts {
		if a == nil {
			continue
		}
		summary.Attempts = append(summary.Attempts, a)
		summary.Records += a.RecordsEmitted
		switch a.Outcome {
		case schemas.OutcomeSuccess:
			summary.Success++
		case schemas.OutcomePartial:
			summary.Partial++
		default:
			summary.Failed++
		}
	}

	o.logger.Info("Run complete.",
		zap.Int("attempts", len(summary.Attempts)),
		zap.Int("success", summary.Success),
		zap.Int("partial", summary.Partial),
		zap.Int("failed", summary.Failed),
		zap.Int("records", summary.Records),
		zap.Duration("elapsed", summary.Elapsed))
	return summary, ctx.Err()
}

// discover runs one attempt on its own session. Session acquisition failures
// and engine fatals degrade to a Failed attempt rather than an error.
func (o *Orchestrator) discover(ctx context.Context, startURL string) *schemas.Attempt {
	if err := o.limiter.Wait(ctx); err != nil {
		return failedAttempt(startURL)
	}

	session, err := o.sessions.NewSession(ctx)
	if err != nil {
		o.logger.Error("Could not open a browser session.",
			zap.String("start_url", startURL), zap.Error(err))
		return failedAttempt(startURL)
	}
	defer func() {
		if err := session.Close(context.Background()); err != nil {
			o.logger.Warn("Session close failed.", zap.Error(err))
		}
	}()

	attemptCtx := ctx
	if timeout := o.cfg.Discovery.AttemptTimeout; timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	eng := engine.New(session, o.cfg, o.emitter, o.logger)
	attempt, err := eng.Run(attemptCtx, startURL)
	if err != nil {
		o.logger.Warn("Attempt ended with an error.",
			zap.String("start_url", startURL),
			zap.String("outcome", string(attempt.Outcome)),
			zap.Error(err))
	}
	return attempt
}

func failedAttempt(startURL string) *schemas.Attempt {
	return &schemas.Attempt{
		StartURL:   startURL,
		Outcome:    schemas.OutcomeFailed,
		FinalState: schemas.StateFailed,
	}
}
