// internal/engine/engine.go

// Package engine runs the discovery state machine for one start URL: scan,
// detect, rank, navigate, repeat across hops until a job listing page is
// reached or the budgets run out. Every stage reports a tagged outcome that
// the step function turns into the next state; only the renderer dying ends
// the attempt as Failed.
package engine

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crawlkit/careerscout/api/schemas"
	"github.com/crawlkit/careerscout/internal/config"
	"github.com/crawlkit/careerscout/internal/detect"
	"github.com/crawlkit/careerscout/internal/navigator"
	"github.com/crawlkit/careerscout/internal/scanner"
)

// Engine drives one attempt end to end on a single renderer session.
// Attempts own all their mutable state; Engine itself only carries the
// collaborators and is safe to reuse for consecutive (not concurrent) runs.
type Engine struct {
	renderer  schemas.Renderer
	scanner   *scanner.Scanner
	detector  *detect.Detector
	navigator *navigator.Navigator
	emitter   schemas.RecordEmitter
	cfg       config.Config
	logger    *zap.Logger
	now       func() time.Time
}

func New(renderer schemas.Renderer, cfg config.Config, emitter schemas.RecordEmitter, logger *zap.Logger) *Engine {
	return &Engine{
		renderer:  renderer,
		scanner:   scanner.New(renderer, cfg.Scanner, logger),
		detector:  detect.New(cfg.Detector),
		navigator: navigator.New(renderer, cfg.Navigator, logger),
		emitter:   emitter,
		cfg:       cfg,
		logger:    logger.Named("engine"),
		now:       time.Now,
	}
}

// run carries the mutable state of one attempt.
type run struct {
	attempt *schemas.Attempt
	visited map[string]bool
	// current page and how it was entered
	url   string
	entry schemas.EntryMethod
	// candidates of the current page in click order, and how many clicks
	// remain in the per-page budget
	ranked  []schemas.Candidate
	retries int
	// fallbackUsed guards the separate-career-domain candidate: one shot
	// per attempt.
	fallbackUsed bool
}

// scanOutcome is what one full page sweep reports to the step function.
type scanOutcome struct {
	visit      schemas.PageVisit
	candidates []schemas.Candidate
	// listing is set when the posting-content heuristic fired mid-sweep.
	listing   bool
	budgetHit bool
	cancelled bool
}

// Run executes the state machine from startURL to a terminal state. The
// returned attempt is always populated, also on error; the error is non-nil
// only for cancellation and fatal renderer failures.
func (e *Engine) Run(ctx context.Context, startURL string) (*schemas.Attempt, error) {
	r := &run{
		attempt: &schemas.Attempt{ID: uuid.NewString(), StartURL: startURL},
		visited: make(map[string]bool),
	}
	logger := e.logger.With(zap.String("attempt_id", r.attempt.ID), zap.String("start_url", startURL))
	logger.Info("Attempt started.")

	state := schemas.StateStart
	var runErr error

	for !state.Terminal() {
		if ctx.Err() != nil {
			// Cancelled between stages: whatever was emitted stands, the
			// page in flight is discarded.
			state = schemas.StateExhausted
			runErr = ctx.Err()
			break
		}

		var err error
		switch state {
		case schemas.StateStart:
			state, err = e.stepStart(ctx, r)
		case schemas.StateScanning, schemas.StateScanningNextPage:
			state, err = e.stepScan(ctx, r, state)
		case schemas.StateCandidatesFound:
			r.ranked = detect.Rank(r.ranked)
			r.retries = e.clickRetries()
			state = schemas.StateNavigating
		case schemas.StateNavigating:
			state, err = e.stepNavigate(ctx, r)
		default:
			err = &schemas.FatalRendererError{Op: "step", Err: errors.New("unknown state " + string(state))}
		}
		if err != nil {
			runErr = err
			if state != schemas.StateExhausted {
				state = schemas.StateFailed
			}
			break
		}
	}

	r.attempt.FinalState = state
	r.attempt.Outcome = outcomeFor(state, r.attempt.RecordsEmitted)
	logger.Info("Attempt finished.",
		zap.String("outcome", string(r.attempt.Outcome)),
		zap.String("final_state", string(state)),
		zap.Int("hops", r.attempt.HopCount),
		zap.Int("records", r.attempt.RecordsEmitted))
	return r.attempt, runErr
}

// outcomeFor maps the terminal state to the user-visible outcome. Reaching a
// listing is success; anything else is partial when at least one record was
// produced and failed when none were.
func outcomeFor(state schemas.State, records int) schemas.Outcome {
	switch {
	case state == schemas.StateJobListingReached:
		return schemas.OutcomeSuccess
	case records > 0:
		return schemas.OutcomePartial
	default:
		return schemas.OutcomeFailed
	}
}

// stepStart renders the start URL. An immediate redirect into a trap domain
// is handled here, before any scanning, via the separate-career-domain
// fallback when one is configured.
func (e *Engine) stepStart(ctx context.Context, r *run) (schemas.State, error) {
	if err := e.renderer.Navigate(ctx, r.attempt.StartURL); err != nil {
		return schemas.StateFailed, &schemas.FatalRendererError{Op: "navigate_start", Err: err}
	}
	landed, err := e.renderer.CurrentURL(ctx)
	if err != nil {
		return schemas.StateFailed, &schemas.FatalRendererError{Op: "current_url", Err: err}
	}

	r.url = landed
	r.entry = schemas.EntryInitial
	r.visited[landed] = true

	if trap := e.trapDomain(landed); trap != "" {
		e.logger.Info("Start URL redirected into a trap domain.",
			zap.String("landed", landed), zap.String("trap", trap))
		if cand, ok := e.fallbackCandidate(r); ok {
			return e.followSynthetic(ctx, r, cand)
		}
		return schemas.StateExhausted, nil
	}
	return schemas.StateScanning, nil
}

// stepScan sweeps the current page. In ScanningNextPage the listing
// heuristics apply: the URL shape first, then posting-like content counted
// during the sweep.
func (e *Engine) stepScan(ctx context.Context, r *run, state schemas.State) (schemas.State, error) {
	checkListing := state == schemas.StateScanningNextPage
	if checkListing && isListingURL(r.url) {
		r.attempt.Visited = append(r.attempt.Visited, schemas.PageVisit{URL: r.url, Entry: r.entry})
		r.attempt.ListingURL = r.url
		return schemas.StateJobListingReached, nil
	}

	out := e.scanPage(ctx, r, checkListing)
	if out.cancelled {
		return schemas.StateExhausted, ctx.Err()
	}

	r.attempt.Visited = append(r.attempt.Visited, out.visit)
	if out.budgetHit {
		r.attempt.MaxScrollReached = true
	}

	if out.listing {
		r.attempt.ListingURL = r.url
		return schemas.StateJobListingReached, nil
	}
	if len(out.candidates) == 0 {
		e.logger.Info("Page exhausted without candidates.", zap.String("url", r.url))
		if cand, ok := e.fallbackCandidate(r); ok {
			return e.followSynthetic(ctx, r, cand)
		}
		return schemas.StateExhausted, nil
	}
	r.ranked = out.candidates
	return schemas.StateCandidatesFound, nil
}

// scanPage runs one sweep, detecting candidates and collecting one training
// record per distinct normalized label, so a sticky header seen at every
// stop yields one record. Records flush only when the sweep finishes;
// a cancelled partial page contributes nothing.
func (e *Engine) scanPage(ctx context.Context, r *run, countPostings bool) scanOutcome {
	sweep := e.scanner.Sweep(ctx)
	out := scanOutcome{visit: schemas.PageVisit{URL: r.url, Entry: r.entry}}

	var toEmit []schemas.Candidate
	seenLabels := make(map[string]bool)
	postings := make(map[string]bool)
	minPostings := e.cfg.Discovery.MinPostingEntries
	if minPostings <= 0 {
		minPostings = 3
	}

	for {
		step, ok := sweep.Next(ctx)
		if !ok {
			break
		}
		out.visit.ScrollPositions = append(out.visit.ScrollPositions, step.Position)
		if step.Degraded {
			continue
		}

		cands := e.detector.Detect(step.Elements, detect.PageContext{
			URL:            r.url,
			PageHeight:     sweep.PageHeight(),
			ScrollPosition: step.Position,
			Viewport:       step.Viewport,
		})
		for _, c := range cands {
			out.visit.Candidates = append(out.visit.Candidates, c)
			out.candidates = append(out.candidates, c)
			if seenLabels[c.Label] {
				continue
			}
			seenLabels[c.Label] = true
			toEmit = append(toEmit, c)
		}

		if countPostings {
			for _, el := range step.Elements {
				if text := detect.NormalizeLabel(el.Text); postingEntry(text) {
					postings[text] = true
				}
			}
			if len(postings) >= minPostings {
				out.listing = true
				break
			}
		}
	}

	if ctx.Err() != nil {
		out.cancelled = true
		return out
	}
	for _, c := range toEmit {
		e.emit(c, r)
	}
	if !out.listing {
		out.budgetHit = sweep.LimitReached() && sweep.PageHeight() >= e.cfg.Scanner.MaxScroll
	}
	return out
}

// emit writes one training record; emitter trouble is logged, never fatal to
// the attempt.
func (e *Engine) emit(c schemas.Candidate, r *run) {
	rec := schemas.NewTrainingRecord(c, e.now())
	if err := e.emitter.Emit(rec); err != nil {
		e.logger.Warn("Record emission failed.", zap.String("label", c.Label), zap.Error(err))
		return
	}
	r.attempt.RecordsEmitted++
}

// stepNavigate walks the ranked candidates within the per-page click budget.
func (e *Engine) stepNavigate(ctx context.Context, r *run) (schemas.State, error) {
	for len(r.ranked) > 0 && r.retries > 0 {
		cand := r.ranked[0]
		r.ranked = r.ranked[1:]
		r.retries--

		res, err := e.navigator.Navigate(ctx, cand)
		if err != nil {
			next, fatal := e.navFailure(ctx, r, err)
			if fatal != nil {
				return schemas.StateFailed, fatal
			}
			if next != schemas.StateNavigating {
				return next, nil
			}
			continue
		}

		if r.visited[res.NewURL] {
			// Clicked back onto a page already covered; return and try the
			// next candidate.
			e.logger.Debug("Candidate led to an already-visited page.",
				zap.String("label", cand.Label), zap.String("url", res.NewURL))
			if err := e.renderer.Navigate(ctx, r.url); err != nil {
				return schemas.StateFailed, &schemas.FatalRendererError{Op: "navigate_back", Err: err}
			}
			continue
		}

		return e.enterPage(r, res.NewURL, schemas.EntryClicked)
	}

	e.logger.Info("Click budget exhausted on page.", zap.String("url", r.url))
	if cand, ok := e.fallbackCandidate(r); ok {
		return e.followSynthetic(ctx, r, cand)
	}
	return schemas.StateExhausted, nil
}

// navFailure interprets a navigation error. click_failed and timeout burn a
// retry and stay in Navigating; a redirect trap tries the career-domain
// fallback once, otherwise the page is a dead end.
func (e *Engine) navFailure(ctx context.Context, r *run, err error) (schemas.State, error) {
	var navErr *schemas.NavError
	if !errors.As(err, &navErr) {
		return schemas.StateFailed, err
	}

	switch navErr.Kind {
	case schemas.NavClickFailed, schemas.NavTimeout:
		e.logger.Debug("Candidate click failed; trying next ranked candidate.", zap.Error(navErr))
		return schemas.StateNavigating, nil
	case schemas.NavRedirectTrap:
		r.visited[navErr.NewURL] = true
		if cand, ok := e.fallbackCandidate(r); ok {
			return e.followSynthetic(ctx, r, cand)
		}
		return schemas.StateExhausted, nil
	default:
		return schemas.StateFailed, err
	}
}

// followSynthetic loads the configured separate careers domain directly. The
// new page is entered as redirected, consistent with how the attempt got
// diverted there.
func (e *Engine) followSynthetic(ctx context.Context, r *run, cand schemas.Candidate) (schemas.State, error) {
	res, err := e.navigator.Navigate(ctx, cand)
	if err != nil {
		var navErr *schemas.NavError
		if errors.As(err, &navErr) {
			e.logger.Warn("Career-domain fallback did not land.", zap.Error(navErr))
			return schemas.StateExhausted, nil
		}
		return schemas.StateFailed, err
	}
	if r.visited[res.NewURL] {
		return schemas.StateExhausted, nil
	}
	return e.enterPage(r, res.NewURL, schemas.EntryRedirected)
}

// enterPage books a hop onto an unseen page and decides whether the budget
// still allows scanning it.
func (e *Engine) enterPage(r *run, pageURL string, entry schemas.EntryMethod) (schemas.State, error) {
	r.visited[pageURL] = true
	r.url = pageURL
	r.entry = entry
	r.ranked = nil
	r.attempt.HopCount++

	maxHops := e.cfg.Discovery.MaxHops
	if maxHops <= 0 {
		maxHops = 4
	}
	if r.attempt.HopCount > maxHops {
		e.logger.Info("Hop budget exhausted.", zap.Int("hops", r.attempt.HopCount))
		return schemas.StateExhausted, nil
	}
	return schemas.StateScanningNextPage, nil
}

// fallbackCandidate builds the one-shot synthetic candidate from the start
// domain's configured careers domain.
func (e *Engine) fallbackCandidate(r *run) (schemas.Candidate, bool) {
	if r.fallbackUsed {
		return schemas.Candidate{}, false
	}
	host := hostOf(r.attempt.StartURL)
	if host == "" {
		return schemas.Candidate{}, false
	}
	target, ok := e.cfg.Navigator.CareerDomains[host]
	if !ok {
		target, ok = e.cfg.Navigator.CareerDomains[strings.TrimPrefix(host, "www.")]
	}
	if !ok || target == "" {
		return schemas.Candidate{}, false
	}
	if !strings.Contains(target, "://") {
		target = "https://" + target
	}
	r.fallbackUsed = true
	return schemas.Candidate{
		Label:        "careers",
		PageURL:      r.attempt.StartURL,
		Synthetic:    true,
		SyntheticURL: target,
	}, true
}

func (e *Engine) clickRetries() int {
	if n := e.cfg.Navigator.ClickRetries; n > 0 {
		return n
	}
	return 3
}

// trapDomain mirrors the navigator's destination classification for the
// initial render, where no click is involved.
func (e *Engine) trapDomain(raw string) string {
	host := hostOf(raw)
	if host == "" {
		return ""
	}
	for _, trap := range e.cfg.Navigator.RedirectTraps {
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

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

var (
	// listingPathPattern and listingFormPattern together decide the URL half
	// of the listing heuristic: a careers word in the host or path plus a
	// search or listing form in the path or query. "amazon.jobs" alone does
	// not count; "amazon.jobs/en/search" does.
	listingPathPattern = regexp.MustCompile(`(?i)(jobs?|careers?|positions?|openings?|vacanc)`)
	listingFormPattern = regexp.MustCompile(`(?i)(search|listings?|browse|results|openings|apply)`)

	// postingEntryPattern marks element text that reads like a job posting
	// row for the content half of the heuristic.
	postingEntryPattern = regexp.MustCompile(`(?i)(apply now|view job|job details|job id|full[ -]?time|part[ -]?time|remote|hybrid|posted)`)
)

func isListingURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	hostAndPath := u.Hostname() + u.Path
	pathAndQuery := u.Path + "?" + u.RawQuery
	return listingPathPattern.MatchString(hostAndPath) && listingFormPattern.MatchString(pathAndQuery)
}

func postingEntry(text string) bool {
	return text != "" && postingEntryPattern.MatchString(text)
}
