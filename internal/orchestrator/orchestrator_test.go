// internal/orchestrator/orchestrator_test.go
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/crawlkit/careerscout/api/schemas"
	"github.com/crawlkit/careerscout/internal/config"
	"github.com/crawlkit/careerscout/internal/mocks"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type countingEmitter struct {
	mu      sync.Mutex
	records []schemas.TrainingRecord
}

func (c *countingEmitter) Emit(rec schemas.TrainingRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, rec)
	return nil
}

func (c *countingEmitter) Close() error { return nil }

func (c *countingEmitter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

func testConfig() config.Config {
	return config.Config{
		Scanner: config.ScannerConfig{MaxScroll: 20000, StepSize: 800},
		Detector: config.DetectorConfig{
			Vocabulary:     map[string]float64{"careers": 1.0, "jobs": 1.0},
			FooterFraction: 0.7,
			FooterBonus:    1.25,
		},
		Navigator: config.NavigatorConfig{
			ClickRetries:    3,
			StabilizeWindow: 100 * time.Millisecond,
			PollInterval:    2 * time.Millisecond,
		},
		Discovery: config.DiscoveryConfig{MaxHops: 4, Concurrency: 2, MinPostingEntries: 3},
	}
}

// siteFactory builds a fresh renderer per session, all sharing the same
// three-site topology: one site with a working careers path, one without any
// candidate, one that is down.
func siteFactory(tracked *sessionTracker) FactoryFunc {
	return func(ctx context.Context) (schemas.Renderer, error) {
		r := mocks.NewFakeRenderer()
		r.AddPage("https://good.example.com", &mocks.FakePage{
			Height: 1200,
			Links: []mocks.FakeLink{{
				Text:   "Careers",
				Box:    schemas.BoundingBox{XMin: 10, YMin: 1100, XMax: 110, YMax: 1130},
				Target: "https://good.example.com/careers/search",
			}},
		})
		r.AddPage("https://good.example.com/careers/search", &mocks.FakePage{Height: 2000})
		r.AddPage("https://bare.example.com", &mocks.FakePage{Height: 600})
		r.NavigateErr = map[string]error{"https://down.example.com": errors.New("connection refused")}
		tracked.add(r)
		return r, nil
	}
}

type sessionTracker struct {
	mu       sync.Mutex
	sessions []*mocks.FakeRenderer
}

func (s *sessionTracker) add(r *mocks.FakeRenderer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = append(s.sessions, r)
}

func (s *sessionTracker) allClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.sessions {
		if !r.Closed {
			return false
		}
	}
	return len(s.sessions) > 0
}

func TestRunMixedAttempts(t *testing.T) {
	tracker := &sessionTracker{}
	em := &countingEmitter{}
	o := New(siteFactory(tracker), em, testConfig(), zap.NewNop())

	urls := []string{
		"https://good.example.com",
		"https://bare.example.com",
		"https://down.example.com",
	}
	summary, err := o.Run(context.Background(), urls)
	require.NoError(t, err)

	require.Len(t, summary.Attempts, 3)
	assert.Equal(t, 1, summary.Success)
	assert.Equal(t, 2, summary.Failed)
	assert.Zero(t, summary.Partial)
	assert.Equal(t, 1, summary.Records)
	assert.Equal(t, em.count(), summary.Records)

	// Results keep input order regardless of which worker finished first.
	for i, a := range summary.Attempts {
		assert.Equal(t, urls[i], a.StartURL)
	}
	assert.Equal(t, schemas.OutcomeSuccess, summary.Attempts[0].Outcome)
	assert.Equal(t, schemas.StateFailed, summary.Attempts[2].FinalState)

	assert.True(t, tracker.allClosed(), "every session must be closed after its attempt")
}

func TestRunSessionFactoryFailure(t *testing.T) {
	factory := FactoryFunc(func(ctx context.Context) (schemas.Renderer, error) {
		return nil, errors.New("browser pool exhausted")
	})
	o := New(factory, &countingEmitter{}, testConfig(), zap.NewNop())

	summary, err := o.Run(context.Background(), []string{"https://a.example.com"})
	require.NoError(t, err)
	require.Len(t, summary.Attempts, 1)
	assert.Equal(t, schemas.OutcomeFailed, summary.Attempts[0].Outcome)
	assert.Equal(t, "https://a.example.com", summary.Attempts[0].StartURL)
}

func TestRunHonorsConcurrencyLimit(t *testing.T) {
	var mu sync.Mutex
	active, peak := 0, 0

	factory := FactoryFunc(func(ctx context.Context) (schemas.Renderer, error) {
		mu.Lock()
		active++
		if active > peak {
			peak = active
		}
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()

		r := mocks.NewFakeRenderer()
		r.AddPage("https://x.example.com", &mocks.FakePage{Height: 400})
		return r, nil
	})

	cfg := testConfig()
	cfg.Discovery.Concurrency = 2
	o := New(factory, &countingEmitter{}, cfg, zap.NewNop())

	urls := make([]string, 6)
	for i := range urls {
		urls[i] = "https://x.example.com"
	}
	summary, err := o.Run(context.Background(), urls)
	require.NoError(t, err)
	assert.Len(t, summary.Attempts, 6)
	assert.LessOrEqual(t, peak, 2)
}

func TestRunCancelled(t *testing.T) {
	cfg := testConfig()
	cfg.Discovery.SessionsPerSecond = 0.5 // slow pacing so cancellation hits mid-run

	factory := FactoryFunc(func(ctx context.Context) (schemas.Renderer, error) {
		r := mocks.NewFakeRenderer()
		r.AddPage("https://x.example.com", &mocks.FakePage{Height: 400})
		return r, nil
	})
	o := New(factory, &countingEmitter{}, cfg, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	summary, err := o.Run(ctx, []string{"https://x.example.com", "https://x.example.com", "https://x.example.com"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, summary.Attempts, 3, "cancelled attempts still appear, as failed")
}
