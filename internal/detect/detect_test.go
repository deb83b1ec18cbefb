// internal/detect/detect_test.go
package detect

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crawlkit/careerscout/api/schemas"
	"github.com/crawlkit/careerscout/internal/config"
)

func testDetectorConfig() config.DetectorConfig {
	return config.DetectorConfig{
		Vocabulary: map[string]float64{
			"careers":              1.0,
			"jobs":                 1.0,
			"career opportunities": 0.9,
			"open positions":       0.8,
			"join us":              0.5,
		},
		FooterFraction: 0.7,
		FooterBonus:    1.25,
	}
}

func box(x1, y1, x2, y2 int) schemas.BoundingBox {
	return schemas.BoundingBox{XMin: x1, YMin: y1, XMax: x2, YMax: y2}
}

func TestDetectMatchesVocabulary(t *testing.T) {
	d := New(testDetectorConfig())
	pc := PageContext{URL: "https://example.com", PageHeight: 4000, ScrollPosition: 0, Viewport: 1}

	tests := []struct {
		name      string
		text      string
		wantMatch bool
		wantLabel string
		wantScore float64
	}{
		{name: "exact word", text: "Careers", wantMatch: true, wantLabel: "careers", wantScore: 1.0},
		{name: "phrase within label", text: "Jobs at Example Corp", wantMatch: true, wantLabel: "jobs at example corp", wantScore: 1.0},
		{name: "case and spacing normalized", text: "  JOIN\t US ", wantMatch: true, wantLabel: "join us", wantScore: 0.5},
		{name: "multi word phrase", text: "Career Opportunities", wantMatch: true, wantLabel: "career opportunities", wantScore: 0.9},
		{name: "word boundary respected", text: "jobsworth manual", wantMatch: false},
		{name: "slash joined", text: "Careers/Jobs", wantMatch: true, wantLabel: "careers jobs", wantScore: 1.0},
		{name: "trailing punctuation", text: "Careers.", wantMatch: true, wantLabel: "careers", wantScore: 1.0},
		{name: "at sign joined", text: "Jobs@Example", wantMatch: true, wantLabel: "jobs example", wantScore: 1.0},
		{name: "unrelated label", text: "Contact", wantMatch: false},
		{name: "empty label", text: "   ", wantMatch: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.Detect([]schemas.Element{{Text: tt.text, Box: box(10, 100, 120, 130)}}, pc)
			if !tt.wantMatch {
				assert.Empty(t, got)
				return
			}
			require.Len(t, got, 1)
			assert.Equal(t, tt.wantLabel, got[0].Label)
			assert.InDelta(t, tt.wantScore, got[0].Score, 1e-9)
			assert.Equal(t, pc.URL, got[0].PageURL)
			assert.Equal(t, pc.Viewport, got[0].Viewport)
		})
	}
}

func TestDetectLongestPhraseWins(t *testing.T) {
	d := New(testDetectorConfig())
	pc := PageContext{URL: "https://example.com", PageHeight: 4000}

	// "career opportunities" contains no single-word vocabulary entry, but a
	// label carrying both "jobs" and "open positions" must score the longer
	// phrase.
	got := d.Detect([]schemas.Element{{Text: "Jobs and open positions", Box: box(0, 0, 200, 30)}}, pc)
	require.Len(t, got, 1)
	assert.InDelta(t, 0.8, got[0].Score, 1e-9)
}

func TestDetectFooterBonus(t *testing.T) {
	d := New(testDetectorConfig())

	// Same element text, one seen near the top, one in the footer region.
	top := d.Detect([]schemas.Element{{Text: "Careers", Box: box(10, 100, 110, 130)}},
		PageContext{PageHeight: 4000, ScrollPosition: 0})
	footer := d.Detect([]schemas.Element{{Text: "Careers", Box: box(10, 100, 110, 130)}},
		PageContext{PageHeight: 4000, ScrollPosition: 3200})

	require.Len(t, top, 1)
	require.Len(t, footer, 1)
	assert.InDelta(t, 1.0, top[0].Score, 1e-9)
	assert.InDelta(t, 1.25, footer[0].Score, 1e-9)
}

func TestDetectNoFooterBonusWithoutPageHeight(t *testing.T) {
	d := New(testDetectorConfig())
	got := d.Detect([]schemas.Element{{Text: "Careers", Box: box(10, 100, 110, 130)}},
		PageContext{PageHeight: 0, ScrollPosition: 9000})
	require.Len(t, got, 1)
	assert.InDelta(t, 1.0, got[0].Score, 1e-9)
}

func TestDetectDeterministic(t *testing.T) {
	d := New(testDetectorConfig())
	elements := []schemas.Element{
		{Text: "Careers", Box: box(10, 700, 110, 730)},
		{Text: "Jobs", Box: box(400, 700, 460, 730)},
		{Text: "Press", Box: box(600, 700, 660, 730)},
	}
	pc := PageContext{URL: "https://example.com", PageHeight: 1000, ScrollPosition: 0, Viewport: 1}

	first := d.Detect(elements, pc)
	for i := 0; i < 20; i++ {
		if diff := cmp.Diff(first, d.Detect(elements, pc)); diff != "" {
			t.Fatalf("detection not deterministic (-first +again):\n%s", diff)
		}
	}
}

func TestRankOrdering(t *testing.T) {
	cands := []schemas.Candidate{
		{Label: "join us", Score: 0.5, Box: box(0, 0, 100, 30), ScrollPosition: 0},
		{Label: "careers footer", Score: 1.25, Box: box(0, 0, 100, 30), ScrollPosition: 3200},
		{Label: "jobs small", Score: 1.0, Box: box(0, 0, 50, 20), ScrollPosition: 800},
		{Label: "jobs big", Score: 1.0, Box: box(0, 0, 200, 40), ScrollPosition: 1600},
		{Label: "jobs early", Score: 1.0, Box: box(0, 0, 50, 20), ScrollPosition: 0},
	}

	ranked := Rank(cands)

	labels := make([]string, len(ranked))
	for i, c := range ranked {
		labels[i] = c.Label
	}
	assert.Equal(t, []string{"careers footer", "jobs big", "jobs early", "jobs small", "join us"}, labels)

	// Input order untouched.
	assert.Equal(t, "join us", cands[0].Label)
}

func TestRankStable(t *testing.T) {
	cands := []schemas.Candidate{
		{Label: "first", Score: 1.0, Box: box(0, 0, 100, 30), ScrollPosition: 800},
		{Label: "second", Score: 1.0, Box: box(0, 0, 100, 30), ScrollPosition: 800},
	}
	ranked := Rank(cands)
	assert.Equal(t, "first", ranked[0].Label)
	assert.Equal(t, "second", ranked[1].Label)
}

func TestNormalizeLabel(t *testing.T) {
	assert.Equal(t, "career opportunities", NormalizeLabel("  Career\n Opportunities "))
	assert.Equal(t, "careers jobs", NormalizeLabel("Careers/Jobs"))
	assert.Equal(t, "", NormalizeLabel("   "))
	assert.Equal(t, "", NormalizeLabel(" /// "))
}
