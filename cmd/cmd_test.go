// -- cmd/cmd_test.go --
package cmd

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crawlkit/careerscout/api/schemas"
	"github.com/crawlkit/careerscout/internal/orchestrator"
)

func TestNormalizeTargets(t *testing.T) {
	got := normalizeTargets([]string{
		"example.com",
		"https://already.example.com",
		"http://plain.example.com",
	})
	assert.Equal(t, []string{
		"https://example.com",
		"https://already.example.com",
		"http://plain.example.com",
	}, got)
}

func TestDiscoverCommandFlags(t *testing.T) {
	cmd := newDiscoverCmd()

	for _, name := range []string{"output", "max-hops", "concurrency", "attempt-timeout", "max-scroll", "step", "headless"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "missing flag %q", name)
	}

	hops, err := cmd.Flags().GetInt("max-hops")
	require.NoError(t, err)
	assert.Equal(t, 4, hops)

	output, err := cmd.Flags().GetString("output")
	require.NoError(t, err)
	assert.Equal(t, "records.jsonl", output)
}

func TestDiscoverRequiresArgs(t *testing.T) {
	cmd := newDiscoverCmd()
	err := cmd.Args(cmd, nil)
	assert.Error(t, err)
	assert.NoError(t, cmd.Args(cmd, []string{"example.com"}))
}

func TestPrintSummary(t *testing.T) {
	cmd := newDiscoverCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)

	printSummary(cmd, &orchestrator.Summary{
		Attempts: []*schemas.Attempt{
			{
				StartURL:       "https://shop.example.com",
				Outcome:        schemas.OutcomeSuccess,
				ListingURL:     "https://jobs.example-corp.com/en/search",
				HopCount:       2,
				RecordsEmitted: 2,
			},
			{
				StartURL: "https://search.example.com",
				Outcome:  schemas.OutcomeFailed,
			},
		},
		Success: 1,
		Failed:  1,
		Records: 2,
		Elapsed: 1540 * time.Millisecond,
	})

	out := buf.String()
	assert.Contains(t, out, "attempts: 2  success: 1  partial: 0  failed: 1")
	assert.Contains(t, out, "training records: 2")
	assert.Contains(t, out, "[success] https://shop.example.com -> https://jobs.example-corp.com/en/search (hops=2 records=2)")
	assert.Contains(t, out, "[failed] https://search.example.com (hops=0 records=0)")
}
