// internal/browser/harvest_test.go
package browser

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crawlkit/careerscout/api/schemas"
)

func harvested(text string, x1, y1, x2, y2 float64) harvestedElement {
	h := harvestedElement{Text: text}
	h.Box.XMin, h.Box.YMin, h.Box.XMax, h.Box.YMax = x1, y1, x2, y2
	return h
}

func TestFilterHarvestDropsDegenerateBoxes(t *testing.T) {
	raw := []harvestedElement{
		harvested("Careers", 150, 510, 201, 523),
		harvested("zero width", 100, 100, 100, 120),
		harvested("inverted", 200, 100, 100, 120),
		harvested("   ", 10, 10, 50, 30),
	}

	elements := filterHarvest(raw)
	require.Len(t, elements, 1)
	assert.Equal(t, "Careers", elements[0].Text)
	assert.Equal(t, schemas.BoundingBox{XMin: 150, YMin: 510, XMax: 201, YMax: 523}, elements[0].Box)
}

func TestFilterHarvestTruncatesLongText(t *testing.T) {
	long := strings.Repeat("x", 500)
	elements := filterHarvest([]harvestedElement{harvested(long, 0, 0, 10, 10)})
	require.Len(t, elements, 1)
	assert.Len(t, elements[0].Text, maxLabelLength)
}

func TestTruncateLabelKeepsRuneBoundaries(t *testing.T) {
	// "é" is two bytes; a byte-index cut at 3 would land mid-rune.
	assert.Equal(t, "aé", truncateLabel("aéé", 3))
	assert.Equal(t, "aéé", truncateLabel("aéé", 5))
	assert.Equal(t, "", truncateLabel("日本語", 2))

	long := strings.Repeat("採用情報", 40)
	got := truncateLabel(long, maxLabelLength)
	assert.LessOrEqual(t, len(got), maxLabelLength)
	assert.True(t, utf8.ValidString(got))
}

func TestFilterHarvestPreservesOrder(t *testing.T) {
	raw := []harvestedElement{
		harvested("About", 10, 10, 60, 30),
		harvested("Careers", 10, 40, 60, 60),
		harvested("Press", 10, 70, 60, 90),
	}
	elements := filterHarvest(raw)
	require.Len(t, elements, 3)
	assert.Equal(t, "About", elements[0].Text)
	assert.Equal(t, "Careers", elements[1].Text)
	assert.Equal(t, "Press", elements[2].Text)
}
