// internal/detect/detector.go

// Package detect turns harvested page elements into scored careers-link
// candidates. Detection is pure: the same elements and page context always
// produce the same candidates, which keeps ranking reproducible across runs.
package detect

import (
	"strings"
	"unicode"

	"github.com/crawlkit/careerscout/api/schemas"
	"github.com/crawlkit/careerscout/internal/config"
)

// PageContext situates one harvested viewport within its page.
type PageContext struct {
	URL            string
	PageHeight     int
	ScrollPosition int
	Viewport       int
}

// Detector matches element labels against a weighted vocabulary of careers
// phrases and applies a footer-position bonus.
type Detector struct {
	cfg config.DetectorConfig
	// vocabulary with pre-split phrase words, longest phrases first so
	// "career opportunities" wins over "careers" on the same label.
	phrases []phrase
}

type phrase struct {
	words  []string
	weight float64
}

func New(cfg config.DetectorConfig) *Detector {
	d := &Detector{cfg: cfg}
	for text, weight := range cfg.Vocabulary {
		words := strings.Fields(normalize(text))
		if len(words) == 0 {
			continue
		}
		d.phrases = append(d.phrases, phrase{words: words, weight: weight})
	}
	return d
}

// Detect scores the elements of one viewport and returns every match as a
// candidate. No filtering beyond vocabulary membership happens here; the
// ranker and the state machine decide what to act on.
func (d *Detector) Detect(elements []schemas.Element, pc PageContext) []schemas.Candidate {
	var out []schemas.Candidate
	for _, el := range elements {
		label := normalize(el.Text)
		if label == "" {
			continue
		}
		weight, ok := d.match(label)
		if !ok {
			continue
		}

		score := weight
		if d.inFooter(el.Box, pc) {
			score *= d.cfg.FooterBonus
		}

		out = append(out, schemas.Candidate{
			Label:          label,
			Box:            el.Box,
			ScrollPosition: pc.ScrollPosition,
			Viewport:       pc.Viewport,
			PageURL:        pc.URL,
			Score:          score,
		})
	}
	return out
}

// match returns the weight of the best vocabulary phrase contained in the
// label, matched on word boundaries so "jobs" does not fire on "jobsworth".
func (d *Detector) match(label string) (float64, bool) {
	words := strings.Fields(label)
	best := 0.0
	bestLen := 0
	found := false
	for _, p := range d.phrases {
		if !containsAt(words, p.words) {
			continue
		}
		// Longer phrases are more specific; among equal lengths the higher
		// weight wins.
		if len(p.words) > bestLen || (len(p.words) == bestLen && p.weight > best) {
			best = p.weight
			bestLen = len(p.words)
			found = true
		}
	}
	return best, found
}

func containsAt(words, phrase []string) bool {
	for i := 0; i+len(phrase) <= len(words); i++ {
		match := true
		for j, w := range phrase {
			if words[i+j] != w {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// inFooter reports whether the element sits in the footer region of the
// page: its absolute top edge at or below FooterFraction of the page height.
func (d *Detector) inFooter(box schemas.BoundingBox, pc PageContext) bool {
	if pc.PageHeight <= 0 || d.cfg.FooterFraction <= 0 || d.cfg.FooterBonus <= 0 {
		return false
	}
	absTop := float64(pc.ScrollPosition + box.YMin)
	return absTop >= d.cfg.FooterFraction*float64(pc.PageHeight)
}

// normalize lowercases a label and splits it into words on any run of
// non-alphanumeric runes, so "Careers/Jobs" and "Careers." match the same
// vocabulary entries as their plain forms while "jobsworth" remains a single
// word and never fires "jobs".
func normalize(s string) string {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(words, " ")
}

// NormalizeLabel is the canonical label form used for per-page record
// deduplication.
func NormalizeLabel(s string) string { return normalize(s) }
