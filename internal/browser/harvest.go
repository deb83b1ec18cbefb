// internal/browser/harvest.go
package browser

import (
	"strings"
	"unicode/utf8"

	"github.com/crawlkit/careerscout/api/schemas"
)

// maxLabelLength caps harvested text; navigation labels are short and long
// text blocks are never click targets.
const maxLabelLength = 80

// harvestedElement mirrors the object shape produced by harvestScript.
type harvestedElement struct {
	Text string `json:"text"`
	Box  struct {
		XMin float64 `json:"x_min"`
		YMin float64 `json:"y_min"`
		XMax float64 `json:"x_max"`
		YMax float64 `json:"y_max"`
	} `json:"box"`
}

// harvestScript collects visible interactive and text-bearing elements with
// their viewport-relative bounding boxes in a single evaluation. Elements
// fully outside the viewport are excluded; partially visible boxes are
// clipped to the viewport.
const harvestScript = `
(() => {
	const selectors = "a[href], button, [onclick], [role=button], [role=link], [role=menuitem], summary, li, span, p, h1, h2, h3, h4";
	const out = [];
	const seen = new Set();
	const vw = window.innerWidth;
	const vh = window.innerHeight;

	const isVisible = (el) => {
		const style = window.getComputedStyle(el);
		if (style.visibility === 'hidden' || style.display === 'none' || style.opacity === '0') return false;
		const rect = el.getBoundingClientRect();
		if (rect.width === 0 || rect.height === 0) return false;
		// Fully outside the viewport.
		if (rect.bottom <= 0 || rect.top >= vh || rect.right <= 0 || rect.left >= vw) return false;
		return true;
	};

	document.querySelectorAll(selectors).forEach(el => {
		if (!isVisible(el)) return;

		let text = (el.innerText || el.textContent || "").trim().replace(/\s+/g, " ");
		if (!text) {
			text = (el.getAttribute('aria-label') || el.getAttribute('title') || "").trim();
		}
		if (!text) return;

		const rect = el.getBoundingClientRect();
		const box = {
			x_min: Math.max(0, Math.round(rect.left)),
			y_min: Math.max(0, Math.round(rect.top)),
			x_max: Math.min(vw, Math.round(rect.right)),
			y_max: Math.min(vh, Math.round(rect.bottom))
		};

		// Containers repeat the text of their innermost link; keep the first
		// (outermost wins for area, innermost usually shares the box anyway).
		const key = text + "|" + box.x_min + "," + box.y_min;
		if (seen.has(key)) return;
		seen.add(key);

		out.push({ text: text, box: box });
	});
	return out;
})()
`

// activateScript fires a synthetic click on the most specific activatable
// element under the point. Returns true when something was activated.
// Coordinates are interpolated by the caller.
const activateScript = `
(() => {
	const el = document.elementFromPoint(%d, %d);
	if (!el) return false;
	const target = el.closest('a, button, [role=button], [role=link], [onclick]') || el;
	if (typeof target.click !== 'function') return false;
	target.click();
	return true;
})()
`

// filterHarvest converts raw harvest payloads into schema elements, dropping
// anything with a degenerate box or empty text.
func filterHarvest(raw []harvestedElement) []schemas.Element {
	elements := make([]schemas.Element, 0, len(raw))
	for _, h := range raw {
		text := strings.TrimSpace(h.Text)
		if text == "" {
			continue
		}
		text = truncateLabel(text, maxLabelLength)
		box := schemas.BoundingBox{
			XMin: int(h.Box.XMin),
			YMin: int(h.Box.YMin),
			XMax: int(h.Box.XMax),
			YMax: int(h.Box.YMax),
		}
		if !box.Valid() {
			continue
		}
		elements = append(elements, schemas.Element{Text: text, Box: box})
	}
	return elements
}

// truncateLabel cuts text to at most max bytes on a rune boundary so a
// multi-byte character is never split mid-sequence.
func truncateLabel(text string, max int) string {
	if len(text) <= max {
		return text
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
