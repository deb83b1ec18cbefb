// api/schemas/schemas.go
package schemas

import (
	"fmt"
	"time"
)

// TimestampLayout is ISO-8601 with millisecond precision, used for every
// emitted training record.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// BoundingBox describes an element's extent in viewport pixel coordinates at
// the moment it was observed.
type BoundingBox struct {
	XMin int `json:"x_min"`
	YMin int `json:"y_min"`
	XMax int `json:"x_max"`
	YMax int `json:"y_max"`
}

// Valid reports whether the box has positive extent and non-negative origin.
func (b BoundingBox) Valid() bool {
	return b.XMin >= 0 && b.YMin >= 0 && b.XMin < b.XMax && b.YMin < b.YMax
}

// Center returns the pixel midpoint of the box, the natural click target.
func (b BoundingBox) Center() (x, y int) {
	return (b.XMin + b.XMax) / 2, (b.YMin + b.YMax) / 2
}

// Area returns the box area in square pixels.
func (b BoundingBox) Area() int {
	return (b.XMax - b.XMin) * (b.YMax - b.YMin)
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("[%d,%d,%d,%d]", b.XMin, b.YMin, b.XMax, b.YMax)
}

// Element is a visible interactive or text node reported by the renderer for
// the current viewport.
type Element struct {
	Text string      `json:"text"`
	Box  BoundingBox `json:"box"`
}

// Candidate is a detected page element hypothesized to navigate toward job
// listings. Candidates are immutable once created; re-detection at a later
// scroll position produces a distinct Candidate.
type Candidate struct {
	Label          string
	Box            BoundingBox
	ScrollPosition int
	// Viewport is the 1-based scan step index the candidate was seen in.
	Viewport int
	PageURL  string
	Score    float64
	// Synthetic marks a candidate injected from the separate-career-domain
	// map rather than detected on the page. Its Box is zero and it is
	// navigated by URL, not by click.
	Synthetic    bool
	SyntheticURL string
}

// EntryMethod records how a page was reached during an attempt.
type EntryMethod string

const (
	EntryInitial    EntryMethod = "initial"
	EntryClicked    EntryMethod = "clicked"
	EntryRedirected EntryMethod = "redirected"
)

// PageVisit covers one distinct page reached during an attempt, from first
// render to the decision to leave it.
type PageVisit struct {
	URL             string
	Entry           EntryMethod
	ScrollPositions []int
	Candidates      []Candidate
}

// Outcome is the user-visible result of one discovery attempt.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial"
	OutcomeFailed  Outcome = "failed"
)

// State names a position in the discovery state machine.
type State string

const (
	StateStart             State = "Start"
	StateScanning          State = "Scanning"
	StateCandidatesFound   State = "CandidatesFound"
	StateNavigating        State = "Navigating"
	StateScanningNextPage  State = "ScanningNextPage"
	StateJobListingReached State = "JobListingReached"
	StateExhausted         State = "Exhausted"
	StateFailed            State = "Failed"
)

// Terminal reports whether the state ends an attempt.
func (s State) Terminal() bool {
	switch s {
	case StateJobListingReached, StateExhausted, StateFailed:
		return true
	}
	return false
}

// Attempt owns all data produced while discovering one start URL.
type Attempt struct {
	ID       string
	StartURL string
	Visited  []PageVisit
	Outcome  Outcome
	// FinalState is the terminal state the machine stopped in.
	FinalState State
	HopCount   int
	// RecordsEmitted counts training records produced by this attempt.
	RecordsEmitted int
	// MaxScrollReached notes that at least one page was scanned all the way
	// to the scroll budget without yielding a candidate. Useful when
	// diagnosing sites whose careers link hides behind an About section.
	MaxScrollReached bool
	// ListingURL is the page that satisfied the job-listing heuristic, when
	// the attempt succeeded.
	ListingURL string
}

// TrainingRecord is one emitted, immutable observation of a detected
// candidate, suitable for supervised model training. Field names and shapes
// follow the exported line format exactly.
type TrainingRecord struct {
	Label          string `json:"label"`
	BBox           [4]int `json:"bbox"`
	PageURL        string `json:"page_url"`
	ScrollPosition int    `json:"scroll_position"`
	ViewportNumber int    `json:"viewport_number"`
	Timestamp      string `json:"timestamp"`
}

// NewTrainingRecord derives the exported record from a detected candidate.
func NewTrainingRecord(c Candidate, now time.Time) TrainingRecord {
	return TrainingRecord{
		Label:          c.Label,
		BBox:           [4]int{c.Box.XMin, c.Box.YMin, c.Box.XMax, c.Box.YMax},
		PageURL:        c.PageURL,
		ScrollPosition: c.ScrollPosition,
		ViewportNumber: c.Viewport,
		Timestamp:      now.UTC().Format(TimestampLayout),
	}
}

// NavigationMethod identifies which click mechanism produced a navigation.
type NavigationMethod string

const (
	MethodCoordinateClick NavigationMethod = "coordinate_click"
	MethodSyntheticClick  NavigationMethod = "synthetic_click"
	MethodDirectURL       NavigationMethod = "direct_url"
)

// NavigationResult reports where a navigation attempt landed. NewURL is
// always populated, even when the destination is classified as a dead end;
// deciding progress versus failure is the state machine's job.
type NavigationResult struct {
	NewURL string
	Method NavigationMethod
}
