// internal/mocks/renderer.go
package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/crawlkit/careerscout/api/schemas"
)

// FakeLink is an element placed on a fake page in absolute page coordinates.
// Target, when set, is where a click on the element navigates.
type FakeLink struct {
	Text   string
	Box    schemas.BoundingBox
	Target string
}

// FakePage models one renderable page for tests.
type FakePage struct {
	Height int
	Links  []FakeLink
}

// FakeRenderer is a scriptable schemas.Renderer backed by an in-memory page
// model. It supports redirect chains and injectable failures so state machine
// scenarios can be exercised without a browser.
type FakeRenderer struct {
	mu sync.Mutex

	Pages     map[string]*FakePage
	Redirects map[string]string

	ViewportWidth  int
	ViewportHeight int

	// Failure injection.
	NavigateErr     map[string]error
	ScrollErr       error
	ElementsErr     error
	CoordClickErr   error
	CoordIgnored    bool // coordinate click "succeeds" but navigates nowhere
	ActivateErr     error
	ActivateIgnored bool // activation "succeeds" but navigates nowhere

	currentURL string
	scroll     int

	// Bookkeeping for assertions.
	ScrollLog []int
	ClickLog  []string
	Closed    bool
}

var _ schemas.Renderer = (*FakeRenderer)(nil)

// NewFakeRenderer returns a renderer with an 1280x800 viewport and no pages.
func NewFakeRenderer() *FakeRenderer {
	return &FakeRenderer{
		Pages:          make(map[string]*FakePage),
		Redirects:      make(map[string]string),
		ViewportWidth:  1280,
		ViewportHeight: 800,
	}
}

// AddPage registers a page under the URL.
func (f *FakeRenderer) AddPage(url string, page *FakePage) {
	f.Pages[url] = page
}

func (f *FakeRenderer) resolve(url string) string {
	seen := map[string]bool{}
	for {
		next, ok := f.Redirects[url]
		if !ok || seen[url] {
			return url
		}
		seen[url] = true
		url = next
	}
}

func (f *FakeRenderer) page() *FakePage {
	return f.Pages[f.currentURL]
}

func (f *FakeRenderer) Navigate(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.NavigateErr[url]; err != nil {
		return err
	}
	f.currentURL = f.resolve(url)
	f.scroll = 0
	return nil
}

func (f *FakeRenderer) ScrollTo(_ context.Context, offset int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ScrollErr != nil {
		return f.ScrollErr
	}
	f.scroll = offset
	f.ScrollLog = append(f.ScrollLog, offset)
	return nil
}

func (f *FakeRenderer) PageHeight(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.page()
	if p == nil {
		return 0, fmt.Errorf("no page loaded at %q", f.currentURL)
	}
	return p.Height, nil
}

// VisibleElements returns the links intersecting the current viewport, with
// boxes translated to viewport coordinates and clipped.
func (f *FakeRenderer) VisibleElements(_ context.Context) ([]schemas.Element, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ElementsErr != nil {
		return nil, f.ElementsErr
	}
	p := f.page()
	if p == nil {
		return nil, nil
	}

	top := f.scroll
	bottom := f.scroll + f.ViewportHeight

	var out []schemas.Element
	for _, link := range p.Links {
		if link.Box.YMax <= top || link.Box.YMin >= bottom {
			continue
		}
		box := schemas.BoundingBox{
			XMin: link.Box.XMin,
			XMax: link.Box.XMax,
			YMin: max(0, link.Box.YMin-top),
			YMax: min(f.ViewportHeight, link.Box.YMax-top),
		}
		if !box.Valid() {
			continue
		}
		out = append(out, schemas.Element{Text: link.Text, Box: box})
	}
	return out, nil
}

func (f *FakeRenderer) ClickAt(_ context.Context, x, y int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CoordClickErr != nil {
		return f.CoordClickErr
	}
	if f.CoordIgnored {
		return nil
	}
	f.clickLocked(x, y, "coordinate")
	return nil
}

func (f *FakeRenderer) ClickActivate(_ context.Context, x, y int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ActivateErr != nil {
		return f.ActivateErr
	}
	if f.ActivateIgnored {
		return nil
	}
	f.clickLocked(x, y, "synthetic")
	return nil
}

// clickLocked resolves the click target by page coordinates and follows its
// link, applying redirects. A miss leaves the URL unchanged.
func (f *FakeRenderer) clickLocked(x, y int, method string) {
	p := f.page()
	if p == nil {
		return
	}
	pageY := y + f.scroll
	for _, link := range p.Links {
		if link.Target == "" {
			continue
		}
		if x >= link.Box.XMin && x < link.Box.XMax && pageY >= link.Box.YMin && pageY < link.Box.YMax {
			f.ClickLog = append(f.ClickLog, fmt.Sprintf("%s:%s", method, link.Text))
			f.currentURL = f.resolve(link.Target)
			f.scroll = 0
			return
		}
	}
	f.ClickLog = append(f.ClickLog, fmt.Sprintf("%s:miss", method))
}

func (f *FakeRenderer) CurrentURL(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.currentURL, nil
}

func (f *FakeRenderer) Close(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}
