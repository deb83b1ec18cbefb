// api/schemas/interfaces.go
package schemas

import "context"

// Renderer is the browser collaborator consumed by the discovery engine. The
// chromedp-backed implementation lives in internal/browser; tests substitute
// scripted fakes. Every call that waits on the browser takes a context so
// timeout and cancellation policy stay at the use site.
type Renderer interface {
	// Navigate loads the URL and waits for the page to settle.
	Navigate(ctx context.Context, url string) error
	// ScrollTo moves the viewport to the absolute pixel offset.
	ScrollTo(ctx context.Context, offset int) error
	// PageHeight reports the current document scroll height in pixels.
	PageHeight(ctx context.Context) (int, error)
	// VisibleElements returns the interactive and text elements currently
	// inside the viewport, with bounding boxes. Re-querying an unchanged
	// page at the same offset yields the same set.
	VisibleElements(ctx context.Context) ([]Element, error)
	// ClickAt dispatches a real mouse click at viewport coordinates.
	ClickAt(ctx context.Context, x, y int) error
	// ClickActivate fires a synthetic activation on the element under the
	// coordinates, the fallback when coordinate clicks are swallowed by
	// overlays.
	ClickActivate(ctx context.Context, x, y int) error
	// CurrentURL reports the page's present location.
	CurrentURL(ctx context.Context) (string, error)
	Close(ctx context.Context) error
}

// RecordEmitter receives training records as they are produced. Emitted
// records outlive the attempt that produced them.
type RecordEmitter interface {
	Emit(rec TrainingRecord) error
	Close() error
}
