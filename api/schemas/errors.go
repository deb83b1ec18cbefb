// api/schemas/errors.go
package schemas

import "fmt"

// NavErrorKind classifies recoverable navigation failures.
type NavErrorKind string

const (
	// NavClickFailed: the click could not be delivered, or it was delivered
	// and no navigation followed within the stabilization window.
	NavClickFailed NavErrorKind = "click_failed"
	// NavRedirectTrap: navigation landed on a domain known to divert away
	// from the intended careers destination.
	NavRedirectTrap NavErrorKind = "redirect_unexpected"
	// NavTimeout: the renderer did not answer within the operation timeout.
	NavTimeout NavErrorKind = "timeout"
)

// NavError is a structured, recoverable navigation failure. The state machine
// interprets it as a transition; it never aborts the process.
type NavError struct {
	Kind NavErrorKind
	// NewURL carries the observed destination for redirect_unexpected.
	NewURL string
	Err    error
}

func (e *NavError) Error() string {
	if e.NewURL != "" {
		return fmt.Sprintf("navigation %s (landed on %s)", e.Kind, e.NewURL)
	}
	if e.Err != nil {
		return fmt.Sprintf("navigation %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("navigation %s", e.Kind)
}

func (e *NavError) Unwrap() error { return e.Err }

// FatalRendererError wraps an unrecoverable renderer failure (page crash,
// dead session). It terminates the whole attempt as Failed.
type FatalRendererError struct {
	Op  string
	Err error
}

func (e *FatalRendererError) Error() string {
	return fmt.Sprintf("renderer fatal during %s: %v", e.Op, e.Err)
}

func (e *FatalRendererError) Unwrap() error { return e.Err }
