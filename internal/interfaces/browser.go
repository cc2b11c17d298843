package interfaces

import (
	"context"
	"time"
)

// Popup is a browser window or tab spawned by the apply action.
type Popup interface {
	// URL returns the popup's current location.
	URL(ctx context.Context) (string, error)

	// WaitForNavigation waits up to timeout for the popup to leave its
	// placeholder "about:blank" state and returns the location it settled
	// on. The placeholder URL is returned unchanged if nothing happened.
	WaitForNavigation(ctx context.Context, timeout time.Duration) (string, error)

	// Close detaches from the popup target.
	Close()
}

// BrowserSession is an isolated, credentialed browsing context used to
// resolve exactly one listing. The popup watch is armed at construction, so
// windows created at any point after the session exists are observed.
type BrowserSession interface {
	// Navigate injects the session credentials and loads the URL, bounded
	// by timeout.
	Navigate(ctx context.Context, url string, timeout time.Duration) error

	// WaitForAny races the selector strategies concurrently and returns the
	// first one that matches a visible element. The first success cancels
	// the remaining waits.
	WaitForAny(ctx context.Context, selectors []string, timeout time.Duration) (string, error)

	// Click clicks the element located by selector.
	Click(ctx context.Context, selector string) error

	// WaitForPopup waits up to timeout for a new window/tab created by the
	// page. ErrNoPopup-style failure is expected and non-fatal.
	WaitForPopup(ctx context.Context, timeout time.Duration) (Popup, error)

	// Close tears down the browsing context and any popup attached to it.
	Close()
}

// SessionFactory creates fresh browser sessions, one per listing.
type SessionFactory interface {
	NewSession(ctx context.Context) (BrowserSession, error)
	Close() error
}
