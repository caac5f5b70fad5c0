// Package driver declares the browser capabilities the runner consumes.
// Concrete backends live in the cdp and pw subpackages.
package driver

import (
	"context"
	"errors"

	"github.com/xkilldash9x/walkthrough/internal/scenario"
)

// ErrNotFound is returned (possibly wrapped) when a locator matches no
// element. It is distinct from a lookup that succeeds but finds the element
// hidden, and from faults of the session itself.
var ErrNotFound = errors.New("target not found")

// ErrClosed is returned by operations on a session that has been closed.
var ErrClosed = errors.New("session closed")

// Driver is the interaction surface of one browser page. Query methods
// (CheckVisible, CurrentURL, Title) have no side effects and may be called
// repeatedly.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	Fill(ctx context.Context, field scenario.Locator, value string) error
	Click(ctx context.Context, target scenario.Locator) error
	Reload(ctx context.Context) error

	// CheckVisible reports whether an element matched by l is visible. It
	// returns ErrNotFound when nothing matches at all.
	CheckVisible(ctx context.Context, l scenario.Locator) (bool, error)
	CurrentURL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)

	// Screenshot returns a PNG of the full page.
	Screenshot(ctx context.Context) ([]byte, error)
}

// Session is a Driver exclusively owned by one scenario run.
type Session interface {
	Driver
	ID() string
	// Close releases the page. It is safe to call more than once.
	Close(ctx context.Context) error
}

// SessionFactory opens isolated sessions against a shared browser.
type SessionFactory interface {
	NewSession(ctx context.Context) (Session, error)
	// Shutdown waits for open sessions, bounded by ctx, then stops the browser.
	Shutdown(ctx context.Context) error
}
