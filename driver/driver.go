// Package driver defines the UI capability the verification pipeline runs
// against: a small set of operations (navigate, read, capture, set, click,
// commit) on a named, versioned page model. The production implementation
// drives Chrome via Rod; tests use the double in drivertest.
package driver

import (
	"context"
	"errors"
	"fmt"
)

// Driver is the abstract UI capability. Every operation may block on the
// underlying browser and must honour ctx. Implementations are not required
// to be safe for concurrent use; each session owns its driver exclusively.
type Driver interface {
	// Navigate loads the page identified by pageID, with params substituted
	// into the page model's URL template.
	Navigate(ctx context.Context, pageID string, params map[string]string) error

	// ReadText returns the visible text of the named element, or the whole
	// page body when name is empty.
	ReadText(ctx context.Context, name string) (string, error)

	// CaptureImage screenshots the named element as PNG.
	CaptureImage(ctx context.Context, name string) ([]byte, error)

	// SetField types value into the named input field, replacing its content.
	SetField(ctx context.Context, name, value string) error

	// Click clicks the named element.
	Click(ctx context.Context, name string) error

	// IsChecked reports the checked state of the named checkbox.
	IsChecked(ctx context.Context, name string) (bool, error)

	// SetChecked drives the named checkbox to the wanted state. A no-op when
	// the checkbox is already in that state.
	SetChecked(ctx context.Context, name string, want bool) error

	// Commit triggers the current page's save action and waits for it to settle.
	Commit(ctx context.Context) error

	// Alive reports whether the UI still shows an authenticated context.
	// False means the application logged the session out.
	Alive(ctx context.Context) (bool, error)

	// Close releases the underlying page.
	Close() error
}

// UIError is the uniform failure reported by driver implementations. All UI
// errors are retryable unless Fatal is set.
type UIError struct {
	Op    string // operation that failed: navigate, read_text, click, ...
	Name  string // element or page name, if any
	Fatal bool
	Err   error
}

func (e *UIError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("driver: %s %q: %v", e.Op, e.Name, e.Err)
	}
	return fmt.Sprintf("driver: %s: %v", e.Op, e.Err)
}

func (e *UIError) Unwrap() error { return e.Err }

// IsFatalUI reports whether err carries a non-retryable UI failure.
func IsFatalUI(err error) bool {
	var ue *UIError
	return errors.As(err, &ue) && ue.Fatal
}

// ErrUnknownElement is returned when a name is missing from the page model.
var ErrUnknownElement = errors.New("driver: element not in page model")
