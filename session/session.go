// Package session owns the authenticated-session state machine for one
// dealership: credential submission, the out-of-band two-factor exchange,
// and expiry tracking. One Manager.Acquire call builds one Session; nothing
// survives across calls.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/dealerops/featuresync/driver"
)

// ErrExpired signals that the session died mid-operation. The orchestrator
// reacts by acquiring a fresh session and resuming the vehicle in progress.
var ErrExpired = errors.New("session: expired")

// Session is an authenticated UI context. It is owned by exactly one batch
// run at a time and must not be shared across workers.
type Session struct {
	DealershipID string
	CreatedAt    time.Time
	IdleTimeout  time.Duration

	// Driver is the UI handle bound to this session.
	Driver driver.Driver

	lastActivity time.Time
	expired      bool
}

// Touch records activity, pushing back idle expiry.
func (s *Session) Touch() {
	s.lastActivity = time.Now()
}

// MarkExpired forces the session into the expired state. Used when the UI
// signals a logout.
func (s *Session) MarkExpired() {
	s.expired = true
}

// Expired reports whether the session is past its idle timeout or was
// marked expired. An expired session is dead: the orchestrator must call
// Acquire again, the manager never resurrects one.
func (s *Session) Expired(now time.Time) bool {
	if s.expired {
		return true
	}
	return now.Sub(s.lastActivity) > s.IdleTimeout
}

// Close releases the underlying driver page.
func (s *Session) Close() error {
	if s.Driver != nil {
		return s.Driver.Close()
	}
	return nil
}

// AuthChallenge is a pending two-factor requirement.
type AuthChallenge struct {
	DealershipID string
	IssuedAt     time.Time
	Deadline     time.Time
	PollInterval time.Duration
}

// AuthErrorKind classifies authentication failures.
type AuthErrorKind int

const (
	// LoginFailed covers persistent UI failures during credential or code
	// submission, and a post-login page that never reached the dashboard.
	LoginFailed AuthErrorKind = iota
	// TwoFactorTimeout means no code arrived before the challenge deadline.
	TwoFactorTimeout
)

func (k AuthErrorKind) String() string {
	switch k {
	case TwoFactorTimeout:
		return "two_factor_timeout"
	default:
		return "login_failed"
	}
}

// AuthError aborts the batch; it is never retried at the vehicle level.
type AuthError struct {
	Kind         AuthErrorKind
	DealershipID string
	Err          error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("session: %s: %s: %v", e.DealershipID, e.Kind, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }
