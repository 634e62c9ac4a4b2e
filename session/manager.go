package session

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/looplab/fsm"

	"github.com/dealerops/featuresync/config"
	"github.com/dealerops/featuresync/driver"
	"github.com/dealerops/featuresync/retry"
)

// Auth state machine states. The fsm guards the legal transitions; the
// manager only fires events.
const (
	StateLoggedOut            = "logged_out"
	StateCredentialsSubmitted = "credentials_submitted"
	StateAwaitingTwoFactor    = "awaiting_two_factor"
	StateAuthenticated        = "authenticated"
	StateExpired              = "expired"

	eventSubmit    = "submit"
	eventChallenge = "challenge"
	eventVerify    = "verify"
	eventPass      = "pass"
)

// CodeSource is the auth-email collaborator. PollLatestCode returns the
// newest code addressed to recipient and received after since, or ""
// when none has arrived yet.
type CodeSource interface {
	PollLatestCode(ctx context.Context, recipient string, since time.Time) (string, error)
}

// DriverFactory opens a fresh UI driver for a new session.
type DriverFactory func(ctx context.Context) (driver.Driver, error)

// Observer receives diagnostics from an Acquire call. Both callbacks are
// optional.
type Observer struct {
	// OnTransition fires on every state change.
	OnTransition func(dealershipID, from, to string)
	// OnPoll fires after each two-factor mailbox poll.
	OnPoll func(dealershipID string, attempt int, found bool)
}

// Config tunes the manager. Zero values get defaults.
type Config struct {
	LoginAttempts int           // retry budget per UI step, default 3
	IdleTimeout   time.Duration // session idle expiry, default 30m
	PollInterval  time.Duration // two-factor mailbox poll, default 5s
	CodeDeadline  time.Duration // two-factor deadline, default 120s
	Observer      Observer
}

func (c *Config) defaults() {
	if c.LoginAttempts <= 0 {
		c.LoginAttempts = 3
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 30 * time.Minute
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.CodeDeadline <= 0 {
		c.CodeDeadline = 120 * time.Second
	}
}

// Manager acquires authenticated sessions. It holds no cross-run state;
// each Acquire builds a fresh state machine.
type Manager struct {
	newDriver DriverFactory
	codes     CodeSource
	cfg       Config
	logger    *slog.Logger
}

// NewManager creates a Manager.
func NewManager(newDriver DriverFactory, codes CodeSource, cfg Config, logger *slog.Logger) *Manager {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{newDriver: newDriver, codes: codes, cfg: cfg, logger: logger}
}

// Acquire logs one dealership in and returns an authenticated Session. On
// failure the returned error is an *AuthError and no session exists.
func (m *Manager) Acquire(ctx context.Context, profile config.DealershipProfile) (*Session, error) {
	d, err := m.newDriver(ctx)
	if err != nil {
		return nil, &AuthError{Kind: LoginFailed, DealershipID: profile.ID, Err: err}
	}

	f := m.newAuthFSM(profile.ID)
	policy := retry.Policy{Attempts: m.cfg.LoginAttempts}

	fail := func(kind AuthErrorKind, err error) (*Session, error) {
		d.Close()
		return nil, &AuthError{Kind: kind, DealershipID: profile.ID, Err: err}
	}

	// Submit credentials, retrying transient UI errors per step.
	err = policy.Do(ctx, func() error {
		return m.submitCredentials(ctx, d, profile)
	})
	if err != nil {
		return fail(LoginFailed, err)
	}
	if err := f.Event(ctx, eventSubmit); err != nil {
		return fail(LoginFailed, err)
	}

	// No 2FA prompt means the dashboard is already up.
	alive, err := d.Alive(ctx)
	if err == nil && alive {
		if err := f.Event(ctx, eventPass); err != nil {
			return fail(LoginFailed, err)
		}
		return m.newSession(profile.ID, d), nil
	}

	if err := f.Event(ctx, eventChallenge); err != nil {
		return fail(LoginFailed, err)
	}

	challenge := AuthChallenge{
		DealershipID: profile.ID,
		IssuedAt:     time.Now(),
		Deadline:     time.Now().Add(m.cfg.CodeDeadline),
		PollInterval: m.cfg.PollInterval,
	}

	code, err := m.awaitCode(ctx, profile, challenge)
	if err != nil {
		if ctx.Err() != nil {
			return fail(LoginFailed, ctx.Err())
		}
		return fail(TwoFactorTimeout, err)
	}

	err = policy.Do(ctx, func() error {
		return m.submitCode(ctx, d, code)
	})
	if err != nil {
		return fail(LoginFailed, err)
	}

	alive, aliveErr := d.Alive(ctx)
	if aliveErr != nil || !alive {
		if aliveErr == nil {
			aliveErr = fmt.Errorf("dashboard did not load after verification")
		}
		return fail(LoginFailed, aliveErr)
	}
	if err := f.Event(ctx, eventVerify); err != nil {
		return fail(LoginFailed, err)
	}

	return m.newSession(profile.ID, d), nil
}

func (m *Manager) newSession(dealershipID string, d driver.Driver) *Session {
	s := &Session{
		DealershipID: dealershipID,
		CreatedAt:    time.Now(),
		IdleTimeout:  m.cfg.IdleTimeout,
		Driver:       d,
	}
	s.Touch()
	m.logger.Info("session: authenticated", "dealership", dealershipID)
	return s
}

func (m *Manager) newAuthFSM(dealershipID string) *fsm.FSM {
	return fsm.NewFSM(
		StateLoggedOut,
		fsm.Events{
			{Name: eventSubmit, Src: []string{StateLoggedOut}, Dst: StateCredentialsSubmitted},
			{Name: eventChallenge, Src: []string{StateCredentialsSubmitted}, Dst: StateAwaitingTwoFactor},
			{Name: eventPass, Src: []string{StateCredentialsSubmitted}, Dst: StateAuthenticated},
			{Name: eventVerify, Src: []string{StateAwaitingTwoFactor}, Dst: StateAuthenticated},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				m.logger.Debug("session: transition", "dealership", dealershipID, "from", e.Src, "to", e.Dst)
				if cb := m.cfg.Observer.OnTransition; cb != nil {
					cb(dealershipID, e.Src, e.Dst)
				}
			},
		},
	)
}

func (m *Manager) submitCredentials(ctx context.Context, d driver.Driver, profile config.DealershipProfile) error {
	if err := d.Navigate(ctx, driver.PageLogin, nil); err != nil {
		return err
	}
	if err := d.SetField(ctx, "username", profile.Credentials.Username); err != nil {
		return err
	}
	if err := d.Click(ctx, "next"); err != nil {
		return err
	}
	if err := d.SetField(ctx, "password", profile.Credentials.Password); err != nil {
		return err
	}
	return d.Click(ctx, "sign_in")
}

func (m *Manager) submitCode(ctx context.Context, d driver.Driver, code string) error {
	if err := d.Navigate(ctx, driver.PageTwoFactor, nil); err != nil {
		return err
	}
	if err := d.SetField(ctx, "code", code); err != nil {
		return err
	}
	return d.Click(ctx, "verify")
}

var codeRe = regexp.MustCompile(`^\d{6}$`)

// awaitCode polls the auth mailbox until a code arrives or the challenge
// deadline passes. The loop yields between polls and honours ctx.
func (m *Manager) awaitCode(ctx context.Context, profile config.DealershipProfile, ch AuthChallenge) (string, error) {
	ticker := time.NewTicker(ch.PollInterval)
	defer ticker.Stop()

	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}

		if time.Now().After(ch.Deadline) {
			return "", fmt.Errorf("no code within %s", m.cfg.CodeDeadline)
		}

		attempt++
		code, err := m.codes.PollLatestCode(ctx, profile.Credentials.AuthEmail, ch.IssuedAt)
		if err != nil {
			m.logger.Warn("session: code poll failed", "dealership", profile.ID, "attempt", attempt, "error", err)
			continue
		}

		found := code != ""
		if cb := m.cfg.Observer.OnPoll; cb != nil {
			cb(profile.ID, attempt, found)
		}
		if !found {
			m.logger.Debug("session: no code yet", "dealership", profile.ID, "attempt", attempt)
			continue
		}
		if !codeRe.MatchString(code) {
			m.logger.Warn("session: discarding malformed code", "dealership", profile.ID)
			continue
		}
		return code, nil
	}
}
