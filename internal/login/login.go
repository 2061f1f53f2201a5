// Package login establishes an authenticated platform session, replaying a stored
// session token when possible and falling back to the login form.
package login

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jonathan/easy-apply-agent/internal/browser"
	"github.com/jonathan/easy-apply-agent/internal/platform"
	"github.com/jonathan/easy-apply-agent/internal/types"
)

// State is a step of session establishment.
type State string

const (
	Unauthenticated   State = "unauthenticated"
	ValidatingToken   State = "validating_token"
	TokenInvalid      State = "token_invalid"
	InteractiveLogin  State = "interactive_login"
	Authenticated     State = "authenticated"
	LoginFailed       State = "login_failed"
	SecurityChallenge State = "security_challenge"
)

// Error is a terminal login outcome. State is LoginFailed or SecurityChallenge.
type Error struct {
	State   State
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.State, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.State, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsChallenge reports whether err is a security challenge outcome.
func IsChallenge(err error) bool {
	var le *Error
	return errors.As(err, &le) && le.State == SecurityChallenge
}

// Config bounds the waits of the login flow.
type Config struct {
	FieldTimeout time.Duration
	// LandingWait is how long to wait for the post-login redirect.
	LandingWait  time.Duration
	PollInterval time.Duration
	Pacing       browser.Pacing
}

// DefaultConfig returns live-run waits.
func DefaultConfig() Config {
	return Config{
		FieldTimeout: 10 * time.Second,
		LandingWait:  15 * time.Second,
		PollInterval: time.Second,
		Pacing:       browser.DefaultPacing(),
	}
}

// Manager runs the login state machine.
type Manager struct {
	store TokenStore
	cfg   Config
	log   logrus.FieldLogger
	now   func() time.Time
}

// NewManager returns a manager persisting tokens in store.
func NewManager(store TokenStore, cfg Config, log logrus.FieldLogger) *Manager {
	return &Manager{store: store, cfg: cfg, log: log, now: time.Now}
}

// Establish authenticates session for caller. It returns Authenticated, or a
// *Error when the login form fails or the platform interposes a challenge.
func (m *Manager) Establish(ctx context.Context, s browser.Session, caller string, creds *types.Credentials) (State, error) {
	log := m.log.WithField("caller", caller)

	if err := s.Navigate(ctx, platform.HomeURL); err != nil {
		return LoginFailed, &Error{State: LoginFailed, Message: "could not open the platform", Cause: err}
	}

	token, err := m.store.Load(ctx, caller)
	if err != nil {
		log.WithError(err).Warn("Stored session token unreadable, discarding")
		m.discard(ctx, s, caller, false)
		token = nil
	}
	if token != nil {
		if m.replay(ctx, s, caller, token, log) == Authenticated {
			log.Info("Login successful using stored session")
			return Authenticated, nil
		}
	}

	return m.interactive(ctx, s, caller, creds, log)
}

// replay applies a stored token. Any failure leaves no cookies behind and deletes the token.
func (m *Manager) replay(ctx context.Context, s browser.Session, caller string, token *types.SessionToken, log logrus.FieldLogger) State {
	if err := token.Validate(m.now()); err != nil {
		log.WithError(err).Info("Stored session token rejected")
		m.discard(ctx, s, caller, false)
		return TokenInvalid
	}
	if err := s.SetCookies(ctx, token.Cookies); err != nil {
		log.WithError(err).Warn("Failed to apply stored session token")
		m.discard(ctx, s, caller, true)
		return TokenInvalid
	}
	if err := s.Navigate(ctx, platform.FeedURL); err != nil {
		log.WithError(err).Warn("Failed to load feed with stored session")
		m.discard(ctx, s, caller, true)
		return TokenInvalid
	}
	u, err := s.CurrentURL(ctx)
	if err != nil || !platform.IsFeed(u) {
		log.WithField("url", u).Info("Stored session token expired")
		m.discard(ctx, s, caller, true)
		return TokenInvalid
	}
	return Authenticated
}

func (m *Manager) discard(ctx context.Context, s browser.Session, caller string, clear bool) {
	if clear {
		if err := s.ClearCookies(ctx); err != nil {
			m.log.WithError(err).Warn("Failed to clear browser cookies")
		}
	}
	if err := m.store.Delete(ctx, caller); err != nil {
		m.log.WithError(err).Warn("Failed to delete session token")
	}
}

func (m *Manager) interactive(ctx context.Context, s browser.Session, caller string, creds *types.Credentials, log logrus.FieldLogger) (State, error) {
	if creds == nil || creds.Identity == "" || !creds.HasSecret() {
		return LoginFailed, &Error{State: LoginFailed, Message: "no platform credentials available"}
	}
	log.Info("Logging in with credentials")

	if err := s.Navigate(ctx, platform.LoginURL); err != nil {
		return LoginFailed, &Error{State: LoginFailed, Message: "could not open the login page", Cause: err}
	}

	user := s.FindOne(ctx, platform.UsernameInput, m.cfg.FieldTimeout)
	if !user.OK() {
		return LoginFailed, &Error{State: LoginFailed, Message: "username field " + user.Outcome.String(), Cause: user.Err}
	}
	if err := s.Type(ctx, user.Element, creds.Identity); err != nil {
		return LoginFailed, &Error{State: LoginFailed, Message: "could not enter username", Cause: err}
	}
	if err := browser.Pause(ctx, m.cfg.Pacing.Field); err != nil {
		return LoginFailed, &Error{State: LoginFailed, Message: "interrupted", Cause: err}
	}

	pass := s.FindOne(ctx, platform.PasswordInput, m.cfg.FieldTimeout)
	if !pass.OK() {
		return LoginFailed, &Error{State: LoginFailed, Message: "password field " + pass.Outcome.String(), Cause: pass.Err}
	}
	secret, _ := creds.TakeSecret()
	if err := s.Type(ctx, pass.Element, secret); err != nil {
		return LoginFailed, &Error{State: LoginFailed, Message: "could not enter password", Cause: err}
	}

	submit := s.WaitUntilClickable(ctx, platform.LoginSubmit, m.cfg.FieldTimeout)
	if !submit.OK() {
		return LoginFailed, &Error{State: LoginFailed, Message: "sign-in button " + submit.Outcome.String(), Cause: submit.Err}
	}
	if err := s.Click(ctx, submit.Element); err != nil {
		return LoginFailed, &Error{State: LoginFailed, Message: "could not submit the login form", Cause: err}
	}

	u, err := m.awaitLanding(ctx, s)
	if err != nil {
		return LoginFailed, &Error{State: LoginFailed, Message: "interrupted", Cause: err}
	}
	switch {
	case platform.IsFeed(u):
		m.capture(ctx, s, caller, log)
		log.Info("Login successful using credentials")
		return Authenticated, nil
	case platform.IsChallenge(u):
		log.WithField("url", u).Error("Security check triggered, manual intervention required")
		return SecurityChallenge, &Error{State: SecurityChallenge, Message: "the platform requires a security verification"}
	default:
		log.WithField("url", u).Error("Login failed")
		return LoginFailed, &Error{State: LoginFailed, Message: "credentials were not accepted"}
	}
}

// awaitLanding polls the location until it settles on the feed or a challenge, or the wait ends.
func (m *Manager) awaitLanding(ctx context.Context, s browser.Session) (string, error) {
	deadline := m.now().Add(m.cfg.LandingWait)
	for {
		u, err := s.CurrentURL(ctx)
		if err == nil && (platform.IsFeed(u) || platform.IsChallenge(u)) {
			return u, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !m.now().Before(deadline) {
			return u, nil
		}
		if err := browser.Pause(ctx, browser.Range{Min: m.cfg.PollInterval, Max: m.cfg.PollInterval}); err != nil {
			return "", err
		}
	}
}

func (m *Manager) capture(ctx context.Context, s browser.Session, caller string, log logrus.FieldLogger) {
	cookies, err := s.Cookies(ctx)
	if err != nil {
		log.WithError(err).Warn("Failed to capture session cookies")
		return
	}
	if err := m.store.Save(ctx, caller, types.NewSessionToken(cookies, m.now())); err != nil {
		log.WithError(err).Warn("Failed to save session token")
	}
}
