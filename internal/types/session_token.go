package types

import (
	"fmt"
	"time"
)

// SessionTokenVersion is the current SessionToken layout version.
const SessionTokenVersion = 1

// Cookie is one browser cookie captured from an authenticated session.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"` // seconds since epoch, 0 for session cookies
	Secure   bool    `json:"secure,omitempty"`
	HTTPOnly bool    `json:"http_only,omitempty"`
	SameSite string  `json:"same_site,omitempty"`
}

// Expired reports whether the cookie has an expiry in the past.
func (c Cookie) Expired(now time.Time) bool {
	if c.Expires <= 0 {
		return false
	}
	return time.Unix(int64(c.Expires), 0).Before(now)
}

// SessionToken is the opaque set of session artifacts produced after an
// interactive login and replayed on later runs to skip the login form.
type SessionToken struct {
	Version    int       `json:"version"`
	CapturedAt time.Time `json:"captured_at"`
	Cookies    []Cookie  `json:"cookies"`
}

// NewSessionToken wraps freshly captured cookies.
func NewSessionToken(cookies []Cookie, at time.Time) *SessionToken {
	return &SessionToken{
		Version:    SessionTokenVersion,
		CapturedAt: at,
		Cookies:    cookies,
	}
}

// Validate checks the token can be applied: known version, at least one
// cookie that is not expired.
func (t *SessionToken) Validate(now time.Time) error {
	if t == nil {
		return fmt.Errorf("session token is nil")
	}
	if t.Version != SessionTokenVersion {
		return fmt.Errorf("unsupported session token version %d", t.Version)
	}
	live := 0
	for _, c := range t.Cookies {
		if c.Name == "" {
			return fmt.Errorf("session token contains a cookie without a name")
		}
		if !c.Expired(now) {
			live++
		}
	}
	if live == 0 {
		return fmt.Errorf("session token has no live cookies")
	}
	return nil
}
