package types

import "strings"

// ExtractionFailed is the corpus sentinel used when resume text could not be extracted.
const ExtractionFailed = "RESUME TEXT EXTRACTION FAILED"

// ResumeCorpus is the plain-text resume content used to ground oracle answers.
type ResumeCorpus string

// Failed reports whether the corpus is the extraction-failed sentinel (or empty).
func (c ResumeCorpus) Failed() bool {
	s := strings.TrimSpace(string(c))
	return s == "" || strings.HasPrefix(s, ExtractionFailed)
}

// CandidateProfile holds the structured candidate fields. It is treated as
// immutable for the duration of a run; optional fields may be empty.
type CandidateProfile struct {
	Name        string            `json:"name"`
	Email       string            `json:"email"`
	Phone       string            `json:"phone,omitempty"`
	City        string            `json:"city,omitempty"`
	Skills      string            `json:"skills,omitempty"`
	Preferences map[string]string `json:"preferences,omitempty"`
	ResumePath  string            `json:"resume_path"`
}

// FirstName returns the first whitespace-separated token of Name.
func (p *CandidateProfile) FirstName() string {
	parts := strings.Fields(p.Name)
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}

// LastName returns the last whitespace-separated token of Name when Name has more than one token.
func (p *CandidateProfile) LastName() string {
	parts := strings.Fields(p.Name)
	if len(parts) < 2 {
		return ""
	}
	return parts[len(parts)-1]
}

// Credentials are the platform login credentials for one caller.
// The secret can be taken exactly once; afterwards it is wiped.
type Credentials struct {
	Identity string
	secret   []byte
}

// NewCredentials returns credentials holding a copy of secret.
func NewCredentials(identity, secret string) *Credentials {
	return &Credentials{Identity: identity, secret: []byte(secret)}
}

// TakeSecret returns the secret and wipes it. The second return is false
// when the secret was already consumed or never set.
func (c *Credentials) TakeSecret() (string, bool) {
	if c == nil || len(c.secret) == 0 {
		return "", false
	}
	s := string(c.secret)
	for i := range c.secret {
		c.secret[i] = 0
	}
	c.secret = nil
	return s, true
}

// HasSecret reports whether the secret is still available.
func (c *Credentials) HasSecret() bool {
	return c != nil && len(c.secret) > 0
}
