//nolint:revive // types is a standard Go package name pattern
package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentials_TakeSecretOnce(t *testing.T) {
	c := NewCredentials("me@example.com", "hunter2")
	require.True(t, c.HasSecret())

	s, ok := c.TakeSecret()
	assert.True(t, ok)
	assert.Equal(t, "hunter2", s)
	assert.False(t, c.HasSecret())

	s, ok = c.TakeSecret()
	assert.False(t, ok)
	assert.Empty(t, s)
}

func TestCredentials_Nil(t *testing.T) {
	var c *Credentials
	_, ok := c.TakeSecret()
	assert.False(t, ok)
}

func TestResumeCorpus_Failed(t *testing.T) {
	assert.True(t, ResumeCorpus("").Failed())
	assert.True(t, ResumeCorpus(ExtractionFailed).Failed())
	assert.False(t, ResumeCorpus("Go engineer, 5 years").Failed())
}

func TestCandidateProfile_NameParts(t *testing.T) {
	p := CandidateProfile{Name: "Ada  King Lovelace"}
	assert.Equal(t, "Ada", p.FirstName())
	assert.Equal(t, "Lovelace", p.LastName())

	single := CandidateProfile{Name: "Ada"}
	assert.Equal(t, "", single.LastName())
}

func TestSessionToken_Validate(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	future := float64(now.Add(time.Hour).Unix())
	past := float64(now.Add(-time.Hour).Unix())

	tests := []struct {
		name    string
		token   *SessionToken
		wantErr bool
	}{
		{"nil", nil, true},
		{"wrong version", &SessionToken{Version: 99, Cookies: []Cookie{{Name: "li_at", Expires: future}}}, true},
		{"no cookies", NewSessionToken(nil, now), true},
		{"all expired", NewSessionToken([]Cookie{{Name: "li_at", Expires: past}}, now), true},
		{"unnamed cookie", NewSessionToken([]Cookie{{Value: "x"}}, now), true},
		{"session cookie", NewSessionToken([]Cookie{{Name: "li_at", Value: "x"}}, now), false},
		{"live cookie", NewSessionToken([]Cookie{{Name: "li_at", Expires: future}}, now), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.token.Validate(now)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRunRequest_Validate(t *testing.T) {
	assert.NoError(t, (&RunRequest{Title: "Go", Location: "Remote", Limit: 3}).Validate())
	assert.Error(t, (&RunRequest{Title: "Go", Location: "Remote", Limit: 0}).Validate())
	assert.Error(t, (&RunRequest{Title: "Go", Location: "Remote", Limit: 101}).Validate())
	assert.Error(t, (&RunRequest{Location: "Remote", Limit: 1}).Validate())
}
