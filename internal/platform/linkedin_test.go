package platform

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchURL(t *testing.T) {
	raw := SearchURL("Go Developer", "New York, NY")
	u, err := url.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "www.linkedin.com", u.Host)
	assert.Equal(t, "/jobs/search/", u.Path)
	assert.Equal(t, "Go Developer", u.Query().Get("keywords"))
	assert.Equal(t, "New York, NY", u.Query().Get("location"))
}

func TestURLMarkers(t *testing.T) {
	tests := []struct {
		url       string
		feed      bool
		challenge bool
	}{
		{"https://www.linkedin.com/feed/", true, false},
		{"https://www.linkedin.com/checkpoint/lg/login-submit", false, true},
		{"https://www.linkedin.com/checkpoint/challenge/abc", false, true},
		{"https://www.linkedin.com/login?error=1", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.feed, IsFeed(tt.url))
			assert.Equal(t, tt.challenge, IsChallenge(tt.url))
		})
	}
}

func TestIsEasyApply(t *testing.T) {
	assert.True(t, IsEasyApply("Easy Apply"))
	assert.True(t, IsEasyApply("  EASY APPLY to Acme"))
	assert.False(t, IsEasyApply("Apply"))
}

func TestCardSelectorFor(t *testing.T) {
	assert.Equal(t,
		`.job-card-container[data-job-id="42"], .job-card-container[id="42"]`,
		CardSelectorFor("42"))
}

func TestOutside(t *testing.T) {
	assert.Equal(t,
		".artdeco-modal__dismiss:not(.jobs-easy-apply-modal .artdeco-modal__dismiss)",
		Outside(".artdeco-modal__dismiss"))
}
