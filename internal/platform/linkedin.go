// Package platform holds the URLs, selectors and button labels of the job platform the agent drives.
package platform

import (
	"fmt"
	"net/url"
	"strings"
)

// Base URLs.
const (
	HomeURL   = "https://www.linkedin.com/"
	LoginURL  = "https://www.linkedin.com/login"
	FeedURL   = "https://www.linkedin.com/feed/"
	searchURL = "https://www.linkedin.com/jobs/search/"
)

// CookieDomain is the domain session cookies are scoped to.
const CookieDomain = ".linkedin.com"

// Login form selectors.
const (
	UsernameInput = "#username"
	PasswordInput = "#password"
	LoginSubmit   = "button[type='submit']"
)

// Job search selectors.
const (
	JobCard         = ".job-card-container"
	JobCardTitle    = ".job-card-list__title"
	JobCardCompany  = ".job-card-container__company-name"
	ShowMoreButton  = ".infinite-scroller__show-more-button"
	ApplyButton     = ".jobs-apply-button"
	EasyApplyModal  = ".jobs-easy-apply-modal"
	EasyApplyMarker = "easy apply"
)

// FormButtons scopes button lookups to the application modal.
const FormButtons = ".jobs-easy-apply-modal button"

// Form snapshot roots, most specific first.
var FormRoots = []string{
	".jobs-easy-apply-modal",
	"[role='dialog']",
	"body",
}

// Button labels, matched as lowercase substrings of the button text.
var (
	SubmitLabels = []string{"submit application", "submit"}
	NextLabels   = []string{"review", "next", "continue"}
)

// DismissSelectors are tried in order when clearing interstitial popups.
var DismissSelectors = []string{
	".artdeco-modal__dismiss",
	"button.modal-close-btn",
}

// DismissLabels are exact texts of buttons that close a popup.
var DismissLabels = []string{"Dismiss", "Not now", "Close"}

// DiscardLabels confirm abandoning a half-filled application.
var DiscardLabels = []string{"Discard"}

// Outside returns a selector matching sel only outside the application modal.
func Outside(sel string) string {
	return fmt.Sprintf("%s:not(%s %s)", sel, EasyApplyModal, sel)
}

// Landing markers checked against the current URL after a login attempt.
const (
	FeedMarker = "feed"
)

// ChallengeMarkers indicate the platform interposed a verification step.
var ChallengeMarkers = []string{"checkpoint", "challenge"}

// SearchURL builds the keyword and location search URL.
func SearchURL(title, location string) string {
	q := url.Values{}
	q.Set("keywords", title)
	q.Set("location", location)
	return searchURL + "?" + q.Encode()
}

// IsFeed reports whether u is the authenticated landing surface.
func IsFeed(u string) bool {
	return strings.Contains(u, FeedMarker)
}

// IsChallenge reports whether u is a security verification page.
func IsChallenge(u string) bool {
	for _, m := range ChallengeMarkers {
		if strings.Contains(u, m) {
			return true
		}
	}
	return false
}

// IsEasyApply reports whether an apply button label denotes the inline flow.
func IsEasyApply(label string) bool {
	return strings.Contains(strings.ToLower(label), EasyApplyMarker)
}

// CardSelectorFor addresses the job card carrying jobID, by job id or element id.
func CardSelectorFor(jobID string) string {
	return fmt.Sprintf(`%s[data-job-id=%q], %s[id=%q]`, JobCard, jobID, JobCard, jobID)
}
