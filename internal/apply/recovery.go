package apply

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jonathan/easy-apply-agent/internal/browser"
	"github.com/jonathan/easy-apply-agent/internal/platform"
)

// Recovery clears interstitial popups.
type Recovery struct {
	s     browser.Session
	log   logrus.FieldLogger
	pause browser.Range
}

// NewRecovery returns popup recovery bound to s.
func NewRecovery(s browser.Session, pause browser.Range, log logrus.FieldLogger) *Recovery {
	return &Recovery{s: s, pause: pause, log: log}
}

// DismissIfPresent clicks the first visible, enabled dismiss control, trying
// known selectors first and then buttons labelled Dismiss, Not now or Close.
// Without a match it presses Escape. With protect set, controls inside the
// application modal are ignored and Escape is not sent, so an open form survives.
// It reports whether any action was taken; a missing popup is not an error.
func (r *Recovery) DismissIfPresent(ctx context.Context, protect bool) bool {
	scope := func(sel string) string {
		if protect {
			return platform.Outside(sel)
		}
		return sel
	}

	for _, sel := range platform.DismissSelectors {
		els, err := r.s.FindAll(ctx, scope(sel))
		if err != nil {
			continue
		}
		if r.clickFirst(ctx, els, sel) {
			return true
		}
	}

	buttons, err := r.s.FindAll(ctx, scope("button"))
	if err == nil {
		for _, label := range platform.DismissLabels {
			var matches []browser.Element
			for _, b := range buttons {
				if strings.TrimSpace(b.Text) == label {
					matches = append(matches, b)
				}
			}
			if r.clickFirst(ctx, matches, label) {
				return true
			}
		}
	}

	if protect {
		return false
	}
	if err := r.s.PressEscape(ctx); err != nil {
		r.log.WithError(err).Debug("Escape key failed")
		return false
	}
	_ = browser.Pause(ctx, r.pause)
	r.log.Debug("Pressed Escape to close popup")
	return true
}

func (r *Recovery) clickFirst(ctx context.Context, els []browser.Element, what string) bool {
	for _, e := range els {
		if !e.Clickable() {
			continue
		}
		if err := r.s.Click(ctx, e); err != nil {
			r.log.WithError(err).WithField("control", what).Debug("Dismiss click failed")
			continue
		}
		_ = browser.Pause(ctx, r.pause)
		r.log.WithField("control", what).Info("Closed popup")
		return true
	}
	return false
}
