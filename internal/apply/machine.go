// Package apply drives one job posting through the inline application flow:
// detect the affordance, fill each form page, advance, and submit.
package apply

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jonathan/easy-apply-agent/internal/browser"
	"github.com/jonathan/easy-apply-agent/internal/classify"
	"github.com/jonathan/easy-apply-agent/internal/platform"
	"github.com/jonathan/easy-apply-agent/internal/types"
)

// DefaultMaxFormPages caps the pages walked before a form is abandoned.
const DefaultMaxFormPages = 12

// Outcome is the terminal state of one job.
type Outcome int

const (
	// Submitted means a submit control was clicked.
	Submitted Outcome = iota
	// GaveUp means no submit or next control was found and the form was left as is.
	// It is counted as a best-effort submission.
	GaveUp
	// Skipped means the job was abandoned; the run continues.
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Submitted:
		return "submitted"
	case GaveUp:
		return "gave up"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Result is the outcome of Run. Record is set for Submitted and GaveUp.
type Result struct {
	Outcome Outcome
	Record  *types.ApplicationRecord
	Reason  string
	Pages   int
}

// Applied reports whether the result produced an application record.
func (r Result) Applied() bool {
	return r.Record != nil
}

// Answerer resolves a question to an answer; it must never return "".
type Answerer interface {
	Answer(ctx context.Context, question string, options []string, corpus types.ResumeCorpus) string
}

// Config bounds the per-job waits.
type Config struct {
	AffordanceTimeout time.Duration
	CardTimeout       time.Duration
	MaxFormPages      int
	Pacing            browser.Pacing
}

// DefaultConfig returns live-run settings.
func DefaultConfig() Config {
	return Config{
		AffordanceTimeout: 5 * time.Second,
		CardTimeout:       5 * time.Second,
		MaxFormPages:      DefaultMaxFormPages,
		Pacing:            browser.DefaultPacing(),
	}
}

// Machine applies to jobs on one session. It is not safe for concurrent use.
type Machine struct {
	s        browser.Session
	oracle   Answerer
	corpus   types.ResumeCorpus
	profile  *types.CandidateProfile
	recovery *Recovery
	cfg      Config
	log      logrus.FieldLogger
	now      func() time.Time
}

// NewMachine wires a state machine for one run.
func NewMachine(s browser.Session, oracle Answerer, corpus types.ResumeCorpus, profile *types.CandidateProfile, cfg Config, log logrus.FieldLogger) *Machine {
	if cfg.MaxFormPages <= 0 {
		cfg.MaxFormPages = DefaultMaxFormPages
	}
	return &Machine{
		s:        s,
		oracle:   oracle,
		corpus:   corpus,
		profile:  profile,
		recovery: NewRecovery(s, cfg.Pacing.Field, log),
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

func skipped(reason string, pages int) Result {
	return Result{Outcome: Skipped, Reason: reason, Pages: pages}
}

// Run applies to job. It never returns an error: every failure becomes a Skipped result.
func (m *Machine) Run(ctx context.Context, job types.JobPosting, sink types.StatusSink) Result {
	log := m.log.WithField("job_id", job.JobID)

	// Opened
	card := m.s.FindOne(ctx, platform.CardSelectorFor(job.JobID), m.cfg.CardTimeout)
	if !card.OK() {
		return skipped("job card "+card.Outcome.String(), 0)
	}
	if err := m.s.Click(ctx, card.Element); err != nil {
		return skipped(fmt.Sprintf("could not open job: %v", err), 0)
	}
	if err := browser.Pause(ctx, m.cfg.Pacing.Navigation); err != nil {
		return skipped("interrupted", 0)
	}

	// DetectingAffordance
	btn := m.s.WaitUntilClickable(ctx, platform.ApplyButton, m.cfg.AffordanceTimeout)
	if !btn.OK() {
		log.Info("No Easy Apply button found")
		return skipped("no easy apply button ("+btn.Outcome.String()+")", 0)
	}
	if !platform.IsEasyApply(btn.Element.Text) {
		log.Info("Not an Easy Apply job")
		return skipped("not an easy apply job", 0)
	}
	if err := m.s.Click(ctx, btn.Element); err != nil {
		return skipped(fmt.Sprintf("could not open application: %v", err), 0)
	}
	if err := browser.Pause(ctx, m.cfg.Pacing.Navigation); err != nil {
		return skipped("interrupted", 0)
	}

	// FormPage(n)
	for page := 1; ; page++ {
		if page > m.cfg.MaxFormPages {
			m.abandon(ctx)
			return skipped(fmt.Sprintf("form did not reach submit within %d pages", m.cfg.MaxFormPages), page-1)
		}
		sink.Emit(types.StatusEvent{
			Type:    types.EventStatus,
			Message: fmt.Sprintf("Filling out application form (page %d) for %s", page, job.Title),
		})
		plog := log.WithField("page", page)

		if err := m.fillPage(ctx, plog); err != nil {
			plog.WithError(err).Warn("Field error, skipping job")
			m.abandon(ctx)
			return skipped(fmt.Sprintf("field error: %v", err), page)
		}

		switch {
		case m.clickButton(ctx, platform.SubmitLabels):
			_ = browser.Pause(ctx, m.cfg.Pacing.Navigation)
			m.recovery.DismissIfPresent(ctx, false)
			plog.Info("Application submitted")
			return m.applied(Submitted, job, page)
		case m.clickButton(ctx, platform.NextLabels):
			_ = browser.Pause(ctx, m.cfg.Pacing.Navigation)
			m.recovery.DismissIfPresent(ctx, true)
		default:
			plog.Warn("No next or submit button found, treating as submitted")
			m.recovery.DismissIfPresent(ctx, false)
			return m.applied(GaveUp, job, page)
		}
		if ctx.Err() != nil {
			return skipped("interrupted", page)
		}
	}
}

func (m *Machine) applied(o Outcome, job types.JobPosting, pages int) Result {
	rec := types.NewApplicationRecord(job, m.now())
	return Result{Outcome: o, Record: &rec, Pages: pages}
}

// fillPage answers every classified field on the current page. Stale elements
// are skipped; any other field error aborts the page.
func (m *Machine) fillPage(ctx context.Context, log logrus.FieldLogger) error {
	fields, err := classify.VisibleFields(ctx, m.s)
	if err != nil {
		return err
	}
	for _, f := range fields {
		err := m.fill(ctx, f, log)
		if errors.Is(err, browser.ErrStale) {
			log.WithField("field", f.Identifier).Debug("Field went stale, moving on")
			continue
		}
		if err != nil {
			return fmt.Errorf("%s field %q: %w", f.Kind, f.Identifier, err)
		}
	}
	return nil
}

func (m *Machine) fill(ctx context.Context, f classify.Field, log logrus.FieldLogger) error {
	switch f.Kind {
	case types.FieldText:
		answer, ok := ProfileAnswer(m.profile, f.Identifier)
		if !ok {
			answer = m.oracle.Answer(ctx, f.Identifier, nil, m.corpus)
		}
		log.WithFields(logrus.Fields{"field": f.Identifier, "answer": answer}).Info("Filling text field")
		if err := m.focus(ctx, f.Target); err != nil {
			return err
		}
		return m.s.Type(ctx, f.Target, answer)

	case types.FieldRadio, types.FieldDropdown:
		answer := m.oracle.Answer(ctx, f.Identifier, f.Options, m.corpus)
		idx := classify.MatchOption(f.Options, answer)
		entry := log.WithFields(logrus.Fields{"field": f.Identifier, "answer": answer, "choice": f.Options[idx]})
		if !classify.Matched(f.Options, answer) {
			entry.Warn("Answer matched no option, choosing the first one")
		} else {
			entry.Info("Choosing option")
		}
		if f.Kind == types.FieldDropdown {
			if err := m.focus(ctx, f.Target); err != nil {
				return err
			}
			return m.s.Select(ctx, f.Target, f.Options[idx])
		}
		choice, ok := f.Choice(idx)
		if !ok {
			if choice, ok = f.Choice(0); !ok {
				return nil
			}
		}
		if err := m.focus(ctx, choice); err != nil {
			return err
		}
		return m.s.Click(ctx, choice)

	case types.FieldFile:
		if m.profile == nil || m.profile.ResumePath == "" {
			return nil
		}
		log.WithField("path", m.profile.ResumePath).Info("Uploading resume")
		return m.s.SetFiles(ctx, f.Target, m.profile.ResumePath)
	}
	return nil
}

func (m *Machine) focus(ctx context.Context, el browser.Element) error {
	if err := m.s.ScrollIntoView(ctx, el); err != nil {
		return err
	}
	return browser.Pause(ctx, m.cfg.Pacing.Field)
}

// clickButton clicks the first clickable form button whose text contains one of labels.
func (m *Machine) clickButton(ctx context.Context, labels []string) bool {
	buttons, err := m.s.FindAll(ctx, platform.FormButtons)
	if err != nil || len(buttons) == 0 {
		buttons, err = m.s.FindAll(ctx, "button")
		if err != nil {
			return false
		}
	}
	for _, b := range buttons {
		if !b.Clickable() || !containsAny(b.LabelText(), labels) {
			continue
		}
		if err := m.s.ScrollIntoView(ctx, b); err != nil {
			continue
		}
		if err := m.s.Click(ctx, b); err != nil {
			m.log.WithError(err).WithField("button", b.Text).Debug("Button click failed")
			continue
		}
		m.log.WithField("button", b.LabelText()).Info("Clicked button")
		return true
	}
	return false
}

// abandon closes a half-filled application so the next job card is reachable.
func (m *Machine) abandon(ctx context.Context) {
	m.recovery.DismissIfPresent(ctx, false)
	buttons, err := m.s.FindAll(ctx, "button")
	if err != nil {
		return
	}
	for _, b := range buttons {
		if b.Clickable() && containsAny(b.LabelText(), platform.DiscardLabels) {
			_ = m.s.Click(ctx, b)
			return
		}
	}
}

func containsAny(text string, labels []string) bool {
	for _, l := range labels {
		if strings.Contains(text, strings.ToLower(l)) {
			return true
		}
	}
	return false
}
