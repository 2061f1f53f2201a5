// Package automation runs one end-to-end application session: launch the
// browser, authenticate, discover postings and apply until the limit is reached.
package automation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jonathan/easy-apply-agent/internal/apply"
	"github.com/jonathan/easy-apply-agent/internal/browser"
	"github.com/jonathan/easy-apply-agent/internal/login"
	"github.com/jonathan/easy-apply-agent/internal/resume"
	"github.com/jonathan/easy-apply-agent/internal/types"
)

// FatalError aborts a whole run. Reason is the message shown to the caller.
type FatalError struct {
	Reason string
	Err    error
}

func (e *FatalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err aborted a run.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// Establisher authenticates a browser session for a caller.
type Establisher interface {
	Establish(ctx context.Context, s browser.Session, caller string, creds *types.Credentials) (login.State, error)
}

// ResumeLoader makes the caller's resume available locally.
type ResumeLoader interface {
	Load(ctx context.Context, path string) (*resume.Resume, error)
}

// Finder discovers postings on an open session.
type Finder interface {
	Search(ctx context.Context, title, location string) error
	NextBatch(ctx context.Context, seen *types.SeenSet, remaining int) ([]types.JobPosting, error)
}

// Applier drives one posting through the application form.
type Applier interface {
	Run(ctx context.Context, job types.JobPosting, sink types.StatusSink) apply.Result
}

// HistoryWriter appends a run's records to the durable application history.
type HistoryWriter interface {
	AppendApplications(ctx context.Context, caller string, records []types.ApplicationRecord) error
}

// Deps are the collaborators of a run. History is optional.
type Deps struct {
	Launch  func(ctx context.Context) (browser.Session, error)
	Login   Establisher
	Resumes ResumeLoader
	Finder  func(s browser.Session) Finder
	Applier func(s browser.Session, corpus types.ResumeCorpus, profile *types.CandidateProfile) Applier
	History HistoryWriter
	// Between is the pause taken after each job.
	Between browser.Range
}

// Request describes one run. Closing Stop asks the run to finish after the current job.
type Request struct {
	Caller      string
	Search      types.RunRequest
	Profile     *types.CandidateProfile
	Credentials *types.Credentials
	Stop        <-chan struct{}
}

// Orchestrator executes runs. It holds no per-run state and may be shared.
type Orchestrator struct {
	deps Deps
	log  logrus.FieldLogger
}

// New returns an orchestrator over deps.
func New(deps Deps, log logrus.FieldLogger) *Orchestrator {
	return &Orchestrator{deps: deps, log: log}
}

// terminal guards the exactly-once terminal event of a run.
type terminal struct {
	sink types.StatusSink
	done bool
}

func (t *terminal) status(format string, args ...any) {
	t.sink.Emit(types.StatusEvent{Type: types.EventStatus, Message: fmt.Sprintf(format, args...)})
}

func (t *terminal) finish(ev types.StatusEvent) {
	if t.done {
		return
	}
	t.done = true
	t.sink.Emit(ev)
}

// Run executes req. It returns the records produced so far even when it fails;
// a *FatalError means the run was aborted before or during setup. Exactly one
// complete or error event is emitted to sink.
func (o *Orchestrator) Run(ctx context.Context, req Request, sink types.StatusSink) (*types.RunResult, error) {
	if sink == nil {
		sink = types.DiscardSink
	}
	t := &terminal{sink: sink}
	result := &types.RunResult{Jobs: []types.ApplicationRecord{}}
	log := o.log.WithField("caller", req.Caller)

	fail := func(err error) (*types.RunResult, error) {
		msg := "Automation error: " + err.Error()
		var fe *FatalError
		if errors.As(err, &fe) {
			msg = fe.Reason
		}
		log.WithError(err).Error("Automation failed")
		t.finish(types.StatusEvent{Type: types.EventError, Message: msg})
		return result, err
	}

	if err := req.Search.Validate(); err != nil {
		return fail(&FatalError{Reason: "Invalid run request", Err: err})
	}
	if req.Profile == nil {
		return fail(&FatalError{Reason: "Candidate profile not found"})
	}

	res, err := o.deps.Resumes.Load(ctx, req.Profile.ResumePath)
	if err != nil {
		if errors.Is(err, resume.ErrNotFound) {
			return fail(&FatalError{Reason: "Resume not found", Err: err})
		}
		return fail(&FatalError{Reason: "Failed to load resume", Err: err})
	}
	defer func() { _ = res.Close() }()

	// The upload field needs a local path; the stored profile may point at S3.
	profile := *req.Profile
	profile.ResumePath = res.Path

	t.status("Starting LinkedIn automation...")
	s, err := o.deps.Launch(ctx)
	if err != nil {
		return fail(&FatalError{Reason: "Failed to start browser", Err: err})
	}
	defer func() {
		if err := s.Close(); err != nil {
			log.WithError(err).Warn("Failed to close browser")
		}
	}()

	t.status("Logging in to LinkedIn...")
	state, err := o.deps.Login.Establish(ctx, s, req.Caller, req.Credentials)
	if err != nil || state != login.Authenticated {
		if login.IsChallenge(err) || state == login.SecurityChallenge {
			return fail(&FatalError{Reason: "Security verification required. Please log in manually once and retry", Err: err})
		}
		return fail(&FatalError{Reason: "Failed to log in to LinkedIn", Err: err})
	}

	t.status("Searching for %s jobs in %s", req.Search.Title, req.Search.Location)
	finder := o.deps.Finder(s)
	if err := finder.Search(ctx, req.Search.Title, req.Search.Location); err != nil {
		return fail(&FatalError{Reason: "Failed to search for jobs", Err: err})
	}

	applier := o.deps.Applier(s, res.Corpus, &profile)
	stopped, err := o.loop(ctx, req, finder, applier, result, t, log)

	o.appendHistory(ctx, req.Caller, result, log)

	if err != nil {
		return fail(err)
	}
	summary := result.Summarize()
	msg := fmt.Sprintf("Automation completed: applied to %d jobs", len(result.Jobs))
	if stopped {
		msg = fmt.Sprintf("Automation stopped: applied to %d jobs", len(result.Jobs))
	}
	log.WithField("applied", len(result.Jobs)).Info(msg)
	t.finish(types.StatusEvent{Type: types.EventComplete, Message: msg, Results: &summary})
	return result, nil
}

// loop applies to postings until the limit is reached, discovery is exhausted
// or a stop is requested. A batch with no unseen posting counts as exhausted. Stop and cancellation are only observed between jobs.
func (o *Orchestrator) loop(ctx context.Context, req Request, finder Finder, applier Applier, result *types.RunResult, t *terminal, log logrus.FieldLogger) (bool, error) {
	seen := types.NewSeenSet()
	limit := req.Search.Limit

	for len(result.Jobs) < limit {
		if stopRequested(req.Stop) {
			return true, nil
		}
		if err := ctx.Err(); err != nil {
			return false, err
		}

		batch, err := finder.NextBatch(ctx, seen, limit-len(result.Jobs))
		if err != nil {
			log.WithError(err).Warn("Job discovery failed, finishing with current results")
			if len(batch) == 0 {
				return false, nil
			}
		}
		if len(batch) == 0 {
			t.status("No more jobs found")
			return false, nil
		}

		fresh := 0
		for _, job := range batch {
			if len(result.Jobs) >= limit {
				break
			}
			if stopRequested(req.Stop) {
				return true, nil
			}
			if err := ctx.Err(); err != nil {
				return false, err
			}
			if !seen.Add(job.JobID) {
				continue
			}
			fresh++

			t.status("Applying to %s at %s", job.Title, job.Company)
			r := applier.Run(ctx, job, t.sink)
			jlog := log.WithFields(logrus.Fields{"job_id": job.JobID, "outcome": r.Outcome.String(), "pages": r.Pages})
			if r.Applied() {
				result.Jobs = append(result.Jobs, *r.Record)
				jlog.Info("Applied to job")
				t.status("Successfully applied to %s at %s (%d/%d)", job.Title, job.Company, len(result.Jobs), limit)
			} else {
				jlog.WithField("reason", r.Reason).Info("Skipped job")
				t.status("Skipped %s at %s: %s", job.Title, job.Company, r.Reason)
			}

			if err := browser.Pause(ctx, o.deps.Between); err != nil {
				return false, err
			}
		}
		if fresh == 0 {
			log.WithField("batch", len(batch)).Warn("Discovery returned only seen postings, finishing")
			t.status("No more jobs found")
			return false, nil
		}
	}
	return false, nil
}

func (o *Orchestrator) appendHistory(ctx context.Context, caller string, result *types.RunResult, log logrus.FieldLogger) {
	if o.deps.History == nil || len(result.Jobs) == 0 {
		return
	}
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := o.deps.History.AppendApplications(wctx, caller, result.Jobs); err != nil {
		log.WithError(err).Error("Failed to save application history")
	}
}

func stopRequested(stop <-chan struct{}) bool {
	if stop == nil {
		return false
	}
	select {
	case <-stop:
		return true
	default:
		return false
	}
}
