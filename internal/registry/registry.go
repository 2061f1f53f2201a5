// Package registry tracks the active automation run of each caller. It rejects
// a second concurrent run for the same caller, bounds the number of browsers
// open at once, and tears each entry down after the run's terminal event.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/jonathan/easy-apply-agent/internal/types"
)

var (
	// ErrConflict is returned when the caller already has an active run.
	ErrConflict = errors.New("an automation run is already active for this caller")
	// ErrNoActiveRun is returned when the caller has no active run.
	ErrNoActiveRun = errors.New("no active automation run for this caller")
	// ErrClosed is returned by Start after Shutdown.
	ErrClosed = errors.New("registry is shut down")
)

// DefaultMaxBrowsers is the default number of runs allowed to hold a browser at once.
const DefaultMaxBrowsers = 2

// RunFunc executes one run. It must stop after the current job once stop is
// closed and should emit its own terminal event to sink.
type RunFunc func(ctx context.Context, stop <-chan struct{}, sink types.StatusSink) (*types.RunResult, error)

// Lifecycle observes run boundaries, e.g. to persist run rows.
type Lifecycle interface {
	RunStarted(ctx context.Context, h *Handle)
	RunFinished(ctx context.Context, h *Handle, result *types.RunResult, err error)
}

// Option configures a Registry.
type Option func(*Registry)

// WithLifecycle registers a run lifecycle observer.
func WithLifecycle(l Lifecycle) Option {
	return func(r *Registry) { r.lifecycle = l }
}

// WithClock overrides the clock used for StartedAt.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// Registry holds one entry per caller with an active run.
type Registry struct {
	mu     sync.Mutex
	active map[string]*Handle
	closed bool
	wg     sync.WaitGroup

	slots     *semaphore.Weighted
	lifecycle Lifecycle
	log       logrus.FieldLogger
	now       func() time.Time
}

// New returns a registry allowing at most maxBrowsers concurrent runs to hold a browser.
func New(maxBrowsers int64, log logrus.FieldLogger, opts ...Option) *Registry {
	if maxBrowsers <= 0 {
		maxBrowsers = DefaultMaxBrowsers
	}
	r := &Registry{
		active: make(map[string]*Handle),
		slots:  semaphore.NewWeighted(maxBrowsers),
		log:    log,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start registers a run for caller and executes fn on its own goroutine.
// ctx bounds the run's lifetime and should outlive the triggering request.
func (r *Registry) Start(ctx context.Context, caller string, fn RunFunc) (*Handle, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	if _, ok := r.active[caller]; ok {
		r.mu.Unlock()
		return nil, ErrConflict
	}
	h := newHandle(caller, r.now())
	r.active[caller] = h
	r.wg.Add(1)
	r.mu.Unlock()

	log := r.log.WithFields(logrus.Fields{"caller": caller, "run_id": h.ID})
	if r.lifecycle != nil {
		r.lifecycle.RunStarted(ctx, h)
	}
	log.Info("Automation run registered")

	go r.execute(ctx, h, fn, log)
	return h, nil
}

func (r *Registry) execute(ctx context.Context, h *Handle, fn RunFunc, log logrus.FieldLogger) {
	defer r.wg.Done()

	var (
		result *types.RunResult
		err    error
	)
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("automation run panicked: %v", p)
			log.WithField("panic", p).Error("Automation run panicked")
		}
		if !h.sawTerminal() {
			h.Emit(terminalFor(result, err, h.Stopping()))
		}
		if r.lifecycle != nil {
			r.lifecycle.RunFinished(context.WithoutCancel(ctx), h, result, err)
		}
		r.teardown(h)
		h.finish(result, err)
		entry := log.WithError(err)
		if n := h.Dropped(); n > 0 {
			entry = entry.WithField("dropped_events", n)
		}
		entry.Info("Automation run finished")
	}()

	if err = r.acquire(ctx, h); err != nil {
		if h.Stopping() {
			result, err = &types.RunResult{Jobs: []types.ApplicationRecord{}}, nil
		}
		return
	}
	defer r.slots.Release(1)

	result, err = fn(ctx, h.stop, h)
}

// acquire takes a browser slot, giving up when the run is stopped or ctx ends.
func (r *Registry) acquire(ctx context.Context, h *Handle) error {
	if r.slots.TryAcquire(1) {
		return nil
	}
	h.Emit(types.StatusEvent{Type: types.EventStatus, Message: "Waiting for a free browser slot..."})

	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-h.stop:
			cancel()
		case <-wctx.Done():
		}
	}()
	return r.slots.Acquire(wctx, 1)
}

// terminalFor builds the terminal event for a run that did not emit one itself.
func terminalFor(result *types.RunResult, err error, stopped bool) types.StatusEvent {
	if err != nil {
		return types.StatusEvent{Type: types.EventError, Message: "Automation error: " + err.Error()}
	}
	if result == nil {
		result = &types.RunResult{}
	}
	verb := "completed"
	if stopped {
		verb = "stopped"
	}
	summary := result.Summarize()
	return types.StatusEvent{
		Type:    types.EventComplete,
		Message: fmt.Sprintf("Automation %s: applied to %d jobs", verb, len(result.Jobs)),
		Results: &summary,
	}
}

func (r *Registry) teardown(h *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active[h.Caller] == h {
		delete(r.active, h.Caller)
	}
}

// Active returns the caller's active run.
func (r *Registry) Active(caller string) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.active[caller]
	return h, ok
}

// Stop requests a cooperative stop of the caller's active run.
func (r *Registry) Stop(caller string) (*Handle, error) {
	h, ok := r.Active(caller)
	if !ok {
		return nil, ErrNoActiveRun
	}
	h.Stop()
	r.log.WithFields(logrus.Fields{"caller": caller, "run_id": h.ID}).Info("Stop requested")
	return h, nil
}

// Len returns the number of active runs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

// Shutdown rejects new runs, stops every active run and waits for them to
// finish or for ctx to end.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	for _, h := range r.active {
		h.Stop()
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
