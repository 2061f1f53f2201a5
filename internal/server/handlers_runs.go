package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jonathan/easy-apply-agent/internal/automation"
	"github.com/jonathan/easy-apply-agent/internal/registry"
	"github.com/jonathan/easy-apply-agent/internal/server/middleware"
	"github.com/jonathan/easy-apply-agent/internal/types"
)

// StartRunResponse is returned when a run is accepted.
type StartRunResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

// ActiveRunResponse describes the caller's active run.
type ActiveRunResponse struct {
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
	Stopping  bool      `json:"stopping"`
}

func activeRun(h *registry.Handle) ActiveRunResponse {
	return ActiveRunResponse{RunID: h.ID.String(), StartedAt: h.StartedAt, Stopping: h.Stopping()}
}

// handleStartRun loads the caller's profile and starts an automation run.
func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	caller, err := middleware.GetCaller(r)
	if err != nil {
		s.errorFor(w, err)
		return
	}

	var req types.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorFor(w, &ErrValidation{Field: "body", Message: "invalid JSON"})
		return
	}
	if err := req.Validate(); err != nil {
		s.errorFor(w, validationError(err))
		return
	}

	if _, ok := s.deps.Registry.Active(caller); ok {
		s.errorFor(w, registry.ErrConflict)
		return
	}

	profile, creds, err := s.deps.Store.LoadProfile(r.Context(), caller, s.deps.Sealer)
	if err != nil {
		s.errorFor(w, err)
		return
	}

	h, err := s.deps.Registry.Start(s.deps.RunContext, caller, func(ctx context.Context, stop <-chan struct{}, sink types.StatusSink) (*types.RunResult, error) {
		return s.deps.Runner.Run(ctx, automation.Request{
			Caller:      caller,
			Search:      req,
			Profile:     profile,
			Credentials: creds,
			Stop:        stop,
		}, sink)
	})
	if err != nil {
		s.errorFor(w, err)
		return
	}

	s.log.WithFields(logrus.Fields{"caller": caller, "run_id": h.ID, "title": req.Title}).Info("Run started")
	s.jsonResponse(w, http.StatusAccepted, StartRunResponse{RunID: h.ID.String(), Status: "started"})
}

// handleStopRun asks the caller's active run to stop after the current job.
func (s *Server) handleStopRun(w http.ResponseWriter, r *http.Request) {
	caller, err := middleware.GetCaller(r)
	if err != nil {
		s.errorFor(w, err)
		return
	}
	h, err := s.deps.Registry.Stop(caller)
	if err != nil {
		s.errorFor(w, err)
		return
	}
	s.jsonResponse(w, http.StatusAccepted, StartRunResponse{RunID: h.ID.String(), Status: "stopping"})
}

func (s *Server) handleActiveRun(w http.ResponseWriter, r *http.Request) {
	caller, err := middleware.GetCaller(r)
	if err != nil {
		s.errorFor(w, err)
		return
	}
	h, ok := s.deps.Registry.Active(caller)
	if !ok {
		s.errorFor(w, registry.ErrNoActiveRun)
		return
	}
	s.jsonResponse(w, http.StatusOK, activeRun(h))
}

// handleRunEvents streams the active run's status events until the terminal
// event, the end of the run, or client disconnect.
func (s *Server) handleRunEvents(w http.ResponseWriter, r *http.Request) {
	caller, err := middleware.GetCaller(r)
	if err != nil {
		s.errorFor(w, err)
		return
	}
	h, ok := s.deps.Registry.Active(caller)
	if !ok {
		s.errorFor(w, registry.ErrNoActiveRun)
		return
	}

	events, cancel := h.Subscribe(registry.DefaultSubscriberBuffer)
	defer cancel()

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := sse.WriteEvent("run", activeRun(h)); err != nil {
		return
	}

	keepAlive := time.NewTicker(s.cfg.KeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case ev, open := <-events:
			if !open {
				return
			}
			if err := sse.WriteStatus(ev); err != nil {
				return
			}
			if ev.Terminal() {
				return
			}
		case <-h.Done():
			for ev := range events {
				if err := sse.WriteStatus(ev); err != nil || ev.Terminal() {
					return
				}
			}
			return
		case <-keepAlive.C:
			if err := sse.WriteComment("keep-alive"); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// listLimit parses the limit query parameter.
func listLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxListLimit {
		return 0, &ErrValidation{Field: "limit", Message: "must be between 1 and " + strconv.Itoa(maxListLimit)}
	}
	return n, nil
}

func (s *Server) handleListApplications(w http.ResponseWriter, r *http.Request) {
	caller, err := middleware.GetCaller(r)
	if err != nil {
		s.errorFor(w, err)
		return
	}
	limit, err := listLimit(r)
	if err != nil {
		s.errorFor(w, err)
		return
	}
	apps, err := s.deps.Store.ListApplications(r.Context(), caller, limit)
	if err != nil {
		s.errorFor(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"applications": apps, "count": len(apps)})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	caller, err := middleware.GetCaller(r)
	if err != nil {
		s.errorFor(w, err)
		return
	}
	limit, err := listLimit(r)
	if err != nil {
		s.errorFor(w, err)
		return
	}
	runs, err := s.deps.Store.ListRuns(r.Context(), caller, limit)
	if err != nil {
		s.errorFor(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"runs": runs, "count": len(runs)})
}
