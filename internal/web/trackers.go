package web

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hpungsan/revise/internal/errors"
	"github.com/hpungsan/revise/internal/tracker"
)

type startTrackerRequest struct {
	Platform string `json:"platform,omitempty"`
	URL      string `json:"url,omitempty"`
	// SessionID resumes an existing session
	SessionID string `json:"sessionId,omitempty"`
	// CheckpointIntervalMs overrides the stored interval
	CheckpointIntervalMs int64 `json:"checkpointIntervalMs,omitempty"`
}

type textRequest struct {
	Text string `json:"text"`
}

type trackerCheckpointRequest struct {
	Text        string `json:"text,omitempty"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

type switchRequest struct {
	SessionID string `json:"sessionId"`
}

type restoreRequest struct {
	VersionID string `json:"versionId"`
}

type trackerBranchRequest struct {
	VersionID string `json:"versionId"`
	SeedText  string `json:"seedText,omitempty"`
}

// registerTrackerRoutes mounts /trackers. A tracker is the server-side
// observer of one page's input box.
func (h *Handlers) registerTrackerRoutes(r chi.Router) {
	r.Route("/trackers", func(r chi.Router) {
		r.Post("/", h.handleStartTracker)
		r.Get("/", h.handleListTrackers)
		r.Route("/{trackerID}", func(r chi.Router) {
			r.Get("/", h.withTracker(h.handleTrackerState))
			r.Delete("/", h.handleStopTracker)
			r.Post("/observe", h.withTracker(h.handleObserve))
			r.Post("/submit", h.withTracker(h.handleSubmit))
			r.Post("/response", h.withTracker(h.handleResponse))
			r.Post("/checkpoint", h.withTracker(h.handleTrackerCheckpoint))
			r.Post("/pause", h.withTracker(h.handlePause))
			r.Post("/resume", h.withTracker(h.handleResume))
			r.Post("/switch", h.withTracker(h.handleSwitch))
			r.Post("/restore", h.withTracker(h.handleRestore))
			r.Post("/branch", h.withTracker(h.handleTrackerBranch))
			r.Get("/history", h.withTracker(h.handleTrackerHistory))
			r.Get("/stats", h.withTracker(h.handleTrackerStats))
		})
	})
}

type trackerHandler func(w http.ResponseWriter, r *http.Request, t *tracker.Tracker)

func (h *Handlers) withTracker(next trackerHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "trackerID")
		t, ok := h.trackers.Get(id)
		if !ok {
			renderFailure(w, errors.NewNotFound("tracker", id))
			return
		}
		next(w, r, t)
	}
}

func (h *Handlers) handleStartTracker(w http.ResponseWriter, r *http.Request) {
	var req startTrackerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.CheckpointIntervalMs < 0 {
		renderFailure(w, errors.NewInvalidRequest("checkpointIntervalMs must not be negative"))
		return
	}

	t, err := h.trackers.Start(tracker.Options{
		Platform:           req.Platform,
		URL:                req.URL,
		SessionID:          req.SessionID,
		CheckpointInterval: time.Duration(req.CheckpointIntervalMs) * time.Millisecond,
	})
	if err != nil {
		renderFailure(w, err)
		return
	}
	renderJSON(w, http.StatusCreated, map[string]any{"success": true, "data": t.State()})
}

func (h *Handlers) handleListTrackers(w http.ResponseWriter, r *http.Request) {
	renderSuccess(w, h.trackers.List())
}

func (h *Handlers) handleStopTracker(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "trackerID")
	if !h.trackers.Remove(id) {
		renderFailure(w, errors.NewNotFound("tracker", id))
		return
	}
	renderJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handlers) handleTrackerState(w http.ResponseWriter, r *http.Request, t *tracker.Tracker) {
	renderSuccess(w, t.State())
}

func (h *Handlers) handleObserve(w http.ResponseWriter, r *http.Request, t *tracker.Tracker) {
	var req textRequest
	if !decodeBody(w, r, &req) {
		return
	}
	renderResult(w)(t.ObserveText(r.Context(), req.Text))
}

func (h *Handlers) handleSubmit(w http.ResponseWriter, r *http.Request, t *tracker.Tracker) {
	var req textRequest
	if !decodeBody(w, r, &req) {
		return
	}
	renderResult(w)(t.Submit(r.Context(), req.Text))
}

func (h *Handlers) handleResponse(w http.ResponseWriter, r *http.Request, t *tracker.Tracker) {
	var req textRequest
	if !decodeBody(w, r, &req) {
		return
	}
	renderResult(w)(t.CaptureResponse(r.Context(), req.Text))
}

func (h *Handlers) handleTrackerCheckpoint(w http.ResponseWriter, r *http.Request, t *tracker.Tracker) {
	var req trackerCheckpointRequest
	if !decodeBody(w, r, &req) {
		return
	}
	renderResult(w)(t.Checkpoint(r.Context(), req.Text, req.Name, req.Description))
}

func (h *Handlers) handlePause(w http.ResponseWriter, r *http.Request, t *tracker.Tracker) {
	t.Stop()
	renderSuccess(w, t.State())
}

func (h *Handlers) handleResume(w http.ResponseWriter, r *http.Request, t *tracker.Tracker) {
	t.Start()
	renderSuccess(w, t.State())
}

func (h *Handlers) handleSwitch(w http.ResponseWriter, r *http.Request, t *tracker.Tracker) {
	var req switchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := t.SwitchSession(req.SessionID); err != nil {
		renderFailure(w, err)
		return
	}
	renderSuccess(w, t.State())
}

func (h *Handlers) handleRestore(w http.ResponseWriter, r *http.Request, t *tracker.Tracker) {
	var req restoreRequest
	if !decodeBody(w, r, &req) {
		return
	}
	v, err := t.Restore(r.Context(), req.VersionID)
	if err != nil {
		renderFailure(w, err)
		return
	}
	renderSuccess(w, v)
}

func (h *Handlers) handleTrackerBranch(w http.ResponseWriter, r *http.Request, t *tracker.Tracker) {
	var req trackerBranchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	out, err := t.Branch(r.Context(), req.VersionID, req.SeedText)
	if err != nil {
		renderFailure(w, err)
		return
	}
	renderSuccess(w, out)
}

func (h *Handlers) handleTrackerHistory(w http.ResponseWriter, r *http.Request, t *tracker.Tracker) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		renderFailure(w, err)
		return
	}
	out, err := t.History(r.Context(), limit)
	if err != nil {
		renderFailure(w, err)
		return
	}
	renderSuccess(w, out)
}

func (h *Handlers) handleTrackerStats(w http.ResponseWriter, r *http.Request, t *tracker.Tracker) {
	out, err := t.Stats(r.Context())
	if err != nil {
		renderFailure(w, err)
		return
	}
	renderSuccess(w, out)
}

// renderResult adapts a tracker call's (result, error) pair.
func renderResult(w http.ResponseWriter) func(*tracker.Result, error) {
	return func(res *tracker.Result, err error) {
		if err != nil {
			renderFailure(w, err)
			return
		}
		renderSuccess(w, res)
	}
}

// decodeBody reads a JSON request body into dst. An empty body leaves dst
// zeroed.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil {
		return true
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageBytes))
	if err := dec.Decode(dst); err != nil && !stderrors.Is(err, io.EOF) {
		renderFailure(w, errors.NewInvalidRequest("invalid JSON: "+err.Error()))
		return false
	}
	return true
}
