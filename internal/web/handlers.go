package web

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/hpungsan/revise/internal/classify"
	"github.com/hpungsan/revise/internal/config"
	"github.com/hpungsan/revise/internal/db"
	"github.com/hpungsan/revise/internal/errors"
	"github.com/hpungsan/revise/internal/events"
	"github.com/hpungsan/revise/internal/ops"
	"github.com/hpungsan/revise/internal/platform"
	"github.com/hpungsan/revise/internal/prompt"
	"github.com/hpungsan/revise/internal/tracker"
)

// maxMessageBytes bounds a POST /api/messages body. Imports travel in it.
const maxMessageBytes = 32 << 20

// Message kinds accepted by POST /api/messages.
const (
	MsgSaveVersion      = "SAVE_PROMPT_VERSION"
	MsgGetHistory       = "GET_PROMPT_HISTORY"
	MsgCreateCheckpoint = "CREATE_CHECKPOINT"
	MsgExportData       = "EXPORT_DATA"
	MsgImportData       = "IMPORT_DATA"
	MsgCreateBranch     = "CREATE_BRANCH"
	MsgSearchPrompts    = "SEARCH_PROMPTS"
	MsgGetStats         = "GET_STATS"
	MsgClearData        = "CLEAR_DATA"
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	store    db.Backend
	cfg      *config.Config
	bus      *events.Bus
	trackers *tracker.Registry
	logger   *log.Logger
	renderer *Renderer
	upgrader websocket.Upgrader
}

// Close stops every tracker and ends all event streams.
func (h *Handlers) Close() {
	h.trackers.Close()
	h.bus.Close()
}

// Message is the request envelope of the message channel.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type saveVersionData struct {
	SessionID    string  `json:"sessionId"`
	Prompt       string  `json:"prompt"`
	Response     *string `json:"response,omitempty"`
	Platform     string  `json:"platform,omitempty"`
	IsCheckpoint bool    `json:"isCheckpoint,omitempty"`
	ChangeType   string  `json:"changeType,omitempty"`
}

type historyData struct {
	SessionID string `json:"sessionId,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

type checkpointData struct {
	VersionID   string  `json:"versionId,omitempty"`
	SessionID   string  `json:"sessionId,omitempty"`
	Prompt      string  `json:"prompt,omitempty"`
	Response    *string `json:"response,omitempty"`
	Platform    string  `json:"platform,omitempty"`
	Name        string  `json:"name,omitempty"`
	Description string  `json:"description,omitempty"`
}

type exportData struct {
	SessionID string `json:"sessionId,omitempty"`
}

type branchData struct {
	VersionID string `json:"versionId"`
	SeedText  string `json:"seedText,omitempty"`
}

type searchData struct {
	Query            string `json:"query"`
	SessionID        string `json:"sessionId,omitempty"`
	IncludeResponses bool   `json:"includeResponses,omitempty"`
	Limit            int    `json:"limit,omitempty"`
}

type statsData struct {
	SessionID string `json:"sessionId,omitempty"`
}

// HandleHealth reports liveness.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleMessage dispatches one {type, data} message and answers exactly once.
func (h *Handlers) HandleMessage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxMessageBytes+1))
	if err != nil {
		renderFailure(w, errors.NewInvalidRequest("failed to read request body"))
		return
	}
	if len(body) > maxMessageBytes {
		renderFailure(w, errors.NewInvalidRequest("request body too large"))
		return
	}

	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		renderFailure(w, errors.NewInvalidRequest("invalid JSON: "+err.Error()))
		return
	}

	ctx := r.Context()
	switch msg.Type {
	case MsgSaveVersion:
		var in saveVersionData
		if !decodeData(w, msg.Data, &in) {
			return
		}
		out, err := ops.AppendVersion(ctx, h.store, ops.AppendInput{
			SessionID:    in.SessionID,
			Prompt:       in.Prompt,
			Response:     in.Response,
			Platform:     h.cfg.Platform(in.Platform),
			IsCheckpoint: in.IsCheckpoint,
			ChangeType:   classify.ChangeType(in.ChangeType),
		})
		if err != nil {
			renderFailure(w, err)
			return
		}
		kind := events.VersionSaved
		if in.IsCheckpoint {
			kind = events.CheckpointCreated
		}
		h.publish(kind, out.SessionID, out.VersionID, map[string]any{"changeType": out.ChangeType})
		renderJSON(w, http.StatusOK, map[string]any{
			"success":        true,
			"versionId":      out.VersionID,
			"sessionId":      out.SessionID,
			"changeType":     out.ChangeType,
			"sessionCreated": out.SessionCreated,
		})

	case MsgGetHistory:
		var in historyData
		if !decodeData(w, msg.Data, &in) {
			return
		}
		out, err := ops.GetHistory(ctx, h.store, ops.HistoryInput{SessionID: in.SessionID, Limit: h.cfg.Limit(in.Limit)})
		if err != nil {
			renderFailure(w, err)
			return
		}
		renderSuccess(w, out)

	case MsgCreateCheckpoint:
		var in checkpointData
		if !decodeData(w, msg.Data, &in) {
			return
		}
		h.createCheckpoint(w, r, in)

	case MsgExportData:
		var in exportData
		if !decodeData(w, msg.Data, &in) {
			return
		}
		var env any
		if strings.TrimSpace(in.SessionID) != "" {
			env, err = ops.ExportSession(ctx, h.store, in.SessionID)
		} else {
			env, err = ops.ExportData(ctx, h.store)
		}
		if err != nil {
			renderFailure(w, err)
			return
		}
		renderSuccess(w, env)

	case MsgImportData:
		if len(msg.Data) == 0 {
			renderFailure(w, errors.NewInvalidRequest("data is required"))
			return
		}
		out, err := ops.ImportData(ctx, h.store, msg.Data)
		if err != nil {
			renderFailure(w, err)
			return
		}
		h.publish(events.DataImported, "", "", map[string]any{
			"sessionsAdded": out.SessionsAdded,
			"versionsAdded": out.VersionsAdded,
		})
		renderSuccess(w, out)

	case MsgCreateBranch:
		var in branchData
		if !decodeData(w, msg.Data, &in) {
			return
		}
		out, err := ops.CreateBranch(ctx, h.store, ops.BranchInput{VersionID: in.VersionID, SeedText: in.SeedText})
		if err != nil {
			renderFailure(w, err)
			return
		}
		h.publish(events.BranchCreated, out.BranchSessionID, out.VersionID, map[string]any{
			"originalSessionId": out.OriginalSessionID,
			"baseVersionId":     out.BaseVersion.ID,
		})
		renderSuccess(w, out)

	case MsgSearchPrompts:
		var in searchData
		if !decodeData(w, msg.Data, &in) {
			return
		}
		out, err := ops.Search(ctx, h.store, ops.SearchInput{
			Query:            in.Query,
			SessionID:        in.SessionID,
			IncludeResponses: in.IncludeResponses,
			Limit:            in.Limit,
		})
		if err != nil {
			renderFailure(w, err)
			return
		}
		renderSuccess(w, out)

	case MsgGetStats:
		var in statsData
		if !decodeData(w, msg.Data, &in) {
			return
		}
		var out any
		if strings.TrimSpace(in.SessionID) != "" {
			out, err = ops.SessionStats(ctx, h.store, in.SessionID)
		} else {
			out, err = ops.Stats(ctx, h.store)
		}
		if err != nil {
			renderFailure(w, err)
			return
		}
		renderSuccess(w, out)

	case MsgClearData:
		out, err := ops.Clear(ctx, h.store)
		if err != nil {
			renderFailure(w, err)
			return
		}
		h.publish(events.DataCleared, "", "", map[string]any{
			"sessionsRemoved": out.SessionsRemoved,
			"versionsRemoved": out.VersionsRemoved,
		})
		renderSuccess(w, out)

	case "":
		renderFailure(w, errors.NewInvalidRequest("type is required"))
	default:
		renderFailure(w, errors.NewInvalidRequest("unknown message type: "+msg.Type))
	}
}

// createCheckpoint promotes an existing version when versionId is given,
// otherwise stores a new checkpoint version.
func (h *Handlers) createCheckpoint(w http.ResponseWriter, r *http.Request, in checkpointData) {
	if in.VersionID != "" {
		if in.SessionID != "" || in.Prompt != "" {
			renderFailure(w, errors.NewInvalidRequest("versionId cannot be combined with sessionId or prompt"))
			return
		}
		out, err := ops.PromoteToCheckpoint(r.Context(), h.store, ops.PromoteInput{
			VersionID:   in.VersionID,
			Name:        in.Name,
			Description: in.Description,
		})
		if err != nil {
			renderFailure(w, err)
			return
		}
		h.publish(events.CheckpointCreated, "", out.VersionID, map[string]any{"name": out.Name})
		renderJSON(w, http.StatusOK, map[string]any{"success": true, "versionId": out.VersionID, "name": out.Name})
		return
	}

	out, err := ops.CreateCheckpoint(r.Context(), h.store, ops.CheckpointInput{
		SessionID:   in.SessionID,
		Prompt:      in.Prompt,
		Response:    in.Response,
		Platform:    h.cfg.Platform(in.Platform),
		Name:        in.Name,
		Description: in.Description,
	})
	if err != nil {
		renderFailure(w, err)
		return
	}
	h.publish(events.CheckpointCreated, out.SessionID, out.VersionID, map[string]any{"name": out.Name})
	renderJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"versionId":      out.VersionID,
		"sessionId":      out.SessionID,
		"name":           out.Name,
		"sessionCreated": out.SessionCreated,
	})
}

// HandleListSessions returns sessions, most recently updated first.
func (h *Handlers) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		renderFailure(w, err)
		return
	}
	out, err := ops.GetHistory(r.Context(), h.store, ops.HistoryInput{Limit: h.cfg.Limit(limit)})
	if err != nil {
		renderFailure(w, err)
		return
	}
	renderSuccess(w, out)
}

// sessionView is the GET /api/sessions/{id} payload.
type sessionView struct {
	*ops.HistoryOutput
	Branches []*prompt.Session       `json:"branches"`
	Stats    *ops.SessionStatsOutput `json:"stats"`
}

// HandleGetSession returns one session's versions, branches and stats.
func (h *Handlers) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	limit, err := queryInt(r, "limit")
	if err != nil {
		renderFailure(w, err)
		return
	}

	ctx := r.Context()
	hist, err := ops.GetHistory(ctx, h.store, ops.HistoryInput{SessionID: sessionID, Limit: limit})
	if err != nil {
		renderFailure(w, err)
		return
	}
	if !hist.Found {
		renderFailure(w, errors.NewNotFound("session", sessionID))
		return
	}
	branches, err := ops.Branches(ctx, h.store, sessionID)
	if err != nil {
		renderFailure(w, err)
		return
	}
	stats, err := ops.SessionStats(ctx, h.store, sessionID)
	if err != nil {
		renderFailure(w, err)
		return
	}
	renderSuccess(w, sessionView{HistoryOutput: hist, Branches: branches, Stats: stats})
}

// HandleReport renders one session's history as an HTML page with prompts
// and responses rendered from markdown.
func (h *Handlers) HandleReport(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	ctx := r.Context()

	hist, err := ops.GetHistory(ctx, h.store, ops.HistoryInput{SessionID: sessionID, Limit: ops.MaxHistoryLimit})
	if err != nil {
		h.renderer.renderErrorPage(w, err)
		return
	}
	if !hist.Found {
		h.renderer.renderErrorPage(w, errors.NewNotFound("session", sessionID))
		return
	}
	branches, err := ops.Branches(ctx, h.store, sessionID)
	if err != nil {
		h.renderer.renderErrorPage(w, err)
		return
	}
	stats, err := ops.SessionStats(ctx, h.store, sessionID)
	if err != nil {
		h.renderer.renderErrorPage(w, err)
		return
	}

	versions := make([]ReportVersion, 0, len(hist.Versions))
	for _, v := range hist.Versions {
		rv := ReportVersion{Version: v, PromptHTML: renderMarkdown(v.Prompt)}
		if v.Response != nil {
			rv.ResponseHTML = renderMarkdown(*v.Response)
		}
		versions = append(versions, rv)
	}

	h.renderer.renderPage(w, http.StatusOK, "report", ReportPageData{
		PageData: PageData{Title: "Session " + sessionID, Version: h.renderer.version},
		Session:  hist.Session,
		Platform: platform.DisplayName(hist.Session.Platform),
		Versions: versions,
		Branches: branches,
		Stats:    stats,
	})
}

// HandleExport streams an export envelope as a JSON download.
func (h *Handlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := strings.TrimSpace(r.URL.Query().Get("sessionId"))

	var (
		env  any
		err  error
		name = "revise-export.json"
	)
	if sessionID != "" {
		env, err = ops.ExportSession(ctx, h.store, sessionID)
		name = "revise-" + ops.FileStem(sessionID) + ".json"
	} else {
		env, err = ops.ExportData(ctx, h.store)
	}
	if err != nil {
		renderFailure(w, err)
		return
	}

	w.Header().Set("Content-Disposition", contentDisposition(name))
	renderJSON(w, http.StatusOK, env)
}

// HandleSessionsPage renders the session list.
func (h *Handlers) HandleSessionsPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hist, err := ops.GetHistory(ctx, h.store, ops.HistoryInput{Limit: ops.MaxHistoryLimit})
	if err != nil {
		h.renderer.renderErrorPage(w, err)
		return
	}
	stats, err := ops.Stats(ctx, h.store)
	if err != nil {
		h.renderer.renderErrorPage(w, err)
		return
	}

	h.renderer.renderPage(w, http.StatusOK, "sessions", SessionsPageData{
		PageData: PageData{Title: "Sessions", Version: h.renderer.version},
		Sessions: hist.Sessions,
		Total:    hist.TotalCount,
		Stats:    stats,
	})
}

func (h *Handlers) publish(kind events.Kind, sessionID, versionID string, data map[string]any) {
	h.bus.Publish(events.Event{Kind: kind, SessionID: sessionID, VersionID: versionID, Data: data})
}

// decodeData unmarshals a message's data into dst. Missing data decodes
// to the zero value. It writes the failure and returns false on error.
func decodeData(w http.ResponseWriter, raw json.RawMessage, dst any) bool {
	if len(raw) == 0 || string(raw) == "null" {
		return true
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		renderFailure(w, errors.NewInvalidRequest("invalid data: "+err.Error()))
		return false
	}
	return true
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.NewInvalidRequest(key + " must be a non-negative integer")
	}
	return n, nil
}
