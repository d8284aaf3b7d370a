package web

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/hpungsan/revise/internal/errors"
	"github.com/hpungsan/revise/internal/ops"
	"github.com/hpungsan/revise/internal/platform"
	"github.com/hpungsan/revise/internal/prompt"
)

// PageData contains common fields used across all page templates.
type PageData struct {
	Title   string
	Version string
}

// SessionsPageData is the template data for the session list page.
type SessionsPageData struct {
	PageData
	Sessions []*prompt.Session
	Total    int
	Stats    *ops.StatsOutput
}

// ReportVersion is one version as shown in a history report.
type ReportVersion struct {
	*prompt.Version
	PromptHTML   template.HTML
	ResponseHTML template.HTML
}

// ReportPageData is the template data for a session history report.
type ReportPageData struct {
	PageData
	Session  *prompt.Session
	Platform string
	Versions []ReportVersion
	Branches []*prompt.Session
	Stats    *ops.SessionStatsOutput
}

// ErrorPageData is the template data for the error page.
type ErrorPageData struct {
	PageData
	StatusCode int
	Message    string
}

// Renderer manages template parsing and rendering.
type Renderer struct {
	templates map[string]*template.Template
	version   string
}

// NewRenderer creates a Renderer by parsing templates from the given FS.
func NewRenderer(templateFS fs.FS, version string) (*Renderer, error) {
	funcMap := template.FuncMap{
		"formatTime":   formatTime,
		"platformName": platform.DisplayName,
		"truncate":     prompt.Truncate,
	}

	layoutTmpl, err := template.New("layout").Funcs(funcMap).ParseFS(templateFS, "layout.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	pages := map[string]string{
		"sessions": "sessions.html",
		"report":   "report.html",
		"error":    "error.html",
	}

	templates := make(map[string]*template.Template, len(pages))
	for name, file := range pages {
		t, err := layoutTmpl.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(templateFS, file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		templates[name] = t
	}

	return &Renderer{
		templates: templates,
		version:   version,
	}, nil
}

// renderPage renders a named page template with the given data and HTTP status code.
func (r *Renderer) renderPage(w http.ResponseWriter, status int, name string, data any) {
	t, ok := r.templates[name]
	if !ok {
		log.Printf("[web] template %q not found", name)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		log.Printf("[web] template execution error: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderErrorPage renders err as an HTML error page.
func (r *Renderer) renderErrorPage(w http.ResponseWriter, err error) {
	var rErr *errors.ReviseError
	if !stderrors.As(err, &rErr) {
		rErr = errors.NewInternal(err)
	}
	message := rErr.Message
	if rErr.Code == errors.ErrInternal {
		message = "an internal error occurred"
	}

	r.renderPage(w, rErr.Status, "error", ErrorPageData{
		PageData: PageData{
			Title:   fmt.Sprintf("Error %d", rErr.Status),
			Version: r.version,
		},
		StatusCode: rErr.Status,
		Message:    message,
	})
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[web] failed to encode response: %v", err)
	}
}

// renderSuccess writes {success: true, data}.
func renderSuccess(w http.ResponseWriter, data any) {
	renderJSON(w, http.StatusOK, map[string]any{"success": true, "data": data})
}

// renderFailure writes {success: false, error} with the error's status.
func renderFailure(w http.ResponseWriter, err error) {
	payload := errors.Payload(err)
	status, _ := payload["status"].(int)
	if status == 0 {
		status = http.StatusInternalServerError
	}
	renderJSON(w, status, map[string]any{"success": false, "error": payload})
}

// renderMarkdown converts markdown text to HTML using goldmark.
// Raw HTML in the input is escaped.
func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

// formatTime formats a Unix millisecond timestamp as "2006-01-02 15:04:05" UTC.
func formatTime(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02 15:04:05")
}

// contentDisposition builds an attachment header for a JSON download.
func contentDisposition(name string) string {
	name = strings.NewReplacer(`"`, "", "\\", "", "\n", "", "\r", "").Replace(name)
	return fmt.Sprintf(`attachment; filename="%s"`, name)
}
