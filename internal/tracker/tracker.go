// Package tracker holds the editing state of one prompt box: which session
// it records into, the last recorded prompt, and the autosave gate that
// decides whether an observed edit becomes a version.
package tracker

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hpungsan/revise/internal/classify"
	"github.com/hpungsan/revise/internal/db"
	"github.com/hpungsan/revise/internal/errors"
	"github.com/hpungsan/revise/internal/events"
	"github.com/hpungsan/revise/internal/ops"
	"github.com/hpungsan/revise/internal/platform"
	"github.com/hpungsan/revise/internal/prompt"
)

// Checkpoint labels written by the tracker.
const (
	SubmittedName        = "Submitted Prompt"
	SubmittedDescription = "User submitted this prompt"
	AutoDescription      = "Automatic checkpoint created"
	checkpointTimeLayout = "15:04:05"
)

// Reasons an observation or checkpoint request saved nothing.
const (
	SkipPaused        = "paused"
	SkipEmpty         = "empty"
	SkipUnchanged     = "unchanged"
	SkipMinorEdit     = "minor_edit"
	SkipInsignificant = "insignificant"
	SkipAutoSaveOff   = "auto_save_off"
	SkipNoPrompt      = "no_prompt"
)

// Options configures a Tracker.
type Options struct {
	// Platform labels new sessions; derived from URL when empty
	Platform string
	URL      string

	// SessionID resumes an existing session; a new id is generated when empty
	SessionID string

	// CheckpointInterval overrides the stored checkpoint interval
	CheckpointInterval time.Duration

	Events  events.Publisher
	Logger  *log.Logger
	Verbose bool
}

// Result reports what a tracker call recorded.
type Result struct {
	Saved     bool               `json:"saved"`
	SessionID string             `json:"sessionId"`
	VersionID string             `json:"versionId,omitempty"`
	Name      string             `json:"name,omitempty"`
	Reason    string             `json:"reason,omitempty"`
	Analysis  *classify.Analysis `json:"analysis,omitempty"`
}

// State is a snapshot of a tracker.
type State struct {
	ID         string `json:"id"`
	SessionID  string `json:"sessionId"`
	Platform   string `json:"platform"`
	Tracking   bool   `json:"tracking"`
	LastPrompt string `json:"lastPrompt"`
}

// Tracker is safe for concurrent use. Calls are serialized so the
// last-prompt state always matches what was stored.
type Tracker struct {
	id       string
	store    db.Backend
	events   events.Publisher
	logger   *log.Logger
	verbose  bool
	interval time.Duration
	now      func() time.Time

	mu            sync.Mutex
	platform      string
	sessionID     string
	tracking      bool
	lastPrompt    string
	lastResponse  string
	lastSubmitted string
}

// New creates a tracker that starts in the tracking state.
func New(store db.Backend, opts Options) (*Tracker, error) {
	p := opts.Platform
	if p == "" && opts.URL != "" {
		p = platform.Detect(opts.URL)
	}
	p = prompt.PlatformLabel(p)

	t := &Tracker{
		id:       uuid.New().String(),
		store:    store,
		events:   opts.Events,
		logger:   opts.Logger,
		verbose:  opts.Verbose,
		interval: opts.CheckpointInterval,
		now:      time.Now,
		platform: p,
		tracking: true,
	}
	if t.events == nil {
		t.events = events.Discard
	}
	if t.logger == nil {
		t.logger = log.Default()
	}

	t.sessionID = strings.TrimSpace(opts.SessionID)
	if t.sessionID == "" {
		id, err := prompt.NewSessionID(p, t.now())
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		t.sessionID = id
	}
	t.logger.Printf("[tracker] %s started on %s session=%s", t.id, t.platform, t.sessionID)
	return t, nil
}

// ID returns the tracker's instance id.
func (t *Tracker) ID() string { return t.id }

// SessionID returns the session new versions are recorded into.
func (t *Tracker) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID
}

// State returns a snapshot.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return State{
		ID:         t.id,
		SessionID:  t.sessionID,
		Platform:   t.platform,
		Tracking:   t.tracking,
		LastPrompt: t.lastPrompt,
	}
}

// Start resumes recording.
func (t *Tracker) Start() {
	t.mu.Lock()
	t.tracking = true
	t.mu.Unlock()
	t.debugf("tracking started")
}

// Stop pauses recording; observations and checkpoints are skipped until Start.
func (t *Tracker) Stop() {
	t.mu.Lock()
	t.tracking = false
	t.mu.Unlock()
	t.debugf("tracking stopped")
}

// Paused reports whether recording is paused.
func (t *Tracker) Paused() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.tracking
}

// ObserveText classifies an edit against the last recorded prompt and
// records it when the autosave policy allows.
func (t *Tracker) ObserveText(ctx context.Context, text string) (*Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	res := &Result{SessionID: t.sessionID}
	text = prompt.Normalize(text)
	switch {
	case !t.tracking:
		return t.skip(res, SkipPaused), nil
	case text == "":
		return t.skip(res, SkipEmpty), nil
	case text == t.lastPrompt:
		return t.skip(res, SkipUnchanged), nil
	}

	analysis := classify.Analyze(t.lastPrompt, text)
	res.Analysis = &analysis
	if analysis.ChangeType == classify.MinorEdit {
		return t.skip(res, SkipMinorEdit), nil
	}
	if !analysis.Significant {
		return t.skip(res, SkipInsignificant), nil
	}

	settings, err := t.settings(ctx)
	if err != nil {
		return nil, t.fail("observe", err)
	}
	if !settings.AutoSaveEnabled() {
		return t.skip(res, SkipAutoSaveOff), nil
	}

	out, err := ops.AppendVersion(ctx, t.store, ops.AppendInput{
		SessionID:  t.sessionID,
		Prompt:     text,
		Platform:   t.platform,
		ChangeType: analysis.ChangeType,
	})
	if err != nil {
		return nil, t.fail("observe", err)
	}
	t.lastPrompt = text

	res.Saved = true
	res.VersionID = out.VersionID
	t.debugf("saved %s (%s, similarity %.2f)", out.VersionID, analysis.ChangeType, analysis.Similarity)
	t.publish(events.VersionSaved, out.VersionID, map[string]any{"changeType": string(analysis.ChangeType)})
	return res, nil
}

// Submit records text as a "Submitted Prompt" checkpoint and remembers it
// for CaptureResponse.
func (t *Tracker) Submit(ctx context.Context, text string) (*Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	res := &Result{SessionID: t.sessionID}
	text = prompt.Normalize(text)
	if !t.tracking {
		return t.skip(res, SkipPaused), nil
	}
	if text == "" {
		return t.skip(res, SkipEmpty), nil
	}

	t.lastSubmitted = text
	return t.checkpoint(ctx, res, text, nil, SubmittedName, SubmittedDescription)
}

// CaptureResponse records the last submitted prompt again, as a checkpoint
// carrying the reply.
func (t *Tracker) CaptureResponse(ctx context.Context, response string) (*Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	res := &Result{SessionID: t.sessionID}
	response = strings.TrimSpace(response)
	switch {
	case !t.tracking:
		return t.skip(res, SkipPaused), nil
	case t.lastSubmitted == "":
		return t.skip(res, SkipNoPrompt), nil
	case response == "":
		return t.skip(res, SkipEmpty), nil
	}

	res, err := t.checkpoint(ctx, res, t.lastSubmitted, &response, "", "")
	if err != nil {
		return nil, err
	}
	t.lastResponse = response
	return res, nil
}

// Checkpoint records text (or the last prompt when text is blank) as a
// named checkpoint. name defaults to "Manual Checkpoint <time>".
func (t *Tracker) Checkpoint(ctx context.Context, text, name, description string) (*Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	res := &Result{SessionID: t.sessionID}
	text = prompt.Normalize(text)
	if text == "" {
		text = t.lastPrompt
	}
	if !t.tracking {
		return t.skip(res, SkipPaused), nil
	}
	if text == "" {
		return t.skip(res, SkipEmpty), nil
	}
	if strings.TrimSpace(name) == "" {
		name = "Manual Checkpoint " + t.now().Format(checkpointTimeLayout)
	}
	return t.checkpoint(ctx, res, text, nil, name, description)
}

// AutoCheckpoint records the last prompt and response as a scheduled
// checkpoint.
func (t *Tracker) AutoCheckpoint(ctx context.Context) (*Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	res := &Result{SessionID: t.sessionID}
	if !t.tracking {
		return t.skip(res, SkipPaused), nil
	}
	if t.lastPrompt == "" {
		return t.skip(res, SkipNoPrompt), nil
	}
	settings, err := t.settings(ctx)
	if err != nil {
		return nil, t.fail("auto-checkpoint", err)
	}
	if !settings.AutoSaveEnabled() {
		return t.skip(res, SkipAutoSaveOff), nil
	}

	var response *string
	if t.lastResponse != "" {
		r := t.lastResponse
		response = &r
	}
	name := "Auto-checkpoint " + t.now().Format(checkpointTimeLayout)
	return t.checkpoint(ctx, res, t.lastPrompt, response, name, AutoDescription)
}

// RunAutoCheckpoints calls AutoCheckpoint on every interval tick until ctx
// is done. The interval comes from Options or the stored settings.
func (t *Tracker) RunAutoCheckpoints(ctx context.Context) error {
	interval := t.interval
	if interval <= 0 {
		settings, err := t.settings(ctx)
		if err != nil {
			return t.fail("auto-checkpoint", err)
		}
		interval = settings.CheckpointInterval()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := t.AutoCheckpoint(ctx); err != nil && ctx.Err() == nil {
				t.logger.Printf("[tracker] %s auto-checkpoint: %v", t.id, err)
			}
		}
	}
}

// Restore returns a stored version so the caller can put it back into
// the prompt box.
func (t *Tracker) Restore(ctx context.Context, versionID string) (*prompt.Version, error) {
	v, err := ops.GetVersion(ctx, t.store, versionID)
	if err != nil {
		return nil, t.fail("restore", err)
	}
	t.mu.Lock()
	t.publish(events.VersionRestored, v.ID, map[string]any{"fromSessionId": v.SessionID})
	t.mu.Unlock()
	return v, nil
}

// Branch forks a session from versionID and switches to it.
func (t *Tracker) Branch(ctx context.Context, versionID, seedText string) (*ops.BranchOutput, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	out, err := ops.CreateBranch(ctx, t.store, ops.BranchInput{VersionID: versionID, SeedText: seedText})
	if err != nil {
		return nil, t.fail("branch", err)
	}

	seed := prompt.Normalize(seedText)
	if seed == "" {
		seed = out.BaseVersion.Prompt
	}
	t.sessionID = out.BranchSessionID
	t.lastPrompt = seed
	t.lastResponse = ""
	t.lastSubmitted = ""

	t.debugf("branched %s from %s", out.BranchSessionID, versionID)
	t.publish(events.BranchCreated, out.VersionID, map[string]any{
		"originalSessionId": out.OriginalSessionID,
		"baseVersionId":     out.BaseVersion.ID,
	})
	return out, nil
}

// SwitchSession points the tracker at another session and forgets the
// last prompt and response.
func (t *Tracker) SwitchSession(sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return errors.NewInvalidRequest("sessionId is required")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	previous := t.sessionID
	t.sessionID = sessionID
	t.lastPrompt = ""
	t.lastResponse = ""
	t.lastSubmitted = ""

	t.debugf("switched to %s", sessionID)
	t.publish(events.SessionSwitched, "", map[string]any{"previousSessionId": previous})
	return nil
}

// History returns the current session's versions, newest first.
func (t *Tracker) History(ctx context.Context, limit int) (*ops.HistoryOutput, error) {
	return ops.GetHistory(ctx, t.store, ops.HistoryInput{SessionID: t.SessionID(), Limit: limit})
}

// Stats summarizes the current session.
func (t *Tracker) Stats(ctx context.Context) (*ops.SessionStatsOutput, error) {
	return ops.SessionStats(ctx, t.store, t.SessionID())
}

// Search finds versions of the current session.
func (t *Tracker) Search(ctx context.Context, query string, includeResponses bool, limit int) (*ops.SearchOutput, error) {
	return ops.Search(ctx, t.store, ops.SearchInput{
		Query:            query,
		SessionID:        t.SessionID(),
		IncludeResponses: includeResponses,
		Limit:            limit,
	})
}

// checkpoint stores text as a checkpoint version. t.mu must be held.
func (t *Tracker) checkpoint(ctx context.Context, res *Result, text string, response *string, name, description string) (*Result, error) {
	out, err := ops.CreateCheckpoint(ctx, t.store, ops.CheckpointInput{
		SessionID:   t.sessionID,
		Prompt:      text,
		Response:    response,
		Platform:    t.platform,
		Name:        name,
		Description: description,
	})
	if err != nil {
		return nil, t.fail("checkpoint", err)
	}
	t.lastPrompt = text

	res.Saved = true
	res.VersionID = out.VersionID
	res.Name = out.Name
	t.debugf("checkpoint %s %q", out.VersionID, name)
	data := map[string]any{}
	if name != "" {
		data["name"] = name
	}
	if response != nil {
		data["hasResponse"] = true
	}
	t.publish(events.CheckpointCreated, out.VersionID, data)
	return res, nil
}

func (t *Tracker) settings(ctx context.Context) (prompt.Settings, error) {
	d, err := t.store.Load(ctx)
	if err != nil {
		return prompt.Settings{}, err
	}
	return d.Settings, nil
}

// publish sends an event for the current session. t.mu must be held.
func (t *Tracker) publish(kind events.Kind, versionID string, data map[string]any) {
	if len(data) == 0 {
		data = nil
	}
	t.events.Publish(events.Event{
		Kind:      kind,
		SessionID: t.sessionID,
		VersionID: versionID,
		Time:      t.now().UTC(),
		Data:      data,
	})
}

func (t *Tracker) skip(res *Result, reason string) *Result {
	res.Reason = reason
	t.debugf("skipped: %s", reason)
	return res
}

func (t *Tracker) fail(op string, err error) error {
	t.logger.Printf("[tracker] %s %s failed: %v", t.id, op, err)
	return err
}

func (t *Tracker) debugf(format string, args ...any) {
	if t.verbose {
		t.logger.Printf("[tracker] "+t.id+" "+format, args...)
	}
}
