package ops

import (
	"context"
	"sort"
	"strings"

	"github.com/hpungsan/revise/internal/db"
	"github.com/hpungsan/revise/internal/errors"
	"github.com/hpungsan/revise/internal/prompt"
)

// HistoryInput contains parameters for the GetHistory operation.
type HistoryInput struct {
	SessionID string // optional; empty lists sessions
	Limit     int    // default: 50, max: 1000
}

// HistoryOutput contains the result of the GetHistory operation.
//
// Without a session id only Sessions is set. With one, Session and
// Versions are set; Found is false when the session does not exist and
// Session is then an empty placeholder.
type HistoryOutput struct {
	Sessions   []*prompt.Session `json:"sessions,omitempty"`
	Session    *prompt.Session   `json:"session,omitempty"`
	Versions   []*prompt.Version `json:"versions,omitempty"`
	Found      bool              `json:"found"`
	TotalCount int               `json:"totalCount"`
}

// GetHistory reads sessions or one session's versions. An unknown session
// id is not an error.
func GetHistory(ctx context.Context, store db.Backend, input HistoryInput) (*HistoryOutput, error) {
	limit := clampLimit(input.Limit, DefaultHistoryLimit, MaxHistoryLimit)

	d, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}

	sessionID := strings.TrimSpace(input.SessionID)
	if sessionID == "" {
		sessions := make([]*prompt.Session, 0, len(d.Sessions))
		for _, s := range d.Sessions {
			sessions = append(sessions, s)
		}
		sort.SliceStable(sessions, func(i, j int) bool {
			if sessions[i].LastUpdated != sessions[j].LastUpdated {
				return sessions[i].LastUpdated > sessions[j].LastUpdated
			}
			return sessions[i].ID < sessions[j].ID
		})
		total := len(sessions)
		if len(sessions) > limit {
			sessions = sessions[:limit]
		}
		return &HistoryOutput{Sessions: sessions, Found: true, TotalCount: total}, nil
	}

	session, ok := d.Sessions[sessionID]
	if !ok {
		return &HistoryOutput{
			Session:  placeholderSession(sessionID),
			Versions: []*prompt.Version{},
		}, nil
	}

	versions := newestFirst(d.SessionVersions(session))
	total := len(versions)
	if len(versions) > limit {
		versions = versions[:limit]
	}
	return &HistoryOutput{
		Session:    session,
		Versions:   versions,
		Found:      true,
		TotalCount: total,
	}, nil
}

// GetVersion returns one version by id.
func GetVersion(ctx context.Context, store db.Backend, versionID string) (*prompt.Version, error) {
	versionID = strings.TrimSpace(versionID)
	if versionID == "" {
		return nil, errors.NewInvalidRequest("versionId is required")
	}
	d, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	v, ok := d.Versions[versionID]
	if !ok {
		return nil, errors.NewNotFound("version", versionID)
	}
	return v, nil
}

func placeholderSession(id string) *prompt.Session {
	now := prompt.Millis(timeNow())
	return &prompt.Session{
		ID:          id,
		Platform:    prompt.UnknownPlatform,
		Created:     now,
		LastUpdated: now,
		Versions:    []string{},
		Branches:    []string{},
	}
}

// newestFirst sorts versions given in append order by timestamp
// descending. Equal timestamps keep reverse append order.
func newestFirst(versions []*prompt.Version) []*prompt.Version {
	out := make([]*prompt.Version, len(versions))
	for i, v := range versions {
		out[len(versions)-1-i] = v
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp > out[j].Timestamp
	})
	return out
}
