package ops

import (
	"context"
	"strings"

	"github.com/hpungsan/revise/internal/db"
	"github.com/hpungsan/revise/internal/prompt"
)

// StatsOutput summarizes the whole store.
type StatsOutput struct {
	BytesUsed       int64 `json:"bytesUsed"`
	SessionCount    int   `json:"sessionCount"`
	VersionCount    int   `json:"versionCount"`
	CheckpointCount int   `json:"checkpointCount"`
	MaxVersions     int   `json:"maxVersions"`

	// OverLimit reports VersionCount > MaxVersions. The limit is advisory;
	// nothing is pruned.
	OverLimit bool `json:"overLimit"`
}

// Stats reports store size and counts.
func Stats(ctx context.Context, store db.Backend) (*StatsOutput, error) {
	d, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	bytesUsed, err := store.BytesUsed(ctx)
	if err != nil {
		return nil, err
	}

	limit := d.Settings.VersionLimit()
	return &StatsOutput{
		BytesUsed:       bytesUsed,
		SessionCount:    len(d.Sessions),
		VersionCount:    len(d.Versions),
		CheckpointCount: d.CheckpointCount(),
		MaxVersions:     limit,
		OverLimit:       len(d.Versions) > limit,
	}, nil
}

// SessionStatsOutput summarizes one session.
type SessionStatsOutput struct {
	SessionID      string `json:"sessionId"`
	Platform       string `json:"platform"`
	TotalVersions  int    `json:"totalVersions"`
	Checkpoints    int    `json:"checkpoints"`
	FirstTimestamp *int64 `json:"firstTimestamp"`
	LastTimestamp  *int64 `json:"lastTimestamp"`
}

// SessionStats reports counts for one session. An unknown session yields
// zero counts, not an error.
func SessionStats(ctx context.Context, store db.Backend, sessionID string) (*SessionStatsOutput, error) {
	sessionID = strings.TrimSpace(sessionID)
	d, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}

	out := &SessionStatsOutput{SessionID: sessionID, Platform: prompt.UnknownPlatform}
	s, ok := d.Sessions[sessionID]
	if !ok {
		return out, nil
	}

	out.Platform = s.Platform
	for _, v := range d.SessionVersions(s) {
		out.TotalVersions++
		if v.IsCheckpoint {
			out.Checkpoints++
		}
		ts := v.Timestamp
		if out.FirstTimestamp == nil || ts < *out.FirstTimestamp {
			first := ts
			out.FirstTimestamp = &first
		}
		if out.LastTimestamp == nil || ts > *out.LastTimestamp {
			last := ts
			out.LastTimestamp = &last
		}
	}
	return out, nil
}
