package ops

import (
	"context"
	"fmt"

	"github.com/hpungsan/revise/internal/db"
)

// ClearOutput contains the result of the Clear operation.
type ClearOutput struct {
	SessionsRemoved int    `json:"sessionsRemoved"`
	VersionsRemoved int    `json:"versionsRemoved"`
	Message         string `json:"message"`
}

// Clear permanently deletes every session, version and setting.
func Clear(ctx context.Context, store db.Backend) (*ClearOutput, error) {
	d, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if err := store.RemoveAll(ctx); err != nil {
		return nil, err
	}

	return &ClearOutput{
		SessionsRemoved: len(d.Sessions),
		VersionsRemoved: len(d.Versions),
		Message:         formatClearMessage(len(d.Sessions), len(d.Versions)),
	}, nil
}

// formatClearMessage creates a human-readable message for the clear result.
func formatClearMessage(sessions, versions int) string {
	if sessions == 0 && versions == 0 {
		return "Nothing to clear"
	}
	return fmt.Sprintf("Permanently deleted %d %s and %d %s",
		sessions, plural(sessions, "session", "sessions"),
		versions, plural(versions, "version", "versions"))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
