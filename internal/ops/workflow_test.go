package ops

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/hpungsan/revise/internal/classify"
	"github.com/hpungsan/revise/internal/errors"
	"github.com/stretchr/testify/require"
)

// TestFullWorkflow exercises the complete prompt lifecycle:
// append → append → promote → branch → history → export → clear → import
func TestFullWorkflow(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	// 1. First prompt creates the session
	first, err := AppendVersion(ctx, store, AppendInput{SessionID: "claude_demo", Prompt: oceanPrompt, Platform: "claude"})
	require.NoError(t, err)
	require.True(t, first.SessionCreated)
	require.Equal(t, classify.NewPrompt, first.ChangeType)

	// 2. A rewrite is classified against the previous prompt
	second, err := AppendVersion(ctx, store, AppendInput{SessionID: "claude_demo", Prompt: listPrompt})
	require.NoError(t, err)
	require.Equal(t, classify.MajorRewrite, second.ChangeType)

	// 3. Promote the first version
	_, err = PromoteToCheckpoint(ctx, store, PromoteInput{VersionID: first.VersionID, Name: "Ocean draft"})
	require.NoError(t, err)

	// 4. Branch from it
	branch, err := CreateBranch(ctx, store, BranchInput{VersionID: first.VersionID, SeedText: moonPrompt})
	require.NoError(t, err)
	require.Equal(t, "claude_demo", branch.OriginalSessionID)

	// 5. History reflects both sessions
	hist, err := GetHistory(ctx, store, HistoryInput{})
	require.NoError(t, err)
	require.Len(t, hist.Sessions, 2)

	parent, err := GetHistory(ctx, store, HistoryInput{SessionID: "claude_demo"})
	require.NoError(t, err)
	require.Len(t, parent.Versions, 2)

	// 6. Export, clear, re-import
	env, err := ExportData(ctx, store)
	require.NoError(t, err)
	raw, err := json.Marshal(env)
	require.NoError(t, err)

	cleared, err := Clear(ctx, store)
	require.NoError(t, err)
	require.Equal(t, 3, cleared.VersionsRemoved)

	_, err = GetVersion(ctx, store, first.VersionID)
	require.True(t, errors.Is(err, errors.ErrNotFound))

	imported, err := ImportData(ctx, store, raw)
	require.NoError(t, err)
	require.Equal(t, 2, imported.SessionsAdded)
	require.Equal(t, 3, imported.VersionsAdded)

	// 7. Restored data keeps checkpoint and provenance
	v, err := GetVersion(ctx, store, first.VersionID)
	require.NoError(t, err)
	require.True(t, v.IsCheckpoint)
	require.Equal(t, "Ocean draft", v.CheckpointName)

	children, err := Branches(ctx, store, "claude_demo")
	require.NoError(t, err)
	require.Len(t, children, 1)
	require.Equal(t, branch.BranchSessionID, children[0].ID)
}
