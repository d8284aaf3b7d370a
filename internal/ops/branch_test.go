package ops

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/revise/internal/errors"
)

func TestCreateBranch(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	base := mustAppend(t, store, "claude_parent", oceanPrompt)
	mustAppend(t, store, "claude_parent", listPrompt)

	before, err := store.Load(ctx)
	require.NoError(t, err)
	parentBefore := before.Sessions["claude_parent"].Clone()

	out, err := CreateBranch(ctx, store, BranchInput{VersionID: base, SeedText: moonPrompt})
	require.NoError(t, err)
	assert.Equal(t, "claude_parent", out.OriginalSessionID)
	assert.True(t, strings.HasPrefix(out.BranchSessionID, "claude_"))
	assert.True(t, strings.HasSuffix(out.BranchSessionID, BranchSuffix))
	require.NotNil(t, out.BaseVersion)
	assert.Equal(t, base, out.BaseVersion.ID)
	assert.Equal(t, oceanPrompt, out.BaseVersion.Prompt)

	after, err := store.Load(ctx)
	require.NoError(t, err)

	// Parent untouched
	assert.Equal(t, parentBefore, after.Sessions["claude_parent"])

	child := after.Sessions[out.BranchSessionID]
	require.NotNil(t, child)
	assert.Equal(t, []string{out.VersionID}, child.Versions)
	require.NotNil(t, child.BranchedFrom)
	assert.Equal(t, "claude_parent", child.BranchedFrom.SessionID)
	assert.Equal(t, base, child.BranchedFrom.VersionID)

	seed := after.Versions[out.VersionID]
	assert.Equal(t, moonPrompt, seed.Prompt)
	assert.True(t, seed.IsCheckpoint)
	assert.Equal(t, out.BranchSessionID, seed.SessionID)
}

func TestCreateBranch_DefaultSeed(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	base := mustAppend(t, store, "s1", oceanPrompt)

	out, err := CreateBranch(ctx, store, BranchInput{VersionID: base})
	require.NoError(t, err)

	seed, err := GetVersion(ctx, store, out.VersionID)
	require.NoError(t, err)
	assert.Equal(t, oceanPrompt, seed.Prompt)
}

func TestCreateBranch_NotFound(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	mustAppend(t, store, "s1", oceanPrompt)

	_, err := CreateBranch(ctx, store, BranchInput{VersionID: "missing", SeedText: "x"})
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	d, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, d.Sessions, 1)
}

func TestBranches(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	base := mustAppend(t, store, "s1", oceanPrompt)

	first, err := CreateBranch(ctx, store, BranchInput{VersionID: base, SeedText: "branch one"})
	require.NoError(t, err)
	second, err := CreateBranch(ctx, store, BranchInput{VersionID: base, SeedText: "branch two"})
	require.NoError(t, err)

	children, err := Branches(ctx, store, "s1")
	require.NoError(t, err)
	require.Len(t, children, 2)
	ids := []string{children[0].ID, children[1].ID}
	assert.ElementsMatch(t, []string{first.BranchSessionID, second.BranchSessionID}, ids)

	none, err := Branches(ctx, store, first.BranchSessionID)
	require.NoError(t, err)
	assert.Empty(t, none)
}
