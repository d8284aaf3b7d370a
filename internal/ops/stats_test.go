package ops

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/revise/internal/prompt"
)

func TestStats(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	empty, err := Stats(ctx, store)
	require.NoError(t, err)
	assert.Zero(t, empty.BytesUsed)
	assert.Zero(t, empty.VersionCount)
	assert.Equal(t, 1000, empty.MaxVersions)
	assert.False(t, empty.OverLimit)

	id := mustAppend(t, store, "s1", oceanPrompt)
	mustAppend(t, store, "s2", listPrompt)
	_, err = PromoteToCheckpoint(ctx, store, PromoteInput{VersionID: id, Name: "keep"})
	require.NoError(t, err)

	out, err := Stats(ctx, store)
	require.NoError(t, err)
	assert.Positive(t, out.BytesUsed)
	assert.Equal(t, 2, out.SessionCount)
	assert.Equal(t, 2, out.VersionCount)
	assert.Equal(t, 1, out.CheckpointCount)
}

func TestStats_OverLimit(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	limit := 1
	d := storeWith("s1", "v1", "v2")
	d.Settings = prompt.Settings{MaxVersions: &limit}
	require.NoError(t, store.Save(ctx, d))

	out, err := Stats(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, 1, out.MaxVersions)
	assert.True(t, out.OverLimit)
	assert.Equal(t, 2, out.VersionCount)
}

func TestSessionStats(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	fixedClock(t, time.UnixMilli(1_700_000_000_000))

	first := mustAppend(t, store, "s1", oceanPrompt)
	_, err := CreateCheckpoint(ctx, store, CheckpointInput{SessionID: "s1", Prompt: moonPrompt, Name: "moon"})
	require.NoError(t, err)

	out, err := SessionStats(ctx, store, "s1")
	require.NoError(t, err)
	assert.Equal(t, "claude", out.Platform)
	assert.Equal(t, 2, out.TotalVersions)
	assert.Equal(t, 1, out.Checkpoints)
	require.NotNil(t, out.FirstTimestamp)
	require.NotNil(t, out.LastTimestamp)
	assert.Less(t, *out.FirstTimestamp, *out.LastTimestamp)

	v, err := GetVersion(ctx, store, first)
	require.NoError(t, err)
	assert.Equal(t, v.Timestamp, *out.FirstTimestamp)
}

func TestSessionStats_UnknownSession(t *testing.T) {
	out, err := SessionStats(context.Background(), newTestStore(t), "missing")
	require.NoError(t, err)
	assert.Zero(t, out.TotalVersions)
	assert.Nil(t, out.FirstTimestamp)
	assert.Equal(t, "unknown", out.Platform)
}
