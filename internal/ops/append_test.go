package ops

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/revise/internal/classify"
	"github.com/hpungsan/revise/internal/errors"
)

func TestAppendVersion_CreatesSession(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	out, err := AppendVersion(ctx, store, AppendInput{
		SessionID: "chatgpt_1",
		Prompt:    "  Write a   poem about the ocean  ",
		Platform:  "ChatGPT",
	})
	require.NoError(t, err)
	assert.True(t, out.SessionCreated)
	assert.Equal(t, classify.NewPrompt, out.ChangeType)

	d, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, d.Sessions, 1)
	require.Len(t, d.Versions, 1)

	s := d.Sessions["chatgpt_1"]
	require.NotNil(t, s)
	assert.Equal(t, []string{out.VersionID}, s.Versions)
	assert.Equal(t, "chatgpt", s.Platform)
	assert.Equal(t, s.Created, s.LastUpdated)

	v := d.Versions[out.VersionID]
	assert.Equal(t, oceanPrompt, v.Prompt)
	assert.Equal(t, "chatgpt_1", v.SessionID)
	assert.Nil(t, v.Response)
	assert.False(t, v.IsCheckpoint)
	assert.Equal(t, v.Timestamp, s.LastUpdated)
}

func TestAppendVersion_AppendsInOrder(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	fixedClock(t, time.UnixMilli(1_700_000_000_000))

	first := mustAppend(t, store, "s1", oceanPrompt)
	out, err := AppendVersion(ctx, store, AppendInput{SessionID: "s1", Prompt: listPrompt})
	require.NoError(t, err)
	assert.False(t, out.SessionCreated)
	assert.Equal(t, classify.MajorRewrite, out.ChangeType)

	d, err := store.Load(ctx)
	require.NoError(t, err)
	s := d.Sessions["s1"]
	assert.Equal(t, []string{first, out.VersionID}, s.Versions)
	assert.Greater(t, s.LastUpdated, s.Created)

	// Platform falls back to the session's
	assert.Equal(t, "claude", d.Versions[out.VersionID].Platform)
}

func TestAppendVersion_CallerChangeType(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	out, err := AppendVersion(ctx, store, AppendInput{
		SessionID:  "s1",
		Prompt:     oceanPrompt,
		ChangeType: classify.Refinement,
	})
	require.NoError(t, err)
	assert.Equal(t, classify.Refinement, out.ChangeType)

	_, err = AppendVersion(ctx, store, AppendInput{
		SessionID:  "s1",
		Prompt:     oceanPrompt,
		ChangeType: "sideways_edit",
	})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestAppendVersion_CheckpointHasNoChangeType(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	response := "  The tide rolls in.  "

	out, err := AppendVersion(ctx, store, AppendInput{
		SessionID:    "s1",
		Prompt:       oceanPrompt,
		Response:     &response,
		IsCheckpoint: true,
		ChangeType:   classify.GeneralEdit,
	})
	require.NoError(t, err)
	assert.Empty(t, out.ChangeType)

	v, err := GetVersion(ctx, store, out.VersionID)
	require.NoError(t, err)
	assert.True(t, v.IsCheckpoint)
	assert.Empty(t, v.ChangeType)
	require.NotNil(t, v.Response)
	assert.Equal(t, "The tide rolls in.", *v.Response)
}

func TestAppendVersion_Validation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	tests := []struct {
		name  string
		input AppendInput
	}{
		{"missing session", AppendInput{Prompt: "hello"}},
		{"blank session", AppendInput{SessionID: "   ", Prompt: "hello"}},
		{"empty prompt", AppendInput{SessionID: "s1"}},
		{"whitespace prompt", AppendInput{SessionID: "s1", Prompt: " \n\t "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := AppendVersion(ctx, store, tt.input)
			assert.True(t, errors.Is(err, errors.ErrInvalidRequest), "got %v", err)
		})
	}

	d, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, d.Sessions)
}

func TestAppendVersion_UnknownPlatformDefault(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	out, err := AppendVersion(ctx, store, AppendInput{SessionID: "s1", Prompt: "hi"})
	require.NoError(t, err)

	v, err := GetVersion(ctx, store, out.VersionID)
	require.NoError(t, err)
	assert.Equal(t, "unknown", v.Platform)
}
