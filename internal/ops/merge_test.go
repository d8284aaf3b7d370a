package ops

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/revise/internal/errors"
	"github.com/hpungsan/revise/internal/prompt"
)

var importTime = time.UnixMilli(1_700_000_123_456)

func storeWith(sessionID string, versionIDs ...string) *prompt.Data {
	d := prompt.NewData(prompt.Settings{})
	d.Sessions[sessionID] = &prompt.Session{ID: sessionID, Platform: "claude", Versions: append([]string{}, versionIDs...), Branches: []string{}}
	for i, id := range versionIDs {
		d.Versions[id] = &prompt.Version{ID: id, SessionID: sessionID, Prompt: sessionID + " prompt " + id, Timestamp: int64(i + 1)}
	}
	return d
}

// reachable returns every version id referenced by some session.
func reachable(d *prompt.Data) map[string]string {
	out := map[string]string{}
	for sid, s := range d.Sessions {
		for _, vid := range s.Versions {
			out[vid] = sid
		}
	}
	return out
}

func TestMerge_VersionCollision(t *testing.T) {
	local := storeWith("s-local", "v1")
	incoming := storeWith("s-remote", "v1")

	merged, report, err := Merge(local, incoming, importTime)
	require.NoError(t, err)
	require.Len(t, merged.Versions, 2)

	renamed := "v1_imported_1700000123456"
	assert.Equal(t, map[string]string{"v1": renamed}, report.RenamedVersions)
	assert.Nil(t, report.RenamedSessions)

	// Local keeps its id; the incoming copy is renamed and re-linked
	assert.Equal(t, "s-local prompt v1", merged.Versions["v1"].Prompt)
	assert.Equal(t, "s-remote prompt v1", merged.Versions[renamed].Prompt)
	assert.Equal(t, renamed, merged.Versions[renamed].ID)
	assert.Equal(t, []string{"v1"}, merged.Sessions["s-local"].Versions)
	assert.Equal(t, []string{renamed}, merged.Sessions["s-remote"].Versions)

	refs := reachable(merged)
	assert.Equal(t, "s-local", refs["v1"])
	assert.Equal(t, "s-remote", refs[renamed])
}

func TestMerge_SessionCollision(t *testing.T) {
	local := storeWith("s1", "a")
	incoming := storeWith("s1", "b", "c")

	merged, report, err := Merge(local, incoming, importTime)
	require.NoError(t, err)

	renamed := "s1_imported_1700000123456"
	assert.Equal(t, map[string]string{"s1": renamed}, report.RenamedSessions)
	require.Contains(t, merged.Sessions, renamed)
	assert.Equal(t, renamed, merged.Sessions[renamed].ID)
	assert.Equal(t, []string{"b", "c"}, merged.Sessions[renamed].Versions)
	assert.Equal(t, renamed, merged.Versions["b"].SessionID)
	assert.Equal(t, renamed, merged.Versions["c"].SessionID)

	// Local session untouched
	assert.Equal(t, []string{"a"}, merged.Sessions["s1"].Versions)
	assert.Equal(t, "s1", merged.Versions["a"].SessionID)
}

func TestMerge_SessionAndVersionCollision(t *testing.T) {
	local := storeWith("s1", "v1", "v2")
	incoming := storeWith("s1", "v2", "v3")

	merged, report, err := Merge(local, incoming, importTime)
	require.NoError(t, err)

	sessionID := "s1_imported_1700000123456"
	versionID := "v2_imported_1700000123456"
	assert.Equal(t, sessionID, report.RenamedSessions["s1"])
	assert.Equal(t, versionID, report.RenamedVersions["v2"])

	assert.Equal(t, []string{"v1", "v2"}, merged.Sessions["s1"].Versions)
	assert.Equal(t, []string{versionID, "v3"}, merged.Sessions[sessionID].Versions)
	assert.Equal(t, sessionID, merged.Versions[versionID].SessionID)
	assert.Equal(t, "s1", merged.Versions["v2"].SessionID)
	assert.Len(t, merged.Versions, 4)
}

func TestMerge_RenameAvoidsExistingSuffix(t *testing.T) {
	local := storeWith("s1", "v1", "v1_imported_1700000123456")
	incoming := storeWith("s2", "v1")

	merged, report, err := Merge(local, incoming, importTime)
	require.NoError(t, err)

	renamed := report.RenamedVersions["v1"]
	assert.Equal(t, "v1_imported_1700000123456_2", renamed)
	assert.Len(t, merged.Versions, 3)
	assert.Equal(t, []string{renamed}, merged.Sessions["s2"].Versions)
}

func TestMerge_SettingsOverlay(t *testing.T) {
	on, off := true, false
	interval := 10
	local := storeWith("s1", "v1")
	local.Settings = prompt.Settings{AutoSave: &on, CheckpointIntervalMinutes: &interval}
	incoming := storeWith("s2", "v2")
	incoming.Settings = prompt.Settings{AutoSave: &off}

	merged, _, err := Merge(local, incoming, importTime)
	require.NoError(t, err)
	assert.False(t, merged.Settings.AutoSaveEnabled())
	require.NotNil(t, merged.Settings.CheckpointIntervalMinutes)
	assert.Equal(t, 10, *merged.Settings.CheckpointIntervalMinutes)
}

func TestMerge_InputsUnmodified(t *testing.T) {
	local := storeWith("s1", "v1")
	incoming := storeWith("s1", "v1")

	_, _, err := Merge(local, incoming, importTime)
	require.NoError(t, err)

	assert.Len(t, local.Sessions, 1)
	assert.Equal(t, "s1", incoming.Sessions["s1"].ID)
	assert.Equal(t, []string{"v1"}, incoming.Sessions["s1"].Versions)
	assert.Equal(t, "s1", incoming.Versions["v1"].SessionID)
}

func TestMerge_BranchProvenanceFollowsRename(t *testing.T) {
	local := storeWith("parent", "v1")
	incoming := storeWith("parent", "v1")
	incoming.Sessions["child_branch"] = &prompt.Session{
		ID:           "child_branch",
		Versions:     []string{},
		Branches:     []string{},
		BranchedFrom: &prompt.Provenance{SessionID: "parent", VersionID: "v1"},
	}

	merged, _, err := Merge(local, incoming, importTime)
	require.NoError(t, err)

	from := merged.Sessions["child_branch"].BranchedFrom
	require.NotNil(t, from)
	assert.Equal(t, "parent_imported_1700000123456", from.SessionID)
	assert.Equal(t, "v1_imported_1700000123456", from.VersionID)
}

func TestMerge_InvalidFormat(t *testing.T) {
	local := storeWith("s1", "v1")

	tests := []struct {
		name     string
		incoming *prompt.Data
	}{
		{"nil", nil},
		{"nil sessions", &prompt.Data{Versions: map[string]*prompt.Version{}}},
		{"nil versions", &prompt.Data{Sessions: map[string]*prompt.Session{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Merge(local, tt.incoming, importTime)
			assert.True(t, errors.Is(err, errors.ErrInvalidFormat))
		})
	}
}
