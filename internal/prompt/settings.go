package prompt

import "time"

// Settings defaults applied when a stored value is absent.
const (
	DefaultCheckpointIntervalMinutes = 5
	DefaultMaxVersions               = 1000
)

// Settings are the user preferences persisted alongside the store.
// Fields are pointers so a merge can tell "absent" from "false"/"0".
type Settings struct {
	AutoSave                  *bool `json:"autoSave,omitempty"`
	CheckpointIntervalMinutes *int  `json:"checkpointIntervalMinutes,omitempty"`
	MaxVersions               *int  `json:"maxVersions,omitempty"`
}

// AutoSaveEnabled reports whether observed edits are recorded automatically.
func (s Settings) AutoSaveEnabled() bool {
	if s.AutoSave == nil {
		return true
	}
	return *s.AutoSave
}

// CheckpointInterval returns the scheduled checkpoint period.
func (s Settings) CheckpointInterval() time.Duration {
	minutes := DefaultCheckpointIntervalMinutes
	if s.CheckpointIntervalMinutes != nil && *s.CheckpointIntervalMinutes > 0 {
		minutes = *s.CheckpointIntervalMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// VersionLimit returns the advisory maximum number of stored versions.
func (s Settings) VersionLimit() int {
	if s.MaxVersions != nil && *s.MaxVersions > 0 {
		return *s.MaxVersions
	}
	return DefaultMaxVersions
}

// Merge returns s with every field present in overlay replacing its own.
// The result shares no pointers with either input.
func (s Settings) Merge(overlay Settings) Settings {
	var out Settings
	out.apply(s)
	out.apply(overlay)
	return out
}

// Clone returns a copy of s that shares no pointers with it.
func (s Settings) Clone() Settings {
	return Settings{}.Merge(s)
}

func (s *Settings) apply(src Settings) {
	if src.AutoSave != nil {
		v := *src.AutoSave
		s.AutoSave = &v
	}
	if src.CheckpointIntervalMinutes != nil {
		v := *src.CheckpointIntervalMinutes
		s.CheckpointIntervalMinutes = &v
	}
	if src.MaxVersions != nil {
		v := *src.MaxVersions
		s.MaxVersions = &v
	}
}
