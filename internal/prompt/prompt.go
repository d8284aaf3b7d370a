package prompt

import (
	"github.com/hpungsan/revise/internal/classify"
)

// Version is one recorded snapshot of prompt text within a session.
// Field names match the persisted store shape.
type Version struct {
	// ID is a time-ordered unique identifier (ULID for versions created here;
	// imported versions may carry foreign or renamed ids)
	ID string `json:"id"`

	// SessionID references the owning session
	SessionID string `json:"sessionId"`

	// Prompt is the normalized prompt text
	Prompt string `json:"prompt"`

	// Response is the captured reply, if any
	Response *string `json:"response"`

	// Timestamp is the creation instant in Unix milliseconds
	Timestamp int64 `json:"timestamp"`

	// Platform is the source-context label the version was recorded from
	Platform string `json:"platform,omitempty"`

	IsCheckpoint bool `json:"isCheckpoint"`

	// ChangeType is the classification tag; empty for checkpoints
	ChangeType classify.ChangeType `json:"changeType,omitempty"`

	// CheckpointName and CheckpointDescription are set only by promotion
	CheckpointName        string `json:"checkpointName,omitempty"`
	CheckpointDescription string `json:"checkpointDescription,omitempty"`
}

// Provenance records which version a branch session was forked from.
type Provenance struct {
	SessionID string `json:"sessionId"`
	VersionID string `json:"versionId"`
}

// Session is one continuous editing context.
type Session struct {
	ID       string `json:"id"`
	Platform string `json:"platform"`

	// Created and LastUpdated are Unix milliseconds
	Created     int64 `json:"created"`
	LastUpdated int64 `json:"lastUpdated"`

	// Versions holds version ids in append (chronological) order
	Versions []string `json:"versions"`

	// Branches is reserved for child session ids; never written by branching
	Branches []string `json:"branches"`

	// BranchedFrom is set on sessions created by branching
	BranchedFrom *Provenance `json:"branchedFrom,omitempty"`
}

// Data is the global store: every session and version plus settings.
// The two maps are not updated atomically by every writer, so readers
// must tolerate ids in Session.Versions that are missing from Versions.
type Data struct {
	Sessions map[string]*Session `json:"sessions"`
	Versions map[string]*Version `json:"versions"`
	Settings Settings            `json:"settings"`
}

// NewData returns an empty store with the given settings.
func NewData(settings Settings) *Data {
	return &Data{
		Sessions: make(map[string]*Session),
		Versions: make(map[string]*Version),
		Settings: settings,
	}
}

// Ensure replaces nil maps and nil slices with empty ones.
func (d *Data) Ensure() {
	if d.Sessions == nil {
		d.Sessions = make(map[string]*Session)
	}
	if d.Versions == nil {
		d.Versions = make(map[string]*Version)
	}
	for id, s := range d.Sessions {
		if s == nil {
			delete(d.Sessions, id)
			continue
		}
		if s.Versions == nil {
			s.Versions = []string{}
		}
		if s.Branches == nil {
			s.Branches = []string{}
		}
	}
	for id, v := range d.Versions {
		if v == nil {
			delete(d.Versions, id)
		}
	}
}

// Clone returns a deep copy of d.
func (d *Data) Clone() *Data {
	out := &Data{
		Sessions: make(map[string]*Session, len(d.Sessions)),
		Versions: make(map[string]*Version, len(d.Versions)),
		Settings: d.Settings.Clone(),
	}
	for id, s := range d.Sessions {
		if s != nil {
			out.Sessions[id] = s.Clone()
		}
	}
	for id, v := range d.Versions {
		if v != nil {
			out.Versions[id] = v.Clone()
		}
	}
	return out
}

// SessionVersions returns the versions of s in append order, skipping
// dangling references.
func (d *Data) SessionVersions(s *Session) []*Version {
	out := make([]*Version, 0, len(s.Versions))
	for _, id := range s.Versions {
		if v, ok := d.Versions[id]; ok && v != nil {
			out = append(out, v)
		}
	}
	return out
}

// CheckpointCount returns how many stored versions are checkpoints.
func (d *Data) CheckpointCount() int {
	n := 0
	for _, v := range d.Versions {
		if v != nil && v.IsCheckpoint {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of s.
func (s *Session) Clone() *Session {
	c := *s
	c.Versions = append([]string{}, s.Versions...)
	c.Branches = append([]string{}, s.Branches...)
	if s.BranchedFrom != nil {
		p := *s.BranchedFrom
		c.BranchedFrom = &p
	}
	return &c
}

// Clone returns a deep copy of v.
func (v *Version) Clone() *Version {
	c := *v
	if v.Response != nil {
		r := *v.Response
		c.Response = &r
	}
	return &c
}

// IndexOf returns the position of versionID in s.Versions, or -1.
func (s *Session) IndexOf(versionID string) int {
	for i, id := range s.Versions {
		if id == versionID {
			return i
		}
	}
	return -1
}
