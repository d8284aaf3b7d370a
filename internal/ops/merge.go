package ops

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/hpungsan/revise/internal/errors"
	"github.com/hpungsan/revise/internal/prompt"
)

// MergeReport describes what a merge added and which incoming ids it renamed.
type MergeReport struct {
	SessionsAdded   int               `json:"sessionsAdded"`
	VersionsAdded   int               `json:"versionsAdded"`
	RenamedSessions map[string]string `json:"renamedSessions,omitempty"`
	RenamedVersions map[string]string `json:"renamedVersions,omitempty"`
}

// Merge returns the union of local and incoming. Neither input is modified.
//
// Incoming session ids that collide with local ones are renamed to
// <id>_imported_<ms>, and the incoming versions that belonged to them are
// rewritten to the new id. Version ids are then checked the same way and
// the reference inside the owning incoming session is patched in place.
// Local sessions and versions are never rewritten. Incoming settings
// override local ones field by field.
func Merge(local, incoming *prompt.Data, importedAt time.Time) (*prompt.Data, *MergeReport, error) {
	if incoming == nil || incoming.Sessions == nil || incoming.Versions == nil {
		return nil, nil, errors.NewInvalidFormat("import data must contain sessions and versions objects")
	}
	if local == nil {
		local = prompt.NewData(prompt.Settings{})
	}

	merged := local.Clone()
	merged.Ensure()
	in := incoming.Clone()
	in.Ensure()

	suffix := "_imported_" + strconv.FormatInt(prompt.Millis(importedAt), 10)
	report := &MergeReport{
		RenamedSessions: map[string]string{},
		RenamedVersions: map[string]string{},
	}

	// Sessions first: version ownership depends on the final session ids.
	sessionIDs := sortedKeys(in.Sessions)
	sessionRename := make(map[string]string, len(sessionIDs))
	for _, oldID := range sessionIDs {
		newID := oldID
		if _, taken := merged.Sessions[oldID]; taken {
			newID = uniqueID(oldID, suffix, func(id string) bool {
				_, local := merged.Sessions[id]
				_, pending := in.Sessions[id]
				return local || pending
			})
			report.RenamedSessions[oldID] = newID
		}
		sessionRename[oldID] = newID
	}

	for _, v := range in.Versions {
		if newID, ok := report.RenamedSessions[v.SessionID]; ok {
			v.SessionID = newID
		}
	}

	incomingSessions := make(map[string]*prompt.Session, len(in.Sessions))
	for _, oldID := range sessionIDs {
		s := in.Sessions[oldID]
		s.ID = sessionRename[oldID]
		for i, child := range s.Branches {
			if newID, ok := report.RenamedSessions[child]; ok {
				s.Branches[i] = newID
			}
		}
		if s.BranchedFrom != nil {
			if newID, ok := report.RenamedSessions[s.BranchedFrom.SessionID]; ok {
				s.BranchedFrom.SessionID = newID
			}
		}
		incomingSessions[s.ID] = s
		merged.Sessions[s.ID] = s
		report.SessionsAdded++
	}

	for _, oldID := range sortedKeys(in.Versions) {
		v := in.Versions[oldID]
		newID := oldID
		if _, taken := merged.Versions[oldID]; taken {
			newID = uniqueID(oldID, suffix, func(id string) bool {
				_, local := merged.Versions[id]
				_, pending := in.Versions[id]
				return local || pending
			})
			report.RenamedVersions[oldID] = newID
			patchVersionRef(incomingSessions[v.SessionID], oldID, newID)
			for _, s := range incomingSessions {
				if s.BranchedFrom != nil && s.BranchedFrom.VersionID == oldID {
					s.BranchedFrom.VersionID = newID
				}
			}
		}
		v.ID = newID
		merged.Versions[newID] = v
		report.VersionsAdded++
	}

	merged.Settings = local.Settings.Merge(incoming.Settings)

	if len(report.RenamedSessions) == 0 {
		report.RenamedSessions = nil
	}
	if len(report.RenamedVersions) == 0 {
		report.RenamedVersions = nil
	}
	return merged, report, nil
}

// uniqueID returns base+suffix, or base+suffix+"_<n>" when that is taken.
func uniqueID(base, suffix string, taken func(string) bool) string {
	candidate := base + suffix
	for n := 2; taken(candidate); n++ {
		candidate = fmt.Sprintf("%s%s_%d", base, suffix, n)
	}
	return candidate
}

// patchVersionRef replaces oldID with newID in s.Versions.
func patchVersionRef(s *prompt.Session, oldID, newID string) {
	if s == nil {
		return
	}
	for i, id := range s.Versions {
		if id == oldID {
			s.Versions[i] = newID
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
