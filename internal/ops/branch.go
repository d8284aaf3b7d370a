package ops

import (
	"context"
	"sort"
	"strings"

	"github.com/hpungsan/revise/internal/db"
	"github.com/hpungsan/revise/internal/errors"
	"github.com/hpungsan/revise/internal/prompt"
)

// BranchSuffix marks session ids created by branching.
const BranchSuffix = "_branch"

// BranchInput contains parameters for the CreateBranch operation.
type BranchInput struct {
	VersionID string // required: the source version
	SeedText  string // default: the source version's prompt
}

// BranchOutput contains the result of the CreateBranch operation.
type BranchOutput struct {
	BranchSessionID   string          `json:"branchSessionId"`
	OriginalSessionID string          `json:"originalSessionId"`
	BaseVersion       *prompt.Version `json:"baseVersion"`
	VersionID         string          `json:"versionId"`
}

// CreateBranch forks a new session from an existing version. The seed is
// stored as the new session's first version, a checkpoint. The source
// session is not modified; the new session records where it came from.
func CreateBranch(ctx context.Context, store db.Backend, input BranchInput) (*BranchOutput, error) {
	input.VersionID = strings.TrimSpace(input.VersionID)
	if input.VersionID == "" {
		return nil, errors.NewInvalidRequest("versionId is required")
	}

	var out *BranchOutput
	err := store.Update(ctx, func(d *prompt.Data) error {
		base, ok := d.Versions[input.VersionID]
		if !ok {
			return errors.NewNotFound("version", input.VersionID)
		}

		platform := base.Platform
		if parent, ok := d.Sessions[base.SessionID]; ok && parent.Platform != "" {
			platform = parent.Platform
		}

		now := timeNow()
		sessionID, err := prompt.NewSessionID(platform, now)
		if err != nil {
			return errors.NewInternal(err)
		}
		sessionID += BranchSuffix

		seed := input.SeedText
		if prompt.Normalize(seed) == "" {
			seed = base.Prompt
		}
		appendIn := AppendInput{
			SessionID:    sessionID,
			Prompt:       seed,
			Platform:     platform,
			IsCheckpoint: true,
		}
		if err := validateAppend(&appendIn); err != nil {
			return err
		}

		v, _, err := appendVersion(d, appendIn, now)
		if err != nil {
			return err
		}
		d.Sessions[sessionID].BranchedFrom = &prompt.Provenance{
			SessionID: base.SessionID,
			VersionID: base.ID,
		}

		out = &BranchOutput{
			BranchSessionID:   sessionID,
			OriginalSessionID: base.SessionID,
			BaseVersion:       base.Clone(),
			VersionID:         v.ID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Branches returns the sessions branched from sessionID, oldest first.
func Branches(ctx context.Context, store db.Backend, sessionID string) ([]*prompt.Session, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, errors.NewInvalidRequest("sessionId is required")
	}
	d, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}

	children := []*prompt.Session{}
	for _, s := range d.Sessions {
		if s.BranchedFrom != nil && s.BranchedFrom.SessionID == sessionID {
			children = append(children, s)
		}
	}
	sort.Slice(children, func(i, j int) bool {
		if children[i].Created != children[j].Created {
			return children[i].Created < children[j].Created
		}
		return children[i].ID < children[j].ID
	})
	return children, nil
}
