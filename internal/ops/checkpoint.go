package ops

import (
	"context"
	"strings"

	"github.com/hpungsan/revise/internal/db"
	"github.com/hpungsan/revise/internal/errors"
	"github.com/hpungsan/revise/internal/prompt"
)

// PromoteInput contains parameters for the PromoteToCheckpoint operation.
type PromoteInput struct {
	VersionID   string // required
	Name        string
	Description string
}

// PromoteOutput contains the result of the PromoteToCheckpoint operation.
type PromoteOutput struct {
	VersionID string `json:"versionId"`
	Name      string `json:"name"`
}

// PromoteToCheckpoint marks an existing version as a checkpoint.
// Unknown ids fail with NOT_FOUND and leave the store untouched.
func PromoteToCheckpoint(ctx context.Context, store db.Backend, input PromoteInput) (*PromoteOutput, error) {
	input.VersionID = strings.TrimSpace(input.VersionID)
	if input.VersionID == "" {
		return nil, errors.NewInvalidRequest("versionId is required")
	}

	err := store.Update(ctx, func(d *prompt.Data) error {
		return promote(d, input)
	})
	if err != nil {
		return nil, err
	}
	return &PromoteOutput{VersionID: input.VersionID, Name: strings.TrimSpace(input.Name)}, nil
}

func promote(d *prompt.Data, input PromoteInput) error {
	v, ok := d.Versions[input.VersionID]
	if !ok {
		return errors.NewNotFound("version", input.VersionID)
	}
	v.IsCheckpoint = true
	v.CheckpointName = strings.TrimSpace(input.Name)
	v.CheckpointDescription = strings.TrimSpace(input.Description)
	return nil
}

// CheckpointInput contains parameters for the CreateCheckpoint operation.
type CheckpointInput struct {
	SessionID   string  // required
	Prompt      string  // required
	Response    *string // optional
	Platform    string
	Name        string // optional; without it the version is not promoted
	Description string
}

// CheckpointOutput contains the result of the CreateCheckpoint operation.
type CheckpointOutput struct {
	VersionID      string `json:"versionId"`
	SessionID      string `json:"sessionId"`
	Name           string `json:"name,omitempty"`
	SessionCreated bool   `json:"sessionCreated"`
}

// CreateCheckpoint appends a checkpoint version and, when a name is given,
// promotes it with that name in the same store update.
func CreateCheckpoint(ctx context.Context, store db.Backend, input CheckpointInput) (*CheckpointOutput, error) {
	appendIn := AppendInput{
		SessionID:    input.SessionID,
		Prompt:       input.Prompt,
		Response:     input.Response,
		Platform:     input.Platform,
		IsCheckpoint: true,
	}
	if err := validateAppend(&appendIn); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)

	var out *CheckpointOutput
	err := store.Update(ctx, func(d *prompt.Data) error {
		v, created, err := appendVersion(d, appendIn, timeNow())
		if err != nil {
			return err
		}
		if name != "" {
			if err := promote(d, PromoteInput{VersionID: v.ID, Name: name, Description: input.Description}); err != nil {
				return err
			}
		}
		out = &CheckpointOutput{
			VersionID:      v.ID,
			SessionID:      v.SessionID,
			Name:           name,
			SessionCreated: created,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
