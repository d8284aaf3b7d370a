package ops

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hpungsan/revise/internal/classify"
	"github.com/hpungsan/revise/internal/db"
	"github.com/hpungsan/revise/internal/errors"
	"github.com/hpungsan/revise/internal/prompt"
)

// AppendInput contains parameters for the AppendVersion operation.
type AppendInput struct {
	SessionID    string  // required
	Prompt       string  // required, normalized before storing
	Response     *string // optional captured reply
	Platform     string  // default: the session's platform, else "unknown"
	IsCheckpoint bool

	// ChangeType is the caller's classification. When empty on a
	// non-checkpoint append, the prompt is classified against the
	// session's latest version.
	ChangeType classify.ChangeType
}

// AppendOutput contains the result of the AppendVersion operation.
type AppendOutput struct {
	VersionID      string              `json:"versionId"`
	SessionID      string              `json:"sessionId"`
	ChangeType     classify.ChangeType `json:"changeType,omitempty"`
	SessionCreated bool                `json:"sessionCreated"`
}

// AppendVersion records a new version, creating its session if needed.
func AppendVersion(ctx context.Context, store db.Backend, input AppendInput) (*AppendOutput, error) {
	if err := validateAppend(&input); err != nil {
		return nil, err
	}

	var out *AppendOutput
	err := store.Update(ctx, func(d *prompt.Data) error {
		v, created, err := appendVersion(d, input, timeNow())
		if err != nil {
			return err
		}
		out = &AppendOutput{
			VersionID:      v.ID,
			SessionID:      v.SessionID,
			ChangeType:     v.ChangeType,
			SessionCreated: created,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// validateAppend normalizes input in place.
func validateAppend(input *AppendInput) error {
	input.SessionID = strings.TrimSpace(input.SessionID)
	if input.SessionID == "" {
		return errors.NewInvalidRequest("sessionId is required")
	}
	input.Prompt = prompt.Normalize(input.Prompt)
	if input.Prompt == "" {
		return errors.NewInvalidRequest("prompt must not be empty")
	}
	if input.ChangeType != "" && !input.ChangeType.Valid() {
		return errors.NewInvalidRequest("unknown changeType: " + string(input.ChangeType))
	}
	input.Response = cleanOptionalString(input.Response)
	input.Platform = strings.ToLower(strings.TrimSpace(input.Platform))
	return nil
}

// appendVersion mutates d: it stores a new version and links it to its
// session, creating the session when absent. input must be validated.
func appendVersion(d *prompt.Data, input AppendInput, now time.Time) (*prompt.Version, bool, error) {
	id, err := prompt.NewVersionID(now)
	if err != nil {
		return nil, false, errors.NewInternal(err)
	}
	if _, exists := d.Versions[id]; exists {
		return nil, false, errors.NewInternal(fmt.Errorf("version id collision: %s", id))
	}

	ts := prompt.Millis(now)
	session, ok := d.Sessions[input.SessionID]
	created := !ok

	platform := input.Platform
	if platform == "" && ok {
		platform = session.Platform
	}
	platform = prompt.PlatformLabel(platform)

	v := &prompt.Version{
		ID:           id,
		SessionID:    input.SessionID,
		Prompt:       input.Prompt,
		Response:     input.Response,
		Timestamp:    ts,
		Platform:     platform,
		IsCheckpoint: input.IsCheckpoint,
	}
	if !input.IsCheckpoint {
		v.ChangeType = input.ChangeType
		if v.ChangeType == "" {
			v.ChangeType = classify.Classify(latestPrompt(d, session), input.Prompt)
		}
	}

	if created {
		session = &prompt.Session{
			ID:       input.SessionID,
			Platform: platform,
			Created:  ts,
			Versions: []string{},
			Branches: []string{},
		}
		d.Sessions[input.SessionID] = session
	}

	d.Versions[id] = v
	session.Versions = append(session.Versions, id)
	session.LastUpdated = ts
	return v, created, nil
}

// latestPrompt returns the prompt of the newest live version in s, or "".
func latestPrompt(d *prompt.Data, s *prompt.Session) string {
	if s == nil {
		return ""
	}
	for i := len(s.Versions) - 1; i >= 0; i-- {
		if v, ok := d.Versions[s.Versions[i]]; ok && v != nil {
			return v.Prompt
		}
	}
	return ""
}
