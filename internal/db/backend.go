package db

import (
	"context"
	"encoding/json"

	"github.com/hpungsan/revise/internal/errors"
	"github.com/hpungsan/revise/internal/prompt"
)

// Backend is the persistence contract for the prompt history store.
// Every method fails with a STORAGE_FAILURE error when the underlying
// medium rejects the read or write.
type Backend interface {
	// Load returns the stored data, or an empty store with default settings.
	Load(ctx context.Context) (*prompt.Data, error)

	// Save replaces the stored data.
	Save(ctx context.Context, data *prompt.Data) error

	// RemoveAll deletes the stored data.
	RemoveAll(ctx context.Context) error

	// BytesUsed returns the encoded size of the stored data.
	BytesUsed(ctx context.Context) (int64, error)

	// Update performs load, fn, save as one atomic step. When fn returns an
	// error nothing is written and the error is returned unchanged.
	Update(ctx context.Context, fn func(*prompt.Data) error) error
}

func encodeData(d *prompt.Data) ([]byte, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, errors.NewStorageFailure("encode", err)
	}
	return b, nil
}

// decodeData parses a stored blob. Settings absent from the blob take
// their value from defaults.
func decodeData(raw []byte, defaults prompt.Settings) (*prompt.Data, error) {
	var d prompt.Data
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, errors.NewStorageFailure("decode", err)
	}
	d.Ensure()
	d.Settings = defaults.Merge(d.Settings)
	return &d, nil
}

func checkContext(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return errors.NewCancelled(op)
	}
	return nil
}
