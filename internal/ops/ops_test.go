package ops

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/revise/internal/config"
	"github.com/hpungsan/revise/internal/db"
	"github.com/hpungsan/revise/internal/errors"
	"github.com/hpungsan/revise/internal/prompt"
)

const (
	oceanPrompt = "Write a poem about the ocean"
	moonPrompt  = "Write a poem about the ocean and the moon"
	listPrompt  = "List five programming languages"
)

// newTestStore returns a SQLite backend in a fresh temp dir.
func newTestStore(t *testing.T) *db.SQLite {
	t.Helper()
	database, err := db.Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return db.NewSQLite(database, config.DefaultConfig().Settings())
}

// fixedClock pins timeNow for the duration of the test, advancing by
// one millisecond per call so timestamps stay distinct.
func fixedClock(t *testing.T, start time.Time) {
	t.Helper()
	current := start
	timeNow = func() time.Time {
		current = current.Add(time.Millisecond)
		return current
	}
	t.Cleanup(func() { timeNow = time.Now })
}

// failingBackend rejects every operation with STORAGE_FAILURE.
type failingBackend struct{}

func (failingBackend) fail(op string) error {
	return errors.NewStorageFailure(op, fmt.Errorf("quota exceeded"))
}

func (b failingBackend) Load(context.Context) (*prompt.Data, error) { return nil, b.fail("load") }
func (b failingBackend) Save(context.Context, *prompt.Data) error   { return b.fail("save") }
func (b failingBackend) RemoveAll(context.Context) error            { return b.fail("remove") }
func (b failingBackend) BytesUsed(context.Context) (int64, error)   { return 0, b.fail("stat") }
func (b failingBackend) Update(context.Context, func(*prompt.Data) error) error {
	return b.fail("update")
}

func mustAppend(t *testing.T, store db.Backend, sessionID, text string) string {
	t.Helper()
	out, err := AppendVersion(context.Background(), store, AppendInput{
		SessionID: sessionID,
		Prompt:    text,
		Platform:  "claude",
	})
	require.NoError(t, err)
	return out.VersionID
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 50, clampLimit(0, 50, 1000))
	assert.Equal(t, 50, clampLimit(-3, 50, 1000))
	assert.Equal(t, 7, clampLimit(7, 50, 1000))
	assert.Equal(t, 1000, clampLimit(5000, 50, 1000))
}

func TestStorageFailurePropagates(t *testing.T) {
	ctx := context.Background()
	var store failingBackend

	calls := map[string]func() error{
		"append": func() error {
			_, err := AppendVersion(ctx, store, AppendInput{SessionID: "s", Prompt: "p"})
			return err
		},
		"history": func() error {
			_, err := GetHistory(ctx, store, HistoryInput{SessionID: "s"})
			return err
		},
		"promote": func() error {
			_, err := PromoteToCheckpoint(ctx, store, PromoteInput{VersionID: "v"})
			return err
		},
		"branch": func() error {
			_, err := CreateBranch(ctx, store, BranchInput{VersionID: "v"})
			return err
		},
		"import": func() error {
			_, err := ImportData(ctx, store, []byte(`{"data":{"sessions":{},"versions":{}}}`))
			return err
		},
		"stats": func() error {
			_, err := Stats(ctx, store)
			return err
		},
		"clear": func() error {
			_, err := Clear(ctx, store)
			return err
		},
	}

	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			err := call()
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrStorageFailure), "got %v", err)
		})
	}
}
