package db

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/revise/internal/errors"
	"github.com/hpungsan/revise/internal/prompt"
)

func intPtr(n int) *int { return &n }

func testDefaults() prompt.Settings {
	on := true
	return prompt.Settings{
		AutoSave:                  &on,
		CheckpointIntervalMinutes: intPtr(5),
		MaxVersions:               intPtr(1000),
	}
}

// backends returns every Backend implementation under a fresh store.
func backends(t *testing.T) map[string]Backend {
	t.Helper()

	database, err := Init(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	return map[string]Backend{
		"sqlite": NewSQLite(database, testDefaults()),
		"memory": NewMemory(testDefaults()),
	}
}

func sampleData() *prompt.Data {
	d := prompt.NewData(prompt.Settings{})
	d.Sessions["s1"] = &prompt.Session{ID: "s1", Platform: "claude", Created: 1, LastUpdated: 2, Versions: []string{"v1"}, Branches: []string{}}
	d.Versions["v1"] = &prompt.Version{ID: "v1", SessionID: "s1", Prompt: "hello", Timestamp: 2, Platform: "claude"}
	return d
}

func TestBackend_LoadEmptyDefault(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			d, err := b.Load(context.Background())
			require.NoError(t, err)
			assert.NotNil(t, d.Sessions)
			assert.NotNil(t, d.Versions)
			assert.Empty(t, d.Sessions)
			assert.Empty(t, d.Versions)
			assert.True(t, d.Settings.AutoSaveEnabled())
			assert.Equal(t, 1000, d.Settings.VersionLimit())

			n, err := b.BytesUsed(context.Background())
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestBackend_SaveLoad(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, b.Save(ctx, sampleData()))

			d, err := b.Load(ctx)
			require.NoError(t, err)
			require.Contains(t, d.Sessions, "s1")
			assert.Equal(t, []string{"v1"}, d.Sessions["s1"].Versions)
			assert.Equal(t, "hello", d.Versions["v1"].Prompt)

			// Settings missing from the saved blob are filled from defaults.
			require.NotNil(t, d.Settings.MaxVersions)
			assert.Equal(t, 1000, *d.Settings.MaxVersions)

			n, err := b.BytesUsed(ctx)
			require.NoError(t, err)
			assert.Positive(t, n)
		})
	}
}

func TestBackend_LoadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, b.Save(ctx, sampleData()))

			d, err := b.Load(ctx)
			require.NoError(t, err)
			d.Versions["v1"].Prompt = "mutated"

			again, err := b.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, "hello", again.Versions["v1"].Prompt)
		})
	}
}

func TestBackend_RemoveAll(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, b.Save(ctx, sampleData()))
			require.NoError(t, b.RemoveAll(ctx))

			d, err := b.Load(ctx)
			require.NoError(t, err)
			assert.Empty(t, d.Sessions)
			assert.Empty(t, d.Versions)
		})
	}
}

func TestBackend_UpdateAbortsOnError(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, b.Save(ctx, sampleData()))

			want := errors.NewNotFound("version", "missing")
			err := b.Update(ctx, func(d *prompt.Data) error {
				d.Versions["v1"].Prompt = "partial"
				return want
			})
			assert.Same(t, want, err)

			d, err := b.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, "hello", d.Versions["v1"].Prompt)
		})
	}
}

func TestBackend_UpdateConcurrent(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			const writers = 20

			var wg sync.WaitGroup
			errs := make(chan error, writers)
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					errs <- b.Update(ctx, func(d *prompt.Data) error {
						id := fmt.Sprintf("v%02d", i)
						d.Versions[id] = &prompt.Version{ID: id, SessionID: "s", Prompt: id}
						return nil
					})
				}(i)
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				require.NoError(t, err)
			}

			// No read-modify-write cycle may drop another's write.
			d, err := b.Load(ctx)
			require.NoError(t, err)
			assert.Len(t, d.Versions, writers)
		})
	}
}

func TestBackend_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := b.Load(ctx)
			assert.True(t, errors.Is(err, errors.ErrCancelled))

			err = b.Update(ctx, func(*prompt.Data) error { return nil })
			assert.True(t, errors.Is(err, errors.ErrCancelled))
		})
	}
}

func TestSQLite_CorruptBlobIsStorageFailure(t *testing.T) {
	database, err := Init(t.TempDir())
	require.NoError(t, err)
	defer database.Close()

	_, err = database.Exec(`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, 0)`, StoreKey, "{not json")
	require.NoError(t, err)

	_, err = NewSQLite(database, testDefaults()).Load(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrStorageFailure))
}

func TestSQLite_ClosedDatabaseIsStorageFailure(t *testing.T) {
	database, err := Init(t.TempDir())
	require.NoError(t, err)
	store := NewSQLite(database, testDefaults())
	database.Close()

	err = store.Save(context.Background(), sampleData())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrStorageFailure))
}
