package db

import (
	"context"
	"database/sql"
	stderrors "errors"
	"sync"
	"time"

	"github.com/hpungsan/revise/internal/errors"
	"github.com/hpungsan/revise/internal/prompt"
)

// StoreKey is the kv row holding the prompt history.
const StoreKey = "promptVersions"

// SQLite is a Backend storing the whole history as one JSON value.
type SQLite struct {
	db       *sql.DB
	defaults prompt.Settings

	// mu serializes Update within this process; immediate transactions
	// serialize it across processes.
	mu sync.Mutex
}

// NewSQLite wraps an initialized database. defaults seed the settings of
// an empty store.
func NewSQLite(database *sql.DB, defaults prompt.Settings) *SQLite {
	return &SQLite{db: database, defaults: defaults}
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Load implements Backend.
func (s *SQLite) Load(ctx context.Context) (*prompt.Data, error) {
	if err := checkContext(ctx, "load"); err != nil {
		return nil, err
	}
	return s.load(ctx, s.db)
}

func (s *SQLite) load(ctx context.Context, q queryRower) (*prompt.Data, error) {
	var raw string
	err := q.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, StoreKey).Scan(&raw)
	if stderrors.Is(err, sql.ErrNoRows) {
		return prompt.NewData(s.defaults.Clone()), nil
	}
	if err != nil {
		return nil, errors.NewStorageFailure("load", err)
	}
	return decodeData([]byte(raw), s.defaults)
}

// Save implements Backend.
func (s *SQLite) Save(ctx context.Context, data *prompt.Data) error {
	if err := checkContext(ctx, "save"); err != nil {
		return err
	}
	return s.save(ctx, s.db, data)
}

func (s *SQLite) save(ctx context.Context, e execer, data *prompt.Data) error {
	raw, err := encodeData(data)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := e.ExecContext(ctx, query, StoreKey, string(raw), time.Now().UnixMilli()); err != nil {
		return errors.NewStorageFailure("save", err)
	}
	return nil
}

// RemoveAll implements Backend.
func (s *SQLite) RemoveAll(ctx context.Context) error {
	if err := checkContext(ctx, "remove"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, StoreKey); err != nil {
		return errors.NewStorageFailure("remove", err)
	}
	return nil
}

// BytesUsed implements Backend.
func (s *SQLite) BytesUsed(ctx context.Context) (int64, error) {
	var n sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT length(CAST(value AS BLOB)) FROM kv WHERE key = ?`, StoreKey).Scan(&n)
	if stderrors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.NewStorageFailure("stat", err)
	}
	return n.Int64, nil
}

// Update implements Backend.
func (s *SQLite) Update(ctx context.Context, fn func(*prompt.Data) error) error {
	if err := checkContext(ctx, "update"); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewStorageFailure("begin", err)
	}
	defer tx.Rollback() //nolint:errcheck

	data, err := s.load(ctx, tx)
	if err != nil {
		return err
	}
	if err := fn(data); err != nil {
		return err
	}
	if err := s.save(ctx, tx, data); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.NewStorageFailure("commit", err)
	}
	return nil
}
