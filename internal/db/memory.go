package db

import (
	"context"
	"sync"

	"github.com/hpungsan/revise/internal/prompt"
)

// Memory is an in-process Backend. Data is deep-copied on every
// boundary so callers never share state with the store.
type Memory struct {
	mu       sync.Mutex
	data     *prompt.Data
	defaults prompt.Settings
}

// NewMemory returns an empty in-memory backend.
func NewMemory(defaults prompt.Settings) *Memory {
	return &Memory{defaults: defaults}
}

func (m *Memory) current() *prompt.Data {
	if m.data == nil {
		return prompt.NewData(m.defaults.Clone())
	}
	return m.data.Clone()
}

// Load implements Backend.
func (m *Memory) Load(ctx context.Context) (*prompt.Data, error) {
	if err := checkContext(ctx, "load"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current(), nil
}

// Save implements Backend.
func (m *Memory) Save(ctx context.Context, data *prompt.Data) error {
	if err := checkContext(ctx, "save"); err != nil {
		return err
	}
	// Round-trip through the encoder so Memory rejects what SQLite rejects.
	raw, err := encodeData(data)
	if err != nil {
		return err
	}
	decoded, err := decodeData(raw, m.defaults)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = decoded
	return nil
}

// RemoveAll implements Backend.
func (m *Memory) RemoveAll(ctx context.Context) error {
	if err := checkContext(ctx, "remove"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = nil
	return nil
}

// BytesUsed implements Backend.
func (m *Memory) BytesUsed(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return 0, nil
	}
	raw, err := encodeData(m.data)
	if err != nil {
		return 0, err
	}
	return int64(len(raw)), nil
}

// Update implements Backend.
func (m *Memory) Update(ctx context.Context, fn func(*prompt.Data) error) error {
	if err := checkContext(ctx, "update"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data := m.current()
	if err := fn(data); err != nil {
		return err
	}
	data.Ensure()
	data.Settings = m.defaults.Merge(data.Settings)
	m.data = data
	return nil
}
