package store

import (
	"context"
	"sync"
)

// Memory holds the save in process. Used when persistence is turned off and
// in tests.
type Memory struct {
	mu       sync.Mutex
	snapshot []byte
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Persist(_ context.Context, snapshot []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot = append([]byte(nil), snapshot...)
	return nil
}

func (m *Memory) Retrieve(context.Context) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snapshot == nil {
		return nil, false, nil
	}
	return append([]byte(nil), m.snapshot...), true, nil
}
