package session

import (
	"context"
	"sync"
)

// MemoryBackend is an in-process Backend for development and tests.
type MemoryBackend struct {
	mu      sync.RWMutex
	records map[string][]byte

	// FailWrites makes Set return an error, for exercising persistence
	// failure paths in tests.
	FailWrites error
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: make(map[string][]byte)}
}

// Get retrieves a session record.
func (m *MemoryBackend) Get(ctx context.Context, sessionID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.records[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Set stores a session record.
func (m *MemoryBackend) Set(ctx context.Context, sessionID string, data []byte) error {
	if m.FailWrites != nil {
		return m.FailWrites
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make([]byte, len(data))
	copy(stored, data)
	m.records[sessionID] = stored
	return nil
}
