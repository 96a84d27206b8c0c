package checkpoint

import (
	"context"
	"fmt"
	"sync"

	"github.com/graphwright/graphwright/internal/types"
)

// MemoryStore is an in-process Store for tests and ephemeral runs.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[types.ID][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snapshots: make(map[types.ID][]byte)}
}

// Save writes a snapshot, replacing any previous one for the session.
func (s *MemoryStore) Save(ctx context.Context, sessionID types.ID, data []byte) error {
	if err := sessionID.Validate(); err != nil {
		return types.WrapError(types.VALIDATION_FAILED, "invalid session id", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[sessionID] = append([]byte(nil), data...)
	return nil
}

// Load reads the latest snapshot for the session.
func (s *MemoryStore) Load(ctx context.Context, sessionID types.ID) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.snapshots[sessionID]
	if !ok {
		return nil, types.NewError(types.SESSION_NOT_FOUND,
			fmt.Sprintf("no checkpoint for session %s", sessionID))
	}
	return append([]byte(nil), data...), nil
}

// Delete removes a session's snapshot.
func (s *MemoryStore) Delete(ctx context.Context, sessionID types.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, sessionID)
	return nil
}

// List returns the IDs of every checkpointed session.
func (s *MemoryStore) List(ctx context.Context) ([]types.ID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]types.ID, 0, len(s.snapshots))
	for id := range s.snapshots {
		ids = append(ids, id)
	}
	return ids, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }
