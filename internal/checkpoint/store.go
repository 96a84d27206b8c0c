// Package checkpoint persists session snapshots so a session survives
// process restarts and human-input suspensions. The store works on opaque
// bytes; serialization belongs to the session layer.
package checkpoint

import (
	"context"

	"github.com/graphwright/graphwright/internal/types"
)

// Store is durable keyed storage for session snapshots.
type Store interface {
	// Save writes a snapshot, replacing any previous one for the session.
	Save(ctx context.Context, sessionID types.ID, data []byte) error

	// Load reads the latest snapshot for the session. Missing sessions
	// return a NOT_FOUND error.
	Load(ctx context.Context, sessionID types.ID) ([]byte, error)

	// Delete removes a session's snapshot.
	Delete(ctx context.Context, sessionID types.ID) error

	// List returns the IDs of every checkpointed session.
	List(ctx context.Context) ([]types.ID, error)

	// Close releases the store's resources.
	Close() error
}
