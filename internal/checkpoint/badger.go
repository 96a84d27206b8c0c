package checkpoint

import (
	"context"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/graphwright/graphwright/internal/types"
)

// keyPrefix namespaces session snapshots inside the database.
var keyPrefix = []byte("session/")

// BadgerStore persists checkpoints in an embedded Badger database. Writes
// are synchronous transactions, so a snapshot reported as saved survives a
// crash immediately after.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens (or creates) a checkpoint database at path.
func OpenBadger(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, types.WrapError(types.CHECKPOINT_FAILED,
			fmt.Sprintf("failed to open checkpoint database at %s", path), err)
	}
	return &BadgerStore{db: db}, nil
}

// Save writes a snapshot, replacing any previous one for the session.
func (s *BadgerStore) Save(ctx context.Context, sessionID types.ID, data []byte) error {
	if err := sessionID.Validate(); err != nil {
		return types.WrapError(types.VALIDATION_FAILED, "invalid session id", err)
	}
	if err := ctx.Err(); err != nil {
		return types.WrapError(types.CHECKPOINT_FAILED, "checkpoint save cancelled", err)
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(sessionKey(sessionID), data)
	})
	if err != nil {
		return types.WrapRetryableError(types.CHECKPOINT_FAILED,
			fmt.Sprintf("failed to save checkpoint for session %s", sessionID), err)
	}
	return nil
}

// Load reads the latest snapshot for the session.
func (s *BadgerStore) Load(ctx context.Context, sessionID types.ID) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, types.WrapError(types.CHECKPOINT_FAILED, "checkpoint load cancelled", err)
	}

	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(sessionKey(sessionID))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, types.NewError(types.SESSION_NOT_FOUND,
			fmt.Sprintf("no checkpoint for session %s", sessionID))
	}
	if err != nil {
		return nil, types.WrapRetryableError(types.CHECKPOINT_FAILED,
			fmt.Sprintf("failed to load checkpoint for session %s", sessionID), err)
	}
	return data, nil
}

// Delete removes a session's snapshot. Deleting a missing session is not an
// error.
func (s *BadgerStore) Delete(ctx context.Context, sessionID types.ID) error {
	if err := ctx.Err(); err != nil {
		return types.WrapError(types.CHECKPOINT_FAILED, "checkpoint delete cancelled", err)
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(sessionKey(sessionID))
	})
	if err != nil {
		return types.WrapRetryableError(types.CHECKPOINT_FAILED,
			fmt.Sprintf("failed to delete checkpoint for session %s", sessionID), err)
	}
	return nil
}

// List returns the IDs of every checkpointed session.
func (s *BadgerStore) List(ctx context.Context) ([]types.ID, error) {
	var ids []types.ID
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = keyPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().Key()
			ids = append(ids, types.ID(key[len(keyPrefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, types.WrapRetryableError(types.CHECKPOINT_FAILED, "failed to list checkpoints", err)
	}
	return ids, nil
}

// Close releases the database.
func (s *BadgerStore) Close() error {
	if err := s.db.Close(); err != nil {
		return types.WrapError(types.CHECKPOINT_FAILED, "failed to close checkpoint database", err)
	}
	return nil
}

func sessionKey(sessionID types.ID) []byte {
	return append(append([]byte{}, keyPrefix...), sessionID.String()...)
}
