package bolt

import (
	"encoding/json"
	"fmt"
	"time"

	"loyalty-ledger/internal/core/domain"

	bolt "go.etcd.io/bbolt"
)

var bucketQueue = []byte("pending_operations")

// QueueStore implements ports.QueueStore on a local bbolt file. Operation IDs
// are ULIDs, so bbolt's byte-ordered key iteration returns operations in
// enqueue order. Every mutation is its own bolt transaction, which makes the
// queue durable after each individual removal during a drain.
type QueueStore struct {
	db *bolt.DB
}

// Open creates or opens the queue database at path.
func Open(path string) (*QueueStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open queue db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketQueue)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create queue bucket: %w", err)
	}
	return &QueueStore{db: db}, nil
}

// Close releases the underlying database file.
func (s *QueueStore) Close() error {
	return s.db.Close()
}

// Put persists a pending operation keyed by its ULID.
func (s *QueueStore) Put(op domain.QueuedOperation) error {
	raw, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("marshal queued operation: %w", err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketQueue).Put([]byte(op.ID), raw)
	})
	if err != nil {
		return fmt.Errorf("put queued operation: %w", err)
	}
	return nil
}

// Remove deletes an operation after it reached a definitive outcome.
// Removing an absent id is a no-op.
func (s *QueueStore) Remove(id string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketQueue).Delete([]byte(id))
	})
	if err != nil {
		return fmt.Errorf("remove queued operation: %w", err)
	}
	return nil
}

// List returns all pending operations in enqueue order.
func (s *QueueStore) List() ([]domain.QueuedOperation, error) {
	var ops []domain.QueuedOperation
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketQueue).ForEach(func(k, v []byte) error {
			var op domain.QueuedOperation
			if err := json.Unmarshal(v, &op); err != nil {
				return fmt.Errorf("unmarshal queued operation %s: %w", k, err)
			}
			ops = append(ops, op)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list queued operations: %w", err)
	}
	return ops, nil
}

// Len reports the number of pending operations.
func (s *QueueStore) Len() (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketQueue).Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count queued operations: %w", err)
	}
	return n, nil
}
