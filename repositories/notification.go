//go:generate go run go.uber.org/mock/mockgen -source=notification.go -destination=../mocks/mock_notification_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"tradegate/domain"
)

type INotificationRepository interface {
	Enqueue(q QueuedNotification) error
	Pending(identity domain.Identity) ([]QueuedNotification, error)
	Clear(identity domain.Identity) error
}

// NotificationRepository is the durable per-identity FIFO queue of
// undelivered frames. It survives process restarts; entries are removed
// only when the identity reconnects and the queue is drained.
type NotificationRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewNotificationRepository(db *badger.DB, log *slog.Logger) NotificationRepository {
	return NotificationRepository{db: db, log: log}
}

// QueuedNotification holds the exact wire frame to replay on reconnect.
// Keeping the encoded frame (rather than re-encoding on drain) means a
// queued chat relay keeps its trade tag and a queued notification keeps
// its original date.
type QueuedNotification struct {
	ID       uuid.UUID
	Identity domain.Identity
	Payload  json.RawMessage
	At       time.Time
}

type storedNotification struct {
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
	At      int64           `json:"at"`
}

// Enqueue persists a frame at the tail of the identity's queue.
// The key is formatted as "queue:{identity}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Prevent data loss by using UUID as a collision disconnector if two frames
//     arrive at the same nanosecond.
func (r NotificationRepository) Enqueue(q QueuedNotification) error {
	key := fmt.Sprintf("queue:%s:%019d:%s", q.Identity, q.At.UnixNano(), q.ID)
	value, err := json.Marshal(storedNotification{
		ID:      q.ID.String(),
		Payload: q.Payload,
		At:      q.At.UnixNano(),
	})
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

// Pending returns the identity's queued frames in enqueue order.
// Thanks to the padded timestamp in the key, a forward prefix scan is
// already FIFO.
func (r NotificationRepository) Pending(identity domain.Identity) ([]QueuedNotification, error) {
	var queued []QueuedNotification
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("queue:%s:", identity))
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				var stored storedNotification
				if err := json.Unmarshal(value, &stored); err != nil {
					return err
				}
				id, err := uuid.Parse(stored.ID)
				if err != nil {
					return err
				}
				queued = append(queued, QueuedNotification{
					ID:       id,
					Identity: identity,
					Payload:  stored.Payload,
					At:       time.Unix(0, stored.At).UTC(),
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return queued, err
}

// Clear deletes every queued frame for the identity.
// Called after a drain; there is no per-frame acknowledgement, so a crash
// between send and clear loses in-flight frames (at-most-once delivery).
func (r NotificationRepository) Clear(identity domain.Identity) error {
	return r.db.Update(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("queue:%s:", identity))
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: false})
		defer it.Close()

		var keys [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}
