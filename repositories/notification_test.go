package repositories

import (
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"tradegate/domain"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNotificationRepository_Enqueue_Is_FIFO(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewNotificationRepository(db, slog.Default())

	identity := domain.Identity("alice")
	at := time.Now().UTC()

	// Given three frames queued over time
	for i, text := range []string{"first", "second", "third"} {
		payload, err := json.Marshal(map[string]string{"text": text})
		req.NoError(err)
		req.NoError(repo.Enqueue(QueuedNotification{
			ID:       uuid.New(),
			Identity: identity,
			Payload:  payload,
			At:       at.Add(time.Duration(i) * time.Millisecond),
		}))
	}

	// When reading the queue back
	pending, err := repo.Pending(identity)

	// Then enqueue order is preserved
	req.NoError(err)
	req.Len(pending, 3)
	req.JSONEq(`{"text":"first"}`, string(pending[0].Payload))
	req.JSONEq(`{"text":"second"}`, string(pending[1].Payload))
	req.JSONEq(`{"text":"third"}`, string(pending[2].Payload))
}

func TestNotificationRepository_Clear_Empties_Only_One_Identity(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewNotificationRepository(db, slog.Default())

	at := time.Now().UTC()
	for _, identity := range []domain.Identity{"alice", "bob"} {
		req.NoError(repo.Enqueue(QueuedNotification{
			ID:       uuid.New(),
			Identity: identity,
			Payload:  json.RawMessage(`{"text":"hi"}`),
			At:       at,
		}))
	}

	req.NoError(repo.Clear("alice"))

	pending, err := repo.Pending("alice")
	req.NoError(err)
	req.Empty(pending)

	pending, err = repo.Pending("bob")
	req.NoError(err)
	req.Len(pending, 1)
}

func TestNotificationRepository_Pending_Unknown_Identity(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewNotificationRepository(db, slog.Default())

	pending, err := repo.Pending("nobody")

	req.NoError(err)
	req.Empty(pending)
}

func TestNotificationRepository_Queue_Survives_Reopen(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()

	db, err := badger.Open(badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	repo := NewNotificationRepository(db, slog.Default())
	req.NoError(repo.Enqueue(QueuedNotification{
		ID:       uuid.New(),
		Identity: "alice",
		Payload:  json.RawMessage(`{"text":"durable"}`),
		At:       time.Now().UTC(),
	}))
	req.NoError(db.Close())

	// The queue must be persisted independent of process lifetime
	db, err = badger.Open(badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()

	pending, err := NewNotificationRepository(db, slog.Default()).Pending("alice")
	req.NoError(err)
	req.Len(pending, 1)
	req.JSONEq(`{"text":"durable"}`, string(pending[0].Payload))
}
