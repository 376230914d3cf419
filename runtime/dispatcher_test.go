package runtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"tradegate/domain"
	"tradegate/observability"
	"tradegate/repositories"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *ConnectionRegistry, repositories.NotificationRepository) {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.Default()
	registry := NewConnectionRegistry(log)
	store := repositories.NewNotificationRepository(db, log)
	monitoring := observability.NewMonitoringManager(log)
	return NewDispatcher(registry, store, monitoring, log), registry, store
}

func TestDispatcher_Deliver_To_Live_Connection(t *testing.T) {
	req := require.New(t)
	dispatcher, registry, store := newTestDispatcher(t)
	conn := &fakeConn{}
	registry.Register("alice", conn)

	at := time.UnixMilli(1700000000000).UTC()
	err := dispatcher.Deliver(context.Background(), "alice", domain.Notification{Text: "hi", Date: at})

	req.NoError(err)
	req.Len(conn.frames, 1)
	req.Equal(notificationFrame{Text: "hi", Date: 1700000000000}, conn.frames[0])

	// Nothing touches the durable queue on the live path
	pending, err := store.Pending("alice")
	req.NoError(err)
	req.Empty(pending)
}

func TestDispatcher_Deliver_To_Absent_Identity_Queues(t *testing.T) {
	req := require.New(t)
	dispatcher, _, store := newTestDispatcher(t)

	at := time.UnixMilli(1700000000000).UTC()
	err := dispatcher.Deliver(context.Background(), "alice", domain.Notification{Text: "hi", Date: at})

	req.NoError(err)
	pending, err := store.Pending("alice")
	req.NoError(err)
	req.Len(pending, 1)
	req.JSONEq(`{"text":"hi","date":1700000000000}`, string(pending[0].Payload))
}

func TestDispatcher_Attach_Drains_In_Enqueue_Order(t *testing.T) {
	req := require.New(t)
	dispatcher, _, store := newTestDispatcher(t)
	ctx := context.Background()

	// Given two notifications queued while alice is offline
	at := time.Now().UTC()
	req.NoError(dispatcher.Deliver(ctx, "alice", domain.Notification{Text: "first", Date: at}))
	req.NoError(dispatcher.Deliver(ctx, "alice", domain.Notification{Text: "second", Date: at.Add(time.Millisecond)}))

	// When alice connects
	conn := &fakeConn{}
	dispatcher.Attach(ctx, "alice", conn)

	// Then she receives both in enqueue order and the queue is empty
	req.Len(conn.frames, 2)
	var first, second notificationFrame
	req.NoError(json.Unmarshal(conn.frames[0].(json.RawMessage), &first))
	req.NoError(json.Unmarshal(conn.frames[1].(json.RawMessage), &second))
	req.Equal("first", first.Text)
	req.Equal("second", second.Text)

	pending, err := store.Pending("alice")
	req.NoError(err)
	req.Empty(pending)
}

func TestDispatcher_Relay_Queued_Keeps_Trade_Tag(t *testing.T) {
	req := require.New(t)
	dispatcher, _, store := newTestDispatcher(t)

	err := dispatcher.Relay(context.Background(), "bob", "trade-7", "hello there")

	req.NoError(err)
	pending, err := store.Pending("bob")
	req.NoError(err)
	req.Len(pending, 1)
	req.JSONEq(`{"type":"msg","text":"hello there","tradeId":"trade-7","target":"bob"}`, string(pending[0].Payload))
}

func TestDispatcher_Broadcast_Skips_Unwritable_And_Offline(t *testing.T) {
	req := require.New(t)
	dispatcher, registry, store := newTestDispatcher(t)

	live := &fakeConn{}
	stalled := &fakeConn{notReady: true}
	registry.Register("alice", live)
	registry.Register("bob", stalled)

	dispatcher.Broadcast(context.Background(), "maintenance at noon", time.Now().UTC())

	req.Len(live.frames, 1)
	req.Empty(stalled.frames)

	// Broadcasts never land in the durable queue
	pending, err := store.Pending("carol")
	req.NoError(err)
	req.Empty(pending)
}

func TestDispatcher_Live_Send_Failure_Falls_Back_To_Queue(t *testing.T) {
	req := require.New(t)
	dispatcher, registry, store := newTestDispatcher(t)

	conn := &fakeConn{sendErr: context.DeadlineExceeded}
	registry.Register("alice", conn)

	err := dispatcher.Deliver(context.Background(), "alice", domain.Notification{Text: "hi", Date: time.Now().UTC()})

	req.NoError(err)
	pending, err := store.Pending("alice")
	req.NoError(err)
	req.Len(pending, 1)
}
