package runtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tradegate/contract"
	"tradegate/domain"
	"tradegate/observability"
	"tradegate/repositories"
)

// notificationFrame is the unicast wire format.
type notificationFrame struct {
	Text string `json:"text"`
	Date int64  `json:"date"`
}

// broadcastFrame is the all-connections wire format.
type broadcastFrame struct {
	Text string `json:"text"`
	Time int64  `json:"time"`
}

// relayFrame carries one chat message to the trade counterpart.
type relayFrame struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	TradeID string `json:"tradeId"`
	Target  string `json:"target"`
}

// Dispatcher routes frames either to a live connection or to the durable
// per-identity queue. Delivery is at-most-once: there is no client
// acknowledgement, so a frame removed from the queue and lost on a dying
// socket stays lost.
type Dispatcher struct {
	registry   *ConnectionRegistry
	store      repositories.INotificationRepository
	monitoring *observability.MonitoringManager
	log        *slog.Logger
}

func NewDispatcher(
	registry *ConnectionRegistry,
	store repositories.INotificationRepository,
	monitoring *observability.MonitoringManager,
	log *slog.Logger,
) *Dispatcher {
	return &Dispatcher{registry: registry, store: store, monitoring: monitoring, log: log}
}

// Deliver sends the notification to the identity right away when a
// writable connection exists, otherwise appends it to the durable queue.
// A queue write failure is logged and swallowed: the notification is
// considered lost rather than retried.
func (d *Dispatcher) Deliver(ctx context.Context, identity domain.Identity, n domain.Notification) error {
	frame := notificationFrame{Text: n.Text, Date: n.Date.UnixMilli()}
	return d.dispatch(ctx, identity, frame, n.Date)
}

// Relay pushes a chat message to the trade counterpart, tagged with the
// trade id so the client can route it, live or queued.
func (d *Dispatcher) Relay(ctx context.Context, target domain.Identity, tradeID, text string) error {
	frame := relayFrame{Type: "msg", Text: text, TradeID: tradeID, Target: string(target)}
	return d.dispatch(ctx, target, frame, time.Now().UTC())
}

func (d *Dispatcher) dispatch(_ context.Context, identity domain.Identity, frame any, at time.Time) error {
	if conn, ok := d.registry.Get(identity); ok && conn.Ready() {
		if err := conn.Send(frame); err == nil {
			d.monitoring.AddDelivered()
			return nil
		}
		d.log.Debug("Live send failed, falling back to queue", "identity", identity)
	}

	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	err = d.store.Enqueue(repositories.QueuedNotification{
		ID:       uuid.New(),
		Identity: identity,
		Payload:  payload,
		At:       at,
	})
	if err != nil {
		// Known design gap: the offline path has no retry, the frame is lost.
		d.log.Error("Error while queueing frame, frame lost", "identity", identity, "err", err)
		d.monitoring.AddDroppedFrame()
		return nil
	}
	d.monitoring.AddQueued()
	return nil
}

// Broadcast sends one message to every live connection. Connections not
// ready for writes are skipped; offline identities never receive
// broadcasts retroactively, the durable queue is not involved.
func (d *Dispatcher) Broadcast(_ context.Context, text string, at time.Time) {
	frame := broadcastFrame{Text: text, Time: at.UnixMilli()}
	for _, conn := range d.registry.Conns() {
		if !conn.Ready() {
			continue
		}
		if err := conn.Send(frame); err != nil {
			d.log.Debug("Error while broadcasting to connection", "err", err)
		}
	}
	d.monitoring.AddBroadcast()
}

// Attach registers a fresh authenticated connection and drains the
// identity's durable queue over it in enqueue order, then clears the
// queue. The drain is fire and forget: send errors are logged, the queue
// is cleared regardless.
func (d *Dispatcher) Attach(_ context.Context, identity domain.Identity, conn contract.Conn) {
	d.registry.Register(identity, conn)

	pending, err := d.store.Pending(identity)
	if err != nil {
		d.log.Error("Error while reading pending queue", "identity", identity, "err", err)
		return
	}
	if len(pending) == 0 {
		return
	}

	for _, queued := range pending {
		if err := conn.Send(queued.Payload); err != nil {
			d.log.Debug("Error while draining frame", "identity", identity, "err", err)
		}
	}
	if err := d.store.Clear(identity); err != nil {
		d.log.Error("Error while clearing drained queue", "identity", identity, "err", err)
		return
	}
	d.monitoring.AddDrained(uint64(len(pending)))
	d.log.Info("Drained pending frames", "identity", identity, "count", len(pending))
}

// Detach drops the identity's mapping when its connection closes, so
// presence immediately reflects reality.
func (d *Dispatcher) Detach(identity domain.Identity, conn contract.Conn) {
	d.registry.Unregister(identity, conn)
}
