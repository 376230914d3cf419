package ws

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"tradegate/contract"
	"tradegate/domain"
	"tradegate/errors"
	"tradegate/observability"
	"tradegate/repositories"
	"tradegate/runtime"
	"tradegate/services"

	"log/slog"
)

type fakeGate struct {
	identities map[string]domain.Identity
}

func (g *fakeGate) Verify(_ context.Context, credential string) (domain.Identity, error) {
	identity, ok := g.identities[credential]
	if !ok {
		return "", fmt.Errorf("%w: unknown credential", errors.ErrHandshakeRejected)
	}
	return identity, nil
}

type harness struct {
	url        string
	gate       *fakeGate
	dispatcher *runtime.Dispatcher
	registry   *runtime.ConnectionRegistry
	trades     *services.TradeService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := slog.Default()

	options := badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR)
	db, err := badger.Open(options)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	registry := runtime.NewConnectionRegistry(log)
	store := repositories.NewNotificationRepository(db, log)
	tradeRepo := repositories.NewTradeRepository(db, log)
	monitoring := observability.NewMonitoringManager(log)
	dispatcher := runtime.NewDispatcher(registry, store, monitoring, log)
	locks := runtime.NewKeyedMutex()
	trades := services.NewTradeService(tradeRepo, dispatcher, locks, nil, log)
	chat := services.NewChatService(tradeRepo, dispatcher, locks, nil, nil, log)

	gate := &fakeGate{identities: map[string]domain.Identity{}}
	server := NewServer(gate, dispatcher, trades, chat, monitoring,
		time.Second, 5*time.Second, time.Second, log)

	ts := httptest.NewServer(http.HandlerFunc(server.Handle))
	t.Cleanup(ts.Close)

	return &harness{
		url:        "ws" + strings.TrimPrefix(ts.URL, "http"),
		gate:       gate,
		dispatcher: dispatcher,
		registry:   registry,
		trades:     trades,
	}
}

func (h *harness) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(h.url+"?token="+token, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitPresent(t *testing.T, registry *runtime.ConnectionRegistry, identity domain.Identity) {
	t.Helper()
	require.Eventually(t, func() bool {
		return registry.IsPresent(identity)
	}, time.Second, 10*time.Millisecond)
}

func TestServer_Rejects_Unknown_Credential_With_Auth_Close_Code(t *testing.T) {
	// Given a gateway that knows no credential at all
	h := newHarness(t)

	// When a client connects with a bogus token
	conn, _, err := websocket.DefaultDialer.Dial(h.url+"?token=bogus", nil)
	require.NoError(t, err)
	defer conn.Close()

	// Then the socket is closed with the dedicated rejection code
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	require.True(t, ok, "expected a close error, got %v", err)
	require.Equal(t, contract.CloseAuthRejected, closeErr.Code)
	require.False(t, h.registry.IsPresent("anyone"))
}

func TestServer_Delivers_Live_Notification_To_Connected_Client(t *testing.T) {
	// Given alice connected through the gateway
	h := newHarness(t)
	h.gate.identities["alice-token"] = "alice"
	conn := h.dial(t, "alice-token")
	waitPresent(t, h.registry, "alice")

	// When an administrative notification targets alice
	sentAt := time.Unix(0, 1700000000000*int64(time.Millisecond)).UTC()
	err := h.dispatcher.Deliver(context.Background(), "alice", domain.Notification{Text: "hello", Date: sentAt})
	require.NoError(t, err)

	// Then the frame arrives with the epoch-milliseconds timestamp
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame struct {
		Text string `json:"text"`
		Date int64  `json:"date"`
	}
	require.NoError(t, conn.ReadJSON(&frame))
	require.Equal(t, "hello", frame.Text)
	require.Equal(t, int64(1700000000000), frame.Date)
}

func TestServer_Routes_Accept_Frame_To_The_Trade(t *testing.T) {
	// Given a pending offer from bob to seller alice
	h := newHarness(t)
	h.gate.identities["alice-token"] = "alice"
	trade, err := h.trades.Create(context.Background(), "sword-123", "bob", "alice", 1)
	require.NoError(t, err)

	conn := h.dial(t, "alice-token")
	waitPresent(t, h.registry, "alice")

	// When alice sends an accept frame over the socket
	err = conn.WriteJSON(map[string]string{"type": "accept", "tradeId": trade.ID.String()})
	require.NoError(t, err)

	// Then the trade moves to the accepted stage
	require.Eventually(t, func() bool {
		updated, getErr := h.trades.Get(trade.ID)
		return getErr == nil && updated.Stage == domain.StageSellerAccepted
	}, 2*time.Second, 20*time.Millisecond)
}

func TestServer_Reports_Oversized_Message_Back_To_Sender(t *testing.T) {
	// Given an accepted trade with alice connected as the seller
	h := newHarness(t)
	h.gate.identities["alice-token"] = "alice"
	trade, err := h.trades.Create(context.Background(), "sword-123", "bob", "alice", 1)
	require.NoError(t, err)
	require.NoError(t, h.trades.Accept(context.Background(), trade.ID, "alice"))

	conn := h.dial(t, "alice-token")
	waitPresent(t, h.registry, "alice")

	// When alice submits a message over the 100-character limit
	tooLong := strings.Repeat("x", 101)
	err = conn.WriteJSON(map[string]string{"type": "msg", "tradeId": trade.ID.String(), "text": tooLong})
	require.NoError(t, err)

	// Then she receives an error frame and the counterpart receives nothing
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame struct {
		Type  string `json:"type"`
		Error string `json:"error"`
	}
	require.NoError(t, conn.ReadJSON(&frame))
	require.Equal(t, "error", frame.Type)
	require.Contains(t, frame.Error, "100")
}

func TestServer_Replaces_Previous_Session_Of_The_Same_Identity(t *testing.T) {
	// Given alice already connected once
	h := newHarness(t)
	h.gate.identities["alice-token"] = "alice"
	first := h.dial(t, "alice-token")
	waitPresent(t, h.registry, "alice")

	// When alice connects again
	second := h.dial(t, "alice-token")

	// Then the first socket is closed with the replacement code
	_ = first.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := first.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	require.True(t, ok, "expected a close error, got %v", err)
	require.Equal(t, contract.CloseSessionReplaced, closeErr.Code)

	// And the second session still receives deliveries
	err = h.dispatcher.Deliver(context.Background(), "alice", domain.Notification{Text: "still here", Date: time.Now().UTC()})
	require.NoError(t, err)
	_ = second.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame struct {
		Text string `json:"text"`
	}
	require.NoError(t, second.ReadJSON(&frame))
	require.Equal(t, "still here", frame.Text)
}
