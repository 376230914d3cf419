package ws

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"tradegate/auth"
	"tradegate/contract"
	"tradegate/domain"
	"tradegate/errors"
	"tradegate/observability"
	"tradegate/runtime"
	"tradegate/services"
)

const (
	frameMsg      = "msg"
	frameAccept   = "accept"
	frameCancel   = "cancel"
	frameSent     = "sent"
	frameReceived = "received"
)

// inboundFrame is the single envelope clients send over the socket.
type inboundFrame struct {
	Type    string `json:"type"`
	TradeID string `json:"tradeId"`
	Text    string `json:"text"`
}

type errorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// Server upgrades HTTP requests to sockets, runs the handshake against
// the external authority and pumps inbound frames into the services.
type Server struct {
	gate       auth.IGate
	dispatcher *runtime.Dispatcher
	trades     services.ITradeService
	chat       services.IChatService
	monitoring *observability.MonitoringManager
	upgrader   websocket.Upgrader

	writeTimeout time.Duration
	pongTimeout  time.Duration
	pingInterval time.Duration
	maxFrameSize int64
	log          *slog.Logger
}

func NewServer(
	gate auth.IGate,
	dispatcher *runtime.Dispatcher,
	trades services.ITradeService,
	chat services.IChatService,
	monitoring *observability.MonitoringManager,
	writeTimeout, pongTimeout, pingInterval time.Duration,
	log *slog.Logger,
) *Server {
	return &Server{
		gate:       gate,
		dispatcher: dispatcher,
		trades:     trades,
		chat:       chat,
		monitoring: monitoring,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		writeTimeout: writeTimeout,
		pongTimeout:  pongTimeout,
		pingInterval: pingInterval,
		maxFrameSize: 4096,
		log:          log,
	}
}

// Handle is the /ws endpoint. The credential travels as a query
// parameter because browsers cannot set headers on websocket upgrades.
func (s *Server) Handle(w http.ResponseWriter, r *http.Request) {
	socket, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("Websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	identity, err := s.gate.Verify(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		s.monitoring.AddHandshakeReject()
		s.log.Info("Handshake rejected", "remote", r.RemoteAddr, "err", err)
		s.rejectSocket(socket)
		return
	}

	client := NewClient(identity, socket, s.writeTimeout, s.log)
	s.dispatcher.Attach(r.Context(), identity, client)
	s.log.Info("Client connected", "identity", identity, "remote", r.RemoteAddr)

	pingDone := make(chan struct{})
	go s.pingLoop(client, pingDone)

	s.readLoop(r.Context(), identity, client, socket)

	close(pingDone)
	s.dispatcher.Detach(identity, client)
	_ = client.Close(websocket.CloseNormalClosure, "")
	s.log.Info("Client disconnected", "identity", identity)
}

// rejectSocket closes a freshly upgraded socket with the dedicated
// close code so the client can tell an auth failure from a network drop.
func (s *Server) rejectSocket(socket *websocket.Conn) {
	message := websocket.FormatCloseMessage(contract.CloseAuthRejected, "handshake rejected")
	deadline := time.Now().Add(s.writeTimeout)
	_ = socket.WriteControl(websocket.CloseMessage, message, deadline)
	_ = socket.Close()
}

func (s *Server) pingLoop(client *Client, done <-chan struct{}) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := client.Ping(); err != nil {
				return
			}
		}
	}
}

func (s *Server) readLoop(ctx context.Context, identity domain.Identity, client *Client, socket *websocket.Conn) {
	socket.SetReadLimit(s.maxFrameSize)
	_ = socket.SetReadDeadline(time.Now().Add(s.pongTimeout))
	socket.SetPongHandler(func(string) error {
		return socket.SetReadDeadline(time.Now().Add(s.pongTimeout))
	})

	for {
		_, payload, err := socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("Read loop ended", "identity", identity, "err", err)
			}
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			s.log.Debug("Dropping malformed frame", "identity", identity, "err", err)
			continue
		}
		s.handleFrame(ctx, identity, client, frame)
	}
}

func (s *Server) handleFrame(ctx context.Context, identity domain.Identity, client *Client, frame inboundFrame) {
	tradeID, err := uuid.Parse(frame.TradeID)
	if err != nil {
		s.log.Debug("Dropping frame without a valid trade id", "identity", identity, "type", frame.Type)
		return
	}

	switch frame.Type {
	case frameMsg:
		err = s.chat.Submit(ctx, tradeID, identity, frame.Text)
	case frameAccept:
		err = s.trades.Accept(ctx, tradeID, identity)
	case frameCancel:
		err = s.trades.Cancel(ctx, tradeID, identity)
	case frameSent:
		err = s.trades.MarkProductSent(ctx, tradeID, identity)
	case frameReceived:
		err = s.trades.ConfirmProductReceived(ctx, tradeID, identity)
	default:
		s.log.Debug("Dropping frame of unknown type", "identity", identity, "type", frame.Type)
		return
	}

	if err != nil {
		s.log.Debug("Frame rejected", "identity", identity, "type", frame.Type, "err", err)
		if sendErr := client.Send(errorFrame{Type: "error", Error: userFacing(err)}); sendErr != nil {
			s.log.Debug("Error while reporting rejection", "identity", identity, "err", sendErr)
		}
	}
}

// userFacing keeps internal failure details off the wire.
func userFacing(err error) string {
	switch {
	case stderrors.Is(err, errors.ErrMessageTooLong):
		return "message exceeds 100 characters"
	case stderrors.Is(err, errors.ErrTradeNotFound):
		return "unknown trade"
	case stderrors.Is(err, errors.ErrNotAParticipant):
		return "not a participant of this trade"
	default:
		return "request rejected"
	}
}
