//go:generate go run go.uber.org/mock/mockgen -source=trade_service.go -destination=../mocks/mock_trade_service.go -package=mocks
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tradegate/domain"
	"tradegate/errors"
	"tradegate/repositories"
	"tradegate/runtime"
)

type ITradeService interface {
	Create(ctx context.Context, productRef string, buyer, seller domain.Identity, quantity int) (domain.Trade, error)
	Accept(ctx context.Context, tradeID uuid.UUID, caller domain.Identity) error
	Cancel(ctx context.Context, tradeID uuid.UUID, caller domain.Identity) error
	MarkProductSent(ctx context.Context, tradeID uuid.UUID, caller domain.Identity) error
	ConfirmProductReceived(ctx context.Context, tradeID uuid.UUID, caller domain.Identity) error
	Get(tradeID uuid.UUID) (domain.Trade, error)
	Transcript(tradeID uuid.UUID) ([]domain.Entry, error)
}

// TradeService drives the negotiation state machine. Guard violations are
// not hard errors: they turn into a system-authored transcript entry, the
// inline chat notice the violating party sees.
type TradeService struct {
	trades     repositories.ITradeRepository
	dispatcher *runtime.Dispatcher
	locks      *runtime.KeyedMutex
	index      *repositories.TranscriptIndex
	log        *slog.Logger
}

func NewTradeService(
	trades repositories.ITradeRepository,
	dispatcher *runtime.Dispatcher,
	locks *runtime.KeyedMutex,
	index *repositories.TranscriptIndex,
	log *slog.Logger,
) *TradeService {
	return &TradeService{trades: trades, dispatcher: dispatcher, locks: locks, index: index, log: log}
}

// Create records an externally supplied buyer offer and notifies the
// seller, durably if they are offline.
func (s *TradeService) Create(ctx context.Context, productRef string, buyer, seller domain.Identity, quantity int) (domain.Trade, error) {
	trade := domain.NewTrade(productRef, buyer, seller, quantity)
	if err := s.trades.SaveTrade(trade); err != nil {
		return domain.Trade{}, err
	}

	now := time.Now().UTC()
	notice := fmt.Sprintf("%s offered %d x %s", buyer, quantity, productRef)
	if err := s.trades.AppendEntry(trade.ID, domain.SystemEntry(notice, now)); err != nil {
		return domain.Trade{}, err
	}

	notification := domain.Notification{Text: fmt.Sprintf("New trade offer from %s", buyer), Date: now}
	if err := s.dispatcher.Deliver(ctx, seller, notification); err != nil {
		s.log.Error("Error while notifying seller of a new offer", "trade", trade.ID, "err", err)
	}
	return trade, nil
}

// Accept moves the trade to seller_accepted and tells the buyer.
func (s *TradeService) Accept(ctx context.Context, tradeID uuid.UUID, caller domain.Identity) error {
	return s.transition(ctx, tradeID, caller, "accepted the offer", func(t *domain.Trade) error {
		return t.Accept(caller)
	})
}

// Cancel terminates a still-pending offer.
func (s *TradeService) Cancel(ctx context.Context, tradeID uuid.UUID, caller domain.Identity) error {
	return s.transition(ctx, tradeID, caller, "cancelled the trade", func(t *domain.Trade) error {
		return t.Cancel(caller)
	})
}

func (s *TradeService) transition(ctx context.Context, tradeID uuid.UUID, caller domain.Identity, did string, action func(*domain.Trade) error) error {
	s.locks.Lock(tradeID.String())
	defer s.locks.Unlock(tradeID.String())

	trade, err := s.trades.GetTrade(tradeID)
	if err != nil {
		return err
	}

	if err := action(&trade); err != nil {
		return s.guardNotice(ctx, trade, caller, err)
	}
	if err := s.trades.SaveTrade(trade); err != nil {
		return err
	}

	notice := fmt.Sprintf("Seller %s", did)
	now := time.Now().UTC()
	if err := s.trades.AppendEntry(tradeID, domain.SystemEntry(notice, now)); err != nil {
		return err
	}
	return s.relayToCounterpart(ctx, trade, caller, notice)
}

// MarkProductSent appends the seller's "[product sent]" control entry.
// It never changes the stage and is idempotent: a resend yields an
// "already sent" notice instead of a second control entry.
func (s *TradeService) MarkProductSent(ctx context.Context, tradeID uuid.UUID, caller domain.Identity) error {
	s.locks.Lock(tradeID.String())
	defer s.locks.Unlock(tradeID.String())

	trade, err := s.trades.GetTrade(tradeID)
	if err != nil {
		return err
	}
	if caller != trade.Seller {
		return s.guardNotice(ctx, trade, caller, errors.ErrNotSeller)
	}
	if trade.Stage != domain.StageSellerAccepted {
		return s.guardNotice(ctx, trade, caller, errors.ErrWrongStage)
	}

	sent, err := s.controlExists(tradeID, domain.ControlProductSent)
	if err != nil {
		return err
	}
	if sent {
		return s.guardNotice(ctx, trade, caller, errors.ErrControlAlreadySent)
	}

	return s.appendControl(ctx, trade, domain.RoleSeller, domain.ControlProductSent, caller)
}

// ConfirmProductReceived appends the buyer's "[product received]" control
// entry and finalizes the trade. It requires a prior "[product sent]" and
// is itself idempotent.
func (s *TradeService) ConfirmProductReceived(ctx context.Context, tradeID uuid.UUID, caller domain.Identity) error {
	s.locks.Lock(tradeID.String())
	defer s.locks.Unlock(tradeID.String())

	trade, err := s.trades.GetTrade(tradeID)
	if err != nil {
		return err
	}
	if caller != trade.Buyer {
		return s.guardNotice(ctx, trade, caller, errors.ErrNotBuyer)
	}
	if trade.Stage != domain.StageSellerAccepted {
		return s.guardNotice(ctx, trade, caller, errors.ErrWrongStage)
	}

	sent, err := s.controlExists(tradeID, domain.ControlProductSent)
	if err != nil {
		return err
	}
	if !sent {
		return s.guardNotice(ctx, trade, caller, errors.ErrProductNotSent)
	}

	received, err := s.controlExists(tradeID, domain.ControlProductReceived)
	if err != nil {
		return err
	}
	if received {
		return s.guardNotice(ctx, trade, caller, errors.ErrControlAlreadySent)
	}

	if err := trade.Confirm(caller); err != nil {
		return s.guardNotice(ctx, trade, caller, err)
	}
	if err := s.trades.SaveTrade(trade); err != nil {
		return err
	}
	return s.appendControl(ctx, trade, domain.RoleBuyer, domain.ControlProductReceived, caller)
}

func (s *TradeService) Get(tradeID uuid.UUID) (domain.Trade, error) {
	return s.trades.GetTrade(tradeID)
}

func (s *TradeService) Transcript(tradeID uuid.UUID) ([]domain.Entry, error) {
	return s.trades.Transcript(tradeID)
}

func (s *TradeService) controlExists(tradeID uuid.UUID, kind domain.ControlKind) (bool, error) {
	transcript, err := s.trades.Transcript(tradeID)
	if err != nil {
		return false, err
	}
	for _, e := range transcript {
		if e.IsControl() && e.Control == kind {
			return true, nil
		}
	}
	return false, nil
}

func (s *TradeService) appendControl(ctx context.Context, trade domain.Trade, role domain.Role, kind domain.ControlKind, caller domain.Identity) error {
	entry := domain.ControlEntry(role, kind, time.Now().UTC())
	if err := s.trades.AppendEntry(trade.ID, entry); err != nil {
		return err
	}
	if s.index != nil {
		if err := s.index.Index(trade.ID, role, entry.Text, entry.At); err != nil {
			s.log.Debug("Error while indexing control entry", "trade", trade.ID, "err", err)
		}
	}
	return s.relayToCounterpart(ctx, trade, caller, entry.Text)
}

// guardNotice converts a guard violation into an inline system notice.
// The transcript records it and the violating caller is told; the error
// itself is absorbed.
func (s *TradeService) guardNotice(ctx context.Context, trade domain.Trade, caller domain.Identity, guardErr error) error {
	notice := noticeFor(guardErr)
	if err := s.trades.AppendEntry(trade.ID, domain.SystemEntry(notice, time.Now().UTC())); err != nil {
		return err
	}
	return s.dispatcher.Relay(ctx, caller, trade.ID.String(), notice)
}

func (s *TradeService) relayToCounterpart(ctx context.Context, trade domain.Trade, caller domain.Identity, text string) error {
	counterpart, err := trade.Counterpart(caller)
	if err != nil {
		return err
	}
	return s.dispatcher.Relay(ctx, counterpart, trade.ID.String(), text)
}

func noticeFor(guardErr error) string {
	switch guardErr {
	case errors.ErrNotSeller:
		return "Only the seller can do that"
	case errors.ErrNotBuyer:
		return "Only the buyer can do that"
	case errors.ErrWrongStage:
		return "That action is not available at this stage"
	case errors.ErrControlAlreadySent:
		return "Already sent"
	case errors.ErrProductNotSent:
		return "The product has not been marked as sent yet"
	case errors.ErrChatNotOpen:
		return "Chat is locked until the seller accepts the offer"
	case errors.ErrEmptyMessage:
		return "Empty message ignored"
	case errors.ErrDuplicateMessage:
		return "Duplicate message suppressed"
	default:
		return "Action rejected"
	}
}
