//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"tradegate/domain"
	"tradegate/errors"
	"tradegate/moderation"
	"tradegate/repositories"
	"tradegate/runtime"
)

var validate = validator.New()

// submission carries one inbound chat text through validation.
type submission struct {
	Text string `validate:"max=100"`
}

type IChatService interface {
	Submit(ctx context.Context, tradeID uuid.UUID, caller domain.Identity, text string) error
}

// ChatService validates, deduplicates, and relays free-form chat between
// the two trade parties. Everything it accepts lands in the transcript
// first, then travels to the counterpart through the dispatcher, live or
// queued.
type ChatService struct {
	trades     repositories.ITradeRepository
	dispatcher *runtime.Dispatcher
	locks      *runtime.KeyedMutex
	censor     *moderation.Censor
	index      *repositories.TranscriptIndex
	log        *slog.Logger
}

func NewChatService(
	trades repositories.ITradeRepository,
	dispatcher *runtime.Dispatcher,
	locks *runtime.KeyedMutex,
	censor *moderation.Censor,
	index *repositories.TranscriptIndex,
	log *slog.Logger,
) *ChatService {
	return &ChatService{
		trades:     trades,
		dispatcher: dispatcher,
		locks:      locks,
		censor:     censor,
		index:      index,
		log:        log,
	}
}

// Submit processes one inbound chat message.
//
// Over-length text is the only user-visible hard error; every other
// rejection becomes a system-authored transcript notice so the submitter
// sees an inline explanation instead of a failure dialog.
func (s *ChatService) Submit(ctx context.Context, tradeID uuid.UUID, caller domain.Identity, text string) error {
	if err := validate.Struct(submission{Text: text}); err != nil {
		return fmt.Errorf("%w: %d characters", errors.ErrMessageTooLong, len(text))
	}

	s.locks.Lock(tradeID.String())
	defer s.locks.Unlock(tradeID.String())

	trade, err := s.trades.GetTrade(tradeID)
	if err != nil {
		return err
	}
	role, err := trade.RoleOf(caller)
	if err != nil {
		return err
	}

	if !trade.ChatOpen() {
		return s.notice(ctx, trade, caller, errors.ErrChatNotOpen)
	}
	if strings.TrimSpace(text) == "" {
		return s.notice(ctx, trade, caller, errors.ErrEmptyMessage)
	}

	if s.censor != nil {
		text = s.censor.Apply(text)
	}

	duplicate, err := s.repeatsPrevious(tradeID, role, text)
	if err != nil {
		return err
	}
	if duplicate {
		return s.notice(ctx, trade, caller, errors.ErrDuplicateMessage)
	}

	entry := domain.ChatEntry(role, text, time.Now().UTC())
	if err := s.trades.AppendEntry(tradeID, entry); err != nil {
		return err
	}
	if s.index != nil {
		if err := s.index.Index(tradeID, role, text, entry.At); err != nil {
			s.log.Debug("Error while indexing chat entry", "trade", tradeID, "err", err)
		}
	}

	counterpart, err := trade.Counterpart(caller)
	if err != nil {
		return err
	}
	return s.dispatcher.Relay(ctx, counterpart, tradeID.String(), text)
}

// repeatsPrevious reports whether text repeats the sender's own
// immediately preceding non-system entry, the signature of a client retry.
func (s *ChatService) repeatsPrevious(tradeID uuid.UUID, role domain.Role, text string) (bool, error) {
	transcript, err := s.trades.Transcript(tradeID)
	if err != nil {
		return false, err
	}
	for i := len(transcript) - 1; i >= 0; i-- {
		e := transcript[i]
		if e.Kind == domain.EntrySystem {
			continue
		}
		if e.Sender != role {
			return false, nil
		}
		return e.Kind == domain.EntryChat && e.Text == text, nil
	}
	return false, nil
}

// notice records a rejection as an inline system entry and tells the
// submitter, without delivering anything to the counterpart.
func (s *ChatService) notice(ctx context.Context, trade domain.Trade, caller domain.Identity, reason error) error {
	text := noticeFor(reason)
	if err := s.trades.AppendEntry(trade.ID, domain.SystemEntry(text, time.Now().UTC())); err != nil {
		return err
	}
	return s.dispatcher.Relay(ctx, caller, trade.ID.String(), text)
}
