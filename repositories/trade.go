//go:generate go run go.uber.org/mock/mockgen -source=trade.go -destination=../mocks/mock_trade_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"tradegate/domain"
	"tradegate/errors"
)

type ITradeRepository interface {
	SaveTrade(t domain.Trade) error
	GetTrade(id uuid.UUID) (domain.Trade, error)
	AppendEntry(tradeID uuid.UUID, e domain.Entry) error
	Transcript(tradeID uuid.UUID) ([]domain.Entry, error)
}

// TradeRepository persists trades and their append-only transcripts.
// A trade lives under "trade:{id}"; its transcript entries live under
// "entry:{id}:{timestamp_padded}:{uuid}" so a forward prefix scan yields
// the authoritative append order.
type TradeRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewTradeRepository(db *badger.DB, log *slog.Logger) TradeRepository {
	return TradeRepository{db: db, log: log}
}

type storedTrade struct {
	ID         string `json:"id"`
	ProductRef string `json:"product_ref"`
	Buyer      string `json:"buyer"`
	Seller     string `json:"seller"`
	Quantity   int    `json:"quantity"`
	Stage      string `json:"stage"`
}

type storedEntry struct {
	Sender  string `json:"sender"`
	Kind    string `json:"kind"`
	Text    string `json:"text"`
	Control string `json:"control,omitempty"`
	At      int64  `json:"at"`
}

func (r TradeRepository) SaveTrade(t domain.Trade) error {
	key := fmt.Sprintf("trade:%s", t.ID)
	value, err := json.Marshal(fromTrade(t))
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

func (r TradeRepository) GetTrade(id uuid.UUID) (domain.Trade, error) {
	var stored storedTrade
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(fmt.Sprintf("trade:%s", id)))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &stored)
		})
	})
	if err == badger.ErrKeyNotFound {
		return domain.Trade{}, fmt.Errorf("%w: %s", errors.ErrTradeNotFound, id)
	}
	if err != nil {
		return domain.Trade{}, err
	}
	return toTrade(stored)
}

func (r TradeRepository) AppendEntry(tradeID uuid.UUID, e domain.Entry) error {
	key := fmt.Sprintf("entry:%s:%019d:%s", tradeID, e.At.UnixNano(), uuid.New())
	value, err := json.Marshal(fromEntry(e))
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

// Transcript returns the trade's entries in append order.
func (r TradeRepository) Transcript(tradeID uuid.UUID) ([]domain.Entry, error) {
	var entries []domain.Entry
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("entry:%s:", tradeID))
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				var stored storedEntry
				if err := json.Unmarshal(value, &stored); err != nil {
					return err
				}
				entries = append(entries, toEntry(stored))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return entries, err
}

func fromTrade(t domain.Trade) storedTrade {
	return storedTrade{
		ID:         t.ID.String(),
		ProductRef: t.ProductRef,
		Buyer:      string(t.Buyer),
		Seller:     string(t.Seller),
		Quantity:   t.Quantity,
		Stage:      string(t.Stage),
	}
}

func toTrade(stored storedTrade) (domain.Trade, error) {
	id, err := uuid.Parse(stored.ID)
	if err != nil {
		return domain.Trade{}, err
	}
	return domain.Trade{
		ID:         id,
		ProductRef: stored.ProductRef,
		Buyer:      domain.Identity(stored.Buyer),
		Seller:     domain.Identity(stored.Seller),
		Quantity:   stored.Quantity,
		Stage:      domain.Stage(stored.Stage),
	}, nil
}

func fromEntry(e domain.Entry) storedEntry {
	return storedEntry{
		Sender:  string(e.Sender),
		Kind:    string(e.Kind),
		Text:    e.Text,
		Control: string(e.Control),
		At:      e.At.UnixNano(),
	}
}

func toEntry(stored storedEntry) domain.Entry {
	return domain.Entry{
		Sender:  domain.Role(stored.Sender),
		Kind:    domain.EntryKind(stored.Kind),
		Text:    stored.Text,
		Control: domain.ControlKind(stored.Control),
		At:      time.Unix(0, stored.At).UTC(),
	}
}
