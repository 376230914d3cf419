// Package domain contains core concepts of the trading gateway.
// This file defines the Trade aggregate and its negotiation stages.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"github.com/google/uuid"

	"tradegate/errors"
)

// Identity is the stable unique name of a participant, independent of any
// particular connection. It is a foreign key into the external user store.
type Identity string

// Stage is the current position of a Trade in its negotiation state machine.
type Stage string

const (
	StageBuyerOffered   Stage = "buyer_offered"
	StageSellerAccepted Stage = "seller_accepted"
	StageBuyerConfirmed Stage = "buyer_confirmed"
	StageCancelled      Stage = "cancelled"
)

// Trade is the negotiation between a buyer and a seller over a product.
// Its stage is monotonic except for the single early cancel exit from
// StageBuyerOffered: once accepted or confirmed it can never regress.
type Trade struct {
	ID         uuid.UUID
	ProductRef string
	Buyer      Identity
	Seller     Identity
	Quantity   int
	Stage      Stage
}

// NewTrade creates a trade in its initial offered stage.
// The offer itself is an external buyer action; the gateway only negotiates it.
func NewTrade(productRef string, buyer, seller Identity, quantity int) Trade {
	return Trade{
		ID:         uuid.New(),
		ProductRef: productRef,
		Buyer:      buyer,
		Seller:     seller,
		Quantity:   quantity,
		Stage:      StageBuyerOffered,
	}
}

// RoleOf maps an identity to its role within the trade.
func (t Trade) RoleOf(id Identity) (Role, error) {
	switch id {
	case t.Buyer:
		return RoleBuyer, nil
	case t.Seller:
		return RoleSeller, nil
	default:
		return "", errors.ErrNotAParticipant
	}
}

// Counterpart returns the other party of the trade.
func (t Trade) Counterpart(id Identity) (Identity, error) {
	switch id {
	case t.Buyer:
		return t.Seller, nil
	case t.Seller:
		return t.Buyer, nil
	default:
		return "", errors.ErrNotAParticipant
	}
}

// ChatOpen reports whether free-form chat is permitted.
// While the offer awaits acceptance only accept/cancel are valid,
// and a cancelled trade accepts nothing further.
func (t Trade) ChatOpen() bool {
	return t.Stage == StageSellerAccepted || t.Stage == StageBuyerConfirmed
}

// Accept moves the trade from buyer_offered to seller_accepted.
// Only the trade's seller may accept, and only while the offer is pending.
func (t *Trade) Accept(caller Identity) error {
	if caller != t.Seller {
		return errors.ErrNotSeller
	}
	if t.Stage != StageBuyerOffered {
		return errors.ErrWrongStage
	}
	t.Stage = StageSellerAccepted
	return nil
}

// Cancel terminates the trade. Cancellation is only reachable from
// buyer_offered; an accepted trade can no longer be cancelled unilaterally.
func (t *Trade) Cancel(caller Identity) error {
	if caller != t.Seller {
		return errors.ErrNotSeller
	}
	if t.Stage != StageBuyerOffered {
		return errors.ErrWrongStage
	}
	t.Stage = StageCancelled
	return nil
}

// Confirm finalizes the trade after the buyer acknowledged receipt.
// The caller guard and the product-sent precondition are checked by the
// negotiation service against the transcript; this only moves the stage.
func (t *Trade) Confirm(caller Identity) error {
	if caller != t.Buyer {
		return errors.ErrNotBuyer
	}
	if t.Stage != StageSellerAccepted {
		return errors.ErrWrongStage
	}
	t.Stage = StageBuyerConfirmed
	return nil
}
