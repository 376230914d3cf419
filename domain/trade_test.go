package domain

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tradegate/errors"
)

func TestTrade_Accept_By_Seller(t *testing.T) {
	req := require.New(t)
	trade := NewTrade("listing-42", "alice", "bob", 1)

	// Given a freshly offered trade
	req.Equal(StageBuyerOffered, trade.Stage)
	req.False(trade.ChatOpen())

	// When the seller accepts
	req.NoError(trade.Accept("bob"))

	// Then the stage advances and chat opens
	req.Equal(StageSellerAccepted, trade.Stage)
	req.True(trade.ChatOpen())
}

func TestTrade_Accept_By_Buyer_Is_Rejected(t *testing.T) {
	req := require.New(t)
	trade := NewTrade("listing-42", "alice", "bob", 1)

	err := trade.Accept("alice")

	req.ErrorIs(err, errors.ErrNotSeller)
	req.Equal(StageBuyerOffered, trade.Stage)
}

func TestTrade_Cancel_Only_From_Offered(t *testing.T) {
	req := require.New(t)
	trade := NewTrade("listing-42", "alice", "bob", 1)

	// Cancel from buyer_offered is the single early terminal exit
	req.NoError(trade.Cancel("bob"))
	req.Equal(StageCancelled, trade.Stage)

	// A cancelled trade accepts nothing further
	req.ErrorIs(trade.Accept("bob"), errors.ErrWrongStage)
	req.Equal(StageCancelled, trade.Stage)
}

func TestTrade_Cancel_After_Accept_Is_Rejected(t *testing.T) {
	req := require.New(t)
	trade := NewTrade("listing-42", "alice", "bob", 1)
	req.NoError(trade.Accept("bob"))

	err := trade.Cancel("bob")

	req.ErrorIs(err, errors.ErrWrongStage)
	req.Equal(StageSellerAccepted, trade.Stage)
}

func TestTrade_Confirm_Guards(t *testing.T) {
	req := require.New(t)
	trade := NewTrade("listing-42", "alice", "bob", 2)

	// Confirm before acceptance is out of table
	req.ErrorIs(trade.Confirm("alice"), errors.ErrWrongStage)

	req.NoError(trade.Accept("bob"))

	// Only the buyer may confirm
	req.ErrorIs(trade.Confirm("bob"), errors.ErrNotBuyer)
	req.NoError(trade.Confirm("alice"))
	req.Equal(StageBuyerConfirmed, trade.Stage)

	// Stage never regresses once confirmed
	req.ErrorIs(trade.Confirm("alice"), errors.ErrWrongStage)
	req.Equal(StageBuyerConfirmed, trade.Stage)
}

func TestTrade_RoleOf_And_Counterpart(t *testing.T) {
	req := require.New(t)
	trade := NewTrade("listing-7", "alice", "bob", 1)

	role, err := trade.RoleOf("alice")
	req.NoError(err)
	req.Equal(RoleBuyer, role)

	role, err = trade.RoleOf("bob")
	req.NoError(err)
	req.Equal(RoleSeller, role)

	_, err = trade.RoleOf("mallory")
	req.ErrorIs(err, errors.ErrNotAParticipant)

	other, err := trade.Counterpart("alice")
	req.NoError(err)
	req.Equal(Identity("bob"), other)
}
