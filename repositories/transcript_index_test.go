package repositories

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"tradegate/domain"
)

func openTestIndex(t *testing.T) *TranscriptIndex {
	t.Helper()
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close() })
	return NewTranscriptIndex(writer, slog.Default(), 10)
}

func TestTranscriptIndex_Search_By_Terms(t *testing.T) {
	req := require.New(t)
	index := openTestIndex(t)
	tradeID := uuid.New()
	at := time.Now().UTC()

	req.NoError(index.Index(tradeID, domain.RoleSeller, "shipping the blue bicycle tomorrow", at))
	req.NoError(index.Index(tradeID, domain.RoleBuyer, "sounds great", at.Add(time.Second)))

	hits, total, err := index.Search(context.Background(), "bicycle", "", 0)

	req.NoError(err)
	req.Equal(uint64(1), total)
	req.Len(hits, 1)
	req.Equal(tradeID.String(), hits[0].TradeID)
	req.Contains(hits[0].Text, "bicycle")
}

func TestTranscriptIndex_Search_Scoped_To_Trade(t *testing.T) {
	req := require.New(t)
	index := openTestIndex(t)
	tradeA, tradeB := uuid.New(), uuid.New()
	at := time.Now().UTC()

	req.NoError(index.Index(tradeA, domain.RoleSeller, "rare vinyl record", at))
	req.NoError(index.Index(tradeB, domain.RoleSeller, "rare stamp collection", at))

	hits, total, err := index.Search(context.Background(), "rare", tradeA.String(), 0)

	req.NoError(err)
	req.Equal(uint64(1), total)
	req.Len(hits, 1)
	req.Equal(tradeA.String(), hits[0].TradeID)
}

func TestTranscriptIndex_Search_No_Results(t *testing.T) {
	req := require.New(t)
	index := openTestIndex(t)

	hits, total, err := index.Search(context.Background(), "nonexistent", "", 0)

	req.NoError(err)
	req.Equal(uint64(0), total)
	req.Empty(hits)
}
