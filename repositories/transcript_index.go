package repositories

import (
	"context"
	"log/slog"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"

	"tradegate/domain"
)

// TranscriptIndex maintains a full-text index over chat transcript entries
// for the admin search surface. Indexing is best-effort side work: a failed
// index write never blocks the chat relay.
type TranscriptIndex struct {
	writer   *bluge.Writer
	log      *slog.Logger
	pageSize int
}

// TranscriptHit is one search result row.
type TranscriptHit struct {
	EntryID string
	TradeID string
	Sender  string
	Text    string
}

func NewTranscriptIndex(writer *bluge.Writer, log *slog.Logger, pageSize int) *TranscriptIndex {
	return &TranscriptIndex{writer: writer, log: log, pageSize: pageSize}
}

// Index stores one transcript entry in the search index.
func (t *TranscriptIndex) Index(tradeID uuid.UUID, sender domain.Role, text string, at time.Time) error {
	doc := bluge.NewDocument(uuid.NewString()).
		AddField(bluge.NewTextField("text", text).StoreValue()).
		AddField(bluge.NewKeywordField("trade", tradeID.String()).StoreValue()).
		AddField(bluge.NewKeywordField("sender", string(sender)).StoreValue()).
		AddField(bluge.NewDateTimeField("at", at).StoreValue())
	return t.writer.Update(doc.ID(), doc)
}

// Search runs a paginated match query over indexed entries, optionally
// restricted to one trade. Returns the page of hits and the total count.
func (t *TranscriptIndex) Search(ctx context.Context, terms, tradeID string, page int) ([]TranscriptHit, uint64, error) {
	reader, err := t.writer.Reader()
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			t.log.Error("Error while closing index reader", "err", err)
		}
	}()

	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(terms).SetField("text"))
	if tradeID != "" {
		query.AddMust(bluge.NewTermQuery(tradeID).SetField("trade"))
	}

	request := bluge.NewTopNSearch(t.pageSize, query).
		SetFrom(page * t.pageSize).
		WithStandardAggregations()

	iterator, err := reader.Search(ctx, request)
	if err != nil {
		return nil, 0, err
	}

	var hits []TranscriptHit
	for {
		match, err := iterator.Next()
		if err != nil {
			return nil, 0, err
		}
		if match == nil {
			break
		}
		var hit TranscriptHit
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				hit.EntryID = string(value)
			case "trade":
				hit.TradeID = string(value)
			case "sender":
				hit.Sender = string(value)
			case "text":
				hit.Text = string(value)
			}
			return true
		})
		if err != nil {
			return nil, 0, err
		}
		hits = append(hits, hit)
	}

	return hits, iterator.Aggregations().Count(), nil
}
