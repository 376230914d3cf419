package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/database"
	"github.com/olekukonko/tablewriter"

	"tradegate/projection"
	"tradegate/repositories"
)

// Offline inspector for the gateway store. Scans one key family and
// renders the decoded values, without touching a running instance.
func main() {
	dbPath := flag.String("db", database.DefaultPath, "Path to badger DB")
	prefix := flag.String("prefix", "queue:", "Prefix to scan (queue:, trade:, entry:)")
	tradeID := flag.String("trade", "", "Render one trade's merged transcript instead of scanning")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	if *tradeID != "" {
		if err := renderTranscript(db, *tradeID); err != nil {
			log.Fatal(err)
		}
		return
	}

	color.Cyan.Printf("Scanning %s with prefix %q\n\n", *dbPath, *prefix)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Kind", "When", "Who", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	rows := 0
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			key := string(item.Key())

			err := item.Value(func(v []byte) error {
				table.Append(describe(key, v))
				rows++
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()
	fmt.Println()
	color.Green.Printf("%d entries\n", rows)
}

// describe turns one stored key/value pair into a display row. Values
// that fail to decode still render, with the raw size as the detail.
func describe(key string, value []byte) []string {
	segments := strings.Split(key, ":")
	kind := segments[0]
	raw := []string{key, strings.ToUpper(kind), "--:--:--", "--------", fmt.Sprintf("size: %d bytes", len(value))}

	switch kind {
	case "queue":
		var envelope struct {
			Payload json.RawMessage `json:"payload"`
			At      int64           `json:"at"`
		}
		if err := json.Unmarshal(value, &envelope); err != nil {
			return raw
		}
		var payload struct {
			Text string `json:"text"`
		}
		_ = json.Unmarshal(envelope.Payload, &payload)
		who := "--------"
		if len(segments) >= 2 {
			who = segments[1]
		}
		return []string{key, "QUEUE", clock(envelope.At), shorten(who), payload.Text}

	case "trade":
		var trade struct {
			ProductRef string `json:"product_ref"`
			Buyer      string `json:"buyer"`
			Seller     string `json:"seller"`
			Quantity   int    `json:"quantity"`
			Stage      string `json:"stage"`
		}
		if err := json.Unmarshal(value, &trade); err != nil {
			return raw
		}
		who := trade.Buyer + " -> " + trade.Seller
		detail := fmt.Sprintf("%d x %s [%s]", trade.Quantity, trade.ProductRef, trade.Stage)
		return []string{key, "TRADE", "--:--:--", shorten(who), detail}

	case "entry":
		var entry struct {
			Sender string `json:"sender"`
			Kind   string `json:"kind"`
			Text   string `json:"text"`
			At     int64  `json:"at"`
		}
		if err := json.Unmarshal(value, &entry); err != nil {
			return raw
		}
		return []string{key, strings.ToUpper(entry.Kind), clock(entry.At), shorten(entry.Sender), entry.Text}
	}
	return raw
}

// renderTranscript prints one trade's transcript the way readers see it:
// consecutive chat entries of the same sender merged into blocks.
func renderTranscript(db *badger.DB, tradeID string) error {
	id, err := uuid.Parse(tradeID)
	if err != nil {
		return fmt.Errorf("invalid trade id %q: %w", tradeID, err)
	}

	repo := repositories.NewTradeRepository(db, slog.Default())
	trade, err := repo.GetTrade(id)
	if err != nil {
		return err
	}
	entries, err := repo.Transcript(id)
	if err != nil {
		return err
	}

	color.Cyan.Printf("%s -> %s | %d x %s [%s]\n\n",
		trade.Buyer, trade.Seller, trade.Quantity, trade.ProductRef, trade.Stage)
	fmt.Println(projection.Render(projection.Blocks(entries)))
	return nil
}

func clock(nanos int64) string {
	if nanos <= 0 {
		return "--:--:--"
	}
	return time.Unix(0, nanos).Format("15:04:05")
}

func shorten(id string) string {
	if len(id) > 24 {
		return id[:24]
	}
	if id == "" {
		return "--------"
	}
	return id
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true).
		WithValueLogFileSize(10 * 1024 * 1024)

	db, err := badger.Open(opts)
	if err != nil {
		if strings.Contains(err.Error(), "Log truncate required") {
			repairOpts := badger.DefaultOptions(path).
				WithLogger(nil).WithBypassLockGuard(true)

			db, err = badger.Open(repairOpts)
			if err != nil {
				return nil, fmt.Errorf("repair failed: %w", err)
			}

			db.Close()
			return badger.Open(opts)
		}
		return nil, err
	}
	return db, nil
}
