// Package projection builds read-side views over stored transcripts.
// Handles visual grouping only; it never reorders or mutates entries.
package projection

import (
	"strings"

	"tradegate/domain"
)

// Block is one visual unit of a rendered transcript: consecutive chat
// entries from the same sender collapsed into a single text body.
type Block struct {
	Sender domain.Role
	Kind   domain.EntryKind
	Text   string
}

// Blocks folds a transcript into its display form. Consecutive chat entries
// from the same sender concatenate with newlines; a control or system entry
// always starts a block of its own, even when its author matches the
// previous block. The fold is a pure function over the stored transcript.
func Blocks(entries []domain.Entry) []Block {
	var blocks []Block
	for _, e := range entries {
		if canMerge(blocks, e) {
			last := &blocks[len(blocks)-1]
			last.Text = last.Text + "\n" + e.Text
			continue
		}
		blocks = append(blocks, Block{Sender: e.Sender, Kind: e.Kind, Text: e.Text})
	}
	return blocks
}

func canMerge(blocks []Block, e domain.Entry) bool {
	if len(blocks) == 0 || e.Kind != domain.EntryChat {
		return false
	}
	last := blocks[len(blocks)-1]
	return last.Kind == domain.EntryChat && last.Sender == e.Sender
}

// Render flattens blocks into a plain text transcript, one block per
// paragraph.
func Render(blocks []Block) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		parts = append(parts, string(b.Sender)+": "+b.Text)
	}
	return strings.Join(parts, "\n\n")
}
