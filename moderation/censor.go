// Package moderation filters chat text before it enters a trade transcript.
package moderation

import (
	"log/slog"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

// Censor masks forbidden words in chat messages. Matching is done on a
// normalized view of the text (lowercased, punctuation stripped, common
// leet substitutions reversed) while the replacement is applied to the
// original runes, so spacing and casing around a match survive.
type Censor struct {
	machine     *goahocorasick.Machine
	replacement rune
	log         *slog.Logger
}

// mapping links each normalized rune back to its index in the original text.
type mapping struct {
	runes []rune
	orig  []int
}

func NewCensor(words []string, replacement rune, log *slog.Logger) (*Censor, error) {
	patterns := make([][]rune, len(words))
	for i, w := range words {
		patterns[i] = normalize(w).runes
	}
	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	return &Censor{machine: m, replacement: replacement, log: log}, nil
}

// Apply returns the text with every forbidden span replaced.
// Unmatched text comes back untouched.
func (c *Censor) Apply(text string) string {
	norm := normalize(text)
	if len(norm.runes) == 0 {
		return text
	}

	spans := c.machine.MultiPatternSearch(norm.runes, false)
	if len(spans) == 0 {
		return text
	}

	out := []rune(text)
	for _, span := range spans {
		start := span.Pos
		end := start + len(span.Word)
		if start < 0 || end > len(norm.orig) {
			continue
		}
		// Mask the original span, including any noise characters inside it
		for i := norm.orig[start]; i <= norm.orig[end-1]; i++ {
			out[i] = c.replacement
		}
	}

	c.log.Debug("Censored message", "matches", len(spans))
	return string(out)
}

func normalize(text string) mapping {
	orig := []rune(text)
	m := mapping{
		runes: make([]rune, 0, len(orig)),
		orig:  make([]int, 0, len(orig)),
	}
	for i, r := range orig {
		r = unleet(r)
		if unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r) {
			continue
		}
		m.runes = append(m.runes, unicode.ToLower(r))
		m.orig = append(m.orig, i)
	}
	return m
}

// unleet maps common leet-speak characters back to their alphabet counterparts.
func unleet(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	default:
		return r
	}
}
