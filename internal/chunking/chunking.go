package chunking

import (
	"strings"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"
)

const (
	// DefaultMaxChars defines a reasonable default if not provided.
	DefaultMaxChars = 24000
	// DefaultOverlap defines a reasonable default if not provided.
	DefaultOverlap = 400
)

// Chunk is a contiguous slice of a transcript sent to the model in one request.
type Chunk struct {
	Index int
	Text  string
}

// Split breaks a transcript into chunks of at most maxChars characters.
// It splits by paragraphs first, then sentences, then words, and carries up
// to overlap characters of trailing sentences into the next chunk.
// Whitespace-only input yields no chunks.
func Split(text string, maxChars, overlap int) []Chunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	// Validate and apply defaults for chunking parameters
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= maxChars/2 {
		overlap = maxChars / 2
	}

	if runeLen(text) <= maxChars {
		return []Chunk{{Index: 0, Text: text}}
	}

	pieces := splitPieces(text, maxChars)

	var chunks []Chunk
	current := ""
	flush := func() {
		if t := strings.TrimSpace(current); t != "" {
			chunks = append(chunks, Chunk{Index: len(chunks), Text: t})
		}
	}

	for _, piece := range pieces {
		if current != "" && runeLen(current)+1+runeLen(piece) > maxChars {
			finalized := strings.TrimSpace(current)
			flush()
			// Start new chunk with sentence-based overlap from the previous chunk
			current = sentenceOverlap(finalized, overlap)
			if current != "" && runeLen(current)+1+runeLen(piece) > maxChars {
				current = ""
			}
		}
		if current != "" {
			current += " "
		}
		current += piece
	}
	flush()

	log.Debugf("chunking: split %d chars into %d chunks (max %d, overlap %d)", runeLen(text), len(chunks), maxChars, overlap)
	return chunks
}

// splitPieces returns units no longer than maxChars, preferring paragraph
// boundaries, then sentence boundaries, then word boundaries.
func splitPieces(text string, maxChars int) []string {
	var pieces []string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.Join(strings.Fields(para), " ")
		if para == "" {
			continue
		}
		if runeLen(para) <= maxChars {
			pieces = append(pieces, para)
			continue
		}
		for _, sent := range splitSentences(para) {
			if runeLen(sent) <= maxChars {
				pieces = append(pieces, sent)
				continue
			}
			pieces = append(pieces, splitWords(sent, maxChars)...)
		}
	}
	return pieces
}

// splitWords packs words into pieces of at most maxChars, hard-splitting any
// single word that is longer than that.
func splitWords(text string, maxChars int) []string {
	var out []string
	current := ""
	for _, w := range strings.Fields(text) {
		for runeLen(w) > maxChars {
			if current != "" {
				out = append(out, current)
				current = ""
			}
			r := []rune(w)
			out = append(out, string(r[:maxChars]))
			w = string(r[maxChars:])
		}
		if current != "" && runeLen(current)+1+runeLen(w) > maxChars {
			out = append(out, current)
			current = ""
		}
		if current != "" {
			current += " "
		}
		current += w
	}
	if current != "" {
		out = append(out, current)
	}
	return out
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }
