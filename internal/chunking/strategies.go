package chunking

import (
	"strings"
	"sync"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
	log "github.com/sirupsen/logrus"
)

var (
	tokenizerOnce sync.Once
	tokenizer     *sentences.DefaultSentenceTokenizer
)

func sentenceTokenizer() *sentences.DefaultSentenceTokenizer {
	tokenizerOnce.Do(func() {
		t, err := english.NewSentenceTokenizer(nil)
		if err != nil {
			log.Warnf("chunking: failed to create sentence tokenizer, falling back to punctuation split: %v", err)
			return
		}
		tokenizer = t
	})
	return tokenizer
}

// splitSentences splits text into trimmed, non-empty sentences.
func splitSentences(text string) []string {
	var out []string
	if t := sentenceTokenizer(); t != nil {
		for _, s := range t.Tokenize(text) {
			if s := strings.TrimSpace(s.Text); s != "" {
				out = append(out, s)
			}
		}
		return out
	}

	// Fallback: split after terminal punctuation followed by a space
	start := 0
	for i := 0; i < len(text)-1; i++ {
		if (text[i] == '.' || text[i] == '!' || text[i] == '?') && text[i+1] == ' ' {
			if s := strings.TrimSpace(text[start : i+1]); s != "" {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

// sentenceOverlap finds sentences at the end of a text block whose combined
// length stays within overlapChars.
func sentenceOverlap(text string, overlapChars int) string {
	if overlapChars <= 0 || text == "" {
		return ""
	}
	sents := splitSentences(text)
	if len(sents) < 2 {
		return "" // a single sentence would repeat the whole chunk
	}

	var picked []string
	total := 0
	// Iterate backwards through sentences, skipping the first one
	for i := len(sents) - 1; i > 0; i-- {
		n := runeLen(sents[i])
		if total > 0 {
			n++
		}
		if total+n > overlapChars {
			break
		}
		picked = append([]string{sents[i]}, picked...)
		total += n
	}
	return strings.Join(picked, " ")
}
