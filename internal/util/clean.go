package util

import (
	"bytes"
	"strings"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var charReplacementMap = map[string]string{
	"\u2018": "'", "\u2019": "'", "\u201C": "\"", "\u201D": "\"",
	"\u2013": "-", "\u2014": "--", "\u2026": "...", "\u00a0": " ",
	"\u200b": "", "\ufeff": "",
}

// CleanTranscript normalizes speech-to-text output: strips a BOM, repairs
// invalid UTF-8, folds typographic punctuation and collapses whitespace runs
// while keeping paragraph breaks. src is only used for logging.
func CleanTranscript(raw []byte, src string) string {
	raw = bytes.TrimPrefix(raw, utf8BOM)

	if !utf8.Valid(raw) {
		log.Warnf("%s: invalid UTF-8 in transcript, replacing invalid chars", src)
		raw = bytes.ToValidUTF8(raw, []byte(string(utf8.RuneError)))
	}

	str := string(raw)
	for bad, good := range charReplacementMap {
		str = strings.ReplaceAll(str, bad, good)
	}
	str = strings.ReplaceAll(str, "\r\n", "\n")

	paragraphs := strings.Split(str, "\n\n")
	out := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		p = strings.Join(strings.Fields(p), " ")
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n\n")
}
