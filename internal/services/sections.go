package services

import (
	"fmt"
	"regexp"
	"strings"

	"tubesum/internal/models"
)

type section int

const (
	sectionNone section = iota
	sectionHighlights
	sectionMainPoints
	sectionNarrative
)

var (
	// Matches "## Key Highlights", "**Main Points:**", "Detailed Summary:" and similar.
	headingRe = regexp.MustCompile(`(?i)^\s*(?:#{1,6}\s*)?(?:\*\*|__)?\s*(key highlights|highlights|key takeaways|takeaways|main points|key points|detailed summary|summary|narrative)\s*:?\s*(?:\*\*|__)?\s*:?\s*$`)
	bulletRe  = regexp.MustCompile(`^\s*(?:[-*+\x{2022}]|\d{1,3}[.)])\s+(.*\S)\s*$`)
)

func headingSection(line string) section {
	m := headingRe.FindStringSubmatch(line)
	if m == nil {
		return sectionNone
	}
	switch strings.ToLower(m[1]) {
	case "key highlights", "highlights", "key takeaways", "takeaways":
		return sectionHighlights
	case "main points", "key points":
		return sectionMainPoints
	default:
		return sectionNarrative
	}
}

// ParseSummary turns free-form model output into a SummaryResult. Output
// without any recognised section heading degrades to a narrative-only result.
// Content before the first recognised heading is kept unless it is a plain
// chat line: its bullets lead Highlights and its text leads the narrative.
// Empty output, or headings with nothing under them, is ErrMalformedOutput.
func ParseSummary(text string) (models.SummaryResult, error) {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	if text == "" {
		return models.SummaryResult{}, fmt.Errorf("empty model output: %w", models.ErrMalformedOutput)
	}

	lines := strings.Split(text, "\n")
	found := false
	for _, line := range lines {
		if headingSection(line) != sectionNone {
			found = true
			break
		}
	}
	if !found {
		return models.SummaryResult{
			Structure: models.StructureNarrativeOnly,
			Document:  models.SummaryDocument{Highlights: []string{}, MainPoints: []string{}, Narrative: normalizeParagraphs(lines)},
		}, nil
	}

	doc := models.SummaryDocument{Highlights: []string{}, MainPoints: []string{}}
	var narrative, preamble []string
	current := sectionNone
	for _, line := range lines {
		if s := headingSection(line); s != sectionNone {
			current = s
			continue
		}
		switch current {
		case sectionHighlights:
			doc.Highlights = appendItem(doc.Highlights, line)
		case sectionMainPoints:
			doc.MainPoints = appendItem(doc.MainPoints, line)
		case sectionNarrative:
			narrative = append(narrative, line)
		default:
			preamble = append(preamble, line)
		}
	}
	items, lead := salvagePreamble(preamble)
	if len(items) > 0 {
		doc.Highlights = append(items, doc.Highlights...)
	}
	doc.Narrative = normalizeParagraphs(append(lead, narrative...))

	if len(doc.Highlights) == 0 && len(doc.MainPoints) == 0 && doc.Narrative == "" {
		return models.SummaryResult{}, fmt.Errorf("section headings present but all sections empty: %w", models.ErrMalformedOutput)
	}
	return models.SummaryResult{Structure: models.StructureFull, Document: doc}, nil
}

// salvagePreamble splits the lines before the first recognised heading into
// bullet items and narrative text. Preamble without bullets or a Markdown
// heading is conversational filler and yields nothing.
func salvagePreamble(lines []string) ([]string, []string) {
	structured := false
	for _, line := range lines {
		if bulletRe.MatchString(line) || strings.HasPrefix(strings.TrimSpace(line), "#") {
			structured = true
			break
		}
	}
	if !structured {
		return nil, nil
	}

	var items, text []string
	inItem := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			inItem = false
			text = append(text, "")
		case strings.HasPrefix(trimmed, "#"):
			inItem = false
		case bulletRe.MatchString(line):
			items = appendItem(items, line)
			inItem = true
		case inItem && trimmed != line:
			items = appendItem(items, line)
		default:
			inItem = false
			text = append(text, line)
		}
	}
	// Keep the text apart from the narrative that follows it.
	if len(text) > 0 {
		text = append(text, "")
	}
	return items, text
}

// appendItem adds a bullet, or folds a wrapped line into the previous one.
func appendItem(items []string, line string) []string {
	if m := bulletRe.FindStringSubmatch(line); m != nil {
		return append(items, strings.TrimSpace(m[1]))
	}
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return items
	}
	if len(items) == 0 {
		return append(items, line)
	}
	items[len(items)-1] += " " + line
	return items
}

// normalizeParagraphs trims lines and collapses blank-line runs into single
// paragraph breaks.
func normalizeParagraphs(lines []string) string {
	var paras []string
	var cur []string
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" {
			if len(cur) > 0 {
				paras = append(paras, strings.Join(cur, "\n"))
				cur = nil
			}
			continue
		}
		cur = append(cur, l)
	}
	if len(cur) > 0 {
		paras = append(paras, strings.Join(cur, "\n"))
	}
	return strings.Join(paras, "\n\n")
}
