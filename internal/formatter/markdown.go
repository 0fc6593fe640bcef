// Package formatter renders summaries as Markdown and appends them to the
// summaries file.
package formatter

import (
	"strings"
	"time"

	"tubesum/internal/models"
)

// DateLayout is how the generation date appears under the title.
const DateLayout = "2006-01-02 15:04"

// DocumentMeta is the job metadata shown in a rendered document.
type DocumentMeta struct {
	Title     string
	VideoID   string
	CreatedAt time.Time
}

// MetaFromJob extracts the rendering metadata from a job.
func MetaFromJob(job *models.Job) DocumentMeta {
	return DocumentMeta{Title: job.Title, VideoID: job.VideoID, CreatedAt: job.CreatedAt}
}

// Render produces the Markdown block for one summary. The output depends only
// on its arguments, so rendering the same input twice is byte-identical.
func Render(meta DocumentMeta, doc models.SummaryDocument) string {
	title := singleLine(meta.Title)
	if title == "" {
		title = "Untitled video"
	}

	var b strings.Builder
	b.WriteString("# " + title + " (ID: " + singleLine(meta.VideoID) + ")\n")
	b.WriteString("*Generated on " + meta.CreatedAt.UTC().Format(DateLayout) + "*\n\n")

	b.WriteString("## Key Highlights\n")
	writeList(&b, doc.Highlights)
	b.WriteString("\n## Main Points\n")
	writeList(&b, doc.MainPoints)

	b.WriteString("\n## Detailed Summary\n")
	if n := strings.TrimSpace(doc.Narrative); n != "" {
		b.WriteString(n + "\n")
	}
	return b.String()
}

func writeList(b *strings.Builder, items []string) {
	for _, item := range items {
		if item = singleLine(item); item != "" {
			b.WriteString("- " + item + "\n")
		}
	}
}

// singleLine folds embedded line breaks so one value stays on one Markdown line.
func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
