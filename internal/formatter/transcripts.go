package formatter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

// TranscriptSuffix ends every transcript file name.
const TranscriptSuffix = "_transcription.txt"

// TranscriptDir keeps one plain-text transcript per video next to the summaries.
type TranscriptDir struct {
	dir string
}

func NewTranscriptDir(dir string) *TranscriptDir {
	return &TranscriptDir{dir: dir}
}

// Write stores text as <name>_transcription.txt, replacing an earlier file for
// the same name, and returns the path written.
func (d *TranscriptDir) Write(ctx context.Context, name, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("transcript name is required")
	}

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", fmt.Errorf("create transcripts directory: %w", err)
	}
	path := filepath.Join(d.dir, name+TranscriptSuffix)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("write transcript %s: %w", path, err)
	}
	log.Debugf("Wrote %d byte transcript to %s", len(text), path)
	return path, nil
}
