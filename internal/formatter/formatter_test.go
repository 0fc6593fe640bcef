package formatter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tubesum/internal/models"
)

var demoMeta = DocumentMeta{
	Title:     "Demo Video",
	VideoID:   "abc123",
	CreatedAt: time.Date(2024, 5, 1, 9, 30, 0, 0, time.FixedZone("CEST", 2*60*60)),
}

var demoDoc = models.SummaryDocument{
	Highlights: []string{"point A"},
	MainPoints: []string{"detail 1"},
	Narrative:  "A short demo.",
}

func TestRender_Layout(t *testing.T) {
	want := "# Demo Video (ID: abc123)\n" +
		"*Generated on 2024-05-01 07:30*\n\n" +
		"## Key Highlights\n- point A\n\n" +
		"## Main Points\n- detail 1\n\n" +
		"## Detailed Summary\nA short demo.\n"
	assert.Equal(t, want, Render(demoMeta, demoDoc))
}

func TestRender_Idempotent(t *testing.T) {
	assert.Equal(t, Render(demoMeta, demoDoc), Render(demoMeta, demoDoc))
}

func TestRender_EdgeCases(t *testing.T) {
	tests := []struct {
		name    string
		meta    DocumentMeta
		doc     models.SummaryDocument
		want    []string
		notWant []string
	}{
		{
			name: "narrative only keeps all headings",
			meta: DocumentMeta{Title: "T", VideoID: "v"},
			doc:  models.SummaryDocument{Narrative: "Just text."},
			want: []string{"## Key Highlights\n\n## Main Points\n\n## Detailed Summary\nJust text.\n"},
		},
		{
			name: "list order preserved and newlines folded",
			meta: DocumentMeta{Title: "Multi\nline", VideoID: "v"},
			doc:  models.SummaryDocument{Highlights: []string{"b second", "a first\nwrapped", "  "}},
			want: []string{"# Multi line (ID: v)", "- b second\n- a first wrapped\n\n"},
			notWant: []string{"-  \n", "- \n"},
		},
		{
			name: "missing title",
			meta: DocumentMeta{VideoID: "v"},
			want: []string{"# Untitled video (ID: v)"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Render(tt.meta, tt.doc)
			for _, w := range tt.want {
				assert.Contains(t, got, w)
			}
			for _, w := range tt.notWant {
				assert.NotContains(t, got, w)
			}
		})
	}
}

func TestFileStore_AppendOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "summaries.md")
	store := NewFileStore(path)

	require.NoError(t, store.Append(context.Background(), "first\n"))
	before, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first\n"+Separator, string(before))

	require.NoError(t, store.Append(context.Background(), "second\n"))
	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(after), string(before)), "earlier bytes must not change")
	assert.Equal(t, "first\n"+Separator+"second\n"+Separator, string(after))
}

func TestFileStore_ConcurrentAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summaries.md")
	store := NewFileStore(path)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, store.Append(context.Background(), fmt.Sprintf("doc %d\n", i)))
		}(i)
	}
	wg.Wait()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	blocks := strings.Split(strings.TrimSuffix(string(data), Separator), Separator)
	assert.Len(t, blocks, n)
	for _, b := range blocks {
		assert.Regexp(t, `^doc \d+\n$`, b)
	}
}

func TestFileStore_Errors(t *testing.T) {
	dir := t.TempDir()
	// A directory at the target path cannot be opened for writing.
	store := NewFileStore(dir)
	assert.Error(t, store.Append(context.Background(), "x"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, NewFileStore(filepath.Join(dir, "s.md")).Append(ctx, "x"), context.Canceled)
}

func TestTranscriptDir_Write(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "transcripts")
	td := NewTranscriptDir(dir)

	path, err := td.Write(context.Background(), "abc123", "hello world")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "abc123_transcription.txt"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))

	path, err = td.Write(context.Background(), "../escape", "again")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "escape_transcription.txt"), path)

	_, err = td.Write(context.Background(), "  ", "x")
	assert.Error(t, err)
}
