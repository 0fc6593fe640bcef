package formatter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Separator follows every appended document.
const Separator = "\n---\n\n"

// FileStore is an append-only Markdown file. Earlier entries are never rewritten.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore returns a store writing to path. The file is created on first append.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path is the file the store appends to.
func (s *FileStore) Path() string { return s.path }

// Append writes block plus Separator at the end of the file and syncs it.
func (s *FileStore) Append(ctx context.Context, block string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create summaries directory: %w", err)
		}
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open summaries file %s: %w", s.path, err)
	}
	if _, err := f.WriteString(block + Separator); err != nil {
		f.Close()
		return fmt.Errorf("append to %s: %w", s.path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync %s: %w", s.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", s.path, err)
	}
	log.Debugf("Appended %d bytes to %s", len(block)+len(Separator), s.path)
	return nil
}
