package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"tubesum/internal/models"
	"tubesum/pkg/executor"
)

// FetcherOptions configures the yt-dlp adapter.
type FetcherOptions struct {
	Binary      string        // yt-dlp executable
	Format      string        // yt-dlp -f selector
	Timeout     time.Duration // per fetch, 0 = none
	MaxDuration time.Duration // reject longer videos, 0 = unlimited
}

// Fetcher downloads source media with yt-dlp.
type Fetcher struct {
	exec executor.Executor
	opts FetcherOptions
}

// NewFetcher returns a yt-dlp backed fetcher.
func NewFetcher(exec executor.Executor, opts FetcherOptions) *Fetcher {
	if opts.Binary == "" {
		opts.Binary = "yt-dlp"
	}
	if opts.Format == "" {
		opts.Format = "bestaudio/best"
	}
	return &Fetcher{exec: exec, opts: opts}
}

// videoInfo is the subset of yt-dlp's JSON we read.
type videoInfo struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Duration float64 `json:"duration"`
	IsLive   bool    `json:"is_live"`
}

// Fetch validates sourceURL, reads its metadata and downloads the media into a
// fresh directory under workDir. On error nothing is left on disk.
func (f *Fetcher) Fetch(ctx context.Context, sourceURL, workDir string) (m *Media, err error) {
	sourceURL = strings.TrimSpace(sourceURL)
	parsedID, err := ParseVideoURL(sourceURL)
	if err != nil {
		return nil, models.NewStageError(models.JobStatusFetching, fmt.Sprintf("invalid source URL %q", sourceURL), err)
	}

	if f.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.opts.Timeout)
		defer cancel()
	}

	info, err := f.probe(ctx, sourceURL)
	if err != nil {
		return nil, fetchFailure(sourceURL, "could not read video metadata", err)
	}
	if info.ID == "" {
		info.ID = parsedID
	}
	if info.IsLive {
		return nil, models.NewStageError(models.JobStatusFetching, fmt.Sprintf("%s is a live stream", sourceURL), nil)
	}
	duration := time.Duration(info.Duration * float64(time.Second))
	if f.opts.MaxDuration > 0 && duration > f.opts.MaxDuration {
		return nil, models.NewStageError(models.JobStatusFetching,
			fmt.Sprintf("video %s is %s long, limit is %s", info.ID, duration.Round(time.Second), f.opts.MaxDuration), nil)
	}

	scratch, err := NewScratch(workDir, "media-*")
	if err != nil {
		return nil, models.NewStageError(models.JobStatusFetching, "could not allocate scratch space", err)
	}
	defer func() {
		if err != nil {
			if rerr := scratch.Release(); rerr != nil {
				log.Warnf("release media scratch %s: %v", scratch.Dir(), rerr)
			}
		}
	}()

	path, err := f.download(ctx, sourceURL, scratch.Dir())
	if err != nil {
		return nil, fetchFailure(sourceURL, "download failed", err)
	}

	log.WithFields(log.Fields{"video_id": info.ID, "path": path}).Debug("Downloaded source media")
	return &Media{
		Path:     path,
		VideoID:  info.ID,
		Title:    info.Title,
		Duration: duration,
		scratch:  scratch,
	}, nil
}

func (f *Fetcher) probe(ctx context.Context, sourceURL string) (*videoInfo, error) {
	out, err := f.exec.Execute(ctx, f.opts.Binary,
		"--dump-single-json",
		"--skip-download",
		"--no-playlist",
		"--no-warnings",
		sourceURL,
	)
	if err != nil {
		return nil, err
	}
	var info videoInfo
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		return nil, fmt.Errorf("parse yt-dlp metadata: %w", err)
	}
	return &info, nil
}

func (f *Fetcher) download(ctx context.Context, sourceURL, dir string) (string, error) {
	out, err := f.exec.Execute(ctx, f.opts.Binary,
		"--no-playlist",
		"--no-warnings",
		"--no-progress",
		"-f", f.opts.Format,
		"-o", filepath.Join(dir, "media.%(ext)s"),
		"--print", "after_move:filepath",
		sourceURL,
	)
	if err != nil {
		return "", err
	}
	if p := lastLine(out); p != "" {
		if _, statErr := os.Stat(p); statErr == nil {
			return p, nil
		}
	}
	// Older yt-dlp builds print nothing for after_move; fall back to the output template.
	matches, _ := filepath.Glob(filepath.Join(dir, "media.*"))
	for _, m := range matches {
		if !strings.HasSuffix(m, ".part") {
			return m, nil
		}
	}
	return "", errors.New("yt-dlp reported success but produced no media file")
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

// fetchFailure wraps an executor error, surfacing stderr as the upstream payload.
func fetchFailure(sourceURL, cause string, err error) *models.StageError {
	se := models.NewStageError(models.JobStatusFetching, fmt.Sprintf("%s for %s", cause, sourceURL), err)
	var cmdErr *executor.CommandError
	if errors.As(err, &cmdErr) && cmdErr.Stderr != "" {
		se.Err = cmdErr.Err
		se.WithUpstream(cmdErr.Stderr)
	}
	return se
}
