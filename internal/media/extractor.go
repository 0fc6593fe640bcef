package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"tubesum/internal/models"
	"tubesum/pkg/executor"
)

// ExtractorOptions configures the ffmpeg adapter.
type ExtractorOptions struct {
	FFmpegBinary  string
	FFprobeBinary string
	Timeout       time.Duration
}

// Extractor converts downloaded media into transcription-ready audio.
type Extractor struct {
	exec executor.Executor
	opts ExtractorOptions
}

func NewExtractor(exec executor.Executor, opts ExtractorOptions) *Extractor {
	if opts.FFmpegBinary == "" {
		opts.FFmpegBinary = "ffmpeg"
	}
	if opts.FFprobeBinary == "" {
		opts.FFprobeBinary = "ffprobe"
	}
	return &Extractor{exec: exec, opts: opts}
}

// Extract writes the audio track of m in the requested format into a fresh
// directory under workDir. The caller owns the returned Audio and must Release it.
func (e *Extractor) Extract(ctx context.Context, m *Media, format AudioFormat, workDir string) (a *Audio, err error) {
	if m == nil || m.Path == "" {
		return nil, models.NewStageError(models.JobStatusExtracting, "no media to extract from", nil)
	}
	if format.Container == "" {
		return nil, models.NewStageError(models.JobStatusExtracting, "audio format has no container", nil)
	}

	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	hasAudio, err := e.hasAudioStream(ctx, m.Path)
	if err != nil {
		return nil, extractFailure("ffprobe could not inspect source media", err)
	}
	if !hasAudio {
		return nil, models.NewStageError(models.JobStatusExtracting, "source media has no audio track", nil)
	}

	scratch, err := NewScratch(workDir, "audio-*")
	if err != nil {
		return nil, models.NewStageError(models.JobStatusExtracting, "could not allocate scratch space", err)
	}
	defer func() {
		if err != nil {
			if rerr := scratch.Release(); rerr != nil {
				log.Warnf("release audio scratch %s: %v", scratch.Dir(), rerr)
			}
		}
	}()

	out := filepath.Join(scratch.Dir(), "audio."+format.Container)
	if _, err = e.exec.Execute(ctx, e.opts.FFmpegBinary, ffmpegArgs(m.Path, out, format)...); err != nil {
		return nil, extractFailure("ffmpeg conversion failed", err)
	}

	info, err := os.Stat(out)
	if err != nil {
		return nil, models.NewStageError(models.JobStatusExtracting, "ffmpeg produced no output", err)
	}
	if info.Size() == 0 {
		err = errors.New("empty output file")
		return nil, models.NewStageError(models.JobStatusExtracting, "ffmpeg produced no output", err)
	}

	duration, perr := e.probeDuration(ctx, out)
	if perr != nil {
		// Duration is advisory; fall back to the platform's value.
		log.Warnf("ffprobe duration of %s failed, using source duration: %v", out, perr)
		duration = m.Duration
	}

	return &Audio{
		Path:      out,
		Format:    format,
		Duration:  duration,
		SizeBytes: info.Size(),
		scratch:   scratch,
	}, nil
}

func ffmpegArgs(in, out string, f AudioFormat) []string {
	args := []string{"-y", "-i", in, "-vn"}
	if f.Channels > 0 {
		args = append(args, "-ac", strconv.Itoa(f.Channels))
	}
	if f.SampleRate > 0 {
		args = append(args, "-ar", strconv.Itoa(f.SampleRate))
	}
	if f.Codec != "" {
		args = append(args, "-c:a", f.Codec)
	}
	if f.Bitrate != "" {
		args = append(args, "-b:a", f.Bitrate)
	}
	return append(args, out)
}

func (e *Extractor) hasAudioStream(ctx context.Context, path string) (bool, error) {
	out, err := e.exec.Execute(ctx, e.opts.FFprobeBinary,
		"-v", "error",
		"-select_streams", "a",
		"-show_entries", "stream=codec_type",
		"-of", "csv=p=0",
		path,
	)
	if err != nil {
		return false, err
	}
	return strings.Contains(out, "audio"), nil
}

func (e *Extractor) probeDuration(ctx context.Context, path string) (time.Duration, error) {
	out, err := e.exec.Execute(ctx, e.opts.FFprobeBinary,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, err
	}
	secs, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", strings.TrimSpace(out), err)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func extractFailure(cause string, err error) *models.StageError {
	se := models.NewStageError(models.JobStatusExtracting, cause, err)
	var cmdErr *executor.CommandError
	if errors.As(err, &cmdErr) && cmdErr.Stderr != "" {
		se.Err = cmdErr.Err
		se.WithUpstream(cmdErr.Stderr)
	}
	return se
}
