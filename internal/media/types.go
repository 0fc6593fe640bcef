package media

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Scratch is a temporary directory released exactly once.
type Scratch struct {
	dir  string
	once sync.Once
	err  error
}

// NewScratch creates a fresh directory under base (created if missing).
func NewScratch(base, pattern string) (*Scratch, error) {
	if base != "" {
		if err := os.MkdirAll(base, 0o750); err != nil {
			return nil, fmt.Errorf("create scratch base %s: %w", base, err)
		}
	}
	dir, err := os.MkdirTemp(base, pattern)
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	return &Scratch{dir: dir}, nil
}

// Dir is the scratch directory path.
func (s *Scratch) Dir() string { return s.dir }

// Release removes the directory and everything in it. Safe to call repeatedly
// and on a nil receiver.
func (s *Scratch) Release() error {
	if s == nil {
		return nil
	}
	s.once.Do(func() {
		s.err = os.RemoveAll(s.dir)
	})
	return s.err
}

// Media is a downloaded source file plus its platform metadata.
type Media struct {
	Path     string
	VideoID  string
	Title    string
	Duration time.Duration

	scratch *Scratch
}

// Release frees the downloaded file.
func (m *Media) Release() error {
	if m == nil {
		return nil
	}
	return m.scratch.Release()
}

// AudioFormat is the encoding a Transcriber expects its input in.
type AudioFormat struct {
	Container  string // file extension, e.g. "mp3", "wav"
	Codec      string // ffmpeg encoder name
	SampleRate int
	Channels   int
	Bitrate    string // optional, e.g. "32k"
}

var (
	// FormatSpeechMP3 keeps uploads small for hosted speech APIs.
	FormatSpeechMP3 = AudioFormat{Container: "mp3", Codec: "libmp3lame", SampleRate: 16000, Channels: 1, Bitrate: "32k"}
	// FormatSpeechWAV is what whisper.cpp reads natively.
	FormatSpeechWAV = AudioFormat{Container: "wav", Codec: "pcm_s16le", SampleRate: 16000, Channels: 1}
)

// Audio is an extracted audio file ready for transcription.
type Audio struct {
	Path      string
	Format    AudioFormat
	Duration  time.Duration
	SizeBytes int64

	scratch *Scratch
}

// Release frees the audio file.
func (a *Audio) Release() error {
	if a == nil {
		return nil
	}
	return a.scratch.Release()
}

// NewAudio describes an existing audio file, for callers that manage its lifetime.
func NewAudio(path string, format AudioFormat, duration time.Duration) (*Audio, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	return &Audio{Path: filepath.Clean(path), Format: format, Duration: duration, SizeBytes: info.Size()}, nil
}
