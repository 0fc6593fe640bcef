package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tubesum/internal/config"
	"tubesum/internal/store/memory"
	"tubesum/internal/store/sqlstore"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Pipeline.Concurrency = 2
	cfg.Pipeline.ScratchDir = filepath.Join(dir, "processing")
	cfg.Pipeline.Dispatcher = config.DispatcherLocal
	cfg.Transcription.Provider = config.ProviderWhisperCpp
	cfg.Transcription.WhisperCpp.ModelPath = "/models/ggml-base.bin"
	cfg.Summarization.Provider = config.ProviderOpenAI
	cfg.Summarization.Model = "gpt-4o-mini"
	cfg.Summarization.MaxChunkChars = 1000
	cfg.OpenAI.APIKey = "sk-test"
	cfg.Store.Backend = config.BackendMemory
	cfg.Output.SummariesFile = filepath.Join(dir, "summaries.md")
	return cfg
}

func TestNewApp_LocalMemory(t *testing.T) {
	a, err := NewApp(context.Background(), testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Close()) })

	assert.IsType(t, &memory.JobStore{}, a.JobStore)
	assert.Nil(t, a.JobClient)
	assert.Equal(t, config.ProviderWhisperCpp, a.Transcriber.Name())
	assert.Equal(t, "openai/gpt-4o-mini", a.SummaryService.Model())
	assert.NotNil(t, a.Pipeline)
	assert.Equal(t, a.Config.Output.SummariesFile, a.Results.Path())
	assert.Nil(t, a.Transcripts)
}

func TestNewApp_TranscriptsDir(t *testing.T) {
	cfg := testConfig(t)
	cfg.Output.TranscriptsDir = filepath.Join(t.TempDir(), "transcripts")

	a, err := NewApp(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Transcripts)
	path, err := a.Transcripts.Write(context.Background(), "abc123", "hello world")
	require.NoError(t, err)
	assert.FileExists(t, path)
}

func TestNewApp_SQLiteStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Backend = config.BackendSQLite
	cfg.Store.DSN = filepath.Join(t.TempDir(), "jobs.db")

	a, err := NewApp(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &sqlstore.JobStore{}, a.JobStore)
	assert.NoError(t, a.JobStore.Ping(context.Background()))
}

func TestNewApp_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *config.Config)
	}{
		{"unknown store", func(cfg *config.Config) { cfg.Store.Backend = "mongo" }},
		{"unknown transcriber", func(cfg *config.Config) { cfg.Transcription.Provider = "deepgram" }},
		{"openai transcriber without key", func(cfg *config.Config) {
			cfg.Transcription.Provider = config.ProviderOpenAI
			cfg.OpenAI.APIKey = ""
		}},
		{"unknown summarizer", func(cfg *config.Config) { cfg.Summarization.Provider = "anthropic" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)
			_, err := NewApp(context.Background(), cfg)
			assert.Error(t, err)
		})
	}
}
