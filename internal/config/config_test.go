package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

// clearEnv blanks variables that would otherwise override file values.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"OPENAI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY", "PROCESSING_DIR", "SUMMARIES_FILE", "HOST", "PORT", "DATABASE_URL", "REDIS_ADDR"} {
		t.Setenv(k, "")
	}
}

func TestLoadConfig_DefaultsAndEnv(t *testing.T) {
	viper.Reset()
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("PROCESSING_DIR", "/tmp/scratch")
	t.Setenv("SUMMARIES_FILE", "out.md")
	t.Setenv("PORT", "9090")

	cfg, err := LoadConfig(writeConfig(t, "logging:\n  level: debug\n"))
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
	assert.Equal(t, "/tmp/scratch", cfg.Pipeline.ScratchDir)
	assert.Equal(t, "out.md", cfg.Output.SummariesFile)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:9090", cfg.ListenAddr())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "gpt-4-turbo-preview", cfg.Summarization.Model)
	assert.InDelta(t, 0.7, cfg.Summarization.Temperature, 1e-6)
	assert.Equal(t, int64(25*1024*1024), cfg.Transcription.MaxBytes)
	assert.Equal(t, DispatcherLocal, cfg.Pipeline.Dispatcher)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, 15*time.Minute, cfg.Fetch.Timeout)
	assert.Equal(t, map[string]int{"summaries": 1}, cfg.Worker.Queues)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_FileValues(t *testing.T) {
	viper.Reset()
	clearEnv(t)
	path := writeConfig(t, `
server:
  host: 127.0.0.1
  port: 8123
pipeline:
  concurrency: 2
  dispatcher: asynq
fetch:
  timeout: 90s
  max_duration: 2h
summarization:
  provider: gemini
  model: gemini-1.5-flash
gemini:
  api_key: g-key
openai:
  api_key: o-key
store:
  backend: sqlite
  dsn: "file:jobs.db?_busy_timeout=5000"
pricing:
  openai:
    whisper-1:
      per_minute: 0.006
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8123", cfg.ListenAddr())
	assert.Equal(t, 2, cfg.Pipeline.Concurrency)
	assert.Equal(t, 90*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, 2*time.Hour, cfg.Fetch.MaxDuration)
	assert.Equal(t, ProviderGemini, cfg.Summarization.Provider)
	assert.InDelta(t, 0.006, cfg.Pricing["openai"]["whisper-1"].PerMinute, 1e-9)
	require.NoError(t, cfg.Validate())
	require.NoError(t, cfg.ValidateWorker())
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	viper.Reset()
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	viper.Reset()
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	cfg, err := LoadConfig(writeConfig(t, "{}\n"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"missing openai key", func(c *Config) { c.OpenAI.APIKey = "" }, "openai.api_key"},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"zero concurrency", func(c *Config) { c.Pipeline.Concurrency = 0 }, "pipeline.concurrency"},
		{"unknown dispatcher", func(c *Config) { c.Pipeline.Dispatcher = "kafka" }, "pipeline.dispatcher"},
		{"asynq without redis", func(c *Config) {
			c.Pipeline.Dispatcher = DispatcherAsynq
			c.Redis.Address = ""
		}, "redis.address"},
		{"gemini without key", func(c *Config) { c.Summarization.Provider = ProviderGemini }, "gemini.api_key"},
		{"whisper.cpp without model", func(c *Config) { c.Transcription.Provider = ProviderWhisperCpp }, "model_path"},
		{"sql without dsn", func(c *Config) { c.Store.Backend = BackendPostgres }, "store.dsn"},
		{"unknown store", func(c *Config) { c.Store.Backend = "redis" }, "store.backend"},
		{"negative price", func(c *Config) {
			c.Pricing = map[string]map[string]PricingInfo{"openai": {"m": {InputPerToken: -1}}}
		}, "negative cost"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateWorker_RequiresSharedStore(t *testing.T) {
	cfg := validConfig(t)
	err := cfg.ValidateWorker()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.backend")
}

func TestConfigureLogging(t *testing.T) {
	cfg := &Config{}
	cfg.Logging.Level = "warn"
	assert.NoError(t, cfg.ConfigureLogging())
	cfg.Logging.Level = "loud"
	assert.Error(t, cfg.ConfigureLogging())
}

func TestLoadPromptContent(t *testing.T) {
	got, err := LoadPromptContent("")
	require.NoError(t, err)
	assert.Empty(t, got)

	p := filepath.Join(t.TempDir(), "system.txt")
	require.NoError(t, os.WriteFile(p, []byte("be brief"), 0o600))
	got, err = LoadPromptContent(p)
	require.NoError(t, err)
	assert.Equal(t, "be brief", got)

	_, err = LoadPromptContent(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
