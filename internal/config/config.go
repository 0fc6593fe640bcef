package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// PricingInfo holds cost details for a specific model.
type PricingInfo struct {
	InputPerToken  float64 `mapstructure:"input_per_token"`
	OutputPerToken float64 `mapstructure:"output_per_token"`
	PerMinute      float64 `mapstructure:"per_minute"` // audio models
}

type Config struct {
	Server struct {
		Host        string   `mapstructure:"host"`
		Port        int      `mapstructure:"port"`
		CORSOrigins []string `mapstructure:"cors_origins"`
	} `mapstructure:"server"`

	Logging struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"` // "text" or "json"
	} `mapstructure:"logging"`

	Pipeline struct {
		Concurrency int    `mapstructure:"concurrency"`
		ScratchDir  string `mapstructure:"scratch_dir"`
		Dispatcher  string `mapstructure:"dispatcher"` // "local" or "asynq"
	} `mapstructure:"pipeline"`

	Fetch struct {
		Binary      string        `mapstructure:"binary"`
		Format      string        `mapstructure:"format"`
		Timeout     time.Duration `mapstructure:"timeout"`
		MaxDuration time.Duration `mapstructure:"max_duration"`
	} `mapstructure:"fetch"`

	Extract struct {
		FFmpegBinary  string        `mapstructure:"ffmpeg_binary"`
		FFprobeBinary string        `mapstructure:"ffprobe_binary"`
		Timeout       time.Duration `mapstructure:"timeout"`
	} `mapstructure:"extract"`

	Transcription struct {
		Provider    string        `mapstructure:"provider"` // "openai" or "whisper_cpp"
		Model       string        `mapstructure:"model"`
		Language    string        `mapstructure:"language"`
		MaxBytes    int64         `mapstructure:"max_bytes"`
		MaxDuration time.Duration `mapstructure:"max_duration"`
		Timeout     time.Duration `mapstructure:"timeout"`
		WhisperCpp  struct {
			Binary    string `mapstructure:"binary"`
			ModelPath string `mapstructure:"model_path"`
			Threads   int    `mapstructure:"threads"`
		} `mapstructure:"whisper_cpp"`
	} `mapstructure:"transcription"`

	Summarization struct {
		Provider      string        `mapstructure:"provider"` // "openai" or "gemini"
		Model         string        `mapstructure:"model"`
		Prompt        string        `mapstructure:"prompt"` // optional system prompt file
		Temperature   float32       `mapstructure:"temperature"`
		MaxChunkChars int           `mapstructure:"max_chunk_chars"`
		MaxAttempts   int           `mapstructure:"max_attempts"`
		Timeout       time.Duration `mapstructure:"timeout"`
	} `mapstructure:"summarization"`

	OpenAI struct {
		APIKey string `mapstructure:"api_key"`
	} `mapstructure:"openai"`

	Gemini struct {
		APIKey string `mapstructure:"api_key"`
	} `mapstructure:"gemini"`

	Store struct {
		Backend string `mapstructure:"backend"` // "memory", "sqlite" or "postgres"
		DSN     string `mapstructure:"dsn"`
	} `mapstructure:"store"`

	Output struct {
		SummariesFile  string `mapstructure:"summaries_file"`
		TranscriptsDir string `mapstructure:"transcripts_dir"` // empty disables transcript files
	} `mapstructure:"output"`

	Redis struct {
		Address  string `mapstructure:"address"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	Worker struct {
		Concurrency int            `mapstructure:"concurrency"`
		Queues      map[string]int `mapstructure:"queues"`
	} `mapstructure:"worker"`

	// Pricing: map[provider][model] = struct{input_per_token, output_per_token, per_minute}
	Pricing map[string]map[string]PricingInfo `mapstructure:"pricing"`
}

// Dispatcher and backend names.
const (
	DispatcherLocal = "local"
	DispatcherAsynq = "asynq"

	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"

	ProviderOpenAI     = "openai"
	ProviderGemini     = "gemini"
	ProviderWhisperCpp = "whisper_cpp"
)

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8000)
	viper.SetDefault("server.cors_origins", []string{"*"})
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")

	viper.SetDefault("pipeline.concurrency", 4)
	viper.SetDefault("pipeline.scratch_dir", "processing")
	viper.SetDefault("pipeline.dispatcher", DispatcherLocal)

	viper.SetDefault("fetch.binary", "yt-dlp")
	viper.SetDefault("fetch.format", "bestaudio/best")
	viper.SetDefault("fetch.timeout", 15*time.Minute)
	viper.SetDefault("fetch.max_duration", 0)

	viper.SetDefault("extract.ffmpeg_binary", "ffmpeg")
	viper.SetDefault("extract.ffprobe_binary", "ffprobe")
	viper.SetDefault("extract.timeout", 10*time.Minute)

	viper.SetDefault("transcription.provider", ProviderOpenAI)
	viper.SetDefault("transcription.model", "whisper-1")
	viper.SetDefault("transcription.max_bytes", 25*1024*1024)
	viper.SetDefault("transcription.max_duration", 0)
	viper.SetDefault("transcription.timeout", 10*time.Minute)
	viper.SetDefault("transcription.whisper_cpp.binary", "whisper-cli")
	viper.SetDefault("transcription.whisper_cpp.threads", 4)

	viper.SetDefault("summarization.provider", ProviderOpenAI)
	viper.SetDefault("summarization.model", "gpt-4-turbo-preview")
	viper.SetDefault("summarization.temperature", 0.7)
	viper.SetDefault("summarization.max_chunk_chars", 24000)
	viper.SetDefault("summarization.max_attempts", 3)
	viper.SetDefault("summarization.timeout", 5*time.Minute)

	viper.SetDefault("store.backend", BackendMemory)
	viper.SetDefault("output.summaries_file", "summaries.md")

	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("worker.concurrency", 4)
	viper.SetDefault("worker.queues", map[string]int{"summaries": 1})
}

// LoadConfig reads config.yaml (from configPath if set, else the working
// directory), a .env file if present, and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	setDefaults()
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".") // Look for config.yaml in the current directory
	}

	// --- Environment Variable Binding ---
	viper.AutomaticEnv()
	// Names used by the original deployment scripts.
	viper.BindEnv("openai.api_key", "OPENAI_API_KEY")
	viper.BindEnv("gemini.api_key", "GEMINI_API_KEY", "GOOGLE_API_KEY")
	viper.BindEnv("pipeline.scratch_dir", "PROCESSING_DIR")
	viper.BindEnv("output.summaries_file", "SUMMARIES_FILE")
	viper.BindEnv("output.transcripts_dir", "TRANSCRIPTS_DIR")
	viper.BindEnv("server.host", "HOST")
	viper.BindEnv("server.port", "PORT")
	viper.BindEnv("store.dsn", "DATABASE_URL")
	viper.BindEnv("redis.address", "REDIS_ADDR")
	// --- End Environment Variable Binding ---

	if err := viper.ReadInConfig(); err != nil {
		// It's okay if the config file doesn't exist, Viper might rely solely on env vars
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !(configPath == "" && os.IsNotExist(err)) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		log.Debug("Config file not found, using defaults and environment")
	} else {
		log.Debugf("Using config file: %s", viper.ConfigFileUsed())
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	return &config, nil
}

// WatchLogLevel re-applies logging.level whenever the config file changes.
// It is a no-op when no config file was loaded.
func WatchLogLevel() {
	if viper.ConfigFileUsed() == "" {
		return
	}
	viper.OnConfigChange(func(e fsnotify.Event) {
		level, err := log.ParseLevel(viper.GetString("logging.level"))
		if err != nil {
			log.Warnf("Ignoring invalid logging.level after %s changed: %v", e.Name, err)
			return
		}
		log.SetLevel(level)
		log.Infof("Config file %s changed, log level now %s", e.Name, level)
	})
	viper.WatchConfig()
}

// ConfigureLogging applies logging.level and logging.format to logrus.
func (c *Config) ConfigureLogging() error {
	level, err := log.ParseLevel(c.Logging.Level)
	if err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	log.SetLevel(level)
	if c.Logging.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}

// ListenAddr is the host:port the intake server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
