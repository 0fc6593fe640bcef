package config

import (
	"errors"
	"fmt"
)

/*
Validate checks the settings the selected components actually need:
- Server bind address
- Pipeline dispatcher and concurrency
- Transcription and summarization providers and their credentials
- Job store backend
- Redis and worker queues when asynq dispatch is used
*/
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	// Pipeline config
	if c.Pipeline.Concurrency <= 0 {
		return errors.New("pipeline.concurrency must be a positive integer")
	}
	if c.Pipeline.ScratchDir == "" {
		return errors.New("pipeline.scratch_dir is required")
	}
	switch c.Pipeline.Dispatcher {
	case DispatcherLocal:
	case DispatcherAsynq:
		if c.Redis.Address == "" {
			return errors.New("redis.address is required when pipeline.dispatcher is asynq")
		}
		if err := c.validateWorker(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("pipeline.dispatcher must be %q or %q, got %q", DispatcherLocal, DispatcherAsynq, c.Pipeline.Dispatcher)
	}

	// Transcription config
	switch c.Transcription.Provider {
	case ProviderOpenAI:
		if c.OpenAI.APIKey == "" {
			return errors.New("openai.api_key (OPENAI_API_KEY) is required when transcription.provider is openai")
		}
		if c.Transcription.Model == "" {
			return errors.New("transcription.model is required")
		}
	case ProviderWhisperCpp:
		if c.Transcription.WhisperCpp.ModelPath == "" {
			return errors.New("transcription.whisper_cpp.model_path is required when transcription.provider is whisper_cpp")
		}
	default:
		return fmt.Errorf("unsupported transcription.provider %q", c.Transcription.Provider)
	}
	if c.Transcription.MaxBytes < 0 || c.Transcription.MaxDuration < 0 {
		return errors.New("transcription limits must not be negative")
	}

	// Summarization config
	switch c.Summarization.Provider {
	case ProviderOpenAI:
		if c.OpenAI.APIKey == "" {
			return errors.New("openai.api_key (OPENAI_API_KEY) is required when summarization.provider is openai")
		}
	case ProviderGemini:
		if c.Gemini.APIKey == "" {
			return errors.New("gemini.api_key (GEMINI_API_KEY) is required when summarization.provider is gemini")
		}
	default:
		return fmt.Errorf("unsupported summarization.provider %q", c.Summarization.Provider)
	}
	if c.Summarization.Model == "" {
		return errors.New("summarization.model is required")
	}
	if c.Summarization.MaxChunkChars <= 0 {
		return errors.New("summarization.max_chunk_chars must be positive")
	}

	// Store config
	switch c.Store.Backend {
	case BackendMemory:
	case BackendSQLite, BackendPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required when store.backend is %s", c.Store.Backend)
		}
	default:
		return fmt.Errorf("unsupported store.backend %q", c.Store.Backend)
	}

	if c.Output.SummariesFile == "" {
		return errors.New("output.summaries_file is required")
	}

	// Pricing config (optional, but if present, must be valid)
	for provider, models := range c.Pricing {
		for model, price := range models {
			if price.InputPerToken < 0 || price.OutputPerToken < 0 || price.PerMinute < 0 {
				return fmt.Errorf("pricing for provider '%s', model '%s' has negative cost", provider, model)
			}
		}
	}

	return nil
}

// ValidateWorker checks what a standalone worker process needs on top of Validate.
func (c *Config) ValidateWorker() error {
	if c.Redis.Address == "" {
		return errors.New("redis.address is required")
	}
	if c.Store.Backend == BackendMemory {
		return errors.New("store.backend must be sqlite or postgres for a standalone worker; the memory store is not shared between processes")
	}
	return c.validateWorker()
}

func (c *Config) validateWorker() error {
	if c.Worker.Concurrency <= 0 {
		return errors.New("worker.concurrency must be a positive integer")
	}
	if len(c.Worker.Queues) == 0 {
		return errors.New("worker.queues must define at least one queue")
	}
	for name, priority := range c.Worker.Queues {
		if name == "" {
			return errors.New("worker.queues contains an empty queue name")
		}
		if priority <= 0 {
			return fmt.Errorf("worker.queues priority for queue '%s' must be positive", name)
		}
	}
	return nil
}
