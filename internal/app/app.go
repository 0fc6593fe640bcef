package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"tubesum/internal/config"
	"tubesum/internal/costtracker"
	"tubesum/internal/formatter"
	"tubesum/internal/media"
	"tubesum/internal/pipeline"
	"tubesum/internal/services"
	"tubesum/internal/store"
	"tubesum/internal/store/memory"
	"tubesum/internal/store/sqlstore"
	"tubesum/pkg/executor"
)

// App holds the wired components shared by the serve, worker and run commands.
type App struct {
	Config *config.Config

	JobStore    store.JobStore
	JobClient   store.JobClient // nil when jobs run in-process
	CostTracker costtracker.CostTracker
	Executor    executor.Executor

	Fetcher           *media.Fetcher
	Extractor         *media.Extractor
	Transcriber       services.Transcriber
	CompletionService services.CompletionService
	SummaryService    *services.SummaryService
	Results           *formatter.FileStore
	Transcripts       *formatter.TranscriptDir // nil unless output.transcripts_dir is set

	Pipeline *pipeline.Orchestrator
}

// NewApp builds every component selected by cfg. Call Close when done.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{
		Config:      cfg,
		CostTracker: costtracker.New(),
		Executor:    executor.New(),
	}

	if err := app.initJobStore(ctx); err != nil {
		return nil, err
	}
	if err := app.initJobClient(); err != nil {
		app.cleanupPartialInit()
		return nil, err
	}
	app.initMedia()
	if err := app.initTranscriber(); err != nil {
		app.cleanupPartialInit()
		return nil, err
	}
	if err := app.initCompletionService(ctx); err != nil {
		app.cleanupPartialInit()
		return nil, err
	}
	app.initSummaryService()
	app.Results = formatter.NewFileStore(cfg.Output.SummariesFile)
	if cfg.Output.TranscriptsDir != "" {
		app.Transcripts = formatter.NewTranscriptDir(cfg.Output.TranscriptsDir)
	}
	app.initPipeline()

	log.Info("Application initialization complete.")
	return app, nil
}

// --- Private Helper Methods ---

func (a *App) initJobStore(ctx context.Context) error {
	cfg := a.Config
	switch cfg.Store.Backend {
	case config.BackendMemory, "":
		a.JobStore = memory.New()
	case config.BackendSQLite:
		s, err := sqlstore.Open(ctx, sqlstore.DialectSQLite, cfg.Store.DSN)
		if err != nil {
			return fmt.Errorf("init sqlite job store: %w", err)
		}
		a.JobStore = s
	case config.BackendPostgres:
		s, err := sqlstore.Open(ctx, sqlstore.DialectPostgres, cfg.Store.DSN)
		if err != nil {
			return fmt.Errorf("init postgres job store: %w", err)
		}
		a.JobStore = s
	default:
		return fmt.Errorf("unsupported store backend %q", cfg.Store.Backend)
	}
	log.Infof("Using %s job store", a.storeName())
	return nil
}

func (a *App) storeName() string {
	if a.Config.Store.Backend == "" {
		return config.BackendMemory
	}
	return a.Config.Store.Backend
}

func (a *App) initJobClient() error {
	if a.Config.Pipeline.Dispatcher != config.DispatcherAsynq {
		return nil
	}
	jc, err := store.NewAsynqJobClient(a.RedisOptions())
	if err != nil {
		return fmt.Errorf("init job client: %w", err)
	}
	a.JobClient = jc
	return nil
}

// RedisOptions returns the redis connection settings for asynq.
func (a *App) RedisOptions() store.RedisOptions {
	return store.RedisOptions{
		Address:  a.Config.Redis.Address,
		Password: a.Config.Redis.Password,
		DB:       a.Config.Redis.DB,
	}
}

func (a *App) initMedia() {
	cfg := a.Config
	a.Fetcher = media.NewFetcher(a.Executor, media.FetcherOptions{
		Binary:      cfg.Fetch.Binary,
		Format:      cfg.Fetch.Format,
		Timeout:     cfg.Fetch.Timeout,
		MaxDuration: cfg.Fetch.MaxDuration,
	})
	a.Extractor = media.NewExtractor(a.Executor, media.ExtractorOptions{
		FFmpegBinary:  cfg.Extract.FFmpegBinary,
		FFprobeBinary: cfg.Extract.FFprobeBinary,
		Timeout:       cfg.Extract.Timeout,
	})
}

func (a *App) initTranscriber() error {
	cfg := a.Config
	limits := services.TranscriptionLimits{
		MaxBytes:    cfg.Transcription.MaxBytes,
		MaxDuration: cfg.Transcription.MaxDuration,
		Timeout:     cfg.Transcription.Timeout,
	}
	switch cfg.Transcription.Provider {
	case config.ProviderOpenAI:
		t, err := services.NewOpenAITranscriber(cfg.OpenAI.APIKey, services.OpenAITranscriberOptions{
			Model:       cfg.Transcription.Model,
			Language:    cfg.Transcription.Language,
			Limits:      limits,
			CostTracker: a.CostTracker,
			Pricing:     cfg.Pricing[config.ProviderOpenAI],
		})
		if err != nil {
			return fmt.Errorf("init openai transcriber: %w", err)
		}
		a.Transcriber = t
	case config.ProviderWhisperCpp:
		a.Transcriber = services.NewWhisperCppTranscriber(a.Executor, services.WhisperCppOptions{
			Binary:    cfg.Transcription.WhisperCpp.Binary,
			ModelPath: cfg.Transcription.WhisperCpp.ModelPath,
			Language:  cfg.Transcription.Language,
			Threads:   cfg.Transcription.WhisperCpp.Threads,
			Limits:    limits,
		})
	default:
		return fmt.Errorf("unsupported transcription provider %q", cfg.Transcription.Provider)
	}
	log.Infof("Initialized %s transcriber", a.Transcriber.Name())
	return nil
}

func (a *App) initCompletionService(ctx context.Context) error {
	cfg := a.Config
	switch cfg.Summarization.Provider {
	case config.ProviderOpenAI:
		a.CompletionService = services.NewOpenAIProvider(cfg.OpenAI.APIKey, services.OpenAIProviderOptions{
			Model:       cfg.Summarization.Model,
			Temperature: cfg.Summarization.Temperature,
			MaxAttempts: cfg.Summarization.MaxAttempts,
			CostTracker: a.CostTracker,
			Pricing:     cfg.Pricing[config.ProviderOpenAI],
		})
	case config.ProviderGemini:
		gp, err := services.NewGeminiProvider(ctx, cfg.Gemini.APIKey, services.GeminiProviderOptions{
			Model:       cfg.Summarization.Model,
			Temperature: cfg.Summarization.Temperature,
			MaxAttempts: cfg.Summarization.MaxAttempts,
			CostTracker: a.CostTracker,
			Pricing:     cfg.Pricing[config.ProviderGemini],
		})
		if err != nil {
			return fmt.Errorf("failed to initialize Gemini completion provider: %w", err)
		}
		a.CompletionService = gp
	default:
		return fmt.Errorf("unknown or unsupported summarization provider configured: %s", cfg.Summarization.Provider)
	}
	log.Infof("Initialized %s completion provider (Model: %s, Status: %s)",
		a.CompletionService.Name(), a.CompletionService.ModelName(), a.CompletionService.Status())
	return nil
}

func (a *App) initSummaryService() {
	cfg := a.Config
	promptContent, err := config.LoadPromptContent(cfg.Summarization.Prompt)
	if err != nil {
		log.Warnf("Failed to load summarization prompt: %v. Using the built-in prompt.", err)
		promptContent = ""
	}
	a.SummaryService = services.NewSummaryService(a.CompletionService, services.SummaryOptions{
		SystemPrompt:  promptContent,
		MaxChunkChars: cfg.Summarization.MaxChunkChars,
		Timeout:       cfg.Summarization.Timeout,
	})
}

func (a *App) initPipeline() {
	opts := pipeline.Options{
		ScratchDir:  a.Config.Pipeline.ScratchDir,
		Concurrency: a.Config.Pipeline.Concurrency,
	}
	if a.JobClient != nil {
		opts.Dispatcher = a.JobClient
	}
	deps := pipeline.Deps{
		Jobs:        a.JobStore,
		Fetcher:     a.Fetcher,
		Extractor:   a.Extractor,
		Transcriber: a.Transcriber,
		Summarizer:  a.SummaryService,
		Results:     a.Results,
	}
	if a.Transcripts != nil {
		deps.Transcripts = a.Transcripts
	}
	a.Pipeline = pipeline.New(deps, opts)
}

// Close waits for in-process jobs and releases every connection.
func (a *App) Close() error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.Pipeline != nil {
		// Closes JobClient too when it is the dispatcher.
		keep(a.Pipeline.Close())
	} else if a.JobClient != nil {
		keep(a.JobClient.Close())
	}
	if cs, ok := a.CompletionService.(interface{ Close() error }); ok && cs != nil {
		keep(cs.Close())
	}
	if a.JobStore != nil {
		keep(a.JobStore.Close())
	}
	return firstErr
}

func (a *App) cleanupPartialInit() {
	if a.JobClient != nil {
		a.JobClient.Close()
	}
	if cs, ok := a.CompletionService.(interface{ Close() error }); ok && cs != nil {
		if err := cs.Close(); err != nil {
			log.Printf("Error closing CompletionService: %v", err)
		}
	}
	if a.JobStore != nil {
		a.JobStore.Close()
	}
}
