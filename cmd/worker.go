package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"tubesum/internal/app"
	"tubesum/internal/pipeline"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the background job worker",
	Long: `Starts an asynq worker that runs summarize tasks enqueued by serve or run.
Requires a SQL job store shared with the submitting process.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get application context: %w", err)
		}
		if err := appInstance.Config.ValidateWorker(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		if err := runWorker(appInstance); err != nil {
			log.Errorf("Worker exited with error: %v", err)
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

// runWorker initializes and runs the Asynq worker server.
func runWorker(appInstance *app.App) error {
	cfg := appInstance.Config

	srv := pipeline.NewWorkerServer(pipeline.WorkerOptions{
		Redis:       appInstance.RedisOptions(),
		Concurrency: cfg.Worker.Concurrency,
		Queues:      cfg.Worker.Queues,
	})

	mux := asynq.NewServeMux()
	pipeline.RegisterHandlers(mux, appInstance.Pipeline)

	log.Infof("Starting Asynq worker server (Concurrency: %d, Queues: %v)...", cfg.Worker.Concurrency, cfg.Worker.Queues)
	if err := srv.Start(mux); err != nil {
		return fmt.Errorf("failed to start Asynq server: %w", err)
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	log.Info("Shutdown signal received. Initiating graceful shutdown...")
	srv.Stop()
	srv.Shutdown()

	log.Info("Worker shutdown complete.")
	return nil
}
