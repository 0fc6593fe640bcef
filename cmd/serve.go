package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"tubesum/internal/apihandlers"
	"tubesum/internal/app"
	"tubesum/internal/config"
	"tubesum/internal/pipeline"
)

const shutdownTimeout = 15 * time.Second

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP intake server",
	Long: `Starts an HTTP server that accepts video URLs on /api/v1/videos and runs
the summarization pipeline for each one. With pipeline.dispatcher=asynq an
embedded asynq worker consumes the queue as well.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServer(ctx, appInstance)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// newRouter builds the gin engine with API, health and metrics routes.
func newRouter(appInstance *app.App) *gin.Engine {
	if !log.IsLevelEnabled(log.DebugLevel) {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	apihandlers.NewAPIHandler(appInstance).RegisterRoutes(router)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return router
}

// requestLogger logs one line per request through logrus.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Debug("HTTP request")
	}
}

func runServer(ctx context.Context, appInstance *app.App) error {
	cfg := appInstance.Config

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.Server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	srv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           c.Handler(newRouter(appInstance)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var worker *asynq.Server
	if cfg.Pipeline.Dispatcher == config.DispatcherAsynq {
		worker = pipeline.NewWorkerServer(pipeline.WorkerOptions{
			Redis:       appInstance.RedisOptions(),
			Concurrency: cfg.Pipeline.Concurrency,
			Queues:      cfg.Worker.Queues,
		})
		mux := asynq.NewServeMux()
		pipeline.RegisterHandlers(mux, appInstance.Pipeline)
		if err := worker.Start(mux); err != nil {
			return fmt.Errorf("failed to start embedded asynq worker: %w", err)
		}
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting tubesum API server on http://%s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received, stopping HTTP server...")
	case err := <-errCh:
		if err != nil {
			runErr = fmt.Errorf("failed to run API server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnf("HTTP server shutdown: %v", err)
	}
	if worker != nil {
		worker.Shutdown()
	}
	log.Info("Waiting for running jobs to finish...")
	appInstance.Pipeline.Wait()
	log.Info("tubesum API server stopped.")
	return runErr
}
