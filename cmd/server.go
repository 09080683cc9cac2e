package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"course-enrollment/internal/api/router"
	"course-enrollment/internal/config"
	"course-enrollment/pkg/logger"

	"github.com/spf13/cobra"
)

var (
	port       string
	withWorker bool
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the enrollment HTTP server",
	Long: `Start the enrollment HTTP server.
The server accepts enrollment batches, publishes one queue message per class
group and serves batch status from the status ledger. With the in-process
worker enabled it also consumes the queue.`,
	Run: func(cmd *cobra.Command, args []string) {
		startServer(cmd)
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().StringVarP(&port, "port", "p", "8080", "Port for the server to listen on")
	serverCmd.Flags().BoolVar(&withWorker, "worker", true, "Consume the enrollment queue in this process")
}

func startServer(cmd *cobra.Command) {
	cfg := config.Get()
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = port
	}
	runWorker := cfg.Enrollment.RunWorkerInProcess
	if cmd.Flags().Changed("worker") {
		runWorker = withWorker
	}

	ctx := context.Background()
	app, err := newApplication(ctx, cfg)
	if err != nil {
		logger.Error("Failed to start application: %v", err)
		os.Exit(1)
	}

	if runWorker {
		if err := app.consumer.Start(app.dispatcher.Handle); err != nil {
			logger.Error("Failed to start queue consumer: %v", err)
			app.Close()
			os.Exit(1)
		}
		logger.Info("⚙️  In-process enrollment worker started")
	} else if cfg.Queue.Type == "" || cfg.Queue.Type == "memory" {
		logger.Warn("In-memory queue without an in-process worker: published messages will never be processed")
	}

	srv := &http.Server{
		Addr:           ":" + cfg.Server.Port,
		Handler:        router.NewRouter(app.routerDependencies()),
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		logger.Info("🎓 Starting Course Enrollment Server on port %s", cfg.Server.Port)
		logger.Info("📚 Available endpoints:")
		logger.Info("  POST /api/v1/enrollments/batch - Submit an enrollment batch")
		logger.Info("  GET  /api/v1/enrollments/batch/{batchId} - Poll batch status")
		logger.Info("  GET  /api/v1/students/{id}/enrollments - List enrolled class groups")
		logger.Info("  POST /api/v1/settings/reload - Reload runtime settings")
		logger.Info("  GET  /health, /ready, /live, /metrics")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down Course Enrollment Server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown: %v", err)
	}

	if runWorker {
		logger.Info("Stopping queue workers...")
		app.consumer.Stop()
	}
	app.Close()

	logger.Info("✅ Course Enrollment Server exited")
}
