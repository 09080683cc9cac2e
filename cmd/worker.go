package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"course-enrollment/internal/config"
	"course-enrollment/pkg/logger"

	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start a standalone enrollment queue consumer",
	Long: `Consume enrollment messages from the configured queue and apply them
to the relational store under the class group row lock. Requires a shared
queue backend (redis, sqs or rabbitmq).`,
	Run: func(cmd *cobra.Command, args []string) {
		startWorker()
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func startWorker() {
	cfg := config.Get()
	if cfg.Queue.Type == "" || cfg.Queue.Type == "memory" {
		logger.Error("The worker command needs a shared queue; queue.type is %q", cfg.Queue.Type)
		os.Exit(1)
	}

	app, err := newApplication(context.Background(), cfg)
	if err != nil {
		logger.Error("Failed to start application: %v", err)
		os.Exit(1)
	}

	if err := app.consumer.Start(app.dispatcher.Handle); err != nil {
		logger.Error("Failed to start queue consumer: %v", err)
		app.Close()
		os.Exit(1)
	}
	logger.Info("⚙️  Enrollment worker consuming %s queue", cfg.Queue.Type)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Stopping queue workers...")
	app.consumer.Stop()
	app.Close()
	logger.Info("✅ Enrollment worker exited")
}
