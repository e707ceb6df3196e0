package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"luxestore-backend/internal/infrastructure/queue"
	"luxestore-backend/internal/shared"
	"luxestore-backend/pkg/container"
	"luxestore-backend/pkg/logger"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load()
	logger.Init(os.Getenv("APP_ENV"))

	c, err := container.NewContainer()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize container")
	}
	defer c.Cleanup()

	startup(c)

	srv := asynq.NewServer(c.RedisOpt(), asynq.Config{
		Concurrency: 10,
		Queues: map[string]int{
			shared.QueueDefault: 6,
			shared.QueueImports: 4,
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			log.Error().Err(err).Str("task", task.Type()).Msg("Task failed")
		}),
	})

	mux := asynq.NewServeMux()
	for taskType, handler := range c.JobHandlers() {
		mux.HandleFunc(taskType, handler)
	}

	scheduler, err := queue.NewScheduler(c.RedisOpt())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build scheduler")
	}
	if err := scheduler.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start scheduler")
	}

	go func() {
		if err := srv.Run(mux); err != nil {
			log.Fatal().Err(err).Msg("Worker server failed")
		}
	}()
	log.Info().Msg("Worker running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down worker")

	scheduler.Shutdown()
	srv.Shutdown()

	// Give locally owned import jobs a moment to persist their progress.
	done := make(chan struct{})
	go func() {
		c.ImportController.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		log.Warn().Msg("Import jobs still running at shutdown; progress resumes on next boot")
	}

	log.Info().Msg("Worker stopped")
}

// startup runs the one-off boot tasks: warm the FX table so pricing has live
// rates before the first hourly refresh, and sweep import jobs orphaned by a
// previous process.
func startup(c *container.Container) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.CurrencyService.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("Initial FX refresh failed; static fallback stays in effect")
	}

	abandoned, resumed, err := c.ImportController.RecoverStaleJobs(ctx, c.Config.Importer.StaleAfter)
	if err != nil {
		log.Error().Err(err).Msg("Crash recovery sweep failed")
		return
	}
	if abandoned > 0 || resumed > 0 {
		log.Info().Int("abandoned", abandoned).Int("resumed", resumed).Msg("Crash recovery sweep finished")
	}
}
