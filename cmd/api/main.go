package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"luxestore-backend/pkg/container"
	"luxestore-backend/pkg/logger"

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

	// Sweep jobs left running by a previous process before serving traffic:
	// stale heartbeats are failed as abandoned, fresh ones resume here.
	sweepCtx, cancelSweep := context.WithTimeout(context.Background(), 30*time.Second)
	abandoned, resumed, err := c.ImportController.RecoverStaleJobs(sweepCtx, c.Config.Importer.StaleAfter)
	cancelSweep()
	if err != nil {
		log.Error().Err(err).Msg("Crash recovery sweep failed")
	} else if abandoned > 0 || resumed > 0 {
		log.Info().Int("abandoned", abandoned).Int("resumed", resumed).Msg("Crash recovery sweep finished")
	}

	srv := &http.Server{
		Addr:              ":" + c.Config.App.Port,
		Handler:           NewRouter(c),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", c.Config.App.Port).Msg("API server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("API server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down API server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Forced shutdown")
	}

	// In-flight import jobs die with the process; the next boot's recovery
	// sweep resumes them from their last persisted progress.
	log.Info().Msg("API server stopped")
}
