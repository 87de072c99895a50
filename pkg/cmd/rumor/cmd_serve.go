package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gilchrisn/rumor-spread-service/pkg/api"
	"github.com/gilchrisn/rumor-spread-service/pkg/config"
	"github.com/gilchrisn/rumor-spread-service/pkg/service"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve graphs and experiments over HTTP",
		Long: `Starts the HTTP service. Settings come from --config and from the
environment, e.g. SERVER_ADDRESS=:9090 or JOBS_MAX_WORKERS=8.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			if address, _ := cmd.Flags().GetString("address"); address != "" {
				cfg.Server.Address = address
			}

			levelName := cfg.Logging.Level
			if cmd.Flags().Changed("log-level") {
				levelName, _ = cmd.Flags().GetString("log-level")
			}
			setupLogging(levelName)

			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().String("address", "", "Listen address (overrides server.address)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	log.Info().
		Str("address", cfg.Server.Address).
		Int("max_workers", cfg.Jobs.MaxWorkers).
		Dur("job_timeout", cfg.Jobs.JobTimeout).
		Msg("Configuration loaded")

	datasetService := service.NewDatasetService()
	jobService := service.NewJobService(datasetService, cfg.Jobs)
	defer jobService.Close()

	handlers := api.NewHandlers(datasetService, jobService)

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      api.NewRouter(handlers, cfg.CORS.AllowedOrigins),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("address", cfg.Server.Address).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	log.Info().Msg("Server shutdown complete")
	return nil
}
