package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"beer-scanner-backend/internal/api"
)

func serveCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the periodic menu checker",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := loadApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.close()
			return serve(ctx, a)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	logger := a.logger

	// Initialize and run the checker in the background
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	checkerDone := make(chan struct{})
	go func() {
		defer close(checkerDone)
		a.scraper.Run(runCtx)
	}()

	// Initialize router
	handler := api.NewHandler(a.store, a.catalog, a.scraper, a.dispatcher, a.webpush, logger)
	router := api.NewRouter(handler, a.cfg.Server, a.metrics)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server starting", zap.Int("port", a.cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Block until a signal is received or the server dies.
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping services")
	case err := <-serverErr:
		runErr = fmt.Errorf("HTTP server ListenAndServe: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}

	cancelRun()
	<-checkerDone
	a.workerPool.Wait()

	logger.Info("server gracefully stopped")
	return runErr
}
