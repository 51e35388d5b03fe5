package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Deltares-research/FloodAdapt-sub000/api"
	"github.com/Deltares-research/FloodAdapt-sub000/publish"
)

func (a *app) serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and process queued runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "HTTP server port (overrides server.port)")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	store, err := a.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	var pub publish.Publisher = publish.Nop{}
	if cfg.Publish.Enabled {
		nats, err := publish.NewNATSPublisher(publish.Config{
			URL:            cfg.Publish.URL,
			Subject:        cfg.Publish.Subject,
			Name:           cfg.Publish.Name,
			ConnectTimeout: cfg.Publish.ConnectTimeout,
			ReconnectWait:  cfg.Publish.ReconnectWait,
			MaxReconnects:  cfg.Publish.MaxReconnects,
		}, logger)
		if err != nil {
			return err
		}
		pub = nats
		logger.Info("publishing run results", zap.String("url", cfg.Publish.URL), zap.String("subject", cfg.Publish.Subject))
	}
	defer pub.Close()

	calc := cfg.NewCalculator(logger)
	handler := api.NewHandler(store, calc, cfg.DefaultReturnPeriods(), logger)

	worker := api.NewRunWorker(store, calc, pub, logger)
	worker.PollInterval = cfg.Worker.PollInterval
	worker.Enabled = cfg.Worker.Enabled
	handler.Runs = worker

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.NewRouter(handler, cfg.Server.AllowedOrigins),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	worker.Start()
	defer worker.Stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.Int("port", cfg.Server.Port),
			zap.String("db", cfg.Storage.DBPath))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
