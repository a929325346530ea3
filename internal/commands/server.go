package commands

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

	"evalgo.org/playground/internal/api"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the API server",
	Long: `Start the HTTP and WebSocket API server. When docker.watch_events is
enabled the Docker event stream is dispatched alongside it.`,
	RunE: runServer,
}

func runServer(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	a, err := newApp(logger, true)
	if err != nil {
		return err
	}
	defer a.Close()

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)
	defer stop()

	if err := a.connector.Ping(ctx); err != nil {
		logger.Warn("docker is not reachable yet", zap.Error(err))
	}

	server := api.New(cfg, a.playground, a.connector, a.publisher, logger.Named("api"))

	errChan := make(chan error, 2)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	if cfg.Docker.WatchEvents {
		go func() {
			if err := a.playground.Watch(ctx); err != nil {
				errChan <- fmt.Errorf("docker event stream: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errChan:
		logger.Error("server stopped", zap.Error(err))
		stop()
		_ = shutdown(server, logger)
		return err
	}

	return shutdown(server, logger)
}

func shutdown(server *api.Server, logger *zap.Logger) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		return fmt.Errorf("server shutdown error: %w", err)
	}
	return nil
}
