package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/httpapi"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ragd HTTP server",
	Long: `Start the HTTP server with upload, query and scope management endpoints.

Examples:
  # Start with defaults (port 8000, embedded store)
  ragd serve

  # Use a different config file
  ragd serve --config /etc/ragd/config.yaml`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	srv, err := httpapi.NewServer(a.ingestor, a.retriever, a.store, a.logger, &httpapi.Config{
		Port:           a.cfg.Server.Port,
		MaxUploadBytes: int64(a.cfg.Uploads.MaxFileSizeMB) << 20,
	})
	if err != nil {
		return err
	}

	a.logger.Info("starting ragd",
		zap.Int("port", a.cfg.Server.Port),
		zap.String("vectorstore", a.cfg.VectorStore.Provider),
		zap.String("embeddings", a.cfg.Embeddings.Provider),
		zap.String("generator_model", a.cfg.Generator.Model))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		a.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	return srv.Shutdown(shutdownCtx)
}
