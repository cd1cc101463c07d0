package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/petrelhq/petrel/internal/config"
	"github.com/petrelhq/petrel/internal/observability"
	"github.com/petrelhq/petrel/internal/server"
	"github.com/petrelhq/petrel/pkg/statedoc"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Run the HTTP API server exposing task and progress endpoints.

Endpoints:
  GET /health                    Health and readiness
  GET /v1/tasks                  Registered tasks
  GET /v1/jobs/{jobID}/progress  Persisted progress for a job`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(ctx)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}

	backend, closeBackend, err := stateBackend(ctx, cfg)
	if err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to open state store", err)
	}
	defer closeBackend()

	registry := taskRegistry(cfg)

	srv := server.NewWithVersion(cfg.Server.Host, cfg.Server.Port, versionInfo.Version)
	srv.RegisterTasks(registry.Store(), backend)
	if store, ok := backend.(*statedoc.SQLiteStore); ok {
		srv.RegisterHealthChecker("state_store", store)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		observability.CLILogger.Info("server listening",
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port))
		errCh <- srv.Start()
	}()

	select {
	case sig := <-sigCh:
		// Task controllers run in the commands that own them, each gating
		// its failure path on its own shutdown signal; the server only
		// reads state and needs a plain drain here.
		observability.CLILogger.Info("shutting down", zap.String("signal", sig.String()))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return exitError(foundry.ExitExternalServiceUnavailable, "Shutdown failed", err)
		}
		fmt.Println("server stopped")
		return nil
	case err := <-errCh:
		if err != nil {
			return exitError(foundry.ExitExternalServiceUnavailable, "Server error", err)
		}
		return nil
	}
}
