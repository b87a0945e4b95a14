package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marketbridge/platform/internal/app/runtime"
	"github.com/marketbridge/platform/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Run the HTTP API server until SIGINT or SIGTERM.

Examples:
  # In-memory backend on :8080
  AUTH_JWT_SECRET=dev marketplace serve

  # PostgreSQL backend with migrations applied at start
  BACKEND_MODE=postgres DATABASE_URL=postgres://localhost/marketplace?sslmode=disable \
    DATABASE_AUTO_MIGRATE=true AUTH_JWT_SECRET=dev marketplace serve

  # From a config file
  marketplace serve --config config.yaml`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := runtime.NewApplication(ctx, cfg)
	if err != nil {
		return err
	}

	runErr := application.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "shutdown: %v\n", err)
	}
	return runErr
}
