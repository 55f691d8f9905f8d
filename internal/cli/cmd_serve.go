package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"equipment-twin-backend/internal/api"
	"equipment-twin-backend/internal/db"
	"equipment-twin-backend/internal/store"
)

func newServeCommand(out io.Writer, configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Apply migrations and serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, out, *configPath)
		},
	}
}

func runServe(ctx context.Context, out io.Writer, configPath string) error {
	rt, err := newBootstrap(out, configPath)
	if err != nil {
		return err
	}
	defer rt.Close()
	logger := rt.logger

	gin.SetMode(gin.ReleaseMode)

	var appStore store.Store
	gormDB, startupErr := rt.openStore(ctx)
	if gormDB != nil {
		defer func() {
			if err := db.Close(gormDB); err != nil {
				logger.Warn("closing database", slog.String("error", err.Error()))
			}
		}()
	}
	if startupErr == nil {
		if rt.cfg.Database.SeedSampleData {
			if _, err := db.SeedSampleData(ctx, gormDB, logger); err != nil {
				logger.Error("seeding sample data failed", slog.String("error", err.Error()))
			}
		}
		appStore = store.NewGormStore(gormDB, logger)
		logger.Info("data store initialized")
	}

	router := api.NewRouter(appStore, logger, api.Options{
		RateLimit:  rate.Limit(rt.cfg.Server.RateLimitPerSec),
		Burst:      rt.cfg.Server.RateLimitBurst,
		CacheTTL:   rt.cfg.Server.CacheTTL,
		StartupErr: startupErr,
	})
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", rt.cfg.Server.Port),
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server starting", slog.Int("port", rt.cfg.Server.Port), slog.Bool("ready", startupErr == nil))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutdown signal received, stopping server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), rt.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}

	logger.Info("server gracefully stopped")
	return nil
}
