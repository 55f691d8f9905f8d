package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"gorm.io/gorm"

	"equipment-twin-backend/config"
	"equipment-twin-backend/internal/db"
	"equipment-twin-backend/internal/logging"
)

// bootstrap bundles the loaded configuration and logger every command starts from.
type bootstrap struct {
	cfg    *config.Config
	logger *slog.Logger
	closer io.Closer
}

func newBootstrap(out io.Writer, configPath string) (*bootstrap, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load configuration from %s: %w", configPath, err)
	}

	logger, closer, err := logging.New(cfg.Log, out)
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}
	logger.Info("configuration loaded", slog.String("path", configPath), slog.String("driver", cfg.Database.Driver))

	return &bootstrap{cfg: cfg, logger: logger, closer: closer}, nil
}

func (r *bootstrap) Close() error {
	return r.closer.Close()
}

// openStore connects and migrates. A failure is returned as *db.MigrationError
// so callers can keep the service out of the ready state.
func (r *bootstrap) openStore(ctx context.Context) (*gorm.DB, error) {
	level, _ := logging.ParseLevel(r.cfg.Log.Level)
	gormDB, err := db.Open(&r.cfg.Database, logging.GormLevel(level))
	if err != nil {
		return nil, &db.MigrationError{Description: "connect to store", Err: err}
	}

	target := r.cfg.Database.TargetVersion
	if err := db.NewMigrator(gormDB, r.logger).Apply(ctx, target); err != nil {
		r.logMigrationFailure(err, target)
		return gormDB, err
	}
	r.logger.Info("database migrations complete", slog.Int("target_version", target))
	return gormDB, nil
}

func (r *bootstrap) logMigrationFailure(err error, target int) {
	attrs := []any{
		slog.String("error", err.Error()),
		slog.String("driver", r.cfg.Database.Driver),
		slog.Int("target_version", target),
	}
	var me *db.MigrationError
	if errors.As(err, &me) {
		attrs = append(attrs, slog.Int("version", me.Version), slog.String("description", me.Description))
	}
	r.logger.Error("database migration failed; service will not become ready", attrs...)
}
