package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/alem-hub/scorm-interceptor/config"
	"github.com/alem-hub/scorm-interceptor/internal/domain/statement"
	"github.com/alem-hub/scorm-interceptor/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/scorm-interceptor/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/scorm-interceptor/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/scorm-interceptor/internal/interface/http/handlers"
	"github.com/alem-hub/scorm-interceptor/pkg/logger"
)

// setupLogger builds the service logger and makes it the slog default.
func setupLogger(cfg *config.ServiceConfig, out io.Writer) *slog.Logger {
	log := logger.New(logger.Options{
		Output: out,
		Format: logger.ParseFormat(cfg.Observability.LogFormat),
		Debug:  cfg.App.Debug,
	})
	slog.SetDefault(log)
	return log
}

// loadOverrides reads the interceptor configuration file, if any, and layers
// SCORM_* environment variables on top of it.
func loadOverrides(cmd *cobra.Command, cfg *config.ServiceConfig) (map[string]any, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = cfg.App.ConfigFile
	}

	var file map[string]any
	if path != "" {
		var err error
		if file, err = config.LoadFile(path); err != nil {
			return nil, err
		}
	}

	return config.Overrides(file, config.FromEnv()), nil
}

// journal is an opened statement journal with its health check and cleanup.
type journal struct {
	statement.Journal
	check handlers.HealthCheckFunc
	close func()
}

// openJournal connects the configured journal backend. Postgres migrations
// run before the journal is returned.
func openJournal(ctx context.Context, cfg *config.ServiceConfig, log *slog.Logger) (*journal, error) {
	switch cfg.Journal.Backend {
	case config.JournalRedis:
		rc := redis.DefaultConfig()
		rc.Host = cfg.Redis.Host
		rc.Port = cfg.Redis.Port
		rc.Password = cfg.Redis.Password
		rc.DB = cfg.Redis.DB
		rc.PoolSize = cfg.Redis.PoolSize
		rc.MinIdleConns = cfg.Redis.MinIdleConns
		rc.DialTimeout = cfg.Redis.DialTimeout
		rc.ReadTimeout = cfg.Redis.ReadTimeout
		rc.WriteTimeout = cfg.Redis.WriteTimeout

		client, err := redis.Connect(ctx, rc)
		if err != nil {
			return nil, err
		}
		j := redis.NewJournal(client, redis.KeyJournal, cfg.Journal.Size)
		log.Info("statement journal on redis", "addr", rc.Addr())
		return &journal{
			Journal: j,
			check:   handlers.NewPingCheck(j),
			close:   func() { _ = client.Close() },
		}, nil

	case config.JournalPostgres:
		pc := postgres.DefaultConfig(cfg.Database.URL)
		if cfg.Database.MaxOpenConns > 0 {
			pc.MaxConns = int32(cfg.Database.MaxOpenConns)
		}
		if cfg.Database.MaxIdleConns > 0 {
			pc.MinConns = int32(cfg.Database.MaxIdleConns)
		}
		pc.MaxConnLifetime = cfg.Database.ConnMaxLifetime
		pc.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

		conn, err := postgres.NewConnection(ctx, pc)
		if err != nil {
			return nil, err
		}
		if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("statement journal on postgres")
		return &journal{
			Journal: postgres.NewJournal(conn),
			check:   handlers.NewPingCheck(conn),
			close:   conn.Close,
		}, nil

	default:
		return &journal{
			Journal: memory.NewJournal(cfg.Journal.Size),
			close:   func() {},
		}, nil
	}
}
