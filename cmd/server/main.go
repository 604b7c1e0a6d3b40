package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"mini_orm/internal/config"
	"mini_orm/internal/db"
	httpserver "mini_orm/internal/http"
	"mini_orm/internal/logging"
	"mini_orm/internal/migrate"
	"mini_orm/internal/models"
	"mini_orm/internal/storage"
	"mini_orm/migrations"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	flags := pflag.NewFlagSet("server", pflag.ExitOnError)
	cfgFile := flags.String("config", "", "path to a YAML config file")
	flags.String("dsn", "", "PostgreSQL connection string")
	flags.String("addr", "", "listen address")
	flags.String("log-level", "", "debug, info, warn or error")
	flags.String("log-format", "", "json or text")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load(*cfgFile, flags)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := logging.NewLogger(cfg.Log.Level, cfg.Log.Format)

	pg, err := db.Open(cfg.Database)
	if err != nil {
		logger.Error("db connection failed", "error", err)
		os.Exit(1)
	}
	conn := db.WithLogging(pg, logger, cfg.Database.SlowQueryThreshold)
	defer conn.Close()

	catalog, err := models.Catalog()
	if err != nil {
		logger.Error("catalog init failed", "error", err)
		os.Exit(1)
	}

	store := storage.New(cfg.Migrations.Dir)
	if err := store.EnsureBase(); err != nil {
		logger.Error("storage init failed", "error", err)
		os.Exit(1)
	}
	if copied, err := store.Seed(storage.FromFS(migrations.FS())); err != nil {
		logger.Error("baseline seed failed", "error", err)
		os.Exit(1)
	} else if len(copied) > 0 {
		logger.Info("baseline scripts added", "ids", copied)
	}

	runner := migrate.NewRunner(conn, logger, migrate.WithHistoryTable(cfg.Migrations.HistoryTable))
	generator := migrate.NewGenerator(migrate.NewIntrospector(conn, cfg.Database.Schema))
	migrationHandler := httpserver.NewMigrationHandler(runner, store, generator, catalog.Descriptors(), logger)
	server := httpserver.New(cfg.HTTP.Address, logger, httpserver.HealthHandler{DB: conn}, migrationHandler)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := conn.Ping(gctx); err != nil {
			return fmt.Errorf("ping database: %w", err)
		}
		return runner.EnsureHistoryTable(gctx)
	})
	g.Go(func() error {
		return server.Start(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}
