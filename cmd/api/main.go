package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"tariff/internal/cache"
	"tariff/internal/config"
	"tariff/internal/db"
	"tariff/internal/ledger"
	"tariff/internal/migrations"
	"tariff/internal/server"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("failed to run: %v", err)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Setup logger
	var logger *zap.Logger
	if cfg.IsDevelopment() {
		logger, _ = zap.NewDevelopment()
	} else {
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	logger.Info("starting tariff",
		zap.String("env", cfg.Server.Env),
		zap.Int("port", cfg.Server.Port),
	)

	// Run migrations over a plain database/sql connection, then close it;
	// the application itself uses the pgx pool.
	if err := runMigrations(cfg.Database.URL); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("migrations applied")

	// Connect to PostgreSQL
	database, err := db.New(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()
	logger.Info("connected to PostgreSQL")

	// Connect to Redis. The engine works without it: no rate limiting, no
	// idempotent replay, region lookups hit the database directly.
	var cacheClient *cache.Client
	if c, err := cache.NewClient(ctx, cfg.Redis.URL); err != nil {
		logger.Warn("redis unavailable, continuing without cache", zap.Error(err))
	} else {
		cacheClient = c
		defer cacheClient.Close()
		logger.Info("connected to Redis")
	}

	// Connect to TigerBeetle for fee revenue posting. Also optional.
	var ledgerClient *ledger.Client
	if lc, err := ledger.NewClient(cfg.TigerBeetle); err != nil {
		logger.Warn("ledger unavailable, continuing without fee posting", zap.Error(err))
	} else {
		if err := lc.EnsureSystemAccounts(cfg.Engine.LedgerCurrencies); err != nil {
			logger.Warn("ledger system accounts not ready, continuing without fee posting", zap.Error(err))
			lc.Close()
		} else {
			ledgerClient = lc
			defer ledgerClient.Close()
			logger.Info("connected to TigerBeetle",
				zap.Strings("currencies", cfg.Engine.LedgerCurrencies),
			)
		}
	}

	// Start HTTP server
	srv := server.New(server.Config{
		Port:         cfg.Server.Port,
		Database:     database,
		CacheClient:  cacheClient,
		LedgerClient: ledgerClient,
		Logger:       logger,
		Engine:       cfg.Engine,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	return srv.Shutdown(shutdownCtx)
}

func runMigrations(databaseURL string) error {
	conn, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return err
	}
	defer conn.Close()

	return migrations.Run(conn)
}
