// Package main is the entry point for the store API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fdyytu1/store-dc/internal/api"
	"github.com/fdyytu1/store-dc/internal/config"
	"github.com/fdyytu1/store-dc/internal/event"
	"github.com/fdyytu1/store-dc/internal/pkg/cache"
	"github.com/fdyytu1/store-dc/internal/pkg/db"
	"github.com/fdyytu1/store-dc/internal/pkg/lock"
	"github.com/fdyytu1/store-dc/internal/repository"
	"github.com/fdyytu1/store-dc/internal/service"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log.Info().Msg("Configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	// Run database migrations
	if err := runMigrations(ctx, dbPool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Initialize repositories
	identityRepo := repository.NewIdentityRepository(dbPool.Pool)
	balanceRepo := repository.NewBalanceRepository(dbPool.Pool)
	stockRepo := repository.NewStockRepository(dbPool.Pool)

	// Shared infrastructure: cache, lock registry, event bus
	memCache := cache.NewMemory(cfg.Cache.BalanceTTL, time.Minute)
	locks := lock.NewKeyLock(cfg.Locks.SweepInterval, cfg.Locks.MaxIdle)
	defer locks.Close()

	bus := event.NewBus(log.Logger)
	registerEventLogging(bus)

	// Initialize services
	ttls := service.CacheTTLs{
		Identity: cfg.Cache.IdentityTTL,
		Balance:  cfg.Cache.BalanceTTL,
		Product:  cfg.Cache.ProductTTL,
	}
	balanceService := service.NewBalanceService(identityRepo, balanceRepo, memCache, ttls, log.Logger)
	productService := service.NewProductService(stockRepo, memCache, ttls)
	adminService := service.NewAdminService(
		balanceService,
		memCache,
		locks,
		cfg.Locks.AcquireTimeout,
		cfg.Cache.MaintenanceTTL,
		cfg.Admin.IDs,
		log.Logger,
	)
	// Registration is gated on maintenance mode; the checker is
	// attached after construction because AdminService consumes the
	// balance service as its ledger.
	balanceService.SetMaintenanceChecker(adminService)
	transactionService := service.NewTransactionService(
		balanceService,
		productService,
		locks,
		bus,
		adminService,
		cfg.Locks.AcquireTimeout,
		log.Logger,
	)

	// Initialize HTTP server
	server := api.NewServer(
		balanceService,
		transactionService,
		productService,
		adminService,
		dbPool,
		cfg.Server.AuthToken,
		log.Logger,
	)
	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.Routes(),
	}

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("Server is starting...")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}
	adminService.Cleanup()
	log.Info().Msg("Server stopped gracefully")
}

// registerEventLogging attaches the default log-only subscribers so
// every lifecycle event leaves a trace even with no other consumers.
func registerEventLogging(bus *event.Bus) {
	bus.Subscribe(event.PurchaseCompleted, func(_ context.Context, payload any) error {
		if e, ok := payload.(event.PurchaseCompletedEvent); ok {
			log.Info().
				Str("buyer_id", e.BuyerID).
				Str("product_code", e.ProductCode).
				Int("quantity", e.Quantity).
				Int64("total_price", e.TotalPrice).
				Msg("purchase completed")
		}
		return nil
	})
	bus.Subscribe(event.WithdrawalCompleted, func(_ context.Context, payload any) error {
		if e, ok := payload.(event.WithdrawalCompletedEvent); ok {
			log.Info().
				Str("user_id", e.UserID).
				Int64("total_wl", e.TotalWL).
				Msg("withdrawal completed")
		}
		return nil
	})
	bus.Subscribe(event.DepositCompleted, func(_ context.Context, payload any) error {
		if e, ok := payload.(event.DepositCompletedEvent); ok {
			log.Info().
				Str("user_id", e.UserID).
				Int64("total_wl", e.TotalWL).
				Msg("deposit completed")
		}
		return nil
	})
	bus.Subscribe(event.TransactionFailed, func(_ context.Context, payload any) error {
		if e, ok := payload.(event.TransactionFailedEvent); ok {
			log.Warn().
				Str("type", e.Type).
				Str("user_id", e.UserID).
				Str("reason", e.Reason).
				Msg("transaction failed")
		}
		return nil
	})
	bus.Subscribe(event.Error, func(_ context.Context, payload any) error {
		if e, ok := payload.(event.ErrorEvent); ok {
			log.Error().
				Str("op", e.Op).
				Str("user_id", e.UserID).
				Str("reason", e.Reason).
				Msg("operational error")
		}
		return nil
	})
}

// runMigrations executes database migrations.
func runMigrations(ctx context.Context, pool *db.Pool) error {
	log.Info().Msg("Running database migrations...")

	// Migration 1: Create users table
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			discord_id VARCHAR(64) PRIMARY KEY,
			grow_id VARCHAR(255) NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 1: users table created")

	// Migration 2: Create balances table
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS balances (
			grow_id VARCHAR(255) PRIMARY KEY,
			balance_wl BIGINT NOT NULL DEFAULT 0,
			balance_dl BIGINT NOT NULL DEFAULT 0,
			balance_bgl BIGINT NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 2: balances table created")

	// Migration 3: Create products table
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS products (
			code VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			price BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 3: products table created")

	// Migration 4: Create stock_items table
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS stock_items (
			id BIGSERIAL PRIMARY KEY,
			product_code VARCHAR(64) NOT NULL,
			content TEXT NOT NULL,
			status VARCHAR(32) NOT NULL DEFAULT 'available',
			buyer_id VARCHAR(64),
			added_by VARCHAR(64) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_stock_items_product_status ON stock_items(product_code, status);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 4: stock_items table created")

	// Migration 5: Create transactions table
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS transactions (
			id BIGSERIAL PRIMARY KEY,
			grow_id VARCHAR(255) NOT NULL,
			type VARCHAR(32) NOT NULL,
			details TEXT NOT NULL DEFAULT '',
			old_balance VARCHAR(64) NOT NULL,
			new_balance VARCHAR(64) NOT NULL,
			product_code VARCHAR(64),
			status VARCHAR(32) NOT NULL DEFAULT 'success',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_transactions_grow_time ON transactions(grow_id, created_at DESC);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 5: transactions table created")

	log.Info().Msg("All migrations completed successfully")
	return nil
}
