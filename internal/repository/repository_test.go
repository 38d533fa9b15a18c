// Tests use testcontainers-go to spin up a PostgreSQL container and
// run against the real schema.
package repository

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/fdyytu1/store-dc/internal/model"
)

// checkDockerAvailable checks if Docker is available and running
func checkDockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	err := cmd.Run()
	return err == nil
}

// setupTestDB creates a PostgreSQL container and returns a connection pool
// Skips the test if Docker is not available
func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	err = runTestMigrations(ctx, pool)
	require.NoError(t, err)

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}

	return pool, cleanup
}

// runTestMigrations applies the database schema
func runTestMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			discord_id VARCHAR(64) PRIMARY KEY,
			grow_id VARCHAR(255) NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS balances (
			grow_id VARCHAR(255) PRIMARY KEY,
			balance_wl BIGINT NOT NULL DEFAULT 0,
			balance_dl BIGINT NOT NULL DEFAULT 0,
			balance_bgl BIGINT NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS products (
			code VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			price BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS stock_items (
			id BIGSERIAL PRIMARY KEY,
			product_code VARCHAR(64) NOT NULL,
			content TEXT NOT NULL,
			status VARCHAR(32) NOT NULL DEFAULT 'available',
			buyer_id VARCHAR(64),
			added_by VARCHAR(64) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_stock_items_product_status ON stock_items (product_code, status)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id BIGSERIAL PRIMARY KEY,
			grow_id VARCHAR(255) NOT NULL,
			type VARCHAR(32) NOT NULL,
			details TEXT NOT NULL DEFAULT '',
			old_balance VARCHAR(64) NOT NULL,
			new_balance VARCHAR(64) NOT NULL,
			product_code VARCHAR(64),
			status VARCHAR(32) NOT NULL DEFAULT 'success',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_grow_id ON transactions (grow_id, created_at DESC)`,
	}
	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// ============================================================================
// IdentityRepository Tests
// ============================================================================

func TestIdentityRepository_Register(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewIdentityRepository(pool)
	ctx := context.Background()

	id, err := repo.Register(ctx, "discord-a", "GROW_A")
	require.NoError(t, err)
	assert.Equal(t, "discord-a", id.DiscordID)
	assert.Equal(t, "GROW_A", id.GrowID)
	assert.False(t, id.CreatedAt.IsZero())

	// Registration seeds a zero balance.
	balRepo := NewBalanceRepository(pool)
	bal, err := balRepo.GetBalance(ctx, "GROW_A")
	require.NoError(t, err)
	assert.Equal(t, int64(0), bal.TotalWL())
}

func TestIdentityRepository_RegisterRebindsGrowID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewIdentityRepository(pool)
	ctx := context.Background()

	_, err := repo.Register(ctx, "discord-a", "GROW_OLD")
	require.NoError(t, err)

	id, err := repo.Register(ctx, "discord-a", "GROW_NEW")
	require.NoError(t, err)
	assert.Equal(t, "GROW_NEW", id.GrowID)

	// Still exactly one identity for the user.
	got, err := repo.GetByDiscordID(ctx, "discord-a")
	require.NoError(t, err)
	assert.Equal(t, "GROW_NEW", got.GrowID)

	_, err = repo.GetByGrowID(ctx, "GROW_OLD")
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestIdentityRepository_RegisterGrowIDTaken(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewIdentityRepository(pool)
	ctx := context.Background()

	_, err := repo.Register(ctx, "discord-a", "GROW_A")
	require.NoError(t, err)

	_, err = repo.Register(ctx, "discord-b", "GROW_A")
	assert.ErrorIs(t, err, ErrGrowIDTaken)
}

func TestIdentityRepository_GetByDiscordIDNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewIdentityRepository(pool)

	_, err := repo.GetByDiscordID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotRegistered)
}

// ============================================================================
// BalanceRepository Tests
// ============================================================================

func registerUser(t *testing.T, pool *pgxpool.Pool, discordID, growID string) {
	t.Helper()
	_, err := NewIdentityRepository(pool).Register(context.Background(), discordID, growID)
	require.NoError(t, err)
}

func TestBalanceRepository_UpdateBalance(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	registerUser(t, pool, "discord-a", "GROW_A")
	repo := NewBalanceRepository(pool)
	ctx := context.Background()

	newBal, err := repo.UpdateBalance(ctx, "GROW_A", 45, 23, 1, "Deposit", model.TxTypeDeposit, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(12345), newBal.TotalWL())
	// Stored canonically.
	assert.Equal(t, int64(45), newBal.WL)
	assert.Equal(t, int64(23), newBal.DL)
	assert.Equal(t, int64(1), newBal.BGL)

	got, err := repo.GetBalance(ctx, "GROW_A")
	require.NoError(t, err)
	assert.Equal(t, int64(12345), got.TotalWL())
}

func TestBalanceRepository_UpdateBalanceInsufficient(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	registerUser(t, pool, "discord-a", "GROW_A")
	repo := NewBalanceRepository(pool)
	ctx := context.Background()

	_, err := repo.UpdateBalance(ctx, "GROW_A", 100, 0, 0, "Deposit", model.TxTypeDeposit, nil)
	require.NoError(t, err)

	_, err = repo.UpdateBalance(ctx, "GROW_A", -150, 0, 0, "Withdrawal", model.TxTypeWithdrawal, nil)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	// The failed debit left no trace: balance unchanged, one record.
	got, err := repo.GetBalance(ctx, "GROW_A")
	require.NoError(t, err)
	assert.Equal(t, int64(100), got.TotalWL())

	count, err := repo.CountHistory(ctx, "GROW_A")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestBalanceRepository_UpdateBalanceWritesAuditRecord(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	registerUser(t, pool, "discord-a", "GROW_A")
	repo := NewBalanceRepository(pool)
	ctx := context.Background()

	_, err := repo.UpdateBalance(ctx, "GROW_A", 200, 0, 0, "Deposit", model.TxTypeDeposit, nil)
	require.NoError(t, err)

	productCode := "P1"
	_, err = repo.UpdateBalance(ctx, "GROW_A", -50, 0, 0, "Purchase 5x Item", model.TxTypePurchase, &productCode)
	require.NoError(t, err)

	records, err := repo.GetHistory(ctx, "GROW_A", 10, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Newest first. Snapshots chain across records.
	purchase := records[0]
	assert.Equal(t, model.TxTypePurchase, purchase.Type)
	require.NotNil(t, purchase.ProductCode)
	assert.Equal(t, "P1", *purchase.ProductCode)
	assert.Equal(t, model.TxStatusSuccess, purchase.Status)

	oldBal, err := model.ParseSnapshot(purchase.OldBalance)
	require.NoError(t, err)
	newBal, err := model.ParseSnapshot(purchase.NewBalance)
	require.NoError(t, err)
	assert.Equal(t, int64(200), oldBal.TotalWL())
	assert.Equal(t, int64(150), newBal.TotalWL())
	assert.Equal(t, records[1].NewBalance, purchase.OldBalance)
}

func TestBalanceRepository_GetBalanceNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewBalanceRepository(pool)

	_, err := repo.GetBalance(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrBalanceNotFound)
}

func TestBalanceRepository_HistoryPagination(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	registerUser(t, pool, "discord-a", "GROW_A")
	repo := NewBalanceRepository(pool)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		_, err := repo.UpdateBalance(ctx, "GROW_A", int64(i), 0, 0, "Deposit", model.TxTypeDeposit, nil)
		require.NoError(t, err)
	}

	count, err := repo.CountHistory(ctx, "GROW_A")
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	page1, err := repo.GetHistory(ctx, "GROW_A", 2, 0)
	require.NoError(t, err)
	page2, err := repo.GetHistory(ctx, "GROW_A", 2, 2)
	require.NoError(t, err)
	page3, err := repo.GetHistory(ctx, "GROW_A", 2, 4)
	require.NoError(t, err)

	require.Len(t, page1, 2)
	require.Len(t, page2, 2)
	require.Len(t, page3, 1)

	// Pages are disjoint and strictly newest first.
	seen := map[int64]bool{}
	var lastID int64 = 1 << 62
	for _, rec := range append(append(page1, page2...), page3...) {
		assert.False(t, seen[rec.ID])
		seen[rec.ID] = true
		assert.Less(t, rec.ID, lastID)
		lastID = rec.ID
	}
}

// ============================================================================
// StockRepository Tests
// ============================================================================

func seedProduct(t *testing.T, pool *pgxpool.Pool, code string, price int64, stock int) []int64 {
	t.Helper()
	repo := NewStockRepository(pool)
	ctx := context.Background()
	_, err := repo.CreateProduct(ctx, code, code+" name", price)
	require.NoError(t, err)
	ids := make([]int64, 0, stock)
	for i := 0; i < stock; i++ {
		item, err := repo.AddStock(ctx, code, "content", "admin-1")
		require.NoError(t, err)
		ids = append(ids, item.ID)
	}
	return ids
}

func TestStockRepository_CreateProduct(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewStockRepository(pool)
	ctx := context.Background()

	p, err := repo.CreateProduct(ctx, "P1", "Premium Account", 10)
	require.NoError(t, err)
	assert.Equal(t, "P1", p.Code)
	assert.Equal(t, int64(10), p.Price)

	_, err = repo.CreateProduct(ctx, "P1", "Duplicate", 20)
	assert.ErrorIs(t, err, ErrProductExists)

	_, err = repo.GetProduct(ctx, "missing")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestStockRepository_GetAvailableStock(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ids := seedProduct(t, pool, "P1", 10, 3)
	repo := NewStockRepository(pool)
	ctx := context.Background()

	items, err := repo.GetAvailableStock(ctx, "P1", 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	// Oldest units first.
	assert.Equal(t, ids[0], items[0].ID)
	assert.Equal(t, ids[1], items[1].ID)

	_, err = repo.GetAvailableStock(ctx, "P1", 4)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	count, err := repo.GetStockCount(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestStockRepository_UpdateStatusSellAndRollback(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ids := seedProduct(t, pool, "P1", 10, 3)
	repo := NewStockRepository(pool)
	ctx := context.Background()

	buyer := "discord-a"
	err := repo.UpdateStatus(ctx, "P1", ids[:2], model.StockSold, &buyer)
	require.NoError(t, err)

	count, err := repo.GetStockCount(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Rollback returns the units and clears attribution.
	err = repo.UpdateStatus(ctx, "P1", ids[:2], model.StockAvailable, nil)
	require.NoError(t, err)

	items, err := repo.GetAvailableStock(ctx, "P1", 3)
	require.NoError(t, err)
	for _, item := range items {
		assert.Equal(t, model.StockAvailable, item.Status)
		assert.Nil(t, item.BuyerID)
	}
}

func TestStockRepository_UpdateStatusAllOrNothing(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ids := seedProduct(t, pool, "P1", 10, 3)
	repo := NewStockRepository(pool)
	ctx := context.Background()

	buyer := "discord-a"
	err := repo.UpdateStatus(ctx, "P1", ids[:1], model.StockSold, &buyer)
	require.NoError(t, err)

	// A batch touching an already-sold unit fails entirely.
	err = repo.UpdateStatus(ctx, "P1", ids, model.StockSold, &buyer)
	assert.ErrorIs(t, err, ErrStockConflict)

	count, err := repo.GetStockCount(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestStockRepository_UpdateStatusInvalidTransition(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ids := seedProduct(t, pool, "P1", 10, 1)
	repo := NewStockRepository(pool)
	ctx := context.Background()

	err := repo.UpdateStatus(ctx, "P1", ids, "nonsense", nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}
