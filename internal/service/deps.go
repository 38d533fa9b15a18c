package service

import (
	"context"

	"github.com/fdyytu1/store-dc/internal/model"
)

// Ledger is the balance-side contract the coordinator depends on.
// BalanceService satisfies it against PostgreSQL.
type Ledger interface {
	GetIdentity(ctx context.Context, discordID string) (*model.Identity, error)
	GetBalance(ctx context.Context, growID string) (model.Balance, error)
	UpdateBalance(ctx context.Context, growID string, deltaWL, deltaDL, deltaBGL int64, details, txType string, productCode *string) (model.Balance, error)
	GetHistory(ctx context.Context, growID string, limit, offset int) ([]*model.TransactionRecord, error)
	CountHistory(ctx context.Context, growID string) (int, error)
}

// Catalog is the stock-side contract the coordinator depends on.
// ProductService satisfies it against PostgreSQL.
type Catalog interface {
	GetProduct(ctx context.Context, code string) (*model.Product, error)
	GetAvailableStock(ctx context.Context, code string, count int) ([]*model.StockItem, error)
	UpdateStatus(ctx context.Context, code string, itemIDs []int64, newStatus string, buyerID *string) error
}

// MaintenanceChecker gates user-facing operations. AdminService
// satisfies it.
type MaintenanceChecker interface {
	IsMaintenanceActive(ctx context.Context) bool
}
