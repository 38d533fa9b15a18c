package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fdyytu1/store-dc/internal/model"
)

// allowedFrom maps a target stock status to the only status a row may
// currently hold for the transition to apply. Purchases and rollbacks
// both route through UpdateStatus, so the guard prevents double-selling
// a unit and deleting attributed sold items.
var allowedFrom = map[string]string{
	model.StockSold:      model.StockAvailable,
	model.StockAvailable: model.StockSold,
	model.StockDeleted:   model.StockAvailable,
}

// StockRepository owns the product catalog and the per-product pool of
// purchasable units. It performs no locking of its own; callers
// serialize multi-step sequences via the lock registry.
type StockRepository struct {
	pool *pgxpool.Pool
}

// NewStockRepository creates a new StockRepository instance.
func NewStockRepository(pool *pgxpool.Pool) *StockRepository {
	return &StockRepository{pool: pool}
}

// GetProduct retrieves a catalog entry by code.
// Returns ErrProductNotFound if the code is unknown.
func (r *StockRepository) GetProduct(ctx context.Context, code string) (*model.Product, error) {
	const query = `
		SELECT code, name, price, created_at, updated_at
		FROM products
		WHERE code = $1
	`

	var p model.Product
	err := r.pool.QueryRow(ctx, query, code).Scan(
		&p.Code,
		&p.Name,
		&p.Price,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	return &p, nil
}

// CreateProduct adds a catalog entry.
// Returns ErrProductExists if the code is taken.
func (r *StockRepository) CreateProduct(ctx context.Context, code, name string, price int64) (*model.Product, error) {
	const query = `
		INSERT INTO products (code, name, price, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING code, name, price, created_at, updated_at
	`

	var p model.Product
	err := r.pool.QueryRow(ctx, query, code, name, price).Scan(
		&p.Code,
		&p.Name,
		&p.Price,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrProductExists
		}
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	return &p, nil
}

// GetAllProducts retrieves the full catalog ordered by code.
func (r *StockRepository) GetAllProducts(ctx context.Context) ([]*model.Product, error) {
	const query = `
		SELECT code, name, price, created_at, updated_at
		FROM products
		ORDER BY code
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get products: %w", err)
	}
	defer rows.Close()

	var products []*model.Product
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.Code, &p.Name, &p.Price, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

// AddStock inserts one available unit for a product.
func (r *StockRepository) AddStock(ctx context.Context, productCode, content, addedBy string) (*model.StockItem, error) {
	const query = `
		INSERT INTO stock_items (product_code, content, status, added_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING id, product_code, content, status, buyer_id, added_by, created_at, updated_at
	`

	var item model.StockItem
	err := r.pool.QueryRow(ctx, query, productCode, content, model.StockAvailable, addedBy).Scan(
		&item.ID,
		&item.ProductCode,
		&item.Content,
		&item.Status,
		&item.BuyerID,
		&item.AddedBy,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to add stock: %w", err)
	}

	return &item, nil
}

// GetAvailableStock retrieves exactly count available units for a
// product in insertion order. Returns ErrInsufficientStock if fewer
// exist; no partial result is returned for purchases.
func (r *StockRepository) GetAvailableStock(ctx context.Context, productCode string, count int) ([]*model.StockItem, error) {
	const query = `
		SELECT id, product_code, content, status, buyer_id, added_by, created_at, updated_at
		FROM stock_items
		WHERE product_code = $1 AND status = $2
		ORDER BY id
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, productCode, model.StockAvailable, count)
	if err != nil {
		return nil, fmt.Errorf("failed to get available stock: %w", err)
	}
	defer rows.Close()

	var items []*model.StockItem
	for rows.Next() {
		var item model.StockItem
		err := rows.Scan(
			&item.ID,
			&item.ProductCode,
			&item.Content,
			&item.Status,
			&item.BuyerID,
			&item.AddedBy,
			&item.CreatedAt,
			&item.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stock item: %w", err)
		}
		items = append(items, &item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stock items: %w", err)
	}

	if len(items) < count {
		return nil, ErrInsufficientStock
	}

	return items, nil
}

// GetStockCount returns the number of available units for a product.
func (r *StockRepository) GetStockCount(ctx context.Context, productCode string) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM stock_items
		WHERE product_code = $1 AND status = $2
	`

	var count int
	if err := r.pool.QueryRow(ctx, query, productCode, model.StockAvailable).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to get stock count: %w", err)
	}

	return count, nil
}

// UpdateStatus transitions a batch of stock items to newStatus,
// attributing them to buyerID (nil clears attribution). The update is
// all-or-nothing: if any item is missing, belongs to another product,
// or is not in the expected prior status, nothing changes and
// ErrStockConflict is returned.
func (r *StockRepository) UpdateStatus(ctx context.Context, productCode string, itemIDs []int64, newStatus string, buyerID *string) error {
	if len(itemIDs) == 0 {
		return nil
	}
	from, ok := allowedFrom[newStatus]
	if !ok {
		return fmt.Errorf("%w: to %q", ErrInvalidTransition, newStatus)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin stock tx: %w", err)
	}
	defer tx.Rollback(ctx)

	const update = `
		UPDATE stock_items
		SET status = $1, buyer_id = $2, updated_at = NOW()
		WHERE product_code = $3 AND id = ANY($4) AND status = $5
	`

	result, err := tx.Exec(ctx, update, newStatus, buyerID, productCode, itemIDs, from)
	if err != nil {
		return fmt.Errorf("failed to update stock status: %w", err)
	}
	if result.RowsAffected() != int64(len(itemIDs)) {
		return ErrStockConflict
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit stock tx: %w", err)
	}

	return nil
}
