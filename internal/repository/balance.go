package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fdyytu1/store-dc/internal/model"
)

// BalanceRepository owns per-identity balances and the append-only
// transaction log. A balance mutation and its audit record commit as a
// single database transaction; callers serialize mutations per
// identity via the lock registry, but the repository re-checks the
// non-negative invariant under a row lock regardless.
type BalanceRepository struct {
	pool *pgxpool.Pool
}

// NewBalanceRepository creates a new BalanceRepository instance.
func NewBalanceRepository(pool *pgxpool.Pool) *BalanceRepository {
	return &BalanceRepository{pool: pool}
}

// GetBalance retrieves the balance for a GrowID.
// Returns ErrBalanceNotFound if the identity has no balance record.
func (r *BalanceRepository) GetBalance(ctx context.Context, growID string) (model.Balance, error) {
	const query = `
		SELECT balance_wl, balance_dl, balance_bgl
		FROM balances
		WHERE grow_id = $1
	`

	var b model.Balance
	err := r.pool.QueryRow(ctx, query, growID).Scan(&b.WL, &b.DL, &b.BGL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Balance{}, ErrBalanceNotFound
		}
		return model.Balance{}, fmt.Errorf("failed to get balance: %w", err)
	}

	return b, nil
}

// UpdateBalance applies a signed delta in WL/DL/BGL denominations,
// normalizes the result to the greedy decomposition, and appends the
// audit record. Both persist or neither does.
// Returns ErrInsufficientBalance if the canonical total would go
// negative; the row is locked for the duration of the check so a stale
// caller pre-check cannot slip a negative balance through.
func (r *BalanceRepository) UpdateBalance(
	ctx context.Context,
	growID string,
	deltaWL, deltaDL, deltaBGL int64,
	details, txType string,
	productCode *string,
) (model.Balance, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Balance{}, fmt.Errorf("failed to begin balance tx: %w", err)
	}
	defer tx.Rollback(ctx)

	const selectForUpdate = `
		SELECT balance_wl, balance_dl, balance_bgl
		FROM balances
		WHERE grow_id = $1
		FOR UPDATE
	`

	var old model.Balance
	err = tx.QueryRow(ctx, selectForUpdate, growID).Scan(&old.WL, &old.DL, &old.BGL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Balance{}, ErrBalanceNotFound
		}
		return model.Balance{}, fmt.Errorf("failed to lock balance row: %w", err)
	}

	delta := deltaWL + deltaDL*model.WLPerDL + deltaBGL*model.WLPerBGL
	newTotal := old.TotalWL() + delta
	if newTotal < 0 {
		return model.Balance{}, ErrInsufficientBalance
	}
	newBalance := model.FromWL(newTotal)

	const update = `
		UPDATE balances
		SET balance_wl = $2, balance_dl = $3, balance_bgl = $4, updated_at = NOW()
		WHERE grow_id = $1
	`
	if _, err := tx.Exec(ctx, update, growID, newBalance.WL, newBalance.DL, newBalance.BGL); err != nil {
		return model.Balance{}, fmt.Errorf("failed to update balance: %w", err)
	}

	const insertRecord = `
		INSERT INTO transactions (grow_id, type, details, old_balance, new_balance, product_code, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`
	_, err = tx.Exec(ctx, insertRecord,
		growID, txType, details,
		old.Snapshot(), newBalance.Snapshot(),
		productCode, model.TxStatusSuccess,
	)
	if err != nil {
		return model.Balance{}, fmt.Errorf("failed to append transaction record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Balance{}, fmt.Errorf("failed to commit balance tx: %w", err)
	}

	return newBalance, nil
}

// GetHistory retrieves transaction records for a GrowID, newest first.
func (r *BalanceRepository) GetHistory(ctx context.Context, growID string, limit, offset int) ([]*model.TransactionRecord, error) {
	const query = `
		SELECT id, grow_id, type, details, old_balance, new_balance, product_code, status, created_at
		FROM transactions
		WHERE grow_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, growID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction history: %w", err)
	}
	defer rows.Close()

	var records []*model.TransactionRecord
	for rows.Next() {
		var rec model.TransactionRecord
		err := rows.Scan(
			&rec.ID,
			&rec.GrowID,
			&rec.Type,
			&rec.Details,
			&rec.OldBalance,
			&rec.NewBalance,
			&rec.ProductCode,
			&rec.Status,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction record: %w", err)
		}
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transaction records: %w", err)
	}

	return records, nil
}

// CountHistory returns the total number of transaction records for a
// GrowID, used for pagination.
func (r *BalanceRepository) CountHistory(ctx context.Context, growID string) (int, error) {
	const query = `SELECT COUNT(*) FROM transactions WHERE grow_id = $1`

	var count int
	if err := r.pool.QueryRow(ctx, query, growID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count transaction history: %w", err)
	}

	return count, nil
}
