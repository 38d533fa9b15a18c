// Package repository provides data access layer implementations.
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

// uniqueViolation is the PostgreSQL error code for unique constraint
// violations.
const uniqueViolation = "23505"

// IdentityRepository handles the Discord ID to GrowID binding.
type IdentityRepository struct {
	pool *pgxpool.Pool
}

// NewIdentityRepository creates a new IdentityRepository instance.
func NewIdentityRepository(pool *pgxpool.Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

// GetByDiscordID retrieves the identity bound to a Discord user.
// Returns ErrNotRegistered if no binding exists.
func (r *IdentityRepository) GetByDiscordID(ctx context.Context, discordID string) (*model.Identity, error) {
	const query = `
		SELECT discord_id, grow_id, created_at, updated_at
		FROM users
		WHERE discord_id = $1
	`

	var id model.Identity
	err := r.pool.QueryRow(ctx, query, discordID).Scan(
		&id.DiscordID,
		&id.GrowID,
		&id.CreatedAt,
		&id.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotRegistered
		}
		return nil, fmt.Errorf("failed to get identity: %w", err)
	}

	return &id, nil
}

// GetByGrowID retrieves the identity owning a GrowID.
func (r *IdentityRepository) GetByGrowID(ctx context.Context, growID string) (*model.Identity, error) {
	const query = `
		SELECT discord_id, grow_id, created_at, updated_at
		FROM users
		WHERE grow_id = $1
	`

	var id model.Identity
	err := r.pool.QueryRow(ctx, query, growID).Scan(
		&id.DiscordID,
		&id.GrowID,
		&id.CreatedAt,
		&id.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotRegistered
		}
		return nil, fmt.Errorf("failed to get identity by grow id: %w", err)
	}

	return &id, nil
}

// Register binds a Discord user to a GrowID. Registering an already
// registered user rebinds the GrowID (update, not reject); exactly one
// identity record remains per Discord ID. A zero balance record is
// created for the GrowID if none exists yet.
// Returns ErrGrowIDTaken if the GrowID belongs to a different user.
func (r *IdentityRepository) Register(ctx context.Context, discordID, growID string) (*model.Identity, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin register tx: %w", err)
	}
	defer tx.Rollback(ctx)

	const upsert = `
		INSERT INTO users (discord_id, grow_id, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (discord_id)
		DO UPDATE SET grow_id = EXCLUDED.grow_id, updated_at = NOW()
		RETURNING discord_id, grow_id, created_at, updated_at
	`

	var id model.Identity
	err = tx.QueryRow(ctx, upsert, discordID, growID).Scan(
		&id.DiscordID,
		&id.GrowID,
		&id.CreatedAt,
		&id.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrGrowIDTaken
		}
		return nil, fmt.Errorf("failed to register identity: %w", err)
	}

	const ensureBalance = `
		INSERT INTO balances (grow_id, balance_wl, balance_dl, balance_bgl, updated_at)
		VALUES ($1, 0, 0, 0, NOW())
		ON CONFLICT (grow_id) DO NOTHING
	`
	if _, err := tx.Exec(ctx, ensureBalance, growID); err != nil {
		return nil, fmt.Errorf("failed to create balance record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit register tx: %w", err)
	}

	return &id, nil
}
