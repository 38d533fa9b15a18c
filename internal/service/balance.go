package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/fdyytu1/store-dc/internal/model"
	"github.com/fdyytu1/store-dc/internal/pkg/cache"
	"github.com/fdyytu1/store-dc/internal/repository"
)

// minGrowIDLen is the shortest GrowID accepted at registration.
const minGrowIDLen = 3

// BalanceService is the ledger-facing service: identity registration
// and lookup, balance reads and mutations, history reads. Identity and
// balance lookups go through the best-effort cache and always fall
// back to the store of record.
type BalanceService struct {
	identityRepo *repository.IdentityRepository
	balanceRepo  *repository.BalanceRepository
	cache        cache.Cache
	cacheCfg     CacheTTLs
	maintenance  MaintenanceChecker
	logger       zerolog.Logger
}

// CacheTTLs holds the per-key-class cache lifetimes.
type CacheTTLs struct {
	Identity time.Duration
	Balance  time.Duration
	Product  time.Duration
}

// NewBalanceService creates a new BalanceService instance.
func NewBalanceService(
	identityRepo *repository.IdentityRepository,
	balanceRepo *repository.BalanceRepository,
	c cache.Cache,
	ttls CacheTTLs,
	logger zerolog.Logger,
) *BalanceService {
	return &BalanceService{
		identityRepo: identityRepo,
		balanceRepo:  balanceRepo,
		cache:        c,
		cacheCfg:     ttls,
		logger:       logger,
	}
}

func identityCacheKey(discordID string) string { return "identity:" + discordID }
func balanceCacheKey(growID string) string     { return "balance:" + growID }

// SetMaintenanceChecker connects the maintenance gate for
// registration. AdminService consumes this service as its ledger, so
// the checker is attached after construction.
func (s *BalanceService) SetMaintenanceChecker(m MaintenanceChecker) {
	s.maintenance = m
}

// Register binds a Discord user to a GrowID. Re-registering rebinds
// to the new GrowID; exactly one identity remains per user. Rejected
// while maintenance mode is active.
func (s *BalanceService) Register(ctx context.Context, discordID, growID string) (*model.Identity, error) {
	if s.maintenance != nil && s.maintenance.IsMaintenanceActive(ctx) {
		return nil, ErrMaintenanceActive
	}

	growID = strings.TrimSpace(growID)
	if len(growID) < minGrowIDLen {
		return nil, ErrInvalidGrowID
	}

	id, err := s.identityRepo.Register(ctx, discordID, growID)
	if err != nil {
		return nil, err
	}

	s.cache.Set(identityCacheKey(discordID), id, s.cacheCfg.Identity)
	return id, nil
}

// GetIdentity resolves the identity for a Discord user.
// Returns repository.ErrNotRegistered if no binding exists.
func (s *BalanceService) GetIdentity(ctx context.Context, discordID string) (*model.Identity, error) {
	if v, ok := s.cache.Get(identityCacheKey(discordID)); ok {
		if id, ok := v.(*model.Identity); ok {
			return id, nil
		}
	}

	id, err := s.identityRepo.GetByDiscordID(ctx, discordID)
	if err != nil {
		return nil, err
	}

	s.cache.Set(identityCacheKey(discordID), id, s.cacheCfg.Identity)
	return id, nil
}

// GetBalance retrieves the balance for a GrowID.
func (s *BalanceService) GetBalance(ctx context.Context, growID string) (model.Balance, error) {
	if v, ok := s.cache.Get(balanceCacheKey(growID)); ok {
		if b, ok := v.(model.Balance); ok {
			return b, nil
		}
	}

	b, err := s.balanceRepo.GetBalance(ctx, growID)
	if err != nil {
		return model.Balance{}, err
	}

	s.cache.Set(balanceCacheKey(growID), b, s.cacheCfg.Balance)
	return b, nil
}

// UpdateBalance applies a signed delta and appends the audit record
// atomically. The cached balance is invalidated on success.
func (s *BalanceService) UpdateBalance(
	ctx context.Context,
	growID string,
	deltaWL, deltaDL, deltaBGL int64,
	details, txType string,
	productCode *string,
) (model.Balance, error) {
	newBalance, err := s.balanceRepo.UpdateBalance(ctx, growID, deltaWL, deltaDL, deltaBGL, details, txType, productCode)
	if err != nil {
		return model.Balance{}, err
	}

	s.cache.Delete(balanceCacheKey(growID))
	s.logger.Info().
		Str("grow_id", growID).
		Str("type", txType).
		Str("new_balance", newBalance.Format()).
		Msg("balance updated")

	return newBalance, nil
}

// GetHistory retrieves transaction records newest first.
func (s *BalanceService) GetHistory(ctx context.Context, growID string, limit, offset int) ([]*model.TransactionRecord, error) {
	return s.balanceRepo.GetHistory(ctx, growID, limit, offset)
}

// CountHistory returns the total number of transaction records.
func (s *BalanceService) CountHistory(ctx context.Context, growID string) (int, error) {
	return s.balanceRepo.CountHistory(ctx, growID)
}
