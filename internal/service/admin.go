package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fdyytu1/store-dc/internal/model"
	"github.com/fdyytu1/store-dc/internal/pkg/cache"
	"github.com/fdyytu1/store-dc/internal/pkg/lock"
)

// maintenanceCacheKey is the cache key for the maintenance flag.
const maintenanceCacheKey = "maintenance_mode"

// AdminService owns the maintenance flag and admin-only balance
// adjustments. The flag lives in the cache with a TTL and falls back
// to an in-memory copy when the cache misses or errors.
type AdminService struct {
	ledger         Ledger
	cache          cache.Cache
	locks          *lock.KeyLock
	lockTimeout    time.Duration
	maintenanceTTL time.Duration
	admins         map[string]struct{}
	logger         zerolog.Logger

	mu          sync.RWMutex
	maintenance bool
}

// NewAdminService creates a new AdminService instance.
func NewAdminService(
	ledger Ledger,
	c cache.Cache,
	locks *lock.KeyLock,
	lockTimeout time.Duration,
	maintenanceTTL time.Duration,
	adminIDs []string,
	logger zerolog.Logger,
) *AdminService {
	admins := make(map[string]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}
	return &AdminService{
		ledger:         ledger,
		cache:          c,
		locks:          locks,
		lockTimeout:    lockTimeout,
		maintenanceTTL: maintenanceTTL,
		admins:         admins,
		logger:         logger,
	}
}

// IsAdmin checks if a Discord user is an administrator.
func (s *AdminService) IsAdmin(userID string) bool {
	_, ok := s.admins[userID]
	return ok
}

// IsMaintenanceActive reports whether maintenance mode is on. The
// cached value wins; the in-memory copy covers cache expiry within the
// same process.
func (s *AdminService) IsMaintenanceActive(ctx context.Context) bool {
	if v, ok := s.cache.Get(maintenanceCacheKey); ok {
		if enabled, ok := v.(bool); ok {
			return enabled
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maintenance
}

// SetMaintenanceMode toggles maintenance mode. Only admins may call
// it.
func (s *AdminService) SetMaintenanceMode(ctx context.Context, adminID string, enabled bool) error {
	if !s.IsAdmin(adminID) {
		return ErrPermissionDenied
	}

	s.mu.Lock()
	s.maintenance = enabled
	s.mu.Unlock()

	s.cache.Set(maintenanceCacheKey, enabled, s.maintenanceTTL)
	s.logger.Info().Str("admin_id", adminID).Bool("enabled", enabled).Msg("maintenance mode changed")
	return nil
}

// Cleanup clears the maintenance flag. Called on process shutdown.
func (s *AdminService) Cleanup() {
	s.cache.Delete(maintenanceCacheKey)
	s.mu.Lock()
	s.maintenance = false
	s.mu.Unlock()
	s.logger.Info().Msg("admin service cleanup completed")
}

// AddBalance credits a GrowID on behalf of an admin, with an
// admin_add audit record.
func (s *AdminService) AddBalance(ctx context.Context, adminID, growID string, wl, dl, bgl int64) (model.Balance, error) {
	if !s.IsAdmin(adminID) {
		return model.Balance{}, ErrPermissionDenied
	}
	if wl < 0 || dl < 0 || bgl < 0 || wl+dl+bgl == 0 {
		return model.Balance{}, ErrInvalidAmount
	}

	key := withdrawalLockKey(growID)
	if err := s.locks.Acquire(ctx, key, s.lockTimeout); err != nil {
		return model.Balance{}, err
	}
	defer s.locks.Release(key)

	details := fmt.Sprintf("Admin add by %s: %s", adminID, model.Balance{WL: wl, DL: dl, BGL: bgl}.Format())
	return s.ledger.UpdateBalance(ctx, growID, wl, dl, bgl, details, model.TxTypeAdminAdd, nil)
}

// RemoveBalance debits a GrowID on behalf of an admin, with an
// admin_remove audit record. The ledger rejects debits past zero.
func (s *AdminService) RemoveBalance(ctx context.Context, adminID, growID string, wl, dl, bgl int64) (model.Balance, error) {
	if !s.IsAdmin(adminID) {
		return model.Balance{}, ErrPermissionDenied
	}
	if wl < 0 || dl < 0 || bgl < 0 || wl+dl+bgl == 0 {
		return model.Balance{}, ErrInvalidAmount
	}

	key := withdrawalLockKey(growID)
	if err := s.locks.Acquire(ctx, key, s.lockTimeout); err != nil {
		return model.Balance{}, err
	}
	defer s.locks.Release(key)

	details := fmt.Sprintf("Admin remove by %s: %s", adminID, model.Balance{WL: wl, DL: dl, BGL: bgl}.Format())
	return s.ledger.UpdateBalance(ctx, growID, -wl, -dl, -bgl, details, model.TxTypeAdminRemove, nil)
}
