package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/fdyytu1/store-dc/internal/event"
	"github.com/fdyytu1/store-dc/internal/model"
	"github.com/fdyytu1/store-dc/internal/pkg/lock"
	"github.com/fdyytu1/store-dc/internal/repository"
)

// defaultHistoryLimit is the page size used when callers pass a
// non-positive limit.
const defaultHistoryLimit = 10

// PurchaseResult is the committed outcome of a purchase.
type PurchaseResult struct {
	Product    *model.Product
	Quantity   int
	TotalPrice int64
	Contents   []string
	NewBalance model.Balance
}

// WithdrawalResult is the committed outcome of a withdrawal.
type WithdrawalResult struct {
	TotalWithdrawn int64
	NewBalance     model.Balance
}

// DepositResult is the committed outcome of a deposit.
type DepositResult struct {
	TotalDeposited int64
	NewBalance     model.Balance
}

// HistoryEntry is one enriched audit record.
type HistoryEntry struct {
	Record        *model.TransactionRecord
	OldBalance    model.Balance
	NewBalance    model.Balance
	Change        int64
	AmountDisplay string
	ProductName   string
	ProductPrice  int64
}

// HistoryResult is a paginated, enriched slice of a user's history.
type HistoryResult struct {
	Entries     []HistoryEntry
	TotalCount  int
	CurrentPage int
	TotalPages  int
	HasMore     bool
}

// TransactionService coordinates purchase and withdrawal workflows
// across the stock catalog and the balance ledger. It is the only
// component allowed to run multi-step sequences against both, always
// under a lock scoped to the minimal resource tuple: buyer+product for
// purchases, user for balance-only operations.
type TransactionService struct {
	ledger      Ledger
	catalog     Catalog
	locks       *lock.KeyLock
	bus         *event.Bus
	maintenance MaintenanceChecker
	lockTimeout time.Duration
	logger      zerolog.Logger
}

// NewTransactionService creates a new TransactionService instance.
func NewTransactionService(
	ledger Ledger,
	catalog Catalog,
	locks *lock.KeyLock,
	bus *event.Bus,
	maintenance MaintenanceChecker,
	lockTimeout time.Duration,
	logger zerolog.Logger,
) *TransactionService {
	return &TransactionService{
		ledger:      ledger,
		catalog:     catalog,
		locks:       locks,
		bus:         bus,
		maintenance: maintenance,
		lockTimeout: lockTimeout,
		logger:      logger,
	}
}

func purchaseLockKey(buyerID, productCode string) string {
	return "purchase:" + buyerID + ":" + productCode
}

func withdrawalLockKey(userID string) string {
	return "withdrawal:" + userID
}

// domainErrors are surfaced verbatim; everything else is logged and
// collapsed to ErrTransactionFailed so internals never leak.
var domainErrors = []error{
	ErrInvalidAmount,
	ErrMaintenanceActive,
	ErrRollbackFailed,
	ErrNoValidHistory,
	lock.ErrLockTimeout,
	repository.ErrNotRegistered,
	repository.ErrBalanceNotFound,
	repository.ErrInsufficientBalance,
	repository.ErrProductNotFound,
	repository.ErrInsufficientStock,
	repository.ErrStockConflict,
}

func (s *TransactionService) classify(op string, err error) error {
	for _, domain := range domainErrors {
		if errors.Is(err, domain) {
			return err
		}
	}

	s.logger.Error().Str("op", op).Err(err).Msg("unexpected transaction error")
	return ErrTransactionFailed
}

// ProcessPurchase runs the purchase workflow for quantity units of a
// product. Either the full batch is sold and the balance debited by
// exactly price*quantity, or no observable state changes. A balance
// debit failure after the stock mutation triggers a compensating
// rollback that returns the reserved units to available with
// attribution cleared.
func (s *TransactionService) ProcessPurchase(ctx context.Context, buyerID, productCode string, quantity int) (*PurchaseResult, error) {
	if s.maintenance.IsMaintenanceActive(ctx) {
		return nil, ErrMaintenanceActive
	}
	if quantity < 1 {
		return nil, ErrInvalidAmount
	}

	key := purchaseLockKey(buyerID, productCode)
	if err := s.locks.Acquire(ctx, key, s.lockTimeout); err != nil {
		return nil, err
	}
	defer s.locks.Release(key)

	result, growID, err := s.purchaseLocked(ctx, buyerID, productCode, quantity)
	if err != nil {
		s.bus.Publish(ctx, event.TransactionFailed, event.TransactionFailedEvent{
			Type:   model.TxTypePurchase,
			UserID: buyerID,
			Reason: err.Error(),
		})
		return nil, s.classify("purchase", err)
	}

	s.bus.Publish(ctx, event.PurchaseCompleted, event.PurchaseCompletedEvent{
		BuyerID:     buyerID,
		GrowID:      growID,
		ProductCode: productCode,
		Quantity:    quantity,
		TotalPrice:  result.TotalPrice,
		NewBalance:  result.NewBalance,
	})
	s.bus.Publish(ctx, event.TransactionCompleted, event.TransactionCompletedEvent{
		Type:    model.TxTypePurchase,
		GrowID:  growID,
		TotalWL: result.TotalPrice,
	})

	return result, nil
}

// purchaseLocked is the critical section of the purchase workflow; the
// buyer+product lock is held for its whole duration.
func (s *TransactionService) purchaseLocked(ctx context.Context, buyerID, productCode string, quantity int) (*PurchaseResult, string, error) {
	identity, err := s.ledger.GetIdentity(ctx, buyerID)
	if err != nil {
		return nil, "", err
	}
	growID := identity.GrowID

	product, err := s.catalog.GetProduct(ctx, productCode)
	if err != nil {
		return nil, growID, err
	}

	items, err := s.catalog.GetAvailableStock(ctx, productCode, quantity)
	if err != nil {
		return nil, growID, err
	}

	totalPrice := product.Price * int64(quantity)

	balance, err := s.ledger.GetBalance(ctx, growID)
	if err != nil {
		return nil, growID, err
	}
	// No mutation has happened yet; failing here needs no rollback.
	if totalPrice > balance.TotalWL() {
		return nil, growID, repository.ErrInsufficientBalance
	}

	itemIDs := make([]int64, len(items))
	contents := make([]string, len(items))
	for i, item := range items {
		itemIDs[i] = item.ID
		contents[i] = item.Content
	}

	// Point of no easy return: the stock store is mutated from here on.
	if err := s.catalog.UpdateStatus(ctx, productCode, itemIDs, model.StockSold, &buyerID); err != nil {
		return nil, growID, err
	}

	details := fmt.Sprintf("Purchase %dx %s", quantity, product.Name)
	newBalance, err := s.ledger.UpdateBalance(ctx, growID, -totalPrice, 0, 0, details, model.TxTypePurchase, &productCode)
	if err != nil {
		// Compensating rollback: stock and balance must never diverge.
		if rbErr := s.catalog.UpdateStatus(ctx, productCode, itemIDs, model.StockAvailable, nil); rbErr != nil {
			s.logger.Error().
				Str("buyer_id", buyerID).
				Str("product_code", productCode).
				Ints64("item_ids", itemIDs).
				AnErr("debit_error", err).
				AnErr("rollback_error", rbErr).
				Msg("CRITICAL: stock rollback failed after debit failure, manual reconciliation required")
			s.bus.Publish(ctx, event.Error, event.ErrorEvent{
				Op:     "purchase_rollback",
				UserID: buyerID,
				Reason: rbErr.Error(),
			})
			return nil, growID, fmt.Errorf("%w: %v", ErrRollbackFailed, rbErr)
		}
		return nil, growID, err
	}

	return &PurchaseResult{
		Product:    product,
		Quantity:   quantity,
		TotalPrice: totalPrice,
		Contents:   contents,
		NewBalance: newBalance,
	}, growID, nil
}

// ProcessWithdrawal debits the requested denominations from a user's
// balance. It touches only the ledger and is keyed by user identity.
func (s *TransactionService) ProcessWithdrawal(ctx context.Context, userID string, wl, dl, bgl int64) (*WithdrawalResult, error) {
	if s.maintenance.IsMaintenanceActive(ctx) {
		return nil, ErrMaintenanceActive
	}
	if wl < 0 || dl < 0 || bgl < 0 {
		return nil, ErrInvalidAmount
	}
	totalWL := wl + dl*model.WLPerDL + bgl*model.WLPerBGL
	if totalWL <= 0 {
		return nil, ErrInvalidAmount
	}

	key := withdrawalLockKey(userID)
	if err := s.locks.Acquire(ctx, key, s.lockTimeout); err != nil {
		return nil, err
	}
	defer s.locks.Release(key)

	s.bus.Publish(ctx, event.TransactionStarted, event.TransactionStartedEvent{
		Type:   model.TxTypeWithdrawal,
		UserID: userID,
	})

	result, growID, err := s.withdrawalLocked(ctx, userID, wl, dl, bgl, totalWL)
	if err != nil {
		s.bus.Publish(ctx, event.TransactionFailed, event.TransactionFailedEvent{
			Type:   model.TxTypeWithdrawal,
			UserID: userID,
			Reason: err.Error(),
		})
		return nil, s.classify("withdrawal", err)
	}

	s.bus.Publish(ctx, event.WithdrawalCompleted, event.WithdrawalCompletedEvent{
		UserID:     userID,
		GrowID:     growID,
		TotalWL:    totalWL,
		NewBalance: result.NewBalance,
	})
	s.bus.Publish(ctx, event.TransactionCompleted, event.TransactionCompletedEvent{
		Type:    model.TxTypeWithdrawal,
		GrowID:  growID,
		TotalWL: totalWL,
	})

	return result, nil
}

func (s *TransactionService) withdrawalLocked(ctx context.Context, userID string, wl, dl, bgl, totalWL int64) (*WithdrawalResult, string, error) {
	identity, err := s.ledger.GetIdentity(ctx, userID)
	if err != nil {
		return nil, "", err
	}

	balance, err := s.ledger.GetBalance(ctx, identity.GrowID)
	if err != nil {
		return nil, "", err
	}
	if totalWL > balance.TotalWL() {
		return nil, identity.GrowID, repository.ErrInsufficientBalance
	}

	details := withdrawalDetails(wl, dl, bgl)
	newBalance, err := s.ledger.UpdateBalance(ctx, identity.GrowID, -wl, -dl, -bgl, details, model.TxTypeWithdrawal, nil)
	if err != nil {
		return nil, identity.GrowID, err
	}

	return &WithdrawalResult{
		TotalWithdrawn: totalWL,
		NewBalance:     newBalance,
	}, identity.GrowID, nil
}

func withdrawalDetails(wl, dl, bgl int64) string {
	details := fmt.Sprintf("Withdrawal: %d WL", wl)
	if dl > 0 {
		details += fmt.Sprintf(", %d DL", dl)
	}
	if bgl > 0 {
		details += fmt.Sprintf(", %d BGL", bgl)
	}
	return details
}

// ProcessDeposit credits the requested denominations to a user's
// balance.
func (s *TransactionService) ProcessDeposit(ctx context.Context, userID string, wl, dl, bgl int64) (*DepositResult, error) {
	if s.maintenance.IsMaintenanceActive(ctx) {
		return nil, ErrMaintenanceActive
	}
	if wl < 0 || dl < 0 || bgl < 0 {
		return nil, ErrInvalidAmount
	}
	totalWL := wl + dl*model.WLPerDL + bgl*model.WLPerBGL
	if totalWL <= 0 {
		return nil, ErrInvalidAmount
	}

	key := withdrawalLockKey(userID)
	if err := s.locks.Acquire(ctx, key, s.lockTimeout); err != nil {
		return nil, err
	}
	defer s.locks.Release(key)

	identity, err := s.ledger.GetIdentity(ctx, userID)
	if err != nil {
		return nil, s.classify("deposit", err)
	}

	details := fmt.Sprintf("Deposit: %s", model.Balance{WL: wl, DL: dl, BGL: bgl}.Format())
	newBalance, err := s.ledger.UpdateBalance(ctx, identity.GrowID, wl, dl, bgl, details, model.TxTypeDeposit, nil)
	if err != nil {
		s.bus.Publish(ctx, event.TransactionFailed, event.TransactionFailedEvent{
			Type:   model.TxTypeDeposit,
			UserID: userID,
			Reason: err.Error(),
		})
		return nil, s.classify("deposit", err)
	}

	s.bus.Publish(ctx, event.DepositCompleted, event.DepositCompletedEvent{
		UserID:     userID,
		GrowID:     identity.GrowID,
		TotalWL:    totalWL,
		NewBalance: newBalance,
	})

	return &DepositResult{
		TotalDeposited: totalWL,
		NewBalance:     newBalance,
	}, nil
}

// GetTransactionHistory builds a paginated, enriched view over a
// user's audit trail, newest first. Purchase records are enriched with
// product name and price through a per-call cache; records with
// malformed balance snapshots are skipped, and ErrNoValidHistory is
// returned only when a non-empty page yields no parseable record.
func (s *TransactionService) GetTransactionHistory(ctx context.Context, userID string, limit, offset int) (*HistoryResult, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}

	identity, err := s.ledger.GetIdentity(ctx, userID)
	if err != nil {
		return nil, s.classify("history", err)
	}

	total, err := s.ledger.CountHistory(ctx, identity.GrowID)
	if err != nil {
		return nil, s.classify("history", err)
	}

	result := &HistoryResult{
		TotalCount:  total,
		CurrentPage: offset/limit + 1,
		TotalPages:  (total + limit - 1) / limit,
		HasMore:     total > offset+limit,
	}
	if total == 0 {
		return result, nil
	}

	records, err := s.ledger.GetHistory(ctx, identity.GrowID, limit, offset)
	if err != nil {
		return nil, s.classify("history", err)
	}

	// Per-call product cache so a page of purchases of the same
	// product costs one lookup.
	productCache := make(map[string]*model.Product)

	for _, rec := range records {
		oldBal, err := model.ParseSnapshot(rec.OldBalance)
		if err != nil {
			s.logger.Warn().Int64("record_id", rec.ID).Err(err).Msg("skipping malformed history record")
			continue
		}
		newBal, err := model.ParseSnapshot(rec.NewBalance)
		if err != nil {
			s.logger.Warn().Int64("record_id", rec.ID).Err(err).Msg("skipping malformed history record")
			continue
		}

		change := newBal.TotalWL() - oldBal.TotalWL()
		entry := HistoryEntry{
			Record:     rec,
			OldBalance: oldBal,
			NewBalance: newBal,
			Change:     change,
		}
		switch rec.Type {
		case model.TxTypePurchase, model.TxTypeWithdrawal, model.TxTypeAdminRemove:
			entry.AmountDisplay = "-" + model.FromWL(abs(change)).Format()
		default:
			entry.AmountDisplay = model.FromWL(change).Format()
		}

		if rec.Type == model.TxTypePurchase && rec.ProductCode != nil {
			code := *rec.ProductCode
			product, ok := productCache[code]
			if !ok {
				product, err = s.catalog.GetProduct(ctx, code)
				if err != nil {
					// Enrichment is best-effort; the record still counts.
					product = nil
				}
				productCache[code] = product
			}
			if product != nil {
				entry.ProductName = product.Name
				entry.ProductPrice = product.Price
			}
		}

		result.Entries = append(result.Entries, entry)
	}

	if len(records) > 0 && len(result.Entries) == 0 {
		return nil, ErrNoValidHistory
	}

	return result, nil
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
