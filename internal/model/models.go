// Package model defines the data models for the store core.
package model

import "time"

// Identity binds a Discord user to their GrowID.
// A Discord ID maps to at most one identity; an identity owns at most
// one balance record. Identities are renamed by re-registration, never
// deleted.
type Identity struct {
	DiscordID string    `db:"discord_id"`
	GrowID    string    `db:"grow_id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Product is a catalog entry. Stock count is derived from stock items
// and never stored on the product row.
type Product struct {
	Code      string    `db:"code"`
	Name      string    `db:"name"`
	Price     int64     `db:"price"` // WL per unit
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// StockItem is a single sellable unit of a product with an opaque
// content payload (account credentials, codes, etc).
type StockItem struct {
	ID          int64     `db:"id"`
	ProductCode string    `db:"product_code"`
	Content     string    `db:"content"`
	Status      string    `db:"status"`
	BuyerID     *string   `db:"buyer_id"`
	AddedBy     string    `db:"added_by"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// Stock item statuses. Valid transitions: available -> sold (purchase),
// sold -> available (rollback), available -> deleted (admin removal).
const (
	StockAvailable = "available"
	StockSold      = "sold"
	StockDeleted   = "deleted"
)

// TransactionRecord is an append-only audit entry for a balance change.
// Old and new balance snapshots use the Balance.Snapshot wire form.
type TransactionRecord struct {
	ID          int64     `db:"id"`
	GrowID      string    `db:"grow_id"`
	Type        string    `db:"type"`
	Details     string    `db:"details"`
	OldBalance  string    `db:"old_balance"`
	NewBalance  string    `db:"new_balance"`
	ProductCode *string   `db:"product_code"`
	Status      string    `db:"status"`
	CreatedAt   time.Time `db:"created_at"`
}

// Transaction types for categorizing balance changes.
const (
	TxTypePurchase    = "purchase"     // Shop purchase
	TxTypeWithdrawal  = "withdrawal"   // Balance withdrawal
	TxTypeDeposit     = "deposit"      // Balance deposit
	TxTypeAdminAdd    = "admin_add"    // Admin added balance
	TxTypeAdminRemove = "admin_remove" // Admin removed balance
)

// Transaction record statuses.
const (
	TxStatusSuccess = "success"
)
