package event

import "github.com/fdyytu1/store-dc/internal/model"

// Event names. Each name carries exactly one payload type.
const (
	TransactionStarted   = "transaction_started"
	TransactionCompleted = "transaction_completed"
	TransactionFailed    = "transaction_failed"
	PurchaseCompleted    = "purchase_completed"
	WithdrawalCompleted  = "withdrawal_completed"
	DepositCompleted     = "deposit_completed"
	Error                = "error"
)

// TransactionStartedEvent is published when a coordinated workflow
// begins, before any resource is touched.
type TransactionStartedEvent struct {
	Type   string
	UserID string
}

// TransactionCompletedEvent is published after a workflow commits.
type TransactionCompletedEvent struct {
	Type    string
	GrowID  string
	TotalWL int64
}

// TransactionFailedEvent is published when a workflow surfaces a
// domain error.
type TransactionFailedEvent struct {
	Type   string
	UserID string
	Reason string
}

// PurchaseCompletedEvent carries the committed purchase result.
type PurchaseCompletedEvent struct {
	BuyerID     string
	GrowID      string
	ProductCode string
	Quantity    int
	TotalPrice  int64
	NewBalance  model.Balance
}

// WithdrawalCompletedEvent carries the committed withdrawal result.
type WithdrawalCompletedEvent struct {
	UserID     string
	GrowID     string
	TotalWL    int64
	NewBalance model.Balance
}

// DepositCompletedEvent carries the committed deposit result.
type DepositCompletedEvent struct {
	UserID     string
	GrowID     string
	TotalWL    int64
	NewBalance model.Balance
}

// ErrorEvent reports an internal failure that needs operator
// attention, such as a failed compensating rollback.
type ErrorEvent struct {
	Op     string
	UserID string
	Reason string
}
