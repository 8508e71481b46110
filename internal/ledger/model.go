package ledger

import "time"

// Status is the lifecycle state of a transfer log entry.
type Status string

const (
	// StatusPending marks a log whose balance mutation has not been confirmed yet.
	StatusPending Status = "PENDING"
	// StatusCompleted marks a successfully applied transfer. Terminal.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed marks a transfer that was rejected or rolled back. Terminal.
	StatusFailed Status = "FAILED"
	// StatusReversed marks a transfer compensated after the fact. Terminal.
	StatusReversed Status = "REVERSED"
)

// Terminal reports whether the status admits no further transition.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusReversed
}

// Type distinguishes the kinds of money movement recorded in the log.
type Type string

const (
	// TypeTransfer moves funds between two wallets.
	TypeTransfer Type = "TRANSFER"
	// TypeDeposit credits a wallet from outside the ledger.
	TypeDeposit Type = "DEPOSIT"
	// TypeWithdrawal debits a wallet towards outside the ledger.
	TypeWithdrawal Type = "WITHDRAWAL"
)

// Wallet is a balance-holding account. Balances are integer minor units of the
// wallet currency; they never pass through a floating-point type.
type Wallet struct {
	ID        string
	OwnerID   string
	Balance   int64
	Currency  string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TransferLog is the durable record of one transfer attempt. It doubles as the
// idempotency record: the idempotency key and the client-facing reference are
// both globally unique.
type TransferLog struct {
	ID                  string
	IdempotencyKey      string
	SourceWalletID      string // empty for DEPOSIT
	DestinationWalletID string // empty for WITHDRAWAL
	Amount              int64
	Currency            string
	Status              Status
	Type                Type
	Reference           string
	Metadata            map[string]string
	ErrorMessage        string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
