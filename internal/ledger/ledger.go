package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInsufficientFunds occurs when the source wallet lacks available balance
	// to cover a requested movement, at either the advisory pre-check or the
	// authoritative check inside the commit.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrWalletNotFound indicates the referenced wallet does not exist.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrWalletInactive indicates the referenced wallet is deactivated.
	ErrWalletInactive = errors.New("wallet inactive")

	// ErrWalletExists indicates the owner already has a wallet.
	ErrWalletExists = errors.New("owner already has a wallet")

	// ErrSelfTransfer indicates source and destination wallet are the same.
	ErrSelfTransfer = errors.New("source and destination wallets are the same")

	// ErrNonPositiveAmount indicates a zero or negative amount.
	ErrNonPositiveAmount = errors.New("amount must be positive")

	// ErrCurrencyMismatch indicates the request or wallet currencies disagree.
	ErrCurrencyMismatch = errors.New("currency mismatch")

	// ErrLogNotFound indicates no transfer log matches the lookup.
	ErrLogNotFound = errors.New("transfer log not found")
)

// Store is the contract implemented by ledger backends (e.g. Postgres). All
// balance mutations go through CommitTransfer, which applies the debit, the
// credit and the terminal transition of the log in one atomic unit.
type Store interface {
	CreateWallet(ctx context.Context, w Wallet) error
	FindWallet(ctx context.Context, id string) (Wallet, error)
	SetWalletActive(ctx context.Context, id string, active bool) error

	// FindLogByIdempotencyKey is the idempotency resolver: a pure read that is
	// safe to call any number of times per request.
	FindLogByIdempotencyKey(ctx context.Context, key string) (TransferLog, error)
	FindLogByReference(ctx context.Context, ref string) (TransferLog, error)

	// CreatePendingLog inserts the recovery anchor before any balance is
	// touched. If another creator won the unique idempotency-key race, the
	// existing row is returned with created=false instead of an error.
	CreatePendingLog(ctx context.Context, log TransferLog) (out TransferLog, created bool, err error)

	// CommitTransfer drives a PENDING log to COMPLETED inside one atomic,
	// serializable unit: wallet rows are locked in ascending id order, balance
	// sufficiency is re-checked authoritatively, and both balances mutate
	// together with the status transition. Calling it on an already-terminal
	// log returns the log unchanged, which makes the reconciliation sweep a
	// no-op on resolved rows.
	CommitTransfer(ctx context.Context, logID string) (TransferLog, error)

	// MarkLogFailed records a terminal failure with a reason. It only applies
	// to PENDING rows; terminal rows are returned unchanged.
	MarkLogFailed(ctx context.Context, logID, reason string) (TransferLog, error)

	// ListStalePending returns PENDING logs created before the cutoff, oldest
	// first, for the reconciliation sweeper.
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]TransferLog, error)
}
