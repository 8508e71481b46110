package transfer

import (
	"errors"

	"github.com/sango-pay/sango_pay/internal/ledger"
	"github.com/sango-pay/sango_pay/internal/lock"
)

var (
	// ErrMissingIdempotencyKey indicates the client supplied no idempotency key.
	ErrMissingIdempotencyKey = errors.New("idempotency key is required")

	// ErrMissingWallet indicates a required wallet id was not supplied.
	ErrMissingWallet = errors.New("wallet id is required")
)

// Kind classifies an orchestration outcome so callers can mechanically
// distinguish retryable from terminal failures instead of parsing messages.
type Kind int

const (
	// KindInternal covers store/cache unavailability and commit timeouts. The
	// system's own state is never corrupted: the log is either PENDING for the
	// sweeper or FAILED with a recorded message.
	KindInternal Kind = iota
	// KindValidation covers malformed requests; rejected before any log exists.
	KindValidation
	// KindNotFound covers missing wallets or logs.
	KindNotFound
	// KindBusinessRule covers inactive wallets and insufficient balance;
	// permanent for that attempt.
	KindBusinessRule
	// KindContention covers advisory lock busy; retryable with backoff.
	KindContention
)

// KindOf maps an error from the orchestrator to its kind.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ledger.ErrSelfTransfer),
		errors.Is(err, ledger.ErrNonPositiveAmount),
		errors.Is(err, ErrMissingIdempotencyKey),
		errors.Is(err, ErrMissingWallet):
		return KindValidation
	case errors.Is(err, ledger.ErrWalletNotFound),
		errors.Is(err, ledger.ErrLogNotFound):
		return KindNotFound
	case errors.Is(err, ledger.ErrWalletInactive),
		errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrCurrencyMismatch),
		errors.Is(err, ledger.ErrWalletExists):
		return KindBusinessRule
	case errors.Is(err, lock.ErrBusy):
		return KindContention
	default:
		return KindInternal
	}
}
