package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sango-pay/sango_pay/internal/ledger"
	"github.com/sango-pay/sango_pay/internal/lock"
	"github.com/sango-pay/sango_pay/internal/notification"
)

const (
	defaultLockTTL       = 30 * time.Second
	defaultCommitTimeout = 10 * time.Second
)

// Service orchestrates the transfer protocol: resolve the idempotency key,
// serialize duplicates behind the advisory lock, re-resolve, validate, anchor
// a PENDING log, then drive the atomic commit. Duplicate requests always see
// the same recorded outcome.
type Service struct {
	store    ledger.Store
	locks    lock.Manager
	notifier notification.Notifier
	logger   *slog.Logger

	lockTTL       time.Duration
	commitTimeout time.Duration
}

// Options tunes the orchestrator's bounded waits. The lock TTL must exceed
// the worst-case commit duration so a crashed holder's lock self-expires.
type Options struct {
	LockTTL       time.Duration
	CommitTimeout time.Duration
}

// NewService builds a transfer orchestrator.
func NewService(store ledger.Store, locks lock.Manager, notifier notification.Notifier, logger *slog.Logger, opts Options) *Service {
	if opts.LockTTL <= 0 {
		opts.LockTTL = defaultLockTTL
	}
	if opts.CommitTimeout <= 0 {
		opts.CommitTimeout = defaultCommitTimeout
	}
	return &Service{
		store:         store,
		locks:         locks,
		notifier:      notifier,
		logger:        logger,
		lockTTL:       opts.LockTTL,
		commitTimeout: opts.CommitTimeout,
	}
}

// Input captures the data needed to move funds.
type Input struct {
	SourceWalletID      string
	DestinationWalletID string
	Amount              int64
	Currency            string
	IdempotencyKey      string
	Metadata            map[string]string
}

// Result is the idempotent outcome of an attempt: an identical key always
// yields the same TransactionID and Reference, however many times and however
// concurrently it is invoked.
type Result struct {
	TransactionID string
	Status        ledger.Status
	Reference     string
	Message       string

	// Replayed is true when the result was served from an existing log rather
	// than fresh processing. Transport-level only; not part of the recorded
	// outcome.
	Replayed bool
}

// Transfer moves funds between two wallets.
func (s *Service) Transfer(ctx context.Context, in Input) (Result, error) {
	return s.execute(ctx, ledger.TypeTransfer, in)
}

// Deposit credits a wallet from outside the ledger.
func (s *Service) Deposit(ctx context.Context, in Input) (Result, error) {
	in.SourceWalletID = ""
	return s.execute(ctx, ledger.TypeDeposit, in)
}

// Withdraw debits a wallet towards outside the ledger.
func (s *Service) Withdraw(ctx context.Context, in Input) (Result, error) {
	in.DestinationWalletID = ""
	return s.execute(ctx, ledger.TypeWithdrawal, in)
}

// GetByIdempotencyKey returns the recorded attempt for a key.
func (s *Service) GetByIdempotencyKey(ctx context.Context, key string) (ledger.TransferLog, error) {
	return s.store.FindLogByIdempotencyKey(ctx, key)
}

// GetByReference returns the recorded attempt for a client-facing reference.
func (s *Service) GetByReference(ctx context.Context, ref string) (ledger.TransferLog, error) {
	return s.store.FindLogByReference(ctx, ref)
}

func (s *Service) execute(ctx context.Context, typ ledger.Type, in Input) (Result, error) {
	if in.IdempotencyKey == "" {
		return Result{}, ErrMissingIdempotencyKey
	}

	// Fast path: an existing log answers the request verbatim, even while
	// still PENDING — the caller sees the same answer a concurrent duplicate
	// would.
	if res, found, err := s.resolve(ctx, in.IdempotencyKey); err != nil {
		return Result{}, err
	} else if found {
		return res, nil
	}

	granted, err := s.locks.Acquire(ctx, in.IdempotencyKey, s.lockTTL)
	if err != nil {
		return Result{}, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !granted {
		return Result{}, fmt.Errorf("key %q is being processed: %w", in.IdempotencyKey, lock.ErrBusy)
	}
	defer s.releaseLock(in.IdempotencyKey)

	// Close the window between the first resolve and lock acquisition.
	if res, found, err := s.resolve(ctx, in.IdempotencyKey); err != nil {
		return Result{}, err
	} else if found {
		return res, nil
	}

	currency, err := s.validate(ctx, typ, in)
	if err != nil {
		return Result{}, err
	}

	now := time.Now().UTC()
	entry := ledger.TransferLog{
		ID:                  uuid.NewString(),
		IdempotencyKey:      in.IdempotencyKey,
		SourceWalletID:      in.SourceWalletID,
		DestinationWalletID: in.DestinationWalletID,
		Amount:              in.Amount,
		Currency:            currency,
		Type:                typ,
		Reference:           "txn_" + uuid.NewString(),
		Metadata:            in.Metadata,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	entry, created, err := s.store.CreatePendingLog(ctx, entry)
	if err != nil {
		return Result{}, fmt.Errorf("create pending log: %w", err)
	}
	if !created {
		// Two racers both passed the pre-checks; the winner's row answers.
		return resultFromLog(entry, true), nil
	}

	commitCtx, cancel := context.WithTimeout(ctx, s.commitTimeout)
	defer cancel()

	committed, err := s.store.CommitTransfer(commitCtx, entry.ID)
	if err != nil {
		if KindOf(err) == KindInternal {
			// Indeterminate: the log stays PENDING for the sweeper. Do not
			// guess an outcome here.
			s.logger.Error("commit unit failed, leaving log for reconciliation",
				"log_id", entry.ID, "idempotency_key", in.IdempotencyKey, "error", err)
			return Result{}, fmt.Errorf("commit transfer: %w", err)
		}
		// Business failure inside the unit: the unit aborted, so the failure
		// is recorded outside it.
		if _, markErr := s.store.MarkLogFailed(ctx, entry.ID, err.Error()); markErr != nil {
			s.logger.Error("mark log failed", "log_id", entry.ID, "error", markErr)
		}
		return Result{}, err
	}

	s.notify(ctx, typ, committed)
	return resultFromLog(committed, false), nil
}

func (s *Service) resolve(ctx context.Context, key string) (Result, bool, error) {
	entry, err := s.store.FindLogByIdempotencyKey(ctx, key)
	if err != nil {
		if errors.Is(err, ledger.ErrLogNotFound) {
			return Result{}, false, nil
		}
		return Result{}, false, fmt.Errorf("resolve idempotency key: %w", err)
	}
	return resultFromLog(entry, true), true, nil
}

func (s *Service) validate(ctx context.Context, typ ledger.Type, in Input) (string, error) {
	if in.Amount <= 0 {
		return "", ledger.ErrNonPositiveAmount
	}

	switch typ {
	case ledger.TypeTransfer:
		if in.SourceWalletID == "" || in.DestinationWalletID == "" {
			return "", ErrMissingWallet
		}
		if in.SourceWalletID == in.DestinationWalletID {
			return "", ledger.ErrSelfTransfer
		}
	case ledger.TypeDeposit:
		if in.DestinationWalletID == "" {
			return "", ErrMissingWallet
		}
	case ledger.TypeWithdrawal:
		if in.SourceWalletID == "" {
			return "", ErrMissingWallet
		}
	}

	var currency string
	for _, walletID := range []string{in.SourceWalletID, in.DestinationWalletID} {
		if walletID == "" {
			continue
		}
		w, err := s.store.FindWallet(ctx, walletID)
		if err != nil {
			return "", err
		}
		if !w.Active {
			return "", fmt.Errorf("%w: %q", ledger.ErrWalletInactive, walletID)
		}
		if currency == "" {
			currency = w.Currency
		} else if w.Currency != currency {
			return "", fmt.Errorf("%w: %s vs %s", ledger.ErrCurrencyMismatch, currency, w.Currency)
		}
		// Advisory pre-check only; the authoritative check runs inside the
		// commit unit under row locks.
		if walletID == in.SourceWalletID && w.Balance < in.Amount {
			return "", ledger.ErrInsufficientFunds
		}
	}
	if in.Currency != "" && in.Currency != currency {
		return "", fmt.Errorf("%w: request %s, wallet %s", ledger.ErrCurrencyMismatch, in.Currency, currency)
	}
	return currency, nil
}

func (s *Service) releaseLock(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.locks.Release(ctx, key); err != nil {
		s.logger.Warn("release advisory lock", "idempotency_key", key, "error", err)
	}
}

func (s *Service) notify(ctx context.Context, typ ledger.Type, entry ledger.TransferLog) {
	if s.notifier == nil {
		return
	}
	kind := notification.KindTransferCompleted
	destination := entry.DestinationWalletID
	switch typ {
	case ledger.TypeDeposit:
		kind = notification.KindDepositCompleted
	case ledger.TypeWithdrawal:
		kind = notification.KindWithdrawalCompleted
		destination = entry.SourceWalletID
	}
	_ = s.notifier.Send(ctx, notification.Message{
		Kind:        kind,
		Destination: destination,
		Body:        fmt.Sprintf("%s %s settled", entry.Type, entry.Reference),
	})
}

func resultFromLog(entry ledger.TransferLog, replayed bool) Result {
	return Result{
		TransactionID: entry.ID,
		Status:        entry.Status,
		Reference:     entry.Reference,
		Message:       entry.ErrorMessage,
		Replayed:      replayed,
	}
}
