package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

const logColumns = `id, idempotency_key, source_wallet_id, destination_wallet_id,
        amount, currency, status, type, reference, metadata, error_message, created_at, updated_at`

// PostgresStore persists wallets and transfer logs in PostgreSQL. Every
// balance mutation happens inside a serializable transaction holding exclusive
// row locks on the wallets involved.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed ledger store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// CreateWallet inserts a wallet record. The owner unique constraint enforces
// one wallet per owner.
func (s *PostgresStore) CreateWallet(ctx context.Context, w Wallet) error {
	walletID, err := uuid.Parse(w.ID)
	if err != nil {
		return fmt.Errorf("parse wallet id: %w", err)
	}
	ownerID, err := uuid.Parse(w.OwnerID)
	if err != nil {
		return fmt.Errorf("parse owner id: %w", err)
	}
	_, err = s.db.Exec(ctx, `INSERT INTO wallets (id, owner_id, balance, currency, active, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		walletID, ownerID, w.Balance, w.Currency, w.Active, w.CreatedAt.UTC(), w.UpdatedAt.UTC())
	if isUniqueViolation(err) {
		return ErrWalletExists
	}
	return err
}

// FindWallet fetches a wallet by identifier.
func (s *PostgresStore) FindWallet(ctx context.Context, id string) (Wallet, error) {
	walletID, err := uuid.Parse(id)
	if err != nil {
		return Wallet{}, fmt.Errorf("%w: %q", ErrWalletNotFound, id)
	}
	row := s.db.QueryRow(ctx, `SELECT id, owner_id, balance, currency, active, created_at, updated_at
        FROM wallets WHERE id = $1`, walletID)
	return scanWallet(row)
}

// SetWalletActive toggles the active flag. Wallets are never deleted.
func (s *PostgresStore) SetWalletActive(ctx context.Context, id string, active bool) error {
	walletID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrWalletNotFound, id)
	}
	tag, err := s.db.Exec(ctx, `UPDATE wallets SET active = $2, updated_at = now() WHERE id = $1`, walletID, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %q", ErrWalletNotFound, id)
	}
	return nil
}

// FindLogByIdempotencyKey resolves a prior attempt by client-supplied key.
func (s *PostgresStore) FindLogByIdempotencyKey(ctx context.Context, key string) (TransferLog, error) {
	row := s.db.QueryRow(ctx, `SELECT `+logColumns+` FROM transfer_logs WHERE idempotency_key = $1`, key)
	return scanLog(row)
}

// FindLogByReference resolves an attempt by its client-facing reference.
func (s *PostgresStore) FindLogByReference(ctx context.Context, ref string) (TransferLog, error) {
	row := s.db.QueryRow(ctx, `SELECT `+logColumns+` FROM transfer_logs WHERE reference = $1`, ref)
	return scanLog(row)
}

// CreatePendingLog writes the recovery anchor. A unique violation on the
// idempotency key means another creator won the race: the winning row is
// re-read and returned with created=false.
func (s *PostgresStore) CreatePendingLog(ctx context.Context, entry TransferLog) (TransferLog, bool, error) {
	logID, err := uuid.Parse(entry.ID)
	if err != nil {
		return TransferLog{}, false, fmt.Errorf("parse log id: %w", err)
	}
	metadata, err := marshalMetadata(entry.Metadata)
	if err != nil {
		return TransferLog{}, false, err
	}

	_, err = s.db.Exec(ctx, `INSERT INTO transfer_logs
        (id, idempotency_key, source_wallet_id, destination_wallet_id, amount, currency, status, type, reference, metadata, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		logID, entry.IdempotencyKey, nullUUID(entry.SourceWalletID), nullUUID(entry.DestinationWalletID),
		entry.Amount, entry.Currency, StatusPending, entry.Type, entry.Reference, metadata,
		entry.CreatedAt.UTC(), entry.UpdatedAt.UTC())
	if isUniqueViolation(err) {
		existing, findErr := s.FindLogByIdempotencyKey(ctx, entry.IdempotencyKey)
		if findErr != nil {
			return TransferLog{}, false, fmt.Errorf("re-read after duplicate key: %w", findErr)
		}
		return existing, false, nil
	}
	if err != nil {
		return TransferLog{}, false, err
	}
	entry.Status = StatusPending
	return entry, true, nil
}

// CommitTransfer applies the balance mutation and the PENDING->COMPLETED
// transition in one serializable unit. Wallet rows are locked in ascending id
// order regardless of role so two transfers touching the same pair in opposite
// directions cannot deadlock. Terminal logs are returned unchanged.
func (s *PostgresStore) CommitTransfer(ctx context.Context, logID string) (TransferLog, error) {
	id, err := uuid.Parse(logID)
	if err != nil {
		return TransferLog{}, fmt.Errorf("%w: %q", ErrLogNotFound, logID)
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return TransferLog{}, fmt.Errorf("begin commit unit: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	entry, err := scanLog(tx.QueryRow(ctx, `SELECT `+logColumns+` FROM transfer_logs WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return TransferLog{}, err
	}
	if entry.Status != StatusPending {
		return entry, nil
	}

	balances := make(map[string]int64)
	for _, walletID := range lockOrder(entry) {
		var balance int64
		var active bool
		var currency string
		row := tx.QueryRow(ctx, `SELECT balance, active, currency FROM wallets WHERE id = $1 FOR UPDATE`, walletID)
		if err := row.Scan(&balance, &active, &currency); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return TransferLog{}, fmt.Errorf("%w: %q", ErrWalletNotFound, walletID)
			}
			return TransferLog{}, err
		}
		if !active {
			return TransferLog{}, fmt.Errorf("%w: %q", ErrWalletInactive, walletID)
		}
		if currency != entry.Currency {
			return TransferLog{}, fmt.Errorf("%w: wallet %q holds %s, transfer is %s", ErrCurrencyMismatch, walletID, currency, entry.Currency)
		}
		balances[walletID] = balance
	}

	// Authoritative sufficiency check; the pre-lock check was advisory only.
	if entry.SourceWalletID != "" && balances[entry.SourceWalletID] < entry.Amount {
		return TransferLog{}, ErrInsufficientFunds
	}

	if entry.SourceWalletID != "" {
		if _, err := tx.Exec(ctx, `UPDATE wallets SET balance = balance - $2, updated_at = now() WHERE id = $1`,
			entry.SourceWalletID, entry.Amount); err != nil {
			return TransferLog{}, err
		}
	}
	if entry.DestinationWalletID != "" {
		if _, err := tx.Exec(ctx, `UPDATE wallets SET balance = balance + $2, updated_at = now() WHERE id = $1`,
			entry.DestinationWalletID, entry.Amount); err != nil {
			return TransferLog{}, err
		}
	}
	if _, err := tx.Exec(ctx, `UPDATE transfer_logs SET status = $2, updated_at = now() WHERE id = $1`,
		id, StatusCompleted); err != nil {
		return TransferLog{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return TransferLog{}, fmt.Errorf("commit unit: %w", err)
	}

	entry.Status = StatusCompleted
	entry.UpdatedAt = time.Now().UTC()
	return entry, nil
}

// MarkLogFailed transitions a PENDING log to FAILED with a recorded reason.
// It happens outside any aborted commit unit. Terminal rows are left alone.
func (s *PostgresStore) MarkLogFailed(ctx context.Context, logID, reason string) (TransferLog, error) {
	id, err := uuid.Parse(logID)
	if err != nil {
		return TransferLog{}, fmt.Errorf("%w: %q", ErrLogNotFound, logID)
	}
	if _, err := s.db.Exec(ctx, `UPDATE transfer_logs SET status = $2, error_message = $3, updated_at = now()
        WHERE id = $1 AND status = $4`, id, StatusFailed, reason, StatusPending); err != nil {
		return TransferLog{}, err
	}
	return scanLog(s.db.QueryRow(ctx, `SELECT `+logColumns+` FROM transfer_logs WHERE id = $1`, id))
}

// ListStalePending selects PENDING logs older than the cutoff, oldest first.
func (s *PostgresStore) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]TransferLog, error) {
	rows, err := s.db.Query(ctx, `SELECT `+logColumns+` FROM transfer_logs
        WHERE status = $1 AND created_at < $2 ORDER BY created_at ASC LIMIT $3`,
		StatusPending, olderThan.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stale []TransferLog
	for rows.Next() {
		entry, err := scanLogValues(rows)
		if err != nil {
			return nil, err
		}
		stale = append(stale, entry)
	}
	return stale, rows.Err()
}

// lockOrder returns the wallet ids involved in the entry in ascending order.
func lockOrder(entry TransferLog) []string {
	var ids []string
	if entry.SourceWalletID != "" {
		ids = append(ids, entry.SourceWalletID)
	}
	if entry.DestinationWalletID != "" && entry.DestinationWalletID != entry.SourceWalletID {
		ids = append(ids, entry.DestinationWalletID)
	}
	sort.Strings(ids)
	return ids
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func nullUUID(id string) any {
	if id == "" {
		return nil
	}
	return id
}

func marshalMetadata(metadata map[string]string) ([]byte, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	payload, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return payload, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWallet(row rowScanner) (Wallet, error) {
	var w Wallet
	var id, ownerID uuid.UUID
	var createdAt, updatedAt time.Time
	if err := row.Scan(&id, &ownerID, &w.Balance, &w.Currency, &w.Active, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrWalletNotFound
		}
		return Wallet{}, err
	}
	w.ID = id.String()
	w.OwnerID = ownerID.String()
	w.CreatedAt = createdAt.UTC()
	w.UpdatedAt = updatedAt.UTC()
	return w, nil
}

func scanLog(row rowScanner) (TransferLog, error) {
	entry, err := scanLogValues(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return TransferLog{}, ErrLogNotFound
	}
	return entry, err
}

func scanLogValues(row rowScanner) (TransferLog, error) {
	var entry TransferLog
	var id uuid.UUID
	var source, destination uuid.NullUUID
	var metadata []byte
	var errorMessage *string
	var createdAt, updatedAt time.Time
	if err := row.Scan(&id, &entry.IdempotencyKey, &source, &destination, &entry.Amount, &entry.Currency,
		&entry.Status, &entry.Type, &entry.Reference, &metadata, &errorMessage, &createdAt, &updatedAt); err != nil {
		return TransferLog{}, err
	}
	entry.ID = id.String()
	if source.Valid {
		entry.SourceWalletID = source.UUID.String()
	}
	if destination.Valid {
		entry.DestinationWalletID = destination.UUID.String()
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &entry.Metadata); err != nil {
			return TransferLog{}, fmt.Errorf("decode metadata: %w", err)
		}
	}
	if errorMessage != nil {
		entry.ErrorMessage = *errorMessage
	}
	entry.CreatedAt = createdAt.UTC()
	entry.UpdatedAt = updatedAt.UTC()
	return entry, nil
}
