package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

type inMemoryStore struct {
	mu      sync.Mutex
	wallets map[string]Wallet
	logs    map[string]TransferLog
	byKey   map[string]string // idempotency key -> log id
	byRef   map[string]string // reference -> log id
	owners  map[string]string // owner id -> wallet id

	// induced commit faults, consumed one per CommitTransfer call
	commitFaults   int
	commitFaultErr error
}

// NewInMemory creates a concurrency-safe in-memory store with the same
// semantics as the Postgres store. Useful for unit tests and dev mode.
func NewInMemory() Store {
	return &inMemoryStore{
		wallets: make(map[string]Wallet),
		logs:    make(map[string]TransferLog),
		byKey:   make(map[string]string),
		byRef:   make(map[string]string),
		owners:  make(map[string]string),
	}
}

func (s *inMemoryStore) CreateWallet(_ context.Context, w Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.owners[w.OwnerID]; exists {
		return ErrWalletExists
	}
	s.wallets[w.ID] = w
	s.owners[w.OwnerID] = w.ID
	return nil
}

func (s *inMemoryStore) FindWallet(_ context.Context, id string) (Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[id]
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	return w, nil
}

func (s *inMemoryStore) SetWalletActive(_ context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[id]
	if !ok {
		return ErrWalletNotFound
	}
	w.Active = active
	w.UpdatedAt = time.Now().UTC()
	s.wallets[id] = w
	return nil
}

func (s *inMemoryStore) FindLogByIdempotencyKey(_ context.Context, key string) (TransferLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byKey[key]
	if !ok {
		return TransferLog{}, ErrLogNotFound
	}
	return s.logs[id], nil
}

func (s *inMemoryStore) FindLogByReference(_ context.Context, ref string) (TransferLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byRef[ref]
	if !ok {
		return TransferLog{}, ErrLogNotFound
	}
	return s.logs[id], nil
}

func (s *inMemoryStore) CreatePendingLog(_ context.Context, entry TransferLog) (TransferLog, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existingID, ok := s.byKey[entry.IdempotencyKey]; ok {
		return s.logs[existingID], false, nil
	}
	entry.Status = StatusPending
	s.logs[entry.ID] = entry
	s.byKey[entry.IdempotencyKey] = entry.ID
	s.byRef[entry.Reference] = entry.ID
	return entry, true, nil
}

func (s *inMemoryStore) CommitTransfer(_ context.Context, logID string) (TransferLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.logs[logID]
	if !ok {
		return TransferLog{}, ErrLogNotFound
	}
	if entry.Status != StatusPending {
		return entry, nil
	}

	if s.commitFaults > 0 {
		s.commitFaults--
		if s.commitFaultErr != nil {
			return TransferLog{}, s.commitFaultErr
		}
		return TransferLog{}, fmt.Errorf("induced storage fault")
	}

	involved := []string{}
	if entry.SourceWalletID != "" {
		involved = append(involved, entry.SourceWalletID)
	}
	if entry.DestinationWalletID != "" && entry.DestinationWalletID != entry.SourceWalletID {
		involved = append(involved, entry.DestinationWalletID)
	}
	sort.Strings(involved)

	for _, id := range involved {
		w, ok := s.wallets[id]
		if !ok {
			return TransferLog{}, fmt.Errorf("%w: %q", ErrWalletNotFound, id)
		}
		if !w.Active {
			return TransferLog{}, fmt.Errorf("%w: %q", ErrWalletInactive, id)
		}
		if w.Currency != entry.Currency {
			return TransferLog{}, fmt.Errorf("%w: wallet %q holds %s, transfer is %s", ErrCurrencyMismatch, id, w.Currency, entry.Currency)
		}
	}

	if entry.SourceWalletID != "" && s.wallets[entry.SourceWalletID].Balance < entry.Amount {
		return TransferLog{}, ErrInsufficientFunds
	}

	now := time.Now().UTC()
	if entry.SourceWalletID != "" {
		w := s.wallets[entry.SourceWalletID]
		w.Balance -= entry.Amount
		w.UpdatedAt = now
		s.wallets[entry.SourceWalletID] = w
	}
	if entry.DestinationWalletID != "" {
		w := s.wallets[entry.DestinationWalletID]
		w.Balance += entry.Amount
		w.UpdatedAt = now
		s.wallets[entry.DestinationWalletID] = w
	}

	entry.Status = StatusCompleted
	entry.UpdatedAt = now
	s.logs[logID] = entry
	return entry, nil
}

func (s *inMemoryStore) MarkLogFailed(_ context.Context, logID, reason string) (TransferLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.logs[logID]
	if !ok {
		return TransferLog{}, ErrLogNotFound
	}
	if entry.Status != StatusPending {
		return entry, nil
	}
	entry.Status = StatusFailed
	entry.ErrorMessage = reason
	entry.UpdatedAt = time.Now().UTC()
	s.logs[logID] = entry
	return entry, nil
}

func (s *inMemoryStore) ListStalePending(_ context.Context, olderThan time.Time, limit int) ([]TransferLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stale []TransferLog
	for _, entry := range s.logs {
		if entry.Status == StatusPending && entry.CreatedAt.Before(olderThan) {
			stale = append(stale, entry)
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].CreatedAt.Before(stale[j].CreatedAt) })
	if limit > 0 && len(stale) > limit {
		stale = stale[:limit]
	}
	return stale, nil
}
