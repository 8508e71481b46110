package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func newTestWallet(id, owner string, balance int64) Wallet {
	now := time.Now().UTC()
	return Wallet{
		ID:        id,
		OwnerID:   owner,
		Balance:   balance,
		Currency:  "XAF",
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func newPendingLog(id, key, source, destination string, amount int64) TransferLog {
	now := time.Now().UTC()
	return TransferLog{
		ID:                  id,
		IdempotencyKey:      key,
		SourceWalletID:      source,
		DestinationWalletID: destination,
		Amount:              amount,
		Currency:            "XAF",
		Type:                TypeTransfer,
		Reference:           "txn_" + id,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

func TestInMemoryCommitMaintainsBalance(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	if err := s.CreateWallet(ctx, newTestWallet("a", "owner-a", 10_000)); err != nil {
		t.Fatalf("create wallet a: %v", err)
	}
	if err := s.CreateWallet(ctx, newTestWallet("b", "owner-b", 0)); err != nil {
		t.Fatalf("create wallet b: %v", err)
	}

	entry, created, err := s.CreatePendingLog(ctx, newPendingLog("log-1", "key-1", "a", "b", 1_500))
	if err != nil || !created {
		t.Fatalf("create pending log: created=%v err=%v", created, err)
	}
	if entry.Status != StatusPending {
		t.Fatalf("expected PENDING, got %s", entry.Status)
	}

	committed, err := s.CommitTransfer(ctx, entry.ID)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if committed.Status != StatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", committed.Status)
	}

	a, _ := s.FindWallet(ctx, "a")
	b, _ := s.FindWallet(ctx, "b")
	if a.Balance != 8_500 || b.Balance != 1_500 {
		t.Fatalf("unexpected balances a=%d b=%d", a.Balance, b.Balance)
	}
	if a.Balance+b.Balance != 10_000 {
		t.Fatalf("store not balanced, total=%d", a.Balance+b.Balance)
	}
}

func TestInMemoryDuplicateKeyReturnsExisting(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	s.CreateWallet(ctx, newTestWallet("a", "owner-a", 5_000))
	s.CreateWallet(ctx, newTestWallet("b", "owner-b", 0))

	first, created, err := s.CreatePendingLog(ctx, newPendingLog("log-1", "dup", "a", "b", 500))
	if err != nil || !created {
		t.Fatalf("first create: created=%v err=%v", created, err)
	}

	second, created, err := s.CreatePendingLog(ctx, newPendingLog("log-2", "dup", "a", "b", 500))
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if created {
		t.Fatal("expected duplicate key to return existing row")
	}
	if second.ID != first.ID || second.Reference != first.Reference {
		t.Fatalf("expected winner's row back, got %+v", second)
	}
}

func TestInMemoryCommitIsIdempotent(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	s.CreateWallet(ctx, newTestWallet("a", "owner-a", 1_000))
	s.CreateWallet(ctx, newTestWallet("b", "owner-b", 0))

	entry, _, _ := s.CreatePendingLog(ctx, newPendingLog("log-1", "key-1", "a", "b", 400))
	if _, err := s.CommitTransfer(ctx, entry.ID); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	if _, err := s.CommitTransfer(ctx, entry.ID); err != nil {
		t.Fatalf("second commit: %v", err)
	}

	a, _ := s.FindWallet(ctx, "a")
	if a.Balance != 600 {
		t.Fatalf("debit applied more than once, balance=%d", a.Balance)
	}
}

func TestInMemoryInsufficientFunds(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	s.CreateWallet(ctx, newTestWallet("a", "owner-a", 100))
	s.CreateWallet(ctx, newTestWallet("b", "owner-b", 0))

	entry, _, _ := s.CreatePendingLog(ctx, newPendingLog("log-1", "key-1", "a", "b", 500))
	if _, err := s.CommitTransfer(ctx, entry.ID); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	// The failed commit must not have touched either balance.
	a, _ := s.FindWallet(ctx, "a")
	b, _ := s.FindWallet(ctx, "b")
	if a.Balance != 100 || b.Balance != 0 {
		t.Fatalf("balances changed on failed commit: a=%d b=%d", a.Balance, b.Balance)
	}
}

func TestInMemoryDepositAndWithdrawal(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	s.CreateWallet(ctx, newTestWallet("a", "owner-a", 1_000))

	deposit := newPendingLog("log-1", "dep-1", "", "a", 250)
	deposit.Type = TypeDeposit
	entry, _, _ := s.CreatePendingLog(ctx, deposit)
	if _, err := s.CommitTransfer(ctx, entry.ID); err != nil {
		t.Fatalf("deposit commit: %v", err)
	}

	withdrawal := newPendingLog("log-2", "wd-1", "a", "", 1_000)
	withdrawal.Type = TypeWithdrawal
	entry, _, _ = s.CreatePendingLog(ctx, withdrawal)
	if _, err := s.CommitTransfer(ctx, entry.ID); err != nil {
		t.Fatalf("withdrawal commit: %v", err)
	}

	a, _ := s.FindWallet(ctx, "a")
	if a.Balance != 250 {
		t.Fatalf("expected balance 250, got %d", a.Balance)
	}
}

func TestInMemoryMarkFailedOnlyFromPending(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	s.CreateWallet(ctx, newTestWallet("a", "owner-a", 1_000))
	s.CreateWallet(ctx, newTestWallet("b", "owner-b", 0))

	entry, _, _ := s.CreatePendingLog(ctx, newPendingLog("log-1", "key-1", "a", "b", 400))
	if _, err := s.CommitTransfer(ctx, entry.ID); err != nil {
		t.Fatalf("commit: %v", err)
	}

	after, err := s.MarkLogFailed(ctx, entry.ID, "should not apply")
	if err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if after.Status != StatusCompleted {
		t.Fatalf("terminal log mutated to %s", after.Status)
	}
}

func TestInMemoryListStalePending(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	s.CreateWallet(ctx, newTestWallet("a", "owner-a", 1_000))
	s.CreateWallet(ctx, newTestWallet("b", "owner-b", 0))

	entry, _, _ := s.CreatePendingLog(ctx, newPendingLog("log-1", "key-1", "a", "b", 100))
	BackdateLog(s, entry.ID, 10*time.Minute)

	fresh, _, _ := s.CreatePendingLog(ctx, newPendingLog("log-2", "key-2", "a", "b", 100))

	stale, err := s.ListStalePending(ctx, time.Now().UTC().Add(-5*time.Minute), 10)
	if err != nil {
		t.Fatalf("list stale: %v", err)
	}
	if len(stale) != 1 || stale[0].ID != entry.ID {
		t.Fatalf("expected only the backdated log, got %+v", stale)
	}
	_ = fresh
}

func TestInMemoryConcurrentCommits(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	s.CreateWallet(ctx, newTestWallet("a", "owner-a", 100_000))
	s.CreateWallet(ctx, newTestWallet("b", "owner-b", 0))

	const workers = 10
	const amount = int64(500)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("key-%d", i)
			entry, _, err := s.CreatePendingLog(ctx, newPendingLog("log-"+key, key, "a", "b", amount))
			if err != nil {
				t.Errorf("create %d: %v", i, err)
				return
			}
			if _, err := s.CommitTransfer(ctx, entry.ID); err != nil {
				t.Errorf("commit %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	a, _ := s.FindWallet(ctx, "a")
	b, _ := s.FindWallet(ctx, "b")
	if a.Balance != 100_000-workers*amount {
		t.Fatalf("unexpected source balance %d", a.Balance)
	}
	if a.Balance+b.Balance != 100_000 {
		t.Fatalf("store not balanced, total=%d", a.Balance+b.Balance)
	}
}
