package ledger

import "time"

// SeedBalance is a test helper that overwrites a wallet balance when using the
// in-memory store.
func SeedBalance(s Store, walletID string, amount int64) {
	if mem, ok := s.(*inMemoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		w := mem.wallets[walletID]
		w.Balance = amount
		mem.wallets[walletID] = w
	}
}

// FailCommits arms the in-memory store to fail the next n CommitTransfer
// calls with a storage fault, leaving the log PENDING.
func FailCommits(s Store, n int) {
	FailCommitsWith(s, n, nil)
}

// FailCommitsWith arms the in-memory store to fail the next n CommitTransfer
// calls with the given error, e.g. a commit-time insufficiency.
func FailCommitsWith(s Store, n int, err error) {
	if mem, ok := s.(*inMemoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.commitFaults = n
		mem.commitFaultErr = err
	}
}

// BackdateLog is a test helper that rewinds a log's creation timestamp so the
// reconciliation sweeper sees it as stale.
func BackdateLog(s Store, logID string, age time.Duration) {
	if mem, ok := s.(*inMemoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		entry, ok := mem.logs[logID]
		if !ok {
			return
		}
		entry.CreatedAt = time.Now().UTC().Add(-age)
		mem.logs[logID] = entry
	}
}
