// Package sweeper resolves transfer logs left PENDING by a crash between log
// creation and commit. It re-drives the same idempotent commit step, so a
// mutation that already happened is never applied twice and a row that is
// already terminal is never touched.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sango-pay/sango_pay/internal/ledger"
)

const (
	defaultInterval = time.Minute
	defaultGrace    = 5 * time.Minute
	defaultBatch    = 100
)

// Sweeper periodically reconciles stale PENDING transfer logs.
type Sweeper struct {
	store  ledger.Store
	logger *slog.Logger

	interval time.Duration
	grace    time.Duration
	batch    int

	cron *cron.Cron
}

// Options tunes the sweep cadence. Grace must comfortably exceed a normal
// request's lifetime so in-flight transfers are not reconciled out from under
// their orchestrator.
type Options struct {
	Interval time.Duration
	Grace    time.Duration
	Batch    int
}

// New constructs a sweeper over the given store.
func New(store ledger.Store, logger *slog.Logger, opts Options) *Sweeper {
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.Grace <= 0 {
		opts.Grace = defaultGrace
	}
	if opts.Batch <= 0 {
		opts.Batch = defaultBatch
	}
	return &Sweeper{
		store:    store,
		logger:   logger,
		interval: opts.Interval,
		grace:    opts.Grace,
		batch:    opts.Batch,
	}
}

// Start schedules the sweep on a fixed interval.
func (s *Sweeper) Start() error {
	s.cron = cron.New()
	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.interval)
		defer cancel()
		if resolved, err := s.RunOnce(ctx); err != nil {
			s.logger.Error("reconciliation sweep failed", "error", err)
		} else if resolved > 0 {
			s.logger.Info("reconciliation sweep resolved stale transfers", "count", resolved)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	s.cron.Start()
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// RunOnce performs a single sweep. Every PENDING log past the grace threshold
// is resolved: the commit is re-driven idempotently; a business-rule failure
// marks the log FAILED with the reason. Only a storage fault may defer a row
// to the next cycle. Re-running over already-resolved rows is a no-op.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.grace)
	stale, err := s.store.ListStalePending(ctx, cutoff, s.batch)
	if err != nil {
		return 0, fmt.Errorf("list stale pending: %w", err)
	}

	resolved := 0
	for _, entry := range stale {
		outcome, err := s.store.CommitTransfer(ctx, entry.ID)
		if err != nil {
			if isBusinessFailure(err) {
				if _, markErr := s.store.MarkLogFailed(ctx, entry.ID, err.Error()); markErr != nil {
					s.logger.Error("mark stale log failed", "log_id", entry.ID, "error", markErr)
					continue
				}
				s.logger.Warn("stale transfer failed on reconciliation",
					"log_id", entry.ID, "reference", entry.Reference, "reason", err.Error())
				resolved++
				continue
			}
			s.logger.Error("reconcile stale transfer", "log_id", entry.ID, "error", err)
			continue
		}
		if outcome.Status == ledger.StatusCompleted {
			s.logger.Info("stale transfer completed on reconciliation",
				"log_id", entry.ID, "reference", entry.Reference)
		}
		resolved++
	}
	return resolved, nil
}

func isBusinessFailure(err error) bool {
	for _, sentinel := range []error{
		ledger.ErrInsufficientFunds,
		ledger.ErrWalletNotFound,
		ledger.ErrWalletInactive,
		ledger.ErrCurrencyMismatch,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
