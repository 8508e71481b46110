package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sango-pay/sango_pay/internal/ledger"
)

const defaultCurrency = "XAF"

// Service exposes wallet provisioning and read operations. Balance mutation
// is exclusively the transfer orchestrator's; this service never moves money.
type Service struct {
	store ledger.Store
}

// NewService builds a wallet service instance.
func NewService(store ledger.Store) *Service {
	return &Service{store: store}
}

// CreateInput captures data required to provision a wallet.
type CreateInput struct {
	OwnerID  string
	Currency string
}

// Balance encapsulates available funds for a wallet.
type Balance struct {
	WalletID string
	Amount   int64
	Currency string
	AsOf     time.Time
}

// Create provisions a wallet with a zero balance. The currency is fixed at
// creation and never changes.
func (s *Service) Create(ctx context.Context, input CreateInput) (ledger.Wallet, error) {
	if _, err := uuid.Parse(input.OwnerID); err != nil {
		return ledger.Wallet{}, fmt.Errorf("invalid owner id: %w", err)
	}

	currency := input.Currency
	if currency == "" {
		currency = defaultCurrency
	}

	now := time.Now().UTC()
	w := ledger.Wallet{
		ID:        uuid.NewString(),
		OwnerID:   input.OwnerID,
		Balance:   0,
		Currency:  currency,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.CreateWallet(ctx, w); err != nil {
		return ledger.Wallet{}, err
	}

	return w, nil
}

// Get retrieves wallet metadata.
func (s *Service) Get(ctx context.Context, id string) (ledger.Wallet, error) {
	return s.store.FindWallet(ctx, id)
}

// Deactivate disables a wallet. Wallets are never deleted.
func (s *Service) Deactivate(ctx context.Context, id string) error {
	return s.store.SetWalletActive(ctx, id, false)
}

// Balance returns the current balance for the wallet.
func (s *Service) Balance(ctx context.Context, id string) (Balance, error) {
	w, err := s.store.FindWallet(ctx, id)
	if err != nil {
		return Balance{}, err
	}
	return Balance{WalletID: w.ID, Amount: w.Balance, Currency: w.Currency, AsOf: time.Now().UTC()}, nil
}
