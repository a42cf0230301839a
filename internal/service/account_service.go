package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/goalstake/engine/internal/domain"
)

// AccountService is the read side of the ledger: balances, history and the
// treasury of retained fees.
type AccountService struct {
	core
}

// NewAccountService creates an AccountService.
func NewAccountService(d Deps) *AccountService {
	return &AccountService{core: newCore(d, "account_service")}
}

// Balance returns wallet's spendable balance.
func (s *AccountService) Balance(ctx context.Context, wallet domain.WalletID) (decimal.Decimal, error) {
	bal, err := s.store.Balance(ctx, wallet)
	if err != nil {
		return decimal.Zero, fmt.Errorf("account_service.Balance: %w", err)
	}
	return bal, nil
}

// History returns wallet's ledger entries, newest first.
func (s *AccountService) History(ctx context.Context, wallet domain.WalletID, limit, offset int) ([]*domain.LedgerEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	entries, err := s.store.History(ctx, wallet, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("account_service.History: %w", err)
	}
	return entries, nil
}

// Treasury summarises the fees retained from settled claims.
func (s *AccountService) Treasury(ctx context.Context) (*domain.TreasuryReport, error) {
	r, err := s.store.Treasury(ctx)
	if err != nil {
		return nil, fmt.Errorf("account_service.Treasury: %w", err)
	}
	return r, nil
}
