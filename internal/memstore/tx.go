package memstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/goalstake/engine/internal/domain"
)

// tx mutates a private state copy owned by one InTx call.
type tx struct {
	st  *state
	now func() time.Time
}

func (t *tx) LockGoal(_ context.Context, id uuid.UUID) (*domain.Goal, error) {
	g, ok := t.st.goals[id]
	if !ok {
		return nil, domain.ErrGoalNotFound
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g.Clone(), nil
}

func (t *tx) InsertGoal(_ context.Context, g *domain.Goal) error {
	if _, dup := t.st.goals[g.ID]; dup {
		return fmt.Errorf("memstore.InsertGoal: duplicate id %s", g.ID)
	}
	t.st.goals[g.ID] = g.Clone()
	return nil
}

func (t *tx) UpdateGoal(_ context.Context, g *domain.Goal) error {
	if _, ok := t.st.goals[g.ID]; !ok {
		return domain.ErrGoalNotFound
	}
	if err := g.Validate(); err != nil {
		return err
	}
	t.st.goals[g.ID] = g.Clone()
	return nil
}

func (t *tx) PositionsForGoal(_ context.Context, goalID uuid.UUID) ([]*domain.Position, error) {
	return append([]*domain.Position{}, t.st.positions[goalID]...), nil
}

func (t *tx) InsertPosition(_ context.Context, p *domain.Position) error {
	cp := *p
	t.st.positions[p.GoalID] = append(t.st.positions[p.GoalID], &cp)
	return nil
}

func (t *tx) HasVoted(_ context.Context, goalID uuid.UUID, wallet domain.WalletID) (bool, error) {
	for _, v := range t.st.verifications[goalID] {
		if v.Wallet == wallet {
			return true, nil
		}
	}
	return false, nil
}

func (t *tx) InsertVerification(ctx context.Context, v *domain.Verification) error {
	if voted, _ := t.HasVoted(ctx, v.GoalID, v.Wallet); voted {
		return domain.ErrAlreadyVoted
	}
	cp := *v
	t.st.verifications[v.GoalID] = append(t.st.verifications[v.GoalID], &cp)
	return nil
}

func (t *tx) HasClaimed(_ context.Context, goalID uuid.UUID, wallet domain.WalletID) (bool, error) {
	_, ok := t.st.claims[claimKey{goalID, wallet}]
	return ok, nil
}

func (t *tx) InsertClaim(_ context.Context, c *domain.Claim) error {
	k := claimKey{c.GoalID, c.Wallet}
	if _, ok := t.st.claims[k]; ok {
		return domain.ErrAlreadyClaimed
	}
	cp := *c
	t.st.claims[k] = &cp
	return nil
}

func (t *tx) RecordFee(_ context.Context, f *domain.FeeEntry) error {
	cp := *f
	t.st.fees = append(t.st.fees, &cp)
	return nil
}

// ── Membership ───────────────────────────────────────────────────────────────

func (t *tx) IsMember(_ context.Context, circleID uuid.UUID, wallet domain.WalletID) (bool, error) {
	_, ok := t.st.members[circleID][wallet]
	return ok, nil
}

func (t *tx) MemberCount(_ context.Context, circleID uuid.UUID) (int, error) {
	return len(t.st.members[circleID]), nil
}

// ── Accounts ─────────────────────────────────────────────────────────────────

func (t *tx) Balance(_ context.Context, wallet domain.WalletID) (decimal.Decimal, error) {
	a, ok := t.st.accounts[wallet]
	if !ok {
		return decimal.Zero, domain.ErrAccountNotFound
	}
	return a.Balance, nil
}

func (t *tx) Debit(_ context.Context, wallet domain.WalletID, amount decimal.Decimal, reason domain.LedgerReason, goalID *uuid.UUID) (*domain.LedgerEntry, error) {
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}
	a, ok := t.st.accounts[wallet]
	if !ok {
		return nil, domain.InsufficientBalance(decimal.Zero, amount)
	}
	if a.Balance.LessThan(amount) {
		return nil, domain.InsufficientBalance(a.Balance, amount)
	}
	return t.apply(a, amount.Neg(), reason, goalID), nil
}

// Credit opens the account on first use.
func (t *tx) Credit(_ context.Context, wallet domain.WalletID, amount decimal.Decimal, reason domain.LedgerReason, goalID *uuid.UUID) (*domain.LedgerEntry, error) {
	if !amount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}
	a, ok := t.st.accounts[wallet]
	if !ok {
		a = &domain.Account{Wallet: wallet, Balance: decimal.Zero}
		t.st.accounts[wallet] = a
	}
	return t.apply(a, amount, reason, goalID), nil
}

func (t *tx) apply(a *domain.Account, change decimal.Decimal, reason domain.LedgerReason, goalID *uuid.UUID) *domain.LedgerEntry {
	now := t.now().UTC()
	a.Balance = a.Balance.Add(change)
	a.UpdatedAt = now
	e := domain.NewLedgerEntry(a.Wallet, change, a.Balance, reason, goalID, now)
	t.st.history = append(t.st.history, e)
	return e
}

var _ domain.GoalTx = (*tx)(nil)
