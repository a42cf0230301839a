package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/goalstake/engine/internal/domain"
)

// txScope binds the repositories to one *sqlx.Tx.
type txScope struct {
	s  *Store
	tx *sqlx.Tx
}

func (t *txScope) LockGoal(ctx context.Context, id uuid.UUID) (*domain.Goal, error) {
	return t.s.Goals.LockForUpdate(ctx, t.tx, id)
}

func (t *txScope) InsertGoal(ctx context.Context, g *domain.Goal) error {
	return t.s.Goals.Create(ctx, t.tx, g)
}

func (t *txScope) UpdateGoal(ctx context.Context, g *domain.Goal) error {
	return t.s.Goals.Update(ctx, t.tx, g)
}

func (t *txScope) PositionsForGoal(ctx context.Context, goalID uuid.UUID) ([]*domain.Position, error) {
	return t.s.Positions.GetByGoalTx(ctx, t.tx, goalID)
}

func (t *txScope) InsertPosition(ctx context.Context, p *domain.Position) error {
	return t.s.Positions.Create(ctx, t.tx, p)
}

func (t *txScope) HasVoted(ctx context.Context, goalID uuid.UUID, wallet domain.WalletID) (bool, error) {
	return t.s.Verifications.Exists(ctx, t.tx, goalID, wallet)
}

func (t *txScope) InsertVerification(ctx context.Context, v *domain.Verification) error {
	return t.s.Verifications.Create(ctx, t.tx, v)
}

func (t *txScope) HasClaimed(ctx context.Context, goalID uuid.UUID, wallet domain.WalletID) (bool, error) {
	return t.s.Claims.Exists(ctx, t.tx, goalID, wallet)
}

func (t *txScope) InsertClaim(ctx context.Context, c *domain.Claim) error {
	return t.s.Claims.Create(ctx, t.tx, c)
}

func (t *txScope) RecordFee(ctx context.Context, f *domain.FeeEntry) error {
	return t.s.Claims.RecordFee(ctx, t.tx, f)
}

func (t *txScope) IsMember(ctx context.Context, circleID uuid.UUID, wallet domain.WalletID) (bool, error) {
	return t.s.Members.IsMember(ctx, t.tx, circleID, wallet)
}

func (t *txScope) MemberCount(ctx context.Context, circleID uuid.UUID) (int, error) {
	return t.s.Members.Count(ctx, t.tx, circleID)
}

func (t *txScope) Balance(ctx context.Context, wallet domain.WalletID) (decimal.Decimal, error) {
	return t.s.Accounts.GetBalanceTx(ctx, t.tx, wallet)
}

func (t *txScope) Debit(ctx context.Context, wallet domain.WalletID, amount decimal.Decimal,
	reason domain.LedgerReason, goalID *uuid.UUID) (*domain.LedgerEntry, error) {
	return t.s.Accounts.Debit(ctx, t.tx, wallet, amount, reason, goalID, t.s.now().UTC())
}

func (t *txScope) Credit(ctx context.Context, wallet domain.WalletID, amount decimal.Decimal,
	reason domain.LedgerReason, goalID *uuid.UUID) (*domain.LedgerEntry, error) {
	return t.s.Accounts.Credit(ctx, t.tx, wallet, amount, reason, goalID, t.s.now().UTC())
}

var _ domain.GoalTx = (*txScope)(nil)
