package domain

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MembershipOracle answers circle membership questions. Membership is managed
// elsewhere; the engine only reads it.
type MembershipOracle interface {
	IsMember(ctx context.Context, circleID uuid.UUID, wallet WalletID) (bool, error)
	MemberCount(ctx context.Context, circleID uuid.UUID) (int, error)
}

// AccountLedger moves money between a wallet's balance and the engine. Debit
// returns ErrInsufficientBalance (as a *RuleError) rather than going negative.
// Every successful call appends a LedgerEntry.
type AccountLedger interface {
	Balance(ctx context.Context, wallet WalletID) (decimal.Decimal, error)
	Debit(ctx context.Context, wallet WalletID, amount decimal.Decimal, reason LedgerReason, goalID *uuid.UUID) (*LedgerEntry, error)
	Credit(ctx context.Context, wallet WalletID, amount decimal.Decimal, reason LedgerReason, goalID *uuid.UUID) (*LedgerEntry, error)
}

// GoalTx is the view of storage inside one transaction. LockGoal must be
// called before any write to that goal; it blocks concurrent writers until
// the transaction ends.
type GoalTx interface {
	MembershipOracle
	AccountLedger

	LockGoal(ctx context.Context, id uuid.UUID) (*Goal, error)
	InsertGoal(ctx context.Context, g *Goal) error
	UpdateGoal(ctx context.Context, g *Goal) error

	PositionsForGoal(ctx context.Context, goalID uuid.UUID) ([]*Position, error)
	InsertPosition(ctx context.Context, p *Position) error

	HasVoted(ctx context.Context, goalID uuid.UUID, wallet WalletID) (bool, error)
	InsertVerification(ctx context.Context, v *Verification) error

	HasClaimed(ctx context.Context, goalID uuid.UUID, wallet WalletID) (bool, error)
	InsertClaim(ctx context.Context, c *Claim) error
	RecordFee(ctx context.Context, f *FeeEntry) error
}

// GoalReader serves queries outside any transaction.
type GoalReader interface {
	GetGoal(ctx context.Context, id uuid.UUID) (*Goal, error)
	ListGoalsByCircle(ctx context.Context, circleID uuid.UUID) ([]*Goal, error)
	ListGoalsByCreator(ctx context.Context, wallet WalletID) ([]*Goal, error)
	ListGoalsStakedBy(ctx context.Context, wallet WalletID) ([]*Goal, error)
	ListPositions(ctx context.Context, goalID uuid.UUID) ([]*Position, error)
	ListVerifications(ctx context.Context, goalID uuid.UUID) ([]*Verification, error)
	ListClaims(ctx context.Context, goalID uuid.UUID) ([]*Claim, error)
	Treasury(ctx context.Context) (*TreasuryReport, error)
}

// AccountReader serves balance lookups and history outside any transaction.
type AccountReader interface {
	Balance(ctx context.Context, wallet WalletID) (decimal.Decimal, error)
	History(ctx context.Context, wallet WalletID, limit, offset int) ([]*LedgerEntry, error)
}

// Store is the explicitly constructed persistence handle passed to every
// service. InTx runs fn in one atomic unit: all of it commits or none of it
// does. Implementations may re-run fn on transient conflicts and return
// ErrUnavailable when they give up.
type Store interface {
	GoalReader
	AccountReader
	InTx(ctx context.Context, fn func(tx GoalTx) error) error
}
