package domain

import (
	"github.com/shopspring/decimal"
)

// DefaultFeeRate is the platform fee taken from winnings (2 %). Returned
// principal is never charged.
var DefaultFeeRate = decimal.NewFromFloat(0.02)

// PayoutRole says why a wallet is owed money on a goal.
type PayoutRole string

const (
	RoleCreator PayoutRole = "creator"
	RoleYes     PayoutRole = "yes"
	RoleNo      PayoutRole = "no"
)

// Payout is the result of settling one participant. Amount and Fee are kept
// at full precision; use Rounded/RoundedFee when crediting or reporting.
type Payout struct {
	Role   PayoutRole      `json:"role"`
	Amount decimal.Decimal `json:"amount"`
	Fee    decimal.Decimal `json:"fee"`
}

// Rounded is the amount actually credited. Truncated to the cent so the
// credits on a goal never exceed what it holds.
func (p Payout) Rounded() decimal.Decimal { return p.Amount.RoundDown(2) }

// RoundedFee is the fee actually booked to the treasury, truncated like
// Rounded. Sub-cent remainders stay unbooked.
func (p Payout) RoundedFee() decimal.Decimal { return p.Fee.RoundDown(2) }

// ComputePayout settles wallet against a resolved goal. positions may be the
// goal's full position list; only wallet's rows are considered. It has no side
// effects and can be replayed at any time.
//
// Formulas:
//
//	creator, achieved:  stake + noPool − noPool×fee
//	YES holder, achieved: yesAmt
//	NO holder, failed:  noAmt + noAmt × (stake + yesPool)(1 − fee) / noPool
//
// Every other combination pays zero. When a goal fails with an empty NO pool
// the stake and YES pool have no recipient and stay forfeited.
func ComputePayout(g *Goal, wallet WalletID, positions []*Position, feeRate decimal.Decimal) (Payout, error) {
	if !g.Status.IsResolved() {
		return Payout{}, ErrGoalNotResolved
	}
	achieved := g.Status == GoalStatusAchieved

	if wallet == g.CreatorID {
		p := Payout{Role: RoleCreator, Amount: decimal.Zero, Fee: decimal.Zero}
		if achieved {
			fee := g.NoPool.Mul(feeRate)
			p.Amount = g.StakeAmount.Add(g.NoPool).Sub(fee)
			p.Fee = fee
		}
		return p, nil
	}

	yesAmt, noAmt := SumBySide(positions, wallet)
	switch {
	case yesAmt.IsPositive():
		p := Payout{Role: RoleYes, Amount: decimal.Zero, Fee: decimal.Zero}
		if achieved {
			p.Amount = yesAmt
		}
		return p, nil
	case noAmt.IsPositive():
		p := Payout{Role: RoleNo, Amount: decimal.Zero, Fee: decimal.Zero}
		if achieved {
			return p, nil
		}
		if g.NoPool.IsZero() {
			p.Amount = noAmt
			return p, nil
		}
		loserFunds := g.StakeAmount.Add(g.YesPool)
		fee := loserFunds.Mul(feeRate)
		distributable := loserFunds.Sub(fee)
		p.Amount = noAmt.Add(noAmt.Mul(distributable).Div(g.NoPool))
		p.Fee = fee.Mul(noAmt).Div(g.NoPool)
		return p, nil
	}
	return Payout{}, ErrNoPosition
}
