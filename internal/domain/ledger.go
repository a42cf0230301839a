package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Claims & fees
// ──────────────────────────────────────────────────────────────────────────────

// Claim records that a participant collected their settlement. At most one
// per (goal, wallet); a zero payout still produces a claim.
type Claim struct {
	GoalID    uuid.UUID       `json:"goal_id"    db:"goal_id"`
	Wallet    WalletID        `json:"wallet"     db:"wallet"`
	Payout    decimal.Decimal `json:"payout"     db:"payout"`
	ClaimedAt time.Time       `json:"claimed_at" db:"claimed_at"`
}

// FeeEntry is the platform fee retained from one participant's winnings.
type FeeEntry struct {
	ID        uuid.UUID       `json:"id"         db:"id"`
	GoalID    uuid.UUID       `json:"goal_id"    db:"goal_id"`
	Wallet    WalletID        `json:"wallet"     db:"wallet"`
	Amount    decimal.Decimal `json:"amount"     db:"amount"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// TreasuryReport summarises the fees retained so far.
type TreasuryReport struct {
	TotalFees   decimal.Decimal `json:"total_fees"   db:"total_fees"`
	FeeEntries  int             `json:"fee_entries"  db:"fee_entries"`
	ClaimsCount int             `json:"claims_count" db:"claims_count"`
	TotalPaid   decimal.Decimal `json:"total_paid"   db:"total_paid"`
}

// ──────────────────────────────────────────────────────────────────────────────
// Account ledger
// ──────────────────────────────────────────────────────────────────────────────

// AmountScale is the number of decimal places every stored amount carries.
const AmountScale = 8

// FitsAmountScale reports whether a has no digits beyond AmountScale.
func FitsAmountScale(a decimal.Decimal) bool {
	return a.Equal(a.Truncate(AmountScale))
}

// LedgerReason tags every balance change.
type LedgerReason string

const (
	ReasonGoalStake LedgerReason = "goal_stake"
	ReasonPosition  LedgerReason = "position"
	ReasonPayout    LedgerReason = "payout"
	ReasonSeed      LedgerReason = "seed"
)

// Account is a wallet's spendable balance.
type Account struct {
	Wallet    WalletID        `json:"wallet"     db:"wallet"`
	Balance   decimal.Decimal `json:"balance"    db:"balance"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// LedgerEntry is an append-only audit row; ChangeAmount is signed.
type LedgerEntry struct {
	ID           uuid.UUID       `json:"id"            db:"id"`
	Wallet       WalletID        `json:"wallet"        db:"wallet"`
	ChangeAmount decimal.Decimal `json:"change_amount" db:"change_amount"`
	BalanceAfter decimal.Decimal `json:"balance_after" db:"balance_after"`
	Reason       LedgerReason    `json:"reason"        db:"reason"`
	GoalID       *uuid.UUID      `json:"goal_id"       db:"goal_id"`
	CreatedAt    time.Time       `json:"created_at"    db:"created_at"`
}

// NewLedgerEntry stamps a fresh audit row.
func NewLedgerEntry(wallet WalletID, change, after decimal.Decimal, reason LedgerReason, goalID *uuid.UUID, now time.Time) *LedgerEntry {
	return &LedgerEntry{
		ID:           uuid.New(),
		Wallet:       wallet,
		ChangeAmount: change,
		BalanceAfter: after,
		Reason:       reason,
		GoalID:       goalID,
		CreatedAt:    now.UTC(),
	}
}
