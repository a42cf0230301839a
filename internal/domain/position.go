package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Side is the outcome a position backs.
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// ParseSide accepts "yes"/"no" in any case.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToUpper(strings.TrimSpace(s))) {
	case SideYes:
		return SideYes, nil
	case SideNo:
		return SideNo, nil
	}
	return "", ErrInvalidSide
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideYes {
		return SideNo
	}
	return SideYes
}

// Position is one stake on one side of a goal. Positions are append-only; a
// wallet may add several, all on the same side.
type Position struct {
	ID        uuid.UUID       `json:"id"         db:"id"`
	GoalID    uuid.UUID       `json:"goal_id"    db:"goal_id"`
	Wallet    WalletID        `json:"wallet"     db:"wallet"`
	Side      Side            `json:"side"       db:"side"`
	Amount    decimal.Decimal `json:"amount"     db:"amount"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// Validate checks the record invariants.
func (p *Position) Validate() error {
	if p.Side != SideYes && p.Side != SideNo {
		return fmt.Errorf("%w: position %s has side %q", ErrCorruptRecord, p.ID, p.Side)
	}
	if !p.Amount.IsPositive() {
		return fmt.Errorf("%w: position %s has non-positive amount", ErrCorruptRecord, p.ID)
	}
	return nil
}

// HeldSide returns the side wallet already holds among positions, or "" if none.
func HeldSide(positions []*Position, wallet WalletID) Side {
	for _, p := range positions {
		if p.Wallet == wallet {
			return p.Side
		}
	}
	return ""
}

// SumBySide totals the amounts of wallet's positions per side.
func SumBySide(positions []*Position, wallet WalletID) (yes, no decimal.Decimal) {
	yes, no = decimal.Zero, decimal.Zero
	for _, p := range positions {
		if p.Wallet != wallet {
			continue
		}
		if p.Side == SideYes {
			yes = yes.Add(p.Amount)
		} else {
			no = no.Add(p.Amount)
		}
	}
	return yes, no
}

// ──────────────────────────────────────────────────────────────────────────────
// Verification
// ──────────────────────────────────────────────────────────────────────────────

// Verification is one member's vote on a submitted proof.
type Verification struct {
	GoalID    uuid.UUID `json:"goal_id"    db:"goal_id"`
	Wallet    WalletID  `json:"wallet"     db:"wallet"`
	Approved  bool      `json:"approved"   db:"approved"`
	Comment   string    `json:"comment"    db:"comment"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
