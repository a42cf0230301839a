package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Types & constants
// ──────────────────────────────────────────────────────────────────────────────

// GoalStatus is the lifecycle state of a goal. It only ever moves forward:
// active → proof_submitted → achieved | failed.
type GoalStatus string

const (
	GoalStatusActive         GoalStatus = "active"
	GoalStatusProofSubmitted GoalStatus = "proof_submitted"
	GoalStatusAchieved       GoalStatus = "achieved"
	GoalStatusFailed         GoalStatus = "failed"
)

// DefaultPoolMultiplier caps the total pool at stake × 5.
var DefaultPoolMultiplier = decimal.NewFromInt(5)

var goalTransitions = map[GoalStatus][]GoalStatus{
	GoalStatusActive:         {GoalStatusProofSubmitted},
	GoalStatusProofSubmitted: {GoalStatusAchieved, GoalStatusFailed},
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s GoalStatus) CanTransitionTo(next GoalStatus) bool {
	for _, allowed := range goalTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsResolved is true for the two terminal states.
func (s GoalStatus) IsResolved() bool {
	return s == GoalStatusAchieved || s == GoalStatusFailed
}

func (s GoalStatus) valid() bool {
	switch s {
	case GoalStatusActive, GoalStatusProofSubmitted, GoalStatusAchieved, GoalStatusFailed:
		return true
	}
	return false
}

// ──────────────────────────────────────────────────────────────────────────────
// Goal
// ──────────────────────────────────────────────────────────────────────────────

// Goal is a member's public commitment with its two prediction pools and vote
// counters. The creator's stake lives outside YesPool/NoPool.
type Goal struct {
	ID               uuid.UUID       `json:"id"                db:"id"`
	CircleID         uuid.UUID       `json:"circle_id"         db:"circle_id"`
	CreatorID        WalletID        `json:"creator_id"        db:"creator_id"`
	Title            string          `json:"title"             db:"title"`
	Description      string          `json:"description"       db:"description"`
	Category         string          `json:"category"          db:"category"`
	Deadline         time.Time       `json:"deadline"          db:"deadline"`
	StakeAmount      decimal.Decimal `json:"stake_amount"      db:"stake_amount"`
	YesPool          decimal.Decimal `json:"yes_pool"          db:"yes_pool"`
	NoPool           decimal.Decimal `json:"no_pool"           db:"no_pool"`
	MaxPool          decimal.Decimal `json:"max_pool"          db:"max_pool"`
	Status           GoalStatus      `json:"status"            db:"status"`
	VerifyYesCount   int             `json:"verify_yes_count"  db:"verify_yes_count"`
	VerifyNoCount    int             `json:"verify_no_count"   db:"verify_no_count"`
	ProofURL         string          `json:"proof_url"         db:"proof_url"`
	ProofDescription string          `json:"proof_description" db:"proof_description"`
	CreatedAt        time.Time       `json:"created_at"        db:"created_at"`
	ResolvedAt       *time.Time      `json:"resolved_at"       db:"resolved_at"`
}

// NewGoal builds an active goal with empty pools. The caller validates inputs.
func NewGoal(circleID uuid.UUID, creator WalletID, title, description, category string,
	deadline time.Time, stake, multiplier decimal.Decimal, now time.Time) *Goal {
	if category == "" {
		category = "general"
	}
	return &Goal{
		ID:          uuid.New(),
		CircleID:    circleID,
		CreatorID:   creator,
		Title:       strings.TrimSpace(title),
		Description: description,
		Category:    category,
		Deadline:    deadline.UTC(),
		StakeAmount: stake,
		YesPool:     decimal.Zero,
		NoPool:      decimal.Zero,
		MaxPool:     stake.Mul(multiplier),
		Status:      GoalStatusActive,
		CreatedAt:   now.UTC(),
	}
}

// TotalPool is YesPool + NoPool.
func (g *Goal) TotalPool() decimal.Decimal {
	return g.YesPool.Add(g.NoPool)
}

// RemainingCapacity is how much more can be staked before MaxPool is hit.
func (g *Goal) RemainingCapacity() decimal.Decimal {
	rem := g.MaxPool.Sub(g.TotalPool())
	if rem.IsNegative() {
		return decimal.Zero
	}
	return rem
}

// YesBacking is everything riding on success: the creator's stake plus the
// YES pool.
func (g *Goal) YesBacking() decimal.Decimal {
	return g.StakeAmount.Add(g.YesPool)
}

// ImpliedProbability is the whole-percent share of money backing YES, or 50
// when nothing is staked at all.
func (g *Goal) ImpliedProbability() int {
	yes := g.YesBacking()
	total := yes.Add(g.NoPool)
	if total.IsZero() {
		return 50
	}
	return int(yes.Div(total).Mul(decimal.NewFromInt(100)).Round(0).IntPart())
}

// AcceptsPositions reports whether a position can be taken at now.
func (g *Goal) AcceptsPositions(now time.Time) error {
	if g.Status != GoalStatusActive {
		return ErrGoalNotActive
	}
	if !now.Before(g.Deadline) {
		return ErrDeadlinePassed
	}
	return nil
}

// AddToPool bumps the pool for side.
func (g *Goal) AddToPool(side Side, amount decimal.Decimal) {
	if side == SideYes {
		g.YesPool = g.YesPool.Add(amount)
		return
	}
	g.NoPool = g.NoPool.Add(amount)
}

// SubmitProof moves an active goal to proof_submitted.
func (g *Goal) SubmitProof(url, description string) error {
	if !g.Status.CanTransitionTo(GoalStatusProofSubmitted) {
		return ErrInvalidState
	}
	url, description = strings.TrimSpace(url), strings.TrimSpace(description)
	if url == "" && description == "" {
		return ErrEmptyProof
	}
	g.ProofURL = url
	g.ProofDescription = description
	g.Status = GoalStatusProofSubmitted
	return nil
}

// Quorum is the number of votes that resolves a goal in a circle of
// memberCount wallets: ceil((memberCount-1)/2). The creator never votes.
func Quorum(memberCount int) int {
	voters := memberCount - 1
	if voters <= 0 {
		return 0
	}
	return (voters + 1) / 2
}

// ApplyVote counts one verification and resolves the goal once the vote total
// reaches quorum. A tie resolves to failed. It reports whether the goal
// resolved on this vote.
func (g *Goal) ApplyVote(approved bool, memberCount int, now time.Time) (bool, error) {
	if g.Status != GoalStatusProofSubmitted {
		return false, ErrProofNotSubmitted
	}
	if approved {
		g.VerifyYesCount++
	} else {
		g.VerifyNoCount++
	}
	if g.VerifyYesCount+g.VerifyNoCount < Quorum(memberCount) {
		return false, nil
	}
	outcome := GoalStatusFailed
	if g.VerifyYesCount > g.VerifyNoCount {
		outcome = GoalStatusAchieved
	}
	resolvedAt := now.UTC()
	g.Status = outcome
	g.ResolvedAt = &resolvedAt
	return true, nil
}

// Validate checks the record invariants. Stores call it on every row they
// load so a malformed row surfaces as ErrCorruptRecord.
func (g *Goal) Validate() error {
	switch {
	case !g.Status.valid():
		return fmt.Errorf("%w: goal %s has unknown status %q", ErrCorruptRecord, g.ID, g.Status)
	case g.StakeAmount.IsNegative(), g.YesPool.IsNegative(), g.NoPool.IsNegative():
		return fmt.Errorf("%w: goal %s has a negative amount", ErrCorruptRecord, g.ID)
	case g.TotalPool().GreaterThan(g.MaxPool):
		return fmt.Errorf("%w: goal %s pool %s exceeds cap %s", ErrCorruptRecord, g.ID, g.TotalPool(), g.MaxPool)
	case g.Status.IsResolved() != (g.ResolvedAt != nil):
		return fmt.Errorf("%w: goal %s resolved_at does not match status %s", ErrCorruptRecord, g.ID, g.Status)
	case g.VerifyYesCount < 0, g.VerifyNoCount < 0:
		return fmt.Errorf("%w: goal %s has a negative vote count", ErrCorruptRecord, g.ID)
	}
	return nil
}

// Clone returns a deep copy.
func (g *Goal) Clone() *Goal {
	c := *g
	if g.ResolvedAt != nil {
		t := *g.ResolvedAt
		c.ResolvedAt = &t
	}
	return &c
}

// GoalView is a goal enriched with the derived market numbers clients show.
type GoalView struct {
	*Goal
	TotalPool         decimal.Decimal `json:"total_pool"`
	RemainingCapacity decimal.Decimal `json:"remaining_capacity"`
	Probability       int             `json:"probability"`
}

// View derives the client-facing numbers.
func (g *Goal) View() GoalView {
	return GoalView{
		Goal:              g,
		TotalPool:         g.TotalPool(),
		RemainingCapacity: g.RemainingCapacity(),
		Probability:       g.ImpliedProbability(),
	}
}

// Views maps View over goals.
func Views(goals []*Goal) []GoalView {
	out := make([]GoalView, 0, len(goals))
	for _, g := range goals {
		out = append(out, g.View())
	}
	return out
}
