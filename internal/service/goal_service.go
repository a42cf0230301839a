package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/goalstake/engine/internal/domain"
)

// ──────────────────────────────────────────────────────────────────────────────
// Requests & views
// ──────────────────────────────────────────────────────────────────────────────

// CreateGoalRequest carries createGoal inputs. A nil Stake means "use the
// configured default".
type CreateGoalRequest struct {
	CircleID    uuid.UUID
	Creator     domain.WalletID
	Title       string
	Description string
	Category    string
	Deadline    time.Time
	Stake       *decimal.Decimal
}

// GoalDetail is a goal with everything hanging off it.
type GoalDetail struct {
	domain.GoalView
	Positions     []*domain.Position     `json:"positions"`
	Verifications []*domain.Verification `json:"verifications"`
	Claims        []*domain.Claim        `json:"claims"`
}

// WalletGoals splits a wallet's goals into the ones it created and the ones it
// holds positions on.
type WalletGoals struct {
	Created []domain.GoalView `json:"created"`
	Staked  []domain.GoalView `json:"staked"`
}

// ──────────────────────────────────────────────────────────────────────────────
// GoalService
// ──────────────────────────────────────────────────────────────────────────────

// GoalService owns goal creation, proof submission and goal queries.
type GoalService struct {
	core
}

// NewGoalService creates a GoalService.
func NewGoalService(d Deps) *GoalService {
	return &GoalService{core: newCore(d, "goal_service")}
}

// Create validates the request, debits the creator's stake and stores the new
// active goal in one transaction.
func (s *GoalService) Create(ctx context.Context, req CreateGoalRequest) (*domain.Goal, error) {
	now := s.now()

	// ── 1. Input validation ──────────────────────────────────────────────────
	if strings.TrimSpace(req.Title) == "" {
		return nil, domain.ErrTitleRequired
	}
	if !req.Deadline.After(now) {
		return nil, domain.ErrInvalidDeadline
	}
	stake := s.settings.DefaultStake
	if req.Stake != nil {
		stake = *req.Stake
	}
	if stake.IsNegative() || !domain.FitsAmountScale(stake) {
		return nil, domain.ErrInvalidAmount
	}

	goal := domain.NewGoal(req.CircleID, req.Creator, req.Title, req.Description,
		strings.TrimSpace(req.Category), req.Deadline, stake, s.settings.PoolMultiplier, now)

	err := s.store.InTx(ctx, func(tx domain.GoalTx) error {
		// ── 2. Membership & funds ───────────────────────────────────────────
		if err := s.requireMember(ctx, tx, req.CircleID, req.Creator); err != nil {
			return err
		}
		if stake.IsPositive() {
			if err := s.requireFunds(ctx, tx, req.Creator, stake); err != nil {
				return err
			}
		}

		// ── 3. Persist goal, then move the stake ────────────────────────────
		if err := tx.InsertGoal(ctx, goal); err != nil {
			return fmt.Errorf("insert goal: %w", err)
		}
		if stake.IsPositive() {
			if _, err := tx.Debit(ctx, req.Creator, stake, domain.ReasonGoalStake, &goal.ID); err != nil {
				return fmt.Errorf("debit stake: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		s.logRejected("create goal", err, zap.String("creator", req.Creator.String()))
		return nil, fmt.Errorf("goal_service.Create: %w", err)
	}

	s.log.Info("goal created",
		zap.String("goal_id", goal.ID.String()),
		zap.String("circle_id", goal.CircleID.String()),
		zap.String("creator", goal.CreatorID.String()),
		zap.String("stake", goal.StakeAmount.String()))
	s.publish(EventGoalCreated, goal)
	return goal, nil
}

// SubmitProof moves an active goal to proof_submitted. Only the creator may do
// it; the deadline does not matter here.
func (s *GoalService) SubmitProof(ctx context.Context, goalID uuid.UUID, wallet domain.WalletID, proofURL, proofDescription string) (*domain.Goal, error) {
	var out *domain.Goal
	err := s.withGoal(ctx, goalID, func(tx domain.GoalTx, g *domain.Goal) error {
		if g.CreatorID != wallet {
			return domain.ErrNotCreator
		}
		if err := g.SubmitProof(proofURL, proofDescription); err != nil {
			return err
		}
		if err := tx.UpdateGoal(ctx, g); err != nil {
			return fmt.Errorf("update goal: %w", err)
		}
		out = g
		return nil
	})
	if err != nil {
		s.logRejected("submit proof", err, zap.String("goal_id", goalID.String()))
		return nil, fmt.Errorf("goal_service.SubmitProof: %w", err)
	}

	s.log.Info("proof submitted", zap.String("goal_id", goalID.String()))
	s.publish(EventProofSubmitted, out)
	return out, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────────────────────────

// Get returns a goal with its positions, verifications and claims.
func (s *GoalService) Get(ctx context.Context, id uuid.UUID) (*GoalDetail, error) {
	g, err := s.store.GetGoal(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("goal_service.Get: %w", err)
	}
	positions, err := s.store.ListPositions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("goal_service.Get: positions: %w", err)
	}
	votes, err := s.store.ListVerifications(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("goal_service.Get: verifications: %w", err)
	}
	claims, err := s.store.ListClaims(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("goal_service.Get: claims: %w", err)
	}
	return &GoalDetail{
		GoalView:      g.View(),
		Positions:     positions,
		Verifications: votes,
		Claims:        claims,
	}, nil
}

// ListByCircle returns a circle's goals, newest first.
func (s *GoalService) ListByCircle(ctx context.Context, circleID uuid.UUID) ([]domain.GoalView, error) {
	goals, err := s.store.ListGoalsByCircle(ctx, circleID)
	if err != nil {
		return nil, fmt.Errorf("goal_service.ListByCircle: %w", err)
	}
	return domain.Views(goals), nil
}

// ForWallet returns the goals a wallet created and the ones it staked on.
func (s *GoalService) ForWallet(ctx context.Context, wallet domain.WalletID) (*WalletGoals, error) {
	created, err := s.store.ListGoalsByCreator(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("goal_service.ForWallet: created: %w", err)
	}
	staked, err := s.store.ListGoalsStakedBy(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("goal_service.ForWallet: staked: %w", err)
	}
	return &WalletGoals{Created: domain.Views(created), Staked: domain.Views(staked)}, nil
}
