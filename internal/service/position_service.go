package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/goalstake/engine/internal/domain"
)

// TakePositionRequest carries takePosition inputs. Side is parsed inside Take,
// so any case of "yes"/"no" is accepted.
type TakePositionRequest struct {
	GoalID uuid.UUID
	Wallet domain.WalletID
	Side   domain.Side
	Amount decimal.Decimal
}

// PositionReceipt is the accepted position and the goal as it stands after it.
type PositionReceipt struct {
	Position *domain.Position `json:"position"`
	Goal     domain.GoalView  `json:"goal"`
}

// PositionService accepts YES/NO stakes on active goals.
type PositionService struct {
	core
}

// NewPositionService creates a PositionService.
func NewPositionService(d Deps) *PositionService {
	return &PositionService{core: newCore(d, "position_service")}
}

// Take records a position. Checks run in a fixed order and the first failure
// wins; on success the position, the pool bump, the debit and its ledger entry
// commit together.
func (s *PositionService) Take(ctx context.Context, req TakePositionRequest) (*PositionReceipt, error) {
	var receipt *PositionReceipt

	err := s.withGoal(ctx, req.GoalID, func(tx domain.GoalTx, g *domain.Goal) error {
		now := s.now()

		// ── 1. Goal state & deadline ────────────────────────────────────────
		if err := g.AcceptsPositions(now); err != nil {
			return err
		}

		// ── 2. Who is betting ───────────────────────────────────────────────
		if req.Wallet == g.CreatorID {
			return domain.ErrCreatorCannotBet
		}
		if err := s.requireMember(ctx, tx, g.CircleID, req.Wallet); err != nil {
			return err
		}

		// ── 3. Amount & side ────────────────────────────────────────────────
		if !req.Amount.IsPositive() || !domain.FitsAmountScale(req.Amount) {
			return domain.ErrInvalidAmount
		}
		side, err := domain.ParseSide(string(req.Side))
		if err != nil {
			return err
		}
		positions, err := tx.PositionsForGoal(ctx, g.ID)
		if err != nil {
			return fmt.Errorf("load positions: %w", err)
		}
		if held := domain.HeldSide(positions, req.Wallet); held == side.Opposite() {
			return domain.SideConflict(held)
		}

		// ── 4. Funds & pool cap ─────────────────────────────────────────────
		if err := s.requireFunds(ctx, tx, req.Wallet, req.Amount); err != nil {
			return err
		}
		if remaining := g.RemainingCapacity(); req.Amount.GreaterThan(remaining) {
			return domain.PoolCapExceeded(remaining)
		}

		// ── 5. Effects ──────────────────────────────────────────────────────
		p := &domain.Position{
			ID:        uuid.New(),
			GoalID:    g.ID,
			Wallet:    req.Wallet,
			Side:      side,
			Amount:    req.Amount,
			CreatedAt: now,
		}
		if err := tx.InsertPosition(ctx, p); err != nil {
			return fmt.Errorf("insert position: %w", err)
		}
		g.AddToPool(side, req.Amount)
		if err := tx.UpdateGoal(ctx, g); err != nil {
			return fmt.Errorf("update pools: %w", err)
		}
		if _, err := tx.Debit(ctx, req.Wallet, req.Amount, domain.ReasonPosition, &g.ID); err != nil {
			return fmt.Errorf("debit: %w", err)
		}

		receipt = &PositionReceipt{Position: p, Goal: g.View()}
		return nil
	})
	if err != nil {
		s.logRejected("take position", err,
			zap.String("goal_id", req.GoalID.String()),
			zap.String("wallet", req.Wallet.String()),
			zap.String("side", string(req.Side)),
			zap.String("amount", req.Amount.String()))
		return nil, fmt.Errorf("position_service.Take: %w", err)
	}

	s.log.Info("position taken",
		zap.String("goal_id", req.GoalID.String()),
		zap.String("wallet", req.Wallet.String()),
		zap.String("side", string(receipt.Position.Side)),
		zap.String("amount", req.Amount.String()))
	s.publish(EventPositionTaken, receipt.Goal.Goal)
	return receipt, nil
}
