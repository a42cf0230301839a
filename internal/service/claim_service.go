package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/goalstake/engine/internal/domain"
)

// ClaimReceipt is what a participant gets back from claim. Payout is rounded
// to two places, exactly as credited.
type ClaimReceipt struct {
	GoalID uuid.UUID         `json:"goal_id"`
	Wallet domain.WalletID   `json:"wallet"`
	Role   domain.PayoutRole `json:"role"`
	Payout decimal.Decimal   `json:"payout"`
	Fee    decimal.Decimal   `json:"fee"`
	Status domain.GoalStatus `json:"status"`
}

// PayoutPreview is the settlement a wallet would receive, without side effects.
type PayoutPreview struct {
	GoalID  uuid.UUID         `json:"goal_id"`
	Wallet  domain.WalletID   `json:"wallet"`
	Role    domain.PayoutRole `json:"role"`
	Payout  decimal.Decimal   `json:"payout"`
	Fee     decimal.Decimal   `json:"fee"`
	Status  domain.GoalStatus `json:"status"`
	Claimed bool              `json:"claimed"`
}

// ClaimService settles resolved goals, at most once per participant.
type ClaimService struct {
	core
}

// NewClaimService creates a ClaimService.
func NewClaimService(d Deps) *ClaimService {
	return &ClaimService{core: newCore(d, "claim_service")}
}

// Claim computes wallet's payout, records the claim (also when the payout is
// zero), books the retained fee and credits the wallet.
func (s *ClaimService) Claim(ctx context.Context, goalID uuid.UUID, wallet domain.WalletID) (*ClaimReceipt, error) {
	var receipt *ClaimReceipt
	var resolved *domain.Goal

	err := s.withGoal(ctx, goalID, func(tx domain.GoalTx, g *domain.Goal) error {
		// ── 1. Eligibility ──────────────────────────────────────────────────
		if !g.Status.IsResolved() {
			return domain.ErrGoalNotResolved
		}
		claimed, err := tx.HasClaimed(ctx, g.ID, wallet)
		if err != nil {
			return fmt.Errorf("claim lookup: %w", err)
		}
		if claimed {
			return domain.ErrAlreadyClaimed
		}

		// ── 2. Settle ───────────────────────────────────────────────────────
		positions, err := tx.PositionsForGoal(ctx, g.ID)
		if err != nil {
			return fmt.Errorf("load positions: %w", err)
		}
		payout, err := domain.ComputePayout(g, wallet, positions, s.settings.FeeRate)
		if err != nil {
			return err
		}
		amount, fee := payout.Rounded(), payout.RoundedFee()
		now := s.now()

		// ── 3. Effects ──────────────────────────────────────────────────────
		if err := tx.InsertClaim(ctx, &domain.Claim{
			GoalID: g.ID, Wallet: wallet, Payout: amount, ClaimedAt: now,
		}); err != nil {
			return fmt.Errorf("insert claim: %w", err)
		}
		if fee.IsPositive() {
			if err := tx.RecordFee(ctx, &domain.FeeEntry{
				ID: uuid.New(), GoalID: g.ID, Wallet: wallet, Amount: fee, CreatedAt: now,
			}); err != nil {
				return fmt.Errorf("record fee: %w", err)
			}
		}
		if amount.IsPositive() {
			if _, err := tx.Credit(ctx, wallet, amount, domain.ReasonPayout, &g.ID); err != nil {
				return fmt.Errorf("credit: %w", err)
			}
		}

		receipt = &ClaimReceipt{
			GoalID: g.ID,
			Wallet: wallet,
			Role:   payout.Role,
			Payout: amount,
			Fee:    fee,
			Status: g.Status,
		}
		resolved = g
		return nil
	})
	if err != nil {
		s.logRejected("claim", err,
			zap.String("goal_id", goalID.String()),
			zap.String("wallet", wallet.String()))
		return nil, fmt.Errorf("claim_service.Claim: %w", err)
	}

	s.log.Info("payout claimed",
		zap.String("goal_id", goalID.String()),
		zap.String("wallet", wallet.String()),
		zap.String("role", string(receipt.Role)),
		zap.String("payout", receipt.Payout.StringFixed(2)),
		zap.String("fee", receipt.Fee.StringFixed(2)))
	s.publish(EventPayoutClaimed, resolved)
	return receipt, nil
}

// Preview replays the settlement for wallet without locking or writing.
func (s *ClaimService) Preview(ctx context.Context, goalID uuid.UUID, wallet domain.WalletID) (*PayoutPreview, error) {
	g, err := s.store.GetGoal(ctx, goalID)
	if err != nil {
		return nil, fmt.Errorf("claim_service.Preview: %w", err)
	}
	positions, err := s.store.ListPositions(ctx, goalID)
	if err != nil {
		return nil, fmt.Errorf("claim_service.Preview: positions: %w", err)
	}
	payout, err := domain.ComputePayout(g, wallet, positions, s.settings.FeeRate)
	if err != nil {
		return nil, fmt.Errorf("claim_service.Preview: %w", err)
	}
	claims, err := s.store.ListClaims(ctx, goalID)
	if err != nil {
		return nil, fmt.Errorf("claim_service.Preview: claims: %w", err)
	}
	claimed := false
	for _, c := range claims {
		if c.Wallet == wallet {
			claimed = true
			break
		}
	}
	return &PayoutPreview{
		GoalID:  goalID,
		Wallet:  wallet,
		Role:    payout.Role,
		Payout:  payout.Rounded(),
		Fee:     payout.RoundedFee(),
		Status:  g.Status,
		Claimed: claimed,
	}, nil
}
