package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/goalstake/engine/internal/domain"
)

// CastVoteRequest carries castVote inputs.
type CastVoteRequest struct {
	GoalID   uuid.UUID
	Wallet   domain.WalletID
	Approved bool
	Comment  string
}

// VoteResult reports the goal after the vote and whether this vote resolved it.
type VoteResult struct {
	Goal     domain.GoalView `json:"goal"`
	Quorum   int             `json:"quorum"`
	Resolved bool            `json:"resolved"`
}

// VerificationService tallies peer votes on submitted proof and resolves the
// goal when quorum is reached.
type VerificationService struct {
	core
}

// NewVerificationService creates a VerificationService.
func NewVerificationService(d Deps) *VerificationService {
	return &VerificationService{core: newCore(d, "verification_service")}
}

// Cast records one vote. Quorum is evaluated against circle membership as it
// is at the moment of the vote; the resolving vote and the resolution commit
// together.
func (s *VerificationService) Cast(ctx context.Context, req CastVoteRequest) (*VoteResult, error) {
	var result *VoteResult

	err := s.withGoal(ctx, req.GoalID, func(tx domain.GoalTx, g *domain.Goal) error {
		if g.Status != domain.GoalStatusProofSubmitted {
			return domain.ErrProofNotSubmitted
		}
		if req.Wallet == g.CreatorID {
			return domain.ErrSelfVoteForbidden
		}
		if err := s.requireMember(ctx, tx, g.CircleID, req.Wallet); err != nil {
			return err
		}
		voted, err := tx.HasVoted(ctx, g.ID, req.Wallet)
		if err != nil {
			return fmt.Errorf("vote lookup: %w", err)
		}
		if voted {
			return domain.ErrAlreadyVoted
		}

		now := s.now()
		if err := tx.InsertVerification(ctx, &domain.Verification{
			GoalID:    g.ID,
			Wallet:    req.Wallet,
			Approved:  req.Approved,
			Comment:   strings.TrimSpace(req.Comment),
			CreatedAt: now,
		}); err != nil {
			return fmt.Errorf("insert verification: %w", err)
		}

		members, err := tx.MemberCount(ctx, g.CircleID)
		if err != nil {
			return fmt.Errorf("member count: %w", err)
		}
		resolved, err := g.ApplyVote(req.Approved, members, now)
		if err != nil {
			return err
		}
		if err := tx.UpdateGoal(ctx, g); err != nil {
			return fmt.Errorf("update goal: %w", err)
		}

		result = &VoteResult{Goal: g.View(), Quorum: domain.Quorum(members), Resolved: resolved}
		return nil
	})
	if err != nil {
		s.logRejected("cast vote", err,
			zap.String("goal_id", req.GoalID.String()),
			zap.String("wallet", req.Wallet.String()))
		return nil, fmt.Errorf("verification_service.Cast: %w", err)
	}

	g := result.Goal.Goal
	if result.Resolved {
		s.log.Info("goal resolved",
			zap.String("goal_id", g.ID.String()),
			zap.String("status", string(g.Status)),
			zap.Int("yes", g.VerifyYesCount),
			zap.Int("no", g.VerifyNoCount),
			zap.Int("quorum", result.Quorum))
		s.publish(EventGoalResolved, g)
	} else {
		s.publish(EventVoteCast, g)
	}
	return result, nil
}
