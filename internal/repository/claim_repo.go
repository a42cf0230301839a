package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/goalstake/engine/internal/domain"
)

// ClaimRepository handles claims and the platform fees booked with them.
type ClaimRepository struct {
	db *sqlx.DB
}

// NewClaimRepository creates a new ClaimRepository.
func NewClaimRepository(db *sqlx.DB) *ClaimRepository {
	return &ClaimRepository{db: db}
}

// Exists reports whether wallet already claimed on goalID.
func (r *ClaimRepository) Exists(ctx context.Context, tx *sqlx.Tx, goalID uuid.UUID, wallet domain.WalletID) (bool, error) {
	var exists bool
	err := tx.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM claims WHERE goal_id = $1 AND wallet = $2)`,
		goalID, wallet)
	if err != nil {
		return false, fmt.Errorf("claim_repo.Exists: %w", err)
	}
	return exists, nil
}

// Create inserts a claim. The primary key backs up at-most-once.
func (r *ClaimRepository) Create(ctx context.Context, tx *sqlx.Tx, c *domain.Claim) error {
	query := `
		INSERT INTO claims (goal_id, wallet, payout, claimed_at)
		VALUES (:goal_id, :wallet, :payout, :claimed_at)`
	if _, err := tx.NamedExecContext(ctx, query, c); err != nil {
		if isUniqueViolation(err, "claims_pkey") {
			return domain.ErrAlreadyClaimed
		}
		return fmt.Errorf("claim_repo.Create: %w", err)
	}
	return nil
}

// RecordFee books a retained platform fee.
func (r *ClaimRepository) RecordFee(ctx context.Context, tx *sqlx.Tx, f *domain.FeeEntry) error {
	query := `
		INSERT INTO platform_fees (id, goal_id, wallet, amount, created_at)
		VALUES (:id, :goal_id, :wallet, :amount, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, f); err != nil {
		return fmt.Errorf("claim_repo.RecordFee: %w", err)
	}
	return nil
}

// GetByGoal lists a goal's claims, oldest first.
func (r *ClaimRepository) GetByGoal(ctx context.Context, goalID uuid.UUID) ([]*domain.Claim, error) {
	claims := []*domain.Claim{}
	err := r.db.SelectContext(ctx, &claims, `
		SELECT goal_id, wallet, payout, claimed_at
		FROM claims
		WHERE goal_id = $1
		ORDER BY claimed_at`, goalID)
	if err != nil {
		return nil, fmt.Errorf("claim_repo.GetByGoal: %w", err)
	}
	return claims, nil
}

// Treasury sums fees and payouts across all goals.
func (r *ClaimRepository) Treasury(ctx context.Context) (*domain.TreasuryReport, error) {
	var rep domain.TreasuryReport
	err := r.db.GetContext(ctx, &rep, `
		SELECT
			(SELECT COALESCE(SUM(amount), 0) FROM platform_fees) AS total_fees,
			(SELECT COUNT(*)                 FROM platform_fees) AS fee_entries,
			(SELECT COUNT(*)                 FROM claims)        AS claims_count,
			(SELECT COALESCE(SUM(payout), 0) FROM claims)        AS total_paid`)
	if err != nil {
		return nil, fmt.Errorf("claim_repo.Treasury: %w", err)
	}
	return &rep, nil
}
