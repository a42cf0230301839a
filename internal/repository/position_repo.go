package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/goalstake/engine/internal/domain"
)

// PositionRepository handles the append-only positions table.
type PositionRepository struct {
	db *sqlx.DB
}

// NewPositionRepository creates a new PositionRepository.
func NewPositionRepository(db *sqlx.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

// Create inserts a position inside a transaction.
func (r *PositionRepository) Create(ctx context.Context, tx *sqlx.Tx, p *domain.Position) error {
	query := `
		INSERT INTO positions (id, goal_id, wallet, side, amount, created_at)
		VALUES (:id, :goal_id, :wallet, :side, :amount, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, p); err != nil {
		return fmt.Errorf("position_repo.Create: %w", err)
	}
	return nil
}

// GetByGoalTx lists a goal's positions inside tx, oldest first.
func (r *PositionRepository) GetByGoalTx(ctx context.Context, tx *sqlx.Tx, goalID uuid.UUID) ([]*domain.Position, error) {
	return r.scan(ctx, tx, "position_repo.GetByGoalTx", goalID)
}

// GetByGoal lists a goal's positions, oldest first.
func (r *PositionRepository) GetByGoal(ctx context.Context, goalID uuid.UUID) ([]*domain.Position, error) {
	return r.scan(ctx, r.db, "position_repo.GetByGoal", goalID)
}

func (r *PositionRepository) scan(ctx context.Context, q sqlx.QueryerContext, op string, goalID uuid.UUID) ([]*domain.Position, error) {
	positions := []*domain.Position{}
	err := sqlx.SelectContext(ctx, q, &positions, `
		SELECT id, goal_id, wallet, side, amount, created_at
		FROM positions
		WHERE goal_id = $1
		ORDER BY created_at, id`, goalID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	for _, p := range positions {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	return positions, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Verifications
// ──────────────────────────────────────────────────────────────────────────────

// VerificationRepository handles peer votes.
type VerificationRepository struct {
	db *sqlx.DB
}

// NewVerificationRepository creates a new VerificationRepository.
func NewVerificationRepository(db *sqlx.DB) *VerificationRepository {
	return &VerificationRepository{db: db}
}

// Exists reports whether wallet already voted on goalID.
func (r *VerificationRepository) Exists(ctx context.Context, tx *sqlx.Tx, goalID uuid.UUID, wallet domain.WalletID) (bool, error) {
	var exists bool
	err := tx.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM verifications WHERE goal_id = $1 AND wallet = $2)`,
		goalID, wallet)
	if err != nil {
		return false, fmt.Errorf("verification_repo.Exists: %w", err)
	}
	return exists, nil
}

// Create inserts a vote. The primary key backs up the one-vote rule.
func (r *VerificationRepository) Create(ctx context.Context, tx *sqlx.Tx, v *domain.Verification) error {
	query := `
		INSERT INTO verifications (goal_id, wallet, approved, comment, created_at)
		VALUES (:goal_id, :wallet, :approved, :comment, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, v); err != nil {
		if isUniqueViolation(err, "verifications_pkey") {
			return domain.ErrAlreadyVoted
		}
		return fmt.Errorf("verification_repo.Create: %w", err)
	}
	return nil
}

// GetByGoal lists a goal's votes, oldest first.
func (r *VerificationRepository) GetByGoal(ctx context.Context, goalID uuid.UUID) ([]*domain.Verification, error) {
	votes := []*domain.Verification{}
	err := r.db.SelectContext(ctx, &votes, `
		SELECT goal_id, wallet, approved, comment, created_at
		FROM verifications
		WHERE goal_id = $1
		ORDER BY created_at`, goalID)
	if err != nil {
		return nil, fmt.Errorf("verification_repo.GetByGoal: %w", err)
	}
	return votes, nil
}
