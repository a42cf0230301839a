package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/goalstake/engine/internal/domain"
)

const goalColumns = `id, circle_id, creator_id, title, description, category, deadline,
	stake_amount, yes_pool, no_pool, max_pool, status, verify_yes_count, verify_no_count,
	proof_url, proof_description, created_at, resolved_at`

// GoalRepository handles all database operations for Goals.
type GoalRepository struct {
	db *sqlx.DB
}

// NewGoalRepository creates a new GoalRepository.
func NewGoalRepository(db *sqlx.DB) *GoalRepository {
	return &GoalRepository{db: db}
}

// GetByID fetches a single goal. Returns domain.ErrGoalNotFound when missing.
func (r *GoalRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Goal, error) {
	var g domain.Goal
	err := r.db.GetContext(ctx, &g, `SELECT `+goalColumns+` FROM goals WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrGoalNotFound
		}
		return nil, fmt.Errorf("goal_repo.GetByID: %w", err)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &g, nil
}

// LockForUpdate reads the goal row with FOR UPDATE inside tx; concurrent
// writers on the same goal queue behind it until tx ends.
func (r *GoalRepository) LockForUpdate(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*domain.Goal, error) {
	var g domain.Goal
	err := tx.GetContext(ctx, &g, `SELECT `+goalColumns+` FROM goals WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrGoalNotFound
		}
		return nil, fmt.Errorf("goal_repo.LockForUpdate: %w", err)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &g, nil
}

// Create inserts a new goal inside a transaction.
func (r *GoalRepository) Create(ctx context.Context, tx *sqlx.Tx, g *domain.Goal) error {
	query := `
		INSERT INTO goals (` + goalColumns + `)
		VALUES
			(:id, :circle_id, :creator_id, :title, :description, :category, :deadline,
			 :stake_amount, :yes_pool, :no_pool, :max_pool, :status, :verify_yes_count, :verify_no_count,
			 :proof_url, :proof_description, :created_at, :resolved_at)`
	if _, err := tx.NamedExecContext(ctx, query, g); err != nil {
		return fmt.Errorf("goal_repo.Create: %w", err)
	}
	return nil
}

// Update writes back every mutable column. Immutable columns (creator,
// circle, stake, cap) are never touched.
func (r *GoalRepository) Update(ctx context.Context, tx *sqlx.Tx, g *domain.Goal) error {
	if err := g.Validate(); err != nil {
		return err
	}
	query := `
		UPDATE goals SET
			yes_pool          = :yes_pool,
			no_pool           = :no_pool,
			status            = :status,
			verify_yes_count  = :verify_yes_count,
			verify_no_count   = :verify_no_count,
			proof_url         = :proof_url,
			proof_description = :proof_description,
			resolved_at       = :resolved_at
		WHERE id = :id`
	res, err := tx.NamedExecContext(ctx, query, g)
	if err != nil {
		return fmt.Errorf("goal_repo.Update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrGoalNotFound
	}
	return nil
}

// ListByCircle returns a circle's goals, newest first.
func (r *GoalRepository) ListByCircle(ctx context.Context, circleID uuid.UUID) ([]*domain.Goal, error) {
	return r.list(ctx, "goal_repo.ListByCircle",
		`SELECT `+goalColumns+` FROM goals WHERE circle_id = $1 ORDER BY created_at DESC`, circleID)
}

// ListByCreator returns the goals a wallet created, newest first.
func (r *GoalRepository) ListByCreator(ctx context.Context, wallet domain.WalletID) ([]*domain.Goal, error) {
	return r.list(ctx, "goal_repo.ListByCreator",
		`SELECT `+goalColumns+` FROM goals WHERE creator_id = $1 ORDER BY created_at DESC`, wallet)
}

// ListStakedBy returns goals the wallet holds positions on, excluding its own.
func (r *GoalRepository) ListStakedBy(ctx context.Context, wallet domain.WalletID) ([]*domain.Goal, error) {
	return r.list(ctx, "goal_repo.ListStakedBy", `
		SELECT `+goalColumns+` FROM goals g
		WHERE g.creator_id <> $1
		  AND EXISTS (SELECT 1 FROM positions p WHERE p.goal_id = g.id AND p.wallet = $1)
		ORDER BY g.created_at DESC`, wallet)
}

func (r *GoalRepository) list(ctx context.Context, op, query string, args ...interface{}) ([]*domain.Goal, error) {
	goals := []*domain.Goal{}
	if err := r.db.SelectContext(ctx, &goals, query, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	for _, g := range goals {
		if err := g.Validate(); err != nil {
			return nil, err
		}
	}
	return goals, nil
}
