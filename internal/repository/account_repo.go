package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/goalstake/engine/internal/domain"
)

// AccountRepository handles balances and the ledger_entries audit trail.
type AccountRepository struct {
	db *sqlx.DB
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// GetBalance reads a balance outside any transaction.
func (r *AccountRepository) GetBalance(ctx context.Context, wallet domain.WalletID) (decimal.Decimal, error) {
	return r.balance(ctx, r.db, "account_repo.GetBalance", `SELECT balance FROM accounts WHERE wallet = $1`, wallet)
}

// GetBalanceTx reads a balance inside tx without locking it.
func (r *AccountRepository) GetBalanceTx(ctx context.Context, tx *sqlx.Tx, wallet domain.WalletID) (decimal.Decimal, error) {
	return r.balance(ctx, tx, "account_repo.GetBalanceTx", `SELECT balance FROM accounts WHERE wallet = $1`, wallet)
}

func (r *AccountRepository) balance(ctx context.Context, q sqlx.QueryerContext, op, query string, wallet domain.WalletID) (decimal.Decimal, error) {
	var bal decimal.Decimal
	if err := sqlx.GetContext(ctx, q, &bal, query, wallet); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, domain.ErrAccountNotFound
		}
		return decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}
	return bal, nil
}

// Debit subtracts amount from wallet inside tx. The account row is locked
// FOR UPDATE so concurrent debits on the same wallet serialise; returns an
// InsufficientBalance rule error when the balance would go negative.
func (r *AccountRepository) Debit(ctx context.Context, tx *sqlx.Tx, wallet domain.WalletID, amount decimal.Decimal,
	reason domain.LedgerReason, goalID *uuid.UUID, now time.Time) (*domain.LedgerEntry, error) {
	current, err := r.balance(ctx, tx, "account_repo.Debit lock",
		`SELECT balance FROM accounts WHERE wallet = $1 FOR UPDATE`, wallet)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, domain.InsufficientBalance(decimal.Zero, amount)
		}
		return nil, err
	}
	if current.LessThan(amount) {
		return nil, domain.InsufficientBalance(current, amount)
	}

	var after decimal.Decimal
	err = tx.GetContext(ctx, &after,
		`UPDATE accounts SET balance = balance - $1, updated_at = $2 WHERE wallet = $3 RETURNING balance`,
		amount, now, wallet)
	if err != nil {
		return nil, fmt.Errorf("account_repo.Debit update: %w", err)
	}
	return r.log(ctx, tx, domain.NewLedgerEntry(wallet, amount.Neg(), after, reason, goalID, now))
}

// Credit adds amount to wallet inside tx, opening the account if needed.
func (r *AccountRepository) Credit(ctx context.Context, tx *sqlx.Tx, wallet domain.WalletID, amount decimal.Decimal,
	reason domain.LedgerReason, goalID *uuid.UUID, now time.Time) (*domain.LedgerEntry, error) {
	var after decimal.Decimal
	err := tx.GetContext(ctx, &after, `
		INSERT INTO accounts (wallet, balance, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (wallet) DO UPDATE
			SET balance = accounts.balance + EXCLUDED.balance, updated_at = EXCLUDED.updated_at
		RETURNING balance`,
		wallet, amount, now)
	if err != nil {
		return nil, fmt.Errorf("account_repo.Credit: %w", err)
	}
	return r.log(ctx, tx, domain.NewLedgerEntry(wallet, amount, after, reason, goalID, now))
}

// Seed sets wallet's balance outright and logs the difference.
func (r *AccountRepository) Seed(ctx context.Context, tx *sqlx.Tx, wallet domain.WalletID, balance decimal.Decimal, now time.Time) error {
	prev, err := r.balance(ctx, tx, "account_repo.Seed lock",
		`SELECT balance FROM accounts WHERE wallet = $1 FOR UPDATE`, wallet)
	if err != nil && !errors.Is(err, domain.ErrAccountNotFound) {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO accounts (wallet, balance, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (wallet) DO UPDATE SET balance = EXCLUDED.balance, updated_at = EXCLUDED.updated_at`,
		wallet, balance, now)
	if err != nil {
		return fmt.Errorf("account_repo.Seed: %w", err)
	}
	_, err = r.log(ctx, tx, domain.NewLedgerEntry(wallet, balance.Sub(prev), balance, domain.ReasonSeed, nil, now))
	return err
}

func (r *AccountRepository) log(ctx context.Context, tx *sqlx.Tx, e *domain.LedgerEntry) (*domain.LedgerEntry, error) {
	query := `
		INSERT INTO ledger_entries
			(id, wallet, change_amount, balance_after, reason, goal_id, created_at)
		VALUES
			(:id, :wallet, :change_amount, :balance_after, :reason, :goal_id, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, e); err != nil {
		return nil, fmt.Errorf("account_repo.log: %w", err)
	}
	return e, nil
}

// History returns paginated ledger entries for a wallet, newest first.
func (r *AccountRepository) History(ctx context.Context, wallet domain.WalletID, limit, offset int) ([]*domain.LedgerEntry, error) {
	entries := []*domain.LedgerEntry{}
	err := r.db.SelectContext(ctx, &entries, `
		SELECT id, wallet, change_amount, balance_after, reason, goal_id, created_at
		FROM ledger_entries
		WHERE wallet = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`,
		wallet, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("account_repo.History: %w", err)
	}
	return entries, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Membership
// ──────────────────────────────────────────────────────────────────────────────

// MembershipRepository reads circle_members. Membership is managed outside
// the engine; AddMember exists for seeding.
type MembershipRepository struct {
	db *sqlx.DB
}

// NewMembershipRepository creates a new MembershipRepository.
func NewMembershipRepository(db *sqlx.DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

// IsMember reports whether wallet belongs to circleID.
func (r *MembershipRepository) IsMember(ctx context.Context, tx *sqlx.Tx, circleID uuid.UUID, wallet domain.WalletID) (bool, error) {
	var ok bool
	err := tx.GetContext(ctx, &ok,
		`SELECT EXISTS (SELECT 1 FROM circle_members WHERE circle_id = $1 AND wallet = $2)`,
		circleID, wallet)
	if err != nil {
		return false, fmt.Errorf("membership_repo.IsMember: %w", err)
	}
	return ok, nil
}

// Count returns how many wallets belong to circleID right now.
func (r *MembershipRepository) Count(ctx context.Context, tx *sqlx.Tx, circleID uuid.UUID) (int, error) {
	var n int
	if err := tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM circle_members WHERE circle_id = $1`, circleID); err != nil {
		return 0, fmt.Errorf("membership_repo.Count: %w", err)
	}
	return n, nil
}

// AddMember inserts wallet into circleID; a repeat is a no-op.
func (r *MembershipRepository) AddMember(ctx context.Context, circleID uuid.UUID, wallet domain.WalletID) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO circle_members (circle_id, wallet) VALUES ($1, $2)
		ON CONFLICT (circle_id, wallet) DO NOTHING`, circleID, wallet)
	if err != nil {
		return fmt.Errorf("membership_repo.AddMember: %w", err)
	}
	return nil
}
