// Package repository is the PostgreSQL implementation of domain.Store, built
// on sqlx and lib/pq.
package repository

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/goalstake/engine/internal/config"
	"github.com/goalstake/engine/internal/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store ties the repositories together behind domain.Store.
type Store struct {
	db      *sqlx.DB
	log     *zap.Logger
	retries int
	now     func() time.Time

	Goals         *GoalRepository
	Positions     *PositionRepository
	Verifications *VerificationRepository
	Claims        *ClaimRepository
	Accounts      *AccountRepository
	Members       *MembershipRepository
}

// NewStore wraps an open connection pool.
func NewStore(db *sqlx.DB, txRetries int, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		db:            db,
		log:           log,
		retries:       txRetries,
		now:           time.Now,
		Goals:         NewGoalRepository(db),
		Positions:     NewPositionRepository(db),
		Verifications: NewVerificationRepository(db),
		Claims:        NewClaimRepository(db),
		Accounts:      NewAccountRepository(db),
		Members:       NewMembershipRepository(db),
	}
}

// Open connects, pings and optionally migrates.
func Open(ctx context.Context, cfg config.DBConfig, log *zap.Logger) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("repository.Open: connect: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	s := NewStore(db, cfg.TxRetries, log)
	if cfg.RunMigrations {
		if err := s.RunMigrations(ctx); err != nil {
			db.Close()
			return nil, err
		}
	}
	return s, nil
}

// DB exposes the pool for health checks.
func (s *Store) DB() *sqlx.DB { return s.db }

// Close releases the pool.
func (s *Store) Close() error { return s.db.Close() }

// SetClock overrides the timestamp source for ledger rows.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// RunMigrations applies embedded SQL files in name order, skipping those
// already recorded in schema_migrations.
func (s *Store) RunMigrations(ctx context.Context) error {
	const createTracker = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename   TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`
	if _, err := s.db.ExecContext(ctx, createTracker); err != nil {
		return fmt.Errorf("repository.RunMigrations: tracker: %w", err)
	}

	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("repository.RunMigrations: read dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		var applied bool
		err := s.db.GetContext(ctx, &applied,
			`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE filename = $1)`, name)
		if err != nil {
			return fmt.Errorf("repository.RunMigrations: check %s: %w", name, err)
		}
		if applied {
			continue
		}
		body, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("repository.RunMigrations: read %s: %w", name, err)
		}

		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("repository.RunMigrations: begin: %w", err)
		}
		if _, err := tx.ExecContext(ctx, string(body)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("repository.RunMigrations: exec %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (filename) VALUES ($1)`, name); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("repository.RunMigrations: record %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("repository.RunMigrations: commit %s: %w", name, err)
		}
		s.log.Info("migration applied", zap.String("file", name))
	}
	return nil
}

// InTx runs fn inside a READ COMMITTED transaction. Serialization failures,
// deadlocks and lock timeouts re-run fn from scratch up to the configured
// number of retries; after that the caller gets domain.ErrUnavailable.
func (s *Store) InTx(ctx context.Context, fn func(tx domain.GoalTx) error) error {
	var lastErr error
	for attempt := 0; attempt <= s.retries; attempt++ {
		err := s.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		lastErr = err
		s.log.Warn("transaction conflict, retrying",
			zap.Int("attempt", attempt+1), zap.Error(err))
		if ctx.Err() != nil {
			break
		}
	}
	return fmt.Errorf("repository.InTx: %w: %v", domain.ErrUnavailable, lastErr)
}

func (s *Store) runOnce(ctx context.Context, fn func(tx domain.GoalTx) error) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("repository.InTx: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(&txScope{s: s, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("repository.InTx: commit: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Seeding
// ──────────────────────────────────────────────────────────────────────────────

// SeedAccount sets wallet's balance outright.
func (s *Store) SeedAccount(ctx context.Context, wallet domain.WalletID, balance decimal.Decimal) error {
	return s.InTx(ctx, func(t domain.GoalTx) error {
		return s.Accounts.Seed(ctx, t.(*txScope).tx, wallet, balance, s.now().UTC())
	})
}

// AddMember puts wallet in circleID.
func (s *Store) AddMember(ctx context.Context, circleID uuid.UUID, wallet domain.WalletID) error {
	return s.Members.AddMember(ctx, circleID, wallet)
}

// ──────────────────────────────────────────────────────────────────────────────
// Reads
// ──────────────────────────────────────────────────────────────────────────────

func (s *Store) GetGoal(ctx context.Context, id uuid.UUID) (*domain.Goal, error) {
	return s.Goals.GetByID(ctx, id)
}

func (s *Store) ListGoalsByCircle(ctx context.Context, circleID uuid.UUID) ([]*domain.Goal, error) {
	return s.Goals.ListByCircle(ctx, circleID)
}

func (s *Store) ListGoalsByCreator(ctx context.Context, wallet domain.WalletID) ([]*domain.Goal, error) {
	return s.Goals.ListByCreator(ctx, wallet)
}

func (s *Store) ListGoalsStakedBy(ctx context.Context, wallet domain.WalletID) ([]*domain.Goal, error) {
	return s.Goals.ListStakedBy(ctx, wallet)
}

func (s *Store) ListPositions(ctx context.Context, goalID uuid.UUID) ([]*domain.Position, error) {
	return s.Positions.GetByGoal(ctx, goalID)
}

func (s *Store) ListVerifications(ctx context.Context, goalID uuid.UUID) ([]*domain.Verification, error) {
	return s.Verifications.GetByGoal(ctx, goalID)
}

func (s *Store) ListClaims(ctx context.Context, goalID uuid.UUID) ([]*domain.Claim, error) {
	return s.Claims.GetByGoal(ctx, goalID)
}

func (s *Store) Treasury(ctx context.Context) (*domain.TreasuryReport, error) {
	return s.Claims.Treasury(ctx)
}

func (s *Store) Balance(ctx context.Context, wallet domain.WalletID) (decimal.Decimal, error) {
	return s.Accounts.GetBalance(ctx, wallet)
}

func (s *Store) History(ctx context.Context, wallet domain.WalletID, limit, offset int) ([]*domain.LedgerEntry, error) {
	return s.Accounts.History(ctx, wallet, limit, offset)
}

var _ domain.Store = (*Store)(nil)
