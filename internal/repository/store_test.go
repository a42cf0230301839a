package repository

import (
	"context"
	"encoding/hex"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goalstake/engine/internal/config"
	"github.com/goalstake/engine/internal/domain"
)

// openTestStore connects to GOALSTAKE_TEST_DATABASE_DSN or skips. The
// database should be disposable: tests write real rows.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("GOALSTAKE_TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("GOALSTAKE_TEST_DATABASE_DSN not set")
	}
	cfg := config.Defaults().DB
	cfg.DSN = dsn
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := Open(ctx, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// randomWallet keeps runs against a shared database independent.
func randomWallet() domain.WalletID {
	id := uuid.New()
	return domain.MustParseWallet("0x" + hex.EncodeToString(id[:]) + "00000000")
}

func TestStore_MigrationsAreIdempotent(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.RunMigrations(context.Background()))
}

func TestStore_RollbackLeavesNoTrace(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	w := randomWallet()
	require.NoError(t, s.SeedAccount(ctx, w, decimal.NewFromInt(100)))

	boom := errors.New("boom")
	var goalID uuid.UUID
	err := s.InTx(ctx, func(tx domain.GoalTx) error {
		g := domain.NewGoal(uuid.New(), w, "Run", "", "", time.Now().Add(time.Hour),
			decimal.NewFromInt(10), decimal.NewFromInt(5), time.Now())
		goalID = g.ID
		if _, err := tx.Debit(ctx, w, g.StakeAmount, domain.ReasonGoalStake, &g.ID); err != nil {
			return err
		}
		if err := tx.InsertGoal(ctx, g); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.GetGoal(ctx, goalID)
	assert.ErrorIs(t, err, domain.ErrGoalNotFound)
	bal, err := s.Balance(ctx, w)
	require.NoError(t, err)
	assert.True(t, bal.Equal(decimal.NewFromInt(100)))
}

func TestStore_DebitRefusesOverdraft(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	w := randomWallet()
	require.NoError(t, s.SeedAccount(ctx, w, decimal.NewFromInt(5)))

	err := s.InTx(ctx, func(tx domain.GoalTx) error {
		_, err := tx.Debit(ctx, w, decimal.NewFromInt(6), domain.ReasonPosition, nil)
		return err
	})
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)

	var re *domain.RuleError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "5.00", re.Details()["available"])
}

func TestStore_GoalLifecycleRows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	creator, voter := randomWallet(), randomWallet()
	circle := uuid.New()
	require.NoError(t, s.AddMember(ctx, circle, creator))
	require.NoError(t, s.AddMember(ctx, circle, voter))

	g := domain.NewGoal(circle, creator, "Read 12 books", "", "learning", time.Now().Add(time.Hour),
		decimal.NewFromInt(10), decimal.NewFromInt(5), time.Now())
	require.NoError(t, s.InTx(ctx, func(tx domain.GoalTx) error { return tx.InsertGoal(ctx, g) }))

	require.NoError(t, s.InTx(ctx, func(tx domain.GoalTx) error {
		locked, err := tx.LockGoal(ctx, g.ID)
		if err != nil {
			return err
		}
		n, err := tx.MemberCount(ctx, circle)
		if err != nil {
			return err
		}
		assert.Equal(t, 2, n)
		if err := locked.SubmitProof("https://example.com/p.jpg", "done"); err != nil {
			return err
		}
		return tx.UpdateGoal(ctx, locked)
	}))

	vote := &domain.Verification{GoalID: g.ID, Wallet: voter, Approved: true, CreatedAt: time.Now().UTC()}
	require.NoError(t, s.InTx(ctx, func(tx domain.GoalTx) error { return tx.InsertVerification(ctx, vote) }))
	err := s.InTx(ctx, func(tx domain.GoalTx) error { return tx.InsertVerification(ctx, vote) })
	assert.ErrorIs(t, err, domain.ErrAlreadyVoted)

	got, err := s.GetGoal(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.GoalStatusProofSubmitted, got.Status)
	assert.Equal(t, "done", got.ProofDescription)

	created, err := s.ListGoalsByCreator(ctx, creator)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, g.ID, created[0].ID)
}
