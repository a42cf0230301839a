package service_test

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/goalstake/engine/internal/domain"
)

// TestConcurrentPositionsRespectCap fires more stake at one goal than its cap
// allows. Exactly the positions that fit are accepted and the pools equal
// the sum of accepted positions.
func TestConcurrentPositionsRespectCap(t *testing.T) {
	h := newHarness(t)
	g := h.createGoal("20") // maxPool 100

	const workers = 40 // 40 × 5 = 200 offered against a cap of 100
	bettors := []domain.WalletID{bob, charlie, dave}
	sides := map[domain.WalletID]domain.Side{bob: domain.SideYes, charlie: domain.SideNo, dave: domain.SideYes}

	var accepted, capped int64
	var eg errgroup.Group
	for i := 0; i < workers; i++ {
		w := bettors[i%len(bettors)]
		eg.Go(func() error {
			_, err := h.take(g.ID, w, sides[w], "5")
			switch {
			case err == nil:
				atomic.AddInt64(&accepted, 1)
			case errors.Is(err, domain.ErrPoolCapExceeded):
				atomic.AddInt64(&capped, 1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, eg.Wait())

	assert.EqualValues(t, 20, accepted)
	assert.EqualValues(t, workers-20, capped)

	after := h.goal(g.ID)
	assert.True(t, after.TotalPool().Equal(d("100")))

	positions, err := h.store.ListPositions(h.ctx, g.ID)
	require.NoError(t, err)
	yes, no := decimal.Zero, decimal.Zero
	for _, p := range positions {
		if p.Side == domain.SideYes {
			yes = yes.Add(p.Amount)
		} else {
			no = no.Add(p.Amount)
		}
	}
	assert.True(t, after.YesPool.Equal(yes), "yesPool %s != positions %s", after.YesPool, yes)
	assert.True(t, after.NoPool.Equal(no), "noPool %s != positions %s", after.NoPool, no)

	spent := d("3000").Sub(h.balance(bob)).Sub(h.balance(charlie)).Sub(h.balance(dave))
	assert.True(t, spent.Equal(d("100")), "debits match accepted stake: %s", spent)
}

// TestConcurrentOppositeSides has one wallet race YES against NO. Whichever
// lands first wins; the wallet never ends up on both sides.
func TestConcurrentOppositeSides(t *testing.T) {
	h := newHarness(t)
	g := h.createGoal("100")

	var eg errgroup.Group
	for i := 0; i < 20; i++ {
		side := domain.SideYes
		if i%2 == 1 {
			side = domain.SideNo
		}
		eg.Go(func() error {
			_, err := h.take(g.ID, bob, side, "1")
			if err != nil && !errors.Is(err, domain.ErrSideConflict) {
				return err
			}
			return nil
		})
	}
	require.NoError(t, eg.Wait())

	positions, err := h.store.ListPositions(h.ctx, g.ID)
	require.NoError(t, err)
	require.NotEmpty(t, positions)
	first := positions[0].Side
	for _, p := range positions {
		assert.Equal(t, first, p.Side)
	}
	assert.Len(t, positions, 10)
}

// TestConcurrentClaims races the same claim many times: one credit, the rest
// AlreadyClaimed.
func TestConcurrentClaims(t *testing.T) {
	h := newHarness(t)
	g := h.createGoal("50")
	h.mustTake(g.ID, bob, domain.SideYes, "80")
	h.mustTake(g.ID, charlie, domain.SideNo, "20")
	h.submitProof(g.ID)
	_, err := h.vote(g.ID, bob, false)
	require.NoError(t, err)
	_, err = h.vote(g.ID, dave, false)
	require.NoError(t, err)

	var wins, dupes int64
	var eg errgroup.Group
	for i := 0; i < 25; i++ {
		eg.Go(func() error {
			_, err := h.claims.Claim(h.ctx, g.ID, charlie)
			switch {
			case err == nil:
				atomic.AddInt64(&wins, 1)
			case errors.Is(err, domain.ErrAlreadyClaimed):
				atomic.AddInt64(&dupes, 1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, eg.Wait())

	assert.EqualValues(t, 1, wins)
	assert.EqualValues(t, 24, dupes)
	assert.True(t, h.balance(charlie).Equal(d("1127.4")))
}

// TestConcurrentVotesResolveOnce lets every voter vote at once. The goal
// resolves exactly once and later votes see a resolved goal.
func TestConcurrentVotesResolveOnce(t *testing.T) {
	h := newHarness(t)
	g := h.createGoal("10")
	h.submitProof(g.ID)

	var resolvedCount int64
	var eg errgroup.Group
	for _, w := range []domain.WalletID{bob, charlie, dave} {
		w := w
		eg.Go(func() error {
			res, err := h.vote(g.ID, w, true)
			if errors.Is(err, domain.ErrProofNotSubmitted) {
				return nil
			}
			if err != nil {
				return err
			}
			if res.Resolved {
				atomic.AddInt64(&resolvedCount, 1)
			}
			return nil
		})
	}
	require.NoError(t, eg.Wait())

	assert.EqualValues(t, 1, resolvedCount)
	after := h.goal(g.ID)
	assert.Equal(t, domain.GoalStatusAchieved, after.Status)
	assert.Equal(t, 2, after.VerifyYesCount, "the third vote lands after resolution")
}

// TestParallelGoalsDoNotInterfere runs independent goals side by side.
func TestParallelGoalsDoNotInterfere(t *testing.T) {
	h := newHarness(t)
	goals := make([]*domain.Goal, 5)
	for i := range goals {
		goals[i] = h.createGoal("10")
	}

	var eg errgroup.Group
	for _, g := range goals {
		g := g
		eg.Go(func() error {
			_, err := h.take(g.ID, bob, domain.SideYes, "3")
			return err
		})
		eg.Go(func() error {
			_, err := h.take(g.ID, charlie, domain.SideNo, "2")
			return err
		})
	}
	require.NoError(t, eg.Wait())

	for _, g := range goals {
		after := h.goal(g.ID)
		assert.True(t, after.YesPool.Equal(d("3")))
		assert.True(t, after.NoPool.Equal(d("2")))
	}
	assert.True(t, h.balance(bob).Equal(d("985")))
}
