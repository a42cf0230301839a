package service_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goalstake/engine/internal/domain"
	"github.com/goalstake/engine/internal/service"
)

func TestCreateGoal(t *testing.T) {
	h := newHarness(t)
	g := h.createGoal("50")

	assert.Equal(t, domain.GoalStatusActive, g.Status)
	assert.True(t, g.MaxPool.Equal(d("250")))
	assert.True(t, g.YesPool.IsZero() && g.NoPool.IsZero(), "stake stays outside the pools")
	assert.True(t, h.balance(alice).Equal(d("950")))

	hist, err := h.accounts.History(h.ctx, alice, 10, 0)
	require.NoError(t, err)
	require.NotEmpty(t, hist)
	assert.Equal(t, domain.ReasonGoalStake, hist[0].Reason)
	assert.Equal(t, []string{service.EventGoalCreated}, h.events.names())
}

func TestCreateGoal_DefaultStake(t *testing.T) {
	h := newHarness(t)
	g, err := h.goals.Create(h.ctx, service.CreateGoalRequest{
		CircleID: h.circle, Creator: alice, Title: "Read 12 books",
		Deadline: h.clock.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	assert.True(t, g.StakeAmount.Equal(d("10")))
	assert.True(t, g.MaxPool.Equal(d("50")))
	assert.True(t, h.balance(alice).Equal(d("990")))
}

func TestCreateGoal_Rejections(t *testing.T) {
	h := newHarness(t)
	future := h.clock.Now().Add(time.Hour)
	big := d("5000")
	neg := d("-1")
	subScale := d("1.000000001")

	tests := []struct {
		name string
		req  service.CreateGoalRequest
		want error
	}{
		{"blank title", service.CreateGoalRequest{CircleID: h.circle, Creator: alice, Title: "  ", Deadline: future}, domain.ErrTitleRequired},
		{"past deadline", service.CreateGoalRequest{CircleID: h.circle, Creator: alice, Title: "x", Deadline: h.clock.Now()}, domain.ErrInvalidDeadline},
		{"negative stake", service.CreateGoalRequest{CircleID: h.circle, Creator: alice, Title: "x", Deadline: future, Stake: &neg}, domain.ErrInvalidAmount},
		{"stake beyond 8 decimal places", service.CreateGoalRequest{CircleID: h.circle, Creator: alice, Title: "x", Deadline: future, Stake: &subScale}, domain.ErrInvalidAmount},
		{"outsider", service.CreateGoalRequest{CircleID: h.circle, Creator: eve, Title: "x", Deadline: future}, domain.ErrNotCircleMember},
		{"stake above balance", service.CreateGoalRequest{CircleID: h.circle, Creator: alice, Title: "x", Deadline: future, Stake: &big}, domain.ErrInsufficientBalance},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.goals.Create(h.ctx, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
	assert.True(t, h.balance(alice).Equal(d("1000")), "nothing debited")
}

// stake=50, Bob YES 30, Charlie NO 20: 80 backs success, probability 80 %.
func TestTakePosition_ImpliedProbability(t *testing.T) {
	h := newHarness(t)
	g := h.createGoal("50")

	h.mustTake(g.ID, bob, domain.SideYes, "30")
	receipt, err := h.take(g.ID, charlie, domain.SideNo, "20")
	require.NoError(t, err)

	assert.Equal(t, 80, receipt.Goal.Probability)
	assert.True(t, receipt.Goal.YesPool.Equal(d("30")), "stake stays outside the YES pool")
	assert.True(t, receipt.Goal.NoPool.Equal(d("20")))
	assert.True(t, receipt.Goal.TotalPool.Equal(d("50")))
	assert.True(t, receipt.Goal.RemainingCapacity.Equal(d("200")))
	assert.True(t, h.balance(bob).Equal(d("970")))
	assert.True(t, h.balance(charlie).Equal(d("980")))

	detail, err := h.goals.Get(h.ctx, g.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Positions, 2)
	assert.Equal(t, 80, detail.Probability)
}

func TestTakePosition_Rejections(t *testing.T) {
	h := newHarness(t)
	g := h.createGoal("10") // maxPool 50
	h.mustTake(g.ID, bob, domain.SideYes, "20")

	t.Run("unknown goal", func(t *testing.T) {
		_, err := h.take(uuid.New(), bob, domain.SideYes, "1")
		assert.ErrorIs(t, err, domain.ErrGoalNotFound)
	})
	t.Run("creator", func(t *testing.T) {
		_, err := h.take(g.ID, alice, domain.SideYes, "1")
		assert.ErrorIs(t, err, domain.ErrCreatorCannotBet)
	})
	t.Run("outsider", func(t *testing.T) {
		_, err := h.take(g.ID, eve, domain.SideYes, "1")
		assert.ErrorIs(t, err, domain.ErrNotCircleMember)
	})
	t.Run("zero amount", func(t *testing.T) {
		_, err := h.take(g.ID, charlie, domain.SideYes, "0")
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	})
	t.Run("more than 8 decimal places", func(t *testing.T) {
		_, err := h.take(g.ID, charlie, domain.SideYes, "0.000000001")
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)
		assert.True(t, h.goal(g.ID).YesPool.Equal(d("20")), "pool unchanged")
	})
	t.Run("unknown side", func(t *testing.T) {
		_, err := h.take(g.ID, charlie, domain.Side("maybe"), "1")
		assert.ErrorIs(t, err, domain.ErrInvalidSide)
	})
	t.Run("unknown goal wins over unknown side", func(t *testing.T) {
		_, err := h.take(uuid.New(), charlie, domain.Side("maybe"), "1")
		assert.ErrorIs(t, err, domain.ErrGoalNotFound)
	})
	t.Run("opposite side", func(t *testing.T) {
		_, err := h.take(g.ID, bob, domain.SideNo, "1")
		require.ErrorIs(t, err, domain.ErrSideConflict)
		var re *domain.RuleError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, domain.SideYes, re.ExistingSide)
	})
	t.Run("same side again is fine", func(t *testing.T) {
		h.mustTake(g.ID, bob, domain.SideYes, "5")
	})
	t.Run("over balance", func(t *testing.T) {
		_, err := h.take(g.ID, charlie, domain.SideNo, "1001")
		assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
		assert.Equal(t, domain.KindInsufficientFunds, domain.KindOf(err))
	})
	t.Run("pool cap carries remaining capacity", func(t *testing.T) {
		_, err := h.take(g.ID, charlie, domain.SideNo, "26")
		require.ErrorIs(t, err, domain.ErrPoolCapExceeded)
		var re *domain.RuleError
		require.ErrorAs(t, err, &re)
		assert.True(t, re.Remaining.Equal(d("25")))

		after := h.goal(g.ID)
		assert.True(t, after.NoPool.IsZero(), "pool unchanged")
		assert.True(t, h.balance(charlie).Equal(d("1000")), "balance unchanged")
	})
	t.Run("fills exactly to cap", func(t *testing.T) {
		h.mustTake(g.ID, charlie, domain.SideNo, "25")
		assert.True(t, h.goal(g.ID).TotalPool().Equal(d("50")))
	})
	t.Run("deadline", func(t *testing.T) {
		g2 := h.createGoal("10")
		h.clock.Advance(8 * 24 * time.Hour)
		_, err := h.take(g2.ID, dave, domain.SideYes, "1")
		assert.ErrorIs(t, err, domain.ErrDeadlinePassed)
	})
}

func TestTakePosition_SideIsCaseInsensitive(t *testing.T) {
	h := newHarness(t)
	g := h.createGoal("10")
	receipt, err := h.take(g.ID, bob, domain.Side("yes"), "1")
	require.NoError(t, err)
	assert.Equal(t, domain.SideYes, receipt.Position.Side)
	assert.True(t, receipt.Goal.YesPool.Equal(d("1")))
}

func TestTakePosition_ZeroStakeGoalHasNoCapacity(t *testing.T) {
	h := newHarness(t)
	g := h.createGoal("0")
	_, err := h.take(g.ID, bob, domain.SideYes, "1")
	assert.ErrorIs(t, err, domain.ErrPoolCapExceeded)
}

func TestSubmitProof(t *testing.T) {
	h := newHarness(t)
	g := h.createGoal("10")

	_, err := h.goals.SubmitProof(h.ctx, g.ID, bob, "https://x", "")
	assert.ErrorIs(t, err, domain.ErrNotCreator)

	_, err = h.goals.SubmitProof(h.ctx, g.ID, alice, "", " ")
	assert.ErrorIs(t, err, domain.ErrEmptyProof)

	// Late proof is accepted; only positions care about the deadline.
	h.clock.Advance(30 * 24 * time.Hour)
	out, err := h.goals.SubmitProof(h.ctx, g.ID, alice, "", "photo at the finish line")
	require.NoError(t, err)
	assert.Equal(t, domain.GoalStatusProofSubmitted, out.Status)

	_, err = h.goals.SubmitProof(h.ctx, g.ID, alice, "https://again", "")
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = h.take(g.ID, bob, domain.SideYes, "1")
	assert.ErrorIs(t, err, domain.ErrGoalNotActive)
}

func TestCastVote(t *testing.T) {
	h := newHarness(t)
	g := h.createGoal("10")

	_, err := h.vote(g.ID, bob, true)
	assert.ErrorIs(t, err, domain.ErrProofNotSubmitted)

	h.submitProof(g.ID)

	_, err = h.vote(g.ID, alice, true)
	assert.ErrorIs(t, err, domain.ErrSelfVoteForbidden)
	_, err = h.vote(g.ID, eve, true)
	assert.ErrorIs(t, err, domain.ErrNotCircleMember)

	res, err := h.vote(g.ID, bob, true)
	require.NoError(t, err)
	assert.False(t, res.Resolved)
	assert.Equal(t, 2, res.Quorum)

	// Second vote by the same wallet: rejected, counts untouched.
	_, err = h.vote(g.ID, bob, false)
	assert.ErrorIs(t, err, domain.ErrAlreadyVoted)
	after := h.goal(g.ID)
	assert.Equal(t, 1, after.VerifyYesCount)
	assert.Equal(t, 0, after.VerifyNoCount)

	res, err = h.vote(g.ID, charlie, false)
	require.NoError(t, err)
	assert.True(t, res.Resolved)
	assert.Equal(t, domain.GoalStatusFailed, res.Goal.Status, "tie fails")
	assert.NotNil(t, res.Goal.ResolvedAt)

	_, err = h.vote(g.ID, dave, true)
	assert.ErrorIs(t, err, domain.ErrProofNotSubmitted)

	assert.Contains(t, h.events.names(), service.EventGoalResolved)
}

// Quorum is read at vote time: shrinking the circle lowers it.
func TestCastVote_QuorumUsesCurrentMembership(t *testing.T) {
	h := newHarness(t)
	g := h.createGoal("10")
	h.submitProof(g.ID)

	require.NoError(t, h.store.AddMember(h.ctx, h.circle, eve)) // 5 members, quorum 2
	res, err := h.vote(g.ID, bob, true)
	require.NoError(t, err)
	assert.False(t, res.Resolved)

	require.NoError(t, h.store.RemoveMember(h.ctx, h.circle, eve))
	require.NoError(t, h.store.RemoveMember(h.ctx, h.circle, dave)) // 3 members, quorum 1
	res, err = h.vote(g.ID, charlie, true)
	require.NoError(t, err)
	assert.True(t, res.Resolved)
	assert.Equal(t, 1, res.Quorum)
	assert.Equal(t, domain.GoalStatusAchieved, res.Goal.Status)
}

// Achieved: creator gets 50 + 20 − 0.4 = 69.6; YES gets principal; NO gets 0.
func TestLifecycle_Achieved(t *testing.T) {
	h := newHarness(t)
	g := h.createGoal("50")
	h.mustTake(g.ID, bob, domain.SideYes, "30")
	h.mustTake(g.ID, charlie, domain.SideNo, "20")

	_, err := h.claims.Claim(h.ctx, g.ID, alice)
	assert.ErrorIs(t, err, domain.ErrGoalNotResolved)

	h.submitProof(g.ID)
	_, err = h.vote(g.ID, bob, true)
	require.NoError(t, err)
	res, err := h.vote(g.ID, dave, true)
	require.NoError(t, err)
	require.True(t, res.Resolved)
	require.Equal(t, domain.GoalStatusAchieved, res.Goal.Status)

	preview, err := h.claims.Preview(h.ctx, g.ID, alice)
	require.NoError(t, err)
	assert.True(t, preview.Payout.Equal(d("69.6")))
	assert.False(t, preview.Claimed)

	creator, err := h.claims.Claim(h.ctx, g.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleCreator, creator.Role)
	assert.True(t, creator.Payout.Equal(d("69.6")), "got %s", creator.Payout)
	assert.True(t, creator.Fee.Equal(d("0.4")))

	yes, err := h.claims.Claim(h.ctx, g.ID, bob)
	require.NoError(t, err)
	assert.True(t, yes.Payout.Equal(d("30")))

	no, err := h.claims.Claim(h.ctx, g.ID, charlie)
	require.NoError(t, err)
	assert.True(t, no.Payout.IsZero())

	_, err = h.claims.Claim(h.ctx, g.ID, dave)
	assert.ErrorIs(t, err, domain.ErrNoPosition)

	assert.True(t, h.balance(alice).Equal(d("1019.6")))
	assert.True(t, h.balance(bob).Equal(d("1000")))
	assert.True(t, h.balance(charlie).Equal(d("980")))

	detail, err := h.goals.Get(h.ctx, g.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Claims, 3, "zero payout still records a claim")

	report, err := h.accounts.Treasury(h.ctx)
	require.NoError(t, err)
	assert.True(t, report.TotalFees.Equal(d("0.4")))
	assert.Equal(t, 3, report.ClaimsCount)
}

// Failed: NO holder of 20 against stake 50 + YES 80 collects 147.4.
func TestLifecycle_Failed(t *testing.T) {
	h := newHarness(t)
	g := h.createGoal("50")
	h.mustTake(g.ID, bob, domain.SideYes, "80")
	h.mustTake(g.ID, charlie, domain.SideNo, "20")
	h.submitProof(g.ID)

	_, err := h.vote(g.ID, bob, false)
	require.NoError(t, err)
	res, err := h.vote(g.ID, dave, false)
	require.NoError(t, err)
	require.Equal(t, domain.GoalStatusFailed, res.Goal.Status)

	no, err := h.claims.Claim(h.ctx, g.ID, charlie)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleNo, no.Role)
	assert.True(t, no.Payout.Equal(d("147.4")), "got %s", no.Payout)
	assert.True(t, no.Fee.Equal(d("2.6")))

	for _, w := range []domain.WalletID{alice, bob} {
		r, err := h.claims.Claim(h.ctx, g.ID, w)
		require.NoError(t, err)
		assert.True(t, r.Payout.IsZero())
	}

	// Everything staked is either paid out or retained as fee.
	staked := d("150")
	assert.True(t, no.Payout.Add(no.Fee).Equal(staked))
	assert.True(t, h.balance(charlie).Equal(d("1127.4")))
	assert.True(t, h.balance(alice).Equal(d("950")))
	assert.True(t, h.balance(bob).Equal(d("920")))
}

func TestClaim_IsIdempotent(t *testing.T) {
	h := newHarness(t)
	g := h.createGoal("50")
	h.mustTake(g.ID, charlie, domain.SideNo, "20")
	h.submitProof(g.ID)
	_, err := h.vote(g.ID, bob, true)
	require.NoError(t, err)
	_, err = h.vote(g.ID, dave, true)
	require.NoError(t, err)

	_, err = h.claims.Claim(h.ctx, g.ID, alice)
	require.NoError(t, err)
	balance := h.balance(alice)

	_, err = h.claims.Claim(h.ctx, g.ID, alice)
	assert.ErrorIs(t, err, domain.ErrAlreadyClaimed)
	assert.True(t, h.balance(alice).Equal(balance), "no second credit")

	preview, err := h.claims.Preview(h.ctx, g.ID, alice)
	require.NoError(t, err)
	assert.True(t, preview.Claimed)
}

func TestWalletGoalsAndHistory(t *testing.T) {
	h := newHarness(t)
	g1 := h.createGoal("10")
	h.clock.Advance(time.Minute)
	g2 := h.createGoal("10")
	h.mustTake(g1.ID, bob, domain.SideYes, "5")

	aliceGoals, err := h.goals.ForWallet(h.ctx, alice)
	require.NoError(t, err)
	require.Len(t, aliceGoals.Created, 2)
	assert.Equal(t, g2.ID, aliceGoals.Created[0].ID)
	assert.Empty(t, aliceGoals.Staked)

	bobGoals, err := h.goals.ForWallet(h.ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, bobGoals.Created)
	require.Len(t, bobGoals.Staked, 1)
	assert.Equal(t, g1.ID, bobGoals.Staked[0].ID)

	circleGoals, err := h.goals.ListByCircle(h.ctx, h.circle)
	require.NoError(t, err)
	assert.Len(t, circleGoals, 2)

	hist, err := h.accounts.History(h.ctx, bob, 0, 0)
	require.NoError(t, err)
	require.Len(t, hist, 2) // position + seed
	assert.Equal(t, domain.ReasonPosition, hist[0].Reason)
	assert.True(t, hist[0].BalanceAfter.Equal(d("995")))
}
