package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/goalstake/engine/internal/domain"
	"github.com/goalstake/engine/internal/lock"
	"github.com/goalstake/engine/internal/memstore"
	"github.com/goalstake/engine/internal/service"
)

var (
	alice   = domain.MustParseWallet("0x00000000000000000000000000000000000a11ce")
	bob     = domain.MustParseWallet("0x0000000000000000000000000000000000000b0b")
	charlie = domain.MustParseWallet("0x00000000000000000000000000000000000c4a71")
	dave    = domain.MustParseWallet("0x0000000000000000000000000000000000000da7")
	eve     = domain.MustParseWallet("0x00000000000000000000000000000000000000e7")
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// fakeClock is a settable clock shared by the store and the services.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(dur time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(dur)
	c.mu.Unlock()
}

type recordedEvent struct {
	name string
	goal domain.GoalView
}

type recorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recorder) BroadcastGoalEvent(event string, g domain.GoalView) {
	r.mu.Lock()
	r.events = append(r.events, recordedEvent{event, g})
	r.mu.Unlock()
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.name)
	}
	return out
}

type harness struct {
	t        *testing.T
	ctx      context.Context
	store    *memstore.Store
	clock    *fakeClock
	circle   uuid.UUID
	events   *recorder
	goals    *service.GoalService
	pos      *service.PositionService
	votes    *service.VerificationService
	claims   *service.ClaimService
	accounts *service.AccountService
}

// newHarness builds a circle of alice, bob, charlie and dave (quorum 2), each
// funded with 1000. eve is funded but not a member.
func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := memstore.New()
	store.SetClock(clock.Now)

	circle := uuid.New()
	for _, w := range []domain.WalletID{alice, bob, charlie, dave, eve} {
		require.NoError(t, store.SeedAccount(ctx, w, d("1000")))
	}
	for _, w := range []domain.WalletID{alice, bob, charlie, dave} {
		require.NoError(t, store.AddMember(ctx, circle, w))
	}

	deps := service.Deps{
		Store:    store,
		Locker:   lock.NewKeyedMutex(),
		Settings: service.DefaultSettings(),
		Clock:    clock.Now,
	}
	h := &harness{
		t:        t,
		ctx:      ctx,
		store:    store,
		clock:    clock,
		circle:   circle,
		events:   &recorder{},
		goals:    service.NewGoalService(deps),
		pos:      service.NewPositionService(deps),
		votes:    service.NewVerificationService(deps),
		claims:   service.NewClaimService(deps),
		accounts: service.NewAccountService(deps),
	}
	h.goals.SetBroadcaster(h.events)
	h.pos.SetBroadcaster(h.events)
	h.votes.SetBroadcaster(h.events)
	h.claims.SetBroadcaster(h.events)
	return h
}

func (h *harness) createGoal(stake string) *domain.Goal {
	h.t.Helper()
	s := d(stake)
	g, err := h.goals.Create(h.ctx, service.CreateGoalRequest{
		CircleID: h.circle,
		Creator:  alice,
		Title:    "Run a half marathon",
		Deadline: h.clock.Now().Add(7 * 24 * time.Hour),
		Stake:    &s,
	})
	require.NoError(h.t, err)
	return g
}

func (h *harness) take(goalID uuid.UUID, w domain.WalletID, side domain.Side, amount string) (*service.PositionReceipt, error) {
	return h.pos.Take(h.ctx, service.TakePositionRequest{GoalID: goalID, Wallet: w, Side: side, Amount: d(amount)})
}

func (h *harness) mustTake(goalID uuid.UUID, w domain.WalletID, side domain.Side, amount string) {
	h.t.Helper()
	_, err := h.take(goalID, w, side, amount)
	require.NoError(h.t, err)
}

func (h *harness) vote(goalID uuid.UUID, w domain.WalletID, approved bool) (*service.VoteResult, error) {
	return h.votes.Cast(h.ctx, service.CastVoteRequest{GoalID: goalID, Wallet: w, Approved: approved})
}

func (h *harness) submitProof(goalID uuid.UUID) {
	h.t.Helper()
	_, err := h.goals.SubmitProof(h.ctx, goalID, alice, "https://strava.example/activity/1", "")
	require.NoError(h.t, err)
}

func (h *harness) balance(w domain.WalletID) decimal.Decimal {
	h.t.Helper()
	b, err := h.accounts.Balance(h.ctx, w)
	require.NoError(h.t, err)
	return b
}

func (h *harness) goal(id uuid.UUID) *domain.Goal {
	h.t.Helper()
	g, err := h.store.GetGoal(h.ctx, id)
	require.NoError(h.t, err)
	return g
}
