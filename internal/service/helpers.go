package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/goalstake/engine/internal/config"
	"github.com/goalstake/engine/internal/domain"
	"github.com/goalstake/engine/internal/lock"
)

// ──────────────────────────────────────────────────────────────────────────────
// Shared wiring
// ──────────────────────────────────────────────────────────────────────────────

// Broadcaster is the minimal interface the services need from the WS hub.
// Implemented by ws.Hub.
type Broadcaster interface {
	BroadcastGoalEvent(event string, goal domain.GoalView)
}

// Event names pushed to subscribers after a commit.
const (
	EventGoalCreated    = "goal_created"
	EventPositionTaken  = "position_taken"
	EventProofSubmitted = "proof_submitted"
	EventVoteCast       = "vote_cast"
	EventGoalResolved   = "goal_resolved"
	EventPayoutClaimed  = "payout_claimed"
)

// Settings are the economic parameters shared by every service.
type Settings struct {
	FeeRate        decimal.Decimal
	PoolMultiplier decimal.Decimal
	DefaultStake   decimal.Decimal
}

// DefaultSettings: 2 % fee, ×5 pool cap, 10-token default stake.
func DefaultSettings() Settings {
	return Settings{
		FeeRate:        domain.DefaultFeeRate,
		PoolMultiplier: domain.DefaultPoolMultiplier,
		DefaultStake:   decimal.NewFromInt(10),
	}
}

// SettingsFromConfig reads the [settlement] section.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		FeeRate:        cfg.FeeRate(),
		PoolMultiplier: cfg.PoolMultiplier(),
		DefaultStake:   cfg.DefaultStake(),
	}
}

// Deps is everything a service needs. Logger and Clock may be nil.
type Deps struct {
	Store    domain.Store
	Locker   lock.Locker
	Settings Settings
	Logger   *zap.Logger
	Clock    func() time.Time
}

type core struct {
	store       domain.Store
	locker      lock.Locker
	settings    Settings
	log         *zap.Logger
	now         func() time.Time
	broadcaster Broadcaster
}

func newCore(d Deps, name string) core {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	clock := d.Clock
	if clock == nil {
		clock = time.Now
	}
	return core{
		store:    d.Store,
		locker:   d.Locker,
		settings: d.Settings,
		log:      log.Named(name),
		now:      func() time.Time { return clock().UTC() },
	}
}

// SetBroadcaster injects the WS Hub dependency post-construction.
func (c *core) SetBroadcaster(b Broadcaster) { c.broadcaster = b }

// withGoal is the per-goal critical section: hold the goal's lock, open one
// transaction, row-lock the goal, run fn. Any error rolls everything back.
func (c *core) withGoal(ctx context.Context, goalID uuid.UUID, fn func(tx domain.GoalTx, g *domain.Goal) error) error {
	unlock, err := c.locker.Acquire(ctx, lock.GoalKey(goalID))
	if err != nil {
		return fmt.Errorf("acquire goal lock: %w", err)
	}
	defer unlock()

	return c.store.InTx(ctx, func(tx domain.GoalTx) error {
		g, err := tx.LockGoal(ctx, goalID)
		if err != nil {
			return err
		}
		return fn(tx, g)
	})
}

func (c *core) requireMember(ctx context.Context, tx domain.GoalTx, circleID uuid.UUID, wallet domain.WalletID) error {
	ok, err := tx.IsMember(ctx, circleID, wallet)
	if err != nil {
		return fmt.Errorf("membership lookup: %w", err)
	}
	if !ok {
		return domain.ErrNotCircleMember
	}
	return nil
}

// requireFunds checks the balance up front so the rejection carries the
// available amount even when the account has never been funded.
func (c *core) requireFunds(ctx context.Context, tx domain.GoalTx, wallet domain.WalletID, amount decimal.Decimal) error {
	bal, err := tx.Balance(ctx, wallet)
	if err != nil {
		if domain.IsNotFound(err) {
			return domain.InsufficientBalance(decimal.Zero, amount)
		}
		return fmt.Errorf("balance lookup: %w", err)
	}
	if bal.LessThan(amount) {
		return domain.InsufficientBalance(bal, amount)
	}
	return nil
}

func (c *core) publish(event string, g *domain.Goal) {
	if c.broadcaster != nil && g != nil {
		c.broadcaster.BroadcastGoalEvent(event, g.View())
	}
}

// logRejected records business-rule rejections quietly and anything else loudly.
func (c *core) logRejected(op string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	if domain.KindOf(err) == domain.KindInternal {
		c.log.Error(op+" failed", fields...)
		return
	}
	c.log.Debug(op+" rejected", append(fields, zap.String("kind", string(domain.KindOf(err))))...)
}
