// Package memstore is an in-process implementation of domain.Store. It keeps
// the same transactional contract as the Postgres store: InTx works on a
// private copy of the state and publishes it only when fn succeeds.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/goalstake/engine/internal/domain"
)

type claimKey struct {
	goal   uuid.UUID
	wallet domain.WalletID
}

type state struct {
	goals         map[uuid.UUID]*domain.Goal
	positions     map[uuid.UUID][]*domain.Position
	verifications map[uuid.UUID][]*domain.Verification
	claims        map[claimKey]*domain.Claim
	fees          []*domain.FeeEntry
	accounts      map[domain.WalletID]*domain.Account
	history       []*domain.LedgerEntry
	members       map[uuid.UUID]map[domain.WalletID]struct{}
}

func newState() *state {
	return &state{
		goals:         make(map[uuid.UUID]*domain.Goal),
		positions:     make(map[uuid.UUID][]*domain.Position),
		verifications: make(map[uuid.UUID][]*domain.Verification),
		claims:        make(map[claimKey]*domain.Claim),
		accounts:      make(map[domain.WalletID]*domain.Account),
		members:       make(map[uuid.UUID]map[domain.WalletID]struct{}),
	}
}

// clone copies everything mutable. Positions, verifications, claims, fees and
// ledger entries are never modified after insert, so their pointers are shared.
func (s *state) clone() *state {
	c := newState()
	for id, g := range s.goals {
		c.goals[id] = g.Clone()
	}
	for id, ps := range s.positions {
		c.positions[id] = append([]*domain.Position(nil), ps...)
	}
	for id, vs := range s.verifications {
		c.verifications[id] = append([]*domain.Verification(nil), vs...)
	}
	for k, cl := range s.claims {
		c.claims[k] = cl
	}
	c.fees = append(c.fees, s.fees...)
	for w, a := range s.accounts {
		cp := *a
		c.accounts[w] = &cp
	}
	c.history = append(c.history, s.history...)
	for id, ms := range s.members {
		cm := make(map[domain.WalletID]struct{}, len(ms))
		for w := range ms {
			cm[w] = struct{}{}
		}
		c.members[id] = cm
	}
	return c
}

// Store is safe for concurrent use. Writers are serialised; readers see the
// last committed state.
type Store struct {
	writeMu sync.Mutex
	mu      sync.RWMutex
	st      *state
	now     func() time.Time
}

func New() *Store {
	return &Store{st: newState(), now: time.Now}
}

// SetClock overrides the timestamp source.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

func (s *Store) snapshot() *state {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st
}

// InTx runs fn against a private copy and commits it when fn returns nil.
func (s *Store) InTx(ctx context.Context, fn func(tx domain.GoalTx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.snapshot().clone()
	if err := fn(&tx{st: work, now: s.now}); err != nil {
		return err
	}

	s.mu.Lock()
	s.st = work
	s.mu.Unlock()
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Seeding
// ──────────────────────────────────────────────────────────────────────────────

// SeedAccount sets wallet's balance, creating the account if needed.
func (s *Store) SeedAccount(ctx context.Context, wallet domain.WalletID, balance decimal.Decimal) error {
	return s.InTx(ctx, func(t domain.GoalTx) error {
		tt := t.(*tx)
		now := tt.now().UTC()
		prev := decimal.Zero
		if a, ok := tt.st.accounts[wallet]; ok {
			prev = a.Balance
		}
		tt.st.accounts[wallet] = &domain.Account{Wallet: wallet, Balance: balance, UpdatedAt: now}
		tt.st.history = append(tt.st.history,
			domain.NewLedgerEntry(wallet, balance.Sub(prev), balance, domain.ReasonSeed, nil, now))
		return nil
	})
}

// AddMember puts wallet in circleID.
func (s *Store) AddMember(ctx context.Context, circleID uuid.UUID, wallet domain.WalletID) error {
	return s.InTx(ctx, func(t domain.GoalTx) error {
		st := t.(*tx).st
		if st.members[circleID] == nil {
			st.members[circleID] = make(map[domain.WalletID]struct{})
		}
		st.members[circleID][wallet] = struct{}{}
		return nil
	})
}

// RemoveMember takes wallet out of circleID.
func (s *Store) RemoveMember(ctx context.Context, circleID uuid.UUID, wallet domain.WalletID) error {
	return s.InTx(ctx, func(t domain.GoalTx) error {
		delete(t.(*tx).st.members[circleID], wallet)
		return nil
	})
}

// ──────────────────────────────────────────────────────────────────────────────
// Reads
// ──────────────────────────────────────────────────────────────────────────────

func (s *Store) GetGoal(_ context.Context, id uuid.UUID) (*domain.Goal, error) {
	g, ok := s.snapshot().goals[id]
	if !ok {
		return nil, domain.ErrGoalNotFound
	}
	return g.Clone(), nil
}

func (s *Store) ListGoalsByCircle(_ context.Context, circleID uuid.UUID) ([]*domain.Goal, error) {
	return s.filterGoals(func(st *state, g *domain.Goal) bool { return g.CircleID == circleID }), nil
}

func (s *Store) ListGoalsByCreator(_ context.Context, wallet domain.WalletID) ([]*domain.Goal, error) {
	return s.filterGoals(func(st *state, g *domain.Goal) bool { return g.CreatorID == wallet }), nil
}

func (s *Store) ListGoalsStakedBy(_ context.Context, wallet domain.WalletID) ([]*domain.Goal, error) {
	return s.filterGoals(func(st *state, g *domain.Goal) bool {
		return g.CreatorID != wallet && domain.HeldSide(st.positions[g.ID], wallet) != ""
	}), nil
}

func (s *Store) filterGoals(keep func(*state, *domain.Goal) bool) []*domain.Goal {
	st := s.snapshot()
	out := []*domain.Goal{}
	for _, g := range st.goals {
		if keep(st, g) {
			out = append(out, g.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *Store) ListPositions(_ context.Context, goalID uuid.UUID) ([]*domain.Position, error) {
	return append([]*domain.Position{}, s.snapshot().positions[goalID]...), nil
}

func (s *Store) ListVerifications(_ context.Context, goalID uuid.UUID) ([]*domain.Verification, error) {
	return append([]*domain.Verification{}, s.snapshot().verifications[goalID]...), nil
}

func (s *Store) ListClaims(_ context.Context, goalID uuid.UUID) ([]*domain.Claim, error) {
	out := []*domain.Claim{}
	for k, c := range s.snapshot().claims {
		if k.goal == goalID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClaimedAt.Before(out[j].ClaimedAt) })
	return out, nil
}

func (s *Store) Treasury(_ context.Context) (*domain.TreasuryReport, error) {
	st := s.snapshot()
	r := &domain.TreasuryReport{TotalFees: decimal.Zero, TotalPaid: decimal.Zero}
	for _, f := range st.fees {
		r.TotalFees = r.TotalFees.Add(f.Amount)
		r.FeeEntries++
	}
	for _, c := range st.claims {
		r.TotalPaid = r.TotalPaid.Add(c.Payout)
		r.ClaimsCount++
	}
	return r, nil
}

func (s *Store) Balance(_ context.Context, wallet domain.WalletID) (decimal.Decimal, error) {
	a, ok := s.snapshot().accounts[wallet]
	if !ok {
		return decimal.Zero, domain.ErrAccountNotFound
	}
	return a.Balance, nil
}

// History returns wallet's ledger entries newest first.
func (s *Store) History(_ context.Context, wallet domain.WalletID, limit, offset int) ([]*domain.LedgerEntry, error) {
	st := s.snapshot()
	out := []*domain.LedgerEntry{}
	for i := len(st.history) - 1; i >= 0; i-- {
		if st.history[i].Wallet == wallet {
			out = append(out, st.history[i])
		}
	}
	if offset >= len(out) {
		return []*domain.LedgerEntry{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

var _ domain.Store = (*Store)(nil)
