// Package lock provides the per-goal critical section. Every mutating goal
// operation holds the goal's lock for the length of its storage transaction,
// so operations on one goal serialise while different goals run in parallel.
package lock

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrLockHeld is returned by a single acquisition attempt when another holder
// owns the key.
var ErrLockHeld = errors.New("lock: key is held by another owner")

// Locker hands out exclusive ownership of a key. The returned unlock func is
// safe to call more than once.
type Locker interface {
	Acquire(ctx context.Context, key string) (unlock func(), err error)
}

// GoalKey is the lock key for a goal.
func GoalKey(id uuid.UUID) string {
	return "goal:" + id.String()
}

// ──────────────────────────────────────────────────────────────────────────────
// In-process keyed mutex
// ──────────────────────────────────────────────────────────────────────────────

type keyEntry struct {
	slot chan struct{}
	refs int
}

// KeyedMutex is a Locker for a single process. Entries are dropped once no
// goroutine holds or waits on them.
type KeyedMutex struct {
	mu   sync.Mutex
	keys map[string]*keyEntry
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{keys: make(map[string]*keyEntry)}
}

func (m *KeyedMutex) Acquire(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	e, ok := m.keys[key]
	if !ok {
		e = &keyEntry{slot: make(chan struct{}, 1)}
		m.keys[key] = e
	}
	e.refs++
	m.mu.Unlock()

	select {
	case e.slot <- struct{}{}:
	case <-ctx.Done():
		m.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.slot
			m.release(key, e)
		})
	}, nil
}

func (m *KeyedMutex) release(key string, e *keyEntry) {
	m.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(m.keys, key)
	}
	m.mu.Unlock()
}

// Len reports how many keys are currently tracked.
func (m *KeyedMutex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.keys)
}

var _ Locker = (*KeyedMutex)(nil)
