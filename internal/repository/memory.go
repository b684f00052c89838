package repository

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"folio/internal/calendar"
	"folio/internal/money"
	"folio/types"

	"github.com/shopspring/decimal"
)

// ===== In-memory store =====

type memoryLedger struct {
	user         types.User
	cash         decimal.Decimal
	positions    map[string]types.Position
	allocation   *types.Allocation
	transactions []memoryTransaction
	ops          map[string]int // op_id -> index into transactions
	snapshots    map[calendar.Date]types.Snapshot
}

type memoryTransaction struct {
	tx     types.Transaction
	result []byte
}

func newMemoryLedger(u types.User) *memoryLedger {
	return &memoryLedger{
		user:      u,
		positions: make(map[string]types.Position),
		ops:       make(map[string]int),
		snapshots: make(map[calendar.Date]types.Snapshot),
	}
}

// clone copies everything a transaction may change. Transactions are
// append-only so the slice header copy is enough.
func (l *memoryLedger) clone() *memoryLedger {
	c := *l
	c.positions = maps.Clone(l.positions)
	c.ops = maps.Clone(l.ops)
	c.snapshots = maps.Clone(l.snapshots)
	c.transactions = slices.Clip(l.transactions)
	if l.allocation != nil {
		a := *l.allocation
		c.allocation = &a
	}
	return &c
}

type memoryUser struct {
	mu     sync.RWMutex
	ledger *memoryLedger
}

// Memory keeps every ledger in process. A mutation works on a copy that only
// replaces the user's ledger when fn succeeds.
type Memory struct {
	mu    sync.RWMutex
	users map[int64]*memoryUser
}

func NewMemory() *Memory {
	return &Memory{users: make(map[int64]*memoryUser)}
}

func (m *Memory) user(id int64, create bool) *memoryUser {
	m.mu.RLock()
	u, ok := m.users[id]
	m.mu.RUnlock()
	if ok || !create {
		return u
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok = m.users[id]; !ok {
		u = &memoryUser{ledger: newMemoryLedger(newUser(id, time.Now()))}
		m.users[id] = u
	}
	return u
}

func (m *Memory) Update(ctx context.Context, userID int64, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	u := m.user(userID, true)
	u.mu.Lock()
	defer u.mu.Unlock()
	work := u.ledger.clone()
	if err := fn(&memoryTx{l: work, userID: userID}); err != nil {
		return err
	}
	u.ledger = work
	return nil
}

func (m *Memory) View(ctx context.Context, userID int64, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	u := m.user(userID, false)
	if u == nil {
		// Reads of an unknown user see an empty ledger without creating one.
		l := newMemoryLedger(types.User{})
		return fn(&memoryTx{l: l, missing: true, userID: userID})
	}
	u.mu.RLock()
	defer u.mu.RUnlock()
	return fn(&memoryTx{l: u.ledger.clone(), userID: userID})
}

func (m *Memory) EnsureUser(_ context.Context, profile types.User) (types.User, error) {
	u := m.user(profile.ID, true)
	u.mu.Lock()
	defer u.mu.Unlock()
	created := u.ledger.user.CreatedAt
	profile.Active = true
	profile.CreatedAt = created
	u.ledger.user = profile
	return profile, nil
}

func (m *Memory) DeactivateUser(_ context.Context, userID int64) error {
	u := m.user(userID, false)
	if u == nil {
		return fmt.Errorf("user %d: %w", userID, ErrNotFound)
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.ledger.user.Active = false
	return nil
}

func (m *Memory) ActiveUsers(context.Context) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []int64
	for id, u := range m.users {
		u.mu.RLock()
		if u.ledger.user.Active {
			ids = append(ids, id)
		}
		u.mu.RUnlock()
	}
	slices.Sort(ids)
	return ids, nil
}

func (m *Memory) SnapshotCount(_ context.Context, on calendar.Date) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, u := range m.users {
		u.mu.RLock()
		if _, ok := u.ledger.snapshots[on]; ok && u.ledger.user.Active {
			n++
		}
		u.mu.RUnlock()
	}
	return n, nil
}

func (m *Memory) Migrate(context.Context) error { return nil }

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }

type memoryTx struct {
	l       *memoryLedger
	missing bool
	userID  int64
}

func (t *memoryTx) User() (types.User, error) {
	if t.missing {
		return types.User{}, fmt.Errorf("user %d: %w", t.userID, ErrNotFound)
	}
	return t.l.user, nil
}

func (t *memoryTx) Position(symbol string) (types.Position, error) {
	p, ok := t.l.positions[symbol]
	if !ok {
		return types.Position{}, fmt.Errorf("position %s: %w", symbol, ErrNotFound)
	}
	return p, nil
}

func (t *memoryTx) Positions() ([]types.Position, error) {
	out := make([]types.Position, 0, len(t.l.positions))
	for _, p := range t.l.positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (t *memoryTx) UpsertPosition(p types.Position) error {
	t.l.positions[p.Symbol] = p
	return nil
}

func (t *memoryTx) RemovePosition(symbol string) error {
	if _, ok := t.l.positions[symbol]; !ok {
		return fmt.Errorf("position %s: %w", symbol, ErrNotFound)
	}
	delete(t.l.positions, symbol)
	return nil
}

func (t *memoryTx) Cash() (decimal.Decimal, error) { return t.l.cash, nil }

func (t *memoryTx) AdjustCash(delta decimal.Decimal) (decimal.Decimal, error) {
	next := money.Cash(t.l.cash.Add(delta))
	if next.IsNegative() {
		return t.l.cash, fmt.Errorf("balance %s, delta %s: %w", t.l.cash, delta, ErrInsufficientFunds)
	}
	t.l.cash = next
	return next, nil
}

func (t *memoryTx) Allocation() (types.Allocation, error) {
	if t.l.allocation == nil {
		return types.Allocation{}, fmt.Errorf("allocation target: %w", ErrNotFound)
	}
	return *t.l.allocation, nil
}

func (t *memoryTx) SetAllocation(a types.Allocation) error {
	t.l.allocation = &a
	return nil
}

func (t *memoryTx) Operation(opID string) (Operation, error) {
	i, ok := t.l.ops[opID]
	if !ok {
		return Operation{}, fmt.Errorf("operation %s: %w", opID, ErrNotFound)
	}
	mt := t.l.transactions[i]
	return Operation{OpID: opID, Type: mt.tx.Type, TxID: mt.tx.ID, Result: mt.result}, nil
}

func (t *memoryTx) AppendTransaction(tr types.Transaction, result []byte) error {
	if _, ok := t.l.ops[tr.OpID]; ok {
		return fmt.Errorf("op_id %s: %w", tr.OpID, ErrDuplicateOperation)
	}
	t.l.ops[tr.OpID] = len(t.l.transactions)
	t.l.transactions = append(t.l.transactions, memoryTransaction{tx: tr, result: slices.Clone(result)})
	return nil
}

func (t *memoryTx) Transactions(limit int) ([]types.Transaction, error) {
	out := make([]types.Transaction, 0, limit)
	for i := len(t.l.transactions) - 1; i >= 0 && len(out) < limit; i-- {
		tr := t.l.transactions[i].tx
		tr.UserID = t.userID
		out = append(out, tr)
	}
	return out, nil
}

func (t *memoryTx) NetFlow(from, to calendar.Date) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, mt := range t.l.transactions {
		if mt.tx.Date.Between(from, to) && mt.tx.Type.ExternalFlow() {
			sum = sum.Add(mt.tx.CashDelta)
		}
	}
	return sum, nil
}

func (t *memoryTx) UpsertSnapshot(s types.Snapshot) error {
	t.l.snapshots[s.Date] = s
	return nil
}

func (t *memoryTx) Snapshots(from, to calendar.Date) ([]types.Snapshot, error) {
	var out []types.Snapshot
	for d, s := range t.l.snapshots {
		if d.Between(from, to) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (t *memoryTx) LastSnapshotBefore(on calendar.Date) (types.Snapshot, error) {
	var (
		best  types.Snapshot
		found bool
	)
	for d, s := range t.l.snapshots {
		if d.Before(on) && (!found || d.After(best.Date)) {
			best, found = s, true
		}
	}
	if !found {
		return types.Snapshot{}, fmt.Errorf("snapshot before %s: %w", on, ErrNotFound)
	}
	return best, nil
}
