package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"folio/internal/calendar"
	"folio/internal/money"
	"folio/types"

	"github.com/shopspring/decimal"
)

var errNoRows = errors.New("no rows in result set")

// querier is the common surface of a pgx pool/tx and a database/sql db/tx, so
// both SQL backends share the ledger queries below.
type querier interface {
	exec(ctx context.Context, q string, args ...any) (int64, error)
	queryRow(ctx context.Context, q string, args ...any) row
	query(ctx context.Context, q string, args ...any) (rows, error)
}

type row interface {
	Scan(dest ...any) error
}

type rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// dialect holds what differs between PostgreSQL and SQLite.
type dialect struct {
	numbered bool // $1 placeholders instead of ?
	date     func(calendar.Date) any
	time     func(time.Time) any
	isUnique func(error) bool
}

func (d dialect) rebind(q string) string {
	if !d.numbered {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// timestamp scans both native timestamps and the RFC 3339 text SQLite stores.
type timestamp struct{ time.Time }

func (t *timestamp) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		t.Time = v.UTC()
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	case nil:
		t.Time = time.Time{}
	default:
		return fmt.Errorf("cannot scan %T into timestamp", src)
	}
	return nil
}

func (t *timestamp) parse(s string) error {
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return err
	}
	t.Time = parsed.UTC()
	return nil
}

// ledgerTx implements Tx over SQL for a single user.
type ledgerTx struct {
	ctx    context.Context
	q      querier
	d      dialect
	userID int64
}

func (t *ledgerTx) exec(q string, args ...any) (int64, error) {
	return t.q.exec(t.ctx, t.d.rebind(q), args...)
}

func (t *ledgerTx) queryRow(q string, args ...any) row {
	return t.q.queryRow(t.ctx, t.d.rebind(q), args...)
}

func (t *ledgerTx) query(q string, args ...any) (rows, error) {
	return t.q.query(t.ctx, t.d.rebind(q), args...)
}

func (t *ledgerTx) User() (types.User, error) {
	return selectUser(t.ctx, t.q, t.d, t.userID)
}

const positionColumns = `symbol, quantity, avg_cost, asset_class, market, nickname, updated_at`

func scanPosition(r row) (types.Position, error) {
	var (
		p     types.Position
		class string
		at    timestamp
	)
	if err := r.Scan(&p.Symbol, &p.Quantity, &p.AvgCost, &class, &p.Market, &p.Nickname, &at); err != nil {
		return types.Position{}, err
	}
	p.AssetClass = types.AssetClass(class)
	p.UpdatedAt = at.Time
	return p, nil
}

func (t *ledgerTx) Position(symbol string) (types.Position, error) {
	p, err := scanPosition(t.queryRow(
		`SELECT `+positionColumns+` FROM positions WHERE user_id = ? AND symbol = ?`, t.userID, symbol))
	if errors.Is(err, errNoRows) {
		return types.Position{}, fmt.Errorf("position %s: %w", symbol, ErrNotFound)
	}
	return p, err
}

func (t *ledgerTx) Positions() ([]types.Position, error) {
	rs, err := t.query(`SELECT `+positionColumns+` FROM positions WHERE user_id = ? ORDER BY symbol`, t.userID)
	if err != nil {
		return nil, err
	}
	defer rs.Close()
	var out []types.Position
	for rs.Next() {
		p, err := scanPosition(rs)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rs.Err()
}

func (t *ledgerTx) UpsertPosition(p types.Position) error {
	_, err := t.exec(`INSERT INTO positions (user_id, symbol, quantity, avg_cost, asset_class, market, nickname, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, symbol) DO UPDATE SET
			quantity = excluded.quantity,
			avg_cost = excluded.avg_cost,
			asset_class = excluded.asset_class,
			market = excluded.market,
			nickname = excluded.nickname,
			updated_at = excluded.updated_at`,
		t.userID, p.Symbol, p.Quantity, p.AvgCost, string(p.AssetClass), p.Market, p.Nickname, t.d.time(p.UpdatedAt))
	return err
}

func (t *ledgerTx) RemovePosition(symbol string) error {
	n, err := t.exec(`DELETE FROM positions WHERE user_id = ? AND symbol = ?`, t.userID, symbol)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("position %s: %w", symbol, ErrNotFound)
	}
	return nil
}

func (t *ledgerTx) Cash() (decimal.Decimal, error) {
	var amount decimal.Decimal
	err := t.queryRow(`SELECT amount FROM cash_balances WHERE user_id = ?`, t.userID).Scan(&amount)
	if errors.Is(err, errNoRows) {
		return decimal.Zero, nil
	}
	return amount, err
}

func (t *ledgerTx) AdjustCash(delta decimal.Decimal) (decimal.Decimal, error) {
	current, err := t.Cash()
	if err != nil {
		return decimal.Zero, err
	}
	next := money.Cash(current.Add(delta))
	if next.IsNegative() {
		return current, fmt.Errorf("balance %s, delta %s: %w", current, delta, ErrInsufficientFunds)
	}
	_, err = t.exec(`INSERT INTO cash_balances (user_id, amount, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET amount = excluded.amount, updated_at = excluded.updated_at`,
		t.userID, next, t.d.time(time.Now()))
	if err != nil {
		return current, err
	}
	return next, nil
}

func (t *ledgerTx) Allocation() (types.Allocation, error) {
	var (
		a  types.Allocation
		at timestamp
	)
	err := t.queryRow(`SELECT stock_pct, etf_pct, crypto_pct, updated_at FROM targets WHERE user_id = ?`, t.userID).
		Scan(&a.Stock, &a.Etf, &a.Crypto, &at)
	if errors.Is(err, errNoRows) {
		return types.Allocation{}, fmt.Errorf("allocation target: %w", ErrNotFound)
	}
	a.UpdatedAt = at.Time
	return a, err
}

func (t *ledgerTx) SetAllocation(a types.Allocation) error {
	_, err := t.exec(`INSERT INTO targets (user_id, stock_pct, etf_pct, crypto_pct, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			stock_pct = excluded.stock_pct,
			etf_pct = excluded.etf_pct,
			crypto_pct = excluded.crypto_pct,
			updated_at = excluded.updated_at`,
		t.userID, a.Stock, a.Etf, a.Crypto, t.d.time(a.UpdatedAt))
	return err
}

func (t *ledgerTx) Operation(opID string) (Operation, error) {
	var (
		op  Operation
		typ string
	)
	err := t.queryRow(`SELECT op_id, type, id, result FROM transactions WHERE user_id = ? AND op_id = ?`, t.userID, opID).
		Scan(&op.OpID, &typ, &op.TxID, &op.Result)
	if errors.Is(err, errNoRows) {
		return Operation{}, fmt.Errorf("operation %s: %w", opID, ErrNotFound)
	}
	op.Type = types.TxType(typ)
	return op, err
}

func (t *ledgerTx) AppendTransaction(tr types.Transaction, result []byte) error {
	_, err := t.exec(`INSERT INTO transactions
		(id, user_id, at, tx_date, type, symbol, quantity, price, fees, cash_delta, op_id, note, result)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tr.ID, t.userID, t.d.time(tr.At), t.d.date(tr.Date), string(tr.Type), tr.Symbol,
		tr.Quantity, tr.Price, tr.Fees, tr.CashDelta, tr.OpID, tr.Note, result)
	if err != nil && t.d.isUnique(err) {
		return fmt.Errorf("op_id %s: %w", tr.OpID, ErrDuplicateOperation)
	}
	return err
}

func (t *ledgerTx) Transactions(limit int) ([]types.Transaction, error) {
	rs, err := t.query(`SELECT id, at, tx_date, type, symbol, quantity, price, fees, cash_delta, op_id, note
		FROM transactions WHERE user_id = ? ORDER BY seq DESC LIMIT ?`, t.userID, limit)
	if err != nil {
		return nil, err
	}
	defer rs.Close()
	var out []types.Transaction
	for rs.Next() {
		var (
			tr  = types.Transaction{UserID: t.userID}
			at  timestamp
			typ string
		)
		if err := rs.Scan(&tr.ID, &at, &tr.Date, &typ, &tr.Symbol, &tr.Quantity, &tr.Price, &tr.Fees,
			&tr.CashDelta, &tr.OpID, &tr.Note); err != nil {
			return nil, err
		}
		tr.At = at.Time
		tr.Type = types.TxType(typ)
		out = append(out, tr)
	}
	return out, rs.Err()
}

// NetFlow sums in Go so SQLite never aggregates TEXT money as floats.
func (t *ledgerTx) NetFlow(from, to calendar.Date) (decimal.Decimal, error) {
	rs, err := t.query(`SELECT cash_delta FROM transactions
		WHERE user_id = ? AND tx_date BETWEEN ? AND ? AND type IN (?, ?)`,
		t.userID, t.d.date(from), t.d.date(to), string(types.TxDeposit), string(types.TxWithdraw))
	if err != nil {
		return decimal.Zero, err
	}
	defer rs.Close()
	sum := decimal.Zero
	for rs.Next() {
		var delta decimal.Decimal
		if err := rs.Scan(&delta); err != nil {
			return decimal.Zero, err
		}
		sum = sum.Add(delta)
	}
	return sum, rs.Err()
}

func (t *ledgerTx) UpsertSnapshot(s types.Snapshot) error {
	_, err := t.exec(`INSERT INTO snapshots (user_id, snap_date, value, net_flow, daily_return, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, snap_date) DO UPDATE SET
			value = excluded.value,
			net_flow = excluded.net_flow,
			daily_return = excluded.daily_return,
			recorded_at = excluded.recorded_at`,
		t.userID, t.d.date(s.Date), s.Value, s.NetFlow, s.DailyReturn, t.d.time(s.RecordedAt))
	return err
}

const snapshotColumns = `snap_date, value, net_flow, daily_return, recorded_at`

func (t *ledgerTx) scanSnapshot(r row) (types.Snapshot, error) {
	var (
		s  = types.Snapshot{UserID: t.userID}
		at timestamp
	)
	if err := r.Scan(&s.Date, &s.Value, &s.NetFlow, &s.DailyReturn, &at); err != nil {
		return types.Snapshot{}, err
	}
	s.RecordedAt = at.Time
	return s, nil
}

func (t *ledgerTx) Snapshots(from, to calendar.Date) ([]types.Snapshot, error) {
	rs, err := t.query(`SELECT `+snapshotColumns+` FROM snapshots
		WHERE user_id = ? AND snap_date >= ? AND snap_date <= ? ORDER BY snap_date`,
		t.userID, t.d.date(from), t.d.date(to))
	if err != nil {
		return nil, err
	}
	defer rs.Close()
	var out []types.Snapshot
	for rs.Next() {
		s, err := t.scanSnapshot(rs)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rs.Err()
}

func (t *ledgerTx) LastSnapshotBefore(on calendar.Date) (types.Snapshot, error) {
	s, err := t.scanSnapshot(t.queryRow(`SELECT `+snapshotColumns+` FROM snapshots
		WHERE user_id = ? AND snap_date < ? ORDER BY snap_date DESC LIMIT 1`, t.userID, t.d.date(on)))
	if errors.Is(err, errNoRows) {
		return types.Snapshot{}, fmt.Errorf("snapshot before %s: %w", on, ErrNotFound)
	}
	return s, err
}

// Store level statements shared by both SQL backends.

func ensureUserRow(ctx context.Context, q querier, d dialect, userID int64) error {
	now := d.time(time.Now())
	if _, err := q.exec(ctx, d.rebind(`INSERT INTO users (id, active, created_at) VALUES (?, ?, ?)
		ON CONFLICT (id) DO NOTHING`), userID, true, now); err != nil {
		return fmt.Errorf("ensure user %d: %w", userID, err)
	}
	if _, err := q.exec(ctx, d.rebind(`INSERT INTO cash_balances (user_id, amount, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO NOTHING`), userID, decimal.Zero, now); err != nil {
		return fmt.Errorf("ensure cash %d: %w", userID, err)
	}
	return nil
}

func selectUser(ctx context.Context, q querier, d dialect, userID int64) (types.User, error) {
	var (
		u  types.User
		at timestamp
	)
	err := q.queryRow(ctx, d.rebind(`SELECT id, first_name, last_name, username, language_code, active, created_at
		FROM users WHERE id = ?`), userID).
		Scan(&u.ID, &u.FirstName, &u.LastName, &u.Username, &u.LanguageCode, &u.Active, &at)
	if errors.Is(err, errNoRows) {
		return types.User{}, fmt.Errorf("user %d: %w", userID, ErrNotFound)
	}
	u.CreatedAt = at.Time
	return u, err
}

func upsertUser(ctx context.Context, q querier, d dialect, u types.User) error {
	_, err := q.exec(ctx, d.rebind(`INSERT INTO users (id, first_name, last_name, username, language_code, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			username = excluded.username,
			language_code = excluded.language_code,
			active = excluded.active`),
		u.ID, u.FirstName, u.LastName, u.Username, u.LanguageCode, true, d.time(time.Now()))
	return err
}

func deactivateUser(ctx context.Context, q querier, d dialect, userID int64) error {
	n, err := q.exec(ctx, d.rebind(`UPDATE users SET active = ? WHERE id = ?`), false, userID)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("user %d: %w", userID, ErrNotFound)
	}
	return nil
}

func activeUsers(ctx context.Context, q querier, d dialect) ([]int64, error) {
	rs, err := q.query(ctx, d.rebind(`SELECT id FROM users WHERE active = ? ORDER BY id`), true)
	if err != nil {
		return nil, err
	}
	defer rs.Close()
	var ids []int64
	for rs.Next() {
		var id int64
		if err := rs.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rs.Err()
}

func snapshotCount(ctx context.Context, q querier, d dialect, on calendar.Date) (int, error) {
	var n int
	err := q.queryRow(ctx, d.rebind(`SELECT COUNT(*) FROM snapshots s JOIN users u ON u.id = s.user_id
		WHERE s.snap_date = ? AND u.active = ?`), d.date(on), true).Scan(&n)
	return n, err
}
