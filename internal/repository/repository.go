// Package repository is the authoritative ledger store. Every backend runs a
// mutation in one transaction that is serialized per user.
package repository

import (
	"context"
	"fmt"
	"time"

	"folio/internal/apperr"
	"folio/internal/calendar"
	"folio/types"

	"github.com/shopspring/decimal"
)

// Global error declarations.
var (
	ErrNotFound           = apperr.E(apperr.NotFound, "not found in datasource")
	ErrDuplicateOperation = apperr.E(apperr.DuplicateOperation, "operation already recorded")
	ErrInsufficientFunds  = apperr.E(apperr.InsufficientFunds, "cash balance would become negative")
	ErrUnknownStore       = apperr.E(apperr.BadInput, "unknown store kind")
)

// Operation is the stored outcome of an idempotent mutation.
type Operation struct {
	OpID   string
	Type   types.TxType
	TxID   string
	Result []byte
}

// Tx is the per-user view of the ledger inside one store transaction.
// Every method only touches rows of the user the transaction was opened for.
type Tx interface {
	User() (types.User, error)

	Position(symbol string) (types.Position, error)
	Positions() ([]types.Position, error)
	UpsertPosition(p types.Position) error
	RemovePosition(symbol string) error

	Cash() (decimal.Decimal, error)
	// AdjustCash applies delta and returns the new balance. It fails with
	// ErrInsufficientFunds and leaves the balance unchanged when the result is negative.
	AdjustCash(delta decimal.Decimal) (decimal.Decimal, error)

	Allocation() (types.Allocation, error)
	SetAllocation(a types.Allocation) error

	Operation(opID string) (Operation, error)
	AppendTransaction(t types.Transaction, result []byte) error
	Transactions(limit int) ([]types.Transaction, error)
	// NetFlow sums deposits and withdrawals dated within [from, to].
	NetFlow(from, to calendar.Date) (decimal.Decimal, error)

	UpsertSnapshot(s types.Snapshot) error
	Snapshots(from, to calendar.Date) ([]types.Snapshot, error)
	LastSnapshotBefore(on calendar.Date) (types.Snapshot, error)
}

type Store interface {
	// Update runs fn in a write transaction. The user row is created when missing.
	Update(ctx context.Context, userID int64, fn func(Tx) error) error
	View(ctx context.Context, userID int64, fn func(Tx) error) error

	EnsureUser(ctx context.Context, u types.User) (types.User, error)
	DeactivateUser(ctx context.Context, userID int64) error
	ActiveUsers(ctx context.Context) ([]int64, error)
	SnapshotCount(ctx context.Context, on calendar.Date) (int, error)

	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

type Kind string

const (
	KindPostgres Kind = "postgres"
	KindSqlite   Kind = "sqlite"
	KindMemory   Kind = "memory"
)

type Config struct {
	kind       Kind
	dbURL      string
	sqlitePath string
}

func NewConfig(kind Kind, dbURL, sqlitePath string) *Config {
	return &Config{
		kind:       kind,
		dbURL:      dbURL,
		sqlitePath: sqlitePath,
	}
}

// Open connects the configured backend and applies its schema.
func Open(ctx context.Context, cfg *Config) (Store, error) {
	var (
		store Store
		err   error
	)
	switch cfg.kind {
	case KindPostgres:
		store, err = NewDatabase(ctx, cfg.dbURL)
	case KindSqlite:
		store, err = NewSqlite(ctx, cfg.sqlitePath)
	case KindMemory:
		store = NewMemory()
	default:
		return nil, fmt.Errorf("%q: %w", cfg.kind, ErrUnknownStore)
	}
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

func newUser(id int64, now time.Time) types.User {
	return types.User{ID: id, Active: true, CreatedAt: now.UTC()}
}
