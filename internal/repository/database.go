package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"folio/internal/calendar"
	"folio/types"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

var postgres = dialect{
	numbered: true,
	date:     func(d calendar.Date) any { return d.Time() },
	time:     func(t time.Time) any { return t.UTC() },
	isUnique: func(err error) bool {
		var pgErr *pgconn.PgError
		return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
	},
}

// Database is the PostgreSQL store. NUMERIC columns map to decimal.Decimal
// through the shopspring codec, so money never passes through float64.
type Database struct {
	conn *pgxpool.Pool
}

// NewDatabase creates a new Database instance and verifies connectivity.
func NewDatabase(ctx context.Context, dbURL string) (*Database, error) {
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// Register shopspring decimal
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	conn, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	// Ensure the connection is established.
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return &Database{conn: conn}, nil
}

func (db *Database) Migrate(ctx context.Context) error {
	ddl, err := schema("postgres")
	if err != nil {
		return err
	}
	if _, err := db.conn.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("apply postgres schema: %w", err)
	}
	return nil
}

func (db *Database) Ping(ctx context.Context) error { return db.conn.Ping(ctx) }

func (db *Database) Close() error {
	db.conn.Close()
	return nil
}

// Update takes a transaction scoped advisory lock on the user id, so writers
// of the same user queue up across processes while other users proceed.
func (db *Database) Update(ctx context.Context, userID int64, fn func(Tx) error) error {
	return db.withTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, userID); err != nil {
			return fmt.Errorf("lock user %d: %w", userID, err)
		}
		q := pgxQuerier{tx}
		if err := ensureUserRow(ctx, q, postgres, userID); err != nil {
			return err
		}
		return fn(&ledgerTx{ctx: ctx, q: q, d: postgres, userID: userID})
	})
}

func (db *Database) View(ctx context.Context, userID int64, fn func(Tx) error) error {
	return db.withTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly, IsoLevel: pgx.RepeatableRead}, func(tx pgx.Tx) error {
		return fn(&ledgerTx{ctx: ctx, q: pgxQuerier{tx}, d: postgres, userID: userID})
	})
}

func (db *Database) withTx(ctx context.Context, opts pgx.TxOptions, fn func(pgx.Tx) error) (err error) {
	tx, err := db.conn.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			err = fmt.Errorf("panic in transaction: %v", p)
		} else if err != nil {
			_ = tx.Rollback(ctx)
		} else if commitErr := tx.Commit(ctx); commitErr != nil {
			err = fmt.Errorf("commit transaction: %w", commitErr)
		}
	}()
	return fn(tx)
}

func (db *Database) EnsureUser(ctx context.Context, u types.User) (types.User, error) {
	var out types.User
	err := db.withTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := pgxQuerier{tx}
		if err := upsertUser(ctx, q, postgres, u); err != nil {
			return err
		}
		if err := ensureUserRow(ctx, q, postgres, u.ID); err != nil {
			return err
		}
		var err error
		out, err = selectUser(ctx, q, postgres, u.ID)
		return err
	})
	return out, err
}

func (db *Database) DeactivateUser(ctx context.Context, userID int64) error {
	return deactivateUser(ctx, pgxQuerier{db.conn}, postgres, userID)
}

func (db *Database) ActiveUsers(ctx context.Context) ([]int64, error) {
	return activeUsers(ctx, pgxQuerier{db.conn}, postgres)
}

func (db *Database) SnapshotCount(ctx context.Context, on calendar.Date) (int, error) {
	return snapshotCount(ctx, pgxQuerier{db.conn}, postgres, on)
}

type pgxConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgxQuerier struct{ c pgxConn }

func (p pgxQuerier) exec(ctx context.Context, q string, args ...any) (int64, error) {
	tag, err := p.c.Exec(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (p pgxQuerier) queryRow(ctx context.Context, q string, args ...any) row {
	return pgxRow{p.c.QueryRow(ctx, q, args...)}
}

func (p pgxQuerier) query(ctx context.Context, q string, args ...any) (rows, error) {
	rs, err := p.c.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return rs, nil
}

type pgxRow struct{ r pgx.Row }

func (r pgxRow) Scan(dest ...any) error {
	err := r.r.Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		return errNoRows
	}
	return err
}
