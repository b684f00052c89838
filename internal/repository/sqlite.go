package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"folio/internal/calendar"
	"folio/types"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var sqliteDialect = dialect{
	date: func(d calendar.Date) any { return d.String() },
	time: func(t time.Time) any { return t.UTC().Format(time.RFC3339Nano) },
	isUnique: func(err error) bool {
		var e *sqlite.Error
		return errors.As(err, &e) &&
			(e.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || e.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY)
	},
}

// Sqlite is the single-file store. The pool holds one connection, which makes
// every transaction exclusive and gives per-user serialization for free.
type Sqlite struct {
	conn *sql.DB
	path string
}

func NewSqlite(ctx context.Context, path string) (*Sqlite, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database path to absolute: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite", buildConnectionString(absPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", absPath, err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database %s: %w", absPath, err)
	}
	return &Sqlite{conn: conn, path: absPath}, nil
}

// buildConnectionString uses the ledger profile: full fsync and no vacuum on
// an append-mostly audit trail.
func buildConnectionString(path string) string {
	connStr := path + "?_pragma=journal_mode(WAL)"
	connStr += "&_pragma=synchronous(FULL)"
	connStr += "&_pragma=foreign_keys(1)"
	connStr += "&_pragma=busy_timeout(5000)"
	connStr += "&_txlock=immediate"
	return connStr
}

func (s *Sqlite) Migrate(ctx context.Context) error {
	ddl, err := schema("sqlite")
	if err != nil {
		return err
	}
	if _, err := s.conn.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("apply sqlite schema: %w", err)
	}
	return nil
}

func (s *Sqlite) Ping(ctx context.Context) error { return s.conn.PingContext(ctx) }

func (s *Sqlite) Close() error { return s.conn.Close() }

func (s *Sqlite) Update(ctx context.Context, userID int64, fn func(Tx) error) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		q := sqlQuerier{tx}
		if err := ensureUserRow(ctx, q, sqliteDialect, userID); err != nil {
			return err
		}
		return fn(&ledgerTx{ctx: ctx, q: q, d: sqliteDialect, userID: userID})
	})
}

func (s *Sqlite) View(ctx context.Context, userID int64, fn func(Tx) error) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return fn(&ledgerTx{ctx: ctx, q: sqlQuerier{tx}, d: sqliteDialect, userID: userID})
	})
}

func (s *Sqlite) withTx(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			err = fmt.Errorf("panic in transaction: %v", p)
		} else if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				err = fmt.Errorf("%w (rollback also failed: %v)", err, rollbackErr)
			}
		} else if commitErr := tx.Commit(); commitErr != nil {
			err = fmt.Errorf("failed to commit transaction: %w", commitErr)
		}
	}()
	return fn(tx)
}

func (s *Sqlite) EnsureUser(ctx context.Context, u types.User) (types.User, error) {
	var out types.User
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		q := sqlQuerier{tx}
		if err := upsertUser(ctx, q, sqliteDialect, u); err != nil {
			return err
		}
		if err := ensureUserRow(ctx, q, sqliteDialect, u.ID); err != nil {
			return err
		}
		var err error
		out, err = selectUser(ctx, q, sqliteDialect, u.ID)
		return err
	})
	return out, err
}

func (s *Sqlite) DeactivateUser(ctx context.Context, userID int64) error {
	return deactivateUser(ctx, sqlQuerier{s.conn}, sqliteDialect, userID)
}

func (s *Sqlite) ActiveUsers(ctx context.Context) ([]int64, error) {
	return activeUsers(ctx, sqlQuerier{s.conn}, sqliteDialect)
}

func (s *Sqlite) SnapshotCount(ctx context.Context, on calendar.Date) (int, error) {
	return snapshotCount(ctx, sqlQuerier{s.conn}, sqliteDialect, on)
}

type sqlConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type sqlQuerier struct{ c sqlConn }

func (s sqlQuerier) exec(ctx context.Context, q string, args ...any) (int64, error) {
	res, err := s.c.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s sqlQuerier) queryRow(ctx context.Context, q string, args ...any) row {
	return sqlRow{s.c.QueryRowContext(ctx, q, args...)}
}

func (s sqlQuerier) query(ctx context.Context, q string, args ...any) (rows, error) {
	rs, err := s.c.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return sqlRows{rs}, nil
}

type sqlRow struct{ r *sql.Row }

func (r sqlRow) Scan(dest ...any) error {
	err := r.r.Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return errNoRows
	}
	return err
}

type sqlRows struct{ *sql.Rows }

func (r sqlRows) Close() { _ = r.Rows.Close() }
