package orm

import (
	"context"
	"database/sql"
)

// Querier is the common interface for DB and Tx.
// Generated factory functions accept it, so queries and the eager loads
// they trigger run the same way inside and outside a transaction.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	dialect() Dialect
	// concurrency bounds how many eager-load requests run at once.
	concurrency() int
}

// DefaultEagerLoadConcurrency is the number of relation fetches a DB runs at
// once when Options leaves it unset.
const DefaultEagerLoadConcurrency = 4

// Options configures a DB.
type Options struct {
	// EagerLoadConcurrency bounds the relation fetches of one query that run
	// concurrently. Zero means DefaultEagerLoadConcurrency.
	EagerLoadConcurrency int
	// Logger, if set, receives every statement.
	Logger Logger
}

// session is what DB and Tx share: the dialect, the statement log and the
// eager-load bound.
type session struct {
	d      Dialect
	logger Logger
	limit  int
}

func (s session) log(ctx context.Context, query string, args []any) {
	if s.logger != nil {
		s.logger.Log(ctx, query, args...)
	}
}

func (s session) dialect() Dialect { return s.d }

func (s session) concurrency() int { return s.limit }

// DB wraps *sql.DB with a Dialect and satisfies Querier.
type DB struct {
	session
	raw *sql.DB
}

// New wraps a *sql.DB with the given Dialect.
func New(db *sql.DB, d Dialect) *DB {
	return NewWithOptions(db, d, Options{})
}

// NewWithOptions wraps a *sql.DB with the given Dialect and Options.
func NewWithOptions(db *sql.DB, d Dialect, opts Options) *DB {
	limit := opts.EagerLoadConcurrency
	if limit <= 0 {
		limit = DefaultEagerLoadConcurrency
	}
	return &DB{session: session{d: d, logger: opts.Logger, limit: limit}, raw: db}
}

// Debug returns a new *DB that logs every query using the given Logger.
// The original DB is not modified.
func (db *DB) Debug(l Logger) *DB {
	s := db.session
	s.logger = l
	return &DB{session: s, raw: db.raw}
}

func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	db.log(ctx, query, args)
	return db.raw.QueryContext(ctx, query, args...) //nolint:wrapcheck // thin wrapper
}

func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	db.log(ctx, query, args)
	return db.raw.ExecContext(ctx, query, args...) //nolint:wrapcheck // thin wrapper
}

// Begin starts a transaction. A transaction runs on a single connection, so
// its eager loads run one at a time.
func (db *DB) Begin(ctx context.Context) (*Tx, error) {
	tx, err := db.raw.BeginTx(ctx, nil)
	if err != nil {
		return nil, err //nolint:wrapcheck // thin wrapper
	}
	s := db.session
	s.limit = 1
	return &Tx{session: s, raw: tx}, nil
}

// Transaction executes fn within a transaction.
// If fn returns nil the transaction is committed.
// If fn returns an error or panics the transaction is rolled back.
func (db *DB) Transaction(ctx context.Context, fn func(tx *Tx) error) (err error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Close closes the underlying *sql.DB.
func (db *DB) Close() error { return db.raw.Close() } //nolint:wrapcheck // thin wrapper

// Tx wraps *sql.Tx with a Dialect and satisfies Querier.
type Tx struct {
	session
	raw *sql.Tx
}

func (tx *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	tx.log(ctx, query, args)
	return tx.raw.QueryContext(ctx, query, args...) //nolint:wrapcheck // thin wrapper
}

func (tx *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	tx.log(ctx, query, args)
	return tx.raw.ExecContext(ctx, query, args...) //nolint:wrapcheck // thin wrapper
}

// Commit commits the transaction.
func (tx *Tx) Commit() error { return tx.raw.Commit() } //nolint:wrapcheck // thin wrapper

// Rollback rolls back the transaction.
func (tx *Tx) Rollback() error { return tx.raw.Rollback() } //nolint:wrapcheck // thin wrapper
