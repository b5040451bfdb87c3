package orm

import (
	"context"
	"database/sql"
	"errors"
)

var errMockNotImplemented = errors.New("mock: not implemented")

// TestQuerier is a mock Querier that records executed queries.
// Exported for use in orm_test package. Its queries always fail, so it only
// serves to inspect the generated SQL.
type TestQuerier struct {
	D       Dialect
	Queries []TestQuery
}

// TestQuery holds a captured query string and its args.
type TestQuery struct {
	SQL  string
	Args []any
}

// NewTestQuerier creates a TestQuerier with the given Dialect.
func NewTestQuerier(d Dialect) *TestQuerier {
	return &TestQuerier{D: d}
}

func (tq *TestQuerier) QueryContext(_ context.Context, query string, args ...any) (*sql.Rows, error) {
	tq.Queries = append(tq.Queries, TestQuery{query, args})
	return nil, errMockNotImplemented
}

func (tq *TestQuerier) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	tq.Queries = append(tq.Queries, TestQuery{query, args})
	return testResult{}, nil
}

var _ Querier = (*TestQuerier)(nil)

// LastQuery returns the most recently captured query, or panics if empty.
func (tq *TestQuerier) LastQuery() TestQuery {
	return tq.Queries[len(tq.Queries)-1]
}

func (tq *TestQuerier) dialect() Dialect { return tq.D }

func (tq *TestQuerier) concurrency() int { return 1 }

// RunEagerLoads exposes the batch step of Query.All.
func RunEagerLoads(ctx context.Context, l *EagerLoads, db Querier, rows []Row) error {
	return l.run(ctx, db, rows)
}

// ParentRequestGet looks up id in the parent request registered under key.
func ParentRequestGet[P any, K comparable](l *EagerLoads, key string, id K) (*P, bool) {
	req, ok, err := lookupRequest[*parentRequest[P, K]](l, key)
	if err != nil || !ok {
		return nil, false
	}
	return req.Get(id)
}

// SetParentCache replaces the cache of the parent request under key, as if
// it had run.
func SetParentCache[P any, K comparable](l *EagerLoads, key string, cache []*P) {
	req, ok, err := lookupRequest[*parentRequest[P, K]](l, key)
	if err != nil || !ok {
		panic("no parent request under " + key)
	}
	req.cache = cache
}

type testResult struct{}

func (testResult) LastInsertId() (int64, error) { return 0, nil }
func (testResult) RowsAffected() (int64, error) { return 0, nil }
