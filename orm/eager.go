package orm

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/mickamy/ormrel/scope"
)

// EagerLoadRequest resolves one relation for a whole result set with a
// single fetch.
type EagerLoadRequest interface {
	// Prepare may annotate the main query before it runs.
	Prepare(q scope.Applier)
	// Run fetches every target referenced by rows. It is called once, after
	// the main query has returned.
	Run(ctx context.Context, db Querier, rows []Row) error
}

// EagerLoads holds the pending requests of one query execution, keyed by
// relation key. It is not safe for concurrent registration; requests are
// registered before any I/O starts.
type EagerLoads struct {
	requests map[string]EagerLoadRequest
	keys     []string
}

func NewEagerLoads() *EagerLoads {
	return &EagerLoads{requests: make(map[string]EagerLoadRequest)}
}

// Len returns the number of registered requests.
func (l *EagerLoads) Len() int { return len(l.keys) }

// Lookup returns the request registered under key.
func (l *EagerLoads) Lookup(key string) (EagerLoadRequest, bool) {
	r, ok := l.requests[key]
	return r, ok
}

func (l *EagerLoads) prepare(q scope.Applier) {
	for _, key := range l.keys {
		l.requests[key].Prepare(q)
	}
}

// run executes every request. Distinct requests run concurrently, bounded by
// the concurrency of db. The first error cancels the others.
func (l *EagerLoads) run(ctx context.Context, db Querier, rows []Row) error {
	if len(l.keys) == 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(db.concurrency(), 1))
	for _, key := range l.keys {
		req := l.requests[key]
		g.Go(func() error {
			if err := req.Run(gctx, db, rows); err != nil {
				return fmt.Errorf("orm: eager load %s: %w", key, err)
			}
			return nil
		})
	}
	return g.Wait() //nolint:wrapcheck // wrapped per request
}

// requestFor returns the request of kind R under key, creating it on first
// use. A request of another kind under the same key is a collision between
// two relation types and is reported as ErrUnsupportedEagerLoad.
func requestFor[R EagerLoadRequest](l *EagerLoads, key string, create func() R) (R, error) {
	if existing, ok := l.requests[key]; ok {
		req, ok := existing.(R)
		if !ok {
			var zero R
			return zero, fmt.Errorf("%w: %s is %T", ErrUnsupportedEagerLoad, key, existing)
		}
		return req, nil
	}
	req := create()
	l.requests[key] = req
	l.keys = append(l.keys, key)
	return req, nil
}

// lookupRequest returns the request of kind R under key. ok is false when the
// relation was not registered.
func lookupRequest[R EagerLoadRequest](l *EagerLoads, key string) (req R, ok bool, err error) {
	existing, found := l.requests[key]
	if !found {
		return req, false, nil
	}
	req, ok = existing.(R)
	if !ok {
		return req, false, fmt.Errorf("%w: %s is %T", ErrUnsupportedEagerLoad, key, existing)
	}
	return req, true, nil
}

// collectKeys decodes key from every row, skipping rows where it is missing,
// NULL or not a K. The result is deduplicated in first-seen order.
func collectKeys[K comparable](rows []Row, key string) []K {
	seen := make(map[K]struct{}, len(rows))
	var out []K
	for _, row := range rows {
		if _, ok := row.Value(key); !ok || row.IsNull(key) {
			continue
		}
		k, err := Decode[K](row, key)
		if err != nil {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

func toArgs[K any](ids []K) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// checkTargetKey reports whether P is identified by a K. A relation keyed by
// another type could never match a fetched target.
func checkTargetKey[P any, K comparable]() error {
	tbl := TableOf[P]()
	id := tbl.Identifier(tbl.New())
	if id == nil {
		return fmt.Errorf("%w: %s has no identifier", ErrUnsupportedEagerLoad, tbl.Name())
	}
	if _, ok := id.(*ID[K]); !ok {
		var zero K
		return fmt.Errorf("%w: %s identifier %s is %T, relation key is %T",
			ErrUnsupportedEagerLoad, tbl.Name(), id.Key(), id, zero)
	}
	return nil
}

// parentRequest loads the targets of a belongs-to relation.
type parentRequest[P any, K comparable] struct {
	fkKey string
	cache []*P
}

func newParentRequest[P any, K comparable](fkKey string) *parentRequest[P, K] {
	return &parentRequest[P, K]{fkKey: fkKey}
}

func (r *parentRequest[P, K]) Prepare(scope.Applier) {}

func (r *parentRequest[P, K]) Run(ctx context.Context, db Querier, rows []Row) error {
	ids := collectKeys[K](rows, r.fkKey)
	if len(ids) == 0 {
		return nil
	}
	tbl := TableOf[P]()
	parents, err := tbl.Query(db).FilterIn(tbl.IDKey(), toArgs(ids)).All(ctx)
	if err != nil {
		return err
	}
	r.cache = parents
	return nil
}

// Get returns the first cached target whose identifier equals id.
func (r *parentRequest[P, K]) Get(id K) (*P, bool) {
	tbl := TableOf[P]()
	for _, p := range r.cache {
		if sameKey(tbl.Identifier(p), id) {
			return p, true
		}
	}
	return nil, false
}

// childrenRequest loads the records of a has-many relation.
type childrenRequest[C any, K comparable] struct {
	ownerKey string
	fkKey    string
	cache    []*C
}

func newChildrenRequest[C any, K comparable](ownerKey, fkKey string) *childrenRequest[C, K] {
	return &childrenRequest[C, K]{ownerKey: ownerKey, fkKey: fkKey}
}

func (r *childrenRequest[C, K]) Prepare(scope.Applier) {}

func (r *childrenRequest[C, K]) Run(ctx context.Context, db Querier, rows []Row) error {
	ids := collectKeys[K](rows, r.ownerKey)
	if len(ids) == 0 {
		return nil
	}
	children, err := TableOf[C]().Query(db).FilterIn(r.fkKey, toArgs(ids)).All(ctx)
	if err != nil {
		return err
	}
	r.cache = children
	return nil
}

// Get returns every cached child whose foreign key equals id, in fetch order.
func (r *childrenRequest[C, K]) Get(id K) []*C {
	tbl := TableOf[C]()
	var out []*C
	for _, c := range r.cache {
		if sameKey(tbl.field(c, r.fkKey), id) {
			out = append(out, c)
		}
	}
	return out
}

// sameKey reports whether fp holds id. Optional keys (*K) are dereferenced.
func sameKey[K comparable](fp FieldProperty, id K) bool {
	if fp == nil {
		return false
	}
	v, ok := fp.Value()
	if !ok {
		return false
	}
	switch v := v.(type) {
	case K:
		return v == id
	case *K:
		return v != nil && *v == id
	}
	return false
}
