package orm

import (
	"context"
	"fmt"
)

// Children is a has-many relation: the records of C whose foreign key holds
// the identifier of the owning record.
type Children[C any, K comparable] struct {
	name     string
	fkKey    string
	ownerKey string
	owner    K
	hasOwner bool
	values   []*C
	loaded   bool
}

// ChildrenOption configures a Children relation.
type ChildrenOption[C any, K comparable] func(*Children[C, K])

// OwnedBy sets the owner column the foreign key refers to. Defaults to "id".
func OwnedBy[C any, K comparable](key string) ChildrenOption[C, K] {
	return func(c *Children[C, K]) { c.ownerKey = key }
}

// NewChildren returns a relation named name over the foreign key column of C.
func NewChildren[C any, K comparable](name, foreignKey string, opts ...ChildrenOption[C, K]) Children[C, K] {
	c := Children[C, K]{name: name, fkKey: foreignKey, ownerKey: "id"}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func (c *Children[C, K]) Name() string { return c.name }

// Get returns the loaded children. It panics when the relation was not
// eager loaded.
func (c *Children[C, K]) Get() []*C {
	if !c.loaded {
		panic(fmt.Errorf("%w: %s", ErrNotLoaded, c.name))
	}
	return c.values
}

func (c *Children[C, K]) Lookup() ([]*C, bool) { return c.values, c.loaded }

func (c *Children[C, K]) Loaded() bool { return c.loaded }

// Query returns a query for the children of the owning record. The owner
// identifier is captured when the record is fetched; before that the query
// matches nothing.
func (c *Children[C, K]) Query(db Querier) *Query[C] {
	q := TableOf[C]().Query(db)
	if !c.hasOwner {
		return q.Where("1 = 0")
	}
	return q.Filter(c.fkKey, Equal, c.owner)
}

func (c *Children[C, K]) Fetch(ctx context.Context, db Querier) ([]*C, error) {
	return c.Query(db).All(ctx)
}

// loadKey identifies the request by child table, foreign key and the owner
// column it is matched against.
func (c *Children[C, K]) loadKey() string {
	return "c:" + TableOf[C]().Name() + "." + c.fkKey + ":" + c.ownerKey
}

func (c *Children[C, K]) RegisterEagerLoad(loads *EagerLoads) error {
	_, err := requestFor(loads, c.loadKey(), func() *childrenRequest[C, K] {
		return newChildrenRequest[C, K](c.ownerKey, c.fkKey)
	})
	return err
}

func (c *Children[C, K]) ResolveEagerLoad(loads *EagerLoads) error {
	req, ok, err := lookupRequest[*childrenRequest[C, K]](loads, c.loadKey())
	if err != nil || !ok {
		return err
	}
	c.values = nil
	if c.hasOwner {
		c.values = req.Get(c.owner)
	}
	c.loaded = true
	return nil
}

// Populate records the owner identifier so the relation can be resolved
// later. The relation itself has no column.
func (c *Children[C, K]) Populate(row Row) error {
	if _, ok := row.Value(c.ownerKey); !ok || row.IsNull(c.ownerKey) {
		return nil
	}
	owner, err := Decode[K](row, c.ownerKey)
	if err != nil {
		return err
	}
	c.owner = owner
	c.hasOwner = true
	return nil
}

// Encode writes the loaded children as a list. An unloaded relation writes
// nothing.
func (c *Children[C, K]) Encode(enc Encoder) error {
	if !c.loaded {
		return nil
	}
	tbl := TableOf[C]()
	docs := make([]Document, 0, len(c.values))
	for _, child := range c.values {
		doc := Document{}
		if err := encodeInto(tbl, doc, child); err != nil {
			return err
		}
		docs = append(docs, doc)
	}
	return enc.Encode(c.name, docs)
}

// Decode is a no-op; children are never restored from a document.
func (c *Children[C, K]) Decode(Decoder) error { return nil }

var (
	_ Property    = (*Children[struct{}, int])(nil)
	_ EagerLoader = (*Children[struct{}, int])(nil)
)
