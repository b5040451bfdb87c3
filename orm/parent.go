package orm

import (
	"context"
	"errors"
	"fmt"

	"github.com/mickamy/ormrel/internal/naming"
)

type loadState int

const (
	unloaded loadState = iota
	loaded
	loadFailed
)

// Parent is a required belongs-to relation from the owning record to P,
// stored as a foreign key of type K.
type Parent[P any, K comparable] struct {
	name  string
	fk    Field[K]
	value *P
	state loadState
}

// NewParent returns a relation stored under the foreign key fkKey. Its name,
// used when encoding, is fkKey without the "_id" suffix.
func NewParent[P any, K comparable](fkKey string) Parent[P, K] {
	return Parent[P, K]{name: naming.RelationName(fkKey), fk: NewField[K](fkKey)}
}

// Name returns the relation name.
func (p *Parent[P, K]) Name() string { return p.name }

// ID returns the foreign key.
func (p *Parent[P, K]) ID() (K, bool) { return p.fk.Lookup() }

// SetID sets the foreign key and forgets any loaded target.
func (p *Parent[P, K]) SetID(id K) {
	p.fk.Set(id)
	p.reset()
}

// Get returns the loaded target. It panics when the relation was not eager
// loaded; use Lookup to check first.
func (p *Parent[P, K]) Get() *P {
	switch p.state {
	case loaded:
		return p.value
	case loadFailed:
		panic(fmt.Errorf("%w: %s", ErrMissingParent, p.name))
	}
	panic(fmt.Errorf("%w: %s", ErrNotLoaded, p.name))
}

// Lookup returns the loaded target and whether it is loaded.
func (p *Parent[P, K]) Lookup() (*P, bool) {
	if p.state != loaded {
		return nil, false
	}
	return p.value, true
}

// Loaded reports whether the target has been resolved.
func (p *Parent[P, K]) Loaded() bool { return p.state == loaded }

// Attach sets the target and points the foreign key at it.
func (p *Parent[P, K]) Attach(target *P) error {
	id, err := targetID[P, K](target)
	if err != nil {
		return err
	}
	p.fk.Set(id)
	p.value = target
	p.state = loaded
	return nil
}

// Query returns a query for the target whose identifier equals the foreign
// key.
func (p *Parent[P, K]) Query(db Querier) *Query[P] {
	tbl := TableOf[P]()
	q := tbl.Query(db)
	id, ok := p.fk.Lookup()
	if !ok {
		return q.Where("1 = 0")
	}
	return q.Filter(tbl.IDKey(), Equal, id)
}

// Fetch runs Query and returns the target. ErrMissingParent is returned when
// no row matches.
func (p *Parent[P, K]) Fetch(ctx context.Context, db Querier) (*P, error) {
	target, err := p.Query(db).First(ctx)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrMissingParent, p.name)
	}
	if err != nil {
		return nil, err
	}
	return target, nil
}

func (p *Parent[P, K]) loadKey() string { return "p:" + p.fk.Key() }

func (p *Parent[P, K]) RegisterEagerLoad(loads *EagerLoads) error {
	if err := checkTargetKey[P, K](); err != nil {
		return fmt.Errorf("%s: %w", p.name, err)
	}
	_, err := requestFor(loads, p.loadKey(), func() *parentRequest[P, K] {
		return newParentRequest[P, K](p.fk.Key())
	})
	return err
}

func (p *Parent[P, K]) ResolveEagerLoad(loads *EagerLoads) error {
	req, ok, err := lookupRequest[*parentRequest[P, K]](loads, p.loadKey())
	if err != nil || !ok {
		return err
	}
	id, ok := p.fk.Lookup()
	if !ok {
		p.state = loadFailed
		return fmt.Errorf("%w: %s has no foreign key", ErrMissingParent, p.name)
	}
	target, ok := req.Get(id)
	if !ok {
		p.state = loadFailed
		return fmt.Errorf("%w: %s %v", ErrMissingParent, p.name, id)
	}
	p.value = target
	p.state = loaded
	return nil
}

func (p *Parent[P, K]) Key() string            { return p.fk.Key() }
func (p *Parent[P, K]) Value() (any, bool)     { return p.fk.Value() }
func (p *Parent[P, K]) Input() (any, bool)     { return p.fk.Input() }
func (p *Parent[P, K]) Commit()                { p.fk.Commit() }
func (p *Parent[P, K]) Populate(row Row) error { return p.fk.Populate(row) }

func (p *Parent[P, K]) SetInput(v any) error {
	if err := p.fk.SetInput(v); err != nil {
		return err
	}
	p.reset()
	return nil
}

// Encode writes the loaded target nested under the relation name, or only
// its identifier when the relation is not loaded.
func (p *Parent[P, K]) Encode(enc Encoder) error {
	if p.state == loaded {
		return encodeInto(TableOf[P](), enc.Nested(p.name), p.value)
	}
	id, ok := p.fk.Lookup()
	if !ok {
		return nil
	}
	return enc.Nested(p.name).Encode(TableOf[P]().IDKey(), id)
}

// Decode restores the foreign key from the nested identifier. The rest of a
// nested target is ignored.
func (p *Parent[P, K]) Decode(dec Decoder) error {
	if !dec.Contains(p.name) {
		return nil
	}
	nested, err := dec.Nested(p.name)
	if err != nil {
		return err
	}
	idKey := TableOf[P]().IDKey()
	if !nested.Contains(idKey) {
		return nil
	}
	var id K
	if err := nested.Decode(idKey, &id); err != nil {
		return err //nolint:wrapcheck // pass through
	}
	p.fk.decoded(id)
	p.reset()
	return nil
}

func (p *Parent[P, K]) reset() {
	p.value = nil
	p.state = unloaded
}

// targetID reads the identifier of target as a K.
func targetID[P any, K comparable](target *P) (K, error) {
	var zero K
	if target == nil {
		return zero, errors.New("orm: attach nil target")
	}
	id := TableOf[P]().Identifier(target)
	if id == nil {
		return zero, fmt.Errorf("orm: %s has no identifier", TableOf[P]().Name())
	}
	v, ok := id.Value()
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrUnsetField, id.Key())
	}
	k, ok := v.(K)
	if !ok {
		return zero, fmt.Errorf("orm: identifier %s is %T, not %T", id.Key(), v, zero)
	}
	return k, nil
}

var (
	_ FieldProperty = (*Parent[struct{}, int])(nil)
	_ EagerLoader   = (*Parent[struct{}, int])(nil)
)
