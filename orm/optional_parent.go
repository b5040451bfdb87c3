package orm

import (
	"context"
	"errors"
	"fmt"

	"github.com/mickamy/ormrel/internal/naming"
)

// OptionalParent is a belongs-to relation whose foreign key may be NULL.
// A resolved relation with no target is a valid state, distinct from a
// relation that was never loaded.
type OptionalParent[P any, K comparable] struct {
	name      string
	fk        Field[*K]
	value     *P
	attempted bool
}

func NewOptionalParent[P any, K comparable](fkKey string) OptionalParent[P, K] {
	return OptionalParent[P, K]{name: naming.RelationName(fkKey), fk: NewField[*K](fkKey)}
}

func (p *OptionalParent[P, K]) Name() string { return p.name }

// ID returns the foreign key. It is nil when the relation is empty or unset.
func (p *OptionalParent[P, K]) ID() *K {
	id, _ := p.fk.Lookup()
	return id
}

// SetID sets the foreign key; nil clears the relation.
func (p *OptionalParent[P, K]) SetID(id *K) {
	p.fk.Set(id)
	p.reset()
}

// Get returns the loaded target, or nil when there is none. It panics when
// no eager load was attempted.
func (p *OptionalParent[P, K]) Get() *P {
	if !p.attempted {
		panic(fmt.Errorf("%w: %s", ErrNotLoaded, p.name))
	}
	return p.value
}

// Lookup returns the target and whether a load was attempted.
func (p *OptionalParent[P, K]) Lookup() (*P, bool) {
	return p.value, p.attempted
}

func (p *OptionalParent[P, K]) Loaded() bool { return p.attempted }

// Attach sets the target, or clears the relation when target is nil.
func (p *OptionalParent[P, K]) Attach(target *P) error {
	if target == nil {
		p.fk.Set(nil)
		p.value = nil
		p.attempted = true
		return nil
	}
	id, err := targetID[P, K](target)
	if err != nil {
		return err
	}
	p.fk.Set(&id)
	p.value = target
	p.attempted = true
	return nil
}

// Query returns a query for the target. An empty foreign key matches nothing.
func (p *OptionalParent[P, K]) Query(db Querier) *Query[P] {
	tbl := TableOf[P]()
	q := tbl.Query(db)
	id := p.ID()
	if id == nil {
		return q.Where("1 = 0")
	}
	return q.Filter(tbl.IDKey(), Equal, *id)
}

// Fetch runs Query. It returns nil without error when the foreign key is
// empty or no row matches.
func (p *OptionalParent[P, K]) Fetch(ctx context.Context, db Querier) (*P, error) {
	if p.ID() == nil {
		return nil, nil
	}
	target, err := p.Query(db).First(ctx)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return target, nil
}

// Required and optional parents on the same column load the same rows, so
// they share the request kind.
func (p *OptionalParent[P, K]) loadKey() string { return "p:" + p.fk.Key() }

func (p *OptionalParent[P, K]) RegisterEagerLoad(loads *EagerLoads) error {
	if err := checkTargetKey[P, K](); err != nil {
		return fmt.Errorf("%s: %w", p.name, err)
	}
	_, err := requestFor(loads, p.loadKey(), func() *parentRequest[P, K] {
		return newParentRequest[P, K](p.fk.Key())
	})
	return err
}

func (p *OptionalParent[P, K]) ResolveEagerLoad(loads *EagerLoads) error {
	req, ok, err := lookupRequest[*parentRequest[P, K]](loads, p.loadKey())
	if err != nil || !ok {
		return err
	}
	p.attempted = true
	p.value = nil
	id := p.ID()
	if id == nil {
		return nil
	}
	if target, ok := req.Get(*id); ok {
		p.value = target
	}
	return nil
}

func (p *OptionalParent[P, K]) Key() string            { return p.fk.Key() }
func (p *OptionalParent[P, K]) Value() (any, bool)     { return p.fk.Value() }
func (p *OptionalParent[P, K]) Input() (any, bool)     { return p.fk.Input() }
func (p *OptionalParent[P, K]) Commit()                { p.fk.Commit() }
func (p *OptionalParent[P, K]) Populate(row Row) error { return p.fk.Populate(row) }

func (p *OptionalParent[P, K]) SetInput(v any) error {
	if err := p.fk.SetInput(v); err != nil {
		return err
	}
	p.reset()
	return nil
}

// Encode writes the loaded target nested under the relation name. An
// attempted load with no target writes null; otherwise only the identifier
// is written.
func (p *OptionalParent[P, K]) Encode(enc Encoder) error {
	if p.attempted {
		if p.value == nil {
			return enc.Encode(p.name, nil)
		}
		return encodeInto(TableOf[P](), enc.Nested(p.name), p.value)
	}
	id, ok := p.fk.Lookup()
	if !ok {
		return nil
	}
	if id == nil {
		return enc.Encode(p.name, nil)
	}
	return enc.Nested(p.name).Encode(TableOf[P]().IDKey(), *id)
}

// Decode restores the foreign key from the nested identifier. A null relation
// decodes to a nil foreign key.
func (p *OptionalParent[P, K]) Decode(dec Decoder) error {
	if !dec.Contains(p.name) {
		return nil
	}
	var raw any
	if err := dec.Decode(p.name, &raw); err != nil {
		return err //nolint:wrapcheck // pass through
	}
	p.reset()
	if raw == nil {
		p.fk.decoded(nil)
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
	p.fk.decoded(&id)
	return nil
}

func (p *OptionalParent[P, K]) reset() {
	p.value = nil
	p.attempted = false
}

var (
	_ FieldProperty = (*OptionalParent[struct{}, int])(nil)
	_ EagerLoader   = (*OptionalParent[struct{}, int])(nil)
)
