package orm

import (
	"fmt"
	"reflect"
	"sync"
)

// PropertyDef describes one named property of T. The accessor returns the
// property slot of a given record, which must be addressable (a field of *T).
type PropertyDef[T any] struct {
	name string
	get  func(*T) Property
}

// Prop declares a property of T under name.
//
//	orm.Prop("Author", func(b *Book) orm.Property { return &b.Author })
func Prop[T any](name string, get func(*T) Property) PropertyDef[T] {
	return PropertyDef[T]{name: name, get: get}
}

// NamedProperty is a property of a concrete record paired with its
// declared name.
type NamedProperty struct {
	Name     string
	Property Property
}

// TableNamer can be implemented by record types to override the table name
// passed to NewTable.
type TableNamer interface {
	TableName() string
}

// Table is the schema of record type T: its table name, record constructor
// and the ordered list of its properties. A Table is built once per type and
// is safe for concurrent use.
type Table[T any] struct {
	name    string
	newFn   func() *T
	props   []PropertyDef[T]
	columns []string
	keys    map[string]string
	idKey   string
}

var tables sync.Map // reflect.Type -> any (*Table[T])

// NewTable builds the schema of T and registers it so that relations can
// find it through TableOf. newFn must return a record whose properties are
// constructed with their keys. Registering the same type twice replaces the
// previous table.
func NewTable[T any](name string, newFn func() *T, props ...PropertyDef[T]) *Table[T] {
	if tn, ok := any(newFn()).(TableNamer); ok {
		name = tn.TableName()
	}

	tbl := &Table[T]{
		name:  name,
		newFn: newFn,
		props: props,
		keys:  make(map[string]string, len(props)),
	}

	template := newFn()
	for _, def := range props {
		fp, ok := def.get(template).(FieldProperty)
		if !ok {
			continue
		}
		tbl.columns = append(tbl.columns, fp.Key())
		tbl.keys[def.name] = fp.Key()
		if _, ok := fp.(IdentifierProperty); ok && tbl.idKey == "" {
			tbl.idKey = fp.Key()
		}
	}

	tables.Store(reflect.TypeFor[T](), tbl)
	return tbl
}

// TableOf returns the registered schema of T. It panics when no table has
// been registered, which only happens when the generated code for T was not
// compiled in.
func TableOf[T any]() *Table[T] {
	typ := reflect.TypeFor[T]()
	v, ok := tables.Load(typ)
	if !ok {
		panic(fmt.Sprintf("orm: no table registered for %s", typ))
	}
	return v.(*Table[T]) //nolint:forcetypeassert // keyed by T
}

func (tbl *Table[T]) Name() string { return tbl.name }

// New returns a fresh record.
func (tbl *Table[T]) New() *T { return tbl.newFn() }

// Columns returns every stored key in declaration order.
func (tbl *Table[T]) Columns() []string { return append([]string(nil), tbl.columns...) }

// IDKey returns the key of the identifier, or "" when T has none.
func (tbl *Table[T]) IDKey() string { return tbl.idKey }

// Key returns the stored key of the named property.
func (tbl *Table[T]) Key(name string) (string, bool) {
	k, ok := tbl.keys[name]
	return k, ok
}

// KeyFor returns the stored key of the field selected by pick.
//
//	BookTable.KeyFor(func(b *Book) orm.FieldProperty { return &b.Title }) // "title"
func (tbl *Table[T]) KeyFor(pick func(*T) FieldProperty) string {
	return pick(tbl.New()).Key()
}

// Properties returns every property of t in declaration order.
func (tbl *Table[T]) Properties(t *T) []NamedProperty {
	out := make([]NamedProperty, len(tbl.props))
	for i, def := range tbl.props {
		out[i] = NamedProperty{Name: def.name, Property: def.get(t)}
	}
	return out
}

// Fields returns the properties of t that are stored in a column.
func (tbl *Table[T]) Fields(t *T) []FieldProperty {
	var out []FieldProperty
	for _, def := range tbl.props {
		if fp, ok := def.get(t).(FieldProperty); ok {
			out = append(out, fp)
		}
	}
	return out
}

// Relations returns the properties of t that can be eager loaded.
func (tbl *Table[T]) Relations(t *T) []EagerLoader {
	var out []EagerLoader
	for _, def := range tbl.props {
		if el, ok := def.get(t).(EagerLoader); ok {
			out = append(out, el)
		}
	}
	return out
}

// Relation returns the named relation of t, or nil.
func (tbl *Table[T]) Relation(t *T, name string) EagerLoader {
	for _, def := range tbl.props {
		if def.name != name {
			continue
		}
		el, _ := def.get(t).(EagerLoader)
		return el
	}
	return nil
}

// Identifier returns the identifier of t, or nil when T has none.
func (tbl *Table[T]) Identifier(t *T) IdentifierProperty {
	if tbl.idKey == "" {
		return nil
	}
	id, _ := tbl.field(t, tbl.idKey).(IdentifierProperty)
	return id
}

// Query starts a query over the table.
func (tbl *Table[T]) Query(db Querier) *Query[T] {
	return &Query[T]{db: db, table: tbl}
}

func (tbl *Table[T]) field(t *T, key string) FieldProperty {
	for _, def := range tbl.props {
		if fp, ok := def.get(t).(FieldProperty); ok && fp.Key() == key {
			return fp
		}
	}
	return nil
}

func (tbl *Table[T]) populate(row Row) (*T, error) {
	t := tbl.New()
	for _, def := range tbl.props {
		if err := def.get(t).Populate(row); err != nil {
			return nil, fmt.Errorf("orm: populate %s.%s: %w", tbl.name, def.name, err)
		}
	}
	return t, nil
}
