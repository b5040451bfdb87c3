package orm

import "github.com/google/uuid"

// Property is any typed slot of a record that can be serialised and filled
// from a fetched row.
type Property interface {
	Encode(enc Encoder) error
	Decode(dec Decoder) error
	Populate(row Row) error
}

// FieldProperty is a Property backed by exactly one stored column. Generic
// insert, update and filter code reads and writes it without knowing V.
type FieldProperty interface {
	Property
	Key() string
	// Value returns the readable value, if any, boxed.
	Value() (any, bool)
	// Input returns the pending input, if any.
	Input() (any, bool)
	SetInput(v any) error
	Commit()
}

// IdentifierProperty is the primary key of a record.
type IdentifierProperty interface {
	FieldProperty
	// Generate assigns a new identifier before insert. It does nothing when
	// the identifier is assigned by storage or is already set.
	Generate()
	// Exists reports whether the record has been fetched or saved.
	Exists() bool
	SetExists(exists bool)
}

// EagerLoader is a relation that can be resolved in batches through an
// EagerLoads registry.
type EagerLoader interface {
	RegisterEagerLoad(loads *EagerLoads) error
	ResolveEagerLoad(loads *EagerLoads) error
}

// ID is an identifier field.
type ID[K comparable] struct {
	Field[K]
	exists   bool
	generate func() K
}

// IDOption configures an ID at construction.
type IDOption[K comparable] func(*ID[K])

// WithGenerator sets the function used by Generate.
func WithGenerator[K comparable](fn func() K) IDOption[K] {
	return func(id *ID[K]) { id.generate = fn }
}

// NewID returns an identifier stored under key. Without a generator the
// value is expected from storage (auto increment) or from the caller.
func NewID[K comparable](key string, opts ...IDOption[K]) ID[K] {
	id := ID[K]{Field: NewField[K](key)}
	for _, opt := range opts {
		opt(&id)
	}
	return id
}

// NewUUID returns a string identifier that generates random UUIDs.
func NewUUID(key string) ID[string] {
	return NewID(key, WithGenerator(uuid.NewString))
}

func (id *ID[K]) Generate() {
	if id.generate == nil {
		return
	}
	if _, ok := id.Lookup(); ok {
		return
	}
	id.Set(id.generate())
}

func (id *ID[K]) Exists() bool { return id.exists }

func (id *ID[K]) SetExists(exists bool) { id.exists = exists }

func (id *ID[K]) Populate(row Row) error {
	if err := id.Field.Populate(row); err != nil {
		return err
	}
	if _, ok := row.Value(id.key); ok {
		id.exists = true
	}
	return nil
}

var _ IdentifierProperty = (*ID[int])(nil)
