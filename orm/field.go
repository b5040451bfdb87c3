package orm

import (
	"database/sql"
	"fmt"
)

// Field is a typed, keyed value slot. A read returns, in order of
// precedence, the pending input set by the caller, the value decoded from
// storage or a document, or the default. A zero Field is unset.
type Field[V any] struct {
	key string

	value  V
	loaded bool

	input    V
	hasInput bool

	def    V
	hasDef bool
}

// FieldOption configures a Field at construction.
type FieldOption[V any] func(*Field[V])

// WithDefault makes v readable until the field is decoded or set.
func WithDefault[V any](v V) FieldOption[V] {
	return func(f *Field[V]) {
		f.def = v
		f.hasDef = true
	}
}

// NewField returns an unset Field stored under key.
func NewField[V any](key string, opts ...FieldOption[V]) Field[V] {
	f := Field[V]{key: key}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

func (f *Field[V]) Key() string { return f.key }

// Get returns the readable value. It panics with an error wrapping
// ErrUnsetField when there is none; use Lookup to check first.
func (f *Field[V]) Get() V {
	v, ok := f.Lookup()
	if !ok {
		panic(fmt.Errorf("%w: %s", ErrUnsetField, f.key))
	}
	return v
}

// Lookup is the checked form of Get.
func (f *Field[V]) Lookup() (V, bool) {
	switch {
	case f.hasInput:
		return f.input, true
	case f.loaded:
		return f.value, true
	case f.hasDef:
		return f.def, true
	}
	var zero V
	return zero, false
}

// Set stores v as pending input and drops any decoded value.
func (f *Field[V]) Set(v V) {
	f.input = v
	f.hasInput = true
	var zero V
	f.value = zero
	f.loaded = false
}

func (f *Field[V]) Value() (any, bool) {
	v, ok := f.Lookup()
	if !ok {
		return nil, false
	}
	return v, true
}

func (f *Field[V]) Input() (any, bool) {
	if !f.hasInput {
		return nil, false
	}
	return f.input, true
}

// SetInput sets the pending input from an untyped value, converting it with
// the database/sql scan rules when it is not already a V.
func (f *Field[V]) SetInput(raw any) error {
	if v, ok := raw.(V); ok {
		f.Set(v)
		return nil
	}
	var n sql.Null[V]
	if err := n.Scan(raw); err != nil {
		return fmt.Errorf("orm: set %q: %w", f.key, err)
	}
	f.Set(n.V)
	return nil
}

// Commit turns the pending input into the decoded value. Called after the
// input has been written to storage.
func (f *Field[V]) Commit() {
	if !f.hasInput {
		return
	}
	f.decoded(f.input)
}

func (f *Field[V]) Encode(enc Encoder) error {
	v, ok := f.Lookup()
	if !ok {
		return nil
	}
	return enc.Encode(f.key, v)
}

// Decode reads the value stored under the field key. A missing key leaves the
// field untouched.
func (f *Field[V]) Decode(dec Decoder) error {
	if !dec.Contains(f.key) {
		return nil
	}
	var v V
	if err := dec.Decode(f.key, &v); err != nil {
		return err
	}
	f.decoded(v)
	return nil
}

// Populate decodes the field from a fetched row. Rows that were selected
// without this column leave the field untouched.
func (f *Field[V]) Populate(row Row) error {
	if _, ok := row.Value(f.key); !ok {
		return nil
	}
	v, err := Decode[V](row, f.key)
	if err != nil {
		return err
	}
	f.decoded(v)
	return nil
}

func (f *Field[V]) decoded(v V) {
	f.value = v
	f.loaded = true
	var zero V
	f.input = zero
	f.hasInput = false
}

var _ FieldProperty = (*Field[int])(nil)
