package orm

import "errors"

var (
	// ErrNotFound is returned when a query expects exactly one row but finds none.
	ErrNotFound = errors.New("orm: not found")

	// ErrMissingParent is returned when a required parent relation has no
	// matching target row.
	ErrMissingParent = errors.New("orm: missing parent")

	// ErrUnsetField is the panic payload of Field.Get when the field holds
	// neither an input, a decoded value nor a default.
	ErrUnsetField = errors.New("orm: field is unset")

	// ErrNotLoaded is the panic payload of relation accessors read before
	// their eager load ran. Use the checked Value accessor to test first.
	ErrNotLoaded = errors.New("orm: relation not eager loaded")

	// ErrUnsupportedEagerLoad is returned at registration time when a key in
	// the eager-load registry is already taken by a request of another kind.
	ErrUnsupportedEagerLoad = errors.New("orm: unsupported eager load request")

	// ErrMissingColumn is returned when a row does not carry the requested key.
	ErrMissingColumn = errors.New("orm: column not in row")
)
