package orm

import (
	"database/sql"
	"fmt"
)

// Row is the raw output of one fetched row, addressed by column key.
// Values are kept exactly as the driver returned them so that foreign keys
// can be decoded again later without another round trip.
type Row struct {
	columns []string
	values  map[string]any
}

// NewRow builds a Row from column/value pairs. len(values) must equal
// len(columns).
func NewRow(columns []string, values []any) Row {
	r := Row{
		columns: columns,
		values:  make(map[string]any, len(columns)),
	}
	for i, col := range columns {
		r.values[col] = values[i]
	}
	return r
}

// Columns returns the column keys in select order.
func (r Row) Columns() []string { return r.columns }

// Value returns the raw driver value for key.
func (r Row) Value(key string) (any, bool) {
	v, ok := r.values[key]
	return v, ok
}

// IsNull reports whether key is present and SQL NULL.
func (r Row) IsNull(key string) bool {
	v, ok := r.values[key]
	return ok && v == nil
}

// Decode converts the raw value stored under key into V using the same
// conversion rules as (*sql.Rows).Scan. NULL decodes to the zero value of V
// (nil for pointer types).
func Decode[V any](r Row, key string) (V, error) {
	raw, ok := r.values[key]
	if !ok {
		var zero V
		return zero, fmt.Errorf("%w: %s", ErrMissingColumn, key)
	}
	var n sql.Null[V]
	if err := n.Scan(raw); err != nil {
		var zero V
		return zero, fmt.Errorf("orm: decode %q: %w", key, err)
	}
	return n.V, nil
}

// scanRows materialises every remaining row of rows. The caller closes rows.
func scanRows(rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err //nolint:wrapcheck // pass through
	}

	var out []Row
	for rows.Next() {
		values := make([]any, len(cols))
		dest := make([]any, len(cols))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err //nolint:wrapcheck // pass through
		}
		out = append(out, NewRow(cols, values))
	}
	if err := rows.Err(); err != nil {
		return nil, err //nolint:wrapcheck // pass through
	}
	return out, nil
}
