package orm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mickamy/ormrel/scope"
)

// Operator is a comparison used by Filter.
type Operator string

const (
	Equal          Operator = "="
	NotEqual       Operator = "<>"
	Greater        Operator = ">"
	GreaterOrEqual Operator = ">="
	Less           Operator = "<"
	LessOrEqual    Operator = "<="
	Like           Operator = "LIKE"
)

// Query represents a pending query against a single table.
// All builder methods return a new Query; the receiver is never modified.
type Query[T any] struct {
	db    Querier
	table *Table[T]

	wheres   []whereClause
	orderBys []string
	selects  *string
	limit    *int
	offset   *int

	eager []func(*T) EagerLoader
	err   error
}

type whereClause struct {
	clause string
	args   []any
}

// NewQuery starts a query over the registered table of T.
func NewQuery[T any](db Querier) *Query[T] {
	return TableOf[T]().Query(db)
}

// clone returns a shallow copy with slices copied to avoid aliasing.
func (q *Query[T]) clone() *Query[T] {
	q2 := *q
	q2.wheres = append([]whereClause(nil), q.wheres...)
	q2.orderBys = append([]string(nil), q.orderBys...)
	q2.eager = append([]func(*T) EagerLoader(nil), q.eager...)
	return &q2
}

// --- Builder methods ---

func (q *Query[T]) Where(clause string, args ...any) *Query[T] {
	q2 := q.clone()
	q2.wheres = append(q2.wheres, whereClause{clause, args})
	return q2
}

// Filter compares the column key with value. A nil value with Equal or
// NotEqual becomes IS NULL / IS NOT NULL.
//
//	Books(db).Filter("title", orm.Like, "Go%")
func (q *Query[T]) Filter(key string, op Operator, value any) *Query[T] {
	col := q.qi(key)
	if value == nil {
		switch op {
		case Equal:
			return q.Scopes(scope.IsNull(col))
		case NotEqual:
			return q.Scopes(scope.NotNull(col))
		}
	}
	return q.Where(col+" "+string(op)+" ?", value)
}

// FilterIn restricts the column key to values. An empty set matches nothing.
func (q *Query[T]) FilterIn(key string, values []any) *Query[T] {
	return q.Scopes(scope.In(q.qi(key), values))
}

func (q *Query[T]) OrderBy(clause string) *Query[T] {
	q2 := q.clone()
	q2.orderBys = append(q2.orderBys, clause)
	return q2
}

func (q *Query[T]) Limit(n int) *Query[T] {
	q2 := q.clone()
	q2.limit = &n
	return q2
}

func (q *Query[T]) Offset(n int) *Query[T] {
	q2 := q.clone()
	q2.offset = &n
	return q2
}

func (q *Query[T]) Select(columns string) *Query[T] {
	q2 := q.clone()
	q2.selects = &columns
	return q2
}

// With eager loads the relation picked from each record.
//
//	Books(db).With(func(b *Book) orm.EagerLoader { return &b.Author }).All(ctx)
func (q *Query[T]) With(pick func(*T) EagerLoader) *Query[T] {
	q2 := q.clone()
	q2.eager = append(q2.eager, pick)
	return q2
}

// Preload eager loads the relation declared under name.
func (q *Query[T]) Preload(name string) *Query[T] {
	if q.table.Relation(q.table.New(), name) == nil {
		q2 := q.clone()
		q2.err = fmt.Errorf("orm: unknown preload %q", name)
		return q2
	}
	return q.With(func(t *T) EagerLoader { return q.table.Relation(t, name) })
}

// Scopes applies the given scope.Scope values to the query.
func (q *Query[T]) Scopes(scopes ...scope.Scope) *Query[T] {
	q2 := q.clone()
	for _, s := range scopes {
		s.Apply(q2)
	}
	return q2
}

// --- scope.Applier implementation ---

func (q *Query[T]) ApplyWhere(clause string, args []any) {
	q.wheres = append(q.wheres, whereClause{clause, args})
}

func (q *Query[T]) ApplyOrderBy(clause string) {
	q.orderBys = append(q.orderBys, clause)
}

func (q *Query[T]) ApplyLimit(n int)  { q.limit = &n }
func (q *Query[T]) ApplyOffset(n int) { q.offset = &n }

func (q *Query[T]) ApplySelect(columns string) {
	q.selects = &columns
}

var _ scope.Applier = (*Query[any])(nil)

// --- Terminal methods ---

// All executes a SELECT and returns all matching records with their
// requested relations resolved. Each relation costs one extra query for the
// whole result set. If the main query or any relation fails, no records are
// returned.
func (q *Query[T]) All(ctx context.Context) ([]*T, error) {
	if q.err != nil {
		return nil, q.err
	}

	loads := NewEagerLoads()
	template := q.table.New()
	for _, pick := range q.eager {
		if err := pick(template).RegisterEagerLoad(loads); err != nil {
			return nil, err //nolint:wrapcheck // pass through
		}
	}

	main := q.clone()
	loads.prepare(main)

	rows, err := main.fetch(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*T, 0, len(rows))
	for _, row := range rows {
		t, err := q.table.populate(row)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}

	if err := loads.run(ctx, q.db, rows); err != nil {
		return nil, err
	}

	for _, t := range result {
		for _, pick := range q.eager {
			if err := pick(t).ResolveEagerLoad(loads); err != nil {
				return nil, err //nolint:wrapcheck // pass through
			}
		}
	}

	return result, nil
}

// fetch runs the SELECT and materialises its rows. The result set is closed
// before any relation is loaded.
func (q *Query[T]) fetch(ctx context.Context) ([]Row, error) {
	query, args := q.buildSelect()
	query, args = q.rewrite(query, args)

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err //nolint:wrapcheck // pass through
	}
	defer func() { _ = rows.Close() }()

	return scanRows(rows)
}

// First executes a SELECT with LIMIT 1 and returns the first record.
// Returns ErrNotFound if no rows match.
func (q *Query[T]) First(ctx context.Context) (*T, error) {
	items, err := q.Limit(1).All(ctx)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNotFound
	}
	return items[0], nil
}

// Count returns the number of rows matching the current query conditions.
func (q *Query[T]) Count(ctx context.Context) (int64, error) {
	if q.err != nil {
		return 0, q.err
	}
	query, args := q.buildCount()
	query, args = q.rewrite(query, args)

	var count int64
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, err //nolint:wrapcheck // pass through
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		return 0, errors.New("orm: COUNT returned no rows")
	}
	if err := rows.Scan(&count); err != nil {
		return 0, err //nolint:wrapcheck // pass through
	}
	return count, rows.Err() //nolint:wrapcheck // pass through
}

// Exists returns true if at least one row matches the current query conditions.
func (q *Query[T]) Exists(ctx context.Context) (bool, error) {
	count, err := q.Limit(1).Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create inserts t. The identifier is generated first when it has a
// generator; otherwise a storage-assigned identifier is read back via
// RETURNING (PostgreSQL, SQLite) or LastInsertId (MySQL). Timestamps are
// touched from the Clock in ctx. Only fields holding a value are inserted.
func (q *Query[T]) Create(ctx context.Context, t *T) error {
	id := q.table.Identifier(t)
	if id != nil {
		id.Generate()
	}

	fields := q.table.Fields(t)
	touch(fields, now(ctx), true)

	var columns []string
	var values []any
	for _, f := range fields {
		v, ok := f.Value()
		if !ok {
			continue
		}
		columns = append(columns, f.Key())
		values = append(values, v)
	}
	if len(columns) == 0 {
		return fmt.Errorf("orm: nothing to insert into %s", q.table.Name())
	}

	query := q.buildInsert(columns)
	query, values = q.rewrite(query, values)

	needsID := false
	if id != nil {
		_, hasID := id.Value()
		needsID = !hasID
	}

	d := q.db.dialect()
	if d.UseReturning() && needsID {
		query += d.ReturningClause(id.Key())
		if err := q.insertReturning(ctx, id, query, values); err != nil {
			return err
		}
	} else {
		result, err := q.db.ExecContext(ctx, query, values...)
		if err != nil {
			return err //nolint:wrapcheck // pass through
		}
		if needsID {
			lastID, err := result.LastInsertId()
			if err != nil {
				return err //nolint:wrapcheck // pass through
			}
			if err := id.SetInput(lastID); err != nil {
				return err //nolint:wrapcheck // pass through
			}
		}
	}

	for _, f := range fields {
		f.Commit()
	}
	if id != nil {
		id.SetExists(true)
	}
	return nil
}

func (q *Query[T]) insertReturning(ctx context.Context, id IdentifierProperty, query string, values []any) error {
	rows, err := q.db.QueryContext(ctx, query, values...)
	if err != nil {
		return err //nolint:wrapcheck // pass through
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return err //nolint:wrapcheck // pass through
		}
		return errors.New("orm: INSERT RETURNING returned no rows")
	}
	var raw any
	if err := rows.Scan(&raw); err != nil {
		return err //nolint:wrapcheck // pass through
	}
	if err := id.SetInput(raw); err != nil {
		return err //nolint:wrapcheck // pass through
	}
	return rows.Err() //nolint:wrapcheck // pass through
}

// Update writes the pending inputs of t to the row identified by its
// identifier. Update-triggered timestamps are touched when anything else
// changed; a record without pending input is left alone.
func (q *Query[T]) Update(ctx context.Context, t *T) error {
	id := q.table.Identifier(t)
	if id == nil {
		return fmt.Errorf("orm: %s has no identifier", q.table.Name())
	}
	idVal, ok := id.Value()
	if !ok {
		return errors.New("orm: primary key value is required for Update")
	}

	fields := q.table.Fields(t)
	if !hasPending(fields, id.Key()) {
		return nil
	}
	touch(fields, now(ctx), false)

	var setCols []string
	var setVals []any
	for _, f := range fields {
		if f.Key() == id.Key() {
			continue
		}
		v, ok := f.Input()
		if !ok {
			continue
		}
		setCols = append(setCols, f.Key())
		setVals = append(setVals, v)
	}

	setVals = append(setVals, idVal)
	query := q.buildUpdate(setCols, id.Key())
	query, setVals = q.rewrite(query, setVals)

	if _, err := q.db.ExecContext(ctx, query, setVals...); err != nil {
		return err //nolint:wrapcheck // pass through
	}
	for _, f := range fields {
		f.Commit()
	}
	return nil
}

// Delete deletes rows matching the accumulated WHERE clauses.
// Returns an error if no WHERE clauses are set (safety guard).
func (q *Query[T]) Delete(ctx context.Context) error {
	if len(q.wheres) == 0 {
		return errors.New("orm: Delete without WHERE clause is not allowed")
	}
	query, args := q.buildDelete()
	query, args = q.rewrite(query, args)

	_, err := q.db.ExecContext(ctx, query, args...)
	return err //nolint:wrapcheck // pass through
}

func touch(fields []FieldProperty, now time.Time, creating bool) {
	for _, f := range fields {
		if ts, ok := f.(toucher); ok {
			ts.Touch(now, creating)
		}
	}
}

func hasPending(fields []FieldProperty, skip string) bool {
	for _, f := range fields {
		if f.Key() == skip {
			continue
		}
		if _, ok := f.Input(); ok {
			return true
		}
	}
	return false
}

// --- SQL building ---

// qi quotes an identifier (table/column name) using the dialect.
func (q *Query[T]) qi(name string) string {
	return q.db.dialect().QuoteIdent(name)
}

// quoteColumns joins column names with dialect-aware quoting.
func (q *Query[T]) quoteColumns(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = q.qi(c)
	}
	return strings.Join(quoted, ", ")
}

func (q *Query[T]) buildSelect() (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT ")

	if q.selects != nil {
		b.WriteString(*q.selects)
	} else {
		b.WriteString(q.quoteColumns(q.table.columns))
	}

	b.WriteString(" FROM ")
	b.WriteString(q.qi(q.table.name))

	args := q.appendWhere(&b)

	if len(q.orderBys) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(q.orderBys, ", "))
	}

	if q.limit != nil {
		fmt.Fprintf(&b, " LIMIT %d", *q.limit)
	}
	if q.offset != nil {
		fmt.Fprintf(&b, " OFFSET %d", *q.offset)
	}

	return b.String(), args
}

func (q *Query[T]) buildCount() (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT COUNT(*) FROM ")
	b.WriteString(q.qi(q.table.name))

	args := q.appendWhere(&b)

	if q.limit != nil {
		fmt.Fprintf(&b, " LIMIT %d", *q.limit)
	}
	if q.offset != nil {
		fmt.Fprintf(&b, " OFFSET %d", *q.offset)
	}

	return b.String(), args
}

func (q *Query[T]) buildInsert(columns []string) string {
	placeholders := make([]string, len(columns))
	for i := range placeholders {
		placeholders[i] = "?"
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		q.qi(q.table.name),
		q.quoteColumns(columns),
		strings.Join(placeholders, ", "),
	)
}

func (q *Query[T]) buildUpdate(setCols []string, pk string) string {
	sets := make([]string, len(setCols))
	for i, col := range setCols {
		sets[i] = q.qi(col) + " = ?"
	}
	return fmt.Sprintf(
		"UPDATE %s SET %s WHERE %s = ?",
		q.qi(q.table.name),
		strings.Join(sets, ", "),
		q.qi(pk),
	)
}

func (q *Query[T]) buildDelete() (string, []any) {
	var b strings.Builder
	b.WriteString("DELETE FROM ")
	b.WriteString(q.qi(q.table.name))
	args := q.appendWhere(&b)
	return b.String(), args
}

func (q *Query[T]) appendWhere(b *strings.Builder) []any {
	if len(q.wheres) == 0 {
		return nil
	}

	var args []any
	b.WriteString(" WHERE ")
	for i, w := range q.wheres {
		if i > 0 {
			b.WriteString(" AND ")
		}
		b.WriteString(w.clause)
		args = append(args, w.args...)
	}
	return args
}

// rewrite converts ? placeholders to dialect-specific placeholders.
// Dialects that bind with ? (MySQL, SQLite) are left alone. For PostgreSQL,
// ? becomes $1, $2, etc.
func (q *Query[T]) rewrite(query string, args []any) (string, []any) {
	d := q.db.dialect()
	if d.Placeholder(1) == "?" {
		return query, args
	}

	var b strings.Builder
	b.Grow(len(query))
	idx := 1
	for i := range len(query) {
		if query[i] == '?' {
			b.WriteString(d.Placeholder(idx))
			idx++
		} else {
			b.WriteByte(query[i])
		}
	}
	return b.String(), args
}
