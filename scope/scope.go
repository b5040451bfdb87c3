// Package scope holds reusable query fragments. The orm package applies them
// to a query through Applier, and builds its batched relation fetches from In.
package scope

import "strings"

// Applier is implemented by query builders to receive scope fragments.
// It lives here so that orm can import scope without an import cycle.
type Applier interface {
	ApplyWhere(clause string, args []any)
	ApplyOrderBy(clause string)
	ApplyLimit(n int)
	ApplyOffset(n int)
	ApplySelect(columns string)
}

type scopeKind int

const (
	kindWhere scopeKind = iota
	kindOrderBy
	kindLimit
	kindOffset
	kindSelect
)

// Scope is a single query fragment. Scopes are immutable and safe to reuse
// across queries.
type Scope struct {
	kind   scopeKind
	clause string
	args   []any
	n      int
}

// Apply dispatches this Scope to the given Applier.
func (s Scope) Apply(a Applier) {
	switch s.kind {
	case kindWhere:
		a.ApplyWhere(s.clause, s.args)
	case kindOrderBy:
		a.ApplyOrderBy(s.clause)
	case kindLimit:
		a.ApplyLimit(s.n)
	case kindOffset:
		a.ApplyOffset(s.n)
	case kindSelect:
		a.ApplySelect(s.clause)
	}
}

// Where adds a WHERE fragment. Fragments are joined with AND.
//
//	scope.Where("age > ?", 18)
func Where(clause string, args ...any) Scope {
	return Scope{kind: kindWhere, clause: clause, args: args}
}

// OrderBy adds an ORDER BY term.
//
//	scope.OrderBy("created_at DESC")
func OrderBy(clause string) Scope {
	return Scope{kind: kindOrderBy, clause: clause}
}

func Limit(n int) Scope {
	return Scope{kind: kindLimit, n: n}
}

func Offset(n int) Scope {
	return Scope{kind: kindOffset, n: n}
}

// Select overrides the SELECT column list. Rows fetched this way only
// populate the selected fields.
//
//	scope.Select("id", "name")
func Select(columns ...string) Scope {
	return Scope{kind: kindSelect, clause: strings.Join(columns, ", ")}
}

// In matches column against values, one placeholder per value. The column is
// written as given; quote it first if it needs quoting. An empty set matches
// nothing.
//
//	scope.In("id", []int{1, 2, 3})  // → WHERE id IN (?, ?, ?)
func In[T any](column string, values []T) Scope {
	if len(values) == 0 {
		return Where("1 = 0")
	}
	return Where(column+" IN ("+placeholders(len(values))+")", toArgs(values)...)
}

// NotIn is the negation of In. An empty set matches everything.
func NotIn[T any](column string, values []T) Scope {
	if len(values) == 0 {
		return Where("1 = 1")
	}
	return Where(column+" NOT IN ("+placeholders(len(values))+")", toArgs(values)...)
}

// IsNull matches rows where column is NULL.
func IsNull(column string) Scope {
	return Where(column + " IS NULL")
}

// NotNull matches rows where column is not NULL.
func NotNull(column string) Scope {
	return Where(column + " IS NOT NULL")
}

// Scopes is a named slice of Scope, useful for conditionally building
// up a set of scopes.
//
//	var s scope.Scopes
//	if onlyPublished {
//	    s = s.Append(Published)
//	}
//	Books(db).Scopes(s...).All(ctx)
type Scopes []Scope

// Append adds scopes and returns a new Scopes. The receiver is not modified.
func (ss Scopes) Append(scopes ...Scope) Scopes {
	return append(append(Scopes(nil), ss...), scopes...)
}

// Merge concatenates two Scopes and returns a new Scopes.
// Neither receiver nor argument is modified.
func (ss Scopes) Merge(other Scopes) Scopes {
	return append(append(Scopes(nil), ss...), other...)
}

func Combine(scopes ...Scope) Scopes {
	return Scopes(scopes)
}

func toArgs[T any](values []T) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

func placeholders(count int) string {
	parts := make([]string, count)
	for i := range parts {
		parts[i] = "?"
	}
	return strings.Join(parts, ", ")
}
