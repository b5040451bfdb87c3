package orm

import (
	"fmt"
	"strings"
)

// Dialect abstracts SQL differences between database engines.
type Dialect interface {
	// Name identifies the dialect in errors and logs.
	Name() string

	// Placeholder returns the bind parameter for the given 1-based index.
	// "?" dialects ignore the index; PostgreSQL returns "$1", "$2", etc.
	Placeholder(index int) string

	// QuoteIdent quotes a table or column name. Embedded quote characters
	// are doubled.
	QuoteIdent(name string) string

	// UseReturning reports whether INSERT reads a storage-assigned
	// identifier back with RETURNING instead of LastInsertId.
	UseReturning() bool

	// ReturningClause returns the clause appended to INSERT, or "".
	ReturningClause(pk string) string
}

// MySQL is the Dialect for MySQL / MariaDB.
var MySQL Dialect = mysqlDialect{}

// PostgreSQL is the Dialect for PostgreSQL.
var PostgreSQL Dialect = postgresDialect{}

// SQLite is the Dialect for SQLite 3.35 or later.
var SQLite Dialect = sqliteDialect{}

// DialectFor returns the Dialect for a database/sql driver name.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "mysql":
		return MySQL, nil
	case "pgx", "postgres", "postgresql":
		return PostgreSQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return nil, fmt.Errorf("orm: no dialect for driver %q", driver)
}

func quote(name, q string) string {
	return q + strings.ReplaceAll(name, q, q+q) + q
}

type mysqlDialect struct{}

func (mysqlDialect) Name() string                    { return "mysql" }
func (mysqlDialect) Placeholder(_ int) string        { return "?" }
func (mysqlDialect) QuoteIdent(name string) string   { return quote(name, "`") }
func (mysqlDialect) UseReturning() bool              { return false }
func (mysqlDialect) ReturningClause(_ string) string { return "" }

type postgresDialect struct{}

func (postgresDialect) Name() string                  { return "postgres" }
func (postgresDialect) Placeholder(index int) string  { return fmt.Sprintf("$%d", index) }
func (postgresDialect) QuoteIdent(name string) string { return quote(name, `"`) }
func (postgresDialect) UseReturning() bool            { return true }
func (d postgresDialect) ReturningClause(pk string) string {
	return " RETURNING " + d.QuoteIdent(pk)
}

// sqliteDialect shares PostgreSQL's quoting and RETURNING but binds with "?".
type sqliteDialect struct{ postgresDialect }

func (sqliteDialect) Name() string             { return "sqlite" }
func (sqliteDialect) Placeholder(_ int) string { return "?" }
