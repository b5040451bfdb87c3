package orm_test

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/mickamy/ormrel/orm"
)

var sqliteBackend = backend{
	name:    "SQLite",
	dialect: orm.SQLite,
	open: func(t *testing.T) *sql.DB {
		t.Helper()

		db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "ormrel.db"))
		require.NoError(t, err)
		return db
	},
	schema: []string{
		`CREATE TABLE authors (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE books (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			author_id INTEGER NOT NULL,
			editor_id INTEGER
		)`,
	},
}

func TestSQLite(t *testing.T) {
	t.Parallel()

	runStoreSuite(t, sqliteBackend)
}
