package orm_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mickamy/ormrel/orm"
)

// backend is a real database the store suite runs against.
type backend struct {
	name    string
	dialect orm.Dialect
	open    func(t *testing.T) *sql.DB
	schema  []string
}

// countingLogger counts the statements sent through a DB.
type countingLogger struct {
	mu      sync.Mutex
	queries []string
}

func (l *countingLogger) Log(_ context.Context, query string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.queries = append(l.queries, query)
}

func (l *countingLogger) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.queries = nil
}

func (l *countingLogger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queries)
}

func setupBackend(t *testing.T, b backend) (*orm.DB, *countingLogger) {
	t.Helper()

	sqlDB := b.open(t)
	t.Cleanup(func() { _ = sqlDB.Close() })
	for _, stmt := range b.schema {
		_, err := sqlDB.ExecContext(t.Context(), stmt)
		require.NoError(t, err, stmt)
	}

	logger := &countingLogger{}
	return orm.NewWithOptions(sqlDB, b.dialect, orm.Options{Logger: logger}), logger
}

func createAuthor(t *testing.T, db orm.Querier, name string) *testAuthor {
	t.Helper()

	a := newTestAuthor()
	a.Name.Set(name)
	require.NoError(t, orm.NewQuery[testAuthor](db).Create(t.Context(), a))
	return a
}

func createBook(t *testing.T, db orm.Querier, title string, author *testAuthor, editor *testAuthor) *testBook {
	t.Helper()

	b := newTestBook()
	b.Title.Set(title)
	require.NoError(t, b.Author.Attach(author))
	require.NoError(t, b.Editor.Attach(editor))
	require.NoError(t, orm.NewQuery[testBook](db).Create(t.Context(), b))
	return b
}

func runStoreSuite(t *testing.T, b backend) {
	t.Run("CRUD", func(t *testing.T) {
		db, _ := setupBackend(t, b)
		ctx := t.Context()

		a := createAuthor(t, db, "Frank Herbert")
		require.True(t, a.ID.Exists())
		id := a.ID.Get()
		require.NotZero(t, id)
		require.False(t, a.CreatedAt.Get().IsZero())

		authors := orm.NewQuery[testAuthor](db)
		got, err := authors.Filter("id", orm.Equal, id).First(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Frank Herbert", got.Name.Get())

		got.Name.Set("F. Herbert")
		require.NoError(t, authors.Update(ctx, got))

		got, err = authors.Filter("id", orm.Equal, id).First(ctx)
		require.NoError(t, err)
		assert.Equal(t, "F. Herbert", got.Name.Get())

		require.NoError(t, authors.Filter("id", orm.Equal, id).Delete(ctx))
		_, err = authors.Filter("id", orm.Equal, id).First(ctx)
		require.ErrorIs(t, err, orm.ErrNotFound)
	})

	t.Run("EagerLoad", func(t *testing.T) {
		db, logger := setupBackend(t, b)
		ctx := t.Context()

		herbert := createAuthor(t, db, "Frank Herbert")
		simmons := createAuthor(t, db, "Dan Simmons")
		createBook(t, db, "Dune", herbert, simmons)
		createBook(t, db, "Children of Dune", herbert, nil)
		createBook(t, db, "Hyperion", simmons, nil)

		logger.reset()
		books, err := orm.NewQuery[testBook](db).
			With(withAuthor).
			Preload("Editor").
			OrderBy("id").
			All(ctx)
		require.NoError(t, err)
		require.Len(t, books, 3)
		assert.Equal(t, 3, logger.count(), "one query for books, one per relation")

		assert.Equal(t, "Frank Herbert", books[0].Author.Get().Name.Get())
		assert.Same(t, books[0].Author.Get(), books[1].Author.Get())
		assert.Equal(t, "Dan Simmons", books[2].Author.Get().Name.Get())
		assert.Equal(t, "Dan Simmons", books[0].Editor.Get().Name.Get())
		assert.Nil(t, books[1].Editor.Get())

		logger.reset()
		authors, err := orm.NewQuery[testAuthor](db).With(withBooks).OrderBy("id").All(ctx)
		require.NoError(t, err)
		require.Len(t, authors, 2)
		assert.Equal(t, 2, logger.count())
		assert.Len(t, authors[0].Books.Get(), 2)
		assert.Len(t, authors[1].Books.Get(), 1)
	})

	t.Run("MissingParent", func(t *testing.T) {
		db, _ := setupBackend(t, b)
		ctx := t.Context()

		orphan := newTestBook()
		orphan.Title.Set("Orphan")
		orphan.Author.SetID(999)
		require.NoError(t, orm.NewQuery[testBook](db).Create(ctx, orphan))

		books, err := orm.NewQuery[testBook](db).With(withAuthor).All(ctx)
		require.ErrorIs(t, err, orm.ErrMissingParent)
		assert.Nil(t, books)

		_, err = orphan.Author.Fetch(ctx, db)
		require.ErrorIs(t, err, orm.ErrMissingParent)
	})

	t.Run("Transaction", func(t *testing.T) {
		db, _ := setupBackend(t, b)
		ctx := t.Context()

		err := db.Transaction(ctx, func(tx *orm.Tx) error {
			a := createAuthor(t, tx, "Ursula K. Le Guin")
			createBook(t, tx, "The Dispossessed", a, a)

			books, err := orm.NewQuery[testBook](tx).With(withAuthor).With(withEditor).All(ctx)
			if err != nil {
				return err
			}
			assert.Len(t, books, 1)
			assert.Equal(t, a.ID.Get(), books[0].Author.Get().ID.Get())
			assert.Equal(t, a.ID.Get(), books[0].Editor.Get().ID.Get())
			return nil
		})
		require.NoError(t, err)

		count, err := orm.NewQuery[testBook](db).Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("CountExists", func(t *testing.T) {
		db, _ := setupBackend(t, b)
		ctx := t.Context()

		for _, name := range []string{"Alice", "Bob", "Alice2"} {
			createAuthor(t, db, name)
		}

		count, err := orm.NewQuery[testAuthor](db).Filter("name", orm.Like, "Alice%").Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)

		exists, err := orm.NewQuery[testAuthor](db).Filter("name", orm.Equal, "Nobody").Exists(ctx)
		require.NoError(t, err)
		assert.False(t, exists)
	})
}
