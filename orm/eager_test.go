package orm_test

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mickamy/ormrel/orm"
)

const (
	selectBooks   = "SELECT `id`, `title`, `author_id`, `editor_id` FROM `books`"
	selectAuthors = "SELECT `id`, `name`, `created_at`, `updated_at` FROM `authors`"
)

var (
	bookColumns   = []string{"id", "title", "author_id", "editor_id"}
	authorColumns = []string{"id", "name", "created_at", "updated_at"}
)

func newMockDB(t *testing.T) (*orm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return orm.New(sqlDB, orm.MySQL), mock
}

func TestEagerLoadParentBatchesDistinctKeys(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	mock.ExpectQuery(selectBooks).WillReturnRows(
		sqlmock.NewRows(bookColumns).
			AddRow(int64(1), "Dune", int64(5), nil).
			AddRow(int64(2), "Children of Dune", int64(5), nil).
			AddRow(int64(3), "Hyperion", int64(7), nil),
	)
	mock.ExpectQuery(selectAuthors+" WHERE `id` IN (?, ?)").
		WithArgs(int64(5), int64(7)).
		WillReturnRows(
			sqlmock.NewRows(authorColumns).
				AddRow(int64(5), "Frank Herbert", nil, nil).
				AddRow(int64(7), "Dan Simmons", nil, nil),
		)

	books, err := testBookTable.Query(db).With(withAuthor).All(t.Context())
	require.NoError(t, err)
	require.Len(t, books, 3)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, "Frank Herbert", books[0].Author.Get().Name.Get())
	assert.Same(t, books[0].Author.Get(), books[1].Author.Get())
	assert.Equal(t, int64(7), books[2].Author.Get().ID.Get())
	assert.Equal(t, "Dan Simmons", books[2].Author.Get().Name.Get())
}

func TestEagerLoadSkipsEmptyKeys(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	mock.ExpectQuery(selectBooks).WillReturnRows(
		sqlmock.NewRows(bookColumns).
			AddRow(int64(1), "Dune", int64(5), nil).
			AddRow(int64(2), "Emma", int64(6), nil),
	)

	// No query is expected for the editors: every editor_id is NULL.
	books, err := testBookTable.Query(db).With(withEditor).All(t.Context())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	for _, b := range books {
		assert.True(t, b.Editor.Loaded())
		assert.Nil(t, b.Editor.Get())
		assert.Nil(t, b.Editor.ID())
	}
}

func TestEagerLoadOptionalParent(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	mock.ExpectQuery(selectBooks).WillReturnRows(
		sqlmock.NewRows(bookColumns).
			AddRow(int64(1), "Dune", int64(5), int64(8)).
			AddRow(int64(2), "Emma", int64(6), nil).
			AddRow(int64(3), "Persuasion", int64(6), int64(9)),
	)
	mock.ExpectQuery(selectAuthors+" WHERE `id` IN (?, ?)").
		WithArgs(int64(8), int64(9)).
		WillReturnRows(sqlmock.NewRows(authorColumns).AddRow(int64(8), "Editor", nil, nil))

	books, err := testBookTable.Query(db).With(withEditor).All(t.Context())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, "Editor", books[0].Editor.Get().Name.Get())
	assert.Nil(t, books[1].Editor.Get())
	// editor 9 does not exist; an optional relation resolves to nothing.
	assert.Nil(t, books[2].Editor.Get())
	assert.True(t, books[2].Editor.Loaded())
}

func TestEagerLoadSeveralRelations(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	mock.MatchExpectationsInOrder(false)
	mock.ExpectQuery(selectBooks).WillReturnRows(
		sqlmock.NewRows(bookColumns).
			AddRow(int64(1), "Dune", int64(5), int64(7)).
			AddRow(int64(2), "Hyperion", int64(7), nil),
	)
	mock.ExpectQuery(selectAuthors+" WHERE `id` IN (?, ?)").
		WithArgs(int64(5), int64(7)).
		WillReturnRows(
			sqlmock.NewRows(authorColumns).
				AddRow(int64(5), "Frank Herbert", nil, nil).
				AddRow(int64(7), "Dan Simmons", nil, nil),
		)
	mock.ExpectQuery(selectAuthors+" WHERE `id` IN (?)").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(authorColumns).AddRow(int64(7), "Dan Simmons", nil, nil))

	books, err := testBookTable.Query(db).With(withAuthor).Preload("Editor").All(t.Context())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, "Frank Herbert", books[0].Author.Get().Name.Get())
	assert.Equal(t, "Dan Simmons", books[0].Editor.Get().Name.Get())
	assert.Nil(t, books[1].Editor.Get())
}

func TestEagerLoadMissingParentFailsQuery(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	mock.ExpectQuery(selectBooks).WillReturnRows(
		sqlmock.NewRows(bookColumns).
			AddRow(int64(1), "Dune", int64(5), nil).
			AddRow(int64(2), "Orphan", int64(404), nil),
	)
	mock.ExpectQuery(selectAuthors+" WHERE `id` IN (?, ?)").
		WithArgs(int64(5), int64(404)).
		WillReturnRows(sqlmock.NewRows(authorColumns).AddRow(int64(5), "Frank Herbert", nil, nil))

	books, err := testBookTable.Query(db).With(withAuthor).All(t.Context())
	require.ErrorIs(t, err, orm.ErrMissingParent)
	assert.Nil(t, books)
}

func TestEagerLoadFetchErrorFailsQuery(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	mock.ExpectQuery(selectBooks).WillReturnRows(
		sqlmock.NewRows(bookColumns).AddRow(int64(1), "Dune", int64(5), nil),
	)
	mock.ExpectQuery(selectAuthors + " WHERE `id` IN (?)").
		WithArgs(int64(5)).
		WillReturnError(sql.ErrConnDone)

	books, err := testBookTable.Query(db).With(withAuthor).All(t.Context())
	require.ErrorIs(t, err, sql.ErrConnDone)
	assert.Nil(t, books)
}

func TestEagerLoadChildren(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	mock.ExpectQuery(selectAuthors).WillReturnRows(
		sqlmock.NewRows(authorColumns).
			AddRow(int64(5), "Frank Herbert", nil, nil).
			AddRow(int64(7), "Dan Simmons", nil, nil).
			AddRow(int64(9), "Nobody", nil, nil),
	)
	mock.ExpectQuery(selectBooks+" WHERE `author_id` IN (?, ?, ?)").
		WithArgs(int64(5), int64(7), int64(9)).
		WillReturnRows(
			sqlmock.NewRows(bookColumns).
				AddRow(int64(1), "Dune", int64(5), nil).
				AddRow(int64(3), "Hyperion", int64(7), nil).
				AddRow(int64(2), "Children of Dune", int64(5), nil),
		)

	authors, err := testAuthorTable.Query(db).With(withBooks).All(t.Context())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	require.Len(t, authors, 3)

	herbert := authors[0].Books.Get()
	require.Len(t, herbert, 2)
	assert.Equal(t, "Dune", herbert[0].Title.Get())
	assert.Equal(t, "Children of Dune", herbert[1].Title.Get())
	assert.Len(t, authors[1].Books.Get(), 1)
	assert.Empty(t, authors[2].Books.Get())
	assert.True(t, authors[2].Books.Loaded())
}

func TestPreloadUnknownRelation(t *testing.T) {
	t.Parallel()

	tq := orm.NewTestQuerier(orm.MySQL)
	_, err := testBookTable.Query(tq).Preload("Publisher").All(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"Publisher"`)
	assert.Empty(t, tq.Queries)
}

func TestEagerLoadsRegistration(t *testing.T) {
	t.Parallel()

	loads := orm.NewEagerLoads()
	required := orm.NewParent[testAuthor, int64]("owner_id")
	optional := orm.NewOptionalParent[testAuthor, int64]("owner_id")
	other := orm.NewParent[testBook, int64]("owner_id")

	require.NoError(t, required.RegisterEagerLoad(loads))
	require.NoError(t, required.RegisterEagerLoad(loads))
	require.NoError(t, optional.RegisterEagerLoad(loads))
	assert.Equal(t, 1, loads.Len())

	err := other.RegisterEagerLoad(loads)
	require.ErrorIs(t, err, orm.ErrUnsupportedEagerLoad)
	require.ErrorIs(t, other.ResolveEagerLoad(loads), orm.ErrUnsupportedEagerLoad)
	assert.Equal(t, 1, loads.Len())

	_, ok := loads.Lookup("p:owner_id")
	assert.True(t, ok)
}

func TestChildrenRequestsSplitByOwnerKey(t *testing.T) {
	t.Parallel()

	loads := orm.NewEagerLoads()
	byID := orm.NewChildren[testBook, int64]("books", "author_id")
	sameOwner := orm.NewChildren[testBook, int64]("more_books", "author_id")
	byCode := orm.NewChildren[testBook, int64]("coded_books", "author_id", orm.OwnedBy[testBook, int64]("code"))

	require.NoError(t, byID.RegisterEagerLoad(loads))
	require.NoError(t, sameOwner.RegisterEagerLoad(loads))
	assert.Equal(t, 1, loads.Len())

	require.NoError(t, byCode.RegisterEagerLoad(loads))
	assert.Equal(t, 2, loads.Len())
}

func TestRegisterRejectsMismatchedParentKey(t *testing.T) {
	t.Parallel()

	loads := orm.NewEagerLoads()
	required := orm.NewParent[testAuthor, int]("author_id")
	optional := orm.NewOptionalParent[testAuthor, string]("editor_id")

	err := required.RegisterEagerLoad(loads)
	require.ErrorIs(t, err, orm.ErrUnsupportedEagerLoad)
	assert.Contains(t, err.Error(), "int64")
	require.ErrorIs(t, optional.RegisterEagerLoad(loads), orm.ErrUnsupportedEagerLoad)
	assert.Equal(t, 0, loads.Len())
}

func TestResolveWithoutRequestIsNoop(t *testing.T) {
	t.Parallel()

	p := orm.NewParent[testAuthor, int64]("author_id")
	p.SetID(5)
	require.NoError(t, p.ResolveEagerLoad(orm.NewEagerLoads()))
	assert.False(t, p.Loaded())

	o := orm.NewOptionalParent[testAuthor, int64]("editor_id")
	require.NoError(t, o.ResolveEagerLoad(orm.NewEagerLoads()))
	assert.False(t, o.Loaded())
}

func TestParentRequestGetFirstMatchWins(t *testing.T) {
	t.Parallel()

	loads := orm.NewEagerLoads()
	p := orm.NewParent[testAuthor, int64]("author_id")
	require.NoError(t, p.RegisterEagerLoad(loads))

	first := authorRecord(5, "first")
	orm.SetParentCache[testAuthor, int64](loads, "p:author_id", []*testAuthor{
		authorRecord(3, "other"), first, authorRecord(5, "second"),
	})

	got, ok := orm.ParentRequestGet[testAuthor](loads, "p:author_id", int64(5))
	require.True(t, ok)
	assert.Same(t, first, got)

	_, ok = orm.ParentRequestGet[testAuthor](loads, "p:author_id", int64(4))
	assert.False(t, ok)
}

func TestParentRequestSkipsUndecodableKeys(t *testing.T) {
	t.Parallel()

	loads := orm.NewEagerLoads()
	p := orm.NewParent[testAuthor, int64]("author_id")
	require.NoError(t, p.RegisterEagerLoad(loads))

	rows := []orm.Row{
		orm.NewRow([]string{"id", "author_id"}, []any{int64(1), nil}),
		orm.NewRow([]string{"id", "author_id"}, []any{int64(2), "not a key"}),
		orm.NewRow([]string{"id"}, []any{int64(3)}),
	}

	tq := orm.NewTestQuerier(orm.MySQL)
	require.NoError(t, orm.RunEagerLoads(t.Context(), loads, tq, rows))
	assert.Empty(t, tq.Queries)
}

func TestParentRequestSingleFetch(t *testing.T) {
	t.Parallel()

	loads := orm.NewEagerLoads()
	p := orm.NewParent[testAuthor, int64]("author_id")
	require.NoError(t, p.RegisterEagerLoad(loads))

	rows := []orm.Row{
		orm.NewRow([]string{"author_id"}, []any{int64(5)}),
		orm.NewRow([]string{"author_id"}, []any{[]byte("5")}),
		orm.NewRow([]string{"author_id"}, []any{int64(7)}),
	}

	tq := orm.NewTestQuerier(orm.PostgreSQL)
	err := orm.RunEagerLoads(t.Context(), loads, tq, rows)
	require.Error(t, err) // TestQuerier never returns rows

	require.Len(t, tq.Queries, 1)
	assert.Equal(t, `SELECT "id", "name", "created_at", "updated_at" FROM "authors" WHERE "id" IN ($1, $2)`, tq.LastQuery().SQL)
	assert.Equal(t, []any{int64(5), int64(7)}, tq.LastQuery().Args)
	assert.False(t, errors.Is(err, orm.ErrMissingParent))
}
