package repo

import (
	"context"

	"github.com/mickamy/ormrel/example/model"
	"github.com/mickamy/ormrel/orm"
	"github.com/mickamy/ormrel/scope"
)

// BookRepository wraps generated query functions with a repository pattern.
type BookRepository struct {
	db orm.Querier
}

func NewBookRepository(db orm.Querier) *BookRepository {
	return &BookRepository{db: db}
}

func (r *BookRepository) CreateAuthor(ctx context.Context, name string) (*model.Author, error) {
	a := model.NewAuthor()
	a.Name.Set(name)
	if err := model.Authors(r.db).Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (r *BookRepository) CreateBook(ctx context.Context, title string, author, editor *model.Author) (*model.Book, error) {
	b := model.NewBook()
	b.Title.Set(title)
	if err := b.Author.Attach(author); err != nil {
		return nil, err
	}
	if err := b.Editor.Attach(editor); err != nil {
		return nil, err
	}
	if err := model.Books(r.db).Create(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// FindBooks loads books with their author and editor in one query per relation.
func (r *BookRepository) FindBooks(ctx context.Context, scopes ...scope.Scope) ([]*model.Book, error) {
	return model.Books(r.db).
		Scopes(scopes...).
		With(model.BookAuthor).
		With(model.BookEditor).
		OrderBy("id").
		All(ctx)
}

// SearchBooks finds books whose title starts with prefix, leaving out the
// given ids. An empty prefix matches every title.
func (r *BookRepository) SearchBooks(ctx context.Context, prefix string, exclude []int64, page scope.Scopes) ([]*model.Book, error) {
	var s scope.Scopes
	if prefix != "" {
		s = s.Append(scope.Where("title LIKE ?", prefix+"%"))
	}
	s = s.Append(scope.NotIn("id", exclude))
	return r.FindBooks(ctx, s.Merge(page)...)
}

// FindAuthors loads authors with their books.
func (r *BookRepository) FindAuthors(ctx context.Context) ([]*model.Author, error) {
	return model.Authors(r.db).With(model.AuthorBooks).OrderBy("id").All(ctx)
}

func (r *BookRepository) Rename(ctx context.Context, b *model.Book, title string) error {
	b.Title.Set(title)
	return model.Books(r.db).Update(ctx, b)
}

func (r *BookRepository) DeleteBook(ctx context.Context, id int64) error {
	return model.Books(r.db).Filter("id", orm.Equal, id).Delete(ctx)
}
