package orm_test

import "github.com/mickamy/ormrel/orm"

// Records shared by the orm tests, written by hand in the shape the ormrel
// generator emits.

type testAuthor struct {
	ID        orm.ID[int64]
	Name      orm.Field[string]
	CreatedAt orm.Timestamp
	UpdatedAt orm.Timestamp
	Books     orm.Children[testBook, int64]
}

func newTestAuthor() *testAuthor {
	return &testAuthor{
		ID:        orm.NewID[int64]("id"),
		Name:      orm.NewField[string]("name"),
		CreatedAt: orm.NewTimestamp("created_at", orm.TimestampCreate),
		UpdatedAt: orm.NewTimestamp("updated_at", orm.TimestampUpdate),
		Books:     orm.NewChildren[testBook, int64]("books", "author_id"),
	}
}

var testAuthorTable = orm.NewTable("authors", newTestAuthor,
	orm.Prop("ID", func(a *testAuthor) orm.Property { return &a.ID }),
	orm.Prop("Name", func(a *testAuthor) orm.Property { return &a.Name }),
	orm.Prop("CreatedAt", func(a *testAuthor) orm.Property { return &a.CreatedAt }),
	orm.Prop("UpdatedAt", func(a *testAuthor) orm.Property { return &a.UpdatedAt }),
	orm.Prop("Books", func(a *testAuthor) orm.Property { return &a.Books }),
)

type testBook struct {
	ID     orm.ID[int64]
	Title  orm.Field[string]
	Author orm.Parent[testAuthor, int64]
	Editor orm.OptionalParent[testAuthor, int64]
}

func newTestBook() *testBook {
	return &testBook{
		ID:     orm.NewID[int64]("id"),
		Title:  orm.NewField[string]("title"),
		Author: orm.NewParent[testAuthor, int64]("author_id"),
		Editor: orm.NewOptionalParent[testAuthor, int64]("editor_id"),
	}
}

var testBookTable = orm.NewTable("books", newTestBook,
	orm.Prop("ID", func(b *testBook) orm.Property { return &b.ID }),
	orm.Prop("Title", func(b *testBook) orm.Property { return &b.Title }),
	orm.Prop("Author", func(b *testBook) orm.Property { return &b.Author }),
	orm.Prop("Editor", func(b *testBook) orm.Property { return &b.Editor }),
)

func withAuthor(b *testBook) orm.EagerLoader { return &b.Author }
func withEditor(b *testBook) orm.EagerLoader { return &b.Editor }
func withBooks(a *testAuthor) orm.EagerLoader { return &a.Books }

// testLabel has a client-generated identifier.
type testLabel struct {
	ID   orm.ID[string]
	Name orm.Field[string]
}

func newTestLabel() *testLabel {
	return &testLabel{
		ID:   orm.NewUUID("id"),
		Name: orm.NewField("name", orm.WithDefault("untitled")),
	}
}

var testLabelTable = orm.NewTable("labels", newTestLabel,
	orm.Prop("ID", func(l *testLabel) orm.Property { return &l.ID }),
	orm.Prop("Name", func(l *testLabel) orm.Property { return &l.Name }),
)

// testNote overrides its table name.
type testNote struct {
	ID orm.ID[int]
}

func (testNote) TableName() string { return "custom_notes" }

var testNoteTable = orm.NewTable("notes", func() *testNote {
	return &testNote{ID: orm.NewID[int]("id")}
}, orm.Prop("ID", func(n *testNote) orm.Property { return &n.ID }))

func authorRecord(id int64, name string) *testAuthor {
	a := newTestAuthor()
	a.ID.Set(id)
	a.Name.Set(name)
	a.ID.Commit()
	a.Name.Commit()
	return a
}
