package testdata

import "github.com/mickamy/ormrel/orm"

type Author struct {
	ID        orm.ID[int64]
	Name      orm.Field[string]
	CreatedAt orm.Timestamp
	UpdatedAt orm.Timestamp
	Books     orm.Children[Book, int64]
}

type Book struct {
	ID     orm.ID[int64]
	Title  orm.Field[string]
	Author orm.Parent[Author, int64]
	Editor orm.OptionalParent[Author, int64]

	cache string
}

// Plain structs without slots are ignored.
type Summary struct {
	Title string
	Count int
}
