package model

import "github.com/mickamy/ormrel/orm"

//go:generate go tool ormrel -type=Author,Book

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
}
