package testdata

import (
	"time"

	o "github.com/mickamy/ormrel/orm"
)

type Label struct {
	Key       o.ID[string]          `db:"label_key,uuid"`
	Name      o.Field[string]       `db:"display_name"`
	DueAt     o.Field[*time.Time]   `db:"due_at"`
	Touched   o.Timestamp           `db:"touched_at,updatedAt"`
	Internal  o.Field[string]       `db:"-"`
	Reviewer  o.OptionalParent[Reviewer, string]
	Revisions o.Children[Revision, string] `rel:"foreign_key:label_key"`
}

type Reviewer struct {
	ID o.ID[string]
}

type Revision struct {
	ID    o.ID[int]
	Label o.Parent[Label, string] `db:"label_key"`
}
