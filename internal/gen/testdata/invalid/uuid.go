package invalid

import "github.com/mickamy/ormrel/orm"

type Ticket struct {
	ID orm.ID[int64] `db:"id,uuid"`
}
