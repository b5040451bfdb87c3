package invalid

import "github.com/mickamy/ormrel/orm"

type Event struct {
	ID       orm.ID[int64]
	Happened orm.Timestamp
}
