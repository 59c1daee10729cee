package interfaces

import "time"

type RateLogInterface interface {
	Entries() []time.Time
	PutEntries(entries []time.Time)
	Prune() int
}
