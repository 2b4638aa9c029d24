// Package system stamps readings with the wall clock.
package system

import "time"

// Clock implements volume.Clock. Times are UTC and truncated to microseconds
// to match Postgres timestamptz, so a reading read back equals the inserted one.
type Clock struct{}

func New() *Clock { return &Clock{} }

func (Clock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
