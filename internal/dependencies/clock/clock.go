package clock

import "time"

// Clock supplies the current time to services so tests can pin it.
type Clock interface {
	Now() time.Time
}

// System reads the wall clock in UTC.
type System struct{}

func New() System { return System{} }

func (System) Now() time.Time { return time.Now().UTC() }
