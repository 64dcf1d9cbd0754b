package timeutils

import "time"

// Period represents an absolute period between two instances in time, e.g. "2024/03/19 00:00:00 to 2024/03/19 05:00:00".
type Period struct {
	Start time.Time
	End   time.Time
}

// Contains returns true if the given t falls within the period. The start is inclusive and the
// end is exclusive, matching ClockTimePeriod.AbsolutePeriod.
func (p *Period) Contains(t time.Time) bool {
	return (t.After(p.Start) || t.Equal(p.Start)) && t.Before(p.End)
}
