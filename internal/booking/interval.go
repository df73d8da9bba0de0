package booking

import "time"

// Interval is a half-open range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether a and b share any instant. Ranges that only
// touch at a boundary do not overlap.
func (a Interval) Overlaps(b Interval) bool {
	return a.End.After(b.Start) && a.Start.Before(b.End)
}

// Duration of the interval; negative when End precedes Start.
func (a Interval) Duration() time.Duration {
	return a.End.Sub(a.Start)
}
