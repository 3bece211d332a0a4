package availability

import "time"

type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two half-open intervals [Start,End) intersect.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// touchesClosed reports whether the half-open interval i intersects the closed interval
// [c.Start, c.End]. Blackout windows are stored with an inclusive end.
func (i Interval) touchesClosed(c Interval) bool {
	return c.Start.Before(i.End) && !c.End.Before(i.Start)
}

// Grid describes the candidate starts of one business day.
type Grid struct {
	Window   Interval
	Duration time.Duration
	Step     time.Duration
	// Busy intervals are half-open, Blocked intervals are closed.
	Busy    []Interval
	Blocked []Interval
}

// AvailableSlots returns slot start times within the window where a booking of the grid's
// duration fits before the window end and overlaps neither busy nor blocked intervals.
// Starts at or before now are skipped.
//
// All times are expected to be in the same location (timezone).
func AvailableSlots(g Grid, now time.Time) []time.Time {
	var slots []time.Time
	g.scan(now, func(t time.Time) bool {
		slots = append(slots, t)
		return true
	})
	return slots
}

// FirstSlot is AvailableSlots with early exit.
func FirstSlot(g Grid, now time.Time) (time.Time, bool) {
	var first time.Time
	found := false
	g.scan(now, func(t time.Time) bool {
		first, found = t, true
		return false
	})
	return first, found
}

func (g Grid) scan(now time.Time, yield func(time.Time) bool) {
	if g.Duration <= 0 || g.Step <= 0 {
		return
	}
	if !g.Window.End.After(g.Window.Start) {
		return
	}
	for t := g.Window.Start; !t.Add(g.Duration).After(g.Window.End); t = t.Add(g.Step) {
		if !t.After(now) {
			continue
		}
		candidate := Interval{Start: t, End: t.Add(g.Duration)}
		if overlapsAny(candidate, g.Busy) || blockedByAny(candidate, g.Blocked) {
			continue
		}
		if !yield(t) {
			return
		}
	}
}

func overlapsAny(candidate Interval, busy []Interval) bool {
	for _, b := range busy {
		if candidate.Overlaps(b) {
			return true
		}
	}
	return false
}

func blockedByAny(candidate Interval, blocked []Interval) bool {
	for _, b := range blocked {
		if candidate.touchesClosed(b) {
			return true
		}
	}
	return false
}
