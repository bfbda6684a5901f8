package availability

import (
	"slices"
	"time"

	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
)

// Reason explains an empty availability result. It is advisory only.
type Reason string

const (
	ReasonClosed         Reason = "closed"
	ReasonMissingHours   Reason = "missing-hours"
	ReasonServiceTooLong Reason = "service-too-long-for-window"
	ReasonAllPast        Reason = "all-slots-past"
	ReasonFullyBooked    Reason = "fully-booked"
	ReasonNoSlots        Reason = "no-slots"
)

// Grid describes candidate slots: starting at Window.Start and advancing by
// Step, each candidate is [t, t+Duration) and must end by Window.End.
type Grid struct {
	Window   model.Interval
	Duration time.Duration
	Step     time.Duration
	Now      time.Time
}

type Result struct {
	Slots []model.Interval

	// Candidates counts grid positions that fit the window; Past and
	// Occupied count the ones rejected for each cause.
	Candidates int
	Past       int
	Occupied   int
}

// Generate walks the grid and keeps every candidate that starts at or after
// Now and overlaps none of busy.
func Generate(g Grid, busy []model.Interval) Result {
	var res Result
	if g.Duration <= 0 || g.Step <= 0 || !g.Window.Valid() {
		return res
	}

	sorted := slices.Clone(busy)
	slices.SortFunc(sorted, func(a, b model.Interval) int { return a.Start.Compare(b.Start) })

	for t := g.Window.Start; !t.Add(g.Duration).After(g.Window.End); t = t.Add(g.Step) {
		res.Candidates++
		c := model.Interval{Start: t, End: t.Add(g.Duration)}
		switch {
		case t.Before(g.Now):
			res.Past++
		case overlapsAny(c, sorted):
			res.Occupied++
		default:
			res.Slots = append(res.Slots, c)
		}
	}
	return res
}

// Reason categorizes an empty result; it is empty when slots were found.
func (r Result) Reason(g Grid) Reason {
	switch {
	case len(r.Slots) > 0:
		return ""
	case g.Duration > g.Window.Duration():
		return ReasonServiceTooLong
	case r.Candidates > 0 && r.Past == r.Candidates:
		return ReasonAllPast
	case r.Occupied > 0:
		return ReasonFullyBooked
	default:
		return ReasonNoSlots
	}
}

// overlapsAny expects busy sorted by start.
func overlapsAny(c model.Interval, busy []model.Interval) bool {
	for _, b := range busy {
		if !b.Start.Before(c.End) {
			return false
		}
		if c.Overlaps(b) {
			return true
		}
	}
	return false
}
