package model

import "time"

// Interval is the half-open range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

func (i Interval) Valid() bool { return i.End.After(i.Start) }

func (i Interval) Duration() time.Duration { return i.End.Sub(i.Start) }

// Overlaps reports whether [a,b) and [c,d) share an instant: a < d && b > c.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && i.End.After(o.Start)
}

// Contains reports whether o lies entirely within i.
func (i Interval) Contains(o Interval) bool {
	return !o.Start.Before(i.Start) && !o.End.After(i.End)
}

// Scope selects occupancy rows for one clinic. With a ProviderID it covers
// that provider's rows plus clinic-level rows that carry no provider; without
// one it covers every row at the clinic.
type Scope struct {
	ClinicID   string
	ProviderID string
}

func (s Scope) Covers(providerID string) bool {
	return s.ProviderID == "" || providerID == "" || providerID == s.ProviderID
}
