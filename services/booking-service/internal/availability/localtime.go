package availability

import (
	"errors"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
)

var (
	ErrInvalidDate       = errors.New("invalid date, expected YYYY-MM-DD")
	ErrInvalidTimeFormat = errors.New("invalid time of day, expected HH:MM")
	ErrUnknownTimezone   = errors.New("unknown timezone")
	ErrEmptyWindow       = errors.New("closing time must be after opening time")

	// ErrClosedDay is a signal, not a failure: the clinic takes no bookings
	// that day.
	ErrClosedDay = errors.New("closed day")
)

// Date is a calendar day with no zone attached. It only becomes a pair of
// instants once combined with a clinic's timezone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return DateOf(t), nil
}

// DateOf returns the calendar day of t as observed in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) Weekday() time.Weekday {
	return time.Date(d.Year, d.Month, d.Day, 12, 0, 0, 0, time.UTC).Weekday()
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

func LoadLocation(name string) (*time.Location, error) {
	// time.LoadLocation("") silently means UTC.
	if name == "" {
		return nil, ErrUnknownTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTimezone, name)
	}
	return loc, nil
}

// LocalWindowToInstants turns one day's wall-clock opening hours into the
// absolute interval [open, close). Gaps and overlaps around DST transitions
// resolve the way the tz database resolves them. A close of "24:00" means
// midnight at the end of the day.
func LocalWindowToInstants(d Date, timezone string, hours model.DayHours) (model.Interval, error) {
	loc, err := LoadLocation(timezone)
	if err != nil {
		return model.Interval{}, err
	}
	if !hours.IsOpen || hours.Open == "" || hours.Close == "" {
		return model.Interval{}, ErrClosedDay
	}
	oh, om, err := parseClock(hours.Open, false)
	if err != nil {
		return model.Interval{}, err
	}
	ch, cm, err := parseClock(hours.Close, true)
	if err != nil {
		return model.Interval{}, err
	}

	w := model.Interval{
		Start: time.Date(d.Year, d.Month, d.Day, oh, om, 0, 0, loc),
		End:   time.Date(d.Year, d.Month, d.Day, ch, cm, 0, 0, loc),
	}
	if !w.Valid() {
		return model.Interval{}, ErrEmptyWindow
	}
	return w, nil
}

func parseClock(s string, allowMidnightEnd bool) (int, int, error) {
	if allowMidnightEnd && s == "24:00" {
		return 24, 0, nil
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, s)
	}
	return t.Hour(), t.Minute(), nil
}
