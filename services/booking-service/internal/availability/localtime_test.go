package availability

import (
	"errors"
	"testing"
	"time"

	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
)

var nineToFive = model.DayHours{Open: "09:00", Close: "17:00", IsOpen: true}

func TestLocalWindowToInstants_UsesClinicZone(t *testing.T) {
	d, err := ParseDate("2026-01-28")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	w, err := LocalWindowToInstants(d, "Asia/Tokyo", nineToFive)
	if err != nil {
		t.Fatalf("LocalWindowToInstants: %v", err)
	}
	// Tokyo is UTC+9 with no DST.
	if want := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC); !w.Start.Equal(want) {
		t.Fatalf("expected open %s, got %s", want, w.Start.UTC())
	}
	if w.Duration() != 8*time.Hour {
		t.Fatalf("expected 8h window, got %s", w.Duration())
	}
}

func TestLocalWindowToInstants_DSTDays(t *testing.T) {
	cases := []struct {
		date string
		want time.Duration
	}{
		{"2026-03-08", 23 * time.Hour}, // spring forward
		{"2026-11-01", 25 * time.Hour}, // fall back
		{"2026-06-15", 24 * time.Hour},
	}
	for _, tc := range cases {
		d, _ := ParseDate(tc.date)
		w, err := LocalWindowToInstants(d, "America/New_York", model.DayHours{Open: "00:00", Close: "24:00", IsOpen: true})
		if err != nil {
			t.Fatalf("%s: %v", tc.date, err)
		}
		if w.Duration() != tc.want {
			t.Fatalf("%s: expected %s window, got %s", tc.date, tc.want, w.Duration())
		}
	}

	d, _ := ParseDate("2026-03-09")
	w, err := LocalWindowToInstants(d, "America/New_York", nineToFive)
	if err != nil {
		t.Fatalf("LocalWindowToInstants: %v", err)
	}
	// EDT is UTC-4 after the switch.
	if want := time.Date(2026, 3, 9, 13, 0, 0, 0, time.UTC); !w.Start.Equal(want) {
		t.Fatalf("expected %s, got %s", want, w.Start.UTC())
	}
}

func TestLocalWindowToInstants_Errors(t *testing.T) {
	d := Date{Year: 2026, Month: time.March, Day: 2}
	cases := []struct {
		name  string
		tz    string
		hours model.DayHours
		want  error
	}{
		{"closed flag", "UTC", model.DayHours{Open: "09:00", Close: "17:00"}, ErrClosedDay},
		{"absent times", "UTC", model.DayHours{IsOpen: true}, ErrClosedDay},
		{"bad open", "UTC", model.DayHours{Open: "9am", Close: "17:00", IsOpen: true}, ErrInvalidTimeFormat},
		{"bad close", "UTC", model.DayHours{Open: "09:00", Close: "25:00", IsOpen: true}, ErrInvalidTimeFormat},
		{"inverted", "UTC", model.DayHours{Open: "17:00", Close: "09:00", IsOpen: true}, ErrEmptyWindow},
		{"unknown zone", "Mars/Olympus", nineToFive, ErrUnknownTimezone},
		{"empty zone", "", nineToFive, ErrUnknownTimezone},
	}
	for _, tc := range cases {
		if _, err := LocalWindowToInstants(d, tc.tz, tc.hours); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-03-02")
	if err != nil || d.Weekday() != time.Monday || d.String() != "2026-03-02" {
		t.Fatalf("unexpected %v %v", d, err)
	}
	for _, bad := range []string{"", "2026-3-2", "02/03/2026", "2026-02-30"} {
		if _, err := ParseDate(bad); !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("%q: expected ErrInvalidDate, got %v", bad, err)
		}
	}
}
