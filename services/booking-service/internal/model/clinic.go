package model

import (
	"strings"
	"time"
)

type Clinic struct {
	ID            string              `json:"id" mapstructure:"id"`
	Timezone      string              `json:"timezone" mapstructure:"timezone"`
	BusinessHours map[string]DayHours `json:"business_hours" mapstructure:"business_hours"`
}

// DayHours are wall-clock "HH:MM" times in the clinic's timezone.
type DayHours struct {
	Open   string `json:"open" mapstructure:"open"`
	Close  string `json:"close" mapstructure:"close"`
	IsOpen bool   `json:"is_open" mapstructure:"is_open"`
}

// HoursFor looks up the entry for a weekday; keys are lower-case English
// weekday names.
func (c Clinic) HoursFor(day time.Weekday) (DayHours, bool) {
	h, ok := c.BusinessHours[strings.ToLower(day.String())]
	return h, ok
}

type Service struct {
	ID              string `json:"id" mapstructure:"id"`
	ClinicID        string `json:"clinic_id" mapstructure:"clinic_id"`
	DurationMinutes int    `json:"duration_minutes" mapstructure:"duration_minutes"`
}

func (s Service) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}
