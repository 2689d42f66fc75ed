package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Day is the weekday a TimeSlot meets on. It marshals as the full English day name.
type Day time.Weekday

const (
	Sunday    = Day(time.Sunday)
	Monday    = Day(time.Monday)
	Tuesday   = Day(time.Tuesday)
	Wednesday = Day(time.Wednesday)
	Thursday  = Day(time.Thursday)
	Friday    = Day(time.Friday)
	Saturday  = Day(time.Saturday)
)

func (d Day) String() string {
	return time.Weekday(d).String()
}

func ParseDay(s string) (Day, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) < 3 {
		return 0, fmt.Errorf("invalid day %q", s)
	}

	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		name := strings.ToLower(wd.String())
		if s == name || s == name[:3] {
			return Day(wd), nil
		}
	}

	return 0, fmt.Errorf("invalid day %q", s)
}

func (d Day) MarshalText() ([]byte, error) {
	if d < Sunday || d > Saturday {
		return nil, fmt.Errorf("invalid day %d", int(d))
	}
	return []byte(d.String()), nil
}

func (d *Day) UnmarshalText(text []byte) error {
	parsed, err := ParseDay(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ClockTime is a time of day in minutes since midnight.
type ClockTime int

func Clock(hour, minute int) ClockTime {
	return ClockTime(hour*60 + minute)
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// ParseClockTime accepts "09:00", "9:00", "9:00 AM" and "12:30 PM".
func ParseClockTime(s string) (ClockTime, error) {
	raw := strings.ToUpper(strings.TrimSpace(s))
	isPM := strings.HasSuffix(raw, "PM")
	isAM := strings.HasSuffix(raw, "AM")
	raw = strings.TrimSpace(strings.TrimSuffix(strings.TrimSuffix(raw, "PM"), "AM"))

	hourStr, minuteStr, ok := strings.Cut(raw, ":")
	if !ok {
		return 0, fmt.Errorf("invalid time %q", s)
	}

	hour, err := strconv.Atoi(hourStr)
	if err != nil {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(minuteStr)
	if err != nil {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}

	switch {
	case isPM && hour != 12:
		hour += 12
	case isAM && hour == 12:
		hour = 0
	}

	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("time out of range %q", s)
	}

	return Clock(hour, minute), nil
}

func (c ClockTime) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *ClockTime) UnmarshalText(text []byte) error {
	parsed, err := ParseClockTime(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

type TimeSlot struct {
	Day   Day       `json:"day"`
	Start ClockTime `json:"start_time"`
	End   ClockTime `json:"end_time"`
	Room  string    `json:"room,omitempty"`
}

func (s TimeSlot) Validate() error {
	if s.Start >= s.End {
		return fmt.Errorf("time slot on %s: start %s is not before end %s", s.Day, s.Start, s.End)
	}
	return nil
}

// Overlaps reports whether both slots meet on the same day with intersecting time ranges.
func (s TimeSlot) Overlaps(other TimeSlot) bool {
	return s.Day == other.Day && s.Start < other.End && other.Start < s.End
}

func (s TimeSlot) String() string {
	return fmt.Sprintf("%s %s-%s", s.Day, s.Start, s.End)
}

type Course struct {
	ID                string     `json:"id"`
	Code              string     `json:"code" validate:"required"`
	Name              string     `json:"name"`
	Credits           int        `json:"credits" validate:"gt=0"`
	Department        string     `json:"department"`
	Description       string     `json:"description,omitempty"`
	Semester          Semester   `json:"semester,omitempty"`
	Year              int        `json:"year,omitempty"`
	TimeSlots         []TimeSlot `json:"time_slots"`
	MaxCapacity       int        `json:"max_capacity,omitempty"`
	CurrentEnrollment int        `json:"current_enrollment,omitempty"`
}

// Level returns the numeric part of the course code (CS225 -> 225), or 0 when there is none.
func (c Course) Level() int {
	var digits strings.Builder
	for _, r := range c.Code {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}

	level, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0
	}
	return level
}
