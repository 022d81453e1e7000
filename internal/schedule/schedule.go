package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

var (
	ErrInvalidClock = errors.New("time must be in HH:MM 24-hour format")
	ErrInvalidDate  = errors.New("date must be in YYYY-MM-DD format")
	ErrEmptySlot    = errors.New("time_in must be before time_out")
)

// Clock is a wall-clock time of day in whole minutes since midnight.
type Clock int

// ParseClock parses a strict 24-hour "HH:MM" value.
func ParseClock(s string) (Clock, error) {
	if len(s) != len(ClockLayout) {
		return 0, ErrInvalidClock
	}
	t, err := time.Parse(ClockLayout, s)
	if err != nil {
		return 0, ErrInvalidClock
	}
	return Clock(t.Hour()*60 + t.Minute()), nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// PgTime converts the clock into a value for a Postgres TIME column.
func (c Clock) PgTime() pgtype.Time {
	return pgtype.Time{Microseconds: int64(c) * int64(time.Minute/time.Microsecond), Valid: true}
}

// ClockFromPg converts a scanned TIME column. Seconds are truncated.
func ClockFromPg(t pgtype.Time) Clock {
	return Clock(t.Microseconds / int64(time.Minute/time.Microsecond))
}

func (c Clock) MarshalJSON() ([]byte, error) {
	return []byte(`"` + c.String() + `"`), nil
}

// ParseDate parses a strict "YYYY-MM-DD" calendar day as UTC midnight.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return d, nil
}

// Day normalizes t to the UTC midnight of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Slot is a half-open [TimeIn, TimeOut) interval on a single calendar day.
type Slot struct {
	Date    time.Time
	TimeIn  Clock
	TimeOut Clock
}

// NewSlot parses the wire representation of a slot and validates it.
func NewSlot(date, timeIn, timeOut string) (Slot, error) {
	d, err := ParseDate(date)
	if err != nil {
		return Slot{}, err
	}
	in, err := ParseClock(timeIn)
	if err != nil {
		return Slot{}, err
	}
	out, err := ParseClock(timeOut)
	if err != nil {
		return Slot{}, err
	}
	s := Slot{Date: d, TimeIn: in, TimeOut: out}
	if err := s.Validate(); err != nil {
		return Slot{}, err
	}
	return s, nil
}

// Validate rejects empty and inverted intervals.
func (s Slot) Validate() error {
	if s.TimeIn >= s.TimeOut {
		return ErrEmptySlot
	}
	return nil
}

// Overlaps reports whether two slots share any instant.
// Back-to-back slots (a.TimeOut == b.TimeIn) do not overlap.
func Overlaps(a, b Slot) bool {
	if !Day(a.Date).Equal(Day(b.Date)) {
		return false
	}
	return a.TimeIn < b.TimeOut && a.TimeOut > b.TimeIn
}

// End combines the slot's date and time_out in loc.
func (s Slot) End(loc *time.Location) time.Time {
	y, m, d := s.Date.Date()
	return time.Date(y, m, d, int(s.TimeOut)/60, int(s.TimeOut)%60, 0, 0, loc)
}

// Start combines the slot's date and time_in in loc.
func (s Slot) Start(loc *time.Location) time.Time {
	y, m, d := s.Date.Date()
	return time.Date(y, m, d, int(s.TimeIn)/60, int(s.TimeIn)%60, 0, 0, loc)
}

// EndedBefore reports whether the slot was over at now (strictly after the end).
func (s Slot) EndedBefore(now time.Time, loc *time.Location) bool {
	return now.After(s.End(loc))
}
