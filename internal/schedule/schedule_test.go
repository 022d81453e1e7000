package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustSlot(t *testing.T, date, in, out string) Slot {
	t.Helper()
	s, err := NewSlot(date, in, out)
	require.NoError(t, err)
	return s
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    Clock
		wantErr bool
	}{
		{"00:00", 0, false},
		{"09:30", 570, false},
		{"23:59", 1439, false},
		{"9:30", 0, true},
		{"24:00", 0, true},
		{"12:60", 0, true},
		{"09:30:00", 0, true},
		{"noon", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidClock)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
}

func TestClockPgRoundTrip(t *testing.T) {
	c := Clock(13*60 + 45)
	pg := c.PgTime()
	assert.True(t, pg.Valid)
	assert.Equal(t, c, ClockFromPg(pg))
}

func TestNewSlotRejectsEmptyAndInverted(t *testing.T) {
	_, err := NewSlot("2025-10-04", "10:00", "10:00")
	assert.ErrorIs(t, err, ErrEmptySlot, "zero-length interval is not a booking")

	_, err = NewSlot("2025-10-04", "11:00", "10:00")
	assert.ErrorIs(t, err, ErrEmptySlot)

	_, err = NewSlot("10/04/2025", "09:00", "10:00")
	assert.ErrorIs(t, err, ErrInvalidDate)

	_, err = NewSlot("2025-10-04", "9am", "10:00")
	assert.ErrorIs(t, err, ErrInvalidClock)
}

func TestOverlaps(t *testing.T) {
	base := mustSlot(t, "2025-10-04", "09:00", "10:00")

	tests := []struct {
		name  string
		other Slot
		want  bool
	}{
		{"identical", mustSlot(t, "2025-10-04", "09:00", "10:00"), true},
		{"starts inside", mustSlot(t, "2025-10-04", "09:30", "10:30"), true},
		{"ends inside", mustSlot(t, "2025-10-04", "08:30", "09:30"), true},
		{"contains", mustSlot(t, "2025-10-04", "08:00", "11:00"), true},
		{"contained", mustSlot(t, "2025-10-04", "09:15", "09:45"), true},
		{"adjacent after", mustSlot(t, "2025-10-04", "10:00", "11:00"), false},
		{"adjacent before", mustSlot(t, "2025-10-04", "08:00", "09:00"), false},
		{"disjoint", mustSlot(t, "2025-10-04", "13:00", "14:00"), false},
		{"other day", mustSlot(t, "2025-10-05", "09:00", "10:00"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overlaps(base, tt.other))
			assert.Equal(t, tt.want, Overlaps(tt.other, base), "overlap must be symmetric")
		})
	}
}

func TestOverlapsMatchesStrictInequality(t *testing.T) {
	day := time.Date(2025, 10, 4, 0, 0, 0, 0, time.UTC)
	// Exhaustive over a small grid of quarter-hours.
	for a1 := Clock(0); a1 < 120; a1 += 15 {
		for a2 := a1 + 15; a2 <= 120; a2 += 15 {
			for b1 := Clock(0); b1 < 120; b1 += 15 {
				for b2 := b1 + 15; b2 <= 120; b2 += 15 {
					a := Slot{Date: day, TimeIn: a1, TimeOut: a2}
					b := Slot{Date: day, TimeIn: b1, TimeOut: b2}
					want := a1 < b2 && a2 > b1
					if got := Overlaps(a, b); got != want {
						t.Fatalf("Overlaps(%v-%v, %v-%v) = %v, want %v", a1, a2, b1, b2, got, want)
					}
				}
			}
		}
	}
}

func TestSlotEnd(t *testing.T) {
	loc := time.FixedZone("PHT", 8*60*60)
	s := mustSlot(t, "2025-10-04", "09:00", "10:30")

	end := s.End(loc)
	assert.Equal(t, time.Date(2025, 10, 4, 10, 30, 0, 0, loc), end)

	assert.False(t, s.EndedBefore(end, loc), "the end instant itself is not overdue")
	assert.True(t, s.EndedBefore(end.Add(time.Second), loc))
}
