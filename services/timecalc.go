package services

import (
	"fmt"
	"time"

	"leadreminder-backend/models"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Triggers holds the absolute fire times derived from one appointment.
type Triggers struct {
	R1      time.Time
	R2      time.Time
	Meeting time.Time
}

// At returns the trigger for the given kind.
func (t Triggers) At(k models.Kind) time.Time {
	if k == models.KindR1 {
		return t.R1
	}
	return t.R2
}

// TimeCalculator turns a local appointment date and time into UTC trigger
// instants. The wall clock is read in a single fixed offset from UTC; an
// offset of zero treats the input as already UTC.
type TimeCalculator struct {
	loc *time.Location
}

func NewTimeCalculator(offset time.Duration) *TimeCalculator {
	return &TimeCalculator{loc: time.FixedZone("", int(offset/time.Second))}
}

// Location is the fixed zone appointment wall clocks are read in.
func (tc *TimeCalculator) Location() *time.Location {
	return tc.loc
}

// Parse converts date (YYYY-MM-DD) and clock (HH:MM) into a UTC instant.
func (tc *TimeCalculator) Parse(date, clock string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout+" "+TimeLayout, date+" "+clock, tc.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q %q: %v", ErrInvalidTimestamp, date, clock, err)
	}
	return t.UTC(), nil
}

func (tc *TimeCalculator) Calculate(date, clock string) (Triggers, error) {
	meeting, err := tc.Parse(date, clock)
	if err != nil {
		return Triggers{}, err
	}
	return Triggers{
		R1:      meeting.Add(-24 * time.Hour),
		R2:      meeting.Add(-time.Hour),
		Meeting: meeting,
	}, nil
}
