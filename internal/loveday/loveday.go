// Package loveday computes elapsed whole days since a fixed reference date.
package loveday

import (
	"fmt"
	"time"
)

const day = 24 * time.Hour

// DefaultDate is the reference calendar date used when none is configured.
const DefaultDate = "2025-02-11"

// DaysSince returns floor((now - reference) / 24h). The result is negative
// when now precedes reference.
func DaysSince(reference, now time.Time) int {
	d := now.Sub(reference)
	days := d / day
	if d < 0 && d%day != 0 {
		days--
	}
	return int(days)
}

// ParseReference returns midnight of date (YYYY-MM-DD) in the named IANA
// timezone. An empty timezone means UTC.
func ParseReference(date, timezone string) (time.Time, error) {
	loc := time.UTC
	if timezone != "" {
		l, err := time.LoadLocation(timezone)
		if err != nil {
			return time.Time{}, fmt.Errorf("load timezone %q: %w", timezone, err)
		}
		loc = l
	}
	t, err := time.ParseInLocation(time.DateOnly, date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse reference date %q: %w", date, err)
	}
	return t, nil
}

// Counter reports the reference date and the days elapsed since it.
type Counter struct {
	reference time.Time
	now       func() time.Time
}

// NewCounter creates a counter for the given reference instant.
func NewCounter(reference time.Time) *Counter {
	return &Counter{reference: reference, now: time.Now}
}

// WithClock returns a copy of c that reads the current time from now.
func (c *Counter) WithClock(now func() time.Time) *Counter {
	return &Counter{reference: c.reference, now: now}
}

// Reference returns the fixed reference instant.
func (c *Counter) Reference() time.Time { return c.reference }

// DaysTogether returns the whole days elapsed between the reference and now.
func (c *Counter) DaysTogether() int {
	return DaysSince(c.reference, c.now())
}
