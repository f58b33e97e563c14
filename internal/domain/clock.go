package domain

import (
	"fmt"
	"time"
)

// Clock abstracts the time source so the scheduler is testable.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real time.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time { return time.Now() }

// Naive wall-clock timestamps are carried as time.Time values in the UTC
// location whose fields mean "wall clock in some zone". The two helpers
// below are the only places a zone conversion happens.

// WallToUTC interprets a naive wall-clock value in the given IANA zone
// and returns the corresponding UTC instant, as a naive UTC value.
func WallToUTC(wall time.Time, zone string) (time.Time, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return time.Time{}, fmt.Errorf("load timezone %q: %w", zone, err)
	}
	local := time.Date(wall.Year(), wall.Month(), wall.Day(),
		wall.Hour(), wall.Minute(), wall.Second(), wall.Nanosecond(), loc)
	return Naive(local.UTC()), nil
}

// UTCToWall converts a naive UTC value to the wall clock of the given
// IANA zone, returned as a naive value.
func UTCToWall(utc time.Time, zone string) (time.Time, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return time.Time{}, fmt.Errorf("load timezone %q: %w", zone, err)
	}
	instant := time.Date(utc.Year(), utc.Month(), utc.Day(),
		utc.Hour(), utc.Minute(), utc.Second(), utc.Nanosecond(), time.UTC)
	return Naive(instant.In(loc)), nil
}

// Naive strips the location from a time, keeping its wall-clock fields.
func Naive(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(),
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}
