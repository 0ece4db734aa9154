// Package daylight computes the daily active window from sunrise and
// sunset and the sleep needed to reach the next one.
//
// The astronomical calculation is a [SunTimes] function; [NOAA] is the
// production implementation.
package daylight

import (
	"time"

	"github.com/nathan-osman/go-sunrise"
)

// Location is a point on Earth. Elevation is in metres above sea level.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Elevation float64 `json:"elevation"`
}

// SunTimes returns sunrise and sunset in UTC for the calendar date of date
// at loc. Zero times mean the sun does not rise or set that day.
type SunTimes func(date time.Time, loc Location) (sunrise, sunset time.Time)

// NOAA computes sunrise and sunset with the NOAA solar equations.
// Elevation is ignored: the correction is under a minute for any site an
// inverter is likely to sit on.
func NOAA(date time.Time, loc Location) (time.Time, time.Time) {
	return sunrise.SunriseSunset(loc.Latitude, loc.Longitude, date.Year(), date.Month(), date.Day())
}

// Window is the active part of one calendar day, in the caller's time zone.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Valid reports whether the sun rises and sets on the window's day.
func (w Window) Valid() bool {
	return !w.Start.IsZero() && !w.End.IsZero() && w.Start.Before(w.End)
}

// Contains reports whether t lies in [Start, End).
func (w Window) Contains(t time.Time) bool {
	return w.Valid() && !t.Before(w.Start) && t.Before(w.End)
}

// Today returns the window for the calendar date of now, expressed in
// now's location.
func Today(now time.Time, loc Location, sun SunTimes) Window {
	rise, set := sun(now, loc)
	w := Window{}
	if !rise.IsZero() {
		w.Start = rise.In(now.Location())
	}
	if !set.IsZero() {
		w.End = set.In(now.Location())
	}
	return w
}

// StartOfDay returns midnight at the start of t's calendar date.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// UntilSunrise returns how long to sleep from now, outside the active
// window, until the window is next checked.
//
// The sleep is always split at midnight: the remainder of today plus the
// time from midnight to tomorrow's sunrise, computed for tomorrow's date.
// This holds before today's sunrise too, so a process started in the small
// hours skips the coming window and wakes at tomorrow's sunrise. Inside the
// window it is zero. When tomorrow has no sunrise it sleeps to midnight so
// the window is re-evaluated for the new date.
func UntilSunrise(now time.Time, loc Location, sun SunTimes) time.Duration {
	if Today(now, loc, sun).Contains(now) {
		return 0
	}

	midnight := StartOfDay(now).AddDate(0, 0, 1)
	remainder := midnight.Sub(now)
	tomorrow := Today(midnight, loc, sun)
	if !tomorrow.Valid() || tomorrow.Start.Before(midnight) {
		return remainder
	}
	return remainder + tomorrow.Start.Sub(midnight)
}
