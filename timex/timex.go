// Package timex converts times between IANA time zones.
package timex

import (
	"errors"
	"fmt"
	"time"
	_ "time/tzdata" // zone data for hosts without /usr/share/zoneinfo
)

// ErrUnknownTimezone is wrapped when a zone name cannot be loaded.
var ErrUnknownTimezone = errors.New("unknown timezone")

// LoadLocation resolves an IANA zone name such as "Europe/Paris".
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrUnknownTimezone)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, &zoneError{name: name, err: err}
	}
	return loc, nil
}

type zoneError struct {
	name string
	err  error
}

func (e *zoneError) Error() string { return "Unknown timezone: " + e.name }

func (e *zoneError) Unwrap() []error { return []error{ErrUnknownTimezone, e.err} }

// Localize returns the instant whose wall clock in zone matches t's wall
// clock, ignoring t's own location.
func Localize(t time.Time, zone string) (time.Time, error) {
	loc, err := LoadLocation(zone)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc), nil
}

// ConvertTimezone returns t expressed in zone to. When from is set, t's wall
// clock is first read as a time in from, the way a time without zone
// information is localised. Otherwise t keeps its own location, and times
// built with time.UTC are read as UTC.
func ConvertTimezone(t time.Time, to, from string) (time.Time, error) {
	dst, err := LoadLocation(to)
	if err != nil {
		return time.Time{}, err
	}
	if from != "" {
		if t, err = Localize(t, from); err != nil {
			return time.Time{}, err
		}
	}
	return t.In(dst), nil
}
