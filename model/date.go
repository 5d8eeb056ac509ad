package model

import (
	"fmt"
	"regexp"
	"time"
)

// Date is a civil calendar date with no time-of-day or timezone component.
// The zero value is not a valid date; use DateMin for "nothing yet".
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// Sentinel dates used for "no local package yet" and "unbounded future".
var (
	DateMin = Date{1, time.January, 1}
	DateMax = Date{9999, time.December, 31}
)

var packageDatePattern = regexp.MustCompile(`([0-9]{4})\.([0-9]{2})\.([0-9]{2})`)

// NewDate creates a Date from its components.
func NewDate(year int, month time.Month, day int) Date {
	return Date{year, month, day}
}

// ParseGTFSDate parses a GTFS-style YYYYMMDD date.
func ParseGTFSDate(s string) (Date, error) {
	t, err := time.Parse("20060102", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid GTFS date %q: %w", s, err)
	}
	return Date{t.Year(), t.Month(), t.Day()}, nil
}

// ParseDashDate parses an ISO-style YYYY-MM-DD date.
func ParseDashDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{t.Year(), t.Month(), t.Day()}, nil
}

// ExtractPackageDate finds a YYYY.MM.DD package date embedded in a resource
// or file name. The pattern is strict; its absence means the name cannot be
// attributed to any publication and is an error.
func ExtractPackageDate(name string) (Date, error) {
	m := packageDatePattern.FindStringSubmatch(name)
	if m == nil {
		return Date{}, fmt.Errorf("failed to extract package date from %q", name)
	}
	t, err := time.Parse("2006.01.02", m[0])
	if err != nil {
		return Date{}, fmt.Errorf("invalid package date in %q: %w", name, err)
	}
	return Date{t.Year(), t.Month(), t.Day()}, nil
}

// Time returns the date at midnight UTC.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// Before reports whether d is strictly earlier than o.
func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

// After reports whether d is strictly later than o.
func (d Date) After(o Date) bool { return o.Before(d) }

// String formats the date in the dotted package-date notation.
func (d Date) String() string {
	return fmt.Sprintf("%04d.%02d.%02d", d.Year, int(d.Month), d.Day)
}

// GTFS formats the date as YYYYMMDD, as used inside GTFS tables.
func (d Date) GTFS() string {
	return fmt.Sprintf("%04d%02d%02d", d.Year, int(d.Month), d.Day)
}

// Weekday returns the day of the week.
func (d Date) Weekday() time.Weekday { return d.Time().Weekday() }

// AddDays returns the date shifted by the given number of days.
func (d Date) AddDays(n int) Date {
	t := d.Time().AddDate(0, 0, n)
	return Date{t.Year(), t.Month(), t.Day()}
}

// MarshalText implements encoding.TextMarshaler using the GTFS notation,
// so Date fields round-trip through GTFS CSV tables.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.GTFS()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler using the GTFS notation.
func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseGTFSDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MaxDate returns the later of two dates.
func MaxDate(a, b Date) Date {
	if a.Before(b) {
		return b
	}
	return a
}

// MinDate returns the earlier of two dates.
func MinDate(a, b Date) Date {
	if b.Before(a) {
		return b
	}
	return a
}
