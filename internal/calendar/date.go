// Package calendar provides the civil date used by the ledger and the fixed
// Europe/Berlin zone every bucket and snapshot is computed in.
package calendar

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
	_ "time/tzdata" // Europe/Berlin must resolve on hosts without a zoneinfo database.
)

const readDateFormat = "2006-1-2"

// DateFormat is the ISO-8601 form dates are written in.
const DateFormat = "2006-01-02"

// Berlin is the civil zone of the ledger. CET in winter, CEST in summer.
var Berlin = mustLoad("Europe/Berlin")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(fmt.Sprintf("load %s: %v", name, err))
	}
	return loc
}

// Date is a civil date with day granularity and no zone.
type Date struct {
	y int
	m time.Month
	d int
}

// New returns a normalized Date, so New(2026, 1, 32) is 1 Feb 2026.
func New(year int, month time.Month, day int) Date {
	d := Date{year, month, day}
	d.y, d.m, d.d = d.Time().Date()
	return d
}

// In returns the civil date of t as observed in Berlin.
func In(t time.Time) Date { return New(t.In(Berlin).Date()) }

// Today is the Berlin civil date at instant now.
func Today(now time.Time) Date { return In(now) }

// FromTime keeps the y/m/d of t as is, regardless of its location.
// Use it for values that already are civil dates (e.g. a DATE column).
func FromTime(t time.Time) Date { return New(t.Date()) }

// Time is midnight UTC of d.
func (d Date) Time() time.Time { return time.Date(d.y, d.m, d.d, 0, 0, 0, 0, time.UTC) }

// Start is the first instant of d in Berlin.
func (d Date) Start() time.Time { return time.Date(d.y, d.m, d.d, 0, 0, 0, 0, Berlin) }

func (d Date) Year() int { return d.y }
func (d Date) Month() time.Month { return d.m }
func (d Date) Day() int { return d.d }
func (d Date) Weekday() time.Weekday { return d.Time().Weekday() }
func (d Date) IsZero() bool { return d == Date{} }
func (d Date) Before(x Date) bool { return d.Time().Before(x.Time()) }
func (d Date) After(x Date) bool { return d.Time().After(x.Time()) }
func (d Date) Add(days int) Date { return New(d.y, d.m, d.d+days) }
func (d Date) AddMonths(n int) Date { return New(d.y, d.m+time.Month(n), d.d) }
func (d Date) String() string { return d.Time().Format(DateFormat) }
func (d Date) Format(layout string) string { return d.Time().Format(layout) }

// Sub returns the number of days from x to d.
func (d Date) Sub(x Date) int {
	return int(d.Time().Sub(x.Time()).Hours() / 24)
}

// Between reports whether from <= d <= to.
func (d Date) Between(from, to Date) bool { return !d.Before(from) && !d.After(to) }

// Days lists every date of the inclusive range [from, to]; empty when to < from.
func Days(from, to Date) []Date {
	if to.Before(from) {
		return nil
	}
	out := make([]Date, 0, to.Sub(from)+1)
	for d := from; !d.After(to); d = d.Add(1) {
		out = append(out, d)
	}
	return out
}

// Parse is lenient and accepts "2026-7-1" as well as "2026-07-01".
func Parse(str string) (Date, error) {
	on, err := time.Parse(readDateFormat, str)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q want format %q: %w", str, DateFormat, err)
	}
	return New(on.Date()), nil
}

func MustParse(str string) Date {
	d, err := Parse(str)
	if err != nil {
		panic(err.Error())
	}
	return d
}

func (d *Date) UnmarshalJSON(bytes []byte) error {
	var str string
	if err := json.Unmarshal(bytes, &str); err != nil {
		return err
	}
	parsed, err := Parse(str)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value stores a date as its ISO text, which is what the SQLite schema expects.
func (d Date) Value() (driver.Value, error) { return d.String(), nil }

func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return d.UnmarshalText([]byte(v))
	case []byte:
		return d.UnmarshalText(v)
	case time.Time:
		*d = FromTime(v)
		return nil
	default:
		return fmt.Errorf("cannot scan %T into calendar.Date", src)
	}
}

var (
	_ json.Marshaler   = Date{}
	_ json.Unmarshaler = (*Date)(nil)
	_ driver.Valuer    = Date{}
)
