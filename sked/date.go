package sked

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/samber/mo"
)

const dateLayout = "2006-01-02"

var ErrInvalidDate = errors.New("invalid date")

// Date is a calendar day without a time of day. The zero Date is 0001-01-01.
type Date struct {
	t time.Time
}

// NewDate builds a Date, normalizing overflowing months and days like time.Date does.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	year, month, day := t.Date()

	return NewDate(year, month, day)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, errors.Join(ErrInvalidDate, err)
	}

	return Date{t: t}, nil
}

// Time returns midnight UTC of the day.
func (d Date) Time() time.Time {
	return d.t
}

func (d Date) AddDays(n int) Date {
	return Date{t: d.t.AddDate(0, 0, n)}
}

func (d Date) Compare(other Date) int {
	return d.t.Compare(other.t)
}

func (d Date) Before(other Date) bool {
	return d.Compare(other) < 0
}

func (d Date) After(other Date) bool {
	return d.Compare(other) > 0
}

func (d Date) Equal(other Date) bool {
	return d.Compare(other) == 0
}

// dayNumber is a comparable key for the day, used for set membership.
func (d Date) dayNumber() int64 {
	return d.t.Unix() / 86400
}

func (d Date) String() string {
	return d.t.Format(dateLayout)
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(text []byte) error {
	parsed, err := ParseDate(string(text))
	if err != nil {
		return err
	}

	*d = parsed

	return nil
}

// Scan implements sql.Scanner. Drivers hand DATE columns over either as time.Time or as text.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*d = DateOf(v)
		return nil

	case string:
		return d.scanText(v)

	case []byte:
		return d.scanText(string(v))

	default:
		return fmt.Errorf("%w: cannot scan %T into Date", ErrInvalidDate, src)
	}
}

func (d *Date) scanText(s string) error {
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}

	return d.UnmarshalText([]byte(s))
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	return d.String(), nil
}

/***** TimeRange *****/

// TimeRange is the half-open date range [Lower, Upper). An absent bound is unbounded in that direction.
// Lower == Upper is the empty range.
type TimeRange struct {
	Lower mo.Option[Date]
	Upper mo.Option[Date]
}

// NewTimeRange validates that lower is not after upper.
func NewTimeRange(lower, upper mo.Option[Date]) (TimeRange, error) {
	r := TimeRange{Lower: lower, Upper: upper}
	if err := r.Validate(); err != nil {
		return TimeRange{}, err
	}

	return r, nil
}

// Between is a shorthand for the range [lower, upper). It does not validate, see TimeRange.Validate.
func Between(lower, upper Date) TimeRange {
	return TimeRange{Lower: mo.Some(lower), Upper: mo.Some(upper)}
}

// From is the range [lower, ∞).
func From(lower Date) TimeRange {
	return TimeRange{Lower: mo.Some(lower)}
}

// Until is the range (-∞, upper).
func Until(upper Date) TimeRange {
	return TimeRange{Upper: mo.Some(upper)}
}

// Unbounded is the range covering every date.
func Unbounded() TimeRange {
	return TimeRange{}
}

func (r TimeRange) Validate() error {
	lower, hasLower := r.Lower.Get()
	upper, hasUpper := r.Upper.Get()

	if hasLower && hasUpper && lower.After(upper) {
		return fmt.Errorf("%w: [%s, %s)", ErrInvalidTimeRange, lower, upper)
	}

	return nil
}

func (r TimeRange) IsEmpty() bool {
	lower, hasLower := r.Lower.Get()
	upper, hasUpper := r.Upper.Get()

	return hasLower && hasUpper && !lower.Before(upper)
}

func (r TimeRange) Contains(d Date) bool {
	if lower, ok := r.Lower.Get(); ok && d.Before(lower) {
		return false
	}

	if upper, ok := r.Upper.Get(); ok && !d.Before(upper) {
		return false
	}

	return true
}

// Overlaps reports whether both ranges share at least one day.
func (r TimeRange) Overlaps(other TimeRange) bool {
	if r.IsEmpty() || other.IsEmpty() {
		return false
	}

	return lowerBeforeUpper(r.Lower, other.Upper) && lowerBeforeUpper(other.Lower, r.Upper)
}

// Intersect returns the common part of both ranges. The result may be empty.
func (r TimeRange) Intersect(other TimeRange) TimeRange {
	result := TimeRange{
		Lower: maxLower(r.Lower, other.Lower),
		Upper: minUpper(r.Upper, other.Upper),
	}

	lower, hasLower := result.Lower.Get()
	upper, hasUpper := result.Upper.Get()
	if hasLower && hasUpper && lower.After(upper) {
		result.Upper = mo.Some(lower)
	}

	return result
}

func (r TimeRange) String() string {
	lower, upper := "-inf", "+inf"

	if l, ok := r.Lower.Get(); ok {
		lower = l.String()
	}

	if u, ok := r.Upper.Get(); ok {
		upper = u.String()
	}

	return "[" + lower + ", " + upper + ")"
}

func lowerBeforeUpper(lower, upper mo.Option[Date]) bool {
	l, hasLower := lower.Get()
	u, hasUpper := upper.Get()

	return !hasLower || !hasUpper || l.Before(u)
}

func maxLower(a, b mo.Option[Date]) mo.Option[Date] {
	da, okA := a.Get()
	db, okB := b.Get()

	switch {
	case !okA:
		return b
	case !okB:
		return a
	case da.After(db):
		return a
	default:
		return b
	}
}

func minUpper(a, b mo.Option[Date]) mo.Option[Date] {
	da, okA := a.Get()
	db, okB := b.Get()

	switch {
	case !okA:
		return b
	case !okB:
		return a
	case da.Before(db):
		return a
	default:
		return b
	}
}
