// Package pgval defines the closed set of generic values velopg binds into
// queries and decodes out of result rows. The set is sealed: a Value is one
// of the types declared here and nothing else, which lets the wire codec and
// the differ switch over variants exhaustively.
package pgval

import (
	"time"

	"github.com/golang-sql/civil"
	"github.com/shopspring/decimal"
)

// Value is the sealed interface over every generic value variant.
// Only the types in this package implement it.
type Value interface {
	pgValue() // sealed
}

// Null is the SQL NULL value. It is distinct from a nil Value: a nil
// interface is a caller bug, Null is data.
type Null struct{}

func (Null) pgValue() {}

// Bool is a boolean value.
type Bool bool

func (Bool) pgValue() {}

// Int64 is a signed integer value. Smaller server integer widths decode
// into it as well.
type Int64 int64

func (Int64) pgValue() {}

// Float64 is a double-precision value. NaN and infinities are valid and
// round-trip using the server's spellings.
type Float64 float64

func (Float64) pgValue() {}

// Text is a character value of any server width (text, varchar, char).
type Text string

func (Text) pgValue() {}

// Bytes is a raw byte-string value (bytea).
type Bytes []byte

func (Bytes) pgValue() {}

// Numeric is an arbitrary-precision decimal value.
type Numeric struct {
	decimal.Decimal
}

func (Numeric) pgValue() {}

// Date is a calendar date without a time or zone.
type Date struct {
	civil.Date
}

func (Date) pgValue() {}

// TimeOfDay is a wall-clock time without a date or zone.
type TimeOfDay struct {
	civil.Time
}

func (TimeOfDay) pgValue() {}

// Timestamp is a date and time without a zone. The carrier is a time.Time
// whose location is ignored; only the wall-clock fields are meaningful.
type Timestamp time.Time

func (Timestamp) pgValue() {}

// Timestamptz is a date and time anchored to an absolute instant.
type Timestamptz time.Time

func (Timestamptz) pgValue() {}

// Interval is a span of time. The carrier is a time.Duration, so spans
// outside the int64 nanosecond range are not representable.
type Interval time.Duration

func (Interval) pgValue() {}

// List is an ordered collection of values, decoded from and encoded to the
// server's array literal form. Elements may be Null.
type List []Value

func (List) pgValue() {}

// Raw is a pre-escaped dialect literal passed through the codec untouched.
// It is the escape hatch for syntax the generic variants cannot express,
// and the decode fallback for result types the registry does not know.
type Raw []byte

func (Raw) pgValue() {}

// NewNumeric parses s as an arbitrary-precision decimal.
func NewNumeric(s string) (Numeric, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Numeric{}, err
	}
	return Numeric{d}, nil
}

// NewDate returns the date value for the given calendar day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{civil.Date{Year: year, Month: month, Day: day}}
}

// NewTimeOfDay returns the time-of-day value for the given wall-clock reading.
func NewTimeOfDay(hour, min, sec, nsec int) TimeOfDay {
	return TimeOfDay{civil.Time{Hour: hour, Minute: min, Second: sec, Nanosecond: nsec}}
}

// IsNull reports whether v is the Null variant.
func IsNull(v Value) bool {
	_, ok := v.(Null)
	return ok
}

// Time returns the carrier instant of a zone-aware timestamp.
func (v Timestamptz) Time() time.Time { return time.Time(v) }

// Time returns the carrier of a naive timestamp. Its location carries no
// meaning.
func (v Timestamp) Time() time.Time { return time.Time(v) }

// Duration returns the carrier of an interval value.
func (v Interval) Duration() time.Duration { return time.Duration(v) }
