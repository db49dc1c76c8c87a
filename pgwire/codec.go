package pgwire

import (
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/golang-sql/civil"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/syssam/velopg/pgval"
)

// A decodeFunc converts one non-null text-format wire value into a generic
// value. Implementations must not retain src.
type decodeFunc func(src []byte) (pgval.Value, error)

// Codec translates between generic values and PostgreSQL's text wire format.
// Inbound conversion is keyed by the result column's type OID; callers may
// extend the registry with Register before the codec is shared with a
// connection. Outbound conversion is keyed by the value variant and leaves
// the parameter type unspecified so the server infers it from context.
type Codec struct {
	decoders map[uint32]decodeFunc
	elems    map[uint32]uint32
}

// NewCodec returns a codec with decoders for the scalar types the adapter
// understands and for the array form of each. Result columns with any other
// type OID decode into pgval.Raw.
func NewCodec() *Codec {
	c := &Codec{
		decoders: make(map[uint32]decodeFunc),
		elems:    make(map[uint32]uint32),
	}
	c.register()
	return c
}

// Register installs fn as the decoder for result columns of the given type
// OID, replacing any existing entry.
func (c *Codec) Register(oid uint32, fn decodeFunc) {
	c.decoders[oid] = fn
}

// RegisterArray maps an array type OID to its element type OID so values
// decode into pgval.List using the element's decoder.
func (c *Codec) RegisterArray(arrayOID, elemOID uint32) {
	c.elems[arrayOID] = elemOID
}

func (c *Codec) register() {
	c.Register(pgtype.BoolOID, decodeBool)
	c.Register(pgtype.Int2OID, decodeInt)
	c.Register(pgtype.Int4OID, decodeInt)
	c.Register(pgtype.Int8OID, decodeInt)
	c.Register(pgtype.Float4OID, decodeFloat)
	c.Register(pgtype.Float8OID, decodeFloat)
	c.Register(pgtype.NumericOID, decodeNumeric)
	c.Register(pgtype.TextOID, decodeText)
	c.Register(pgtype.VarcharOID, decodeText)
	c.Register(pgtype.BPCharOID, decodeText)
	c.Register(pgtype.NameOID, decodeText)
	c.Register(pgtype.ByteaOID, decodeBytea)
	c.Register(pgtype.DateOID, decodeDate)
	c.Register(pgtype.TimeOID, decodeTimeOfDay)
	c.Register(pgtype.TimestampOID, decodeTimestamp)
	c.Register(pgtype.TimestamptzOID, decodeTimestamptz)
	c.Register(pgtype.IntervalOID, decodeInterval)

	c.RegisterArray(pgtype.BoolArrayOID, pgtype.BoolOID)
	c.RegisterArray(pgtype.Int2ArrayOID, pgtype.Int2OID)
	c.RegisterArray(pgtype.Int4ArrayOID, pgtype.Int4OID)
	c.RegisterArray(pgtype.Int8ArrayOID, pgtype.Int8OID)
	c.RegisterArray(pgtype.Float4ArrayOID, pgtype.Float4OID)
	c.RegisterArray(pgtype.Float8ArrayOID, pgtype.Float8OID)
	c.RegisterArray(pgtype.NumericArrayOID, pgtype.NumericOID)
	c.RegisterArray(pgtype.TextArrayOID, pgtype.TextOID)
	c.RegisterArray(pgtype.VarcharArrayOID, pgtype.VarcharOID)
	c.RegisterArray(pgtype.BPCharArrayOID, pgtype.BPCharOID)
	c.RegisterArray(pgtype.ByteaArrayOID, pgtype.ByteaOID)
	c.RegisterArray(pgtype.DateArrayOID, pgtype.DateOID)
	c.RegisterArray(pgtype.TimeArrayOID, pgtype.TimeOID)
	c.RegisterArray(pgtype.TimestampArrayOID, pgtype.TimestampOID)
	c.RegisterArray(pgtype.TimestamptzArrayOID, pgtype.TimestamptzOID)
	c.RegisterArray(pgtype.IntervalArrayOID, pgtype.IntervalOID)
}

// Decode converts one wire value of the given type OID into a generic value.
// A nil src is the wire null marker and decodes to pgval.Null before any
// type-specific handling runs. Unregistered OIDs decode to pgval.Raw.
func (c *Codec) Decode(oid uint32, src []byte) (pgval.Value, error) {
	if src == nil {
		return pgval.Null{}, nil
	}
	if fn, ok := c.decoders[oid]; ok {
		return fn(src)
	}
	if elem, ok := c.elems[oid]; ok {
		return c.decodeArray(elem, src)
	}
	raw := make(pgval.Raw, len(src))
	copy(raw, src)
	return raw, nil
}

// Encode converts a generic value into its text-format parameter bytes.
// pgval.Null encodes to nil, the wire null marker.
func (c *Codec) Encode(v pgval.Value) ([]byte, error) {
	switch v := v.(type) {
	case nil:
		return nil, fmt.Errorf("pgwire: nil value; use pgval.Null for SQL NULL")
	case pgval.Null:
		return nil, nil
	case pgval.Bool:
		if v {
			return []byte("t"), nil
		}
		return []byte("f"), nil
	case pgval.Int64:
		return strconv.AppendInt(nil, int64(v), 10), nil
	case pgval.Float64:
		return encodeFloat(float64(v)), nil
	case pgval.Numeric:
		return []byte(v.String()), nil
	case pgval.Text:
		return []byte(v), nil
	case pgval.Bytes:
		buf := make([]byte, 2+hex.EncodedLen(len(v)))
		copy(buf, `\x`)
		hex.Encode(buf[2:], v)
		return buf, nil
	case pgval.Date:
		return []byte(v.Date.String()), nil
	case pgval.TimeOfDay:
		return encodeTimeOfDay(v.Time), nil
	case pgval.Timestamp:
		return []byte(v.Time().Format("2006-01-02 15:04:05.999999")), nil
	case pgval.Timestamptz:
		return []byte(v.Time().Format("2006-01-02 15:04:05.999999-07:00")), nil
	case pgval.Interval:
		return encodeInterval(time.Duration(v)), nil
	case pgval.List:
		return c.encodeList(v)
	case pgval.Raw:
		return []byte(v), nil
	}
	return nil, fmt.Errorf("pgwire: unhandled value type %T", v)
}

// EncodeParams converts a parameter list for execution. Errors carry the
// one-based parameter position.
func (c *Codec) EncodeParams(args []pgval.Value) ([][]byte, error) {
	if len(args) == 0 {
		return nil, nil
	}
	params := make([][]byte, len(args))
	for i, arg := range args {
		buf, err := c.Encode(arg)
		if err != nil {
			return nil, fmt.Errorf("pgwire: encode parameter %d: %w", i+1, err)
		}
		params[i] = buf
	}
	return params, nil
}

// DecodeError reports a wire value the registered decoder could not convert.
type DecodeError struct {
	Type  string
	Value string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("pgwire: decode %s value %q: %v", e.Type, e.Value, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func decodeErr(typ string, src []byte, err error) error {
	return &DecodeError{Type: typ, Value: string(src), Err: err}
}

func decodeBool(src []byte) (pgval.Value, error) {
	switch string(src) {
	case "t":
		return pgval.Bool(true), nil
	case "f":
		return pgval.Bool(false), nil
	}
	return nil, decodeErr("boolean", src, fmt.Errorf("want t or f"))
}

func decodeInt(src []byte) (pgval.Value, error) {
	n, err := strconv.ParseInt(string(src), 10, 64)
	if err != nil {
		return nil, decodeErr("integer", src, err)
	}
	return pgval.Int64(n), nil
}

func decodeFloat(src []byte) (pgval.Value, error) {
	switch string(src) {
	case "NaN":
		return pgval.Float64(math.NaN()), nil
	case "Infinity":
		return pgval.Float64(math.Inf(1)), nil
	case "-Infinity":
		return pgval.Float64(math.Inf(-1)), nil
	}
	f, err := strconv.ParseFloat(string(src), 64)
	if err != nil {
		return nil, decodeErr("float", src, err)
	}
	return pgval.Float64(f), nil
}

func decodeNumeric(src []byte) (pgval.Value, error) {
	d, err := decimal.NewFromString(string(src))
	if err != nil {
		return nil, decodeErr("numeric", src, err)
	}
	return pgval.Numeric{Decimal: d}, nil
}

func decodeText(src []byte) (pgval.Value, error) {
	return pgval.Text(src), nil
}

func decodeBytea(src []byte) (pgval.Value, error) {
	if len(src) < 2 || src[0] != '\\' || src[1] != 'x' {
		return nil, decodeErr("bytea", src, fmt.Errorf("missing hex prefix"))
	}
	buf := make([]byte, hex.DecodedLen(len(src)-2))
	if _, err := hex.Decode(buf, src[2:]); err != nil {
		return nil, decodeErr("bytea", src, err)
	}
	return pgval.Bytes(buf), nil
}

func decodeDate(src []byte) (pgval.Value, error) {
	d, err := civil.ParseDate(string(src))
	if err != nil {
		return nil, decodeErr("date", src, err)
	}
	return pgval.Date{Date: d}, nil
}

func decodeTimeOfDay(src []byte) (pgval.Value, error) {
	t, err := parseTimeOfDay(string(src))
	if err != nil {
		return nil, decodeErr("time", src, err)
	}
	return pgval.TimeOfDay{Time: t}, nil
}

func decodeTimestamp(src []byte) (pgval.Value, error) {
	t, err := time.ParseInLocation("2006-01-02 15:04:05.999999", string(src), time.UTC)
	if err != nil {
		return nil, decodeErr("timestamp", src, err)
	}
	return pgval.Timestamp(t), nil
}

// timestamptz arrives with the offset width the server chose for the
// session's zone, so several layouts are tried in order.
var timestamptzLayouts = []string{
	"2006-01-02 15:04:05.999999-07",
	"2006-01-02 15:04:05.999999-07:00",
	"2006-01-02 15:04:05.999999-07:00:00",
}

func decodeTimestamptz(src []byte) (pgval.Value, error) {
	s := string(src)
	for _, layout := range timestamptzLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return pgval.Timestamptz(t), nil
		}
	}
	return nil, decodeErr("timestamptz", src, fmt.Errorf("unrecognized layout"))
}

func decodeInterval(src []byte) (pgval.Value, error) {
	d, err := parseInterval(string(src))
	if err != nil {
		return nil, decodeErr("interval", src, err)
	}
	return pgval.Interval(d), nil
}

func encodeFloat(f float64) []byte {
	switch {
	case math.IsNaN(f):
		return []byte("NaN")
	case math.IsInf(f, 1):
		return []byte("Infinity")
	case math.IsInf(f, -1):
		return []byte("-Infinity")
	}
	return strconv.AppendFloat(nil, f, 'g', -1, 64)
}

func encodeTimeOfDay(t civil.Time) []byte {
	s := fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
	if t.Nanosecond != 0 {
		s += "." + strings.TrimRight(fmt.Sprintf("%09d", t.Nanosecond), "0")
	}
	return []byte(s)
}

func parseTimeOfDay(s string) (civil.Time, error) {
	base, frac, _ := strings.Cut(s, ".")
	parts := strings.Split(base, ":")
	if len(parts) != 3 {
		return civil.Time{}, fmt.Errorf("want HH:MM:SS")
	}
	var hms [3]int
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return civil.Time{}, err
		}
		hms[i] = n
	}
	h, m, sec := hms[0], hms[1], hms[2]
	// 24:00:00 is a valid server reading for time columns.
	if h < 0 || h > 24 || m < 0 || m > 59 || sec < 0 || sec > 59 || (h == 24 && (m != 0 || sec != 0)) {
		return civil.Time{}, fmt.Errorf("out of range")
	}
	ns := 0
	if frac != "" {
		var err error
		ns, err = fracNanoseconds(frac)
		if err != nil {
			return civil.Time{}, err
		}
	}
	if h == 24 && ns != 0 {
		return civil.Time{}, fmt.Errorf("out of range")
	}
	return civil.Time{Hour: h, Minute: m, Second: sec, Nanosecond: ns}, nil
}

// fracNanoseconds converts a fraction's digit string to nanoseconds,
// rounding half away from zero past nine digits.
func fracNanoseconds(frac string) (int, error) {
	if frac == "" || len(frac) > 12 {
		return 0, fmt.Errorf("fraction must have 1 to 12 digits")
	}
	for i := 0; i < len(frac); i++ {
		if frac[i] < '0' || frac[i] > '9' {
			return 0, fmt.Errorf("fraction has non-digit %q", frac[i])
		}
	}
	digits := frac
	round := false
	if len(digits) > 9 {
		round = digits[9] >= '5'
		digits = digits[:9]
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, err
	}
	for i := len(digits); i < 9; i++ {
		n *= 10
	}
	if round {
		n++
	}
	return n, nil
}
