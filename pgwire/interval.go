package pgwire

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	microsPerSecond = uint64(1_000_000)
	microsPerMinute = 60 * microsPerSecond
	microsPerHour   = 60 * microsPerMinute
)

// encodeInterval renders a duration in the pure-time interval form the
// server uses for intervals below one day, HH:MM:SS with an optional
// fraction. Hours grow past two digits as needed and the fraction is
// rounded to the server's microsecond resolution.
func encodeInterval(d time.Duration) []byte {
	var sb strings.Builder
	u := uint64(d)
	if d < 0 {
		sb.WriteByte('-')
		u = ^u + 1
	}
	micros := (u + 500) / 1000
	h := micros / microsPerHour
	m := micros % microsPerHour / microsPerMinute
	s := micros % microsPerMinute / microsPerSecond
	f := micros % microsPerSecond
	fmt.Fprintf(&sb, "%02d:%02d:%02d", h, m, s)
	if f != 0 {
		sb.WriteByte('.')
		sb.WriteString(strings.TrimRight(fmt.Sprintf("%06d", f), "0"))
	}
	return []byte(sb.String())
}

// parseInterval reads the pure-time interval form, an optional sign followed
// by HH:MM:SS with up to twelve fraction digits. The hour field is unbounded
// short of overflowing the duration carrier. Day or month components are not
// representable and fail.
func parseInterval(s string) (time.Duration, error) {
	rest := s
	neg := false
	switch {
	case strings.HasPrefix(rest, "-"):
		neg = true
		rest = rest[1:]
	case strings.HasPrefix(rest, "+"):
		rest = rest[1:]
	}
	base, frac, hasFrac := strings.Cut(rest, ".")
	parts := strings.Split(base, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("want HH:MM:SS")
	}
	h, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("hours: %v", err)
	}
	m, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("minutes: %v", err)
	}
	sec, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("seconds: %v", err)
	}
	if m > 59 || sec > 59 {
		return 0, fmt.Errorf("minutes and seconds must be below 60")
	}
	var ns uint64
	if hasFrac {
		n, err := fracNanoseconds(frac)
		if err != nil {
			return 0, err
		}
		ns = uint64(n)
	}
	if h > math.MaxUint64/3600 {
		return 0, fmt.Errorf("interval overflows duration")
	}
	total := h*3600 + m*60 + sec
	if total > math.MaxInt64/uint64(time.Second) {
		return 0, fmt.Errorf("interval overflows duration")
	}
	d := time.Duration(total)*time.Second + time.Duration(ns)
	if d < 0 {
		return 0, fmt.Errorf("interval overflows duration")
	}
	if neg {
		d = -d
	}
	return d, nil
}
