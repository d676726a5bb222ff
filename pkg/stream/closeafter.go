package stream

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// DefaultCloseAfter is the server-initiated close delay in milliseconds used when
// the closeAfter query parameter is absent or carries no digits.
const DefaultCloseAfter = 5000

// ParseCloseAfter reads a millisecond count the way a lenient integer parser does:
// leading whitespace and an optional sign are accepted, the longest run of digits is
// used and anything after it is ignored. Zero and negative values pass through.
func ParseCloseAfter(raw string, def int) int {
	s := strings.TrimLeft(raw, " \t\r\n\v\f")

	negative := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		negative = s[0] == '-'
		s = s[1:]
	}

	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return def
	}

	// On overflow ParseInt returns the largest int together with ErrRange.
	n, _ := strconv.ParseInt(s[:end], 10, strconv.IntSize)
	if negative {
		n = -n
	}
	return int(n)
}

// closeDelay converts a millisecond count into a timer duration, saturating
// instead of overflowing for very large values.
func closeDelay(ms int) time.Duration {
	const maxMillis = math.MaxInt64 / int64(time.Millisecond)
	switch {
	case int64(ms) > maxMillis:
		return math.MaxInt64
	case int64(ms) < -maxMillis:
		return math.MinInt64
	}
	return time.Duration(ms) * time.Millisecond
}
