package model

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ChecksumLength is the length of a hex encoded SHA-1 digest.
const ChecksumLength = 40

// ErrInvalidChecksum is returned by NormalizeChecksum for anything that is
// not exactly 40 hex characters.
var ErrInvalidChecksum = errors.New("invalid sha1 checksum")

// ValidateChecksum reports whether s is exactly 40 hex characters.
func ValidateChecksum(s string) bool {
	if len(s) != ChecksumLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// NormalizeChecksum trims and lower-cases s, then validates it.
func NormalizeChecksum(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if !ValidateChecksum(s) {
		return "", fmt.Errorf("%w: %q (length %d)", ErrInvalidChecksum, s, len(s))
	}
	return s, nil
}

var sizeUnits = map[string]float64{
	"b":  1,
	"kb": 1024,
	"mb": 1024 * 1024,
	"gb": 1024 * 1024 * 1024,
}

// ParseByteSize converts a listed size such as "1.5 MB" or "5,120 KB" to
// bytes. Units are b, kb, mb and gb in any case, each step multiplying by
// 1024. The result is truncated to whole bytes.
//
//	ParseByteSize("1.5 MB") // 1572864
//	ParseByteSize("2 GB")   // 2147483648
func ParseByteSize(s string) (int64, error) {
	fields := strings.Fields(strings.ReplaceAll(s, ",", ""))
	if len(fields) != 2 {
		return 0, fmt.Errorf("invalid size %q: want <number> <unit>", s)
	}

	n, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, fmt.Errorf("invalid size %q: not a finite number", s)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid size %q: negative", s)
	}

	mult, ok := sizeUnits[strings.ToLower(fields[1])]
	if !ok {
		return 0, fmt.Errorf("invalid size %q: unknown unit %q", s, fields[1])
	}

	bytes := n * mult
	if bytes >= math.MaxInt64 {
		return 0, fmt.Errorf("invalid size %q: too large", s)
	}
	return int64(bytes), nil
}

// DateOrder selects how the numeric fields of a "Last Updated" value are
// read. The site has used both orders across page generations and the
// page itself does not say which one it uses.
type DateOrder string

const (
	DateOrderMDY DateOrder = "mdy"
	DateOrderDMY DateOrder = "dmy"
)

// ParseDateOrder parses "mdy" or "dmy".
func ParseDateOrder(s string) (DateOrder, error) {
	switch o := DateOrder(strings.ToLower(strings.TrimSpace(s))); o {
	case DateOrderMDY, DateOrderDMY:
		return o, nil
	}
	return "", fmt.Errorf("unknown date order %q (want mdy or dmy)", s)
}

// ParseDate parses "a/b/yyyy" in the given order. Impossible dates such as
// month 13 are rejected, never reinterpreted in the other order.
func ParseDate(s string, order DateOrder) (time.Time, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}

	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
		}
		nums[i] = n
	}

	var day, month int
	switch order {
	case DateOrderMDY:
		month, day = nums[0], nums[1]
	case DateOrderDMY:
		day, month = nums[0], nums[1]
	default:
		return time.Time{}, fmt.Errorf("unknown date order %q", order)
	}
	year := nums[2]

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow, so a round trip catches 31/02 and friends.
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, fmt.Errorf("invalid date %q for order %s", s, order)
	}
	return t, nil
}
