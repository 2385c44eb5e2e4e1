package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Version is a release number made of non-negative integer segments,
// such as "22.3" or "21.1.1".
//
// Versions compare segment by segment. The shorter of two versions is
// padded with zeros on the right, so "21.1" and "21.1.0" are equal:
//
//	a, _ := ParseVersion("22.3")
//	b, _ := ParseVersion("21.4")
//	a.Compare(b) // 1
type Version struct {
	segments []int
	raw      string
}

// ParseVersion parses a dotted version string.
//
// Surrounding whitespace is ignored. Every segment must be a non-empty run
// of ASCII digits.
func ParseVersion(s string) (Version, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Version{}, fmt.Errorf("empty version")
	}

	parts := strings.Split(s, ".")
	segments := make([]int, 0, len(parts))
	for _, part := range parts {
		if part == "" || strings.TrimLeft(part, "0123456789") != "" {
			return Version{}, fmt.Errorf("invalid version %q", s)
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return Version{}, fmt.Errorf("invalid version %q: %w", s, err)
		}
		segments = append(segments, n)
	}

	return Version{segments: segments, raw: s}, nil
}

// MustParseVersion is like ParseVersion but panics on error.
// It is intended for tests and static tables.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Segments returns a copy of the numeric segments.
func (v Version) Segments() []int {
	out := make([]int, len(v.segments))
	copy(out, v.segments)
	return out
}

// IsZero reports whether v was never parsed.
func (v Version) IsZero() bool {
	return len(v.segments) == 0
}

// Compare returns -1, 0 or 1 when v is lower than, equal to, or higher than o.
func (v Version) Compare(o Version) int {
	n := len(v.segments)
	if len(o.segments) > n {
		n = len(o.segments)
	}
	for i := 0; i < n; i++ {
		a, b := segmentAt(v.segments, i), segmentAt(o.segments, i)
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
	}
	return 0
}

// Equal reports whether v and o compare equal.
func (v Version) Equal(o Version) bool {
	return v.Compare(o) == 0
}

// Less reports whether v sorts before o.
func (v Version) Less(o Version) bool {
	return v.Compare(o) < 0
}

func (v Version) String() string {
	if v.raw != "" {
		return v.raw
	}
	parts := make([]string, len(v.segments))
	for i, s := range v.segments {
		parts[i] = strconv.Itoa(s)
	}
	return strings.Join(parts, ".")
}

// MarshalJSON encodes the version as its dotted string.
func (v Version) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

// UnmarshalJSON decodes a dotted version string.
func (v *Version) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseVersion(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func segmentAt(segments []int, i int) int {
	if i < len(segments) {
		return segments[i]
	}
	return 0
}
