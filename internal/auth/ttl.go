package auth

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// TTL strings use a single integer plus unit suffix, e.g. "15m", "7d".
var ttlPattern = regexp.MustCompile(`^(\d+)([smhd])$`)

// ParseTTL parses a duration of the form <number><unit> where unit is one of
// s, m, h, d. Malformed values are a configuration error.
func ParseTTL(s string) (time.Duration, error) {
	m := ttlPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid ttl %q: want <number><s|m|h|d>", s)
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid ttl %q: %w", s, err)
	}
	var unit time.Duration
	switch m[2] {
	case "s":
		unit = time.Second
	case "m":
		unit = time.Minute
	case "h":
		unit = time.Hour
	case "d":
		unit = 24 * time.Hour
	}
	return time.Duration(n) * unit, nil
}
