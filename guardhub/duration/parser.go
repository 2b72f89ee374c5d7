package duration

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// ParseError describes why a duration string could not be parsed. Its message
// is safe to report back to the submitter verbatim.
type ParseError struct {
	Source string
	Msg    string
}

// Error ...
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse duration %q: %s", e.Source, e.Msg)
}

// unitMillis maps the accepted single-character units to milliseconds.
var unitMillis = map[byte]int64{
	's': int64(time.Second / time.Millisecond),
	'm': int64(time.Minute / time.Millisecond),
	'h': int64(time.Hour / time.Millisecond),
	'd': int64(24 * time.Hour / time.Millisecond),
}

// Parse parses a human-entered interval string into a relative duration. The
// accepted grammar is a sequence of <number><unit> pairs with unit one of
// s, m, h or d (case-insensitive), e.g. "1m", "2d" or "1d6h". A total long
// enough to reach Max yields the permanent duration.
func Parse(source string) (Duration, error) {
	var (
		total int64 // milliseconds
		pairs int
	)
	for i := 0; i < len(source); {
		start := i
		for i < len(source) && source[i] >= '0' && source[i] <= '9' {
			i++
		}
		if i == start {
			return Duration{}, &ParseError{Source: source, Msg: fmt.Sprintf("illegal numeric value at %q", source[i:])}
		}
		if i == len(source) {
			return Duration{}, &ParseError{Source: source, Msg: "number is not followed by a unit character"}
		}
		value, err := strconv.ParseInt(source[start:i], 10, 64)
		if err != nil {
			// Only overflow is possible here; treat it as permanent, the
			// same way a merely astronomical total is.
			value = math.MaxInt64
		}
		unit := lower(source[i])
		i++
		mult, ok := unitMillis[unit]
		if !ok {
			return Duration{}, &ParseError{Source: source, Msg: fmt.Sprintf("unknown time unit for character %q", string(unit))}
		}
		if value > (math.MaxInt64-total)/mult {
			total = math.MaxInt64
		} else {
			total += value * mult
		}
		pairs++
	}
	if pairs == 0 {
		return Duration{}, &ParseError{Source: source, Msg: "no duration units found"}
	}
	return FromMillis(total), nil
}

// lower ...
func lower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}
