// Package duration implements the expiration model for punishments. A
// duration is either relative (an elapsed span measured from "now"), absolute
// (a fixed expiration instant) or permanent (a distinguished sentinel that
// never expires and sorts after every finite expiration).
package duration

import (
	"strconv"
	"time"
)

// Max is the expiration instant of a permanent duration. Any absolute
// duration at or beyond this instant is treated as permanent.
var Max = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)

// MaxMillis is Max as a unix millisecond timestamp, the form in which the
// permanent sentinel is persisted and replicated.
var MaxMillis = Max.UnixMilli()

// Layout is the format used for user-facing expiration dates.
const Layout = "02/01/2006 15:04:05"

// kind ...
type kind uint8

const (
	relative kind = iota
	absolute
	permanent
)

// Duration holds either a relative span or a fixed expiration instant of a
// punishment. The zero value is a relative duration of zero, which has
// already expired.
type Duration struct {
	kind       kind
	span       time.Duration
	expiration time.Time
}

// Permanent returns the permanent duration.
func Permanent() Duration {
	return Duration{kind: permanent}
}

// Zero returns a relative duration of zero length.
func Zero() Duration {
	return Duration{kind: relative}
}

// FromDuration returns a relative duration of the given span. If the span
// reaches past Max, the permanent duration is returned instead so that a huge
// finite span can never alias the sentinel.
func FromDuration(d time.Duration) Duration {
	rd := Duration{kind: relative, span: d}
	if rd.IsPermanent() {
		return Permanent()
	}
	return rd
}

// FromMillis returns a relative duration of the given length in milliseconds.
func FromMillis(millis int64) Duration {
	const maxSpanMillis = int64(1<<63-1) / int64(time.Millisecond)
	if millis >= maxSpanMillis {
		return Permanent()
	}
	return FromDuration(time.Duration(millis) * time.Millisecond)
}

// From returns an absolute duration expiring at the given instant, or the
// permanent duration if the instant is not before Max.
func From(t time.Time) Duration {
	if !t.Before(Max) {
		return Permanent()
	}
	return Duration{kind: absolute, expiration: t}
}

// FromTimestamp converts a persisted unix millisecond timestamp back into a
// duration. The duration is absolute because it already was when stored.
func FromTimestamp(millis int64) Duration {
	if millis >= MaxMillis {
		return Permanent()
	}
	return Duration{kind: absolute, expiration: time.UnixMilli(millis)}
}

// IsPermanent reports whether this duration never expires.
func (d Duration) IsPermanent() bool {
	switch d.kind {
	case permanent:
		return true
	case relative:
		// A relative span long enough to reach Max is indistinguishable
		// from permanent.
		now := time.Now()
		if d.span > Max.Sub(now) {
			return true
		}
		return !now.Add(d.span).Before(Max)
	default:
		return !d.expiration.Before(Max)
	}
}

// Relative reports whether this duration is measured from "now" rather than
// pinned to a fixed instant.
func (d Duration) Relative() bool {
	return d.kind == relative
}

// Expiration returns the instant at which this duration expires. For a
// relative duration the result moves with the clock; use Absolute to pin it.
func (d Duration) Expiration() time.Time {
	switch d.kind {
	case permanent:
		return Max
	case relative:
		return time.Now().Add(d.span)
	default:
		return d.expiration
	}
}

// ExpirationMillis returns the expiration as a unix millisecond timestamp,
// with MaxMillis standing in for permanent.
func (d Duration) ExpirationMillis() int64 {
	if d.IsPermanent() {
		return MaxMillis
	}
	return d.Expiration().UnixMilli()
}

// Absolute pins this duration to a fixed expiration instant. A relative
// duration is evaluated against the clock exactly once, at the moment of the
// call; absolute and permanent durations are returned unchanged. This is
// invoked once per punishment, when it is first persisted.
func (d Duration) Absolute() Duration {
	if d.kind != relative {
		return d
	}
	return From(d.Expiration())
}

// Span returns the remaining time until expiration. For a relative duration
// this is the span itself; for fixed durations it shrinks over time.
func (d Duration) Span() time.Duration {
	if d.kind == relative {
		return d.span
	}
	return time.Until(d.Expiration())
}

// Compare orders durations by expiration. Permanent compares equal only to
// permanent and greater than everything else. Two relative durations are
// ordered by span so that the result does not wobble with the clock.
func (d Duration) Compare(other Duration) int {
	dp, op := d.IsPermanent(), other.IsPermanent()
	switch {
	case dp && op:
		return 0
	case dp:
		return 1
	case op:
		return -1
	}
	if d.kind == relative && other.kind == relative {
		switch {
		case d.span < other.span:
			return -1
		case d.span > other.span:
			return 1
		}
		return 0
	}
	return d.Expiration().Compare(other.Expiration())
}

// ExpirationString formats the expiration date for humans, or "Permanent".
func (d Duration) ExpirationString() string {
	if d.IsPermanent() {
		return "Permanent"
	}
	return d.Expiration().Format(Layout)
}

// Remaining formats the remaining time in the same shape the parser accepts,
// e.g. "1d06h30m00s", or "Permanent".
func (d Duration) Remaining() string {
	if d.IsPermanent() {
		return "Permanent"
	}
	return representSpan(d.Span())
}

// representSpan ...
func representSpan(span time.Duration) string {
	if span < 0 {
		span = 0
	}
	days := span / (24 * time.Hour)
	span -= days * 24 * time.Hour
	hours := span / time.Hour
	span -= hours * time.Hour
	minutes := span / time.Minute
	span -= minutes * time.Minute
	seconds := span / time.Second

	var daysPart string
	if days > 0 {
		daysPart = strconv.FormatInt(int64(days), 10) + "d"
	}
	hoursPart := pad(int64(hours)) + "h"
	minutesPart := pad(int64(minutes)) + "m"
	secondsPart := pad(int64(seconds)) + "s"

	// Drop empty leading units so short durations read naturally.
	if daysPart == "" && hoursPart == "00h" {
		hoursPart = ""
	}
	if daysPart == "" && minutesPart == "00m" {
		minutesPart = ""
	}
	return daysPart + hoursPart + minutesPart + secondsPart
}

// pad ...
func pad(v int64) string {
	s := strconv.FormatInt(v, 10)
	if len(s) < 2 {
		return "0" + s
	}
	return s
}
